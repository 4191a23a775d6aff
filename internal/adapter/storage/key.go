// Package storage holds helpers shared by the document file store backends.
package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Key builds the storage key for an uploaded document: the current unix
// millisecond timestamp, a dash, and the sanitized original filename.
// The timestamp prefix keeps repeated uploads of the same file distinct.
func Key(filename string) string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), Sanitize(filename))
}

// Sanitize strips any path components from a client-supplied filename and
// replaces every character outside [A-Za-z0-9._-] with an underscore.
// An empty or all-path name becomes "document".
func Sanitize(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
