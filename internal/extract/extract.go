// Package extract recovers a structured bibliography from the plain text
// of a manuscript.
//
// The parser is intentionally a line-oriented heuristic, not a citation
// grammar: it is cheap, style-agnostic, and loses wrapped citation lines
// that carry their link on a continuation line. That trade-off is accepted.
package extract

import (
	"regexp"
	"strings"

	"github.com/openscholar/preprintd/internal/domain"
)

var (
	// sectionRe locates the start of the bibliography block.
	sectionRe = regexp.MustCompile(`(?i)(References|Bibliography)`)

	// linkRe matches the first HTTP(S) URL or bare DOI on a line.
	// The DOI character class mirrors the Crossref recommendation.
	linkRe = regexp.MustCompile(`https?://\S+|\b10\.\d{4,9}/[-._;()/:A-Za-z0-9]+`)
)

// minLineLen filters blank and noise lines; anything whose trimmed length
// is at or below this threshold cannot be a citation.
const minLineLen = 5

// References extracts bibliography entries from text, in source order.
// It never fails: text without a References/Bibliography section, or with
// no parsable citation lines, yields an empty slice.
func References(text string) []domain.Reference {
	loc := sectionRe.FindStringIndex(text)
	if loc == nil {
		return nil
	}

	refs := []domain.Reference{}
	for _, line := range strings.Split(text[loc[0]:], "\n") {
		if len(strings.TrimSpace(line)) <= minLineLen {
			continue
		}

		m := linkRe.FindStringIndex(line)
		if m == nil {
			// No link on this line. Wrapped citation continuations land
			// here and are dropped.
			continue
		}

		refs = append(refs, domain.Reference{
			Title: strings.TrimSpace(line[:m[0]]),
			Link:  normalizeLink(line[m[0]:m[1]]),
		})
	}

	return refs
}

// normalizeLink rewrites bare DOIs to resolver URLs and leaves full URLs
// untouched.
func normalizeLink(link string) string {
	if strings.HasPrefix(link, "10.") {
		return "https://doi.org/" + link
	}
	return link
}
