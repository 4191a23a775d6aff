// Package pdftext extracts the plain text of a PDF document.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/openscholar/preprintd/internal/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Text parses the document and returns its concatenated plain text.
// Any parsing failure is reported as domain.ErrExtraction; the underlying
// pdf reader panics on some malformed inputs, so those are recovered and
// mapped the same way.
func (e *Extractor) Text(ctx context.Context, document []byte) (text string, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: parse pdf: %v", domain.ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return "", fmt.Errorf("%w: read pdf: %v", domain.ErrExtraction, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: extract text: %v", domain.ErrExtraction, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: read text: %v", domain.ErrExtraction, err)
	}

	return buf.String(), nil
}
