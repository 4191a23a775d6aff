package submission

import (
	"io"

	"github.com/openscholar/preprintd/internal/domain"
)

const (
	maxTitleLen    = 500
	maxAuthorLen   = 200
	maxAbstractLen = 5000
)

// SubmitInput holds parameters for the Submit operation. The owner is taken
// from the authenticated context, never from the payload.
type SubmitInput struct {
	Title    string
	Author   string
	Abstract string
	Filename string
	Document io.Reader
}

// Validate validates the submission input.
func (i SubmitInput) Validate() error {
	var errs []domain.FieldError

	if i.Title == "" {
		errs = append(errs, domain.FieldError{Field: "title", Message: "required"})
	} else if len(i.Title) > maxTitleLen {
		errs = append(errs, domain.FieldError{Field: "title", Message: "too long"})
	}

	if i.Author == "" {
		errs = append(errs, domain.FieldError{Field: "author", Message: "required"})
	} else if len(i.Author) > maxAuthorLen {
		errs = append(errs, domain.FieldError{Field: "author", Message: "too long"})
	}

	if i.Abstract == "" {
		errs = append(errs, domain.FieldError{Field: "abstract", Message: "required"})
	} else if len(i.Abstract) > maxAbstractLen {
		errs = append(errs, domain.FieldError{Field: "abstract", Message: "too long"})
	}

	if i.Filename == "" {
		errs = append(errs, domain.FieldError{Field: "pdf", Message: "filename required"})
	}

	if i.Document == nil {
		errs = append(errs, domain.FieldError{Field: "pdf", Message: "document required"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
