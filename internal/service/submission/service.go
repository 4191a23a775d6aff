// Package submission implements the preprint submission pipeline: stage the
// uploaded document, extract its text and references, mint an identifier and
// persist the record.
package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openscholar/preprintd/internal/domain"
	"github.com/openscholar/preprintd/internal/extract"
	"github.com/openscholar/preprintd/pkg/ctxutil"
)

// fileStore defines the document store interface needed by the pipeline.
type fileStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
}

// textExtractor defines the PDF text extraction interface needed by the pipeline.
type textExtractor interface {
	Text(ctx context.Context, document []byte) (string, error)
}

// preprintRepo defines the preprint repository interface needed by the pipeline.
type preprintRepo interface {
	Create(ctx context.Context, p *domain.Preprint) (*domain.Preprint, error)
}

// minter mints submission identifiers.
type minter interface {
	Mint() string
}

// Service implements the submission pipeline.
type Service struct {
	log       *slog.Logger
	files     fileStore
	extractor textExtractor
	preprints preprintRepo
	ids       minter
}

// NewService creates a new submission service instance.
func NewService(
	logger *slog.Logger,
	files fileStore,
	extractor textExtractor,
	preprints preprintRepo,
	ids minter,
) *Service {
	return &Service{
		log:       logger.With("service", "submission"),
		files:     files,
		extractor: extractor,
		preprints: preprints,
		ids:       ids,
	}
}

// Submit runs the full pipeline and returns the persisted preprint.
//
// Validation failures are reported before any side effect. An extraction
// failure aborts the pipeline with ErrExtraction and nothing is persisted,
// though the staged file remains in the store (the orphan cleanup job picks
// it up later). Persistence failures likewise leave the staged file behind.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*domain.Preprint, error) {
	// Step 1: The owner comes from the authenticated context.
	ownerID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	// Step 2: Validate input before any side effect.
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Step 3: Read the document once; it feeds both the store and the
	// text extractor. An empty stream is a validation failure and must be
	// caught here, before anything is staged.
	document, err := io.ReadAll(input.Document)
	if err != nil {
		return nil, fmt.Errorf("submission.Submit read document: %w", err)
	}
	if len(document) == 0 {
		return nil, domain.NewValidationError("pdf", "document is empty")
	}

	// Step 4: Stage the file.
	location, err := s.files.Save(ctx, input.Filename, bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("submission.Submit stage file: %w", err)
	}

	// Step 5: Extract text and references.
	text, err := s.extractor.Text(ctx, document)
	if err != nil {
		if errors.Is(err, domain.ErrExtraction) {
			s.log.WarnContext(ctx, "text extraction failed, staged file orphaned",
				slog.String("location", location))
			return nil, err
		}
		return nil, fmt.Errorf("submission.Submit extract text: %w", err)
	}
	references := extract.References(text)

	// Step 6: Mint identifier and persist.
	now := time.Now()
	preprint := &domain.Preprint{
		ID:               uuid.New(),
		Title:            input.Title,
		Author:           input.Author,
		Abstract:         input.Abstract,
		Identifier:       s.ids.Mint(),
		References:       references,
		DocumentLocation: location,
		Status:           domain.StatusSubmitted,
		OwnerID:          ownerID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := s.preprints.Create(ctx, preprint)
	if err != nil {
		s.log.ErrorContext(ctx, "persist failed, staged file orphaned",
			slog.String("location", location),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("submission.Submit persist: %w", err)
	}

	s.log.InfoContext(ctx, "preprint submitted",
		slog.String("preprint_id", created.ID.String()),
		slog.String("identifier", created.Identifier),
		slog.Int("references", len(created.References)))

	return created, nil
}
