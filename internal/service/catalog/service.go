// Package catalog implements read-side queries over submitted preprints.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"github.com/openscholar/preprintd/internal/domain"
)

// latestLimit bounds the Latest query to the newest submissions.
const latestLimit = 10

// queryRe permits only word characters and whitespace in search queries.
var queryRe = regexp.MustCompile(`^[\w\s]*$`)

// preprintRepo defines the preprint repository interface needed by catalog service.
type preprintRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Preprint, error)
	List(ctx context.Context) ([]domain.Preprint, error)
	SearchByTitle(ctx context.Context, query string) ([]domain.Preprint, error)
	Latest(ctx context.Context, limit int) ([]domain.Preprint, error)
}

// Service implements catalog operations.
type Service struct {
	log         *slog.Logger
	preprints   preprintRepo
	maxQueryLen int
}

// NewService creates a new catalog service instance.
func NewService(logger *slog.Logger, preprints preprintRepo, maxQueryLen int) *Service {
	return &Service{
		log:         logger.With("service", "catalog"),
		preprints:   preprints,
		maxQueryLen: maxQueryLen,
	}
}

// GetByID returns a single preprint. Returns ErrNotFound for unknown IDs.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Preprint, error) {
	p, err := s.preprints.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog.GetByID: %w", err)
	}
	return p, nil
}

// List returns all preprints in insertion order.
func (s *Service) List(ctx context.Context) ([]domain.Preprint, error) {
	preprints, err := s.preprints.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog.List: %w", err)
	}
	return preprints, nil
}

// Search returns preprints whose title contains the query,
// case-insensitively. The query may hold only word characters and
// whitespace and is bounded in length; anything else is a validation error.
// An empty query matches everything.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Preprint, error) {
	if err := s.validateQuery(query); err != nil {
		return nil, err
	}

	preprints, err := s.preprints.SearchByTitle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog.Search: %w", err)
	}
	return preprints, nil
}

// Latest returns the newest submissions, at most ten.
func (s *Service) Latest(ctx context.Context) ([]domain.Preprint, error) {
	preprints, err := s.preprints.Latest(ctx, latestLimit)
	if err != nil {
		return nil, fmt.Errorf("catalog.Latest: %w", err)
	}
	return preprints, nil
}

func (s *Service) validateQuery(query string) error {
	var errs []domain.FieldError

	if len(query) > s.maxQueryLen {
		errs = append(errs, domain.FieldError{Field: "query", Message: "too long"})
	} else if !queryRe.MatchString(query) {
		errs = append(errs, domain.FieldError{Field: "query", Message: "invalid characters"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
