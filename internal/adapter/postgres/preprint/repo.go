// Package preprint implements the Preprint repository using PostgreSQL.
// References are stored denormalized as a JSONB column: they are written
// once at submission and always read as a whole.
package preprint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openscholar/preprintd/internal/adapter/postgres"
	"github.com/openscholar/preprintd/internal/domain"
)

const table = "preprints"

var columns = []string{
	"id", "title", "author", "abstract", "identifier", "references",
	"document_location", "status", "owner_id", "created_at", "updated_at",
}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repo provides preprint persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new preprint repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type preprintRow struct {
	ID               uuid.UUID `db:"id"`
	Title            string    `db:"title"`
	Author           string    `db:"author"`
	Abstract         string    `db:"abstract"`
	Identifier       string    `db:"identifier"`
	References       []byte    `db:"references"`
	DocumentLocation string    `db:"document_location"`
	Status           string    `db:"status"`
	OwnerID          uuid.UUID `db:"owner_id"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Create inserts a new preprint and returns the persisted record.
// A duplicate identifier violates the unique constraint and surfaces as
// domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, p *domain.Preprint) (*domain.Preprint, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	refs, err := json.Marshal(p.References)
	if err != nil {
		return nil, fmt.Errorf("marshal references: %w", err)
	}

	sql, args, err := builder.Insert(table).
		Columns(quoted()...).
		Values(p.ID, p.Title, p.Author, p.Abstract, p.Identifier, refs,
			p.DocumentLocation, string(p.Status), p.OwnerID, p.CreatedAt, p.UpdatedAt).
		Suffix("RETURNING " + strings.Join(quoted(), ", ")).
		ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "preprint", p.ID)
	}

	var row preprintRow
	if err := pgxscan.Get(ctx, q, &row, sql, args...); err != nil {
		return nil, postgres.MapError(err, "preprint", p.ID)
	}

	return toDomain(row)
}

// GetByID returns a preprint by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Preprint, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := selectBase().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "preprint", id)
	}

	var row preprintRow
	if err := pgxscan.Get(ctx, q, &row, sql, args...); err != nil {
		return nil, postgres.MapError(err, "preprint", id)
	}

	return toDomain(row)
}

// List returns all preprints in insertion order.
func (r *Repo) List(ctx context.Context) ([]domain.Preprint, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := selectBase().OrderBy("created_at ASC, id ASC").ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "preprint", "list")
	}

	var rows []preprintRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, postgres.MapError(err, "preprint", "list")
	}

	return toDomainSlice(rows)
}

// SearchByTitle returns preprints whose title contains the query,
// case-insensitively, in insertion order. The caller is responsible for
// query validation; this method only escapes LIKE metacharacters.
func (r *Repo) SearchByTitle(ctx context.Context, query string) ([]domain.Preprint, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	pattern := "%" + escapeLike(query) + "%"
	sql, args, err := selectBase().
		Where(sq.ILike{"title": pattern}).
		OrderBy("created_at ASC, id ASC").
		ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "preprint", "search")
	}

	var rows []preprintRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, postgres.MapError(err, "preprint", "search")
	}

	return toDomainSlice(rows)
}

// Latest returns up to limit preprints, newest first.
func (r *Repo) Latest(ctx context.Context, limit int) ([]domain.Preprint, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := selectBase().
		OrderBy("created_at DESC, id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "preprint", "latest")
	}

	var rows []preprintRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, postgres.MapError(err, "preprint", "latest")
	}

	return toDomainSlice(rows)
}

// ListLocations returns every stored document location. Used by the orphan
// cleanup job to diff the file store against the database.
func (r *Repo) ListLocations(ctx context.Context) ([]string, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := builder.Select("document_location").From(table).ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "preprint", "locations")
	}

	var locations []string
	if err := pgxscan.Select(ctx, q, &locations, sql, args...); err != nil {
		return nil, postgres.MapError(err, "preprint", "locations")
	}
	return locations, nil
}

// UpdateStatus moves a preprint to a new review status.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PreprintStatus) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	if !status.Valid() {
		return domain.NewValidationError("status", "unknown status")
	}

	sql, args, err := builder.Update(table).
		Set("status", string(status)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return postgres.MapError(err, "preprint", id)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "preprint", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("preprint %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// selectBase builds the shared SELECT with "references" quoted; it is a
// reserved word in SQL.
func selectBase() sq.SelectBuilder {
	return builder.Select(quoted()...).From(table)
}

func quoted() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		if c == "references" {
			out[i] = `"references"`
			continue
		}
		out[i] = c
	}
	return out
}

// escapeLike escapes LIKE/ILIKE metacharacters so user input matches
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func toDomain(row preprintRow) (*domain.Preprint, error) {
	var refs []domain.Reference
	if len(row.References) > 0 {
		if err := json.Unmarshal(row.References, &refs); err != nil {
			return nil, fmt.Errorf("unmarshal references for %s: %w", row.ID, err)
		}
	}

	return &domain.Preprint{
		ID:               row.ID,
		Title:            row.Title,
		Author:           row.Author,
		Abstract:         row.Abstract,
		Identifier:       row.Identifier,
		References:       refs,
		DocumentLocation: row.DocumentLocation,
		Status:           domain.PreprintStatus(row.Status),
		OwnerID:          row.OwnerID,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

func toDomainSlice(rows []preprintRow) ([]domain.Preprint, error) {
	out := make([]domain.Preprint, 0, len(rows))
	for _, row := range rows {
		p, err := toDomain(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}
