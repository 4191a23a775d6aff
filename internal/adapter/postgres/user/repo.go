// Package user implements the User repository using PostgreSQL.
package user

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openscholar/preprintd/internal/adapter/postgres"
	"github.com/openscholar/preprintd/internal/domain"
)

const table = "users"

var columns = []string{"id", "email", "username", "password_hash", "created_at", "updated_at"}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repo provides user persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new user repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// userRow maps a users table row.
type userRow struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// GetByID returns a user by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := builder.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "user", id)
	}

	var row userRow
	if err := pgxscan.Get(ctx, q, &row, sql, args...); err != nil {
		return nil, postgres.MapError(err, "user", id)
	}

	u := toDomain(row)
	return &u, nil
}

// GetByEmail returns a user by email address.
func (r *Repo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := builder.Select(columns...).From(table).Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "user", email)
	}

	var row userRow
	if err := pgxscan.Get(ctx, q, &row, sql, args...); err != nil {
		return nil, postgres.MapError(err, "user", email)
	}

	u := toDomain(row)
	return &u, nil
}

// Create inserts a new user and returns the persisted domain.User.
// Email and username uniqueness are enforced by database constraints and
// surface as domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := builder.Insert(table).
		Columns(columns...).
		Values(u.ID, u.Email, u.Username, u.PasswordHash, u.CreatedAt, u.UpdatedAt).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "user", u.ID)
	}

	var row userRow
	if err := pgxscan.Get(ctx, q, &row, sql, args...); err != nil {
		return nil, postgres.MapError(err, "user", u.ID)
	}

	created := toDomain(row)
	return &created, nil
}

func joinColumns() string {
	s := columns[0]
	for _, c := range columns[1:] {
		s += ", " + c
	}
	return s
}

func toDomain(row userRow) domain.User {
	return domain.User{
		ID:           row.ID,
		Email:        row.Email,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
