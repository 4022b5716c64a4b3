package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressroom/pressroom/internal/shared"
)

// ErrEmailTaken is returned when creating a user whose email already exists.
var ErrEmailTaken = errors.New("auth: email already registered")

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, name, email, passwordHash string) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, name, email, password_hash, is_active, created_at, updated_at
FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find by email: %w", err)
	}
	return &u, nil
}

// CreateUser inserts an account with an already hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, name, email, passwordHash string) (*User, error) {
	u := User{Name: name, Email: strings.ToLower(strings.TrimSpace(email)), PasswordHash: passwordHash, IsActive: true}
	err := r.pool.QueryRow(ctx, `INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3)
RETURNING id, created_at, updated_at`, u.Name, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)
