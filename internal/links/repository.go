package links

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists links. Links are never updated or deleted.
type Repository interface {
	Create(ctx context.Context, l Link) (Link, error)
	List(ctx context.Context) ([]Link, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts the link. An empty description is stored as NULL.
func (r *PGRepository) Create(ctx context.Context, l Link) (Link, error) {
	var description *string
	if l.Description != "" {
		description = &l.Description
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO links (id, title, url, description)
VALUES ($1, $2, $3, $4)
RETURNING created_at`, l.ID, l.Title, l.URL, description).Scan(&l.CreatedAt)
	if err != nil {
		return Link{}, fmt.Errorf("links: create: %w", err)
	}
	return l, nil
}

// List returns every link in submission order.
func (r *PGRepository) List(ctx context.Context) ([]Link, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, url, COALESCE(description, ''), created_at FROM links ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("links: list: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Link, error) {
		var l Link
		err := row.Scan(&l.ID, &l.Title, &l.URL, &l.Description, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("links: list: %w", err)
	}
	return list, nil
}

var _ Repository = (*PGRepository)(nil)
