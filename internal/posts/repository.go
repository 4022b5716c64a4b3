package posts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressroom/pressroom/internal/shared"
)

// Repository persists posts. Listing methods return the requested page and
// the total number of matching rows.
type Repository interface {
	Find(ctx context.Context, id int64) (Post, error)
	Create(ctx context.Context, p Post) (Post, error)
	Update(ctx context.Context, id int64, title, slug, body string) (Post, error)
	SetPublished(ctx context.Context, id int64, published bool) (Post, error)
	Delete(ctx context.Context, id int64) error
	ListPublished(ctx context.Context, page shared.PageRequest) ([]Post, int, error)
	// ListUnpublished lists drafts of ownerID, or of every author when ownerID is 0.
	ListUnpublished(ctx context.Context, ownerID int64, page shared.PageRequest) ([]Post, int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const postColumns = `p.id, p.user_id, COALESCE(u.name, ''), p.title, p.slug, p.body, p.published, p.created_at, p.updated_at`

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.UserID, &p.AuthorName, &p.Title, &p.Slug, &p.Body, &p.Published, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, shared.ErrNotFound
		}
		return Post{}, err
	}
	return p, nil
}

// Find fetches a post by id.
func (r *PGRepository) Find(ctx context.Context, id int64) (Post, error) {
	p, err := scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+`
FROM posts p LEFT JOIN users u ON u.id = p.user_id
WHERE p.id = $1`, id))
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Post{}, fmt.Errorf("posts: find: %w", err)
	}
	return p, err
}

// Create inserts a post. Published is always stored as false.
func (r *PGRepository) Create(ctx context.Context, p Post) (Post, error) {
	created, err := scanPost(r.pool.QueryRow(ctx, `WITH p AS (
    INSERT INTO posts (user_id, title, slug, body, published)
    VALUES ($1, $2, $3, $4, FALSE)
    RETURNING *
)
SELECT `+postColumns+` FROM p LEFT JOIN users u ON u.id = p.user_id`, p.UserID, p.Title, p.Slug, p.Body))
	if err != nil {
		return Post{}, fmt.Errorf("posts: create: %w", err)
	}
	return created, nil
}

// Update replaces title, slug and body.
func (r *PGRepository) Update(ctx context.Context, id int64, title, slug, body string) (Post, error) {
	p, err := scanPost(r.pool.QueryRow(ctx, `WITH p AS (
    UPDATE posts SET title = $2, slug = $3, body = $4, updated_at = NOW()
    WHERE id = $1
    RETURNING *
)
SELECT `+postColumns+` FROM p LEFT JOIN users u ON u.id = p.user_id`, id, title, slug, body))
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Post{}, fmt.Errorf("posts: update: %w", err)
	}
	return p, err
}

// SetPublished flips only the published flag.
func (r *PGRepository) SetPublished(ctx context.Context, id int64, published bool) (Post, error) {
	p, err := scanPost(r.pool.QueryRow(ctx, `WITH p AS (
    UPDATE posts SET published = $2
    WHERE id = $1
    RETURNING *
)
SELECT `+postColumns+` FROM p LEFT JOIN users u ON u.id = p.user_id`, id, published))
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Post{}, fmt.Errorf("posts: set published: %w", err)
	}
	return p, err
}

// Delete removes a post permanently.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("posts: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListPublished returns published posts, newest first.
func (r *PGRepository) ListPublished(ctx context.Context, page shared.PageRequest) ([]Post, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE published`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("posts: count published: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+postColumns+`
FROM posts p LEFT JOIN users u ON u.id = p.user_id
WHERE p.published
ORDER BY p.created_at DESC, p.id DESC
LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("posts: list published: %w", err)
	}
	list, err := collectPosts(rows)
	return list, total, err
}

// ListUnpublished returns drafts, newest first.
func (r *PGRepository) ListUnpublished(ctx context.Context, ownerID int64, page shared.PageRequest) ([]Post, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE NOT published AND ($1 = 0 OR user_id = $1)`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("posts: count drafts: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+postColumns+`
FROM posts p LEFT JOIN users u ON u.id = p.user_id
WHERE NOT p.published AND ($1 = 0 OR p.user_id = $1)
ORDER BY p.created_at DESC, p.id DESC
LIMIT $2 OFFSET $3`, ownerID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("posts: list drafts: %w", err)
	}
	list, err := collectPosts(rows)
	return list, total, err
}

func collectPosts(rows pgx.Rows) ([]Post, error) {
	defer rows.Close()
	list := make([]Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("posts: scan: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
