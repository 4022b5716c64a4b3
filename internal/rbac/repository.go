package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressroom/pressroom/internal/shared"
)

// Repository loads users and roles from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindUser returns an active user with its roles.
func (r *Repository) FindUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1 AND is_active`, id).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("rbac: find user: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT r.id, r.name, r.slug, r.permissions, r.created_at, r.updated_at
FROM roles r
JOIN user_roles ur ON ur.role_id = r.id
WHERE ur.user_id = $1
ORDER BY r.id`, id)
	if err != nil {
		return nil, fmt.Errorf("rbac: user roles: %w", err)
	}
	roles, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

// ListRoles returns every role ordered by id.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, slug, permissions, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	return collectRoles(rows)
}

// AssignRole attaches the role identified by slug to the user. Assigning an
// existing membership is a no-op.
func (r *Repository) AssignRole(ctx context.Context, userID int64, slug string) error {
	tag, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id)
SELECT $1, id FROM roles WHERE slug = $2
ON CONFLICT DO NOTHING`, userID, slug)
	if err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE slug = $1)`, slug).Scan(&exists); err != nil {
			return fmt.Errorf("rbac: assign role: %w", err)
		}
		if !exists {
			return shared.ErrNotFound
		}
	}
	return nil
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var (
			role      Role
			raw       []byte
			createdAt time.Time
			updatedAt time.Time
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Slug, &raw, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		perms, err := DecodePermissions(raw)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", role.Slug, err)
		}
		role.Permissions = perms
		role.CreatedAt = createdAt
		role.UpdatedAt = updatedAt
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
