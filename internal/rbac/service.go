package rbac

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/pressroom/pressroom/internal/shared"
)

// Store is the persistence surface the Service depends on.
type Store interface {
	FindUser(ctx context.Context, id int64) (*User, error)
	ListRoles(ctx context.Context) ([]Role, error)
	AssignRole(ctx context.Context, userID int64, slug string) error
}

// Service resolves principals and manages role membership.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// LoadUser resolves the session user id into a User. An empty id yields a nil
// user; a user that no longer exists is treated as anonymous.
func (s *Service) LoadUser(ctx context.Context, rawID string) (*User, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, nil
	}
	u, err := s.store.FindUser(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// ValidateRoles loads every role, failing when any row carries a permission
// key outside the known set.
func (s *Service) ValidateRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// AssignRole grants the role identified by slug to userID.
func (s *Service) AssignRole(ctx context.Context, userID int64, slug string) error {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		return errors.New("rbac: role slug required")
	}
	return s.store.AssignRole(ctx, userID, slug)
}
