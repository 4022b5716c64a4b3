package rbac

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Permission is one of the fixed capability keys a role may grant.
type Permission string

const (
	PermCreatePost  Permission = "create-post"
	PermUpdatePost  Permission = "update-post"
	PermPublishPost Permission = "publish-post"
	PermDeletePost  Permission = "delete-post"
)

// ErrUnknownPermission is returned when stored role data names a key outside
// the known permission set.
var ErrUnknownPermission = errors.New("rbac: unknown permission")

var knownPermissions = map[Permission]struct{}{
	PermCreatePost:  {},
	PermUpdatePost:  {},
	PermPublishPost: {},
	PermDeletePost:  {},
}

// Valid reports whether p is part of the known permission set.
func (p Permission) Valid() bool {
	_, ok := knownPermissions[p]
	return ok
}

// Permissions maps permission keys to grants. Absent keys are denied.
type Permissions map[Permission]bool

// Granted looks up p, treating a missing key as false.
func (ps Permissions) Granted(p Permission) bool {
	return ps[p]
}

// DecodePermissions parses the JSON object stored on a role row.
func DecodePermissions(raw []byte) (Permissions, error) {
	perms := Permissions{}
	if len(raw) == 0 {
		return perms, nil
	}
	var decoded map[string]bool
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("rbac: decode permissions: %w", err)
	}
	for key, granted := range decoded {
		p := Permission(key)
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPermission, key)
		}
		perms[p] = granted
	}
	return perms, nil
}

// Role slugs referenced by code.
const (
	RoleAuthor = "author"
	RoleEditor = "editor"
)

// Role groups permission grants under a name.
type Role struct {
	ID          int64
	Name        string
	Slug        string
	Permissions Permissions
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasAccess reports whether the role grants p.
func (r Role) HasAccess(p Permission) bool {
	return r.Permissions.Granted(p)
}

// User is the authenticated principal together with its roles.
type User struct {
	ID    int64
	Name  string
	Email string
	Roles []Role
}

// HasAccess is true when any of the user's roles grants p.
func (u *User) HasAccess(p Permission) bool {
	if u == nil {
		return false
	}
	for _, role := range u.Roles {
		if role.HasAccess(p) {
			return true
		}
	}
	return false
}

// InRole reports membership of the role identified by slug.
func (u *User) InRole(slug string) bool {
	if u == nil {
		return false
	}
	for _, role := range u.Roles {
		if role.Slug == slug {
			return true
		}
	}
	return false
}
