package rbac

import (
	"fmt"

	"github.com/pressroom/pressroom/internal/shared"
)

// Action names something a user may attempt.
type Action int

const (
	ActionCreatePost Action = iota + 1
	ActionUpdatePost
	ActionPublishPost
	ActionDeletePost
	ActionSeeAllDrafts
)

func (a Action) String() string {
	switch a {
	case ActionCreatePost:
		return "create-post"
	case ActionUpdatePost:
		return "update-post"
	case ActionPublishPost:
		return "publish-post"
	case ActionDeletePost:
		return "delete-post"
	case ActionSeeAllDrafts:
		return "see-all-drafts"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Owned is implemented by resources that belong to a user.
type Owned interface {
	OwnerID() int64
}

// rule decides an action for a non-nil user. res may be nil.
type rule func(u *User, res Owned) bool

func permissionRule(p Permission) rule {
	return func(u *User, _ Owned) bool {
		return u.HasAccess(p)
	}
}

func ownerOrPermission(p Permission) rule {
	return func(u *User, res Owned) bool {
		if res != nil && res.OwnerID() == u.ID {
			return true
		}
		return u.HasAccess(p)
	}
}

func roleRule(slug string) rule {
	return func(u *User, _ Owned) bool {
		return u.InRole(slug)
	}
}

var rules = map[Action]rule{
	ActionCreatePost:   permissionRule(PermCreatePost),
	ActionUpdatePost:   ownerOrPermission(PermUpdatePost),
	ActionPublishPost:  ownerOrPermission(PermPublishPost),
	ActionDeletePost:   ownerOrPermission(PermDeletePost),
	ActionSeeAllDrafts: roleRule(RoleEditor),
}

// Authorize reports whether u may perform a on res. Anonymous users and
// unknown actions are always denied.
func Authorize(u *User, a Action, res Owned) bool {
	if u == nil {
		return false
	}
	check, ok := rules[a]
	if !ok {
		return false
	}
	return check(u, res)
}

// Check is Authorize expressed as an error: ErrUnauthenticated for a nil
// user, ErrForbidden when the rule denies.
func Check(u *User, a Action, res Owned) error {
	if u == nil {
		return shared.ErrUnauthenticated
	}
	if !Authorize(u, a, res) {
		return fmt.Errorf("rbac: %s: %w", a, shared.ErrForbidden)
	}
	return nil
}
