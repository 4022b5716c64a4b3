package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressroom/pressroom/internal/shared"
)

type ownedThing struct{ owner int64 }

func (o ownedThing) OwnerID() int64 { return o.owner }

var (
	authorRole = Role{ID: 1, Name: "Author", Slug: RoleAuthor, Permissions: Permissions{PermCreatePost: true}}
	editorRole = Role{ID: 2, Name: "Editor", Slug: RoleEditor, Permissions: Permissions{
		PermUpdatePost:  true,
		PermPublishPost: true,
		PermDeletePost:  true,
	}}
)

func TestAuthorizeCreateNeedsPermission(t *testing.T) {
	author := &User{ID: 10, Roles: []Role{authorRole}}
	editor := &User{ID: 11, Roles: []Role{editorRole}}
	plain := &User{ID: 12}

	assert.True(t, Authorize(author, ActionCreatePost, nil))
	assert.False(t, Authorize(editor, ActionCreatePost, nil))
	assert.False(t, Authorize(plain, ActionCreatePost, nil))
}

func TestAuthorizeOwnerOrPermission(t *testing.T) {
	author := &User{ID: 10, Roles: []Role{authorRole}}
	editor := &User{ID: 11, Roles: []Role{editorRole}}
	own := ownedThing{owner: 10}
	foreign := ownedThing{owner: 99}

	for _, action := range []Action{ActionUpdatePost, ActionPublishPost, ActionDeletePost} {
		t.Run(action.String(), func(t *testing.T) {
			assert.True(t, Authorize(author, action, own), "owner may act on own post")
			assert.False(t, Authorize(author, action, foreign), "author lacks the permission for others' posts")
			assert.True(t, Authorize(editor, action, foreign), "editor holds the permission")
			assert.True(t, Authorize(editor, action, nil), "permission alone without a resource")
			assert.False(t, Authorize(author, action, nil), "no resource means no ownership")
		})
	}
}

func TestAuthorizeNilUserDeniedEverything(t *testing.T) {
	for _, action := range []Action{ActionCreatePost, ActionUpdatePost, ActionPublishPost, ActionDeletePost, ActionSeeAllDrafts} {
		assert.False(t, Authorize(nil, action, ownedThing{owner: 0}), action.String())
	}
}

func TestAuthorizeSeeAllDraftsUsesRoleMembership(t *testing.T) {
	// A role named editor with no flags still grants draft visibility.
	bareEditor := &User{ID: 3, Roles: []Role{{Slug: RoleEditor, Permissions: Permissions{}}}}
	// Full permissions under another slug do not.
	impostor := &User{ID: 4, Roles: []Role{{Slug: "chief", Permissions: editorRole.Permissions}}}

	assert.True(t, Authorize(bareEditor, ActionSeeAllDrafts, nil))
	assert.False(t, Authorize(impostor, ActionSeeAllDrafts, nil))
}

func TestAuthorizeUnknownActionDenied(t *testing.T) {
	editor := &User{ID: 11, Roles: []Role{editorRole, authorRole}}
	assert.False(t, Authorize(editor, Action(99), nil))
	assert.Equal(t, "action(99)", Action(99).String())
}

func TestCheckErrors(t *testing.T) {
	author := &User{ID: 10, Roles: []Role{authorRole}}

	err := Check(nil, ActionCreatePost, nil)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	err = Check(author, ActionDeletePost, ownedThing{owner: 1})
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.False(t, errors.Is(err, shared.ErrNotFound))
	assert.Contains(t, err.Error(), "delete-post")

	require.NoError(t, Check(author, ActionDeletePost, ownedThing{owner: 10}))
}
