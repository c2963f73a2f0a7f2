package model_test

import (
	"testing"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/model"

	"gotest.tools/v3/assert"
)

var (
	owner  = model.User{Username: "alice"}
	user   = model.User{Username: "bob"}
	client = &model.Client{ID: 1, ClientID: "some-client-id"}
)

func TestAuthorizationValidateFields(t *testing.T) {
	auth := model.NewAuthorization(owner, client)
	assert.Assert(t, auth.ValidateFields().Empty())

	// Missing client
	auth = model.NewAuthorization(owner, nil)
	errs := auth.ValidateFields()
	assert.DeepEqual(t, []string{"can't be blank"}, errs.On("client"))

	// Missing owner
	auth = model.NewAuthorization(nil, client)
	errs = auth.ValidateFields()
	assert.DeepEqual(t, []string{"can't be blank"}, errs.On("owner"))
	assert.ErrorIs(t, errs.Err(), model.ErrValidation)

	// Token over the stored width
	auth = model.NewAuthorization(owner, client)
	auth.AccessToken = "0123456789012345678901234567890123456789x"
	errs = auth.ValidateFields()
	assert.DeepEqual(t, []string{"is too long"}, errs.On("access_token"))
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, "", model.HashToken(""))
	assert.Equal(t, "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3", model.HashToken("test"))
	assert.Equal(t, model.TokenMaxLength, len(model.HashToken("anything")))

	auth := &model.Authorization{AccessToken: "access", RefreshToken: "refresh", AccessTokenHash: "stale"}
	auth.SyncTokenHashes()
	assert.Equal(t, model.HashToken("access"), auth.AccessTokenHash)
	assert.Equal(t, model.HashToken("refresh"), auth.RefreshTokenHash)
	assert.Assert(t, auth.HasAccessToken())

	// Loaded grants keep their stored hash
	loaded := &model.Authorization{AccessTokenHash: "stored"}
	loaded.SyncTokenHashes()
	assert.Equal(t, "stored", loaded.AccessTokenHash)
	assert.Assert(t, loaded.HasAccessToken())
	assert.Assert(t, !(&model.Authorization{}).HasAccessToken())
}

func TestAuthorizationScopes(t *testing.T) {
	auth := model.NewAuthorization(owner, client)
	assert.Equal(t, 0, len(auth.Scopes()))

	auth.Scope = "foo bar"

	// Authorized scopes
	assert.Assert(t, auth.InScope("foo"))
	assert.Assert(t, auth.InScope("bar"))

	// Unauthorized scopes, including prefixes
	assert.Assert(t, !auth.InScope("qux"))
	assert.Assert(t, !auth.InScope("fo"))

	// Duplicates are dropped, first occurrence wins
	auth.Scope = "foo  bar foo\tbaz"
	assert.DeepEqual(t, model.ScopeSet{"foo", "bar", "baz"}, auth.Scopes())
}

func TestAuthorizationMergeScopes(t *testing.T) {
	auth := model.NewAuthorization(owner, client)
	auth.Scope = "foo bar"

	auth.MergeScopes("qux")
	assert.Equal(t, "foo bar qux", auth.Scope)

	// Merging again is idempotent
	auth.MergeScopes("qux")
	assert.Equal(t, "foo bar qux", auth.Scope)

	// Existing tokens keep their position
	auth.MergeScopes("bar", "a")
	assert.Equal(t, "foo bar qux a", auth.Scope)
}

func TestAuthorizationExpired(t *testing.T) {
	auth := model.NewAuthorization(owner, client)

	// No expiry set
	assert.Assert(t, !auth.Expired())

	// Expiry in the future
	auth.ExpiresIn(48*time.Hour, time.Now())
	assert.Assert(t, !auth.Expired())

	// Expiry in the past
	auth.ExpiresIn(-48*time.Hour, time.Now())
	assert.Assert(t, auth.Expired())
}

func TestAuthorizationGrantsAccess(t *testing.T) {
	auth := model.NewAuthorization(owner, client)

	// Right and wrong owner
	assert.Assert(t, auth.GrantsAccess(owner))
	assert.Assert(t, !auth.GrantsAccess(user))
	assert.Assert(t, !auth.GrantsAccess(nil))

	// Identity is the owner reference, not the concrete value
	assert.Assert(t, auth.GrantsAccess(model.OwnerRef{Type: "user", ID: "alice"}))
	assert.Assert(t, !auth.GrantsAccess(model.OwnerRef{Type: "provider", ID: "alice"}))

	auth.Scope = "foo bar"

	assert.Assert(t, auth.GrantsAccess(owner, "foo", "bar"))
	assert.Assert(t, auth.GrantsAccess(owner, "bar"))
	assert.Assert(t, !auth.GrantsAccess(owner, "foo", "bar", "qux"))
	assert.Assert(t, !auth.GrantsAccess(owner, "qux"))
	assert.Assert(t, !auth.GrantsAccess(user, "foo"))

	// Expired grants never give access
	auth.ExpiresIn(-48*time.Hour, time.Now())
	assert.Assert(t, !auth.GrantsAccess(owner))
	assert.Assert(t, !auth.GrantsAccess(owner, "foo"))
	assert.Assert(t, !auth.GrantsAccess(user))
}
