package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/repository"
	"github.com/steveiliop56/tinyprovider/internal/service"

	"gotest.tools/v3/assert"
)

var alice = model.User{Username: "alice"}
var bob = model.User{Username: "bob"}

func TestCreateCodeIsUniquePerClient(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	first := env.createClient(t, "first")
	second := env.createClient(t, "second")

	env.grantWithCode(t, alice, first, "shared-code")

	// Colliding draws are retried for the same client
	env.tokens.Push("shared-code", "shared-code", "fresh-code")
	code, err := env.authorizations.CreateCode(ctx, first)
	assert.NilError(t, err)
	assert.Equal(t, "fresh-code", code)

	// Another client may hold the same value
	env.tokens.Push("shared-code")
	code, err = env.authorizations.CreateCode(ctx, second)
	assert.NilError(t, err)
	assert.Equal(t, "shared-code", code)

	env.grantWithCode(t, alice, second, code)
}

func TestCreateAccessTokenIsGloballyUnique(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	first := env.createClient(t, "first")
	second := env.createClient(t, "second")

	auth := env.grantWithCode(t, alice, first, "code-1")

	env.tokens.Push("token-1")
	assert.NilError(t, env.authorizations.Exchange(ctx, auth))
	assert.Equal(t, "token-1", auth.AccessToken)

	env.tokens.Push("token-1", "token-1", "token-2")
	token, err := env.authorizations.CreateAccessToken(ctx)
	assert.NilError(t, err)
	assert.Equal(t, "token-2", token)

	// The collision domain covers every client
	other := env.grantWithCode(t, bob, second, "code-2")
	other.AccessToken = "token-1"
	saved, err := env.authorizations.Save(ctx, other)
	assert.NilError(t, err)
	assert.Assert(t, !saved)
	assert.DeepEqual(t, []string{"has already been taken"}, other.Errors.On("access_token"))
}

func TestCreateRefreshTokenIsUniquePerClient(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	client := env.createClient(t, "client")

	auth := env.grantWithCode(t, alice, client, "code")
	auth.RefreshToken = "refresh-1"
	saved, err := env.authorizations.Save(ctx, auth)
	assert.NilError(t, err)
	assert.Assert(t, saved)

	env.tokens.Push("refresh-1", "refresh-2")
	token, err := env.authorizations.CreateRefreshToken(ctx, client)
	assert.NilError(t, err)
	assert.Equal(t, "refresh-2", token)
}

func TestExchange(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	client := env.createClient(t, "client")
	auth := env.grantWithCode(t, alice, client, "one-time-code")

	auth.RefreshToken = "old-refresh"
	saved, err := env.authorizations.Save(ctx, auth)
	assert.NilError(t, err)
	assert.Assert(t, saved)

	err = env.authorizations.Exchange(ctx, auth)
	assert.NilError(t, err)
	assert.Equal(t, "", auth.Code)
	assert.Equal(t, "", auth.RefreshToken)
	assert.Assert(t, auth.AccessToken != "")

	stored, err := env.authorizations.FindByAccessToken(ctx, auth.AccessToken)
	assert.NilError(t, err)
	assert.Equal(t, auth.ID, stored.ID)
	assert.Equal(t, "", stored.Code)
	assert.Equal(t, "", stored.RefreshTokenHash)

	// Storage only holds the digest, loaded grants carry no plaintext
	assert.Equal(t, "", stored.AccessToken)
	assert.Equal(t, model.HashToken(auth.AccessToken), stored.AccessTokenHash)

	var column string
	err = env.db.QueryRowContext(ctx, "SELECT access_token_hash FROM oauth2_authorizations WHERE id = ?", auth.ID).Scan(&column)
	assert.NilError(t, err)
	assert.Assert(t, column != auth.AccessToken)
	assert.Equal(t, model.TokenMaxLength, len(column))

	var matches int
	err = env.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM oauth2_authorizations WHERE access_token_hash = ? OR refresh_token_hash = ?", auth.AccessToken, "old-refresh").Scan(&matches)
	assert.NilError(t, err)
	assert.Equal(t, 0, matches)

	// A consumed code can't be found again
	_, err = env.authorizations.FindByCode(ctx, client, "one-time-code")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = env.authorizations.FindByRefreshToken(ctx, client, "old-refresh")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestExchangeFailsLoudly(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	client := env.createClient(t, "client")
	auth := env.grantWithCode(t, alice, client, "pending-code")

	env.tokens.Push(strings.Repeat("x", model.TokenMaxLength+1))

	err := env.authorizations.Exchange(ctx, auth)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.ErrorContains(t, err, "access_token is too long")

	// Nothing was written
	stored, err := env.authorizations.FindByCode(ctx, client, "pending-code")
	assert.NilError(t, err)
	assert.Equal(t, "", stored.AccessTokenHash)
}

func TestGrantAccessMergesScopes(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	client := env.createClient(t, "client")

	first, err := env.authorizations.GrantAccess(ctx, alice, client, service.GrantOptions{Scopes: []string{"foo", "bar"}})
	assert.NilError(t, err)
	assert.Assert(t, first.Errors.Empty())
	assert.Equal(t, "foo bar", first.Scope)

	second, err := env.authorizations.GrantAccess(ctx, alice, client, service.GrantOptions{Scopes: []string{"bar", "qux"}})
	assert.NilError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "foo bar qux", second.Scope)

	// Repeating the merge changes nothing
	third, err := env.authorizations.GrantAccess(ctx, alice, client, service.GrantOptions{Scopes: []string{"bar", "qux"}})
	assert.NilError(t, err)
	assert.Equal(t, "foo bar qux", third.Scope)

	auths, err := env.authorizations.ListByOwner(ctx, alice)
	assert.NilError(t, err)
	assert.Equal(t, 1, len(auths))
	assert.Equal(t, "foo bar qux", auths[0].Scope)
}

func TestGrantAccessForceNew(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	client := env.createClient(t, "client")

	first, err := env.authorizations.GrantAccess(ctx, alice, client, service.GrantOptions{Scopes: []string{"foo"}})
	assert.NilError(t, err)

	second, err := env.authorizations.GrantAccess(ctx, alice, client, service.GrantOptions{ForceNew: true, Scopes: []string{"bar"}})
	assert.NilError(t, err)
	assert.Assert(t, first.ID != second.ID)
	assert.Equal(t, "bar", second.Scope)

	auths, err := env.authorizations.ListByOwner(ctx, alice)
	assert.NilError(t, err)
	assert.Equal(t, 2, len(auths))
}

func TestGrantAccessDuration(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	env.authorizations.SetClock(func() time.Time { return now })

	client := env.createClient(t, "client")

	auth, err := env.authorizations.GrantAccess(ctx, alice, client, service.GrantOptions{Duration: 60 * time.Second})
	assert.NilError(t, err)
	assert.Equal(t, auth.CreatedAt+60, auth.ExpiresAt)
	assert.Equal(t, int64(1700000060), auth.ExpiresAt)

	// A later grant overwrites the expiry
	now = now.Add(time.Hour)
	auth, err = env.authorizations.GrantAccess(ctx, alice, client, service.GrantOptions{Duration: 30 * time.Second})
	assert.NilError(t, err)
	assert.Equal(t, now.Unix()+30, auth.ExpiresAt)

	// No duration keeps the current expiry
	auth, err = env.authorizations.GrantAccess(ctx, alice, client, service.GrantOptions{})
	assert.NilError(t, err)
	assert.Equal(t, now.Unix()+30, auth.ExpiresAt)
}

func TestGrantAccessReturnsInvalidGrant(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	auth, err := env.authorizations.GrantAccess(ctx, alice, nil, service.GrantOptions{Scopes: []string{"foo"}})
	assert.NilError(t, err)
	assert.Assert(t, auth.IsNew())
	assert.DeepEqual(t, []string{"can't be blank"}, auth.Errors.On("client"))

	client := env.createClient(t, "client")

	auth, err = env.authorizations.GrantAccess(ctx, nil, client, service.GrantOptions{})
	assert.NilError(t, err)
	assert.Assert(t, auth.IsNew())
	assert.DeepEqual(t, []string{"can't be blank"}, auth.Errors.On("owner"))
}

func TestSaveReportsDuplicateCode(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	client := env.createClient(t, "client")
	env.grantWithCode(t, alice, client, "same")

	other, err := env.authorizations.GrantAccess(ctx, bob, client, service.GrantOptions{})
	assert.NilError(t, err)

	other.Code = "same"
	saved, err := env.authorizations.Save(ctx, other)
	assert.NilError(t, err)
	assert.Assert(t, !saved)
	assert.DeepEqual(t, []string{"has already been taken"}, other.Errors.On("code"))
}

func TestGrantsAccessAfterGrant(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	client := env.createClient(t, "client")

	auth, err := env.authorizations.GrantAccess(ctx, alice, client, service.GrantOptions{Scopes: []string{"read", "write"}, Duration: time.Hour})
	assert.NilError(t, err)

	assert.Assert(t, auth.GrantsAccess(alice))
	assert.Assert(t, auth.GrantsAccess(model.User{Username: "alice"}, "read"))
	assert.Assert(t, !auth.GrantsAccess(bob, "read"))
	assert.Assert(t, !auth.GrantsAccess(alice, "admin"))
}

func TestDestroyOwner(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	first := env.createClient(t, "first")
	second := env.createClient(t, "second")

	_, err := env.authorizations.GrantAccess(ctx, alice, first, service.GrantOptions{})
	assert.NilError(t, err)
	_, err = env.authorizations.GrantAccess(ctx, alice, second, service.GrantOptions{})
	assert.NilError(t, err)
	_, err = env.authorizations.GrantAccess(ctx, bob, first, service.GrantOptions{})
	assert.NilError(t, err)

	count, err := env.authorizations.DestroyOwner(ctx, alice)
	assert.NilError(t, err)
	assert.Equal(t, int64(2), count)

	remaining, err := env.authorizations.Count(ctx)
	assert.NilError(t, err)
	assert.Equal(t, int64(1), remaining)

	_, err = env.authorizations.DestroyOwner(ctx, nil)
	assert.ErrorContains(t, err, "owner is required")
}

func TestRevoke(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	first := env.createClient(t, "first")
	second := env.createClient(t, "second")

	_, err := env.authorizations.GrantAccess(ctx, alice, first, service.GrantOptions{})
	assert.NilError(t, err)
	_, err = env.authorizations.GrantAccess(ctx, alice, first, service.GrantOptions{ForceNew: true})
	assert.NilError(t, err)
	_, err = env.authorizations.GrantAccess(ctx, alice, second, service.GrantOptions{})
	assert.NilError(t, err)

	count, err := env.authorizations.Revoke(ctx, alice, first)
	assert.NilError(t, err)
	assert.Equal(t, int64(2), count)

	auths, err := env.authorizations.ListByOwner(ctx, alice)
	assert.NilError(t, err)
	assert.Equal(t, 1, len(auths))
	assert.Equal(t, second.ID, auths[0].ClientID)
}

func TestCleanupExpired(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	env.authorizations.SetClock(func() time.Time { return now })

	client := env.createClient(t, "client")

	_, err := env.authorizations.GrantAccess(ctx, alice, client, service.GrantOptions{Duration: time.Minute})
	assert.NilError(t, err)
	_, err = env.authorizations.GrantAccess(ctx, bob, client, service.GrantOptions{Duration: time.Hour})
	assert.NilError(t, err)
	_, err = env.authorizations.GrantAccess(ctx, model.User{Username: "carol"}, client, service.GrantOptions{})
	assert.NilError(t, err)

	now = now.Add(2 * time.Minute)

	count, err := env.authorizations.CleanupExpired(ctx)
	assert.NilError(t, err)
	assert.Equal(t, int64(1), count)

	remaining, err := env.authorizations.Count(ctx)
	assert.NilError(t, err)
	assert.Equal(t, int64(2), remaining)
}
