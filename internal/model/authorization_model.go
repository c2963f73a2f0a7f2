package model

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Stored width of codes and tokens.
const TokenMaxLength = 40

// HashToken is the stored form of an access or refresh token, a 40 character sha1 hex digest.
func HashToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha1.Sum([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Authorization is a grant linking one resource owner to one client.
// AccessToken and RefreshToken hold plaintext only right after they are issued, storage keeps
// their hashes. Empty values mean NULL in storage and ExpiresAt of 0 means the grant never expires.
type Authorization struct {
	ID               int64
	Owner            OwnerRef
	ClientID         int64
	Scope            string
	Code             string
	AccessToken      string
	AccessTokenHash  string
	RefreshToken     string
	RefreshTokenHash string
	ExpiresAt        int64
	CreatedAt        int64
	UpdatedAt        int64
	Errors           ValidationErrors
}

func NewAuthorization(owner ResourceOwner, client *Client) *Authorization {
	auth := &Authorization{Owner: RefOf(owner)}
	if client != nil {
		auth.ClientID = client.ID
	}
	return auth
}

// SyncTokenHashes recomputes the hashes of any plaintext token held in memory.
func (a *Authorization) SyncTokenHashes() {
	if a.AccessToken != "" {
		a.AccessTokenHash = HashToken(a.AccessToken)
	}
	if a.RefreshToken != "" {
		a.RefreshTokenHash = HashToken(a.RefreshToken)
	}
}

// HasAccessToken reports whether an access token was ever issued for the grant.
func (a *Authorization) HasAccessToken() bool {
	return a.AccessToken != "" || a.AccessTokenHash != ""
}

func (a *Authorization) IsNew() bool {
	return a.ID == 0
}

func (a *Authorization) Scopes() ScopeSet {
	return ParseScopes(a.Scope)
}

func (a *Authorization) InScope(token string) bool {
	return a.Scopes().Contains(token)
}

// MergeScopes adds tokens to the scope, keeping existing order. Merging the same tokens twice is a no-op.
func (a *Authorization) MergeScopes(tokens ...string) {
	a.Scope = a.Scopes().Merge(tokens...).String()
}

func (a *Authorization) ExpiresIn(duration time.Duration, now time.Time) {
	a.ExpiresAt = now.Add(duration).Unix()
}

func (a *Authorization) Expired() bool {
	return a.ExpiredAt(time.Now())
}

func (a *Authorization) ExpiredAt(now time.Time) bool {
	if a.ExpiresAt == 0 {
		return false
	}
	return time.Unix(a.ExpiresAt, 0).Before(now)
}

// GrantsAccess reports whether the grant is live, belongs to owner and covers every required scope.
func (a *Authorization) GrantsAccess(owner ResourceOwner, scopes ...string) bool {
	if a.Expired() {
		return false
	}
	if !SameOwner(a.Owner, owner) {
		return false
	}
	return a.Scopes().ContainsAll(scopes...)
}

// ValidateFields runs the checks that need no storage access.
func (a *Authorization) ValidateFields() ValidationErrors {
	errs := ValidationErrors{}
	if a.ClientID == 0 {
		errs.Add("client", "can't be blank")
	}
	if a.Owner.IsZero() {
		errs.Add("owner", "can't be blank")
	}
	tokens := []struct {
		field string
		value string
	}{
		{"code", a.Code},
		{"access_token", a.AccessToken},
		{"refresh_token", a.RefreshToken},
	}
	for _, t := range tokens {
		if len(t.value) > TokenMaxLength {
			errs.Add(t.field, "is too long")
		}
	}
	return errs
}
