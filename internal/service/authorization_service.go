package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/repository"

	"github.com/rs/zerolog/log"
)

const msgTaken = "has already been taken"

// GrantOptions tunes GrantAccess. A nil Scopes leaves the scope untouched and a zero Duration
// leaves the expiry untouched.
type GrantOptions struct {
	ForceNew bool
	Scopes   []string
	Duration time.Duration
}

type AuthorizationServiceConfig struct {
	Database *sql.DB
}

type AuthorizationService struct {
	config  AuthorizationServiceConfig
	queries *repository.Queries
	tokens  TokenGenerator
	now     func() time.Time
}

func NewAuthorizationService(config AuthorizationServiceConfig, tokens TokenGenerator) *AuthorizationService {
	return &AuthorizationService{
		config: config,
		tokens: tokens,
		now:    time.Now,
	}
}

func (service *AuthorizationService) Init() error {
	if service.config.Database == nil {
		return errors.New("authorization service requires a database")
	}
	if service.tokens == nil {
		service.tokens = NewRandomTokenGenerator()
	}
	service.queries = repository.New(service.config.Database)
	return nil
}

// SetClock replaces the time source, tests use it to pin timestamps.
func (service *AuthorizationService) SetClock(now func() time.Time) {
	service.now = now
}

// uniqueToken draws until taken reports a free value. The check is advisory,
// the unique indexes decide at write time.
func (service *AuthorizationService) uniqueToken(taken func(string) (bool, error)) (string, error) {
	for {
		token, err := service.tokens.Generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}
		exists, err := taken(token)
		if err != nil {
			return "", fmt.Errorf("failed to check token uniqueness: %w", err)
		}
		if !exists {
			return token, nil
		}
		log.Debug().Msg("Generated token collides with an existing one, drawing again")
	}
}

func (service *AuthorizationService) CreateAccessToken(ctx context.Context) (string, error) {
	return service.createAccessToken(ctx, service.queries)
}

func (service *AuthorizationService) createAccessToken(ctx context.Context, q *repository.Queries) (string, error) {
	return service.uniqueToken(func(token string) (bool, error) {
		return q.AccessTokenExists(ctx, model.HashToken(token), 0)
	})
}

// CreateCode returns a code unused among the grants of client. Other clients may hold the same value.
func (service *AuthorizationService) CreateCode(ctx context.Context, client *model.Client) (string, error) {
	if client == nil {
		return "", errors.New("client is required")
	}
	return service.uniqueToken(func(code string) (bool, error) {
		return service.queries.CodeExistsForClient(ctx, client.ID, code, 0)
	})
}

func (service *AuthorizationService) CreateRefreshToken(ctx context.Context, client *model.Client) (string, error) {
	if client == nil {
		return "", errors.New("client is required")
	}
	return service.uniqueToken(func(token string) (bool, error) {
		return service.queries.RefreshTokenExistsForClient(ctx, client.ID, model.HashToken(token), 0)
	})
}

// Validate runs the field checks and the uniqueness checks, ignoring the record itself.
func (service *AuthorizationService) Validate(ctx context.Context, auth *model.Authorization) (model.ValidationErrors, error) {
	return service.validate(ctx, service.queries, auth)
}

func (service *AuthorizationService) validate(ctx context.Context, q *repository.Queries, auth *model.Authorization) (model.ValidationErrors, error) {
	auth.SyncTokenHashes()

	errs := auth.ValidateFields()

	if auth.Code != "" {
		taken, err := q.CodeExistsForClient(ctx, auth.ClientID, auth.Code, auth.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check code uniqueness: %w", err)
		}
		if taken {
			errs.Add("code", msgTaken)
		}
	}

	if auth.AccessTokenHash != "" {
		taken, err := q.AccessTokenExists(ctx, auth.AccessTokenHash, auth.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check access token uniqueness: %w", err)
		}
		if taken {
			errs.Add("access_token", msgTaken)
		}
	}

	if auth.RefreshTokenHash != "" {
		taken, err := q.RefreshTokenExistsForClient(ctx, auth.ClientID, auth.RefreshTokenHash, auth.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check refresh token uniqueness: %w", err)
		}
		if taken {
			errs.Add("refresh_token", msgTaken)
		}
	}

	return errs, nil
}

// Save validates and persists auth. Validation failures are left in auth.Errors and reported
// as false, the error return is reserved for storage failures.
func (service *AuthorizationService) Save(ctx context.Context, auth *model.Authorization) (bool, error) {
	return service.save(ctx, service.queries, auth, service.now())
}

func (service *AuthorizationService) save(ctx context.Context, q *repository.Queries, auth *model.Authorization, now time.Time) (bool, error) {
	errs, err := service.validate(ctx, q, auth)
	if err != nil {
		return false, err
	}

	auth.Errors = errs

	if !errs.Empty() {
		return false, nil
	}

	var row repository.Oauth2Authorization

	if auth.IsNew() {
		row, err = q.CreateAuthorization(ctx, repository.CreateAuthorizationParams{
			OwnerType:        auth.Owner.Type,
			OwnerID:          auth.Owner.ID,
			ClientID:         auth.ClientID,
			Scope:            auth.Scope,
			Code:             auth.Code,
			AccessTokenHash:  auth.AccessTokenHash,
			RefreshTokenHash: auth.RefreshTokenHash,
			ExpiresAt:        auth.ExpiresAt,
			CreatedAt:        now.Unix(),
			UpdatedAt:        now.Unix(),
		})
	} else {
		row, err = q.UpdateAuthorization(ctx, repository.UpdateAuthorizationParams{
			OwnerType:        auth.Owner.Type,
			OwnerID:          auth.Owner.ID,
			ClientID:         auth.ClientID,
			Scope:            auth.Scope,
			Code:             auth.Code,
			AccessTokenHash:  auth.AccessTokenHash,
			RefreshTokenHash: auth.RefreshTokenHash,
			ExpiresAt:        auth.ExpiresAt,
			UpdatedAt:        now.Unix(),
			ID:               auth.ID,
		})
	}

	if repository.IsUniqueViolation(err) {
		auth.Errors.Add(violatedField(err), msgTaken)
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to save authorization: %w", err)
	}

	auth.ID = row.ID
	auth.CreatedAt = row.CreatedAt
	auth.UpdatedAt = row.UpdatedAt

	return true, nil
}

// sqlite names the violated columns, e.g. "UNIQUE constraint failed: oauth2_authorizations.client_id, oauth2_authorizations.code".
// The hash columns report under the token field name.
func violatedField(err error) string {
	msg := err.Error()
	for _, field := range []string{"refresh_token", "access_token", "code"} {
		if strings.Contains(msg, "."+field) {
			return field
		}
	}
	return "base"
}

// Exchange moves a pending grant to issued: a fresh access token is assigned and the code and
// refresh token are cleared. Only the hash of the token is stored, auth.AccessToken holds the plaintext. Unlike Save, an invalid result is returned as an error and nothing is written.
func (service *AuthorizationService) Exchange(ctx context.Context, auth *model.Authorization) error {
	token, err := service.createAccessToken(ctx, service.queries)
	if err != nil {
		return err
	}

	auth.AccessToken = token
	auth.Code = ""
	auth.RefreshToken = ""
	auth.RefreshTokenHash = ""

	saved, err := service.save(ctx, service.queries, auth, service.now())
	if err != nil {
		return err
	}

	if !saved {
		return fmt.Errorf("failed to exchange authorization: %w", auth.Errors)
	}

	return nil
}

// GrantAccess finds or creates the grant of owner for client and applies opts. The grant is
// returned even when it failed validation, callers inspect auth.Errors.
func (service *AuthorizationService) GrantAccess(ctx context.Context, owner model.ResourceOwner, client *model.Client, opts GrantOptions) (*model.Authorization, error) {
	tx, err := service.config.Database.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := service.queries.WithTx(tx)
	now := service.now()

	var auth *model.Authorization

	ref := model.RefOf(owner)

	if !opts.ForceNew && client != nil && !ref.IsZero() {
		row, err := q.FindAuthorizationByOwnerAndClient(ctx, ref.Type, ref.ID, client.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to find authorization: %w", err)
		}
		if err == nil {
			auth = row.Model()
		}
	}

	if auth == nil {
		auth = model.NewAuthorization(owner, client)
	}

	if opts.Scopes != nil {
		auth.MergeScopes(opts.Scopes...)
	}

	if opts.Duration != 0 {
		auth.ExpiresIn(opts.Duration, now)
	}

	saved, err := service.save(ctx, q, auth, now)
	if err != nil {
		return nil, err
	}

	if saved {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	return auth, nil
}

// FindByOwnerAndClient returns the grant owner already holds for client.
func (service *AuthorizationService) FindByOwnerAndClient(ctx context.Context, owner model.ResourceOwner, client *model.Client) (*model.Authorization, error) {
	ref := model.RefOf(owner)
	row, err := service.queries.FindAuthorizationByOwnerAndClient(ctx, ref.Type, ref.ID, client.ID)
	if err != nil {
		return nil, err
	}
	return row.Model(), nil
}

func (service *AuthorizationService) FindByAccessToken(ctx context.Context, token string) (*model.Authorization, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	row, err := service.queries.FindAuthorizationByAccessToken(ctx, model.HashToken(token))
	if err != nil {
		return nil, err
	}
	return row.Model(), nil
}

func (service *AuthorizationService) FindByCode(ctx context.Context, client *model.Client, code string) (*model.Authorization, error) {
	row, err := service.queries.FindAuthorizationByClientAndCode(ctx, client.ID, code)
	if err != nil {
		return nil, err
	}
	return row.Model(), nil
}

func (service *AuthorizationService) FindByRefreshToken(ctx context.Context, client *model.Client, token string) (*model.Authorization, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	row, err := service.queries.FindAuthorizationByClientAndRefreshToken(ctx, client.ID, model.HashToken(token))
	if err != nil {
		return nil, err
	}
	return row.Model(), nil
}

func (service *AuthorizationService) ListByOwner(ctx context.Context, owner model.ResourceOwner) ([]*model.Authorization, error) {
	ref := model.RefOf(owner)
	rows, err := service.queries.ListAuthorizationsByOwner(ctx, ref.Type, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorizations: %w", err)
	}
	auths := make([]*model.Authorization, 0, len(rows))
	for _, row := range rows {
		auths = append(auths, row.Model())
	}
	return auths, nil
}

func (service *AuthorizationService) ListByClient(ctx context.Context, client *model.Client) ([]*model.Authorization, error) {
	rows, err := service.queries.ListAuthorizationsByClient(ctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorizations: %w", err)
	}
	auths := make([]*model.Authorization, 0, len(rows))
	for _, row := range rows {
		auths = append(auths, row.Model())
	}
	return auths, nil
}

// Revoke destroys every grant owner holds for client.
func (service *AuthorizationService) Revoke(ctx context.Context, owner model.ResourceOwner, client *model.Client) (int64, error) {
	ref := model.RefOf(owner)
	count, err := service.queries.DeleteAuthorizationsByOwnerAndClient(ctx, ref.Type, ref.ID, client.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke authorizations: %w", err)
	}
	return count, nil
}

// DestroyOwner removes all grants of owner. Call it whenever an owner is deleted.
func (service *AuthorizationService) DestroyOwner(ctx context.Context, owner model.ResourceOwner) (int64, error) {
	ref := model.RefOf(owner)
	if ref.IsZero() {
		return 0, errors.New("owner is required")
	}
	count, err := service.queries.DeleteAuthorizationsByOwner(ctx, ref.Type, ref.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to destroy owner authorizations: %w", err)
	}
	return count, nil
}

func (service *AuthorizationService) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := service.queries.DeleteExpiredAuthorizations(ctx, service.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired authorizations: %w", err)
	}
	return count, nil
}

func (service *AuthorizationService) Count(ctx context.Context) (int64, error) {
	return service.queries.CountAuthorizations(ctx)
}

// ExpiredNow uses the service clock so tests with a pinned clock see consistent expiry.
func (service *AuthorizationService) ExpiredNow(auth *model.Authorization) bool {
	return auth.ExpiredAt(service.now())
}
