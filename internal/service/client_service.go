package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/repository"
	"github.com/steveiliop56/tinyprovider/internal/utils"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type ClientAttempt struct {
	FailedAttempts int
	LastAttempt    time.Time
	LockedUntil    time.Time
}

// ClientInput describes a client to register. Empty ClientID and ClientSecret are generated.
type ClientInput struct {
	Name         string
	RedirectURI  string
	Owner        model.ResourceOwner
	ClientID     string
	ClientSecret string
}

type ClientServiceConfig struct {
	Database        *sql.DB
	Clients         map[string]config.ClientConfig
	LockoutDuration int
	MaxRetries      int
}

type ClientService struct {
	config        ClientServiceConfig
	queries       *repository.Queries
	tokens        TokenGenerator
	cache         *cache.Cache
	attempts      *cache.Cache
	attemptsMutex sync.Mutex
}

func NewClientService(config ClientServiceConfig, tokens TokenGenerator) *ClientService {
	return &ClientService{
		config:   config,
		tokens:   tokens,
	}
}

func (service *ClientService) Init() error {
	if service.config.Database == nil {
		return errors.New("client service requires a database")
	}

	if service.tokens == nil {
		service.tokens = NewRandomTokenGenerator()
	}

	service.queries = repository.New(service.config.Database)
	service.cache = cache.New(5*time.Minute, 10*time.Minute)
	service.attempts = cache.New(service.attemptTTL(), time.Minute)

	return service.SyncClientsFromConfig(context.Background())
}

// CreateClientID draws uuid candidates until one is not registered yet.
func (service *ClientService) CreateClientID(ctx context.Context) (string, error) {
	for {
		candidate := uuid.NewString()
		exists, err := service.queries.ClientIDExists(ctx, candidate, 0)
		if err != nil {
			return "", fmt.Errorf("failed to check client id uniqueness: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
}

// Create registers a client. The returned client carries the plaintext secret, it is never readable again.
// Validation failures are left in client.Errors.
func (service *ClientService) Create(ctx context.Context, input ClientInput) (*model.Client, error) {
	client := &model.Client{
		ClientID:     input.ClientID,
		ClientSecret: input.ClientSecret,
		Name:         input.Name,
		RedirectURI:  input.RedirectURI,
		Owner:        model.RefOf(input.Owner),
	}

	var err error

	if client.ClientID == "" {
		client.ClientID, err = service.CreateClientID(ctx)
		if err != nil {
			return nil, err
		}
	}

	if client.ClientSecret == "" {
		client.ClientSecret, err = service.tokens.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate client secret: %w", err)
		}
	}

	client.Errors = client.ValidateFields()

	exists, err := service.queries.ClientIDExists(ctx, client.ClientID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check client id uniqueness: %w", err)
	}
	if exists {
		client.Errors.Add("client_id", msgTaken)
	}

	if !client.Errors.Empty() {
		return client, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(client.ClientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash client secret: %w", err)
	}

	now := time.Now().Unix()

	row, err := service.queries.CreateClient(ctx, repository.CreateClientParams{
		ClientID:         client.ClientID,
		ClientSecretHash: string(hash),
		Name:             client.Name,
		RedirectUri:      client.RedirectURI,
		OwnerType:        client.Owner.Type,
		OwnerID:          client.Owner.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	})

	if repository.IsUniqueViolation(err) {
		client.Errors.Add("client_id", msgTaken)
		return client, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	secret := client.ClientSecret
	client = row.Model()
	client.ClientSecret = secret

	return client, nil
}

func (service *ClientService) GetClient(ctx context.Context, clientID string) (*model.Client, error) {
	if cached, ok := service.cache.Get(clientID); ok {
		client := *cached.(*model.Client)
		return &client, nil
	}

	row, err := service.queries.GetClientByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	client := row.Model()
	service.cache.SetDefault(clientID, client)

	copied := *client
	return &copied, nil
}

func (service *ClientService) GetClientByID(ctx context.Context, id int64) (*model.Client, error) {
	row, err := service.queries.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	return row.Model(), nil
}

func (service *ClientService) ListClients(ctx context.Context) ([]*model.Client, error) {
	rows, err := service.queries.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	clients := make([]*model.Client, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, row.Model())
	}
	return clients, nil
}

func (service *ClientService) ValidClientSecret(client *model.Client, secret string) bool {
	if client == nil || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(secret)) == nil
}

func (service *ClientService) ValidRedirectURI(client *model.Client, redirectURI string) bool {
	for _, uri := range client.RedirectURIs() {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

// DefaultRedirectURI is only defined when the client registered exactly one redirect URI.
func (service *ClientService) DefaultRedirectURI(client *model.Client) (string, bool) {
	uris := client.RedirectURIs()
	if len(uris) != 1 {
		return "", false
	}
	return uris[0], true
}

// Destroy deletes the client together with all of its grants and returns the number of grants removed.
func (service *ClientService) Destroy(ctx context.Context, client *model.Client) (int64, error) {
	tx, err := service.config.Database.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := service.queries.WithTx(tx)

	count, err := q.DeleteAuthorizationsByClient(ctx, client.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete client authorizations: %w", err)
	}

	if err := q.DeleteClient(ctx, client.ID); err != nil {
		return 0, fmt.Errorf("failed to delete client: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	service.cache.Delete(client.ClientID)

	return count, nil
}

// SyncClientsFromConfig creates missing configured clients and updates the name, redirect URIs and secret of existing ones.
func (service *ClientService) SyncClientsFromConfig(ctx context.Context) error {
	for name, cfg := range service.config.Clients {
		secret := utils.GetSecret(cfg.ClientSecret, cfg.ClientSecretFile)

		if cfg.ClientID == "" || secret == "" {
			log.Warn().Str("client", name).Msg("Configured client is missing a client id or secret, skipping")
			continue
		}

		displayName := cfg.Name
		if displayName == "" {
			displayName = utils.Capitalize(name)
		}

		redirectURI := utils.JoinLines(cfg.RedirectURIs)

		_, err := service.queries.GetClientByClientID(ctx, cfg.ClientID)

		if errors.Is(err, repository.ErrNotFound) {
			client, err := service.Create(ctx, ClientInput{
				Name:         displayName,
				RedirectURI:  redirectURI,
				ClientID:     cfg.ClientID,
				ClientSecret: secret,
			})
			if err != nil {
				return fmt.Errorf("failed to create configured client %s: %w", name, err)
			}
			if !client.Errors.Empty() {
				return fmt.Errorf("invalid configured client %s: %w", name, client.Errors)
			}
			log.Info().Str("client", name).Str("clientId", cfg.ClientID).Msg("Created configured client")
			continue
		}

		if err != nil {
			return fmt.Errorf("failed to get configured client %s: %w", name, err)
		}

		candidate := &model.Client{Name: displayName, RedirectURI: redirectURI}
		if errs := candidate.ValidateFields(); !errs.Empty() {
			return fmt.Errorf("invalid configured client %s: %w", name, errs)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash client secret: %w", err)
		}

		_, err = service.queries.UpdateClient(ctx, repository.UpdateClientParams{
			ClientSecretHash: string(hash),
			Name:             displayName,
			RedirectUri:      redirectURI,
			UpdatedAt:        time.Now().Unix(),
			ClientID:         cfg.ClientID,
		})
		if err != nil {
			return fmt.Errorf("failed to update configured client %s: %w", name, err)
		}

		service.cache.Delete(cfg.ClientID)
		log.Debug().Str("client", name).Msg("Updated configured client")
	}

	return nil
}

// attemptTTL bounds how long failures are remembered after the last one.
func (service *ClientService) attemptTTL() time.Duration {
	if service.config.LockoutDuration <= 0 {
		return time.Minute
	}
	return 2 * time.Duration(service.config.LockoutDuration) * time.Second
}

func (service *ClientService) lockoutEnabled() bool {
	return service.config.MaxRetries > 0 && service.config.LockoutDuration > 0
}

func (service *ClientService) IsClientLocked(clientID string) (bool, int) {
	if !service.lockoutEnabled() {
		return false, 0
	}

	service.attemptsMutex.Lock()
	defer service.attemptsMutex.Unlock()

	cached, exists := service.attempts.Get(clientID)
	if !exists {
		return false, 0
	}

	attempt := cached.(ClientAttempt)
	if attempt.LockedUntil.After(time.Now()) {
		remaining := int(time.Until(attempt.LockedUntil).Seconds())
		return true, remaining
	}

	return false, 0
}

// RecordClientAttempt tracks failures of a registered client id. Success clears them.
func (service *ClientService) RecordClientAttempt(clientID string, success bool) {
	if !service.lockoutEnabled() {
		return
	}

	service.attemptsMutex.Lock()
	defer service.attemptsMutex.Unlock()

	if success {
		service.attempts.Delete(clientID)
		return
	}

	attempt := ClientAttempt{}
	if cached, exists := service.attempts.Get(clientID); exists {
		attempt = cached.(ClientAttempt)
	}

	attempt.LastAttempt = time.Now()
	attempt.FailedAttempts++

	if attempt.FailedAttempts >= service.config.MaxRetries {
		attempt.LockedUntil = time.Now().Add(time.Duration(service.config.LockoutDuration) * time.Second)
		log.Warn().Str("clientId", clientID).Int("timeout", service.config.LockoutDuration).Msg("Client locked due to too many failed authentications")
	}

	service.attempts.Set(clientID, attempt, cache.DefaultExpiration)
}

// TrackedClients reports how many client ids currently have failures recorded.
func (service *ClientService) TrackedClients() int {
	return service.attempts.ItemCount()
}

// Authenticate checks the secret of clientID with lockout accounting.
func (service *ClientService) Authenticate(ctx context.Context, clientID string, secret string) (*model.Client, error) {
	if locked, remaining := service.IsClientLocked(clientID); locked {
		return nil, fmt.Errorf("%w: retry in %d seconds", ErrClientLocked, remaining)
	}

	client, err := service.GetClient(ctx, clientID)

	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidClient
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if !service.ValidClientSecret(client, secret) {
		service.RecordClientAttempt(clientID, false)
		return nil, ErrInvalidClient
	}

	service.RecordClientAttempt(clientID, true)
	return client, nil
}

var (
	ErrInvalidClient = errors.New("invalid client credentials")
	ErrClientLocked  = errors.New("client is locked")
)
