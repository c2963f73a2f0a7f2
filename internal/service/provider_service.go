package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/repository"

	"github.com/rs/zerolog/log"
)

type ProviderServiceConfig struct {
	Database   *sql.DB
	Name       string
	EnforceSSL bool
}

// ProviderService holds the single provider of the deployment.
type ProviderService struct {
	config   ProviderServiceConfig
	queries  *repository.Queries
	provider *model.Provider
	mutex    sync.Mutex
}

func NewProviderService(config ProviderServiceConfig) *ProviderService {
	return &ProviderService{
		config: config,
	}
}

func (service *ProviderService) Init() error {
	if service.config.Database == nil {
		return errors.New("provider service requires a database")
	}
	service.queries = repository.New(service.config.Database)
	return nil
}

// Instance returns the provider, creating the row on first access.
// The transport policy always comes from configuration.
func (service *ProviderService) Instance(ctx context.Context) (*model.Provider, error) {
	service.mutex.Lock()
	defer service.mutex.Unlock()

	if service.provider != nil {
		return service.provider, nil
	}

	row, err := service.queries.GetFirstProvider(ctx)

	if errors.Is(err, repository.ErrNotFound) {
		now := time.Now().Unix()
		row, err = service.queries.CreateProvider(ctx, repository.CreateProviderParams{
			Name:      service.providerName(),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err == nil {
			log.Info().Str("name", row.Name).Msg("Created provider")
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load provider: %w", err)
	}

	provider := row.Model()
	provider.EnforceSSL = service.config.EnforceSSL
	service.provider = provider

	return provider, nil
}

func (service *ProviderService) providerName() string {
	if service.config.Name == "" {
		return "Tinyprovider"
	}
	return service.config.Name
}
