package bootstrap

import (
	"database/sql"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/service"
)

type Services struct {
	authorizationService *service.AuthorizationService
	clientService        *service.ClientService
	providerService      *service.ProviderService
	consentService       *service.ConsentService
}

func (app *BootstrapApp) initServices(db *sql.DB) (Services, error) {
	services := Services{}

	tokens := service.NewRandomTokenGenerator()

	providerService := service.NewProviderService(service.ProviderServiceConfig{
		Database:   db,
		Name:       app.config.Provider.Name,
		EnforceSSL: app.config.Provider.EnforceSSL,
	})

	err := providerService.Init()

	if err != nil {
		return Services{}, err
	}

	services.providerService = providerService

	clientService := service.NewClientService(service.ClientServiceConfig{
		Database:        db,
		Clients:         app.config.Clients,
		LockoutDuration: app.config.OAuth.ClientLockout,
		MaxRetries:      app.config.OAuth.ClientMaxRetries,
	}, tokens)

	err = clientService.Init()

	if err != nil {
		return Services{}, err
	}

	services.clientService = clientService

	authorizationService := service.NewAuthorizationService(service.AuthorizationServiceConfig{
		Database: db,
	}, tokens)

	err = authorizationService.Init()

	if err != nil {
		return Services{}, err
	}

	services.authorizationService = authorizationService

	consentService := service.NewConsentService(service.ConsentServiceConfig{
		Expiry: time.Duration(app.config.OAuth.ConsentExpiry) * time.Second,
	}, tokens)

	err = consentService.Init()

	if err != nil {
		return Services{}, err
	}

	services.consentService = consentService

	return services, nil
}
