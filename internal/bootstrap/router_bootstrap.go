package bootstrap

import (
	"fmt"
	"html/template"

	"github.com/steveiliop56/tinyprovider/internal/assets"
	"github.com/steveiliop56/tinyprovider/internal/controller"
	"github.com/steveiliop56/tinyprovider/internal/middleware"
	"github.com/steveiliop56/tinyprovider/internal/router"
	"github.com/steveiliop56/tinyprovider/internal/utils"

	"github.com/gin-gonic/gin"
)

func (app *BootstrapApp) setupRouter() (*gin.Engine, error) {
	engine := gin.New()
	engine.Use(gin.Recovery())

	trustedProxies, err := utils.ParseTrustedProxies(app.config.Server.TrustedProxies)

	if err != nil {
		return nil, fmt.Errorf("failed to parse trusted proxies: %w", err)
	}

	err = engine.SetTrustedProxies(app.config.Server.TrustedProxies)

	if err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	templates, err := template.ParseFS(assets.Templates, "templates/*.html")

	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	engine.SetHTMLTemplate(templates)

	zerologMiddleware := middleware.NewZerologMiddleware(app.metrics)

	err = zerologMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize zerolog middleware: %w", err)
	}

	engine.Use(zerologMiddleware.Middleware())

	contextMiddleware := middleware.NewContextMiddleware(middleware.ContextMiddlewareConfig{
		OwnerHeader:    app.config.OAuth.OwnerHeader,
		TrustedProxies: trustedProxies,
	})

	err = contextMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize context middleware: %w", err)
	}

	engine.Use(contextMiddleware.Middleware())

	dispatcher := router.NewRouter(app.provider, trustedProxies)

	oauthController := controller.NewOAuthController(controller.OAuthControllerConfig{
		TokenExpiry:  app.config.OAuth.TokenExpiry,
		ProviderName: app.provider.Name,
	}, &engine.RouterGroup, dispatcher, app.services.authorizationService, app.services.clientService, app.services.consentService, app.metrics)

	oauthController.SetupRoutes()

	wellKnownController := controller.NewWellKnownController(controller.WellKnownControllerConfig{
		AppURL: app.config.AppURL,
	}, engine)

	wellKnownController.SetupRoutes()

	apiRouter := engine.Group("/api")

	contextController := controller.NewContextController(controller.ContextControllerConfig{
		ProviderName: app.provider.Name,
		AppURL:       app.config.AppURL,
		EnforceSSL:   app.provider.EnforceSSL,
	}, apiRouter)

	contextController.SetupRoutes()

	resourcesController := controller.NewResourcesController(apiRouter, dispatcher, app.services.authorizationService, app.services.clientService, app.metrics)

	resourcesController.SetupRoutes()

	authorizationsController := controller.NewAuthorizationsController(apiRouter, app.services.authorizationService, app.services.clientService)

	authorizationsController.SetupRoutes()

	healthController := controller.NewHealthController(apiRouter, app.database)

	healthController.SetupRoutes()

	if app.metrics != nil {
		path := app.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(app.metrics.Handler()))
	}

	return engine, nil
}
