package controller

import (
	"net/http"
	"strings"

	"github.com/steveiliop56/tinyprovider/internal/config"

	"github.com/gin-gonic/gin"
)

// AuthorizationServerMetadata follows RFC 8414.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

type WellKnownControllerConfig struct {
	AppURL string
}

type WellKnownController struct {
	config WellKnownControllerConfig
	engine *gin.Engine
}

func NewWellKnownController(config WellKnownControllerConfig, engine *gin.Engine) *WellKnownController {
	return &WellKnownController{
		config: config,
		engine: engine,
	}
}

func (controller *WellKnownController) SetupRoutes() {
	controller.engine.GET("/.well-known/oauth-authorization-server", controller.metadataHandler)
}

func (controller *WellKnownController) metadataHandler(c *gin.Context) {
	baseURL := strings.TrimSuffix(controller.config.AppURL, "/")

	c.JSON(http.StatusOK, AuthorizationServerMetadata{
		Issuer:                            baseURL,
		AuthorizationEndpoint:             baseURL + "/oauth/authorize",
		TokenEndpoint:                     baseURL + "/oauth/token",
		ResponseTypesSupported:            []string{config.ResponseTypeCode, config.ResponseTypeToken},
		GrantTypesSupported:               []string{config.GrantTypeAuthorizationCode, config.GrantTypeRefreshToken},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
	})
}
