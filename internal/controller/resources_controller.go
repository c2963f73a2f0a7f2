package controller

import (
	"errors"
	"net/http"

	"github.com/steveiliop56/tinyprovider/internal/metrics"
	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/repository"
	"github.com/steveiliop56/tinyprovider/internal/router"
	"github.com/steveiliop56/tinyprovider/internal/service"
	"github.com/steveiliop56/tinyprovider/internal/utils"
	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

// ResourcesController lets resource servers check an access token against the scopes they require.
type ResourcesController struct {
	router         *gin.RouterGroup
	dispatcher     *router.Router
	authorizations *service.AuthorizationService
	clients        *service.ClientService
	metrics        *metrics.Metrics
}

func NewResourcesController(router *gin.RouterGroup, dispatcher *router.Router, authorizations *service.AuthorizationService, clients *service.ClientService, metrics *metrics.Metrics) *ResourcesController {
	return &ResourcesController{
		router:         router,
		dispatcher:     dispatcher,
		authorizations: authorizations,
		clients:        clients,
		metrics:        metrics,
	}
}

func (controller *ResourcesController) SetupRoutes() {
	controller.router.GET("/token", controller.tokenHandler)
	controller.router.POST("/token", controller.tokenHandler)
}

func (controller *ResourcesController) tokenHandler(c *gin.Context) {
	scopes := model.ParseScopes(c.Query("scope"))

	dispatch, err := controller.dispatcher.AccessToken(utils.GetOwner(c), scopes, c.Request)

	if err != nil {
		controller.reject(c, http.StatusBadRequest, "invalid_request", "Malformed request")
		return
	}

	if dispatch.Error != nil {
		controller.metrics.RouterError(string(dispatch.Error.Kind))
		controller.reject(c, http.StatusBadRequest, "invalid_request", dispatch.Error.Message)
		return
	}

	if dispatch.Token == "" {
		controller.reject(c, http.StatusUnauthorized, "invalid_request", "Missing access token")
		return
	}

	auth, err := controller.authorizations.FindByAccessToken(c.Request.Context(), dispatch.Token)

	if errors.Is(err, repository.ErrNotFound) {
		controller.reject(c, http.StatusUnauthorized, "invalid_token", "Unknown access token")
		return
	}

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to find authorization")
		controller.reject(c, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	if controller.authorizations.ExpiredNow(auth) {
		controller.reject(c, http.StatusUnauthorized, "invalid_token", "Access token has expired")
		return
	}

	// Without an authenticated owner the token speaks for its own owner
	var candidate model.ResourceOwner = auth.Owner
	if dispatch.Owner != nil {
		candidate = dispatch.Owner
	}

	if !auth.GrantsAccess(candidate, dispatch.Scopes...) {
		controller.reject(c, http.StatusForbidden, "insufficient_scope", "Access token does not grant the requested access")
		return
	}

	client, err := controller.clients.GetClientByID(c.Request.Context(), auth.ClientID)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to get client of authorization")
		controller.reject(c, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	controller.metrics.TokenCheck("granted")

	response := gin.H{
		"owner_type": auth.Owner.Type,
		"owner_id":   auth.Owner.ID,
		"client_id":  client.ClientID,
		"scope":      auth.Scope,
	}

	if auth.ExpiresAt != 0 {
		response["expires_at"] = auth.ExpiresAt
	}

	c.JSON(http.StatusOK, response)
}

func (controller *ResourcesController) reject(c *gin.Context, status int, errorCode string, errorDescription string) {
	controller.metrics.TokenCheck(errorCode)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.Header("WWW-Authenticate", `OAuth realm="tinyprovider", error="`+errorCode+`"`)
	}
	c.JSON(status, gin.H{
		"error":             errorCode,
		"error_description": errorDescription,
	})
}
