package controller

import (
	"errors"
	"net/http"

	"github.com/steveiliop56/tinyprovider/internal/repository"
	"github.com/steveiliop56/tinyprovider/internal/service"
	"github.com/steveiliop56/tinyprovider/internal/utils"
	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type AuthorizationView struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
	Scope      string `json:"scope"`
	Issued     bool   `json:"issued"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
}

// AuthorizationsController lets the authenticated owner list and revoke their grants.
type AuthorizationsController struct {
	router         *gin.RouterGroup
	authorizations *service.AuthorizationService
	clients        *service.ClientService
}

func NewAuthorizationsController(router *gin.RouterGroup, authorizations *service.AuthorizationService, clients *service.ClientService) *AuthorizationsController {
	return &AuthorizationsController{
		router:         router,
		authorizations: authorizations,
		clients:        clients,
	}
}

func (controller *AuthorizationsController) SetupRoutes() {
	authorizationsGroup := controller.router.Group("/authorizations")
	authorizationsGroup.GET("", controller.listHandler)
	authorizationsGroup.DELETE("/:clientId", controller.revokeHandler)
}

func (controller *AuthorizationsController) listHandler(c *gin.Context) {
	owner := utils.GetOwner(c)

	if owner == nil {
		c.JSON(401, gin.H{
			"status":  401,
			"message": "Unauthorized",
		})
		return
	}

	auths, err := controller.authorizations.ListByOwner(c.Request.Context(), owner)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to list authorizations")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	views := make([]AuthorizationView, 0, len(auths))

	for _, auth := range auths {
		client, err := controller.clients.GetClientByID(c.Request.Context(), auth.ClientID)
		if err != nil {
			tlog.App.Warn().Err(err).Int64("clientId", auth.ClientID).Msg("Skipping authorization with unknown client")
			continue
		}
		views = append(views, AuthorizationView{
			ClientID:   client.ClientID,
			ClientName: client.Name,
			Scope:      auth.Scope,
			Issued:     auth.HasAccessToken(),
			ExpiresAt:  auth.ExpiresAt,
			CreatedAt:  auth.CreatedAt,
		})
	}

	c.JSON(200, gin.H{
		"status":         200,
		"authorizations": views,
	})
}

func (controller *AuthorizationsController) revokeHandler(c *gin.Context) {
	owner := utils.GetOwner(c)

	if owner == nil {
		c.JSON(401, gin.H{
			"status":  401,
			"message": "Unauthorized",
		})
		return
	}

	clientID := c.Param("clientId")

	client, err := controller.clients.GetClient(c.Request.Context(), clientID)

	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(404, gin.H{
			"status":  404,
			"message": "Client not found",
		})
		return
	}

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to get client")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	count, err := controller.authorizations.Revoke(c.Request.Context(), owner, client)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to revoke authorizations")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	tlog.AuditRevoke(c, owner.OwnerID(), client.ClientID, count)

	c.JSON(http.StatusOK, gin.H{
		"status":  200,
		"message": "Revoked",
		"count":   count,
	})
}
