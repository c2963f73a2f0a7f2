package controller

import (
	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/utils"

	"github.com/gin-gonic/gin"
)

type OwnerContextResponse struct {
	Status          int    `json:"status"`
	Message         string `json:"message"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	OwnerType       string `json:"ownerType"`
	Username        string `json:"username"`
}

type AppContextResponse struct {
	Status       int    `json:"status"`
	Message      string `json:"message"`
	ProviderName string `json:"providerName"`
	AppURL       string `json:"appUrl"`
	EnforceSSL   bool   `json:"enforceSsl"`
	Version      string `json:"version"`
}

type ContextControllerConfig struct {
	ProviderName string
	AppURL       string
	EnforceSSL   bool
}

type ContextController struct {
	config ContextControllerConfig
	router *gin.RouterGroup
}

func NewContextController(config ContextControllerConfig, router *gin.RouterGroup) *ContextController {
	return &ContextController{
		config: config,
		router: router,
	}
}

func (controller *ContextController) SetupRoutes() {
	contextGroup := controller.router.Group("/context")
	contextGroup.GET("/owner", controller.ownerContextHandler)
	contextGroup.GET("/app", controller.appContextHandler)
}

func (controller *ContextController) ownerContextHandler(c *gin.Context) {
	context, err := utils.GetContext(c)

	if err != nil || !context.IsAuthenticated {
		c.JSON(200, OwnerContextResponse{
			Status:  401,
			Message: "Unauthorized",
		})
		return
	}

	c.JSON(200, OwnerContextResponse{
		Status:          200,
		Message:         "Success",
		IsAuthenticated: true,
		OwnerType:       config.OwnerTypeUser,
		Username:        context.Username,
	})
}

func (controller *ContextController) appContextHandler(c *gin.Context) {
	c.JSON(200, AppContextResponse{
		Status:       200,
		Message:      "Success",
		ProviderName: controller.config.ProviderName,
		AppURL:       controller.config.AppURL,
		EnforceSSL:   controller.config.EnforceSSL,
		Version:      config.Version,
	})
}
