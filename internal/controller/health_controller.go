package controller

import (
	"database/sql"

	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type HealthController struct {
	router   *gin.RouterGroup
	database *sql.DB
}

func NewHealthController(router *gin.RouterGroup, database *sql.DB) *HealthController {
	return &HealthController{
		router:   router,
		database: database,
	}
}

func (controller *HealthController) SetupRoutes() {
	controller.router.GET("/health", controller.healthHandler)
	controller.router.HEAD("/health", controller.healthHandler)
}

func (controller *HealthController) healthHandler(c *gin.Context) {
	if controller.database != nil {
		if err := controller.database.PingContext(c.Request.Context()); err != nil {
			tlog.App.Error().Err(err).Msg("Database ping failed")
			c.JSON(503, gin.H{
				"status":  "error",
				"message": "Database unavailable",
			})
			return
		}
	}

	c.JSON(200, gin.H{
		"status":  "ok",
		"message": "Healthy",
	})
}
