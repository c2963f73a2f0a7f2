package utils

import (
	"errors"

	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/model"

	"github.com/gin-gonic/gin"
)

func GetContext(c *gin.Context) (config.OwnerContext, error) {
	ownerContextValue, exists := c.Get("context")

	if !exists {
		return config.OwnerContext{}, errors.New("no owner context in request")
	}

	ownerContext, ok := ownerContextValue.(*config.OwnerContext)

	if !ok {
		return config.OwnerContext{}, errors.New("invalid owner context in request")
	}

	return *ownerContext, nil
}

// GetOwner returns the authenticated resource owner of the request, nil when there is none.
func GetOwner(c *gin.Context) model.ResourceOwner {
	ownerContext, err := GetContext(c)

	if err != nil || !ownerContext.IsAuthenticated {
		return nil
	}

	return model.User{Username: ownerContext.Username}
}
