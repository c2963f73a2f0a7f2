package model

import (
	"strconv"

	"github.com/steveiliop56/tinyprovider/internal/config"
)

// Provider is the single provider record of a deployment. It can own grants itself.
type Provider struct {
	ID         int64
	Name       string
	EnforceSSL bool
	CreatedAt  int64
	UpdatedAt  int64
}

func (p *Provider) OwnerType() string {
	return config.OwnerTypeProvider
}

func (p *Provider) OwnerID() string {
	return strconv.FormatInt(p.ID, 10)
}
