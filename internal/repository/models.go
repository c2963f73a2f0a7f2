package repository

import (
	"database/sql"

	"github.com/steveiliop56/tinyprovider/internal/model"
)

type Oauth2Client struct {
	ID               int64
	ClientID         string
	ClientSecretHash string
	Name             string
	RedirectUri      string
	OwnerType        sql.NullString
	OwnerID          sql.NullString
	CreatedAt        int64
	UpdatedAt        int64
}

func (c Oauth2Client) Model() *model.Client {
	return &model.Client{
		ID:               c.ID,
		ClientID:         c.ClientID,
		ClientSecretHash: c.ClientSecretHash,
		Name:             c.Name,
		RedirectURI:      c.RedirectUri,
		Owner:            model.OwnerRef{Type: c.OwnerType.String, ID: c.OwnerID.String},
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

type Oauth2Authorization struct {
	ID               int64
	OwnerType        string
	OwnerID          string
	ClientID         int64
	Scope            string
	Code             sql.NullString
	AccessTokenHash  sql.NullString
	RefreshTokenHash sql.NullString
	ExpiresAt        sql.NullInt64
	CreatedAt        int64
	UpdatedAt        int64
}

func (a Oauth2Authorization) Model() *model.Authorization {
	return &model.Authorization{
		ID:               a.ID,
		Owner:            model.OwnerRef{Type: a.OwnerType, ID: a.OwnerID},
		ClientID:         a.ClientID,
		Scope:            a.Scope,
		Code:             a.Code.String,
		AccessTokenHash:  a.AccessTokenHash.String,
		RefreshTokenHash: a.RefreshTokenHash.String,
		ExpiresAt:        a.ExpiresAt.Int64,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type Oauth2Provider struct {
	ID        int64
	Name      string
	CreatedAt int64
	UpdatedAt int64
}

func (p Oauth2Provider) Model() *model.Provider {
	return &model.Provider{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
