package model

import "github.com/steveiliop56/tinyprovider/internal/config"

// ResourceOwner is anything that can grant a client access on its behalf.
// Owners are stored as an (OwnerType, OwnerID) pair so any entity type can own grants.
type ResourceOwner interface {
	OwnerType() string
	OwnerID() string
}

type OwnerRef struct {
	Type string
	ID   string
}

func (o OwnerRef) OwnerType() string {
	return o.Type
}

func (o OwnerRef) OwnerID() string {
	return o.ID
}

func (o OwnerRef) IsZero() bool {
	return o.Type == "" && o.ID == ""
}

// RefOf flattens any owner into its stored reference.
func RefOf(owner ResourceOwner) OwnerRef {
	if owner == nil {
		return OwnerRef{}
	}
	return OwnerRef{Type: owner.OwnerType(), ID: owner.OwnerID()}
}

// SameOwner compares owners by identity (type and id), never by other attributes.
func SameOwner(a, b ResourceOwner) bool {
	if a == nil || b == nil {
		return false
	}
	ra, rb := RefOf(a), RefOf(b)
	if ra.IsZero() || rb.IsZero() {
		return false
	}
	return ra == rb
}

// User is a resource owner authenticated by the forward-auth proxy in front of the provider.
type User struct {
	Username string
}

func (u User) OwnerType() string {
	return config.OwnerTypeUser
}

func (u User) OwnerID() string {
	return u.Username
}
