package model

import (
	"net/url"
	"strings"
)

// Client is a registered application. ClientSecret is only populated right after creation,
// storage keeps the bcrypt hash.
type Client struct {
	ID               int64
	ClientID         string
	ClientSecret     string
	ClientSecretHash string
	Name             string
	RedirectURI      string
	Owner            OwnerRef
	CreatedAt        int64
	UpdatedAt        int64
	Errors           ValidationErrors
}

// RedirectURIs splits the newline separated redirect_uri field.
func (c *Client) RedirectURIs() []string {
	uris := []string{}
	for _, line := range strings.Split(c.RedirectURI, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			uris = append(uris, line)
		}
	}
	return uris
}

func (c *Client) ValidateFields() ValidationErrors {
	errs := ValidationErrors{}
	if strings.TrimSpace(c.Name) == "" {
		errs.Add("name", "can't be blank")
	}
	if strings.TrimSpace(c.RedirectURI) == "" {
		errs.Add("redirect_uri", "can't be blank")
		return errs
	}
	// Splitting on line breaks turns an injected CR/LF into a relative second entry.
	for _, line := range strings.Split(strings.TrimRight(c.RedirectURI, "\r\n"), "\n") {
		uri, err := url.Parse(strings.TrimSuffix(line, "\r"))
		if err != nil {
			errs.Add("redirect_uri", "must contain only URIs")
			break
		}
		if !uri.IsAbs() {
			errs.Add("redirect_uri", "must contain only absolute URIs")
			break
		}
	}
	return errs
}
