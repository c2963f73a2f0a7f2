package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/model"

	"github.com/patrickmn/go-cache"
)

// ConsentRequest is an authorization request waiting for the resource owner to approve it.
type ConsentRequest struct {
	Owner        model.OwnerRef
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scopes       []string
	State        string
}

type ConsentServiceConfig struct {
	Expiry time.Duration
}

// ConsentService keeps pending requests behind one-time tickets.
type ConsentService struct {
	config  ConsentServiceConfig
	tokens  TokenGenerator
	pending *cache.Cache
	mutex   sync.Mutex
}

func NewConsentService(config ConsentServiceConfig, tokens TokenGenerator) *ConsentService {
	return &ConsentService{
		config: config,
		tokens: tokens,
	}
}

func (service *ConsentService) Init() error {
	if service.config.Expiry <= 0 {
		service.config.Expiry = 5 * time.Minute
	}
	if service.tokens == nil {
		service.tokens = NewRandomTokenGenerator()
	}
	service.pending = cache.New(service.config.Expiry, 2*service.config.Expiry)
	return nil
}

// Create stores req and returns the ticket the approval form must post back.
func (service *ConsentService) Create(req ConsentRequest) (string, error) {
	if req.Owner.IsZero() {
		return "", errors.New("consent request requires an owner")
	}

	service.mutex.Lock()
	defer service.mutex.Unlock()

	for {
		ticket, err := service.tokens.Generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate consent ticket: %w", err)
		}
		if _, exists := service.pending.Get(ticket); exists {
			continue
		}
		service.pending.Set(ticket, req, cache.DefaultExpiration)
		return ticket, nil
	}
}

// Consume returns the request behind ticket and forgets it. A ticket issued to another owner is
// consumed too, so it can't be replayed.
func (service *ConsentService) Consume(ticket string, owner model.ResourceOwner) (ConsentRequest, error) {
	service.mutex.Lock()
	defer service.mutex.Unlock()

	cached, exists := service.pending.Get(ticket)
	if ticket == "" || !exists {
		return ConsentRequest{}, ErrConsentNotFound
	}

	service.pending.Delete(ticket)

	req := cached.(ConsentRequest)
	if !model.SameOwner(req.Owner, owner) {
		return ConsentRequest{}, ErrConsentOwnerMismatch
	}

	return req, nil
}

func (service *ConsentService) Pending() int {
	return service.pending.ItemCount()
}

var (
	ErrConsentNotFound      = errors.New("consent ticket is invalid or expired")
	ErrConsentOwnerMismatch = errors.New("consent ticket belongs to another owner")
)
