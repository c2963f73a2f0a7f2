package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/steveiliop56/tinyprovider/internal/bootstrap"
	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/service"
	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"gotest.tools/v3/assert"
)

// scriptedTokens hands out the queued values first, then unique fallbacks.
type scriptedTokens struct {
	mu     sync.Mutex
	queue  []string
	served int
}

func (s *scriptedTokens) Push(values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, values...)
}

func (s *scriptedTokens) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.served++
	if len(s.queue) > 0 {
		value := s.queue[0]
		s.queue = s.queue[1:]
		return value, nil
	}
	return fmt.Sprintf("generated-%d", s.served), nil
}

type testEnv struct {
	db             *sql.DB
	tokens         *scriptedTokens
	authorizations *service.AuthorizationService
	clients        *service.ClientService
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()

	tlog.NewSimpleLogger().Init()

	app := bootstrap.NewBootstrapApp(config.Config{})

	db, err := app.SetupDatabase(filepath.Join(t.TempDir(), "tinyprovider.db"))
	assert.NilError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	tokens := &scriptedTokens{}

	authorizations := service.NewAuthorizationService(service.AuthorizationServiceConfig{
		Database: db,
	}, tokens)
	assert.NilError(t, authorizations.Init())

	clients := service.NewClientService(service.ClientServiceConfig{
		Database:        db,
		LockoutDuration: 60,
		MaxRetries:      3,
	}, tokens)
	assert.NilError(t, clients.Init())

	return &testEnv{
		db:             db,
		tokens:         tokens,
		authorizations: authorizations,
		clients:        clients,
	}
}

func (env *testEnv) createClient(t *testing.T, name string) *model.Client {
	t.Helper()

	client, err := env.clients.Create(context.Background(), service.ClientInput{
		Name:        name,
		RedirectURI: "https://" + name + ".example.com/callback",
	})
	assert.NilError(t, err)
	assert.Assert(t, client.Errors.Empty(), client.Errors)

	return client
}

func (env *testEnv) grantWithCode(t *testing.T, owner model.ResourceOwner, client *model.Client, code string) *model.Authorization {
	t.Helper()

	ctx := context.Background()

	auth, err := env.authorizations.GrantAccess(ctx, owner, client, service.GrantOptions{ForceNew: true})
	assert.NilError(t, err)
	assert.Assert(t, auth.Errors.Empty(), auth.Errors)

	auth.Code = code
	saved, err := env.authorizations.Save(ctx, auth)
	assert.NilError(t, err)
	assert.Assert(t, saved, auth.Errors)

	return auth
}
