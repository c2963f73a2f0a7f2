package controller_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/steveiliop56/tinyprovider/internal/bootstrap"
	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"
)

const (
	testClientID     = "app-client"
	testClientSecret = "app-secret"
	testRedirectURI  = "https://app.example.com/callback"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		AppURL:       "http://localhost:3000",
		DatabasePath: filepath.Join(t.TempDir(), "tinyprovider.db"),
		Server: config.ServerConfig{
			TrustedProxies: []string{"127.0.0.1"},
		},
		Provider: config.ProviderConfig{
			Name: "Test",
		},
		OAuth: config.OAuthConfig{
			TokenExpiry:      3600,
			OwnerHeader:      "Remote-User",
			ClientLockout:    60,
			ClientMaxRetries: 3,
			ConsentExpiry:    60,
		},
		Clients: map[string]config.ClientConfig{
			"app": {
				ClientID:     testClientID,
				ClientSecret: testClientSecret,
				RedirectURIs: []string{testRedirectURI},
			},
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func setupServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()

	tlog.NewSimpleLogger().Init()
	gin.SetMode(gin.TestMode)

	app := bootstrap.NewBootstrapApp(cfg)

	engine, err := app.Build()
	assert.NilError(t, err)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	return server
}

// noRedirects keeps the authorize redirect observable.
var noRedirects = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func asOwner(t *testing.T, method string, target string, username string) *http.Request {
	t.Helper()

	req, err := http.NewRequest(method, target, nil)
	assert.NilError(t, err)

	if username != "" {
		req.Header.Set("Remote-User", username)
	}

	return req
}
