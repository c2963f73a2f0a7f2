package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/utils"
	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type ContextMiddlewareConfig struct {
	OwnerHeader    string
	TrustedProxies []netip.Prefix
}

// ContextMiddleware resolves the resource owner from the header set by the forward-auth proxy.
// The header is ignored unless the direct peer is one of the trusted proxies.
type ContextMiddleware struct {
	config ContextMiddlewareConfig
}

func NewContextMiddleware(config ContextMiddlewareConfig) *ContextMiddleware {
	return &ContextMiddleware{
		config: config,
	}
}

func (m *ContextMiddleware) Init() error {
	if m.config.OwnerHeader == "" {
		m.config.OwnerHeader = "Remote-User"
	}
	m.config.OwnerHeader = http.CanonicalHeaderKey(m.config.OwnerHeader)
	return nil
}

func (m *ContextMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := strings.TrimSpace(c.GetHeader(m.config.OwnerHeader))

		if username != "" && !utils.IsTrustedPeer(c.Request.RemoteAddr, m.config.TrustedProxies) {
			tlog.App.Warn().Str("header", m.config.OwnerHeader).Str("address", c.Request.RemoteAddr).Msg("Ignoring owner header from untrusted peer")
			username = ""
		}

		c.Set("context", &config.OwnerContext{
			Username:        username,
			IsAuthenticated: username != "",
		})

		c.Next()
	}
}
