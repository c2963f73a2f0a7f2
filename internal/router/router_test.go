package router_test

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strings"
	"testing"

	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/router"

	"gotest.tools/v3/assert"
)

var owner = model.User{Username: "alice"}

var trustedProxies = []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

func newRouter(enforceSSL bool) *router.Router {
	return router.NewRouter(&model.Provider{ID: 1, Name: "Test", EnforceSSL: enforceSSL}, trustedProxies)
}

func formRequest(method string, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestParseAuthorizationRequest(t *testing.T) {
	r := newRouter(false)

	req := httptest.NewRequest("GET", "/oauth/authorize?client_id=abc&response_type=code&scope=read+write", nil)

	dispatch, err := r.Parse(owner, req)
	assert.NilError(t, err)

	auth, ok := dispatch.(router.AuthorizationDispatch)
	assert.Assert(t, ok)
	assert.Assert(t, auth.Error == nil)
	assert.Equal(t, owner, auth.Owner)
	assert.Equal(t, "abc", auth.Params.Get("client_id"))
	assert.Equal(t, "read write", auth.Params.Get("scope"))
}

func TestParseExchangeRequest(t *testing.T) {
	r := newRouter(false)

	req := formRequest("POST", "/oauth/token", url.Values{
		"grant_type": {"authorization_code"},
		"code":       {"the-code"},
		"client_id":  {"abc"},
	})

	dispatch, err := r.Parse(nil, req)
	assert.NilError(t, err)

	exchange, ok := dispatch.(router.ExchangeDispatch)
	assert.Assert(t, ok)
	assert.Assert(t, exchange.Error == nil)
	assert.Equal(t, "the-code", exchange.Params.Get("code"))

	// The body can still be read downstream
	body, err := io.ReadAll(req.Body)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(body), "grant_type=authorization_code"))
}

func TestParseMethodError(t *testing.T) {
	r := newRouter(false)

	req := httptest.NewRequest("GET", "/oauth/token?grant_type=authorization_code", nil)

	dispatch, err := r.Parse(owner, req)
	assert.NilError(t, err)

	exchange, ok := dispatch.(router.ExchangeDispatch)
	assert.Assert(t, ok)
	assert.Assert(t, exchange.Error != nil)
	assert.Equal(t, router.MethodNotAllowedError, exchange.Error.Kind)
	assert.Equal(t, "must be a POST request", exchange.Error.Message)
}

func TestParseTransportErrorWins(t *testing.T) {
	r := newRouter(true)

	req := httptest.NewRequest("GET", "/oauth/token?grant_type=authorization_code&client_id=b", nil)
	req.SetBasicAuth("a", "secret")

	dispatch, err := r.Parse(owner, req)
	assert.NilError(t, err)

	exchange, ok := dispatch.(router.ExchangeDispatch)
	assert.Assert(t, ok)
	assert.Equal(t, router.TransportError, exchange.Error.Kind)
	assert.Equal(t, "must make requests using HTTPS", exchange.Error.Message)
}

func TestParseCredentialMismatch(t *testing.T) {
	r := newRouter(false)

	req := formRequest("POST", "/oauth/token", url.Values{
		"grant_type": {"authorization_code"},
		"client_id":  {"b"},
	})
	req.SetBasicAuth("a", "secret")

	dispatch, err := r.Parse(owner, req)
	assert.NilError(t, err)

	exchange, ok := dispatch.(router.ExchangeDispatch)
	assert.Assert(t, ok)
	assert.Equal(t, router.CredentialMismatchError, exchange.Error.Kind)
	assert.Equal(t, "client_id from Basic Auth and request body do not match", exchange.Error.Message)

	// Basic auth values win
	assert.Equal(t, "a", exchange.Params.Get("client_id"))
	assert.Equal(t, "secret", exchange.Params.Get("client_secret"))
}

func TestParseCredentialMismatchBeatsMethod(t *testing.T) {
	r := newRouter(false)

	req := httptest.NewRequest("GET", "/oauth/token?grant_type=authorization_code&client_id=b", nil)
	req.SetBasicAuth("a", "secret")

	dispatch, err := r.Parse(owner, req)
	assert.NilError(t, err)

	exchange := dispatch.(router.ExchangeDispatch)
	assert.Equal(t, router.CredentialMismatchError, exchange.Error.Kind)
}

func TestParseBasicAuthMerge(t *testing.T) {
	r := newRouter(false)

	req := formRequest("POST", "/oauth/token", url.Values{
		"grant_type": {"authorization_code"},
		"client_id":  {"a"},
	})
	req.SetBasicAuth("a", "pass:with:colons")

	dispatch, err := r.Parse(owner, req)
	assert.NilError(t, err)

	exchange := dispatch.(router.ExchangeDispatch)
	assert.Assert(t, exchange.Error == nil)
	assert.Equal(t, "pass:with:colons", exchange.Params.Get("client_secret"))

	// No client_id in the body is not a mismatch
	req = formRequest("POST", "/oauth/token", url.Values{"grant_type": {"authorization_code"}})
	req.SetBasicAuth("a", "secret")

	dispatch, err = r.Parse(owner, req)
	assert.NilError(t, err)

	exchange = dispatch.(router.ExchangeDispatch)
	assert.Assert(t, exchange.Error == nil)
	assert.Equal(t, "a", exchange.Params.Get("client_id"))
}

func TestParseJSONBody(t *testing.T) {
	r := newRouter(false)

	req := httptest.NewRequest("POST", "/oauth/token?state=xyz", strings.NewReader(`{"grant_type":"authorization_code","code":"c","expires":60,"force":true,"skip":null}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	dispatch, err := r.Parse(owner, req)
	assert.NilError(t, err)

	exchange, ok := dispatch.(router.ExchangeDispatch)
	assert.Assert(t, ok)
	assert.Equal(t, "c", exchange.Params.Get("code"))
	assert.Equal(t, "xyz", exchange.Params.Get("state"))
	assert.Equal(t, "60", exchange.Params.Get("expires"))
	assert.Equal(t, "true", exchange.Params.Get("force"))
	assert.Assert(t, !exchange.Params.Has("skip"))
}

func TestParseEmptyJSONBody(t *testing.T) {
	r := newRouter(false)

	req := httptest.NewRequest("POST", "/oauth/authorize?client_id=abc", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/json")

	dispatch, err := r.Parse(owner, req)
	assert.NilError(t, err)

	auth, ok := dispatch.(router.AuthorizationDispatch)
	assert.Assert(t, ok)
	assert.Equal(t, "abc", auth.Params.Get("client_id"))
}

func TestParseInvalidJSONBody(t *testing.T) {
	r := newRouter(false)

	req := httptest.NewRequest("POST", "/oauth/token", strings.NewReader(`{"grant_type":`))
	req.Header.Set("Content-Type", "application/json")

	_, err := r.Parse(owner, req)
	assert.ErrorContains(t, err, "failed to decode json body")
}

func TestSecureRequests(t *testing.T) {
	r := newRouter(true)

	req := httptest.NewRequest("GET", "/oauth/authorize", nil)
	req.TLS = &tls.ConnectionState{}
	dispatch, err := r.Parse(owner, req)
	assert.NilError(t, err)
	assert.Assert(t, dispatch.(router.AuthorizationDispatch).Error == nil)

	req = httptest.NewRequest("GET", "/oauth/authorize", nil)
	req.RemoteAddr = "10.0.0.5:41000"
	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Assert(t, r.IsSecure(req))

	req = httptest.NewRequest("GET", "/oauth/authorize", nil)
	req.RemoteAddr = "10.0.0.5:41000"
	req.Header.Set("X-Forwarded-Ssl", "on")
	assert.Assert(t, r.IsSecure(req))

	req = httptest.NewRequest("GET", "/oauth/authorize", nil)
	assert.Assert(t, !r.IsSecure(req))

	dispatch, err = r.Parse(owner, req)
	assert.NilError(t, err)
	assert.Equal(t, router.TransportError, dispatch.(router.AuthorizationDispatch).Error.Kind)
}

func TestForwardedHeadersFromUntrustedPeer(t *testing.T) {
	r := newRouter(true)

	for _, header := range [][2]string{{"X-Forwarded-Proto", "https"}, {"X-Forwarded-Ssl", "on"}} {
		req := httptest.NewRequest("GET", "/oauth/authorize?client_id=abc&response_type=code", nil)
		req.RemoteAddr = "203.0.113.7:52000"
		req.Header.Set(header[0], header[1])

		assert.Assert(t, !r.IsSecure(req))

		dispatch, err := r.Parse(owner, req)
		assert.NilError(t, err)
		auth := dispatch.(router.AuthorizationDispatch)
		assert.Assert(t, auth.Error != nil)
		assert.Equal(t, router.TransportError, auth.Error.Kind)
		assert.Equal(t, "must make requests using HTTPS", auth.Error.Message)
	}

	// Without any trusted proxies the headers are never believed
	bare := router.NewRouter(&model.Provider{ID: 1, Name: "Test", EnforceSSL: true}, nil)
	req := httptest.NewRequest("GET", "/oauth/authorize", nil)
	req.RemoteAddr = "10.0.0.5:41000"
	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Assert(t, !bare.IsSecure(req))
}

func TestTransportErrorWinsOverMalformedBody(t *testing.T) {
	r := newRouter(true)

	req := httptest.NewRequest("POST", "/oauth/token?grant_type=authorization_code", strings.NewReader(`{"grant_type":`))
	req.Header.Set("Content-Type", "application/json")

	dispatch, err := r.Parse(owner, req)
	assert.NilError(t, err)

	exchange, ok := dispatch.(router.ExchangeDispatch)
	assert.Assert(t, ok)
	assert.Equal(t, router.TransportError, exchange.Error.Kind)

	req = httptest.NewRequest("POST", "/oauth/authorize", strings.NewReader(`not json`))
	req.Header.Set("Content-Type", "application/json")

	dispatch, err = r.Parse(owner, req)
	assert.NilError(t, err)

	auth, ok := dispatch.(router.AuthorizationDispatch)
	assert.Assert(t, ok)
	assert.Equal(t, router.TransportError, auth.Error.Kind)
}

func TestOversizedBody(t *testing.T) {
	body := "client_id=abc&padding=" + strings.Repeat("a", router.MaxBodySize)
	req := formRequest("POST", "/oauth/token", url.Values{})
	req.Body = io.NopCloser(strings.NewReader(body))

	_, err := router.NormalizeParams(req)
	assert.ErrorContains(t, err, "failed to read request body")

	_, err = newRouter(false).Parse(owner, formRequest("POST", "/oauth/token", url.Values{"padding": {strings.Repeat("a", router.MaxBodySize)}}))
	assert.ErrorContains(t, err, "request body too large")
}

func TestAccessToken(t *testing.T) {
	r := newRouter(false)

	req := httptest.NewRequest("GET", "/api/token?oauth_token=from-param", nil)
	req.Header.Set("Authorization", "OAuth   from-header")

	dispatch, err := r.AccessToken(owner, []string{"read"}, req)
	assert.NilError(t, err)
	assert.Equal(t, "from-header", dispatch.Token)
	assert.DeepEqual(t, []string{"read"}, dispatch.Scopes)
	assert.Assert(t, dispatch.Error == nil)

	// Falls back to the parameter
	req = httptest.NewRequest("GET", "/api/token?oauth_token=from-param", nil)
	dispatch, err = r.AccessToken(owner, nil, req)
	assert.NilError(t, err)
	assert.Equal(t, "from-param", dispatch.Token)

	// The scheme keyword is case sensitive
	req = httptest.NewRequest("GET", "/api/token", nil)
	req.Header.Set("Authorization", "oauth lowercase")
	dispatch, err = r.AccessToken(owner, nil, req)
	assert.NilError(t, err)
	assert.Equal(t, "", dispatch.Token)

	// A keyword with nothing after it is an empty token, not a fallback to the parameter
	req = httptest.NewRequest("GET", "/api/token?oauth_token=from-param", nil)
	req.Header.Set("Authorization", "OAuth   ")
	dispatch, err = r.AccessToken(owner, nil, req)
	assert.NilError(t, err)
	assert.Equal(t, "", dispatch.Token)

	// Bearer headers are not recognised
	req = httptest.NewRequest("GET", "/api/token", nil)
	req.Header.Set("Authorization", "Bearer abc")
	dispatch, err = r.AccessToken(owner, nil, req)
	assert.NilError(t, err)
	assert.Equal(t, "", dispatch.Token)
}

func TestAccessTokenTransportError(t *testing.T) {
	r := newRouter(true)

	req := httptest.NewRequest("GET", "/api/token", nil)
	req.Header.Set("Authorization", "OAuth token")

	dispatch, err := r.AccessToken(owner, nil, req)
	assert.NilError(t, err)
	assert.Equal(t, "token", dispatch.Token)
	assert.Equal(t, router.TransportError, dispatch.Error.Kind)
}
