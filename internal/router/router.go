package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/netip"
	"regexp"
	"strings"

	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/utils"
)

// MaxBodySize caps the request body read while normalizing parameters.
const MaxBodySize = 1 << 20

type ErrorKind string

const (
	TransportError          ErrorKind = "transport_error"
	CredentialMismatchError ErrorKind = "credential_mismatch_error"
	MethodNotAllowedError   ErrorKind = "method_not_allowed_error"
)

// Error is a request problem found while classifying. Flows must surface it as is.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	errTransport          = &Error{Kind: TransportError, Message: "must make requests using HTTPS"}
	errCredentialMismatch = &Error{Kind: CredentialMismatchError, Message: "client_id from Basic Auth and request body do not match"}
	errMethodNotAllowed   = &Error{Kind: MethodNotAllowedError, Message: "must be a POST request"}
)

// Params is the normalized parameter mapping of a request.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[key]
}

func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

type Dispatch interface {
	dispatch()
}

// AuthorizationDispatch is an authorization request of the code or implicit flow.
type AuthorizationDispatch struct {
	Owner  model.ResourceOwner
	Params Params
	Error  *Error
}

// ExchangeDispatch is a token request, recognised by the presence of grant_type.
type ExchangeDispatch struct {
	Owner  model.ResourceOwner
	Params Params
	Error  *Error
}

// AccessTokenDispatch is a protected resource request carrying a token.
type AccessTokenDispatch struct {
	Owner  model.ResourceOwner
	Scopes []string
	Token  string
	Error  *Error
}

func (AuthorizationDispatch) dispatch() {}
func (ExchangeDispatch) dispatch()      {}
func (AccessTokenDispatch) dispatch()   {}

var oauthHeaderPattern = regexp.MustCompile(`^OAuth\s+(.*)$`)

// Router classifies inbound requests. It holds no per-request state.
type Router struct {
	provider       *model.Provider
	trustedProxies []netip.Prefix
}

// NewRouter builds a router for provider. Forwarded protocol headers are only believed from trustedProxies.
func NewRouter(provider *model.Provider, trustedProxies []netip.Prefix) *Router {
	return &Router{
		provider:       provider,
		trustedProxies: trustedProxies,
	}
}

// Parse classifies req as an exchange or an authorization request. Errors found along the way are
// carried by the dispatch, the first one detected wins. The returned error is only set when the
// body can't be read or decoded, unless a transport error was already found. The query alone is
// classified then so that error is what the caller sees.
func (r *Router) Parse(owner model.ResourceOwner, req *http.Request) (Dispatch, error) {
	routerErr := r.transportError(req)

	params, err := NormalizeParams(req)
	if err != nil {
		if routerErr == nil {
			return nil, err
		}
		params = queryParams(req)
	}

	clientID, clientSecret, hasBasic := req.BasicAuth()

	if hasBasic {
		bodyClientID, inBody := params[config.ParamClientID]
		if inBody && bodyClientID != clientID && routerErr == nil {
			routerErr = errCredentialMismatch
		}
		params[config.ParamClientID] = clientID
		params[config.ParamClientSecret] = clientSecret
	}

	if params.Has(config.ParamGrantType) {
		if req.Method != http.MethodPost && routerErr == nil {
			routerErr = errMethodNotAllowed
		}
		return ExchangeDispatch{Owner: owner, Params: params, Error: routerErr}, nil
	}

	return AuthorizationDispatch{Owner: owner, Params: params, Error: routerErr}, nil
}

// AccessToken extracts the token of a resource request, from an "OAuth <token>" header or the oauth_token parameter.
func (r *Router) AccessToken(owner model.ResourceOwner, scopes []string, req *http.Request) (AccessTokenDispatch, error) {
	token := ""

	if match := oauthHeaderPattern.FindStringSubmatch(req.Header.Get("Authorization")); match != nil {
		token = match[1]
	} else {
		params, err := NormalizeParams(req)
		if err != nil {
			return AccessTokenDispatch{}, err
		}
		token = params.Get(config.ParamOAuthToken)
	}

	return AccessTokenDispatch{
		Owner:  owner,
		Scopes: scopes,
		Token:  token,
		Error:  r.transportError(req),
	}, nil
}

func (r *Router) transportError(req *http.Request) *Error {
	if r.provider == nil || !r.provider.EnforceSSL {
		return nil
	}
	if r.IsSecure(req) {
		return nil
	}
	return errTransport
}

// IsSecure reports whether req arrived over TLS, directly or through a trusted proxy that says so.
func (r *Router) IsSecure(req *http.Request) bool {
	if req.TLS != nil {
		return true
	}
	if req.URL != nil && strings.EqualFold(req.URL.Scheme, "https") {
		return true
	}
	if !utils.IsTrustedPeer(req.RemoteAddr, r.trustedProxies) {
		return false
	}
	if strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.EqualFold(req.Header.Get("X-Forwarded-Ssl"), "on")
}

// NormalizeParams flattens query and body parameters into a single mapping. JSON bodies are
// decoded as an object (an empty body counts as {}), anything else goes through form parsing.
// The body is restored afterwards so it can be read again. Bodies over MaxBodySize are rejected.
func NormalizeParams(req *http.Request) (Params, error) {
	body := []byte{}

	if req.Body != nil && req.Body != http.NoBody {
		read, err := io.ReadAll(http.MaxBytesReader(nil, req.Body, MaxBodySize))
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		body = read
	}

	restore := func() {
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	defer restore()

	params := Params{}

	if isJSON(req) {
		params = queryParams(req)

		decoded, err := decodeJSONObject(body)
		if err != nil {
			return nil, err
		}

		for key, value := range decoded {
			params[key] = value
		}

		return params, nil
	}

	restore()

	if err := req.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	for key, values := range req.Form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	return params, nil
}

func queryParams(req *http.Request) Params {
	params := Params{}
	if req.URL == nil {
		return params
	}
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func isJSON(req *http.Request) bool {
	contentType := req.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

func decodeJSONObject(body []byte) (map[string]string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]string{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	raw := map[string]any{}

	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode json body: %w", err)
	}

	if decoder.More() {
		return nil, errors.New("failed to decode json body: trailing data")
	}

	values := make(map[string]string, len(raw))

	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			values[key] = v
		case json.Number:
			values[key] = v.String()
		case bool:
			if v {
				values[key] = "true"
			} else {
				values[key] = "false"
			}
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode json value of %s: %w", key, err)
			}
			values[key] = string(encoded)
		}
	}

	return values, nil
}
