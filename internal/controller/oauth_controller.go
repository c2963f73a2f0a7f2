package controller

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/metrics"
	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/repository"
	"github.com/steveiliop56/tinyprovider/internal/router"
	"github.com/steveiliop56/tinyprovider/internal/service"
	"github.com/steveiliop56/tinyprovider/internal/utils"
	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type OAuthControllerConfig struct {
	TokenExpiry  int
	ProviderName string
}

// OAuthController serves the authorization and token endpoints. Both go through the same
// dispatcher, the request shape decides which flow runs.
type OAuthController struct {
	config         OAuthControllerConfig
	router         *gin.RouterGroup
	dispatcher     *router.Router
	authorizations *service.AuthorizationService
	clients        *service.ClientService
	consents       *service.ConsentService
	metrics        *metrics.Metrics
}

func NewOAuthController(config OAuthControllerConfig, router *gin.RouterGroup, dispatcher *router.Router, authorizations *service.AuthorizationService, clients *service.ClientService, consents *service.ConsentService, metrics *metrics.Metrics) *OAuthController {
	return &OAuthController{
		config:         config,
		router:         router,
		dispatcher:     dispatcher,
		authorizations: authorizations,
		clients:        clients,
		consents:       consents,
		metrics:        metrics,
	}
}

func (controller *OAuthController) SetupRoutes() {
	oauthGroup := controller.router.Group("/oauth")
	oauthGroup.GET("/authorize", controller.dispatchHandler)
	oauthGroup.POST("/authorize", controller.dispatchHandler)
	oauthGroup.GET("/token", controller.dispatchHandler)
	oauthGroup.POST("/token", controller.dispatchHandler)
}

func (controller *OAuthController) dispatchHandler(c *gin.Context) {
	dispatch, err := controller.dispatcher.Parse(utils.GetOwner(c), c.Request)

	if err != nil {
		tlog.App.Warn().Err(err).Msg("Failed to parse OAuth request")
		controller.jsonError(c, http.StatusBadRequest, "invalid_request", "Malformed request")
		return
	}

	switch d := dispatch.(type) {
	case router.ExchangeDispatch:
		controller.exchange(c, d)
	case router.AuthorizationDispatch:
		controller.authorize(c, d)
	}
}

func (controller *OAuthController) authorize(c *gin.Context, d router.AuthorizationDispatch) {
	if d.Error != nil {
		controller.routerError(c, d.Error)
		return
	}

	if d.Params.Has(config.ParamConsent) {
		controller.consent(c, d)
		return
	}

	clientID := d.Params.Get(config.ParamClientID)
	state := d.Params.Get(config.ParamState)

	// Errors before the redirect URI is validated are rendered, never redirected
	if clientID == "" {
		controller.jsonError(c, http.StatusBadRequest, "invalid_request", "Missing client_id")
		return
	}

	client, err := controller.clients.GetClient(c.Request.Context(), clientID)

	if errors.Is(err, repository.ErrNotFound) {
		controller.jsonError(c, http.StatusBadRequest, "invalid_client", "Client not found")
		return
	}

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to get client")
		controller.jsonError(c, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	redirectURI := d.Params.Get(config.ParamRedirectURI)

	if redirectURI == "" {
		defaultURI, ok := controller.clients.DefaultRedirectURI(client)
		if !ok {
			controller.jsonError(c, http.StatusBadRequest, "invalid_request", "Missing redirect_uri")
			return
		}
		redirectURI = defaultURI
	}

	if !controller.clients.ValidRedirectURI(client, redirectURI) {
		controller.jsonError(c, http.StatusBadRequest, "invalid_request", "Invalid redirect_uri")
		return
	}

	responseType := d.Params.Get(config.ParamResponseType)

	if responseType != config.ResponseTypeCode && responseType != config.ResponseTypeToken {
		controller.redirectError(c, redirectURI, state, false, "unsupported_response_type", "Unsupported response_type")
		return
	}

	if d.Owner == nil {
		controller.jsonError(c, http.StatusUnauthorized, "access_denied", "Resource owner is not authenticated")
		return
	}

	var scopes []string
	if d.Params.Has(config.ParamScope) {
		scopes = model.ParseScopes(d.Params.Get(config.ParamScope))
	}

	request := service.ConsentRequest{
		Owner:        model.RefOf(d.Owner),
		ClientID:     client.ClientID,
		RedirectURI:  redirectURI,
		ResponseType: responseType,
		Scopes:       scopes,
		State:        state,
	}

	// Owners are only asked again when the request needs more than they already granted
	if controller.alreadyGranted(c, d.Owner, client, scopes) {
		controller.grant(c, d.Owner, client, request)
		return
	}

	ticket, err := controller.consents.Create(request)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to create consent request")
		controller.redirectError(c, redirectURI, state, responseType == config.ResponseTypeToken, "server_error", "Internal server error")
		return
	}

	controller.metrics.Grant("pending")

	c.Header("Cache-Control", "no-store")
	c.Header("X-Frame-Options", "DENY")
	c.HTML(http.StatusOK, "consent.html", gin.H{
		"ProviderName": controller.config.ProviderName,
		"ClientName":   client.Name,
		"Owner":        d.Owner.OwnerID(),
		"Scopes":       scopes,
		"Ticket":       ticket,
		"Action":       c.Request.URL.Path,
	})
}

// consent handles the approval form. The ticket is consumed whatever the decision.
func (controller *OAuthController) consent(c *gin.Context, d router.AuthorizationDispatch) {
	if c.Request.Method != http.MethodPost {
		controller.jsonError(c, http.StatusBadRequest, "invalid_request", "Consent must be submitted with a POST request")
		return
	}

	if d.Owner == nil {
		controller.jsonError(c, http.StatusUnauthorized, "access_denied", "Resource owner is not authenticated")
		return
	}

	request, err := controller.consents.Consume(d.Params.Get(config.ParamConsent), d.Owner)

	if errors.Is(err, service.ErrConsentOwnerMismatch) {
		tlog.App.Warn().Str("owner", d.Owner.OwnerID()).Msg("Consent ticket submitted by another owner")
		controller.jsonError(c, http.StatusForbidden, "access_denied", "Consent ticket belongs to another resource owner")
		return
	}

	if err != nil {
		controller.jsonError(c, http.StatusBadRequest, "invalid_request", "Invalid or expired consent ticket")
		return
	}

	client, err := controller.clients.GetClient(c.Request.Context(), request.ClientID)

	if errors.Is(err, repository.ErrNotFound) {
		controller.jsonError(c, http.StatusBadRequest, "invalid_client", "Client not found")
		return
	}

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to get client")
		controller.jsonError(c, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	if d.Params.Get(config.ParamDecision) != "approve" {
		controller.metrics.Grant("denied")
		tlog.AuditConsent(c, d.Owner.OwnerID(), client.ClientID, false)
		controller.redirectError(c, request.RedirectURI, request.State, request.ResponseType == config.ResponseTypeToken, "access_denied", "The resource owner denied the request")
		return
	}

	tlog.AuditConsent(c, d.Owner.OwnerID(), client.ClientID, true)
	controller.grant(c, d.Owner, client, request)
}

func (controller *OAuthController) alreadyGranted(c *gin.Context, owner model.ResourceOwner, client *model.Client, scopes []string) bool {
	existing, err := controller.authorizations.FindByOwnerAndClient(c.Request.Context(), owner, client)

	if errors.Is(err, repository.ErrNotFound) {
		return false
	}

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to find existing authorization")
		return false
	}

	return existing.GrantsAccess(owner, scopes...)
}

// grant records the approved request and answers it with a code or, for implicit requests, a token.
func (controller *OAuthController) grant(c *gin.Context, owner model.ResourceOwner, client *model.Client, request service.ConsentRequest) {
	redirectURI := request.RedirectURI
	state := request.State
	implicit := request.ResponseType == config.ResponseTypeToken

	auth, err := controller.authorizations.GrantAccess(c.Request.Context(), owner, client, service.GrantOptions{
		Scopes:   request.Scopes,
		Duration: time.Duration(controller.config.TokenExpiry) * time.Second,
	})

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to grant access")
		controller.redirectError(c, redirectURI, state, implicit, "server_error", "Internal server error")
		return
	}

	if !auth.Errors.Empty() {
		controller.metrics.Grant("invalid")
		tlog.App.Error().Err(auth.Errors).Msg("Granted authorization is invalid")
		controller.redirectError(c, redirectURI, state, implicit, "server_error", "Internal server error")
		return
	}

	controller.metrics.Grant("granted")
	tlog.AuditGrant(c, owner.OwnerID(), client.ClientID, auth.Scope)

	if implicit {
		controller.implicitGrant(c, auth, client, redirectURI, state)
		return
	}

	code, err := controller.authorizations.CreateCode(c.Request.Context(), client)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to create code")
		controller.redirectError(c, redirectURI, state, false, "server_error", "Internal server error")
		return
	}

	auth.Code = code

	saved, err := controller.authorizations.Save(c.Request.Context(), auth)

	if err != nil || !saved {
		tlog.App.Error().Err(errors.Join(err, auth.Errors.Err())).Msg("Failed to save code")
		controller.redirectError(c, redirectURI, state, false, "server_error", "Internal server error")
		return
	}

	redirectURL, err := url.Parse(redirectURI)
	if err != nil {
		controller.jsonError(c, http.StatusBadRequest, "invalid_request", "Invalid redirect_uri")
		return
	}

	query := redirectURL.Query()
	query.Set("code", code)
	if state != "" {
		query.Set("state", state)
	}
	redirectURL.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, redirectURL.String())
}

func (controller *OAuthController) implicitGrant(c *gin.Context, auth *model.Authorization, client *model.Client, redirectURI string, state string) {
	if err := controller.authorizations.Exchange(c.Request.Context(), auth); err != nil {
		tlog.App.Error().Err(err).Msg("Failed to issue access token")
		controller.redirectError(c, redirectURI, state, true, "server_error", "Internal server error")
		return
	}

	controller.metrics.TokenIssued("implicit")
	tlog.AuditExchange(c, client.ClientID, "implicit", true)

	redirectURL, err := url.Parse(redirectURI)
	if err != nil {
		controller.jsonError(c, http.StatusBadRequest, "invalid_request", "Invalid redirect_uri")
		return
	}

	fragment := url.Values{}
	fragment.Set("access_token", auth.AccessToken)
	fragment.Set("token_type", "bearer")
	if expiresIn, ok := controller.expiresIn(auth); ok {
		fragment.Set("expires_in", strconv.FormatInt(expiresIn, 10))
	}
	if auth.Scope != "" {
		fragment.Set("scope", auth.Scope)
	}
	if state != "" {
		fragment.Set("state", state)
	}
	redirectURL.Fragment = ""
	redirectURL.RawFragment = ""

	c.Redirect(http.StatusFound, redirectURL.String()+"#"+fragment.Encode())
}

func (controller *OAuthController) exchange(c *gin.Context, d router.ExchangeDispatch) {
	if d.Error != nil {
		controller.routerError(c, d.Error)
		return
	}

	clientID := d.Params.Get(config.ParamClientID)
	clientSecret := d.Params.Get(config.ParamClientSecret)
	grantType := d.Params.Get(config.ParamGrantType)

	if clientID == "" || clientSecret == "" {
		controller.jsonError(c, http.StatusUnauthorized, "invalid_client", "Missing client credentials")
		return
	}

	client, err := controller.clients.Authenticate(c.Request.Context(), clientID, clientSecret)

	if errors.Is(err, service.ErrClientLocked) {
		tlog.AuditClientAuthFailure(c, clientID, "locked")
		controller.jsonError(c, http.StatusTooManyRequests, "invalid_client", "Too many failed attempts, try again later")
		return
	}

	if errors.Is(err, service.ErrInvalidClient) {
		tlog.AuditClientAuthFailure(c, clientID, "invalid_credentials")
		controller.jsonError(c, http.StatusUnauthorized, "invalid_client", "Invalid client credentials")
		return
	}

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to authenticate client")
		controller.jsonError(c, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	var auth *model.Authorization

	switch grantType {
	case config.GrantTypeAuthorizationCode:
		code := d.Params.Get(config.ParamCode)
		if code == "" {
			controller.jsonError(c, http.StatusBadRequest, "invalid_request", "Missing code")
			return
		}
		redirectURI := d.Params.Get(config.ParamRedirectURI)
		if redirectURI != "" && !controller.clients.ValidRedirectURI(client, redirectURI) {
			controller.exchangeFailed(c, client, grantType, "Invalid redirect_uri")
			return
		}
		auth, err = controller.authorizations.FindByCode(c.Request.Context(), client, code)
	case config.GrantTypeRefreshToken:
		refreshToken := d.Params.Get(config.ParamRefreshToken)
		if refreshToken == "" {
			controller.jsonError(c, http.StatusBadRequest, "invalid_request", "Missing refresh_token")
			return
		}
		auth, err = controller.authorizations.FindByRefreshToken(c.Request.Context(), client, refreshToken)
	default:
		controller.jsonError(c, http.StatusBadRequest, "unsupported_grant_type", "Unsupported grant_type")
		return
	}

	if errors.Is(err, repository.ErrNotFound) {
		controller.exchangeFailed(c, client, grantType, "Invalid or consumed grant")
		return
	}

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to find authorization")
		controller.jsonError(c, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	if controller.authorizations.ExpiredNow(auth) {
		controller.exchangeFailed(c, client, grantType, "Authorization has expired")
		return
	}

	if err := controller.authorizations.Exchange(c.Request.Context(), auth); err != nil {
		tlog.App.Error().Err(err).Msg("Failed to exchange authorization")
		controller.jsonError(c, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	controller.metrics.TokenIssued(grantType)
	tlog.AuditExchange(c, client.ClientID, grantType, true)

	response := gin.H{
		"access_token": auth.AccessToken,
		"token_type":   "bearer",
		"scope":        auth.Scope,
	}

	if expiresIn, ok := controller.expiresIn(auth); ok {
		response["expires_in"] = expiresIn
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, response)
}

func (controller *OAuthController) exchangeFailed(c *gin.Context, client *model.Client, grantType string, description string) {
	tlog.AuditExchange(c, client.ClientID, grantType, false)
	controller.jsonError(c, http.StatusBadRequest, "invalid_grant", description)
}

func (controller *OAuthController) expiresIn(auth *model.Authorization) (int64, bool) {
	if auth.ExpiresAt == 0 {
		return 0, false
	}
	remaining := auth.ExpiresAt - time.Now().Unix()
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

func (controller *OAuthController) routerError(c *gin.Context, routerErr *router.Error) {
	controller.metrics.RouterError(string(routerErr.Kind))
	controller.jsonError(c, http.StatusBadRequest, "invalid_request", routerErr.Message)
}

func (controller *OAuthController) jsonError(c *gin.Context, status int, errorCode string, errorDescription string) {
	c.JSON(status, gin.H{
		"error":             errorCode,
		"error_description": errorDescription,
	})
}

// redirectError reports to the client, in the fragment for implicit requests.
func (controller *OAuthController) redirectError(c *gin.Context, redirectURI string, state string, fragment bool, errorCode string, errorDescription string) {
	redirectURL, err := url.Parse(redirectURI)
	if err != nil {
		controller.jsonError(c, http.StatusBadRequest, errorCode, errorDescription)
		return
	}

	values := url.Values{}
	if !fragment {
		values = redirectURL.Query()
	}
	values.Set("error", errorCode)
	values.Set("error_description", errorDescription)
	if state != "" {
		values.Set("state", state)
	}

	if fragment {
		redirectURL.Fragment = ""
		redirectURL.RawFragment = ""
		c.Redirect(http.StatusFound, redirectURL.String()+"#"+values.Encode())
		return
	}

	redirectURL.RawQuery = values.Encode()
	c.Redirect(http.StatusFound, redirectURL.String())
}
