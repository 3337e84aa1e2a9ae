package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	authflow "github.com/goliatone/go-authflow"
	goerrors "github.com/goliatone/go-errors"
)

// ProviderGrant is the credential a completed consent popup hands back; it is
// exchanged with the service for a session.
type ProviderGrant struct {
	Provider    authflow.ProviderKind
	RequestURI  string
	IDToken     string
	AccessToken string
}

// PopupLauncher opens the provider consent surface and blocks until the user
// finishes or dismisses it. A dismissal returns an error matched by
// authflow.IsPopupClosed.
type PopupLauncher interface {
	Launch(ctx context.Context, provider authflow.ProviderKind) (*ProviderGrant, error)
}

// PopupLauncherFunc adapts a function to the PopupLauncher interface.
type PopupLauncherFunc func(ctx context.Context, provider authflow.ProviderKind) (*ProviderGrant, error)

// Launch implements PopupLauncher.
func (f PopupLauncherFunc) Launch(ctx context.Context, provider authflow.ProviderKind) (*ProviderGrant, error) {
	return f(ctx, provider)
}

// Client implements authflow.IdentityService against the hosted service's
// REST endpoints.
type Client struct {
	config   Config
	http     *http.Client
	logger   authflow.Logger
	popups   PopupLauncher
	verifier *TokenVerifier

	mu          sync.Mutex
	session     authflow.Session
	idToken     string
	subscribers map[int]func(authflow.Session)
	nextSub     int
}

var _ authflow.IdentityService = (*Client)(nil)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithLogger overrides the default logger.
func WithLogger(logger authflow.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPopupLauncher sets the federated consent surface. Without one,
// FederatedSignIn fails.
func WithPopupLauncher(launcher PopupLauncher) ClientOption {
	return func(c *Client) {
		c.popups = launcher
	}
}

// WithTokenVerifier sets the verifier used by RestoreSession.
func WithTokenVerifier(verifier *TokenVerifier) ClientOption {
	return func(c *Client) {
		c.verifier = verifier
	}
}

// NewClient creates a client for the hosted identity service.
func NewClient(config Config, opts ...ClientOption) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:      config,
		http:        config.httpClient(),
		logger:      authflow.DefaultLogger(),
		subscribers: map[int]func(authflow.Session){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.verifier == nil && strings.TrimSpace(config.JWKSEndpoint) != "" {
		verifier, err := NewTokenVerifier(config.JWKSEndpoint,
			WithVerifierIssuer(config.Issuer),
			WithVerifierLogger(c.logger),
		)
		if err != nil {
			return nil, err
		}
		c.verifier = verifier
	}

	return c, nil
}

type credentialRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type updateRequest struct {
	IDToken     string `json:"idToken"`
	DisplayName string `json:"displayName"`
}

type idpRequest struct {
	RequestURI          string `json:"requestUri"`
	PostBody            string `json:"postBody"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
}

type accountResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

// SignUp creates an account from email and password credentials. The service
// opens a session for the fresh account; it is published to subscribers.
func (c *Client) SignUp(ctx context.Context, email, password string) (*authflow.Account, error) {
	var resp accountResponse
	err := c.post(ctx, "signUp", credentialRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	account := &authflow.Account{
		ID:    resp.LocalID,
		Email: resp.Email,
	}

	c.setSession(authflow.PresentSession(account), resp.IDToken)

	return account, nil
}

// SignIn authenticates email and password credentials.
func (c *Client) SignIn(ctx context.Context, email, password string) (*authflow.Account, error) {
	var resp accountResponse
	err := c.post(ctx, "signInWithPassword", credentialRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	account := &authflow.Account{
		ID:    resp.LocalID,
		Email: resp.Email,
		Name:  resp.DisplayName,
	}

	c.setSession(authflow.PresentSession(account), resp.IDToken)

	return account, nil
}

// UpdateDisplayName sets the display name on the signed-in account. The
// service keys the update by session token, so the account must match the
// current session.
func (c *Client) UpdateDisplayName(ctx context.Context, accountID, name string) error {
	c.mu.Lock()
	session := c.session
	idToken := c.idToken
	c.mu.Unlock()

	if !session.Present() || session.Account().ID != accountID {
		return goerrors.New("no session for account", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithMetadata(map[string]any{
				"account_id": accountID,
			})
	}

	var resp accountResponse
	if err := c.post(ctx, "update", updateRequest{
		IDToken:     idToken,
		DisplayName: name,
	}, &resp); err != nil {
		return err
	}

	c.mu.Lock()
	if c.session.Present() && c.session.Account().ID == accountID {
		c.session.Account().Name = name
	}
	c.mu.Unlock()

	return nil
}

// FederatedSignIn runs the provider consent flow and exchanges the grant for
// a session. A dismissed popup is returned as-is for the caller to classify.
func (c *Client) FederatedSignIn(ctx context.Context, provider authflow.ProviderKind) (*authflow.Account, error) {
	if c.popups == nil {
		return nil, goerrors.New("no popup launcher configured", goerrors.CategoryOperation).
			WithCode(goerrors.CodeInternal)
	}

	grant, err := c.popups.Launch(ctx, provider)
	if err != nil {
		return nil, err
	}

	var resp accountResponse
	err = c.post(ctx, "signInWithIdp", idpRequest{
		RequestURI:          grant.RequestURI,
		PostBody:            fmt.Sprintf("id_token=%s&access_token=%s&providerId=%s", grant.IDToken, grant.AccessToken, grant.Provider),
		ReturnSecureToken:   true,
		ReturnIdpCredential: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	account := &authflow.Account{
		ID:       resp.LocalID,
		Email:    resp.Email,
		Name:     resp.DisplayName,
		Provider: provider,
	}

	c.setSession(authflow.PresentSession(account), resp.IDToken)

	return account, nil
}

// SignOut drops the session. The service holds no server-side session state
// for this client; discarding the token ends it.
func (c *Client) SignOut(ctx context.Context) error {
	c.setSession(authflow.AbsentSession(), "")
	return nil
}

// RestoreSession verifies a previously issued token and, when valid, restores
// the session it represents. Requires a JWKS endpoint or verifier.
func (c *Client) RestoreSession(ctx context.Context, idToken string) (*authflow.Account, error) {
	if c.verifier == nil {
		return nil, goerrors.New("no token verifier configured", goerrors.CategoryOperation).
			WithCode(goerrors.CodeInternal)
	}

	claims, err := c.verifier.Verify(idToken)
	if err != nil {
		return nil, err
	}

	account := &authflow.Account{
		ID:    claims.AccountID,
		Email: claims.Email,
		Name:  claims.Name,
	}

	c.setSession(authflow.PresentSession(account), idToken)

	return account, nil
}

// SubscribeSessionChanges registers a session callback. The callback fires
// immediately with the current session, then on every transition.
func (c *Client) SubscribeSessionChanges(fn func(authflow.Session)) func() {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	current := c.session
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// CurrentSession returns the session as last observed.
func (c *Client) CurrentSession() authflow.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) setSession(session authflow.Session, idToken string) {
	c.mu.Lock()
	c.session = session
	c.idToken = idToken

	listeners := make([]func(authflow.Session), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(session)
	}
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, operation string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "request encode failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.endpoint(operation), bytes.NewReader(body))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "request build failed")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity service unreachable")
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity service response read failed")
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return c.serviceError(operation, res.StatusCode, raw)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity service response decode failed")
	}

	return nil
}

func (c *Client) serviceError(operation string, status int, raw []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error.Message == "" {
		return goerrors.New(
			fmt.Sprintf("identity service %s failed with status %d", operation, status),
			goerrors.CategoryOperation,
		).WithCode(goerrors.CodeInternal)
	}

	code := apiErr.Error.Message
	c.logger.Debug("identity service error operation=%s code=%s", operation, code)

	return MapServiceError(code, status)
}

// MapServiceError translates a service error code into the flow error family.
// Unknown codes come back as external errors carrying the raw code.
func MapServiceError(code string, status int) error {
	// Codes may carry a trailing detail, e.g. "WEAK_PASSWORD : ...".
	base := code
	if idx := strings.IndexAny(code, " :"); idx > 0 {
		base = code[:idx]
	}

	switch base {
	case "EMAIL_EXISTS":
		return authflow.ErrEmailTaken
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return authflow.ErrInvalidEmail
	case "WEAK_PASSWORD", "MISSING_PASSWORD":
		return authflow.ErrWeakPassword
	case "INVALID_LOGIN_CREDENTIALS", "EMAIL_NOT_FOUND", "INVALID_PASSWORD":
		// Unknown account and wrong password both collapse here, so the
		// caller can only ever surface the generic message.
		return authflow.ErrInvalidCredentials
	case "USER_CANCELLED", "POPUP_CLOSED_BY_USER":
		return authflow.ErrPopupClosed
	case "CREDENTIAL_ALREADY_IN_USE", "FEDERATED_USER_ID_ALREADY_LINKED", "ACCOUNT_EXISTS_WITH_DIFFERENT_CREDENTIAL":
		return authflow.ErrCredentialInUse
	}

	return goerrors.New(
		fmt.Sprintf("identity service rejected the request: %s", code),
		goerrors.CategoryOperation,
	).WithTextCode(base).WithMetadata(map[string]any{
		"status": status,
	})
}
