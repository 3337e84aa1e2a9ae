package identity

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	authflow "github.com/goliatone/go-authflow"
	goerrors "github.com/goliatone/go-errors"
)

// TokenClaims is the verified content of an issued session token.
type TokenClaims struct {
	AccountID string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenVerifier validates service-issued JWTs against the JWKS endpoint.
type TokenVerifier struct {
	jwks    *keyfunc.JWKS
	issuer  string
	logger  authflow.Logger
	methods []string
}

// TokenVerifierOption configures the verifier.
type TokenVerifierOption func(*TokenVerifier)

// WithVerifierIssuer sets the expected token issuer. Empty skips the check.
func WithVerifierIssuer(issuer string) TokenVerifierOption {
	return func(v *TokenVerifier) {
		v.issuer = strings.TrimSpace(issuer)
	}
}

// WithVerifierLogger overrides the default logger.
func WithVerifierLogger(logger authflow.Logger) TokenVerifierOption {
	return func(v *TokenVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewTokenVerifier fetches the key set and keeps it refreshed in the
// background for the life of the process.
func NewTokenVerifier(jwksURL string, opts ...TokenVerifierOption) (*TokenVerifier, error) {
	v := &TokenVerifier{
		logger:  authflow.DefaultLogger(),
		methods: []string{"RS256"},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			v.logger.Warn("jwks background refresh: %v", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("identity: failed to load JWKS from %s: %w", jwksURL, err)
	}

	v.jwks = jwks

	return v, nil
}

// Verify parses and validates a token, returning its claims.
func (v *TokenVerifier) Verify(tokenString string) (*TokenClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc, parserOpts...)
	if err != nil {
		return nil, normalizeTokenError(err)
	}

	if !token.Valid {
		return nil, goerrors.New("token is not valid", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	out := &TokenClaims{}

	if sub, err := claims.GetSubject(); err == nil {
		out.AccountID = sub
	}
	if out.AccountID == "" {
		return nil, goerrors.New("token has no subject", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		out.Name = name
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	return out, nil
}

// Close stops the background key refresh.
func (v *TokenVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func normalizeTokenError(err error) error {
	msg := "token is not valid"
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		msg = "token is expired"
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, msg).
		WithCode(goerrors.CodeUnauthorized)
}
