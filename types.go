package authflow

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// ProviderKind identifies a federated sign-in provider.
type ProviderKind = string

const (
	// ProviderGoogle is the Google consent-popup provider
	ProviderGoogle ProviderKind = "google"
	// ProviderGitHub is the GitHub consent-popup provider
	ProviderGitHub ProviderKind = "github"
)

// IdentityService is the hosted identity provider this flow is a client of.
// Accounts, credentials, and session lifetime are owned by the service; the
// flow only issues calls and observes session transitions.
type IdentityService interface {
	// SignUp creates an account from email and password credentials.
	SignUp(ctx context.Context, email, password string) (*Account, error)

	// SignIn authenticates email and password credentials.
	SignIn(ctx context.Context, email, password string) (*Account, error)

	// UpdateDisplayName sets the display name on an existing account.
	UpdateDisplayName(ctx context.Context, accountID, name string) error

	// FederatedSignIn runs the provider consent flow and returns the
	// resulting account.
	FederatedSignIn(ctx context.Context, provider ProviderKind) (*Account, error)

	// SignOut ends the current session.
	SignOut(ctx context.Context) error

	// SubscribeSessionChanges registers a callback fired on every session
	// transition (login and logout, not token refresh). The returned
	// function removes the subscription.
	SubscribeSessionChanges(fn func(Session)) (unsubscribe func())
}

// Records is the hosted document store collection holding one AccountRecord
// per account, keyed by account identifier.
type Records interface {
	// Get performs a point read. Missing records return an error matched
	// by IsRecordNotFound.
	Get(ctx context.Context, id string) (*AccountRecord, error)

	// Put performs a point write of a full record.
	Put(ctx context.Context, record *AccountRecord) error

	// SetUsername updates the username field only, not the full record.
	SetUsername(ctx context.Context, id, username string) error

	// FindByUsername returns records whose username equals the candidate,
	// case sensitive exact match.
	FindByUsername(ctx context.Context, username string) ([]*AccountRecord, error)

	// ClaimUsername performs a conditional write keyed by the username
	// value itself. A second writer claiming the same username fails with
	// an error matched by IsUsernameTaken.
	ClaimUsername(ctx context.Context, id, username string) error
}

// Presenter renders exactly one of the three screens. Implementations are
// pure state-to-UI mappings; the ScreenMachine guarantees each call
// corresponds to an actual state change.
type Presenter interface {
	ShowLoggedOut()
	ShowChoosingUsername(account *Account)
	ShowLoggedIn(account *Account)
}

// Notifier is the user-facing notification surface. Alert blocks on user
// acknowledgement in interactive presenters; Info does not.
type Notifier interface {
	Alert(message string)
	Info(message string)
}

// DefaultLogger returns the stdout logger used when no Logger is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHFLOW "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
