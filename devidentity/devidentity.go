// Package devidentity is an in-process identity service for local runs and
// integration tests. Accounts live in memory, passwords are bcrypt-hashed,
// and federated consent outcomes are scripted per provider.
package devidentity

import (
	"context"
	"strings"
	"sync"

	authflow "github.com/goliatone/go-authflow"
	"github.com/goliatone/hashid/pkg/hashid"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost is low on purpose: this service backs examples and tests.
const hashCost = bcrypt.MinCost

type storedAccount struct {
	account      authflow.Account
	passwordHash string
}

// FederatedOutcome scripts one provider's consent result: an account on
// success, an error (e.g. authflow.ErrPopupClosed) otherwise.
type FederatedOutcome struct {
	Account *authflow.Account
	Err     error
}

// Service implements authflow.IdentityService in memory.
type Service struct {
	mu          sync.Mutex
	accounts    map[string]*storedAccount
	federated   map[authflow.ProviderKind]FederatedOutcome
	session     authflow.Session
	subscribers map[int]func(authflow.Session)
	nextSub     int
	minPassword int
}

var _ authflow.IdentityService = (*Service)(nil)

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithMinPasswordLength sets the weak-password threshold. Defaults to 6.
func WithMinPasswordLength(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.minPassword = n
		}
	}
}

// WithFederatedOutcome scripts the consent result for a provider.
func WithFederatedOutcome(provider authflow.ProviderKind, outcome FederatedOutcome) ServiceOption {
	return func(s *Service) {
		s.federated[provider] = outcome
	}
}

// New creates an empty in-memory identity service.
func New(opts ...ServiceOption) *Service {
	s := &Service{
		accounts:    map[string]*storedAccount{},
		federated:   map[authflow.ProviderKind]FederatedOutcome{},
		subscribers: map[int]func(authflow.Session){},
		minPassword: 6,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// ScriptFederated replaces the consent result for a provider at runtime.
func (s *Service) ScriptFederated(provider authflow.ProviderKind, outcome FederatedOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.federated[provider] = outcome
}

// SignUp implements authflow.IdentityService. Account identifiers derive
// deterministically from the email, mirroring how the hosted service keeps
// them stable.
func (s *Service) SignUp(ctx context.Context, email, password string) (*authflow.Account, error) {
	email = normalizeEmail(email)

	if !strings.Contains(email, "@") {
		return nil, authflow.ErrInvalidEmail
	}

	if len(password) < s.minPassword {
		return nil, authflow.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return nil, err
	}

	id, err := hashid.NewUUID(email)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		return nil, authflow.ErrEmailTaken
	}

	stored := &storedAccount{
		account: authflow.Account{
			ID:    id.String(),
			Email: email,
		},
		passwordHash: string(hash),
	}
	s.accounts[email] = stored

	account := stored.account
	s.mu.Unlock()

	// The service opens a session for the fresh account.
	s.publish(authflow.PresentSession(&account))

	out := account
	return &out, nil
}

// SignIn implements authflow.IdentityService. Unknown email and wrong
// password are indistinguishable from the outside.
func (s *Service) SignIn(ctx context.Context, email, password string) (*authflow.Account, error) {
	email = normalizeEmail(email)

	s.mu.Lock()
	stored, exists := s.accounts[email]
	s.mu.Unlock()

	if !exists {
		return nil, authflow.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(stored.passwordHash), []byte(password)); err != nil {
		return nil, authflow.ErrInvalidCredentials
	}

	account := stored.account
	s.publish(authflow.PresentSession(&account))

	out := account
	return &out, nil
}

// UpdateDisplayName implements authflow.IdentityService.
func (s *Service) UpdateDisplayName(ctx context.Context, accountID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stored := range s.accounts {
		if stored.account.ID == accountID {
			stored.account.Name = name
			return nil
		}
	}

	return authflow.ErrInvalidCredentials
}

// FederatedSignIn implements authflow.IdentityService using the scripted
// outcome for the provider. Unscripted providers read as a dismissed popup.
func (s *Service) FederatedSignIn(ctx context.Context, provider authflow.ProviderKind) (*authflow.Account, error) {
	s.mu.Lock()
	outcome, scripted := s.federated[provider]
	s.mu.Unlock()

	if !scripted {
		return nil, authflow.ErrPopupClosed
	}

	if outcome.Err != nil {
		return nil, outcome.Err
	}

	account := *outcome.Account
	account.Provider = provider

	s.mu.Lock()
	email := normalizeEmail(account.Email)
	if _, exists := s.accounts[email]; !exists {
		s.accounts[email] = &storedAccount{account: account}
	}
	s.mu.Unlock()

	s.publish(authflow.PresentSession(&account))

	out := account
	return &out, nil
}

// SignOut implements authflow.IdentityService.
func (s *Service) SignOut(ctx context.Context) error {
	s.publish(authflow.AbsentSession())
	return nil
}

// SubscribeSessionChanges implements authflow.IdentityService. The callback
// fires immediately with the current session, then on every transition.
func (s *Service) SubscribeSessionChanges(fn func(authflow.Session)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	current := s.session
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Service) publish(session authflow.Session) {
	s.mu.Lock()
	s.session = session

	listeners := make([]func(authflow.Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(session)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
