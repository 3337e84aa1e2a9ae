package authflow_test

import (
	"context"

	authflow "github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/mock"
)

// MockIdentityService implements authflow.IdentityService
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) SignUp(ctx context.Context, email, password string) (*authflow.Account, error) {
	args := m.Called(ctx, email, password)
	account, _ := args.Get(0).(*authflow.Account)
	return account, args.Error(1)
}

func (m *MockIdentityService) SignIn(ctx context.Context, email, password string) (*authflow.Account, error) {
	args := m.Called(ctx, email, password)
	account, _ := args.Get(0).(*authflow.Account)
	return account, args.Error(1)
}

func (m *MockIdentityService) UpdateDisplayName(ctx context.Context, accountID, name string) error {
	args := m.Called(ctx, accountID, name)
	return args.Error(0)
}

func (m *MockIdentityService) FederatedSignIn(ctx context.Context, provider authflow.ProviderKind) (*authflow.Account, error) {
	args := m.Called(ctx, provider)
	account, _ := args.Get(0).(*authflow.Account)
	return account, args.Error(1)
}

func (m *MockIdentityService) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIdentityService) SubscribeSessionChanges(fn func(authflow.Session)) func() {
	args := m.Called(fn)
	unsubscribe, _ := args.Get(0).(func())
	if unsubscribe == nil {
		unsubscribe = func() {}
	}
	return unsubscribe
}

// MockRecords implements authflow.Records
type MockRecords struct {
	mock.Mock
}

func (m *MockRecords) Get(ctx context.Context, id string) (*authflow.AccountRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*authflow.AccountRecord)
	return record, args.Error(1)
}

func (m *MockRecords) Put(ctx context.Context, record *authflow.AccountRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecords) SetUsername(ctx context.Context, id, username string) error {
	args := m.Called(ctx, id, username)
	return args.Error(0)
}

func (m *MockRecords) FindByUsername(ctx context.Context, username string) ([]*authflow.AccountRecord, error) {
	args := m.Called(ctx, username)
	records, _ := args.Get(0).([]*authflow.AccountRecord)
	return records, args.Error(1)
}

func (m *MockRecords) ClaimUsername(ctx context.Context, id, username string) error {
	args := m.Called(ctx, id, username)
	return args.Error(0)
}

// MockPresenter implements authflow.Presenter
type MockPresenter struct {
	mock.Mock
}

func (m *MockPresenter) ShowLoggedOut() {
	m.Called()
}

func (m *MockPresenter) ShowChoosingUsername(account *authflow.Account) {
	m.Called(account)
}

func (m *MockPresenter) ShowLoggedIn(account *authflow.Account) {
	m.Called(account)
}

// capturingNotifier records every alert and info message in order.
type capturingNotifier struct {
	alerts []string
	infos  []string
}

func (n *capturingNotifier) Alert(message string) {
	n.alerts = append(n.alerts, message)
}

func (n *capturingNotifier) Info(message string) {
	n.infos = append(n.infos, message)
}

// capturingSink records activity events in order.
type capturingSink struct {
	events []authflow.ActivityEvent
}

func (s *capturingSink) Record(_ context.Context, event authflow.ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) types() []authflow.ActivityEventType {
	out := make([]authflow.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// quietLogger drops everything; tests assert on notifier output instead.
type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}
