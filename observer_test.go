package authflow_test

import (
	"context"
	"testing"

	authflow "github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionObserverObserve(t *testing.T) {
	ctx := context.Background()
	account := &authflow.Account{ID: "acc-1", Email: "pam@example.com", Name: "Pam"}

	t.Run("absent session routes to logged out", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowLoggedIn", account).Return()
		presenter.On("ShowLoggedOut").Return().Once()

		machine := authflow.NewScreenMachine(presenter)
		require.NoError(t, machine.Apply(ctx, authflow.TriggerSessionObserved, authflow.ScreenLoggedIn, account))

		records := new(MockRecords)
		observer := authflow.NewSessionObserver(nil, records, machine,
			authflow.WithObserverLogger(quietLogger{}),
		)

		observer.Observe(ctx, authflow.AbsentSession())

		assert.Equal(t, authflow.ScreenLoggedOut, machine.Current())
		assert.Nil(t, machine.CurrentAccount())
		presenter.AssertExpectations(t)
		records.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("present session without record routes to username screen", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowChoosingUsername", account).Return().Once()

		machine := authflow.NewScreenMachine(presenter)

		records := new(MockRecords)
		records.On("Get", mock.Anything, "acc-1").Return(nil, authflow.ErrRecordNotFound)

		observer := authflow.NewSessionObserver(nil, records, machine,
			authflow.WithObserverLogger(quietLogger{}),
		)

		observer.Observe(ctx, authflow.PresentSession(account))

		assert.Equal(t, authflow.ScreenChoosingUsername, machine.Current())
		presenter.AssertExpectations(t)
	})

	t.Run("present session with empty username routes to username screen", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowChoosingUsername", account).Return().Once()

		machine := authflow.NewScreenMachine(presenter)

		records := new(MockRecords)
		records.On("Get", mock.Anything, "acc-1").Return(&authflow.AccountRecord{
			ID:    "acc-1",
			Email: "pam@example.com",
		}, nil)

		observer := authflow.NewSessionObserver(nil, records, machine)

		observer.Observe(ctx, authflow.PresentSession(account))

		assert.Equal(t, authflow.ScreenChoosingUsername, machine.Current())
		presenter.AssertExpectations(t)
	})

	t.Run("present session with username routes to logged in", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowLoggedIn", account).Return().Once()

		machine := authflow.NewScreenMachine(presenter)

		records := new(MockRecords)
		records.On("Get", mock.Anything, "acc-1").Return(&authflow.AccountRecord{
			ID:       "acc-1",
			Email:    "pam@example.com",
			Username: "pambeesly",
		}, nil)

		observer := authflow.NewSessionObserver(nil, records, machine)

		observer.Observe(ctx, authflow.PresentSession(account))

		assert.Equal(t, authflow.ScreenLoggedIn, machine.Current())
		presenter.AssertExpectations(t)
	})

	t.Run("record read failure alerts and routes to username screen", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowChoosingUsername", account).Return().Once()

		machine := authflow.NewScreenMachine(presenter)

		records := new(MockRecords)
		records.On("Get", mock.Anything, "acc-1").Return(nil, authflow.ErrStoreFailure)

		notifier := &capturingNotifier{}
		observer := authflow.NewSessionObserver(nil, records, machine,
			authflow.WithObserverLogger(quietLogger{}),
			authflow.WithObserverNotifier(notifier),
		)

		observer.Observe(ctx, authflow.PresentSession(account))

		assert.Equal(t, authflow.ScreenChoosingUsername, machine.Current())
		require.Len(t, notifier.alerts, 1)
		assert.Contains(t, notifier.alerts[0], "Could not load your profile")
	})

	t.Run("repeated notifications are idempotent", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowLoggedIn", account).Return().Once()

		machine := authflow.NewScreenMachine(presenter)

		records := new(MockRecords)
		records.On("Get", mock.Anything, "acc-1").Return(&authflow.AccountRecord{
			ID:       "acc-1",
			Username: "pambeesly",
		}, nil)

		observer := authflow.NewSessionObserver(nil, records, machine)

		session := authflow.PresentSession(account)
		observer.Observe(ctx, session)
		observer.Observe(ctx, session)
		observer.Observe(ctx, session)

		presenter.AssertExpectations(t)
	})
}

func TestSessionObserverStartStop(t *testing.T) {
	ctx := context.Background()

	var callback func(authflow.Session)
	unsubscribed := 0

	identity := new(MockIdentityService)
	identity.On("SubscribeSessionChanges", mock.Anything).
		Run(func(args mock.Arguments) {
			callback = args.Get(0).(func(authflow.Session))
		}).
		Return(func() { unsubscribed++ })

	presenter := new(MockPresenter)
	presenter.On("ShowLoggedOut").Return()

	machine := authflow.NewScreenMachine(presenter)
	records := new(MockRecords)

	observer := authflow.NewSessionObserver(identity, records, machine)
	observer.Start(ctx)

	require.NotNil(t, callback, "Start should register the callback")

	// The callback feeds Observe.
	callback(authflow.AbsentSession())
	assert.Equal(t, authflow.ScreenLoggedOut, machine.Current())

	// Restart replaces the subscription; Stop removes it.
	observer.Start(ctx)
	assert.Equal(t, 1, unsubscribed)

	observer.Stop()
	assert.Equal(t, 2, unsubscribed)

	observer.Stop()
	assert.Equal(t, 2, unsubscribed, "double Stop should not unsubscribe twice")
}
