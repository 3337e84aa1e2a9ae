package authflow_test

import (
	"context"
	"errors"
	"testing"

	authflow "github.com/goliatone/go-authflow"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenMachineStartsLoggedOut(t *testing.T) {
	machine := authflow.NewScreenMachine(nil)

	assert.Equal(t, authflow.ScreenLoggedOut, machine.Current())
	assert.Nil(t, machine.CurrentAccount())
}

func TestScreenMachineApply(t *testing.T) {
	ctx := context.Background()
	account := &authflow.Account{ID: "acc-1", Email: "pam@example.com"}

	t.Run("session observed reaches every screen", func(t *testing.T) {
		for _, target := range []authflow.ScreenState{
			authflow.ScreenChoosingUsername,
			authflow.ScreenLoggedIn,
			authflow.ScreenLoggedOut,
		} {
			presenter := new(MockPresenter)
			presenter.On("ShowChoosingUsername", account).Return()
			presenter.On("ShowLoggedIn", account).Return()
			presenter.On("ShowLoggedOut").Return()

			machine := authflow.NewScreenMachine(presenter)

			var acc *authflow.Account
			if target != authflow.ScreenLoggedOut {
				acc = account
			}

			if target == authflow.ScreenLoggedOut {
				// Already there: no-op, no presenter call.
				require.NoError(t, machine.Apply(ctx, authflow.TriggerSessionObserved, target, acc))
				presenter.AssertNotCalled(t, "ShowLoggedOut")
				continue
			}

			require.NoError(t, machine.Apply(ctx, authflow.TriggerSessionObserved, target, acc))
			assert.Equal(t, target, machine.Current())
			assert.Equal(t, account, machine.CurrentAccount())
		}
	})

	t.Run("rejects illegal trigger target pairs", func(t *testing.T) {
		machine := authflow.NewScreenMachine(nil)

		err := machine.Apply(ctx, authflow.TriggerUsernameAccepted, authflow.ScreenLoggedOut, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, authflow.ErrInvalidScreenTransition))

		err = machine.Apply(ctx, authflow.TriggerSessionEnded, authflow.ScreenLoggedIn, account)
		require.Error(t, err)
		assert.True(t, errors.Is(err, authflow.ErrInvalidScreenTransition))

		err = machine.Apply(ctx, authflow.TriggerCredentialsSubmitted, authflow.ScreenLoggedIn, account)
		require.Error(t, err)
		assert.True(t, errors.Is(err, authflow.ErrInvalidScreenTransition))
	})

	t.Run("empty target rejected", func(t *testing.T) {
		machine := authflow.NewScreenMachine(nil)

		err := machine.Apply(ctx, authflow.TriggerSessionObserved, "", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, authflow.ErrInvalidScreenTransition))
	})

	t.Run("redundant re-application is dropped", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowLoggedIn", account).Return().Once()

		sink := &capturingSink{}
		machine := authflow.NewScreenMachine(presenter,
			authflow.WithScreenMachineActivitySink(sink),
		)

		require.NoError(t, machine.Apply(ctx, authflow.TriggerSessionObserved, authflow.ScreenLoggedIn, account))
		require.NoError(t, machine.Apply(ctx, authflow.TriggerSessionObserved, authflow.ScreenLoggedIn, account))

		presenter.AssertExpectations(t)
		assert.Len(t, sink.events, 1, "second application should not record activity")
	})

	t.Run("logged out clears the account", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowLoggedIn", account).Return()
		presenter.On("ShowLoggedOut").Return()

		machine := authflow.NewScreenMachine(presenter)

		require.NoError(t, machine.Apply(ctx, authflow.TriggerSessionObserved, authflow.ScreenLoggedIn, account))
		require.NoError(t, machine.Apply(ctx, authflow.TriggerSessionEnded, authflow.ScreenLoggedOut, account))

		assert.Nil(t, machine.CurrentAccount())
	})

	t.Run("records screen change activity", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowChoosingUsername", account).Return()

		sink := &capturingSink{}
		machine := authflow.NewScreenMachine(presenter,
			authflow.WithScreenMachineActivitySink(sink),
		)

		require.NoError(t, machine.Apply(ctx, authflow.TriggerSessionObserved, authflow.ScreenChoosingUsername, account))

		require.Len(t, sink.events, 1)
		event := sink.events[0]
		assert.Equal(t, authflow.ActivityEventScreenChanged, event.EventType)
		assert.Equal(t, "acc-1", event.AccountID)
		assert.Equal(t, authflow.ScreenLoggedOut, event.FromScreen)
		assert.Equal(t, authflow.ScreenChoosingUsername, event.ToScreen)
		assert.False(t, event.OccurredAt.IsZero())
	})

	t.Run("hooks run after presentation", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowLoggedIn", account).Return()

		var got authflow.ScreenContext
		machine := authflow.NewScreenMachine(presenter,
			authflow.WithScreenHook(func(_ context.Context, sc authflow.ScreenContext) error {
				got = sc
				return nil
			}),
		)

		require.NoError(t, machine.Apply(ctx, authflow.TriggerSessionObserved, authflow.ScreenLoggedIn, account))

		assert.Equal(t, authflow.TriggerSessionObserved, got.Trigger)
		assert.Equal(t, authflow.ScreenLoggedOut, got.From)
		assert.Equal(t, authflow.ScreenLoggedIn, got.To)
		assert.Equal(t, account, got.Account)
	})

	t.Run("hook failure does not undo the transition", func(t *testing.T) {
		presenter := new(MockPresenter)
		presenter.On("ShowLoggedIn", account).Return()

		machine := authflow.NewScreenMachine(presenter,
			authflow.WithScreenMachineLogger(quietLogger{}),
			authflow.WithScreenHook(func(context.Context, authflow.ScreenContext) error {
				return errors.New("boom")
			}),
		)

		require.NoError(t, machine.Apply(ctx, authflow.TriggerSessionObserved, authflow.ScreenLoggedIn, account))
		assert.Equal(t, authflow.ScreenLoggedIn, machine.Current())
	})
}

func TestScreenMachineRequire(t *testing.T) {
	machine := authflow.NewScreenMachine(nil)

	require.NoError(t, machine.Require(authflow.ScreenLoggedOut))

	err := machine.Require(authflow.ScreenChoosingUsername)
	require.Error(t, err)
	assert.True(t, errors.Is(err, authflow.ErrScreenOutOfStep))
}

func TestScreenMachineErrorMetadataIsPerCall(t *testing.T) {
	machine := authflow.NewScreenMachine(nil)

	errA := machine.Require(authflow.ScreenChoosingUsername)
	errB := machine.Require(authflow.ScreenLoggedIn)

	var richA, richB *goerrors.Error
	require.True(t, goerrors.As(errA, &richA))
	require.True(t, goerrors.As(errB, &richB))

	// Each failure carries its own metadata; the shared error value stays
	// untouched.
	assert.Equal(t, authflow.ScreenChoosingUsername, richA.Metadata["required"])
	assert.Equal(t, authflow.ScreenLoggedIn, richB.Metadata["required"])
	assert.Empty(t, authflow.ErrScreenOutOfStep.Metadata)
}
