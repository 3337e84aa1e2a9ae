package devidentity_test

import (
	"context"
	"errors"
	"testing"

	authflow "github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/devidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an account and opens a session", func(t *testing.T) {
		svc := devidentity.New()

		var observed []authflow.Session
		unsubscribe := svc.SubscribeSessionChanges(func(s authflow.Session) {
			observed = append(observed, s)
		})
		defer unsubscribe()

		account, err := svc.SignUp(ctx, "Pam@Example.com", "secretpw")
		require.NoError(t, err)
		assert.NotEmpty(t, account.ID)
		assert.Equal(t, "pam@example.com", account.Email)

		require.Len(t, observed, 2)
		assert.False(t, observed[0].Present())
		assert.True(t, observed[1].Present())
	})

	t.Run("stable identifier for the same email", func(t *testing.T) {
		first := devidentity.New()
		second := devidentity.New()

		a, err := first.SignUp(ctx, "pam@example.com", "secretpw")
		require.NoError(t, err)
		b, err := second.SignUp(ctx, "pam@example.com", "secretpw")
		require.NoError(t, err)

		assert.Equal(t, a.ID, b.ID)
	})

	t.Run("rejects duplicates and weak input", func(t *testing.T) {
		svc := devidentity.New()

		_, err := svc.SignUp(ctx, "pam@example.com", "secretpw")
		require.NoError(t, err)

		_, err = svc.SignUp(ctx, "pam@example.com", "other-pw")
		assert.True(t, errors.Is(err, authflow.ErrEmailTaken))

		_, err = svc.SignUp(ctx, "not-an-email", "secretpw")
		assert.True(t, errors.Is(err, authflow.ErrInvalidEmail))

		_, err = svc.SignUp(ctx, "jim@example.com", "short")
		assert.True(t, errors.Is(err, authflow.ErrWeakPassword))
	})
}

func TestServiceSignIn(t *testing.T) {
	ctx := context.Background()
	svc := devidentity.New()

	_, err := svc.SignUp(ctx, "pam@example.com", "secretpw")
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(ctx))

	t.Run("valid credentials", func(t *testing.T) {
		account, err := svc.SignIn(ctx, "pam@example.com", "secretpw")
		require.NoError(t, err)
		assert.Equal(t, "pam@example.com", account.Email)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		_, wrongPw := svc.SignIn(ctx, "pam@example.com", "nope")
		_, unknown := svc.SignIn(ctx, "ghost@example.com", "nope")

		assert.True(t, errors.Is(wrongPw, authflow.ErrInvalidCredentials))
		assert.True(t, errors.Is(unknown, authflow.ErrInvalidCredentials))
		assert.Equal(t, wrongPw.Error(), unknown.Error())
	})
}

func TestServiceUpdateDisplayName(t *testing.T) {
	ctx := context.Background()
	svc := devidentity.New()

	account, err := svc.SignUp(ctx, "pam@example.com", "secretpw")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateDisplayName(ctx, account.ID, "Pam"))

	got, err := svc.SignIn(ctx, "pam@example.com", "secretpw")
	require.NoError(t, err)
	assert.Equal(t, "Pam", got.Name)

	require.Error(t, svc.UpdateDisplayName(ctx, "missing-id", "Nope"))
}

func TestServiceFederatedSignIn(t *testing.T) {
	ctx := context.Background()
	jim := &authflow.Account{ID: "acc-9", Email: "jim@example.com", Name: "Jim"}

	t.Run("unscripted provider reads as dismissed popup", func(t *testing.T) {
		svc := devidentity.New()

		_, err := svc.FederatedSignIn(ctx, authflow.ProviderGoogle)
		assert.True(t, authflow.IsPopupClosed(err))
	})

	t.Run("scripted success opens a session", func(t *testing.T) {
		svc := devidentity.New(
			devidentity.WithFederatedOutcome(authflow.ProviderGoogle, devidentity.FederatedOutcome{
				Account: jim,
			}),
		)

		account, err := svc.FederatedSignIn(ctx, authflow.ProviderGoogle)
		require.NoError(t, err)
		assert.Equal(t, "acc-9", account.ID)
		assert.Equal(t, authflow.ProviderGoogle, account.Provider)
	})

	t.Run("scripted error passes through", func(t *testing.T) {
		svc := devidentity.New()
		svc.ScriptFederated(authflow.ProviderGitHub, devidentity.FederatedOutcome{
			Err: authflow.ErrCredentialInUse,
		})

		_, err := svc.FederatedSignIn(ctx, authflow.ProviderGitHub)
		assert.True(t, authflow.IsCredentialInUse(err))
	})
}

func TestServiceSessionFanOut(t *testing.T) {
	ctx := context.Background()
	svc := devidentity.New()

	var first, second int
	stopFirst := svc.SubscribeSessionChanges(func(authflow.Session) { first++ })
	stopSecond := svc.SubscribeSessionChanges(func(authflow.Session) { second++ })

	_, err := svc.SignUp(ctx, "pam@example.com", "secretpw")
	require.NoError(t, err)

	stopFirst()
	require.NoError(t, svc.SignOut(ctx))
	stopSecond()

	// first: initial + signup; second: initial + signup + signout.
	assert.Equal(t, 2, first)
	assert.Equal(t, 3, second)
}
