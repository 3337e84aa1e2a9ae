package authflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SignUpPolicy selects what a completed sign-up sequence does with the
// screen. The two observed behaviors are mutually inconsistent, so the
// policy is explicit rather than merged.
type SignUpPolicy string

const (
	// SignUpReturnToLogin ends the session and returns to the login screen;
	// the user authenticates with the credentials they just created. This
	// is the default.
	SignUpReturnToLogin SignUpPolicy = "return_to_login"
	// SignUpContinue keeps the fresh session and proceeds straight to the
	// username selection screen.
	SignUpContinue SignUpPolicy = "continue"
)

// Sequencer orchestrates the ordered remote calls that take a visitor from
// anonymous to a fully provisioned account. Each step depends on the
// previous one succeeding; the first failure terminates the sequence and is
// surfaced through the Notifier. No step is retried.
type Sequencer struct {
	identity IdentityService
	records  Records
	machine  *ScreenMachine
	logger   Logger
	notifier Notifier
	activity ActivitySink
	policy   SignUpPolicy
	now      func() time.Time
}

// SequencerOption customizes sequencer construction.
type SequencerOption func(*Sequencer)

// WithSequencerLogger overrides the default logger.
func WithSequencerLogger(logger Logger) SequencerOption {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSequencerNotifier sets the user-facing notification surface.
func WithSequencerNotifier(n Notifier) SequencerOption {
	return func(s *Sequencer) {
		s.notifier = n
	}
}

// WithSequencerActivitySink sets the ActivitySink used for flow audit events.
func WithSequencerActivitySink(sink ActivitySink) SequencerOption {
	return func(s *Sequencer) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithSignUpPolicy selects the sign-up completion behavior.
func WithSignUpPolicy(policy SignUpPolicy) SequencerOption {
	return func(s *Sequencer) {
		if policy != "" {
			s.policy = policy
		}
	}
}

// WithSequencerClock injects a custom clock (useful for tests).
func WithSequencerClock(clock func() time.Time) SequencerOption {
	return func(s *Sequencer) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewSequencer wires a sequencer over the identity service, the record
// store, and the screen machine.
func NewSequencer(identity IdentityService, records Records, machine *ScreenMachine, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		identity: identity,
		records:  records,
		machine:  machine,
		logger:   defLogger{},
		activity: noopActivitySink{},
		policy:   SignUpReturnToLogin,
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.notifier = normalizeNotifier(s.notifier, s.logger)

	return s
}

// SignUp runs the sign-up sequence: create the account, set its display
// name, create the account record without a username. Credential errors are
// surfaced verbatim and abort before anything exists. A record-create
// failure leaves an account without a record; that degraded state is
// surfaced, not rolled back.
func (s *Sequencer) SignUp(ctx context.Context, payload SignUpPayload) error {
	if err := payload.Validate(); err != nil {
		s.notifier.Alert(fmt.Sprintf("Error: %s", ErrorMessage(err)))
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid sign-up payload")
	}

	name := ResolveDisplayName(payload.Name, payload.Email)

	account, err := s.identity.SignUp(ctx, payload.Email, payload.Password)
	if err != nil {
		s.logger.Error("sign up create account: %v", err)
		s.emit(ctx, ActivityEventSignUpFailure, "", map[string]any{
			"email": payload.Email,
			"step":  "create_account",
			"error": err.Error(),
		})
		s.notifier.Alert(fmt.Sprintf("Error: %s", ErrorMessage(err)))
		return err
	}

	if err := s.identity.UpdateDisplayName(ctx, account.ID, name); err != nil {
		s.logger.Error("sign up display name: %v", err)
		s.emit(ctx, ActivityEventSignUpFailure, account.ID, map[string]any{
			"step":  "display_name",
			"error": err.Error(),
		})
		s.notifier.Alert(fmt.Sprintf("Error: %s", ErrorMessage(err)))
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not set display name")
	}
	account.Name = name

	createdAt := s.now()
	record := &AccountRecord{
		ID:        account.ID,
		Email:     payload.Email,
		Name:      name,
		CreatedAt: &createdAt,
	}

	if err := s.records.Put(ctx, record); err != nil {
		// The account exists without a record at this point. Surface it;
		// the observer routes the next session to the username screen and
		// federated-style record backfill is not attempted here.
		s.logger.Error("sign up record create: %v", err)
		s.emit(ctx, ActivityEventSignUpFailure, account.ID, map[string]any{
			"step":  "record_create",
			"error": err.Error(),
		})
		s.notifier.Alert("Could not save your profile. Please try again.")
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not create account record")
	}

	s.emit(ctx, ActivityEventSignUpSuccess, account.ID, map[string]any{
		"email":  payload.Email,
		"policy": string(s.policy),
	})

	if s.policy == SignUpContinue {
		return s.machine.Apply(ctx, TriggerCredentialsSubmitted, ScreenChoosingUsername, account)
	}

	// Return-to-login policy: end any session the service opened during
	// account creation so the observer also lands on the login screen.
	if err := s.identity.SignOut(ctx); err != nil {
		s.logger.Debug("sign up post-create sign out: %v", err)
	}

	s.notifier.Info(fmt.Sprintf("Sign up successful, %s! Please log in.", name))

	return s.machine.Apply(ctx, TriggerCredentialsSubmitted, ScreenLoggedOut, nil)
}

// LogIn authenticates credentials and routes to the screen the account
// record warrants. Every credential failure collapses into the same generic
// message so the login path cannot confirm whether an email is registered.
func (s *Sequencer) LogIn(ctx context.Context, payload CredentialsPayload) error {
	if err := payload.Validate(); err != nil {
		s.notifier.Alert("Invalid email or password.")
		return ErrInvalidCredentials
	}

	account, err := s.identity.SignIn(ctx, payload.Email, payload.Password)
	if err != nil {
		s.logger.Error("login: %v", err)
		s.emit(ctx, ActivityEventLoginFailure, "", map[string]any{
			"email": payload.Email,
			"error": err.Error(),
		})

		if IsCredentialError(err) {
			s.notifier.Alert("Invalid email or password.")
			return ErrInvalidCredentials
		}

		s.notifier.Alert(fmt.Sprintf("Error: %s", ErrorMessage(err)))
		return err
	}

	s.emit(ctx, ActivityEventLoginSuccess, account.ID, map[string]any{
		"email": payload.Email,
	})

	// Direct continuation; the observer's notification re-applies the same
	// screen and is dropped by the machine.
	target := RouteScreen(ctx, s.records, account, s.logger, s.notifier)
	return s.machine.Apply(ctx, TriggerSessionObserved, target, account)
}

// ChooseUsername runs the one-time username selection step. The length check
// is local and issues zero remote calls when it fails. The uniqueness check
// is the best-effort query plus the store's conditional reservation write,
// so two sessions racing for the same candidate cannot both win.
func (s *Sequencer) ChooseUsername(ctx context.Context, candidate string) error {
	if err := s.machine.Require(ScreenChoosingUsername); err != nil {
		return err
	}

	account := s.machine.CurrentAccount()
	if account == nil {
		return goerrors.Wrap(ErrScreenOutOfStep, goerrors.CategoryConflict, "no account on username screen").
			WithMetadata(map[string]any{
				"screen": ScreenChoosingUsername,
			})
	}

	candidate = strings.TrimSpace(candidate)
	if !usernameLongEnough(candidate) {
		s.notifier.Alert("Username must be at least 3 characters.")
		return goerrors.Wrap(ErrUsernameTooShort, goerrors.CategoryValidation, "username below minimum length").
			WithMetadata(map[string]any{
				"candidate": candidate,
			})
	}

	matches, err := s.records.FindByUsername(ctx, candidate)
	if err != nil {
		s.logger.Error("username uniqueness query: %v", err)
		s.notifier.Alert("Could not verify the username. Please try again.")
		return goerrors.Wrap(err, goerrors.CategoryOperation, "username uniqueness query failed")
	}

	if len(matches) > 0 {
		s.emit(ctx, ActivityEventUsernameRejected, account.ID, map[string]any{
			"candidate": candidate,
		})
		s.notifier.Alert("That username is already taken.")
		return goerrors.Wrap(ErrUsernameTaken, goerrors.CategoryConflict, "username already held by another record").
			WithMetadata(map[string]any{
				"candidate": candidate,
			})
	}

	if err := s.records.ClaimUsername(ctx, account.ID, candidate); err != nil {
		if IsUsernameTaken(err) {
			// Lost the reservation race after passing the query.
			s.emit(ctx, ActivityEventUsernameRejected, account.ID, map[string]any{
				"candidate": candidate,
				"raced":     true,
			})
			s.notifier.Alert("That username is already taken.")
			return err
		}

		s.logger.Error("username claim: %v", err)
		s.notifier.Alert("Could not save the username. Please try again.")
		return goerrors.Wrap(err, goerrors.CategoryOperation, "username claim failed")
	}

	if err := s.records.SetUsername(ctx, account.ID, candidate); err != nil {
		s.logger.Error("username record update: %v", err)
		s.notifier.Alert("Could not save the username. Please try again.")
		return goerrors.Wrap(err, goerrors.CategoryOperation, "username record update failed")
	}

	s.emit(ctx, ActivityEventUsernameClaimed, account.ID, map[string]any{
		"username": candidate,
	})

	return s.machine.Apply(ctx, TriggerUsernameAccepted, ScreenLoggedIn, account)
}

// FederatedSignIn runs the provider consent flow and backfills the account
// record when the provider account is new. It never forces a screen
// transition; the observer's notification routes based on the record.
func (s *Sequencer) FederatedSignIn(ctx context.Context, provider ProviderKind) error {
	account, err := s.identity.FederatedSignIn(ctx, provider)
	if err != nil {
		if IsPopupClosed(err) {
			// Not an error from the user's point of view: no alert, one
			// log entry, screen untouched.
			s.logger.Info("federated sign-in cancelled by user provider=%s", provider)
			s.emit(ctx, ActivityEventFederatedCancel, "", map[string]any{
				"provider": provider,
			})
			return nil
		}

		s.logger.Error("federated sign-in provider=%s: %v", provider, err)
		s.emit(ctx, ActivityEventFederatedFailure, "", map[string]any{
			"provider": provider,
			"error":    err.Error(),
		})

		if IsCredentialInUse(err) {
			s.notifier.Alert("An account already exists with the same email address. Please sign in with the original method.")
			return err
		}

		s.notifier.Alert(fmt.Sprintf("Error: %s", ErrorMessage(err)))
		return err
	}

	if _, err := s.records.Get(ctx, account.ID); err != nil {
		if !IsRecordNotFound(err) {
			s.logger.Error("federated record read: %v", err)
			s.notifier.Alert("Could not load your profile. Please try again.")
			return goerrors.Wrap(err, goerrors.CategoryOperation, "federated record read failed")
		}

		createdAt := s.now()
		record := &AccountRecord{
			ID:        account.ID,
			Email:     account.Email,
			Name:      account.Name,
			CreatedAt: &createdAt,
		}

		if err := s.records.Put(ctx, record); err != nil {
			s.logger.Error("federated record create: %v", err)
			s.notifier.Alert("Could not save your profile. Please try again.")
			return goerrors.Wrap(err, goerrors.CategoryOperation, "federated record create failed")
		}

		s.logger.Info("new account signed in via popup, record stored account=%s", account.ID)
	} else {
		s.logger.Info("existing account signed in via popup account=%s", account.ID)
	}

	s.emit(ctx, ActivityEventFederatedLogin, account.ID, map[string]any{
		"provider": provider,
	})

	return nil
}

// LogOut ends the session. The observer routes the resulting absent-session
// notification to the logged-out screen.
func (s *Sequencer) LogOut(ctx context.Context) error {
	accountID := accountID(s.machine.CurrentAccount())

	if err := s.identity.SignOut(ctx); err != nil {
		s.logger.Error("logout: %v", err)
		s.notifier.Alert("Failed to log out.")
		return err
	}

	s.emit(ctx, ActivityEventLogout, accountID, nil)

	return nil
}

func (s *Sequencer) emit(ctx context.Context, eventType ActivityEventType, accountID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		AccountID:  accountID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	sink := normalizeActivitySink(s.activity)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
