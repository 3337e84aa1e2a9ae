package authflow

import (
	"context"
)

// SessionObserver owns the single identity-service subscription and turns
// session transitions into screen transitions. The callback can fire any
// number of times over the page lifetime; routing is idempotent because the
// ScreenMachine drops redundant re-applications.
type SessionObserver struct {
	identity    IdentityService
	records     Records
	machine     *ScreenMachine
	logger      Logger
	notifier    Notifier
	unsubscribe func()
}

// SessionObserverOption customizes observer construction.
type SessionObserverOption func(*SessionObserver)

// WithObserverLogger overrides the default logger.
func WithObserverLogger(logger Logger) SessionObserverOption {
	return func(o *SessionObserver) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserverNotifier sets the user-facing notification surface.
func WithObserverNotifier(n Notifier) SessionObserverOption {
	return func(o *SessionObserver) {
		o.notifier = n
	}
}

// NewSessionObserver wires the observer. Call Start to subscribe.
func NewSessionObserver(identity IdentityService, records Records, machine *ScreenMachine, opts ...SessionObserverOption) *SessionObserver {
	o := &SessionObserver{
		identity: identity,
		records:  records,
		machine:  machine,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	o.notifier = normalizeNotifier(o.notifier, o.logger)

	return o
}

// Start registers the session-change callback. Calling Start twice replaces
// the previous subscription so at most one is ever live.
func (o *SessionObserver) Start(ctx context.Context) {
	o.Stop()
	o.unsubscribe = o.identity.SubscribeSessionChanges(func(session Session) {
		o.Observe(ctx, session)
	})
}

// Stop removes the subscription.
func (o *SessionObserver) Stop() {
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
}

// Observe routes one session notification. Exposed so direct continuations
// (e.g. a login sequence that already holds the account) share the exact
// routing the subscription uses.
func (o *SessionObserver) Observe(ctx context.Context, session Session) {
	if !session.Present() {
		if err := o.machine.Apply(ctx, TriggerSessionEnded, ScreenLoggedOut, nil); err != nil {
			o.logger.Error("session observer: %v", err)
		}
		return
	}

	account := session.Account()
	target := RouteScreen(ctx, o.records, account, o.logger, o.notifier)

	if err := o.machine.Apply(ctx, TriggerSessionObserved, target, account); err != nil {
		o.logger.Error("session observer: %v", err)
	}
}

// RouteScreen decides the screen a present session warrants: one point read
// of the account record; missing record or empty username routes to the
// username screen, anything else to the logged-in screen. A failed read is
// surfaced and routes to the username screen so an unverified username can
// never reach the logged-in screen.
func RouteScreen(ctx context.Context, records Records, account *Account, logger Logger, notifier Notifier) ScreenState {
	record, err := records.Get(ctx, account.ID)
	if err != nil {
		if IsRecordNotFound(err) {
			return ScreenChoosingUsername
		}

		if logger != nil {
			logger.Error("route screen record read: %v", err)
		}
		if notifier != nil {
			notifier.Alert("Could not load your profile. Please try again.")
		}
		return ScreenChoosingUsername
	}

	if !record.HasUsername() {
		return ScreenChoosingUsername
	}

	return ScreenLoggedIn
}
