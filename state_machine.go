package authflow

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidScreenTransition = "INVALID_SCREEN_TRANSITION"
	textCodeScreenOutOfStep         = "SCREEN_OUT_OF_STEP"
)

// ErrInvalidScreenTransition is returned when a trigger requests a target
// screen it is not allowed to produce.
var ErrInvalidScreenTransition = goerrors.New("invalid screen transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidScreenTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrScreenOutOfStep is returned when an operation requires a screen the
// machine is not currently on (e.g. claiming a username while logged out).
var ErrScreenOutOfStep = goerrors.New("operation not valid for current screen", goerrors.CategoryConflict).
	WithTextCode(textCodeScreenOutOfStep).
	WithCode(goerrors.CodeConflict)

// ScreenContext is passed into hooks for additional processing.
type ScreenContext struct {
	Trigger Trigger
	From    ScreenState
	To      ScreenState
	Account *Account
}

// ScreenHook runs after a transition is applied and presented.
type ScreenHook func(ctx context.Context, sc ScreenContext) error

// ScreenMachineOption customizes screen machine construction.
type ScreenMachineOption func(*ScreenMachine)

// WithScreenMachineClock injects a custom clock (useful for tests).
func WithScreenMachineClock(clock func() time.Time) ScreenMachineOption {
	return func(sm *ScreenMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithScreenMachineActivitySink sets the ActivitySink used to publish
// screen change events.
func WithScreenMachineActivitySink(sink ActivitySink) ScreenMachineOption {
	return func(sm *ScreenMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithScreenMachineLogger overrides the logger used for sink and hook failures.
func WithScreenMachineLogger(logger Logger) ScreenMachineOption {
	return func(sm *ScreenMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithScreenHook adds a hook executed after each applied transition. Hook
// failures are logged, never propagated: presentation already happened.
func WithScreenHook(h ScreenHook) ScreenMachineOption {
	return func(sm *ScreenMachine) {
		if h != nil {
			sm.hooks = append(sm.hooks, h)
		}
	}
}

// ScreenMachine drives the Presenter through the three screens. Transitions
// are validated against the trigger table and applied idempotently:
// re-applying the current screen performs no presenter call and records no
// activity, which makes redundant session notifications harmless.
type ScreenMachine struct {
	mu           sync.Mutex
	state        ScreenState
	account      *Account
	presenter    Presenter
	transitions  map[Trigger]map[ScreenState]struct{}
	hooks        []ScreenHook
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

// NewScreenMachine returns a machine on the logged-out screen. The presenter
// is not invoked until the first transition applies.
func NewScreenMachine(presenter Presenter, opts ...ScreenMachineOption) *ScreenMachine {
	sm := &ScreenMachine{
		state:        ScreenLoggedOut,
		presenter:    presenter,
		transitions:  screenTransitions(),
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

// Current returns the screen currently presented.
func (sm *ScreenMachine) Current() ScreenState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// CurrentAccount returns the account attached to the current screen, nil on
// the logged-out screen.
func (sm *ScreenMachine) CurrentAccount() *Account {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.account
}

// Require returns ErrScreenOutOfStep unless the machine is on the given screen.
func (sm *ScreenMachine) Require(state ScreenState) error {
	if current := sm.Current(); current != state {
		return goerrors.Wrap(ErrScreenOutOfStep, goerrors.CategoryConflict, "operation not valid for current screen").
			WithMetadata(map[string]any{
				"current":  current,
				"required": state,
			})
	}
	return nil
}

// Apply moves the machine to the target screen because of the given trigger.
// The account is the signed-in account for the username and logged-in
// screens, nil for the logged-out screen.
func (sm *ScreenMachine) Apply(ctx context.Context, trigger Trigger, target ScreenState, account *Account) error {
	if target == "" {
		return goerrors.Wrap(ErrInvalidScreenTransition, goerrors.CategoryValidation, "target screen is empty").
			WithMetadata(map[string]any{
				"trigger": trigger,
			})
	}

	if !sm.canTransition(trigger, target) {
		return goerrors.Wrap(ErrInvalidScreenTransition, goerrors.CategoryValidation, "trigger does not allow target screen").
			WithMetadata(map[string]any{
				"trigger": trigger,
				"to":      target,
			})
	}

	sm.mu.Lock()
	from := sm.state
	if from == target {
		// Redundant re-application, e.g. a federated popup resolving after
		// the observer already routed. Keep the screen untouched.
		sm.mu.Unlock()
		return nil
	}
	sm.state = target
	sm.account = accountForScreen(target, account)
	presented := sm.account
	sm.mu.Unlock()

	sm.present(target, presented)

	sc := ScreenContext{
		Trigger: trigger,
		From:    from,
		To:      target,
		Account: presented,
	}

	for _, hook := range sm.hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, sc); err != nil {
			sm.logger.Warn("screen hook error: %v", err)
		}
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventScreenChanged,
		AccountID:  accountID(presented),
		Trigger:    trigger,
		FromScreen: from,
		ToScreen:   target,
	})

	return nil
}

func (sm *ScreenMachine) canTransition(trigger Trigger, target ScreenState) bool {
	if allowed, ok := sm.transitions[trigger]; ok {
		_, exists := allowed[target]
		return exists
	}
	return false
}

func (sm *ScreenMachine) present(target ScreenState, account *Account) {
	if sm.presenter == nil {
		return
	}

	switch target {
	case ScreenLoggedOut:
		sm.presenter.ShowLoggedOut()
	case ScreenChoosingUsername:
		sm.presenter.ShowChoosingUsername(account)
	case ScreenLoggedIn:
		sm.presenter.ShowLoggedIn(account)
	}
}

func (sm *ScreenMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("screen machine activity sink error: %v", err)
	}
}

func accountForScreen(target ScreenState, account *Account) *Account {
	if target == ScreenLoggedOut {
		return nil
	}
	return account
}

func accountID(account *Account) string {
	if account == nil {
		return ""
	}
	return account.ID
}
