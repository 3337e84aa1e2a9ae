package authflow

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignUpSuccess    ActivityEventType = "flow.signup.success"
	ActivityEventSignUpFailure    ActivityEventType = "flow.signup.failure"
	ActivityEventLoginSuccess     ActivityEventType = "flow.login.success"
	ActivityEventLoginFailure     ActivityEventType = "flow.login.failure"
	ActivityEventFederatedLogin   ActivityEventType = "flow.federated.login"
	ActivityEventFederatedCancel  ActivityEventType = "flow.federated.cancelled"
	ActivityEventFederatedFailure ActivityEventType = "flow.federated.failure"
	ActivityEventUsernameClaimed  ActivityEventType = "flow.username.claimed"
	ActivityEventUsernameRejected ActivityEventType = "flow.username.rejected"
	ActivityEventScreenChanged    ActivityEventType = "flow.screen.changed"
	ActivityEventLogout           ActivityEventType = "flow.logout"
)

// ActivityEvent captures audit-friendly information about a flow action.
type ActivityEvent struct {
	EventType  ActivityEventType
	AccountID  string
	Trigger    Trigger
	FromScreen ScreenState
	ToScreen   ScreenState
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
