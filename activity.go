package identity

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventAccountLocked        ActivityEventType = "auth.account.locked"
	ActivityEventChallengeIssued      ActivityEventType = "auth.twofactor.issued"
	ActivityEventChallengeSuccess     ActivityEventType = "auth.twofactor.success"
	ActivityEventChallengeFailure     ActivityEventType = "auth.twofactor.failure"
	ActivityEventAccountRegistered    ActivityEventType = "account.registered"
	ActivityEventRoleChanged          ActivityEventType = "account.role.changed"
	ActivityEventEmailConfirmed       ActivityEventType = "account.email.confirmed"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset.requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
	ActivityEventPasswordChanged      ActivityEventType = "auth.password.changed"
	ActivityEventExternalLinked       ActivityEventType = "auth.external.linked"
	ActivityEventExternalUnlinked     ActivityEventType = "auth.external.unlinked"
	ActivityEventOperationalError     ActivityEventType = "system.operation.error"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Infrastructure failures are also reported here (account-agnostic), which
// replaces the original error-log sink with an injected dependency.
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
