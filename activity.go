package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventMembershipCreated          ActivityEventType = "membership.created"
	ActivityEventMembershipStatusChanged    ActivityEventType = "membership.status.changed"
	ActivityEventOrgStatusChanged           ActivityEventType = "org.status.changed"
	ActivityEventInvitationAccepted         ActivityEventType = "invitation.accepted"
	ActivityEventAffiliationCreated         ActivityEventType = "affiliation.created"
	ActivityEventAffiliationInviteAccepted  ActivityEventType = "affiliation.invitation.accepted"
	ActivityEventAffiliationInviteRefused   ActivityEventType = "affiliation.invitation.refused"
	ActivityEventProductSubscriptionChanged ActivityEventType = "product.subscription.changed"
	ActivityEventTaskActioned               ActivityEventType = "task.actioned"
)

// ActorRef identifies who or what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	OrgID      string
	SubjectID  string
	FromStatus string
	ToStatus   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort; failures are logged, never raised.
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
