package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// NotificationType selects the outbound template.
type NotificationType = string

const (
	NotificationTeamInvitation            NotificationType = "team.invitation"
	NotificationMembershipApprovalPending NotificationType = "team.membership.pending"
	NotificationAffiliationInvitation     NotificationType = "affiliation.invitation"
	NotificationAffiliationAuthorized     NotificationType = "affiliation.authorized"
	NotificationAffiliationRefused        NotificationType = "affiliation.refused"
	NotificationTaskOnHold                NotificationType = "task.hold"
)

// Notification is the fire-and-forget event handed to the notification
// collaborator. Data carries template-specific fields.
type Notification struct {
	Type       NotificationType
	OrgID      uuid.UUID
	Recipients []string
	Data       map[string]any
}

// Notifier publishes notifications to the external delivery service.
// Failures are business errors: the owning row is marked FAILED and the
// error re-raised, never silently retried.
type Notifier interface {
	Publish(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Publish implements Notifier.
func (f NotifierFunc) Publish(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, Notification) error { return nil }

// BusinessDetails is the registry's view of a business record.
type BusinessDetails struct {
	Identifier   string `json:"identifier"`
	LegalName    string `json:"legalName"`
	LegalType    string `json:"legalType"`
	State        string `json:"state"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

// NameRequestDetails is the registry's view of a name request.
type NameRequestDetails struct {
	Number     string   `json:"nrNum"`
	State      string   `json:"state"`
	Names      []string `json:"names"`
	Applicants []string `json:"applicants"`
}

// RegistryClient looks up business registrations in the external registry
// service. Implementations wrap 5xx and connection failures as
// ErrServiceUnavailable; 4xx errors propagate as-is.
type RegistryClient interface {
	GetBusinessDetails(ctx context.Context, identifier string) (*BusinessDetails, error)
	GetNameRequestDetails(ctx context.Context, nrNumber string) (*NameRequestDetails, error)
}

// WrapUpstreamError converts a transport-level failure into the service
// unavailable business error, keeping structured errors untouched.
func WrapUpstreamError(err error, service string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}
	return goerrors.Wrap(err, ErrServiceUnavailable.Category, ErrServiceUnavailable.Message).
		WithTextCode(ErrServiceUnavailable.TextCode).
		WithMetadata(map[string]any{"service": service})
}
