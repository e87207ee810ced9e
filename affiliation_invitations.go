package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateAffiliationInvitationRequest is the input for a new affiliation
// invitation. Type defaults to EMAIL; ToOrgID is required for EMAIL and
// optional for REQUEST.
type CreateAffiliationInvitationRequest struct {
	FromOrgID          uuid.UUID
	ToOrgID            *uuid.UUID
	BusinessIdentifier string
	Type               AffiliationInvitationType
	AdditionalMessage  string
}

// AffiliationInvitationService owns the cross-org business transfer flow.
type AffiliationInvitationService struct {
	repos    RepositoryManager
	tokens   *TokenService
	notifier Notifier
	registry RegistryClient
	auditor  *Auditor
	sink     ActivitySink
	now      func() time.Time
	logger   Logger
}

// AffiliationInvitationServiceOption customizes service construction.
type AffiliationInvitationServiceOption func(*AffiliationInvitationService)

// WithAffiliationClock injects a custom clock (useful for tests).
func WithAffiliationClock(clock func() time.Time) AffiliationInvitationServiceOption {
	return func(s *AffiliationInvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAffiliationLogger overrides the logger.
func WithAffiliationLogger(logger Logger) AffiliationInvitationServiceOption {
	return func(s *AffiliationInvitationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAffiliationActivitySink sets the sink lifecycle events publish to.
func WithAffiliationActivitySink(sink ActivitySink) AffiliationInvitationServiceOption {
	return func(s *AffiliationInvitationService) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithAffiliationAuditor sets the audit writer.
func WithAffiliationAuditor(a *Auditor) AffiliationInvitationServiceOption {
	return func(s *AffiliationInvitationService) {
		s.auditor = a
	}
}

// NewAffiliationInvitationService wires the affiliation-invitation service.
func NewAffiliationInvitationService(repos RepositoryManager, tokens *TokenService, notifier Notifier, registry RegistryClient, opts ...AffiliationInvitationServiceOption) *AffiliationInvitationService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s := &AffiliationInvitationService{
		repos:    repos,
		tokens:   tokens,
		notifier: notifier,
		registry: registry,
		sink:     noopActivitySink{},
		now:      time.Now,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create validates and persists a PENDING affiliation invitation. Both orgs
// must exist, the business must be known to the registry, an EMAIL-type
// invitation needs the business's contact email, and neither an affiliation
// nor an active invitation may already cover the pair.
func (s *AffiliationInvitationService) Create(ctx context.Context, sender *User, req CreateAffiliationInvitationRequest) (*AffiliationInvitation, error) {
	invType := req.Type
	if invType == "" {
		invType = AffiliationInvitationTypeEmail
	}

	if _, err := s.repos.Orgs().FindByID(ctx, req.FromOrgID); err != nil {
		return nil, err
	}
	var toOrg *Org
	if req.ToOrgID != nil {
		var err error
		if toOrg, err = s.repos.Orgs().FindByID(ctx, *req.ToOrgID); err != nil {
			return nil, err
		}
	} else if invType == AffiliationInvitationTypeEmail {
		return nil, goerrors.New("to org is required for email invitations", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if s.registry != nil {
		if _, err := s.registry.GetBusinessDetails(ctx, req.BusinessIdentifier); err != nil {
			return nil, err
		}
	}

	entity, err := s.repos.Entities().FindByBusinessIdentifier(ctx, req.BusinessIdentifier)
	if err != nil {
		return nil, err
	}

	recipients, err := s.resolveRecipients(ctx, invType, entity, toOrg)
	if err != nil {
		return nil, err
	}

	// An existing affiliation makes the invitation pointless.
	if _, err := s.repos.Affiliations().FindByOrgAndEntity(ctx, req.FromOrgID, entity.ID); err == nil {
		return nil, withMeta(ErrAffiliationExists, map[string]any{
			"org_id":              req.FromOrgID.String(),
			"business_identifier": req.BusinessIdentifier,
		})
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if _, err := s.repos.AffiliationInvitations().FindActiveForTriple(ctx, req.FromOrgID, req.ToOrgID, entity.ID); err == nil {
		return nil, withMeta(ErrAffiliationInvitationExists, map[string]any{
			"from_org_id":         req.FromOrgID.String(),
			"business_identifier": req.BusinessIdentifier,
		})
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	now := s.now()
	invitation := &AffiliationInvitation{
		ID:                uuid.New(),
		FromOrgID:         req.FromOrgID,
		ToOrgID:           req.ToOrgID,
		EntityID:          entity.ID,
		SenderID:          sender.ID,
		TypeCode:          invType,
		StatusCode:        InvitationStatusPending,
		RecipientEmail:    strings.Join(recipients, ","),
		AdditionalMessage: req.AdditionalMessage,
		SentDate:          &now,
	}

	token, err := s.tokens.MintAffiliationToken(invitation, entity.BusinessIdentifier)
	if err != nil {
		return nil, err
	}
	invitation.Token = token

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repos.AffiliationInvitations().CreateTx(ctx, tx, invitation); err != nil {
			return err
		}
		return s.audit(ctx, tx, invitation.ID, "affiliation_invitation.create", sender)
	})
	if err != nil {
		return nil, err
	}

	if err := s.sendNotification(ctx, invitation, token, recipients); err != nil {
		return invitation, err
	}
	return invitation, nil
}

// Accept redeems the token, creating or reusing the affiliation and
// stamping the approver. REQUEST-type acceptance additionally confirms the
// authorization by email.
func (s *AffiliationInvitationService) Accept(ctx context.Context, id uuid.UUID, tokenString string, approver *User) (*AffiliationInvitation, error) {
	invitation, err := s.repos.AffiliationInvitations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureActionable(invitation); err != nil {
		return nil, err
	}
	if _, err := s.tokens.ValidateForInvitation(tokenString, id); err != nil {
		return nil, err
	}

	now := s.now()
	var affiliation *Affiliation
	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		accepted, err := s.repos.AffiliationInvitations().AcceptPendingTx(ctx, tx, id, approver.ID, now)
		if err != nil {
			return err
		}
		if !accepted {
			return ErrInvitationActioned
		}

		affiliation, err = s.repos.Affiliations().GetOrCreateTx(ctx, tx, &Affiliation{
			OrgID:     invitation.FromOrgID,
			EntityID:  invitation.EntityID,
			CreatedBy: &approver.ID,
		})
		if err != nil {
			return err
		}
		return s.audit(ctx, tx, id, "affiliation_invitation.accept", approver)
	})
	if err != nil {
		return nil, err
	}

	invitation.StatusCode = InvitationStatusAccepted
	invitation.ApproverID = &approver.ID
	invitation.AcceptedDate = &now

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAffiliationInviteAccepted,
		Actor:     ActorRef{ID: approver.ID.String(), Type: "user"},
		OrgID:     invitation.FromOrgID.String(),
		SubjectID: affiliation.ID.String(),
		ToStatus:  InvitationStatusAccepted,
	})

	if invitation.TypeCode == AffiliationInvitationTypeRequest {
		s.publishBestEffort(ctx, Notification{
			Type:       NotificationAffiliationAuthorized,
			OrgID:      invitation.FromOrgID,
			Recipients: splitRecipients(invitation.RecipientEmail),
			Data: map[string]any{
				"invitationId": invitation.ID.String(),
			},
		})
	}

	return invitation, nil
}

// Refuse rejects a REQUEST-type invitation. Only valid from PENDING; the
// approver is stamped and a refusal notification sent.
func (s *AffiliationInvitationService) Refuse(ctx context.Context, id uuid.UUID, approver *User) (*AffiliationInvitation, error) {
	invitation, err := s.repos.AffiliationInvitations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invitation.TypeCode != AffiliationInvitationTypeRequest {
		return nil, goerrors.New("only request invitations can be refused", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	if err := s.ensureActionable(invitation); err != nil {
		return nil, err
	}

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		refused, err := s.repos.AffiliationInvitations().RefusePendingTx(ctx, tx, id, approver.ID)
		if err != nil {
			return err
		}
		if !refused {
			return ErrInvitationActioned
		}
		return s.audit(ctx, tx, id, "affiliation_invitation.refuse", approver)
	})
	if err != nil {
		return nil, err
	}

	invitation.StatusCode = InvitationStatusFailed
	invitation.ApproverID = &approver.ID

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAffiliationInviteRefused,
		Actor:     ActorRef{ID: approver.ID.String(), Type: "user"},
		OrgID:     invitation.FromOrgID.String(),
		SubjectID: invitation.ID.String(),
		ToStatus:  InvitationStatusFailed,
	})

	s.publishBestEffort(ctx, Notification{
		Type:       NotificationAffiliationRefused,
		OrgID:      invitation.FromOrgID,
		Recipients: splitRecipients(invitation.RecipientEmail),
		Data: map[string]any{
			"invitationId": invitation.ID.String(),
		},
	})

	return invitation, nil
}

// Update mutates a PENDING invitation. An empty or explicit PENDING status
// is a retry: the token and sent date regenerate and the notification is
// re-published. Retry checks the persisted status, so a derived-expired
// EMAIL invitation is revived rather than rejected. An explicit EXPIRED
// sets the terminal state directly.
func (s *AffiliationInvitationService) Update(ctx context.Context, id uuid.UUID, status InvitationStatus, actor *User) (*AffiliationInvitation, error) {
	invitation, err := s.repos.AffiliationInvitations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if status == InvitationStatusExpired {
		if err := EnsureInvitationTransition(invitation.StatusCode, InvitationStatusExpired); err != nil {
			return nil, err
		}
		err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := s.repos.AffiliationInvitations().UpdateStatusTx(ctx, tx, id, InvitationStatusExpired); err != nil {
				return err
			}
			return s.audit(ctx, tx, id, "affiliation_invitation.expire", actor)
		})
		if err != nil {
			return nil, err
		}
		invitation.StatusCode = InvitationStatusExpired
		return invitation, nil
	}

	if err := EnsureActionable(invitation.StatusCode); err != nil {
		return nil, err
	}
	if status != "" && status != InvitationStatusPending {
		return nil, withMeta(ErrInvalidStatusTransition, map[string]any{
			"from": invitation.StatusCode,
			"to":   status,
		})
	}

	entity, err := s.repos.Entities().FindByID(ctx, invitation.EntityID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.MintAffiliationToken(invitation, entity.BusinessIdentifier)
	if err != nil {
		return nil, err
	}
	now := s.now()

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repos.AffiliationInvitations().RefreshTokenTx(ctx, tx, id, token, now); err != nil {
			return err
		}
		return s.audit(ctx, tx, id, "affiliation_invitation.resend", actor)
	})
	if err != nil {
		return nil, err
	}

	invitation.Token = token
	invitation.SentDate = &now
	if err := s.sendNotification(ctx, invitation, token, splitRecipients(invitation.RecipientEmail)); err != nil {
		return invitation, err
	}
	return invitation, nil
}

// Delete soft-deletes; accepted invitations stay on record with the flag
// set rather than disappearing.
func (s *AffiliationInvitationService) Delete(ctx context.Context, id uuid.UUID, actor *User) error {
	if _, err := s.repos.AffiliationInvitations().FindByID(ctx, id); err != nil {
		return err
	}
	return s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repos.AffiliationInvitations().MarkDeletedTx(ctx, tx, id); err != nil {
			return err
		}
		return s.audit(ctx, tx, id, "affiliation_invitation.delete", actor)
	})
}

// ListByOrg returns the org's invitations with derived statuses applied.
func (s *AffiliationInvitationService) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*AffiliationInvitation, error) {
	records, err := s.repos.AffiliationInvitations().ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, r := range records {
		r.StatusCode = r.EffectiveStatus(s.tokens.AffiliationTTL(), now)
	}
	return records, nil
}

// ensureActionable folds the computed expiry into the status check: an
// EMAIL-type invitation past its TTL behaves as EXPIRED even though the
// persisted code is still PENDING. REQUEST types never auto-expire.
func (s *AffiliationInvitationService) ensureActionable(invitation *AffiliationInvitation) error {
	effective := invitation.EffectiveStatus(s.tokens.AffiliationTTL(), s.now())
	return EnsureActionable(effective)
}

// resolveRecipients picks who gets the invitation: the business's contact
// for EMAIL, the holding org's admins (comma-joined) for REQUEST.
func (s *AffiliationInvitationService) resolveRecipients(ctx context.Context, invType AffiliationInvitationType, entity *Entity, toOrg *Org) ([]string, error) {
	if invType == AffiliationInvitationTypeRequest {
		if toOrg == nil {
			return nil, nil
		}
		emails, err := s.repos.Memberships().AdminEmails(ctx, toOrg.ID)
		if err != nil {
			return nil, err
		}
		return emails, nil
	}

	email, err := s.repos.Entities().ContactEmail(ctx, entity.ID)
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, withMeta(ErrBusinessContactMissing, map[string]any{
			"business_identifier": entity.BusinessIdentifier,
		})
	}
	return []string{email}, nil
}

func (s *AffiliationInvitationService) sendNotification(ctx context.Context, invitation *AffiliationInvitation, token string, recipients []string) error {
	err := s.notifier.Publish(ctx, Notification{
		Type:       NotificationAffiliationInvitation,
		OrgID:      invitation.FromOrgID,
		Recipients: recipients,
		Data: map[string]any{
			"invitationId":      invitation.ID.String(),
			"token":             token,
			"type":              invitation.TypeCode,
			"additionalMessage": invitation.AdditionalMessage,
		},
	})
	if err == nil {
		return nil
	}

	if updateErr := s.repos.AffiliationInvitations().UpdateStatus(ctx, invitation.ID, InvitationStatusFailed); updateErr != nil {
		s.logger.Error("failed to mark affiliation invitation %s FAILED after publish error: %v", invitation.ID, updateErr)
	}
	invitation.StatusCode = InvitationStatusFailed

	return goerrors.Wrap(err, ErrNotificationFailure.Category, ErrNotificationFailure.Message).
		WithTextCode(ErrNotificationFailure.TextCode)
}

func (s *AffiliationInvitationService) publishBestEffort(ctx context.Context, n Notification) {
	if err := s.notifier.Publish(ctx, n); err != nil {
		s.logger.Warn("notification %s failed: %v", n.Type, err)
	}
}

func (s *AffiliationInvitationService) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("affiliation activity sink error: %v", err)
	}
}

func (s *AffiliationInvitationService) audit(ctx context.Context, tx bun.IDB, id uuid.UUID, action string, actor *User) error {
	if s.auditor == nil {
		return nil
	}
	ref := ActorRef{Type: "system"}
	if actor != nil {
		ref = ActorRef{ID: actor.ID.String(), Type: "user"}
	}
	return s.auditor.RecordTx(ctx, tx, "affiliation_invitation", id, action, ref, nil)
}

func splitRecipients(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
