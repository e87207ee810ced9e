package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateInvitationRequest is the input for a new team invitation.
type CreateInvitationRequest struct {
	RecipientEmail string
	Memberships    []InvitationMembershipRequest
}

// InvitationMembershipRequest is one org+role pair the invitation grants.
type InvitationMembershipRequest struct {
	OrgID uuid.UUID
	Role  MembershipType
}

// InvitationService owns the team-invitation lifecycle.
type InvitationService struct {
	repos    RepositoryManager
	tokens   *TokenService
	notifier Notifier
	auditor  *Auditor
	sink     ActivitySink
	now      func() time.Time
	logger   Logger
}

// InvitationServiceOption customizes service construction.
type InvitationServiceOption func(*InvitationService)

// WithInvitationClock injects a custom clock (useful for tests).
func WithInvitationClock(clock func() time.Time) InvitationServiceOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInvitationLogger overrides the logger.
func WithInvitationLogger(logger Logger) InvitationServiceOption {
	return func(s *InvitationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInvitationActivitySink sets the sink lifecycle events publish to.
func WithInvitationActivitySink(sink ActivitySink) InvitationServiceOption {
	return func(s *InvitationService) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithInvitationAuditor sets the audit writer.
func WithInvitationAuditor(a *Auditor) InvitationServiceOption {
	return func(s *InvitationService) {
		s.auditor = a
	}
}

// NewInvitationService wires the team-invitation service.
func NewInvitationService(repos RepositoryManager, tokens *TokenService, notifier Notifier, opts ...InvitationServiceOption) *InvitationService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s := &InvitationService{
		repos:    repos,
		tokens:   tokens,
		notifier: notifier,
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

// Create mints a new PENDING invitation. The sender must hold an admin role
// on every target org unless staff. The org's access type fixes the login
// source the invitee has to sign in with. A notification publish failure
// forces the persisted row to FAILED and surfaces to the caller.
func (s *InvitationService) Create(ctx context.Context, sender *User, staff bool, req CreateInvitationRequest) (*Invitation, error) {
	if len(req.Memberships) == 0 {
		return nil, goerrors.New("invitation requires at least one membership", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	var loginSource LoginSource
	for i, m := range req.Memberships {
		org, err := s.repos.Orgs().FindByID(ctx, m.OrgID)
		if err != nil {
			return nil, err
		}
		if !staff {
			role, err := s.repos.Memberships().FindActiveRole(ctx, m.OrgID, sender.ID)
			if err != nil {
				return nil, ErrPermissionDenied
			}
			if !IsAdminRole(role) {
				return nil, ErrPermissionDenied
			}
		}
		// The first org's access type decides the mandatory login source.
		if i == 0 {
			loginSource = MandatoryLoginSource(org.AccessType)
		}
	}

	now := s.now()
	invitation := &Invitation{
		ID:             uuid.New(),
		SenderID:       sender.ID,
		RecipientEmail: req.RecipientEmail,
		StatusCode:     InvitationStatusPending,
		LoginSource:    loginSource,
		SentDate:       &now,
	}

	token, err := s.tokens.MintInvitationToken(invitation.ID)
	if err != nil {
		return nil, err
	}
	invitation.Token = token

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repos.Invitations().CreateTx(ctx, tx, invitation); err != nil {
			return err
		}
		for _, m := range req.Memberships {
			row := &InvitationMembership{
				ID:           uuid.New(),
				InvitationID: invitation.ID,
				OrgID:        m.OrgID,
				TypeCode:     m.Role,
			}
			if _, err := s.repos.InvitationMemberships().CreateTx(ctx, tx, row); err != nil {
				return err
			}
			invitation.Memberships = append(invitation.Memberships, row)
		}
		return s.audit(ctx, tx, invitation.ID, "invitation.create", sender)
	})
	if err != nil {
		return nil, err
	}

	if err := s.sendNotification(ctx, invitation, token); err != nil {
		return invitation, err
	}
	return invitation, nil
}

// Resend regenerates the token and sent date and re-publishes the
// notification. Allowed any number of times while PENDING.
func (s *InvitationService) Resend(ctx context.Context, id uuid.UUID, actor *User) (*Invitation, error) {
	invitation, err := s.repos.Invitations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := EnsureActionable(invitation.StatusCode); err != nil {
		return nil, err
	}

	token, err := s.tokens.MintInvitationToken(invitation.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repos.Invitations().RefreshTokenTx(ctx, tx, id, token, now); err != nil {
			return err
		}
		return s.audit(ctx, tx, id, "invitation.resend", actor)
	})
	if err != nil {
		return nil, err
	}

	invitation.Token = token
	invitation.SentDate = &now
	if err := s.sendNotification(ctx, invitation, token); err != nil {
		return invitation, err
	}
	return invitation, nil
}

// ValidateToken verifies the signed token for the invitation and checks the
// row is still actionable. Terminal rows report their specific error rather
// than a generic token failure. A PENDING row past its TTL counts as
// expired even though the persisted code has not been rewritten yet.
func (s *InvitationService) ValidateToken(ctx context.Context, tokenString string, id uuid.UUID) (*Invitation, error) {
	invitation, err := s.repos.Invitations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := EnsureActionable(invitation.StatusCode); err != nil {
		return nil, err
	}
	if invitationExpired(invitation.SentDate, s.tokens.InvitationTTL(), s.now()) {
		return nil, ErrInvitationExpired
	}
	if _, err := s.tokens.ValidateForInvitation(tokenString, id); err != nil {
		return nil, err
	}
	return invitation, nil
}

// ResolveToken looks up the invitation a bare token string refers to and
// validates it. Used when the caller has only the emailed link.
func (s *InvitationService) ResolveToken(ctx context.Context, tokenString string) (*Invitation, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.InvitationID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.ValidateToken(ctx, tokenString, id)
}

// Accept redeems the token for the given user, deriving each membership's
// status from the org's access type, the login source and the user's
// verification state. GOVM orgs activate immediately; an unverified BCeID
// admin goes to staff review with a USER task; everything else waits for
// admin approval.
func (s *InvitationService) Accept(ctx context.Context, id uuid.UUID, tokenString string, user *User) (*Invitation, error) {
	invitation, err := s.ValidateToken(ctx, tokenString, id)
	if err != nil {
		return nil, err
	}

	if invitation.LoginSource != "" && user.LoginSource != invitation.LoginSource {
		return nil, withMeta(ErrLoginSourceMismatch, map[string]any{
			"required": invitation.LoginSource,
			"actual":   user.LoginSource,
		})
	}

	now := s.now()
	type createdMembership struct {
		membership *Membership
		org        *Org
	}
	var created []createdMembership

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		accepted, err := s.repos.Invitations().AcceptPendingTx(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !accepted {
			return ErrInvitationActioned
		}

		for _, m := range invitation.Memberships {
			if _, err := s.repos.Memberships().FindByOrgAndUserTx(ctx, tx, m.OrgID, user.ID); err == nil {
				return withMeta(ErrMembershipExists, map[string]any{
					"org_id":  m.OrgID.String(),
					"user_id": user.ID.String(),
				})
			} else if !repository.IsRecordNotFound(err) {
				return err
			}

			org, err := s.repos.Orgs().FindByIDTx(ctx, tx, m.OrgID)
			if err != nil {
				return err
			}

			status := deriveMembershipStatus(org, m.TypeCode, user)
			membership := &Membership{
				ID:         uuid.New(),
				OrgID:      m.OrgID,
				UserID:     user.ID,
				TypeCode:   m.TypeCode,
				StatusCode: status,
				CreatedBy:  &invitation.SenderID,
			}
			if _, err := s.repos.Memberships().CreateTx(ctx, tx, membership); err != nil {
				return err
			}
			created = append(created, createdMembership{membership: membership, org: org})

			if status == MembershipStatusPendingStaffReview {
				task := &Task{
					ID:                 uuid.New(),
					Name:               user.Username,
					RelationshipType:   TaskRelationshipUser,
					RelationshipID:     membership.ID,
					RelationshipStatus: MembershipStatusPendingStaffReview,
					Action:             TaskActionAffidavitReview,
					StatusCode:         TaskStatusOpen,
				}
				if _, err := s.repos.Tasks().CreateTx(ctx, tx, task); err != nil {
					return err
				}
			}
		}

		return s.audit(ctx, tx, id, "invitation.accept", user)
	})
	if err != nil {
		return nil, err
	}

	invitation.StatusCode = InvitationStatusAccepted
	invitation.AcceptedDate = &now

	for _, c := range created {
		if c.membership.StatusCode == MembershipStatusActive {
			s.recordActivity(ctx, ActivityEvent{
				EventType: ActivityEventMembershipCreated,
				Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
				OrgID:     c.org.ID.String(),
				SubjectID: c.membership.ID.String(),
				ToStatus:  MembershipStatusActive,
			})
			continue
		}
		// Pending memberships ask the org's admins to approve.
		s.notifyAdmins(ctx, c.org, user)
	}

	return invitation, nil
}

// Withdraw deletes a not-yet-accepted invitation. The actor must hold an
// admin role on every org the invitation references, staff excepted.
func (s *InvitationService) Withdraw(ctx context.Context, id uuid.UUID, actor *User, staff bool) error {
	invitation, err := s.repos.Invitations().FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !staff {
		for _, m := range invitation.Memberships {
			role, err := s.repos.Memberships().FindActiveRole(ctx, m.OrgID, actor.ID)
			if err != nil || !IsAdminRole(role) {
				return ErrPermissionDenied
			}
		}
	}

	return s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repos.Invitations().DeleteByIDTx(ctx, tx, id); err != nil {
			return err
		}
		return s.audit(ctx, tx, id, "invitation.withdraw", actor)
	})
}

// deriveMembershipStatus applies the acceptance matrix.
func deriveMembershipStatus(org *Org, role MembershipType, user *User) MembershipStatus {
	if org.AccessType == AccessTypeGovM {
		return MembershipStatusActive
	}
	if user.LoginSource == LoginSourceBCeID && role == MembershipTypeAdmin && !user.Verified {
		return MembershipStatusPendingStaffReview
	}
	return MembershipStatusPendingApproval
}

// sendNotification publishes the invitation email. On failure the persisted
// row is forced to FAILED before the error is re-raised; the caller must see
// the failure even though the row exists.
func (s *InvitationService) sendNotification(ctx context.Context, invitation *Invitation, token string) error {
	orgID := uuid.Nil
	if len(invitation.Memberships) > 0 {
		orgID = invitation.Memberships[0].OrgID
	}

	err := s.notifier.Publish(ctx, Notification{
		Type:       NotificationTeamInvitation,
		OrgID:      orgID,
		Recipients: []string{invitation.RecipientEmail},
		Data: map[string]any{
			"invitationId": invitation.ID.String(),
			"token":        token,
			"loginSource":  invitation.LoginSource,
		},
	})
	if err == nil {
		return nil
	}

	if updateErr := s.repos.Invitations().UpdateStatus(ctx, invitation.ID, InvitationStatusFailed); updateErr != nil {
		s.logger.Error("failed to mark invitation %s FAILED after publish error: %v", invitation.ID, updateErr)
	}
	invitation.StatusCode = InvitationStatusFailed

	return goerrors.Wrap(err, ErrNotificationFailure.Category, ErrNotificationFailure.Message).
		WithTextCode(ErrNotificationFailure.TextCode)
}

func (s *InvitationService) notifyAdmins(ctx context.Context, org *Org, user *User) {
	emails, err := s.repos.Memberships().AdminEmails(ctx, org.ID)
	if err != nil || len(emails) == 0 {
		if err != nil {
			s.logger.Warn("could not resolve admin emails for org %s: %v", org.ID, err)
		}
		return
	}
	if err := s.notifier.Publish(ctx, Notification{
		Type:       NotificationMembershipApprovalPending,
		OrgID:      org.ID,
		Recipients: emails,
		Data: map[string]any{
			"username": user.Username,
			"orgName":  org.Name,
		},
	}); err != nil {
		// Approval reminders are best-effort, unlike the invitation email.
		s.logger.Warn("membership approval notification failed for org %s: %v", org.ID, err)
	}
}

func (s *InvitationService) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("invitation activity sink error: %v", err)
	}
}

func (s *InvitationService) audit(ctx context.Context, tx bun.IDB, invitationID uuid.UUID, action string, actor *User) error {
	if s.auditor == nil {
		return nil
	}
	ref := ActorRef{Type: "system"}
	if actor != nil {
		ref = ActorRef{ID: actor.ID.String(), Type: "user"}
	}
	return s.auditor.RecordTx(ctx, tx, "invitation", invitationID, action, ref, nil)
}
