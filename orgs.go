package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateOrgRequest is the input for account creation.
type CreateOrgRequest struct {
	Name       string
	BranchName string
	AccessType AccessType
	TypeCode   OrgType
}

// OrgService owns account lifecycle: creation, status transitions and the
// member-safety rules around removal and deactivation.
type OrgService struct {
	repos   RepositoryManager
	auditor *Auditor
	sink    ActivitySink
	now     func() time.Time
	logger  Logger
}

// OrgServiceOption customizes service construction.
type OrgServiceOption func(*OrgService)

// WithOrgClock injects a custom clock.
func WithOrgClock(clock func() time.Time) OrgServiceOption {
	return func(s *OrgService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithOrgLogger overrides the logger.
func WithOrgLogger(logger Logger) OrgServiceOption {
	return func(s *OrgService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOrgActivitySink sets the sink lifecycle events publish to.
func WithOrgActivitySink(sink ActivitySink) OrgServiceOption {
	return func(s *OrgService) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithOrgAuditor sets the audit writer.
func WithOrgAuditor(a *Auditor) OrgServiceOption {
	return func(s *OrgService) {
		s.auditor = a
	}
}

// NewOrgService wires the org service.
func NewOrgService(repos RepositoryManager, opts ...OrgServiceOption) *OrgService {
	s := &OrgService{
		repos:  repos,
		sink:   noopActivitySink{},
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get fetches one org.
func (s *OrgService) Get(ctx context.Context, id uuid.UUID) (*Org, error) {
	return s.repos.Orgs().FindByID(ctx, id)
}

// Create registers a new account with the creator as its OWNER. The
// (name, branch) pair must be unique. The initial status depends on the
// access type: GOVM accounts wait for their admin to accept an invitation,
// BCeID accounts created by an unverified user go to staff review with an
// ACCOUNT_REVIEW task, everything else starts ACTIVE.
func (s *OrgService) Create(ctx context.Context, creator *User, req CreateOrgRequest) (*Org, error) {
	if req.AccessType == "" {
		req.AccessType = AccessTypeRegular
	}
	if req.TypeCode == "" {
		req.TypeCode = OrgTypeBasic
	}
	if !ValidAccessType(req.AccessType) || !ValidOrgType(req.TypeCode) {
		return nil, goerrors.New("unknown access type or org type", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if _, err := s.repos.Orgs().FindByName(ctx, req.Name, req.BranchName); err == nil {
		return nil, withMeta(ErrOrgNameExists, map[string]any{
			"name": req.Name,
		})
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	status, reviewTask := s.initialStatus(req.AccessType, creator)

	org := &Org{
		ID:         uuid.New(),
		Name:       req.Name,
		BranchName: req.BranchName,
		StatusCode: status,
		AccessType: req.AccessType,
		TypeCode:   req.TypeCode,
		CreatedBy:  &creator.ID,
	}

	membershipStatus := MembershipStatusActive
	if status == OrgStatusPendingStaffReview {
		membershipStatus = MembershipStatusPendingStaffReview
	}

	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repos.Orgs().CreateTx(ctx, tx, org); err != nil {
			return err
		}

		// GOVM accounts have no owner until the invited admin accepts.
		if org.AccessType != AccessTypeGovM {
			membership := &Membership{
				ID:         uuid.New(),
				OrgID:      org.ID,
				UserID:     creator.ID,
				TypeCode:   MembershipTypeOwner,
				StatusCode: membershipStatus,
				CreatedBy:  &creator.ID,
			}
			if _, err := s.repos.Memberships().CreateTx(ctx, tx, membership); err != nil {
				return err
			}
		}

		if reviewTask {
			task := &Task{
				ID:               uuid.New(),
				Name:             org.Name,
				RelationshipType: TaskRelationshipOrg,
				RelationshipID:   org.ID,
				Action:           TaskActionAccountReview,
				StatusCode:       TaskStatusOpen,
			}
			if !creator.Verified && creator.LoginSource == LoginSourceBCeID {
				task.Action = TaskActionAffidavitReview
			}
			if _, err := s.repos.Tasks().CreateTx(ctx, tx, task); err != nil {
				return err
			}
		}

		return s.audit(ctx, tx, org.ID, "org.create", creator)
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventOrgStatusChanged,
		Actor:     actorOf(creator),
		OrgID:     org.ID.String(),
		SubjectID: org.ID.String(),
		ToStatus:  org.StatusCode,
	})
	return org, nil
}

// UpdateStatus moves the org to a new status and records the transition.
func (s *OrgService) UpdateStatus(ctx context.Context, id uuid.UUID, status OrgStatus, actor *User) (*Org, error) {
	if !ValidOrgStatus(status) {
		return nil, goerrors.New("unknown org status", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	org, err := s.repos.Orgs().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := org.StatusCode

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repos.Orgs().UpdateStatusTx(ctx, tx, id, status); err != nil {
			return err
		}
		return s.audit(ctx, tx, id, "org.status."+status, actor)
	})
	if err != nil {
		return nil, err
	}

	org.StatusCode = status
	s.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventOrgStatusChanged,
		Actor:      actorOf(actor),
		OrgID:      id.String(),
		SubjectID:  id.String(),
		FromStatus: from,
		ToStatus:   status,
	})
	return org, nil
}

// RemoveMember deactivates one membership. An org must keep at least one
// ACTIVE owner or admin while anyone else is active or any business is
// still affiliated.
func (s *OrgService) RemoveMember(ctx context.Context, orgID, userID uuid.UUID, actor *User) error {
	membership, err := s.repos.Memberships().FindByOrgAndUser(ctx, orgID, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrMembershipNotFound
		}
		return err
	}

	if err := s.ensureNotLastAdmin(ctx, orgID, membership); err != nil {
		return err
	}

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repos.Memberships().UpdateStatusTx(ctx, tx, membership.ID, MembershipStatusInactive); err != nil {
			return err
		}
		return s.audit(ctx, tx, membership.ID, "membership.remove", actor)
	})
	if err != nil {
		return err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventMembershipStatusChanged,
		Actor:      actorOf(actor),
		OrgID:      orgID.String(),
		SubjectID:  membership.ID.String(),
		FromStatus: membership.StatusCode,
		ToStatus:   MembershipStatusInactive,
	})
	return nil
}

// Deactivate soft-deletes the account. Blocked while other members remain
// active or businesses are still affiliated; rows are never hard-deleted.
func (s *OrgService) Deactivate(ctx context.Context, id uuid.UUID, actor *User) error {
	org, err := s.repos.Orgs().FindByID(ctx, id)
	if err != nil {
		return err
	}

	affiliationCount, err := s.repos.Affiliations().CountByOrg(ctx, id)
	if err != nil {
		return err
	}
	if affiliationCount > 0 {
		return goerrors.New("org still has affiliated businesses", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithTextCode("ORG_HAS_AFFILIATIONS")
	}

	memberCount, err := s.repos.Memberships().CountActiveMembers(ctx, id)
	if err != nil {
		return err
	}
	if memberCount > 1 {
		return goerrors.New("org still has active members", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithTextCode("ORG_HAS_MEMBERS")
	}

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var memberships []*Membership
		err := tx.NewSelect().Model(&memberships).
			Where("?TableAlias.org_id = ?", id).
			Where("?TableAlias.status_code = ?", MembershipStatusActive).
			Scan(ctx)
		if err != nil {
			return err
		}
		for _, m := range memberships {
			if _, err := s.repos.Memberships().UpdateStatusTx(ctx, tx, m.ID, MembershipStatusInactive); err != nil {
				return err
			}
		}
		if _, err := s.repos.Orgs().UpdateStatusTx(ctx, tx, id, OrgStatusInactive); err != nil {
			return err
		}
		return s.audit(ctx, tx, id, "org.deactivate", actor)
	})
	if err != nil {
		return err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventOrgStatusChanged,
		Actor:      actorOf(actor),
		OrgID:      id.String(),
		SubjectID:  id.String(),
		FromStatus: org.StatusCode,
		ToStatus:   OrgStatusInactive,
	})
	return nil
}

// ListAffiliations returns the org's affiliated businesses with their
// entity records loaded.
func (s *OrgService) ListAffiliations(ctx context.Context, orgID uuid.UUID) ([]*Affiliation, error) {
	if _, err := s.repos.Orgs().FindByID(ctx, orgID); err != nil {
		return nil, err
	}
	return s.repos.Affiliations().ListByOrg(ctx, orgID)
}

// ensureNotLastAdmin blocks removal of the only ACTIVE owner/admin while
// the org still has other active members or affiliated businesses.
func (s *OrgService) ensureNotLastAdmin(ctx context.Context, orgID uuid.UUID, membership *Membership) error {
	isAdmin := membership.TypeCode == MembershipTypeOwner || membership.TypeCode == MembershipTypeAdmin
	if !isAdmin || membership.StatusCode != MembershipStatusActive {
		return nil
	}

	admins, err := s.repos.Memberships().CountActiveAdmins(ctx, orgID)
	if err != nil {
		return err
	}
	if admins > 1 {
		return nil
	}

	members, err := s.repos.Memberships().CountActiveMembers(ctx, orgID)
	if err != nil {
		return err
	}
	affiliationCount, err := s.repos.Affiliations().CountByOrg(ctx, orgID)
	if err != nil {
		return err
	}
	if members > 1 || affiliationCount > 0 {
		return ErrLastActiveAdmin
	}
	return nil
}

func (s *OrgService) initialStatus(accessType AccessType, creator *User) (OrgStatus, bool) {
	switch {
	case accessType == AccessTypeGovM:
		return OrgStatusPendingInvite, false
	case accessType == AccessTypeRegularBCeID && !creator.Verified:
		return OrgStatusPendingStaffReview, true
	default:
		return OrgStatusActive, false
	}
}

func (s *OrgService) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("org activity sink error: %v", err)
	}
}

func (s *OrgService) audit(ctx context.Context, tx bun.IDB, id uuid.UUID, action string, actor *User) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.RecordTx(ctx, tx, "org", id, action, actorOf(actor), nil)
}
