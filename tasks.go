package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TaskUpdate describes a staff decision on a review item. Status is the
// queue transition (COMPLETED, CLOSED or HOLD); RelationshipStatus is the
// status applied to the record under review when the decision resolves it.
type TaskUpdate struct {
	Status             TaskStatus
	RelationshipStatus string
	Remarks            string
}

// TaskService runs the staff review queue. Actioning a task updates both
// the task row and the record it reviews inside one transaction.
type TaskService struct {
	repos    RepositoryManager
	notifier Notifier
	auditor  *Auditor
	sink     ActivitySink
	now      func() time.Time
	logger   Logger
}

// TaskServiceOption customizes service construction.
type TaskServiceOption func(*TaskService)

// WithTaskClock injects a custom clock.
func WithTaskClock(clock func() time.Time) TaskServiceOption {
	return func(s *TaskService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithTaskLogger overrides the logger.
func WithTaskLogger(logger Logger) TaskServiceOption {
	return func(s *TaskService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTaskActivitySink sets the sink decision events publish to.
func WithTaskActivitySink(sink ActivitySink) TaskServiceOption {
	return func(s *TaskService) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithTaskAuditor sets the audit writer.
func WithTaskAuditor(a *Auditor) TaskServiceOption {
	return func(s *TaskService) {
		s.auditor = a
	}
}

// NewTaskService wires the task service.
func NewTaskService(repos RepositoryManager, notifier Notifier, opts ...TaskServiceOption) *TaskService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s := &TaskService{
		repos:    repos,
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

// Get fetches one task.
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.repos.Tasks().FindByID(ctx, id)
}

// ListOpen returns the OPEN and HOLD items in the queue.
func (s *TaskService) ListOpen(ctx context.Context) ([]*Task, error) {
	return s.repos.Tasks().ListOpen(ctx)
}

// Update actions a task. HOLD parks the item and notifies whoever is
// waiting on it without touching the reviewed record; COMPLETED and CLOSED
// resolve the item and push RelationshipStatus onto the reviewed record,
// dispatched by relationship type.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, update TaskUpdate, staff *User) (*Task, error) {
	task, err := s.repos.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := EnsureTaskTransition(task.StatusCode, update.Status); err != nil {
		return nil, err
	}

	if update.Status == TaskStatusHold {
		return s.hold(ctx, task, update, staff)
	}

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		switch task.RelationshipType {
		case TaskRelationshipOrg:
			if err := s.resolveOrg(ctx, tx, task, update, staff); err != nil {
				return err
			}
		case TaskRelationshipUser:
			if err := s.resolveMembership(ctx, tx, task, update, staff); err != nil {
				return err
			}
		case TaskRelationshipProduct:
			if err := s.resolveProduct(ctx, tx, task, update); err != nil {
				return err
			}
		case TaskRelationshipAffidavit:
			if err := s.resolveAffidavit(ctx, tx, task.RelationshipID, update.RelationshipStatus, staff); err != nil {
				return err
			}
		}

		if err := s.updateTaskTx(ctx, tx, task.ID, update); err != nil {
			return err
		}
		return s.audit(ctx, tx, task.ID, "task."+update.Status, staff)
	})
	if err != nil {
		return nil, err
	}

	task.StatusCode = update.Status
	task.RelationshipStatus = update.RelationshipStatus
	task.Remarks = update.Remarks

	s.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventTaskActioned,
		Actor:      actorOf(staff),
		SubjectID:  task.ID.String(),
		FromStatus: TaskStatusOpen,
		ToStatus:   update.Status,
		Metadata: map[string]any{
			"relationshipType":   task.RelationshipType,
			"relationshipStatus": update.RelationshipStatus,
		},
	})
	return task, nil
}

// hold parks the task. Affidavit reviews cannot be held; the decision is
// binary because the submitter is waiting on account access.
func (s *TaskService) hold(ctx context.Context, task *Task, update TaskUpdate, staff *User) (*Task, error) {
	if task.Action == TaskActionAffidavitReview && task.RelationshipType == TaskRelationshipOrg {
		return nil, ErrInvalidStateForHold
	}

	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.updateTaskTx(ctx, tx, task.ID, update); err != nil {
			return err
		}
		return s.audit(ctx, tx, task.ID, "task.HOLD", staff)
	})
	if err != nil {
		return nil, err
	}

	task.StatusCode = TaskStatusHold
	task.Remarks = update.Remarks
	s.notifyHold(ctx, task)
	return task, nil
}

// resolveOrg applies the decision to the org and, when the review covers a
// new BCeID account, its admin's pending affidavit.
func (s *TaskService) resolveOrg(ctx context.Context, tx bun.Tx, task *Task, update TaskUpdate, staff *User) error {
	org, err := s.repos.Orgs().FindByIDTx(ctx, tx, task.RelationshipID)
	if err != nil {
		return err
	}
	if _, err := s.repos.Orgs().UpdateStatusTx(ctx, tx, org.ID, update.RelationshipStatus); err != nil {
		return err
	}

	if task.Action == TaskActionAffidavitReview {
		admin, err := s.firstAdminMembership(ctx, tx, org.ID)
		if err != nil {
			return err
		}
		affidavitStatus := AffidavitStatusRejected
		membershipStatus := MembershipStatusRejected
		if update.RelationshipStatus == OrgStatusActive {
			affidavitStatus = AffidavitStatusApproved
			membershipStatus = MembershipStatusActive
		}
		if err := s.decidePendingAffidavit(ctx, tx, admin.UserID, affidavitStatus, staff); err != nil {
			return err
		}
		if _, err := s.repos.Memberships().UpdateStatusTx(ctx, tx, admin.ID, membershipStatus); err != nil {
			return err
		}
		if update.RelationshipStatus == OrgStatusActive {
			if err := s.repos.Users().MarkVerifiedTx(ctx, tx, admin.UserID); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveMembership applies the decision to a member awaiting review and,
// for affidavit reviews, the underlying affidavit and verified flag.
func (s *TaskService) resolveMembership(ctx context.Context, tx bun.Tx, task *Task, update TaskUpdate, staff *User) error {
	membership := &Membership{}
	err := tx.NewSelect().Model(membership).
		Where("?TableAlias.id = ?", task.RelationshipID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return ErrMembershipNotFound
		}
		return err
	}

	if _, err := s.repos.Memberships().UpdateStatusTx(ctx, tx, membership.ID, update.RelationshipStatus); err != nil {
		return err
	}

	if task.Action != TaskActionAffidavitReview {
		return nil
	}

	approved := update.RelationshipStatus == MembershipStatusActive
	affidavitStatus := AffidavitStatusRejected
	if approved {
		affidavitStatus = AffidavitStatusApproved
	}
	if err := s.decidePendingAffidavit(ctx, tx, membership.UserID, affidavitStatus, staff); err != nil {
		return err
	}
	if approved {
		return s.repos.Users().MarkVerifiedTx(ctx, tx, membership.UserID)
	}
	return nil
}

// resolveProduct applies the decision to the subscription and cascades it
// to the parent product when the parent is not already live.
func (s *TaskService) resolveProduct(ctx context.Context, tx bun.Tx, task *Task, update TaskUpdate) error {
	sub, err := s.repos.ProductSubscriptions().FindByIDTx(ctx, tx, task.RelationshipID)
	if err != nil {
		return err
	}
	if err := s.repos.ProductSubscriptions().UpdateStatusTx(ctx, tx, sub.ID, update.RelationshipStatus); err != nil {
		return err
	}

	if sub.ParentProductCode == "" {
		return nil
	}
	parent, err := s.repos.ProductSubscriptions().FindByOrgAndCodeTx(ctx, tx, sub.OrgID, sub.ParentProductCode)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return err
	}
	if parent.StatusCode == ProductStatusActive {
		return nil
	}
	return s.repos.ProductSubscriptions().UpdateStatusTx(ctx, tx, parent.ID, update.RelationshipStatus)
}

func (s *TaskService) resolveAffidavit(ctx context.Context, tx bun.Tx, affidavitID uuid.UUID, status AffidavitStatus, staff *User) error {
	record := &Affidavit{StatusCode: status}
	if staff != nil {
		record.DecisionMadeBy = &staff.ID
	}
	_, err := s.repos.Affidavits().UpdateTx(ctx, tx, record,
		repository.UpdateByID(affidavitID.String()),
		repository.UpdateSkipZeroValues(),
	)
	return err
}

// decidePendingAffidavit moves the user's PENDING affidavit to the decided
// status. Absent rows are tolerated: not every review path requires one.
func (s *TaskService) decidePendingAffidavit(ctx context.Context, tx bun.Tx, userID uuid.UUID, status AffidavitStatus, staff *User) error {
	affidavit := &Affidavit{}
	err := tx.NewSelect().Model(affidavit).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.status_code = ?", AffidavitStatusPending).
		Order("afd.created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil
		}
		return err
	}
	return s.resolveAffidavit(ctx, tx, affidavit.ID, status, staff)
}

// firstAdminMembership finds the membership that anchors an org review,
// the earliest owner or admin row.
func (s *TaskService) firstAdminMembership(ctx context.Context, tx bun.Tx, orgID uuid.UUID) (*Membership, error) {
	membership := &Membership{}
	err := tx.NewSelect().Model(membership).
		Where("?TableAlias.org_id = ?", orgID).
		Where("?TableAlias.membership_type_code IN (?)", bun.In([]MembershipType{MembershipTypeOwner, MembershipTypeAdmin})).
		Order("mbr.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return membership, nil
}

func (s *TaskService) updateTaskTx(ctx context.Context, tx bun.IDB, id uuid.UUID, update TaskUpdate) error {
	record := &Task{
		StatusCode:         update.Status,
		RelationshipStatus: update.RelationshipStatus,
		Remarks:            update.Remarks,
	}
	_, err := s.repos.Tasks().UpdateTx(ctx, tx, record,
		repository.UpdateByID(id.String()),
		repository.UpdateSkipZeroValues(),
	)
	return err
}

// notifyHold tells whoever is blocked on the review why it stalled. ORG
// holds go to the org's admins, USER holds to the member under review.
func (s *TaskService) notifyHold(ctx context.Context, task *Task) {
	n := Notification{
		Type: NotificationTaskOnHold,
		Data: map[string]any{
			"taskId":  task.ID.String(),
			"remarks": task.Remarks,
		},
	}

	switch task.RelationshipType {
	case TaskRelationshipOrg:
		n.OrgID = task.RelationshipID
		emails, err := s.repos.Memberships().AdminEmails(ctx, task.RelationshipID)
		if err != nil {
			s.logger.Warn("could not resolve admin emails for org %s: %v", task.RelationshipID, err)
			return
		}
		n.Recipients = emails
	case TaskRelationshipUser:
		membership, err := s.repos.Memberships().FindByID(ctx, task.RelationshipID)
		if err != nil {
			s.logger.Warn("could not resolve membership %s for hold notice: %v", task.RelationshipID, err)
			return
		}
		user, err := s.repos.Users().FindByID(ctx, membership.UserID)
		if err != nil || user.Email == "" {
			s.logger.Warn("could not resolve user email for hold notice on task %s", task.ID)
			return
		}
		n.OrgID = membership.OrgID
		n.Recipients = []string{user.Email}
	default:
		return
	}

	if err := s.notifier.Publish(ctx, n); err != nil {
		s.logger.Warn("hold notification for task %s failed: %v", task.ID, err)
	}
}

func (s *TaskService) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("task activity sink error: %v", err)
	}
}

func (s *TaskService) audit(ctx context.Context, tx bun.IDB, id uuid.UUID, action string, staff *User) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.RecordTx(ctx, tx, "task", id, action, actorOf(staff), nil)
}

func actorOf(u *User) ActorRef {
	if u == nil {
		return ActorRef{Type: "system"}
	}
	return ActorRef{ID: u.ID.String(), Type: "user"}
}
