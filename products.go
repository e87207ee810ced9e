package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubscribeRequest asks for access to one product on an org.
type SubscribeRequest struct {
	ProductCode       string
	ParentProductCode string
}

// ProductService manages product subscriptions on an account. New
// subscriptions enter staff review; the Task workflow resolves them.
type ProductService struct {
	repos   RepositoryManager
	auditor *Auditor
	sink    ActivitySink
	now     func() time.Time
	logger  Logger
}

// ProductServiceOption customizes service construction.
type ProductServiceOption func(*ProductService)

// WithProductClock injects a custom clock.
func WithProductClock(clock func() time.Time) ProductServiceOption {
	return func(s *ProductService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithProductLogger overrides the logger.
func WithProductLogger(logger Logger) ProductServiceOption {
	return func(s *ProductService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProductActivitySink sets the sink subscription changes publish to.
func WithProductActivitySink(sink ActivitySink) ProductServiceOption {
	return func(s *ProductService) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithProductAuditor sets the audit writer.
func WithProductAuditor(a *Auditor) ProductServiceOption {
	return func(s *ProductService) {
		s.auditor = a
	}
}

// NewProductService wires the product service.
func NewProductService(repos RepositoryManager, opts ...ProductServiceOption) *ProductService {
	s := &ProductService{
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

// ListByOrg returns the org's subscriptions.
func (s *ProductService) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*ProductSubscription, error) {
	if _, err := s.repos.Orgs().FindByID(ctx, orgID); err != nil {
		return nil, err
	}
	return s.repos.ProductSubscriptions().ListByOrg(ctx, orgID)
}

// Subscribe creates a PENDING_STAFF_REVIEW subscription and the PRODUCT
// review task that resolves it. Re-subscribing an already live product is a
// conflict; a rejected or inactive subscription reopens instead of
// duplicating the row.
func (s *ProductService) Subscribe(ctx context.Context, orgID uuid.UUID, req SubscribeRequest, actor *User) (*ProductSubscription, error) {
	if req.ProductCode == "" {
		return nil, goerrors.New("product code is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	org, err := s.repos.Orgs().FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repos.ProductSubscriptions().FindByOrgAndCode(ctx, orgID, req.ProductCode)
	switch {
	case err == nil && existing.StatusCode == ProductStatusActive:
		return nil, goerrors.New("product already subscribed", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithTextCode("PRODUCT_ALREADY_SUBSCRIBED")
	case err == nil && existing.StatusCode == ProductStatusPendingStaffReview:
		return existing, nil
	case err == nil:
		return s.reopen(ctx, existing, org, actor)
	case !repository.IsRecordNotFound(err):
		return nil, err
	}

	sub := &ProductSubscription{
		ID:                uuid.New(),
		OrgID:             orgID,
		ProductCode:       req.ProductCode,
		ParentProductCode: req.ParentProductCode,
		StatusCode:        ProductStatusPendingStaffReview,
	}

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repos.ProductSubscriptions().CreateTx(ctx, tx, sub); err != nil {
			return err
		}
		if err := s.openReviewTask(ctx, tx, org, sub); err != nil {
			return err
		}
		return s.audit(ctx, tx, sub.ID, "product.subscribe", actor)
	})
	if err != nil {
		return nil, err
	}

	s.recordChange(ctx, sub, "", actor)
	return sub, nil
}

// reopen puts a previously rejected or deactivated subscription back into
// review rather than inserting a duplicate row.
func (s *ProductService) reopen(ctx context.Context, sub *ProductSubscription, org *Org, actor *User) (*ProductSubscription, error) {
	from := sub.StatusCode
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repos.ProductSubscriptions().UpdateStatusTx(ctx, tx, sub.ID, ProductStatusPendingStaffReview); err != nil {
			return err
		}
		if err := s.openReviewTask(ctx, tx, org, sub); err != nil {
			return err
		}
		return s.audit(ctx, tx, sub.ID, "product.resubscribe", actor)
	})
	if err != nil {
		return nil, err
	}
	sub.StatusCode = ProductStatusPendingStaffReview
	s.recordChange(ctx, sub, from, actor)
	return sub, nil
}

// openReviewTask creates the PRODUCT task unless one is already open for
// this subscription.
func (s *ProductService) openReviewTask(ctx context.Context, tx bun.Tx, org *Org, sub *ProductSubscription) error {
	if _, err := s.repos.Tasks().FindOpenForRelationshipTx(ctx, tx, TaskRelationshipProduct, sub.ID); err == nil {
		return nil
	} else if !repository.IsRecordNotFound(err) && !goerrors.Is(err, ErrTaskNotFound) {
		return err
	}

	task := &Task{
		ID:               uuid.New(),
		Name:             org.Name + ": " + sub.ProductCode,
		RelationshipType: TaskRelationshipProduct,
		RelationshipID:   sub.ID,
		Action:           TaskActionProductReview,
		StatusCode:       TaskStatusOpen,
	}
	_, err := s.repos.Tasks().CreateTx(ctx, tx, task)
	return err
}

func (s *ProductService) recordChange(ctx context.Context, sub *ProductSubscription, from ProductSubscriptionStatus, actor *User) {
	event := ActivityEvent{
		EventType:  ActivityEventProductSubscriptionChanged,
		Actor:      actorOf(actor),
		OrgID:      sub.OrgID.String(),
		SubjectID:  sub.ID.String(),
		FromStatus: from,
		ToStatus:   sub.StatusCode,
		Metadata: map[string]any{
			"productCode": sub.ProductCode,
		},
		OccurredAt: s.now(),
	}
	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("product activity sink error: %v", err)
	}
}

func (s *ProductService) audit(ctx context.Context, tx bun.IDB, id uuid.UUID, action string, actor *User) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.RecordTx(ctx, tx, "product_subscription", id, action, actorOf(actor), nil)
}
