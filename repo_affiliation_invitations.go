package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AffiliationInvitations is the cross-org transfer invitation repository.
type AffiliationInvitations interface {
	repository.Repository[*AffiliationInvitation]

	FindByID(ctx context.Context, id uuid.UUID) (*AffiliationInvitation, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*AffiliationInvitation, error)
	FindActiveForTriple(ctx context.Context, fromOrgID uuid.UUID, toOrgID *uuid.UUID, entityID uuid.UUID) (*AffiliationInvitation, error)
	FindActiveForTripleTx(ctx context.Context, tx bun.IDB, fromOrgID uuid.UUID, toOrgID *uuid.UUID, entityID uuid.UUID) (*AffiliationInvitation, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*AffiliationInvitation, error)
	AcceptPendingTx(ctx context.Context, tx bun.IDB, id, approverID uuid.UUID, acceptedAt time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status InvitationStatus) error
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status InvitationStatus) error
	RefusePendingTx(ctx context.Context, tx bun.IDB, id, approverID uuid.UUID) (bool, error)
	RefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, sentAt time.Time) error
	MarkDeletedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type affiliationInvitations struct {
	repository.Repository[*AffiliationInvitation]
	db *bun.DB
}

var _ AffiliationInvitations = (*affiliationInvitations)(nil)

// NewAffiliationInvitationsRepository wires the affiliation-invitation
// repository.
func NewAffiliationInvitationsRepository(db *bun.DB) AffiliationInvitations {
	repo := repository.NewRepository[*AffiliationInvitation](db, repository.ModelHandlers[*AffiliationInvitation]{
		NewRecord: func() *AffiliationInvitation { return &AffiliationInvitation{} },
		GetID: func(ai *AffiliationInvitation) uuid.UUID {
			if ai == nil {
				return uuid.Nil
			}
			return ai.ID
		},
		SetID: func(ai *AffiliationInvitation, id uuid.UUID) {
			if ai != nil {
				ai.ID = id
			}
		},
	})
	return &affiliationInvitations{Repository: repo, db: db}
}

func (r *affiliationInvitations) FindByID(ctx context.Context, id uuid.UUID) (*AffiliationInvitation, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *affiliationInvitations) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*AffiliationInvitation, error) {
	record := &AffiliationInvitation{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.is_deleted = ?", false).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withMeta(ErrInvitationNotFound, map[string]any{"affiliation_invitation_id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (r *affiliationInvitations) FindActiveForTriple(ctx context.Context, fromOrgID uuid.UUID, toOrgID *uuid.UUID, entityID uuid.UUID) (*AffiliationInvitation, error) {
	return r.FindActiveForTripleTx(ctx, r.db, fromOrgID, toOrgID, entityID)
}

// FindActiveForTripleTx looks up the one PENDING or ACCEPTED invitation
// allowed per (from org, to org, entity); deleted rows do not count.
func (r *affiliationInvitations) FindActiveForTripleTx(ctx context.Context, tx bun.IDB, fromOrgID uuid.UUID, toOrgID *uuid.UUID, entityID uuid.UUID) (*AffiliationInvitation, error) {
	record := &AffiliationInvitation{}
	q := tx.NewSelect().Model(record).
		Where("?TableAlias.from_org_id = ?", fromOrgID).
		Where("?TableAlias.entity_id = ?", entityID).
		Where("?TableAlias.is_deleted = ?", false).
		Where("?TableAlias.status_code IN (?)", bun.In([]InvitationStatus{InvitationStatusPending, InvitationStatusAccepted}))
	if toOrgID != nil {
		q = q.Where("?TableAlias.to_org_id = ?", *toOrgID)
	}
	err := q.Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *affiliationInvitations) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*AffiliationInvitation, error) {
	var records []*AffiliationInvitation
	err := r.db.NewSelect().Model(&records).
		Where("?TableAlias.is_deleted = ?", false).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.from_org_id = ?", orgID).
				WhereOr("?TableAlias.to_org_id = ?", orgID)
		}).
		Order("affinv.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AcceptPendingTx is the single conditional PENDING to ACCEPTED update; the
// rows-affected check is the concurrency guard.
func (r *affiliationInvitations) AcceptPendingTx(ctx context.Context, tx bun.IDB, id, approverID uuid.UUID, acceptedAt time.Time) (bool, error) {
	res, err := tx.NewUpdate().Model((*AffiliationInvitation)(nil)).
		Set("status_code = ?", InvitationStatusAccepted).
		Set("approver_id = ?", approverID).
		Set("accepted_date = ?", acceptedAt).
		Where("id = ?", id).
		Where("status_code = ?", InvitationStatusPending).
		Where("is_deleted = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *affiliationInvitations) UpdateStatus(ctx context.Context, id uuid.UUID, status InvitationStatus) error {
	return r.UpdateStatusTx(ctx, r.db, id, status)
}

func (r *affiliationInvitations) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status InvitationStatus) error {
	_, err := tx.NewUpdate().Model((*AffiliationInvitation)(nil)).
		Set("status_code = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// RefusePendingTx marks a PENDING invitation FAILED with the approver
// stamped, conditionally like AcceptPendingTx.
func (r *affiliationInvitations) RefusePendingTx(ctx context.Context, tx bun.IDB, id, approverID uuid.UUID) (bool, error) {
	res, err := tx.NewUpdate().Model((*AffiliationInvitation)(nil)).
		Set("status_code = ?", InvitationStatusFailed).
		Set("approver_id = ?", approverID).
		Where("id = ?", id).
		Where("status_code = ?", InvitationStatusPending).
		Where("is_deleted = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *affiliationInvitations) RefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, sentAt time.Time) error {
	_, err := tx.NewUpdate().Model((*AffiliationInvitation)(nil)).
		Set("token = ?", token).
		Set("sent_date = ?", sentAt).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// MarkDeletedTx soft-deletes; accepted invitations stay queryable for audit.
func (r *affiliationInvitations) MarkDeletedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewUpdate().Model((*AffiliationInvitation)(nil)).
		Set("is_deleted = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
