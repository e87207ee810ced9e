package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Invitations is the team-invitation repository.
type Invitations interface {
	repository.Repository[*Invitation]

	FindByID(ctx context.Context, id uuid.UUID) (*Invitation, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Invitation, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID, status InvitationStatus) ([]*Invitation, error)
	AcceptPendingTx(ctx context.Context, tx bun.IDB, id uuid.UUID, acceptedAt time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status InvitationStatus) error
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status InvitationStatus) error
	RefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, sentAt time.Time) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type invitations struct {
	repository.Repository[*Invitation]
	db *bun.DB
}

var _ Invitations = (*invitations)(nil)

// NewInvitationsRepository wires the team-invitation repository.
func NewInvitationsRepository(db *bun.DB) Invitations {
	repo := repository.NewRepository[*Invitation](db, repository.ModelHandlers[*Invitation]{
		NewRecord: func() *Invitation { return &Invitation{} },
		GetID: func(i *Invitation) uuid.UUID {
			if i == nil {
				return uuid.Nil
			}
			return i.ID
		},
		SetID: func(i *Invitation, id uuid.UUID) {
			if i != nil {
				i.ID = id
			}
		},
	})
	return &invitations{Repository: repo, db: db}
}

func (r *invitations) FindByID(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

// FindByIDTx loads the invitation together with its membership rows; callers
// always need both.
func (r *invitations) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Invitation, error) {
	record := &Invitation{}
	err := tx.NewSelect().Model(record).
		Relation("Memberships").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withMeta(ErrInvitationNotFound, map[string]any{"invitation_id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (r *invitations) ListByOrg(ctx context.Context, orgID uuid.UUID, status InvitationStatus) ([]*Invitation, error) {
	var records []*Invitation
	q := r.db.NewSelect().Model(&records).
		Relation("Memberships").
		Join("JOIN invitation_memberships AS im ON im.invitation_id = inv.id").
		Where("im.org_id = ?", orgID)
	if status != "" {
		q = q.Where("inv.status_code = ?", status)
	}
	err := q.Order("inv.sent_date DESC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AcceptPendingTx performs the PENDING to ACCEPTED transition as one
// conditional update. A false return means the row was no longer PENDING, so
// a concurrent accept gets a clean conflict instead of a duplicate-membership
// failure downstream.
func (r *invitations) AcceptPendingTx(ctx context.Context, tx bun.IDB, id uuid.UUID, acceptedAt time.Time) (bool, error) {
	res, err := tx.NewUpdate().Model((*Invitation)(nil)).
		Set("status_code = ?", InvitationStatusAccepted).
		Set("accepted_date = ?", acceptedAt).
		Where("id = ?", id).
		Where("status_code = ?", InvitationStatusPending).
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

func (r *invitations) UpdateStatus(ctx context.Context, id uuid.UUID, status InvitationStatus) error {
	return r.UpdateStatusTx(ctx, r.db, id, status)
}

func (r *invitations) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status InvitationStatus) error {
	_, err := tx.NewUpdate().Model((*Invitation)(nil)).
		Set("status_code = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// RefreshTokenTx stores a regenerated token and sent date for a resend.
func (r *invitations) RefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, sentAt time.Time) error {
	_, err := tx.NewUpdate().Model((*Invitation)(nil)).
		Set("token = ?", token).
		Set("sent_date = ?", sentAt).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteByIDTx removes the invitation and its membership rows.
func (r *invitations) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	if _, err := tx.NewDelete().Model((*InvitationMembership)(nil)).
		Where("invitation_id = ?", id).
		Exec(ctx); err != nil {
		return err
	}
	_, err := tx.NewDelete().Model((*Invitation)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
