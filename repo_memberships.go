package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Memberships is the user-to-org linkage repository.
type Memberships interface {
	repository.Repository[*Membership]

	FindByID(ctx context.Context, id uuid.UUID) (*Membership, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Membership, error)
	FindByOrgAndUser(ctx context.Context, orgID, userID uuid.UUID) (*Membership, error)
	FindByOrgAndUserTx(ctx context.Context, tx bun.IDB, orgID, userID uuid.UUID) (*Membership, error)
	FindActiveRole(ctx context.Context, orgID, userID uuid.UUID) (MembershipType, error)
	CountActiveAdmins(ctx context.Context, orgID uuid.UUID) (int, error)
	CountActiveAdminsTx(ctx context.Context, tx bun.IDB, orgID uuid.UUID) (int, error)
	CountActiveMembers(ctx context.Context, orgID uuid.UUID) (int, error)
	AdminEmails(ctx context.Context, orgID uuid.UUID) ([]string, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status MembershipStatus) (*Membership, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status MembershipStatus) (*Membership, error)
}

type memberships struct {
	repository.Repository[*Membership]
	db *bun.DB
}

var _ Memberships = (*memberships)(nil)

// NewMembershipsRepository wires the membership repository.
func NewMembershipsRepository(db *bun.DB) Memberships {
	repo := repository.NewRepository[*Membership](db, repository.ModelHandlers[*Membership]{
		NewRecord: func() *Membership { return &Membership{} },
		GetID: func(m *Membership) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *Membership, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
	})
	return &memberships{Repository: repo, db: db}
}

func (r *memberships) FindByID(ctx context.Context, id uuid.UUID) (*Membership, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *memberships) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Membership, error) {
	record := &Membership{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withMeta(ErrMembershipNotFound, map[string]any{
				"id": id.String(),
			})
		}
		return nil, err
	}
	return record, nil
}

func (r *memberships) FindByOrgAndUser(ctx context.Context, orgID, userID uuid.UUID) (*Membership, error) {
	return r.FindByOrgAndUserTx(ctx, r.db, orgID, userID)
}

func (r *memberships) FindByOrgAndUserTx(ctx context.Context, tx bun.IDB, orgID, userID uuid.UUID) (*Membership, error) {
	record := &Membership{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.org_id = ?", orgID).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// FindActiveRole resolves the caller's role on the target org; only ACTIVE
// memberships participate in authorization.
func (r *memberships) FindActiveRole(ctx context.Context, orgID, userID uuid.UUID) (MembershipType, error) {
	record := &Membership{}
	err := r.db.NewSelect().Model(record).
		Where("?TableAlias.org_id = ?", orgID).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.status_code = ?", MembershipStatusActive).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", withMeta(ErrMembershipNotFound, map[string]any{
				"org_id":  orgID.String(),
				"user_id": userID.String(),
			})
		}
		return "", err
	}
	return record.TypeCode, nil
}

func (r *memberships) CountActiveAdmins(ctx context.Context, orgID uuid.UUID) (int, error) {
	return r.CountActiveAdminsTx(ctx, r.db, orgID)
}

func (r *memberships) CountActiveAdminsTx(ctx context.Context, tx bun.IDB, orgID uuid.UUID) (int, error) {
	return tx.NewSelect().Model((*Membership)(nil)).
		Where("?TableAlias.org_id = ?", orgID).
		Where("?TableAlias.status_code = ?", MembershipStatusActive).
		Where("?TableAlias.membership_type_code IN (?)", bun.In([]MembershipType{MembershipTypeOwner, MembershipTypeAdmin})).
		Count(ctx)
}

func (r *memberships) CountActiveMembers(ctx context.Context, orgID uuid.UUID) (int, error) {
	return r.db.NewSelect().Model((*Membership)(nil)).
		Where("?TableAlias.org_id = ?", orgID).
		Where("?TableAlias.status_code = ?", MembershipStatusActive).
		Count(ctx)
}

// AdminEmails returns the email addresses of the org's active owners and
// admins, for REQUEST-type affiliation invitations and hold notifications.
func (r *memberships) AdminEmails(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	var emails []string
	err := r.db.NewSelect().
		ColumnExpr("usr.email").
		Model((*Membership)(nil)).
		Join("JOIN users AS usr ON usr.id = mbr.user_id").
		Where("mbr.org_id = ?", orgID).
		Where("mbr.status_code = ?", MembershipStatusActive).
		Where("mbr.membership_type_code IN (?)", bun.In([]MembershipType{MembershipTypeOwner, MembershipTypeAdmin})).
		Where("usr.email <> ''").
		Scan(ctx, &emails)
	if err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *memberships) UpdateStatus(ctx context.Context, id uuid.UUID, status MembershipStatus) (*Membership, error) {
	return r.UpdateStatusTx(ctx, r.db, id, status)
}

func (r *memberships) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status MembershipStatus) (*Membership, error) {
	record := &Membership{
		ID:         id,
		StatusCode: status,
	}
	return r.Repository.UpdateTx(ctx, tx, record,
		repository.UpdateByID(id.String()),
		repository.UpdateSkipZeroValues(),
	)
}
