package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Orgs is the account repository.
type Orgs interface {
	repository.Repository[*Org]

	FindByID(ctx context.Context, id uuid.UUID) (*Org, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Org, error)
	FindByName(ctx context.Context, name, branchName string) (*Org, error)
	FindByNameTx(ctx context.Context, tx bun.IDB, name, branchName string) (*Org, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status OrgStatus) (*Org, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status OrgStatus) (*Org, error)
}

type orgs struct {
	repository.Repository[*Org]
	db *bun.DB
}

var _ Orgs = (*orgs)(nil)

// NewOrgsRepository wires the org repository.
func NewOrgsRepository(db *bun.DB) Orgs {
	repo := repository.NewRepository[*Org](db, repository.ModelHandlers[*Org]{
		NewRecord: func() *Org { return &Org{} },
		GetID: func(o *Org) uuid.UUID {
			if o == nil {
				return uuid.Nil
			}
			return o.ID
		},
		SetID: func(o *Org, id uuid.UUID) {
			if o != nil {
				o.ID = id
			}
		},
		GetIdentifier: func() string { return "name" },
	})
	return &orgs{Repository: repo, db: db}
}

func (r *orgs) FindByID(ctx context.Context, id uuid.UUID) (*Org, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *orgs) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Org, error) {
	record := &Org{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withMeta(ErrOrgNotFound, map[string]any{"org_id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (r *orgs) FindByName(ctx context.Context, name, branchName string) (*Org, error) {
	return r.FindByNameTx(ctx, r.db, name, branchName)
}

// FindByNameTx matches on (name, branch_name); branch name distinguishes
// otherwise identically named accounts.
func (r *orgs) FindByNameTx(ctx context.Context, tx bun.IDB, name, branchName string) (*Org, error) {
	record := &Org{}
	q := tx.NewSelect().Model(record).
		Where("?TableAlias.name = ?", name)
	if branchName != "" {
		q = q.Where("?TableAlias.branch_name = ?", branchName)
	}
	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withMeta(ErrOrgNotFound, map[string]any{"name": name})
		}
		return nil, err
	}
	return record, nil
}

func (r *orgs) UpdateStatus(ctx context.Context, id uuid.UUID, status OrgStatus) (*Org, error) {
	return r.UpdateStatusTx(ctx, r.db, id, status)
}

func (r *orgs) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status OrgStatus) (*Org, error) {
	record := &Org{
		ID:         id,
		StatusCode: status,
	}
	return r.Repository.UpdateTx(ctx, tx, record,
		repository.UpdateByID(id.String()),
		repository.UpdateSkipZeroValues(),
	)
}
