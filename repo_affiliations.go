package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Affiliations links orgs to business entities.
type Affiliations interface {
	repository.Repository[*Affiliation]

	FindByOrgAndEntity(ctx context.Context, orgID, entityID uuid.UUID) (*Affiliation, error)
	FindByOrgAndEntityTx(ctx context.Context, tx bun.IDB, orgID, entityID uuid.UUID) (*Affiliation, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*Affiliation, error)
	CountByOrg(ctx context.Context, orgID uuid.UUID) (int, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Affiliation) (*Affiliation, error)
}

type affiliations struct {
	repository.Repository[*Affiliation]
	db *bun.DB
}

var _ Affiliations = (*affiliations)(nil)

// NewAffiliationsRepository wires the affiliation repository.
func NewAffiliationsRepository(db *bun.DB) Affiliations {
	repo := repository.NewRepository[*Affiliation](db, repository.ModelHandlers[*Affiliation]{
		NewRecord: func() *Affiliation { return &Affiliation{} },
		GetID: func(a *Affiliation) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Affiliation, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})
	return &affiliations{Repository: repo, db: db}
}

func (r *affiliations) FindByOrgAndEntity(ctx context.Context, orgID, entityID uuid.UUID) (*Affiliation, error) {
	return r.FindByOrgAndEntityTx(ctx, r.db, orgID, entityID)
}

func (r *affiliations) FindByOrgAndEntityTx(ctx context.Context, tx bun.IDB, orgID, entityID uuid.UUID) (*Affiliation, error) {
	record := &Affiliation{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.org_id = ?", orgID).
		Where("?TableAlias.entity_id = ?", entityID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListByOrg fetches the org's affiliations with their entities in one query;
// there is no lazy relationship traversal anywhere else.
func (r *affiliations) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*Affiliation, error) {
	var records []*Affiliation
	err := r.db.NewSelect().Model(&records).
		Relation("Entity").
		Where("?TableAlias.org_id = ?", orgID).
		Order("aff.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *affiliations) CountByOrg(ctx context.Context, orgID uuid.UUID) (int, error) {
	return r.db.NewSelect().Model((*Affiliation)(nil)).
		Where("?TableAlias.org_id = ?", orgID).
		Count(ctx)
}

// GetOrCreateTx reuses an existing (org, entity) affiliation; accepting the
// same affiliation invitation twice must not produce duplicate rows.
func (r *affiliations) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Affiliation) (*Affiliation, error) {
	existing, err := r.FindByOrgAndEntityTx(ctx, tx, record.OrgID, record.EntityID)
	if err == nil {
		return existing, nil
	}
	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, record)
}
