package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProductSubscriptions is the org product-subscription repository.
type ProductSubscriptions interface {
	repository.Repository[*ProductSubscription]

	FindByID(ctx context.Context, id uuid.UUID) (*ProductSubscription, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*ProductSubscription, error)
	FindByOrgAndCode(ctx context.Context, orgID uuid.UUID, productCode string) (*ProductSubscription, error)
	FindByOrgAndCodeTx(ctx context.Context, tx bun.IDB, orgID uuid.UUID, productCode string) (*ProductSubscription, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*ProductSubscription, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status ProductSubscriptionStatus) error
}

type productSubscriptions struct {
	repository.Repository[*ProductSubscription]
	db *bun.DB
}

var _ ProductSubscriptions = (*productSubscriptions)(nil)

// NewProductSubscriptionsRepository wires the product-subscription repository.
func NewProductSubscriptionsRepository(db *bun.DB) ProductSubscriptions {
	repo := repository.NewRepository[*ProductSubscription](db, repository.ModelHandlers[*ProductSubscription]{
		NewRecord: func() *ProductSubscription { return &ProductSubscription{} },
		GetID: func(p *ProductSubscription) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *ProductSubscription, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})
	return &productSubscriptions{Repository: repo, db: db}
}

func (r *productSubscriptions) FindByID(ctx context.Context, id uuid.UUID) (*ProductSubscription, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *productSubscriptions) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*ProductSubscription, error) {
	record := &ProductSubscription{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *productSubscriptions) FindByOrgAndCode(ctx context.Context, orgID uuid.UUID, productCode string) (*ProductSubscription, error) {
	return r.FindByOrgAndCodeTx(ctx, r.db, orgID, productCode)
}

func (r *productSubscriptions) FindByOrgAndCodeTx(ctx context.Context, tx bun.IDB, orgID uuid.UUID, productCode string) (*ProductSubscription, error) {
	record := &ProductSubscription{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.org_id = ?", orgID).
		Where("?TableAlias.product_code = ?", productCode).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *productSubscriptions) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*ProductSubscription, error) {
	var records []*ProductSubscription
	err := r.db.NewSelect().Model(&records).
		Where("?TableAlias.org_id = ?", orgID).
		Order("prd.product_code ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *productSubscriptions) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status ProductSubscriptionStatus) error {
	_, err := tx.NewUpdate().Model((*ProductSubscription)(nil)).
		Set("status_code = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
