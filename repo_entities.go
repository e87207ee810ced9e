package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Entities is the business-registration repository.
type Entities interface {
	repository.Repository[*Entity]

	FindByID(ctx context.Context, id uuid.UUID) (*Entity, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Entity, error)
	FindByBusinessIdentifier(ctx context.Context, identifier string) (*Entity, error)
	FindByBusinessIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Entity, error)
	ContactEmail(ctx context.Context, entityID uuid.UUID) (string, error)
}

type entities struct {
	repository.Repository[*Entity]
	db *bun.DB
}

var _ Entities = (*entities)(nil)

// NewEntitiesRepository wires the entity repository.
func NewEntitiesRepository(db *bun.DB) Entities {
	repo := repository.NewRepository[*Entity](db, repository.ModelHandlers[*Entity]{
		NewRecord: func() *Entity { return &Entity{} },
		GetID: func(e *Entity) uuid.UUID {
			if e == nil {
				return uuid.Nil
			}
			return e.ID
		},
		SetID: func(e *Entity, id uuid.UUID) {
			if e != nil {
				e.ID = id
			}
		},
		GetIdentifier: func() string { return "business_identifier" },
	})
	return &entities{Repository: repo, db: db}
}

func (r *entities) FindByID(ctx context.Context, id uuid.UUID) (*Entity, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *entities) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Entity, error) {
	record := &Entity{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withMeta(ErrEntityNotFound, map[string]any{"entity_id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (r *entities) FindByBusinessIdentifier(ctx context.Context, identifier string) (*Entity, error) {
	return r.FindByBusinessIdentifierTx(ctx, r.db, identifier)
}

func (r *entities) FindByBusinessIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Entity, error) {
	record := &Entity{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.business_identifier = ?", identifier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withMeta(ErrEntityNotFound, map[string]any{"business_identifier": identifier})
		}
		return nil, err
	}
	return record, nil
}

// ContactEmail returns the entity's registered contact email, empty when the
// business has no contact on file.
func (r *entities) ContactEmail(ctx context.Context, entityID uuid.UUID) (string, error) {
	record := &Contact{}
	err := r.db.NewSelect().Model(record).
		Where("?TableAlias.entity_id = ?", entityID).
		Where("?TableAlias.email <> ''").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return record.Email, nil
}
