package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the identity-record repository. Rows mirror IdP claims and are
// created on a user's first authenticated request.
type Users interface {
	repository.Repository[*User]

	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	FindByGUID(ctx context.Context, guid uuid.UUID) (*User, error)
	FindByGUIDTx(ctx context.Context, tx bun.IDB, guid uuid.UUID) (*User, error)
	GetOrCreateFromClaims(ctx context.Context, claims *UserClaims) (*User, error)
	GetOrCreateFromClaimsTx(ctx context.Context, tx bun.IDB, claims *UserClaims) (*User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository wires the user repository.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string { return "username" },
	})
	return &users{Repository: repo, db: db}
}

func (r *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *users) FindByGUID(ctx context.Context, guid uuid.UUID) (*User, error) {
	return r.FindByGUIDTx(ctx, r.db, guid)
}

func (r *users) FindByGUIDTx(ctx context.Context, tx bun.IDB, guid uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.keycloak_guid = ?", guid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *users) GetOrCreateFromClaims(ctx context.Context, claims *UserClaims) (*User, error) {
	return r.GetOrCreateFromClaimsTx(ctx, r.db, claims)
}

func (r *users) GetOrCreateFromClaimsTx(ctx context.Context, tx bun.IDB, claims *UserClaims) (*User, error) {
	guid, err := claims.SubjectGUID()
	if err != nil {
		return nil, err
	}

	user, err := r.FindByGUIDTx(ctx, tx, guid)
	if err == nil {
		return user, nil
	}
	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	record := &User{
		ID:           uuid.New(),
		Username:     claims.Username,
		Email:        claims.Email,
		FirstName:    claims.FirstName,
		LastName:     claims.LastName,
		KeycloakGUID: guid,
		StatusCode:   UserStatusActive,
		LoginSource:  claims.LoginSource,
	}
	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *users) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return r.MarkVerifiedTx(ctx, r.db, id)
}

func (r *users) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewUpdate().Model((*User)(nil)).
		Set("is_verified = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// Deactivate marks the user INACTIVE; identity rows are never hard-deleted.
func (r *users) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.DeactivateTx(ctx, r.db, id)
}

func (r *users) DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewUpdate().Model((*User)(nil)).
		Set("status_code = ?", UserStatusInactive).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
