package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories plus the transaction runner.
// Services receive this rather than a raw *bun.DB.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Orgs() Orgs
	Users() Users
	Memberships() Memberships
	Entities() Entities
	Affiliations() Affiliations
	Invitations() Invitations
	InvitationMemberships() repository.Repository[*InvitationMembership]
	AffiliationInvitations() AffiliationInvitations
	Tasks() Tasks
	ProductSubscriptions() ProductSubscriptions
	Affidavits() repository.Repository[*Affidavit]
	Contacts() repository.Repository[*Contact]
	Permissions() Permissions
	AuditRecords() repository.Repository[*AuditRecord]
}

// NewInvitationMembershipsRepository wires the invitation membership rows.
func NewInvitationMembershipsRepository(db *bun.DB) repository.Repository[*InvitationMembership] {
	return repository.NewRepository(db, repository.ModelHandlers[*InvitationMembership]{
		NewRecord: func() *InvitationMembership { return &InvitationMembership{} },
		GetID: func(record *InvitationMembership) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *InvitationMembership, id uuid.UUID) {
			record.ID = id
		},
	})
}

// NewAffidavitsRepository wires the affidavit rows.
func NewAffidavitsRepository(db *bun.DB) repository.Repository[*Affidavit] {
	return repository.NewRepository(db, repository.ModelHandlers[*Affidavit]{
		NewRecord: func() *Affidavit { return &Affidavit{} },
		GetID: func(record *Affidavit) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Affidavit, id uuid.UUID) {
			record.ID = id
		},
	})
}

// NewContactsRepository wires contact rows.
func NewContactsRepository(db *bun.DB) repository.Repository[*Contact] {
	return repository.NewRepository(db, repository.ModelHandlers[*Contact]{
		NewRecord: func() *Contact { return &Contact{} },
		GetID: func(record *Contact) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Contact, id uuid.UUID) {
			record.ID = id
		},
	})
}

// NewAuditRecordsRepository wires the append-only audit table.
func NewAuditRecordsRepository(db *bun.DB) repository.Repository[*AuditRecord] {
	return repository.NewRepository(db, repository.ModelHandlers[*AuditRecord]{
		NewRecord: func() *AuditRecord { return &AuditRecord{} },
		GetID: func(record *AuditRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *AuditRecord, id uuid.UUID) {
			record.ID = id
		},
	})
}

type mngr struct {
	db                     *bun.DB
	orgs                   Orgs
	users                  Users
	memberships            Memberships
	entities               Entities
	affiliations           Affiliations
	invitations            Invitations
	invitationMemberships  repository.Repository[*InvitationMembership]
	affiliationInvitations AffiliationInvitations
	tasks                  Tasks
	products               ProductSubscriptions
	affidavits             repository.Repository[*Affidavit]
	contacts               repository.Repository[*Contact]
	permissions            Permissions
	auditRecords           repository.Repository[*AuditRecord]
}

// NewRepositoryManager builds every repository over one bun.DB.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:                     db,
		orgs:                   NewOrgsRepository(db),
		users:                  NewUsersRepository(db),
		memberships:            NewMembershipsRepository(db),
		entities:               NewEntitiesRepository(db),
		affiliations:           NewAffiliationsRepository(db),
		invitations:            NewInvitationsRepository(db),
		invitationMemberships:  NewInvitationMembershipsRepository(db),
		affiliationInvitations: NewAffiliationInvitationsRepository(db),
		tasks:                  NewTasksRepository(db),
		products:               NewProductSubscriptionsRepository(db),
		affidavits:             NewAffidavitsRepository(db),
		contacts:               NewContactsRepository(db),
		permissions:            NewPermissionsRepository(db),
		auditRecords:           NewAuditRecordsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.orgs == nil {
		return errors.New("repository orgs should be initialized")
	}
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}
	if m.memberships == nil {
		return errors.New("repository memberships should be initialized")
	}
	if m.invitations == nil {
		return errors.New("repository invitations should be initialized")
	}
	if m.affiliationInvitations == nil {
		return errors.New("repository affiliationInvitations should be initialized")
	}
	if m.tasks == nil {
		return errors.New("repository tasks should be initialized")
	}
	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Orgs() Orgs                 { return m.orgs }
func (m mngr) Users() Users               { return m.users }
func (m mngr) Memberships() Memberships   { return m.memberships }
func (m mngr) Entities() Entities         { return m.entities }
func (m mngr) Affiliations() Affiliations { return m.affiliations }
func (m mngr) Invitations() Invitations   { return m.invitations }

func (m mngr) InvitationMemberships() repository.Repository[*InvitationMembership] {
	return m.invitationMemberships
}

func (m mngr) AffiliationInvitations() AffiliationInvitations { return m.affiliationInvitations }
func (m mngr) Tasks() Tasks                                   { return m.tasks }
func (m mngr) ProductSubscriptions() ProductSubscriptions     { return m.products }
func (m mngr) Affidavits() repository.Repository[*Affidavit]  { return m.affidavits }
func (m mngr) Contacts() repository.Repository[*Contact]      { return m.contacts }
func (m mngr) Permissions() Permissions                       { return m.permissions }
func (m mngr) AuditRecords() repository.Repository[*AuditRecord] {
	return m.auditRecords
}
