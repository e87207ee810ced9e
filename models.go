package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Org is a tenant account. It owns memberships, contacts, affiliations and
// product subscriptions.
type Org struct {
	bun.BaseModel `bun:"table:orgs,alias:org"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	BranchName    string     `bun:"branch_name" json:"branch_name,omitempty"`
	StatusCode    OrgStatus  `bun:"status_code,notnull" json:"status_code,omitempty"`
	AccessType    AccessType `bun:"access_type,notnull" json:"access_type,omitempty"`
	TypeCode      OrgType    `bun:"type_code,notnull" json:"type_code,omitempty"`
	SuspendedOn   *time.Time `bun:"suspended_on,nullzero" json:"suspended_on,omitempty"`
	CreatedBy     *uuid.UUID `bun:"created_by,nullzero,type:uuid" json:"created_by,omitempty"`
	ModifiedBy    *uuid.UUID `bun:"modified_by,nullzero,type:uuid" json:"modified_by,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsActive reports whether the org is in a state that admits normal use.
func (o *Org) IsActive() bool {
	return o != nil && o.StatusCode == OrgStatusActive
}

// User mirrors the external identity provider's claims for a person. Created
// on first authenticated request, never hard-deleted.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string      `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string      `bun:"email" json:"email,omitempty"`
	FirstName     string      `bun:"first_name" json:"first_name,omitempty"`
	LastName      string      `bun:"last_name" json:"last_name,omitempty"`
	KeycloakGUID  uuid.UUID   `bun:"keycloak_guid,notnull,unique,type:uuid" json:"keycloak_guid,omitempty"`
	StatusCode    UserStatus  `bun:"status_code,notnull" json:"status_code,omitempty"`
	LoginSource   LoginSource `bun:"login_source" json:"login_source,omitempty"`
	Verified      bool        `bun:"is_verified" json:"is_verified,omitempty"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Contact is an email/phone record attached to an org or a business entity.
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:cnt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OrgID         *uuid.UUID `bun:"org_id,nullzero,type:uuid" json:"org_id,omitempty"`
	EntityID      *uuid.UUID `bun:"entity_id,nullzero,type:uuid" json:"entity_id,omitempty"`
	Email         string     `bun:"email" json:"email,omitempty"`
	Phone         string     `bun:"phone" json:"phone,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Membership joins a user to an org with a role and approval status.
// Membership holds the foreign keys; neither Org nor User carries a
// back-pointer, reads go through explicit queries.
type Membership struct {
	bun.BaseModel `bun:"table:memberships,alias:mbr"`
	ID            uuid.UUID        `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OrgID         uuid.UUID        `bun:"org_id,notnull,type:uuid" json:"org_id,omitempty"`
	UserID        uuid.UUID        `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TypeCode      MembershipType   `bun:"membership_type_code,notnull" json:"membership_type_code,omitempty"`
	StatusCode    MembershipStatus `bun:"status_code,notnull" json:"status_code,omitempty"`
	CreatedBy     *uuid.UUID       `bun:"created_by,nullzero,type:uuid" json:"created_by,omitempty"`
	CreatedAt     *time.Time       `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time       `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Entity is a business registration record.
type Entity struct {
	bun.BaseModel      `bun:"table:entities,alias:ent"`
	ID                 uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	BusinessIdentifier string     `bun:"business_identifier,notnull,unique" json:"business_identifier,omitempty"`
	BusinessNumber     string     `bun:"business_number" json:"business_number,omitempty"`
	Name               string     `bun:"name" json:"name,omitempty"`
	CorpTypeCode       string     `bun:"corp_type_code" json:"corp_type_code,omitempty"`
	PassCodeHash       string     `bun:"pass_code_hash" json:"-"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Affiliation links an org to a business entity, unique per (org, entity).
type Affiliation struct {
	bun.BaseModel `bun:"table:affiliations,alias:aff"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OrgID         uuid.UUID  `bun:"org_id,notnull,type:uuid" json:"org_id,omitempty"`
	EntityID      uuid.UUID  `bun:"entity_id,notnull,type:uuid" json:"entity_id,omitempty"`
	Entity        *Entity    `bun:"rel:has-one,join:entity_id=id" json:"entity,omitempty"`
	CreatedBy     *uuid.UUID `bun:"created_by,nullzero,type:uuid" json:"created_by,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Invitation is a team invitation into one or more orgs.
type Invitation struct {
	bun.BaseModel  `bun:"table:invitations,alias:inv"`
	ID             uuid.UUID               `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	SenderID       uuid.UUID               `bun:"sender_id,notnull,type:uuid" json:"sender_id,omitempty"`
	RecipientEmail string                  `bun:"recipient_email,notnull" json:"recipient_email,omitempty"`
	StatusCode     InvitationStatus        `bun:"status_code,notnull" json:"status_code,omitempty"`
	LoginSource    LoginSource             `bun:"login_source" json:"login_source,omitempty"`
	Token          string                  `bun:"token" json:"-"`
	SentDate       *time.Time              `bun:"sent_date,nullzero" json:"sent_date,omitempty"`
	AcceptedDate   *time.Time              `bun:"accepted_date,nullzero" json:"accepted_date,omitempty"`
	Memberships    []*InvitationMembership `bun:"rel:has-many,join:id=invitation_id" json:"memberships,omitempty"`
	CreatedAt      *time.Time              `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time              `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// InvitationMembership is the org+role pair an invitation grants on accept.
type InvitationMembership struct {
	bun.BaseModel `bun:"table:invitation_memberships,alias:invm"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	InvitationID  uuid.UUID      `bun:"invitation_id,notnull,type:uuid" json:"invitation_id,omitempty"`
	OrgID         uuid.UUID      `bun:"org_id,notnull,type:uuid" json:"org_id,omitempty"`
	TypeCode      MembershipType `bun:"membership_type_code,notnull" json:"membership_type_code,omitempty"`
}

// AffiliationInvitation proposes creating or transferring an Affiliation
// between two orgs. ToOrgID may be empty for REQUEST-type invitations.
type AffiliationInvitation struct {
	bun.BaseModel     `bun:"table:affiliation_invitations,alias:affinv"`
	ID                uuid.UUID                 `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FromOrgID         uuid.UUID                 `bun:"from_org_id,notnull,type:uuid" json:"from_org_id,omitempty"`
	ToOrgID           *uuid.UUID                `bun:"to_org_id,nullzero,type:uuid" json:"to_org_id,omitempty"`
	EntityID          uuid.UUID                 `bun:"entity_id,notnull,type:uuid" json:"entity_id,omitempty"`
	SenderID          uuid.UUID                 `bun:"sender_id,notnull,type:uuid" json:"sender_id,omitempty"`
	ApproverID        *uuid.UUID                `bun:"approver_id,nullzero,type:uuid" json:"approver_id,omitempty"`
	TypeCode          AffiliationInvitationType `bun:"type_code,notnull" json:"type_code,omitempty"`
	StatusCode        InvitationStatus          `bun:"status_code,notnull" json:"status_code,omitempty"`
	RecipientEmail    string                    `bun:"recipient_email" json:"recipient_email,omitempty"`
	AdditionalMessage string                    `bun:"additional_message" json:"additional_message,omitempty"`
	Token             string                    `bun:"token" json:"-"`
	SentDate          *time.Time                `bun:"sent_date,nullzero" json:"sent_date,omitempty"`
	AcceptedDate      *time.Time                `bun:"accepted_date,nullzero" json:"accepted_date,omitempty"`
	IsDeleted         bool                      `bun:"is_deleted" json:"is_deleted,omitempty"`
	CreatedAt         *time.Time                `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time                `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EffectiveStatus derives the reported status. A PENDING invitation past its
// TTL reports EXPIRED even though the persisted code stays PENDING until an
// explicit transition; REQUEST invitations never auto-expire.
func (ai *AffiliationInvitation) EffectiveStatus(ttl time.Duration, now time.Time) InvitationStatus {
	if ai.StatusCode != InvitationStatusPending {
		return ai.StatusCode
	}
	if ai.TypeCode == AffiliationInvitationTypeRequest {
		return ai.StatusCode
	}
	if ai.SentDate != nil && !now.Before(ai.SentDate.Add(ttl)) {
		return InvitationStatusExpired
	}
	return ai.StatusCode
}

// Task is a staff review unit driving a status transition on the record it
// references.
type Task struct {
	bun.BaseModel      `bun:"table:tasks,alias:tsk"`
	ID                 uuid.UUID            `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name               string               `bun:"name,notnull" json:"name,omitempty"`
	RelationshipType   TaskRelationshipType `bun:"relationship_type,notnull" json:"relationship_type,omitempty"`
	RelationshipID     uuid.UUID            `bun:"relationship_id,notnull,type:uuid" json:"relationship_id,omitempty"`
	RelationshipStatus string               `bun:"relationship_status" json:"relationship_status,omitempty"`
	Action             TaskAction           `bun:"action" json:"action,omitempty"`
	StatusCode         TaskStatus           `bun:"status_code,notnull" json:"status_code,omitempty"`
	Remarks            string               `bun:"remarks" json:"remarks,omitempty"`
	DueDate            *time.Time           `bun:"due_date,nullzero" json:"due_date,omitempty"`
	CreatedAt          *time.Time           `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time           `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsTerminal reports whether the task has been actioned to completion.
func (t *Task) IsTerminal() bool {
	return t != nil && (t.StatusCode == TaskStatusCompleted || t.StatusCode == TaskStatusClosed)
}

// ProductSubscription attaches a product to an org. Parent/child products
// cascade approval status.
type ProductSubscription struct {
	bun.BaseModel     `bun:"table:product_subscriptions,alias:prd"`
	ID                uuid.UUID                 `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OrgID             uuid.UUID                 `bun:"org_id,notnull,type:uuid" json:"org_id,omitempty"`
	ProductCode       string                    `bun:"product_code,notnull" json:"product_code,omitempty"`
	ParentProductCode string                    `bun:"parent_product_code" json:"parent_product_code,omitempty"`
	StatusCode        ProductSubscriptionStatus `bun:"status_code,notnull" json:"status_code,omitempty"`
	CreatedAt         *time.Time                `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time                `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Affidavit is the notarized document a BCeID admin submits for review.
type Affidavit struct {
	bun.BaseModel  `bun:"table:affidavits,alias:afd"`
	ID             uuid.UUID       `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID         uuid.UUID       `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	DocumentID     string          `bun:"document_id" json:"document_id,omitempty"`
	Issuer         string          `bun:"issuer" json:"issuer,omitempty"`
	StatusCode     AffidavitStatus `bun:"status_code,notnull" json:"status_code,omitempty"`
	DecisionMadeBy *uuid.UUID      `bun:"decision_made_by,nullzero,type:uuid" json:"decision_made_by,omitempty"`
	CreatedAt      *time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Permission maps an org status bucket and membership role to one allowed
// action. Read-only reference data.
type Permission struct {
	bun.BaseModel      `bun:"table:permissions,alias:perm"`
	ID                 int64          `bun:"id,pk,autoincrement" json:"id,omitempty"`
	OrgStatusCode      OrgStatus      `bun:"org_status_code" json:"org_status_code,omitempty"`
	MembershipTypeCode MembershipType `bun:"membership_type_code,notnull" json:"membership_type_code,omitempty"`
	Action             string         `bun:"actions,notnull" json:"actions,omitempty"`
}

// AuditRecord is one row of the append-only mutation history. Services write
// a record per mutating call inside the same transaction as the mutation.
type AuditRecord struct {
	bun.BaseModel `bun:"table:audit_records,alias:aud"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	EntityType    string         `bun:"entity_type,notnull" json:"entity_type,omitempty"`
	EntityID      uuid.UUID      `bun:"entity_id,notnull,type:uuid" json:"entity_id,omitempty"`
	Version       int64          `bun:"version,notnull" json:"version,omitempty"`
	Action        string         `bun:"action,notnull" json:"action,omitempty"`
	ActorID       string         `bun:"actor_id" json:"actor_id,omitempty"`
	Snapshot      map[string]any `bun:"snapshot,type:jsonb" json:"snapshot,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
