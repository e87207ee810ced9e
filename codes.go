package auth

// OrgStatus is the lifecycle status of an account.
type OrgStatus = string

const (
	OrgStatusPendingActivation  OrgStatus = "PENDING_ACTIVATION"
	OrgStatusActive             OrgStatus = "ACTIVE"
	OrgStatusSuspended          OrgStatus = "SUSPENDED"
	OrgStatusNSFSuspended       OrgStatus = "NSF_SUSPENDED"
	OrgStatusRejected           OrgStatus = "REJECTED"
	OrgStatusPendingInvite      OrgStatus = "PENDING_INVITE_ACCEPT"
	OrgStatusPendingStaffReview OrgStatus = "PENDING_STAFF_REVIEW"
	OrgStatusInactive           OrgStatus = "INACTIVE"
)

// OrgType distinguishes account tiers.
type OrgType = string

const (
	OrgTypeBasic    OrgType = "BASIC"
	OrgTypePremium  OrgType = "PREMIUM"
	OrgTypeStaff    OrgType = "STAFF"
	OrgTypeSBCStaff OrgType = "SBC_STAFF"
)

// AccessType controls which login source an account admits.
type AccessType = string

const (
	AccessTypeRegular         AccessType = "REGULAR"
	AccessTypeRegularBCeID    AccessType = "REGULAR_BCEID"
	AccessTypeAnonymous       AccessType = "ANONYMOUS"
	AccessTypeGovM            AccessType = "GOVM"
	AccessTypeGovN            AccessType = "GOVN"
	AccessTypeExtraProvincial AccessType = "EXTRA_PROVINCIAL"
)

// LoginSource identifies the identity provider a session came from.
type LoginSource = string

const (
	LoginSourceBCSC  LoginSource = "BCSC"
	LoginSourceBCeID LoginSource = "BCEID"
	LoginSourceBCROS LoginSource = "BCROS"
	LoginSourceStaff LoginSource = "IDIR"
)

// MembershipType is a user's role within an org.
type MembershipType = string

const (
	MembershipTypeOwner       MembershipType = "OWNER"
	MembershipTypeAdmin       MembershipType = "ADMIN"
	MembershipTypeCoordinator MembershipType = "COORDINATOR"
	MembershipTypeUser        MembershipType = "USER"
)

// MembershipStatus is the approval state of a membership.
type MembershipStatus = string

const (
	MembershipStatusActive             MembershipStatus = "ACTIVE"
	MembershipStatusInactive           MembershipStatus = "INACTIVE"
	MembershipStatusRejected           MembershipStatus = "REJECTED"
	MembershipStatusPendingApproval    MembershipStatus = "PENDING_APPROVAL"
	MembershipStatusPendingStaffReview MembershipStatus = "PENDING_STAFF_REVIEW"
)

// UserStatus marks an identity record active or retired. Users are never
// hard-deleted.
type UserStatus = string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// InvitationStatus is shared by team invitations and affiliation invitations.
type InvitationStatus = string

const (
	InvitationStatusPending  InvitationStatus = "PENDING"
	InvitationStatusAccepted InvitationStatus = "ACCEPTED"
	InvitationStatusExpired  InvitationStatus = "EXPIRED"
	InvitationStatusFailed   InvitationStatus = "FAILED"
)

// AffiliationInvitationType selects the affiliation-invitation flow.
type AffiliationInvitationType = string

const (
	// AffiliationInvitationTypeEmail invites the business contact to
	// authorize moving one business registration.
	AffiliationInvitationTypeEmail AffiliationInvitationType = "EMAIL"
	// AffiliationInvitationTypeRequest asks the admins of the org that
	// currently holds the business for authorization.
	AffiliationInvitationTypeRequest AffiliationInvitationType = "REQUEST"
)

// TaskStatus is the staff-queue state of a review item.
type TaskStatus = string

const (
	TaskStatusOpen      TaskStatus = "OPEN"
	TaskStatusHold      TaskStatus = "HOLD"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusClosed    TaskStatus = "CLOSED"
)

// TaskRelationshipType names the record a task reviews.
type TaskRelationshipType = string

const (
	TaskRelationshipOrg       TaskRelationshipType = "ORG"
	TaskRelationshipUser      TaskRelationshipType = "USER"
	TaskRelationshipProduct   TaskRelationshipType = "PRODUCT"
	TaskRelationshipAffidavit TaskRelationshipType = "AFFIDAVIT"
)

// TaskAction describes why the task exists; affidavit reviews carry extra
// restrictions (no HOLD).
type TaskAction = string

const (
	TaskActionAffidavitReview TaskAction = "AFFIDAVIT_REVIEW"
	TaskActionAccountReview   TaskAction = "ACCOUNT_REVIEW"
	TaskActionProductReview   TaskAction = "PRODUCT_REVIEW"
)

// ProductSubscriptionStatus is the approval state of a product subscription.
type ProductSubscriptionStatus = string

const (
	ProductStatusActive             ProductSubscriptionStatus = "ACTIVE"
	ProductStatusPendingStaffReview ProductSubscriptionStatus = "PENDING_STAFF_REVIEW"
	ProductStatusRejected           ProductSubscriptionStatus = "REJECTED"
	ProductStatusInactive           ProductSubscriptionStatus = "INACTIVE"
	ProductStatusNotSubscribed      ProductSubscriptionStatus = "NOT_SUBSCRIBED"
)

// AffidavitStatus tracks notarized-affidavit review for BCeID admins.
type AffidavitStatus = string

const (
	AffidavitStatusPending  AffidavitStatus = "PENDING"
	AffidavitStatusApproved AffidavitStatus = "APPROVED"
	AffidavitStatusRejected AffidavitStatus = "REJECTED"
	AffidavitStatusInactive AffidavitStatus = "INACTIVE"
)

// codeTable is a closed set of valid codes, declared statically so lookups
// never reflect over model metadata.
type codeTable map[string]struct{}

func newCodeTable(codes ...string) codeTable {
	t := make(codeTable, len(codes))
	for _, c := range codes {
		t[c] = struct{}{}
	}
	return t
}

func (t codeTable) Has(code string) bool {
	_, ok := t[code]
	return ok
}

var (
	orgStatuses = newCodeTable(
		OrgStatusPendingActivation, OrgStatusActive, OrgStatusSuspended,
		OrgStatusNSFSuspended, OrgStatusRejected, OrgStatusPendingInvite,
		OrgStatusPendingStaffReview, OrgStatusInactive,
	)
	orgTypes    = newCodeTable(OrgTypeBasic, OrgTypePremium, OrgTypeStaff, OrgTypeSBCStaff)
	accessTypes = newCodeTable(
		AccessTypeRegular, AccessTypeRegularBCeID, AccessTypeAnonymous,
		AccessTypeGovM, AccessTypeGovN, AccessTypeExtraProvincial,
	)
	membershipTypes = newCodeTable(
		MembershipTypeOwner, MembershipTypeAdmin, MembershipTypeCoordinator, MembershipTypeUser,
	)
	membershipStatuses = newCodeTable(
		MembershipStatusActive, MembershipStatusInactive, MembershipStatusRejected,
		MembershipStatusPendingApproval, MembershipStatusPendingStaffReview,
	)
	invitationStatuses = newCodeTable(
		InvitationStatusPending, InvitationStatusAccepted,
		InvitationStatusExpired, InvitationStatusFailed,
	)
	taskStatuses = newCodeTable(TaskStatusOpen, TaskStatusHold, TaskStatusCompleted, TaskStatusClosed)
	taskRelationshipTypes = newCodeTable(
		TaskRelationshipOrg, TaskRelationshipUser, TaskRelationshipProduct, TaskRelationshipAffidavit,
	)
	productStatuses = newCodeTable(
		ProductStatusActive, ProductStatusPendingStaffReview, ProductStatusRejected,
		ProductStatusInactive, ProductStatusNotSubscribed,
	)
)

// ValidOrgStatus reports whether code names a known org status.
func ValidOrgStatus(code string) bool { return orgStatuses.Has(code) }

// ValidOrgType reports whether code names a known org type.
func ValidOrgType(code string) bool { return orgTypes.Has(code) }

// ValidAccessType reports whether code names a known access type.
func ValidAccessType(code string) bool { return accessTypes.Has(code) }

// ValidMembershipType reports whether code names a known membership role.
func ValidMembershipType(code string) bool { return membershipTypes.Has(code) }

// ValidMembershipStatus reports whether code names a known membership status.
func ValidMembershipStatus(code string) bool { return membershipStatuses.Has(code) }

// ValidInvitationStatus reports whether code names a known invitation status.
func ValidInvitationStatus(code string) bool { return invitationStatuses.Has(code) }

// ValidTaskStatus reports whether code names a known task status.
func ValidTaskStatus(code string) bool { return taskStatuses.Has(code) }

// ValidTaskRelationshipType reports whether code names a known relationship type.
func ValidTaskRelationshipType(code string) bool { return taskRelationshipTypes.Has(code) }

// ValidProductStatus reports whether code names a known product status.
func ValidProductStatus(code string) bool { return productStatuses.Has(code) }

// IsAdminRole reports whether the membership role can manage the org's
// members and invitations.
func IsAdminRole(role MembershipType) bool {
	switch role {
	case MembershipTypeOwner, MembershipTypeAdmin, MembershipTypeCoordinator:
		return true
	default:
		return false
	}
}

// MandatoryLoginSource maps an org's access type to the identity provider an
// invited member must sign in with.
func MandatoryLoginSource(accessType AccessType) LoginSource {
	switch accessType {
	case AccessTypeAnonymous:
		return LoginSourceBCROS
	case AccessTypeGovM:
		return LoginSourceStaff
	case AccessTypeRegular:
		return LoginSourceBCSC
	default:
		return LoginSourceBCeID
	}
}
