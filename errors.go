package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeOrgNotFound             = "ORG_NOT_FOUND"
	textCodeEntityNotFound          = "ENTITY_NOT_FOUND"
	textCodeInvitationNotFound      = "INVITATION_NOT_FOUND"
	textCodeTaskNotFound            = "TASK_NOT_FOUND"
	textCodeMembershipNotFound      = "MEMBERSHIP_NOT_FOUND"
	textCodeOrgNameExists           = "ORG_NAME_EXISTS"
	textCodeAffiliationExists       = "AFFILIATION_EXISTS"
	textCodeInvitationExists        = "AFFILIATION_INVITATION_EXISTS"
	textCodeMembershipExists        = "MEMBERSHIP_EXISTS"
	textCodeInvitationActioned      = "INVITATION_ALREADY_ACTIONED"
	textCodeInvitationExpired       = "INVITATION_EXPIRED"
	textCodeInvalidToken            = "INVALID_INVITATION_TOKEN"
	textCodeInvalidStateForHold     = "INVALID_STATE_FOR_HOLD"
	textCodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	textCodeLoginSourceMismatch     = "LOGIN_SOURCE_MISMATCH"
	textCodeLastAdminRemoval        = "LAST_ACTIVE_ADMIN"
	textCodeNotificationFailure     = "NOTIFICATION_PUBLISH_FAILED"
	textCodeServiceUnavailable      = "UPSTREAM_UNAVAILABLE"
	textCodeBusinessNotFound        = "BUSINESS_NOT_FOUND"
	textCodeContactMissing          = "BUSINESS_CONTACT_MISSING"
	textCodePermissionDenied        = "PERMISSION_DENIED"
)

// ErrOrgNotFound is returned when the referenced org does not exist.
var ErrOrgNotFound = goerrors.New("org not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeOrgNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrEntityNotFound is returned when the referenced business entity does not exist.
var ErrEntityNotFound = goerrors.New("business entity not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeEntityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvitationNotFound is returned when the referenced invitation does not exist.
var ErrInvitationNotFound = goerrors.New("invitation not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeInvitationNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTaskNotFound is returned when the referenced task does not exist.
var ErrTaskNotFound = goerrors.New("task not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeTaskNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMembershipNotFound is returned when the caller has no membership on the target org.
var ErrMembershipNotFound = goerrors.New("membership not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeMembershipNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrOrgNameExists is returned on duplicate org names.
var ErrOrgNameExists = goerrors.New("an org with this name already exists", goerrors.CategoryConflict).
	WithTextCode(textCodeOrgNameExists).
	WithCode(goerrors.CodeConflict)

// ErrAffiliationExists is returned when the target affiliation already exists.
var ErrAffiliationExists = goerrors.New("affiliation already exists", goerrors.CategoryConflict).
	WithTextCode(textCodeAffiliationExists).
	WithCode(goerrors.CodeConflict)

// ErrAffiliationInvitationExists is returned when a pending or accepted
// invitation already covers the (from org, to org, entity) triple.
var ErrAffiliationInvitationExists = goerrors.New("affiliation invitation already exists", goerrors.CategoryConflict).
	WithTextCode(textCodeInvitationExists).
	WithCode(goerrors.CodeConflict)

// ErrMembershipExists is returned on duplicate memberships per (org, user).
var ErrMembershipExists = goerrors.New("membership already exists", goerrors.CategoryConflict).
	WithTextCode(textCodeMembershipExists).
	WithCode(goerrors.CodeConflict)

// ErrInvitationActioned is returned when an invitation in a terminal state is
// actioned again.
var ErrInvitationActioned = goerrors.New("invitation has already been actioned", goerrors.CategoryConflict).
	WithTextCode(textCodeInvitationActioned).
	WithCode(goerrors.CodeConflict)

// ErrInvitationExpired is returned when a token or invitation is past its TTL.
var ErrInvitationExpired = goerrors.New("invitation has expired", goerrors.CategoryValidation).
	WithTextCode(textCodeInvitationExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidToken is returned when a token fails verification or references a
// different invitation than the request path.
var ErrInvalidToken = goerrors.New("invalid invitation token", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidStateForHold is returned when a hold is requested for an action
// that does not support it.
var ErrInvalidStateForHold = goerrors.New("task cannot be placed on hold", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidStateForHold).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidStatusTransition is returned when a status change is not in the
// allowed transition table.
var ErrInvalidStatusTransition = goerrors.New("invalid status transition", goerrors.CategoryConflict).
	WithTextCode(textCodeInvalidStatusTransition).
	WithCode(goerrors.CodeConflict)

// ErrLoginSourceMismatch is returned when the accepting user signed in with a
// different identity provider than the org requires.
var ErrLoginSourceMismatch = goerrors.New("login source does not match invitation", goerrors.CategoryValidation).
	WithTextCode(textCodeLoginSourceMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrLastActiveAdmin is returned when removing a member would leave the org
// without an active owner or admin.
var ErrLastActiveAdmin = goerrors.New("org must retain an active owner or admin", goerrors.CategoryConflict).
	WithTextCode(textCodeLastAdminRemoval).
	WithCode(goerrors.CodeConflict)

// ErrNotificationFailure is returned when publishing the outbound
// notification fails; the owning row is marked FAILED before this surfaces.
var ErrNotificationFailure = goerrors.New("failed to publish notification", goerrors.CategoryOperation).
	WithTextCode(textCodeNotificationFailure).
	WithCode(goerrors.CodeInternal)

// ErrServiceUnavailable is returned when an upstream collaborator fails with
// a 5xx or connection error. The HTTP adapter maps it to 503.
var ErrServiceUnavailable = goerrors.New("upstream service unavailable", goerrors.CategoryOperation).
	WithTextCode(textCodeServiceUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrBusinessNotFound is returned when the external registry has no record of
// the business identifier.
var ErrBusinessNotFound = goerrors.New("business not found in registry", goerrors.CategoryNotFound).
	WithTextCode(textCodeBusinessNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrBusinessContactMissing is returned when creating an EMAIL-type
// affiliation invitation for a business with no contact email.
var ErrBusinessContactMissing = goerrors.New("business has no contact email", goerrors.CategoryValidation).
	WithTextCode(textCodeContactMissing).
	WithCode(goerrors.CodeBadRequest)

// ErrPermissionDenied is the hard-stop authorization failure; it maps to 403.
var ErrPermissionDenied = goerrors.New("permission denied", goerrors.CategoryAuthz).
	WithTextCode(textCodePermissionDenied).
	WithCode(goerrors.CodeForbidden)

// IsBusinessError reports whether err carries a structured business error.
func IsBusinessError(err error) bool {
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr)
}

// withMeta attaches metadata to a copy of a shared sentinel. The
// package-level value must never carry per-request data.
func withMeta(sentinel *goerrors.Error, meta map[string]any) *goerrors.Error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	return clone.WithMetadata(meta)
}
