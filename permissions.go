package auth

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// The permission table only special-cases restricted org states; every other
// status collapses to the normal bucket before lookup.
var distinguishingOrgStatuses = newCodeTable(
	OrgStatusNSFSuspended,
	OrgStatusPendingStaffReview,
	OrgStatusSuspended,
)

// NormalizeOrgStatus collapses non-distinguishing statuses to the normal
// (empty) bucket.
func NormalizeOrgStatus(status OrgStatus) OrgStatus {
	if distinguishingOrgStatuses.Has(status) {
		return status
	}
	return ""
}

// PermissionResolver maps (org status, membership role) to the allowed
// action set, backed by a process-local cache over the permission table.
type PermissionResolver struct {
	repo   Permissions
	cache  *xsync.MapOf[string, []string]
	logger Logger
}

// PermissionResolverOption customizes resolver construction.
type PermissionResolverOption func(*PermissionResolver)

// WithPermissionLogger overrides the logger.
func WithPermissionLogger(logger Logger) PermissionResolverOption {
	return func(pr *PermissionResolver) {
		if logger != nil {
			pr.logger = logger
		}
	}
}

// NewPermissionResolver wires the resolver; the cache is owned by the
// resolver instance, not package state.
func NewPermissionResolver(repo Permissions, opts ...PermissionResolverOption) *PermissionResolver {
	pr := &PermissionResolver{
		repo:   repo,
		cache:  xsync.NewMapOf[string, []string](),
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(pr)
		}
	}
	return pr
}

// GetPermissionsForMembership returns the allowed actions for the pair. The
// result is sorted so repeated lookups compare equal regardless of source
// (cache or table).
func (pr *PermissionResolver) GetPermissionsForMembership(ctx context.Context, orgStatus OrgStatus, membershipType MembershipType) []string {
	normalized := NormalizeOrgStatus(orgStatus)
	key := normalized + "|" + membershipType

	if actions, ok := pr.cache.Load(key); ok {
		return actions
	}

	actions, err := pr.repo.ListActions(ctx, normalized, membershipType)
	if err != nil {
		// A cold cache is not fatal; the caller just gets no actions.
		pr.logger.Error("permission lookup failed for %s: %v", key, err)
		return nil
	}

	sort.Strings(actions)
	pr.cache.Store(key, actions)
	return actions
}

// HasPermission reports whether the pair allows the given action.
func (pr *PermissionResolver) HasPermission(ctx context.Context, orgStatus OrgStatus, membershipType MembershipType, action string) bool {
	for _, a := range pr.GetPermissionsForMembership(ctx, orgStatus, membershipType) {
		if a == action {
			return true
		}
	}
	return false
}
