package auth

import (
	"context"

	"github.com/uptrace/bun"
)

// Permissions reads the static permission reference table.
type Permissions interface {
	ListActions(ctx context.Context, orgStatus OrgStatus, membershipType MembershipType) ([]string, error)
}

type permissions struct {
	db *bun.DB
}

var _ Permissions = (*permissions)(nil)

// NewPermissionsRepository wires the read-only permission table.
func NewPermissionsRepository(db *bun.DB) Permissions {
	return &permissions{db: db}
}

// ListActions returns the allowed actions for the (org status, membership
// role) pair. Rows with an empty org_status_code apply to the normal bucket.
func (r *permissions) ListActions(ctx context.Context, orgStatus OrgStatus, membershipType MembershipType) ([]string, error) {
	var actions []string
	q := r.db.NewSelect().
		ColumnExpr("perm.actions").
		Model((*Permission)(nil)).
		Where("perm.membership_type_code = ?", membershipType)
	if orgStatus == "" {
		q = q.Where("perm.org_status_code IS NULL OR perm.org_status_code = ''")
	} else {
		q = q.Where("perm.org_status_code = ?", orgStatus)
	}
	if err := q.Scan(ctx, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}
