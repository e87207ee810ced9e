package auth_test

import (
	"context"
	"errors"
	"testing"

	auth "github.com/amaranthine/auth-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockPermissions struct {
	mock.Mock
}

func (m *MockPermissions) ListActions(ctx context.Context, orgStatus auth.OrgStatus, membershipType auth.MembershipType) ([]string, error) {
	args := m.Called(ctx, orgStatus, membershipType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestNormalizeOrgStatus(t *testing.T) {
	assert.Equal(t, auth.OrgStatusNSFSuspended, auth.NormalizeOrgStatus(auth.OrgStatusNSFSuspended))
	assert.Equal(t, auth.OrgStatusSuspended, auth.NormalizeOrgStatus(auth.OrgStatusSuspended))
	assert.Equal(t, auth.OrgStatusPendingStaffReview, auth.NormalizeOrgStatus(auth.OrgStatusPendingStaffReview))

	assert.Equal(t, "", auth.NormalizeOrgStatus(auth.OrgStatusActive))
	assert.Equal(t, "", auth.NormalizeOrgStatus(auth.OrgStatusPendingActivation))
	assert.Equal(t, "", auth.NormalizeOrgStatus(auth.OrgStatusRejected))
	assert.Equal(t, "", auth.NormalizeOrgStatus(""))
}

func TestGetPermissionsForMembershipCachesLookups(t *testing.T) {
	repo := new(MockPermissions)
	repo.On("ListActions", mock.Anything, "", auth.MembershipTypeAdmin).
		Return([]string{"view", "invite", "edit"}, nil).
		Once()

	resolver := auth.NewPermissionResolver(repo)

	first := resolver.GetPermissionsForMembership(context.Background(), auth.OrgStatusActive, auth.MembershipTypeAdmin)
	assert.Equal(t, []string{"edit", "invite", "view"}, first)

	// Second hit comes from cache; the Once expectation enforces it.
	second := resolver.GetPermissionsForMembership(context.Background(), auth.OrgStatusActive, auth.MembershipTypeAdmin)
	assert.Equal(t, first, second)

	repo.AssertExpectations(t)
}

func TestGetPermissionsForMembershipSharesNormalBucket(t *testing.T) {
	repo := new(MockPermissions)
	repo.On("ListActions", mock.Anything, "", auth.MembershipTypeUser).
		Return([]string{"view"}, nil).
		Once()

	resolver := auth.NewPermissionResolver(repo)

	// ACTIVE and PENDING_ACTIVATION collapse to the same bucket, so one
	// table query serves both.
	a := resolver.GetPermissionsForMembership(context.Background(), auth.OrgStatusActive, auth.MembershipTypeUser)
	b := resolver.GetPermissionsForMembership(context.Background(), auth.OrgStatusPendingActivation, auth.MembershipTypeUser)
	assert.Equal(t, a, b)

	repo.AssertExpectations(t)
}

func TestGetPermissionsForMembershipDistinguishesRestrictedStatuses(t *testing.T) {
	repo := new(MockPermissions)
	repo.On("ListActions", mock.Anything, "", auth.MembershipTypeAdmin).
		Return([]string{"view", "edit"}, nil).
		Once()
	repo.On("ListActions", mock.Anything, auth.OrgStatusNSFSuspended, auth.MembershipTypeAdmin).
		Return([]string{"view"}, nil).
		Once()

	resolver := auth.NewPermissionResolver(repo)

	normal := resolver.GetPermissionsForMembership(context.Background(), auth.OrgStatusActive, auth.MembershipTypeAdmin)
	restricted := resolver.GetPermissionsForMembership(context.Background(), auth.OrgStatusNSFSuspended, auth.MembershipTypeAdmin)

	assert.Contains(t, normal, "edit")
	assert.NotContains(t, restricted, "edit")
	repo.AssertExpectations(t)
}

func TestGetPermissionsForMembershipSwallowsLookupErrors(t *testing.T) {
	repo := new(MockPermissions)
	repo.On("ListActions", mock.Anything, "", auth.MembershipTypeUser).
		Return(nil, errors.New("connection refused"))

	resolver := auth.NewPermissionResolver(repo)

	actions := resolver.GetPermissionsForMembership(context.Background(), auth.OrgStatusActive, auth.MembershipTypeUser)
	assert.Nil(t, actions)

	// The failure is not cached; the next call retries the table.
	resolver.GetPermissionsForMembership(context.Background(), auth.OrgStatusActive, auth.MembershipTypeUser)
	repo.AssertNumberOfCalls(t, "ListActions", 2)
}

func TestHasPermission(t *testing.T) {
	repo := new(MockPermissions)
	repo.On("ListActions", mock.Anything, "", auth.MembershipTypeCoordinator).
		Return([]string{"view", "invite"}, nil)

	resolver := auth.NewPermissionResolver(repo)

	assert.True(t, resolver.HasPermission(context.Background(), auth.OrgStatusActive, auth.MembershipTypeCoordinator, "invite"))
	assert.False(t, resolver.HasPermission(context.Background(), auth.OrgStatusActive, auth.MembershipTypeCoordinator, "delete"))
}
