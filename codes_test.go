package auth_test

import (
	"testing"

	auth "github.com/amaranthine/auth-api"
	"github.com/stretchr/testify/assert"
)

func TestMandatoryLoginSource(t *testing.T) {
	tests := []struct {
		accessType auth.AccessType
		want       auth.LoginSource
	}{
		{auth.AccessTypeAnonymous, auth.LoginSourceBCROS},
		{auth.AccessTypeGovM, auth.LoginSourceStaff},
		{auth.AccessTypeRegular, auth.LoginSourceBCSC},
		{auth.AccessTypeRegularBCeID, auth.LoginSourceBCeID},
		{auth.AccessTypeGovN, auth.LoginSourceBCeID},
		{auth.AccessTypeExtraProvincial, auth.LoginSourceBCeID},
	}

	for _, tt := range tests {
		t.Run(tt.accessType, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.MandatoryLoginSource(tt.accessType))
		})
	}
}

func TestIsAdminRole(t *testing.T) {
	assert.True(t, auth.IsAdminRole(auth.MembershipTypeOwner))
	assert.True(t, auth.IsAdminRole(auth.MembershipTypeAdmin))
	assert.True(t, auth.IsAdminRole(auth.MembershipTypeCoordinator))
	assert.False(t, auth.IsAdminRole(auth.MembershipTypeUser))
	assert.False(t, auth.IsAdminRole(""))
}

func TestCodeTablePredicates(t *testing.T) {
	assert.True(t, auth.ValidOrgStatus(auth.OrgStatusNSFSuspended))
	assert.False(t, auth.ValidOrgStatus("DORMANT"))

	assert.True(t, auth.ValidAccessType(auth.AccessTypeExtraProvincial))
	assert.False(t, auth.ValidAccessType("regular"))

	assert.True(t, auth.ValidMembershipType(auth.MembershipTypeCoordinator))
	assert.False(t, auth.ValidMembershipType("SUPERADMIN"))

	assert.True(t, auth.ValidTaskStatus(auth.TaskStatusHold))
	assert.False(t, auth.ValidTaskStatus("PAUSED"))

	assert.True(t, auth.ValidTaskRelationshipType(auth.TaskRelationshipAffidavit))
	assert.False(t, auth.ValidTaskRelationshipType("CONTACT"))
}
