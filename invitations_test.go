package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveMembershipStatus(t *testing.T) {
	tests := []struct {
		name string
		org  *Org
		role MembershipType
		user *User
		want MembershipStatus
	}{
		{
			name: "govm org activates immediately",
			org:  &Org{AccessType: AccessTypeGovM},
			role: MembershipTypeUser,
			user: &User{LoginSource: LoginSourceStaff},
			want: MembershipStatusActive,
		},
		{
			name: "govm org activates even for admins",
			org:  &Org{AccessType: AccessTypeGovM},
			role: MembershipTypeAdmin,
			user: &User{LoginSource: LoginSourceStaff},
			want: MembershipStatusActive,
		},
		{
			name: "unverified bceid admin goes to staff review",
			org:  &Org{AccessType: AccessTypeRegularBCeID},
			role: MembershipTypeAdmin,
			user: &User{LoginSource: LoginSourceBCeID, Verified: false},
			want: MembershipStatusPendingStaffReview,
		},
		{
			name: "verified bceid admin waits for approval",
			org:  &Org{AccessType: AccessTypeRegularBCeID},
			role: MembershipTypeAdmin,
			user: &User{LoginSource: LoginSourceBCeID, Verified: true},
			want: MembershipStatusPendingApproval,
		},
		{
			name: "bceid non-admin waits for approval",
			org:  &Org{AccessType: AccessTypeRegularBCeID},
			role: MembershipTypeUser,
			user: &User{LoginSource: LoginSourceBCeID, Verified: false},
			want: MembershipStatusPendingApproval,
		},
		{
			name: "regular user waits for approval",
			org:  &Org{AccessType: AccessTypeRegular},
			role: MembershipTypeUser,
			user: &User{LoginSource: LoginSourceBCSC},
			want: MembershipStatusPendingApproval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveMembershipStatus(tt.org, tt.role, tt.user))
		})
	}
}

func TestInvitationExpired(t *testing.T) {
	sent := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ttl := 7 * 24 * time.Hour

	assert.False(t, invitationExpired(&sent, ttl, sent.Add(ttl-time.Second)))
	assert.True(t, invitationExpired(&sent, ttl, sent.Add(ttl+time.Second)))
	assert.False(t, invitationExpired(nil, ttl, sent.Add(365*24*time.Hour)))
}
