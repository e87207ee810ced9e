package auth_test

import (
	"testing"
	"time"

	auth "github.com/amaranthine/auth-api"
	"github.com/stretchr/testify/assert"
)

func TestAffiliationInvitationEffectiveStatus(t *testing.T) {
	ttl := 7 * 24 * time.Hour
	sent := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		inv  auth.AffiliationInvitation
		now  time.Time
		want auth.InvitationStatus
	}{
		{
			name: "pending email inside window",
			inv: auth.AffiliationInvitation{
				StatusCode: auth.InvitationStatusPending,
				TypeCode:   auth.AffiliationInvitationTypeEmail,
				SentDate:   &sent,
			},
			now:  sent.Add(ttl - time.Minute),
			want: auth.InvitationStatusPending,
		},
		{
			name: "pending email past window reads as expired",
			inv: auth.AffiliationInvitation{
				StatusCode: auth.InvitationStatusPending,
				TypeCode:   auth.AffiliationInvitationTypeEmail,
				SentDate:   &sent,
			},
			now:  sent.Add(ttl + time.Minute),
			want: auth.InvitationStatusExpired,
		},
		{
			name: "request type never auto-expires",
			inv: auth.AffiliationInvitation{
				StatusCode: auth.InvitationStatusPending,
				TypeCode:   auth.AffiliationInvitationTypeRequest,
				SentDate:   &sent,
			},
			now:  sent.Add(365 * 24 * time.Hour),
			want: auth.InvitationStatusPending,
		},
		{
			name: "accepted stays accepted regardless of age",
			inv: auth.AffiliationInvitation{
				StatusCode: auth.InvitationStatusAccepted,
				TypeCode:   auth.AffiliationInvitationTypeEmail,
				SentDate:   &sent,
			},
			now:  sent.Add(365 * 24 * time.Hour),
			want: auth.InvitationStatusAccepted,
		},
		{
			name: "missing sent date never expires",
			inv: auth.AffiliationInvitation{
				StatusCode: auth.InvitationStatusPending,
				TypeCode:   auth.AffiliationInvitationTypeEmail,
			},
			now:  sent.Add(365 * 24 * time.Hour),
			want: auth.InvitationStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.inv.EffectiveStatus(ttl, tt.now))
		})
	}
}

func TestOrgIsActive(t *testing.T) {
	assert.True(t, (&auth.Org{StatusCode: auth.OrgStatusActive}).IsActive())
	assert.False(t, (&auth.Org{StatusCode: auth.OrgStatusSuspended}).IsActive())
	assert.False(t, (&auth.Org{StatusCode: auth.OrgStatusInactive}).IsActive())
}

func TestTaskIsTerminal(t *testing.T) {
	assert.False(t, (&auth.Task{StatusCode: auth.TaskStatusOpen}).IsTerminal())
	assert.False(t, (&auth.Task{StatusCode: auth.TaskStatusHold}).IsTerminal())
	assert.True(t, (&auth.Task{StatusCode: auth.TaskStatusCompleted}).IsTerminal())
	assert.True(t, (&auth.Task{StatusCode: auth.TaskStatusClosed}).IsTerminal())
}
