package auth_test

import (
	"testing"

	auth "github.com/amaranthine/auth-api"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureInvitationTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    auth.InvitationStatus
		to      auth.InvitationStatus
		wantErr error
	}{
		{
			name: "pending to accepted",
			from: auth.InvitationStatusPending,
			to:   auth.InvitationStatusAccepted,
		},
		{
			name: "pending to expired",
			from: auth.InvitationStatusPending,
			to:   auth.InvitationStatusExpired,
		},
		{
			name: "pending to failed",
			from: auth.InvitationStatusPending,
			to:   auth.InvitationStatusFailed,
		},
		{
			name: "same state is a no-op",
			from: auth.InvitationStatusAccepted,
			to:   auth.InvitationStatusAccepted,
		},
		{
			name:    "accepted reports already actioned",
			from:    auth.InvitationStatusAccepted,
			to:      auth.InvitationStatusPending,
			wantErr: auth.ErrInvitationActioned,
		},
		{
			name:    "expired reports expired",
			from:    auth.InvitationStatusExpired,
			to:      auth.InvitationStatusAccepted,
			wantErr: auth.ErrInvitationExpired,
		},
		{
			name:    "failed is terminal",
			from:    auth.InvitationStatusFailed,
			to:      auth.InvitationStatusPending,
			wantErr: auth.ErrInvalidStatusTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.EnsureInvitationTransition(tt.from, tt.to)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assertSameTextCode(t, tt.wantErr, err)
		})
	}
}

func TestEnsureActionable(t *testing.T) {
	assert.NoError(t, auth.EnsureActionable(auth.InvitationStatusPending))

	err := auth.EnsureActionable(auth.InvitationStatusAccepted)
	assertSameTextCode(t, auth.ErrInvitationActioned, err)

	err = auth.EnsureActionable(auth.InvitationStatusExpired)
	assertSameTextCode(t, auth.ErrInvitationExpired, err)

	err = auth.EnsureActionable(auth.InvitationStatusFailed)
	assertSameTextCode(t, auth.ErrInvitationActioned, err)
}

func TestEnsureTaskTransition(t *testing.T) {
	tests := []struct {
		name string
		from auth.TaskStatus
		to   auth.TaskStatus
		ok   bool
	}{
		{name: "open to hold", from: auth.TaskStatusOpen, to: auth.TaskStatusHold, ok: true},
		{name: "open to completed", from: auth.TaskStatusOpen, to: auth.TaskStatusCompleted, ok: true},
		{name: "open to closed", from: auth.TaskStatusOpen, to: auth.TaskStatusClosed, ok: true},
		{name: "hold back to open", from: auth.TaskStatusHold, to: auth.TaskStatusOpen, ok: true},
		{name: "hold to completed", from: auth.TaskStatusHold, to: auth.TaskStatusCompleted, ok: true},
		{name: "hold to closed", from: auth.TaskStatusHold, to: auth.TaskStatusClosed, ok: true},
		{name: "completed is terminal", from: auth.TaskStatusCompleted, to: auth.TaskStatusOpen, ok: false},
		{name: "closed is terminal", from: auth.TaskStatusClosed, to: auth.TaskStatusHold, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.EnsureTaskTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assertSameTextCode(t, auth.ErrInvalidStatusTransition, err)
			}
		})
	}
}

// assertSameTextCode checks the structured error identity without requiring
// pointer equality, since helpers attach metadata to copies.
func assertSameTextCode(t *testing.T, want error, got error) {
	t.Helper()
	var wantRich, gotRich *goerrors.Error
	require.True(t, goerrors.As(want, &wantRich))
	require.True(t, goerrors.As(got, &gotRich), "expected structured error, got %v", got)
	assert.Equal(t, wantRich.TextCode, gotRich.TextCode)
}
