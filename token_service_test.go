package auth_test

import (
	"testing"
	"time"

	auth "github.com/amaranthine/auth-api"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(t *testing.T, clock func() time.Time) *auth.TokenService {
	t.Helper()
	return auth.NewTokenService(auth.Config{
		TokenSigningKey:          []byte("test-signing-key"),
		TokenIssuer:              "auth-api-test",
		InvitationTTL:            7,
		AffiliationInvitationTTL: 7,
	}, auth.WithTokenClock(clock))
}

func TestInvitationTokenRoundTrip(t *testing.T) {
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ts := newTokenService(t, func() time.Time { return current })

	id := uuid.New()
	token, err := ts.MintInvitationToken(id)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.ValidateForInvitation(token, id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.InvitationID)
	assert.Equal(t, auth.TokenTypeTeamInvitation, claims.TokenType)
}

func TestInvitationTokenExpiry(t *testing.T) {
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ts := newTokenService(t, func() time.Time { return current })

	id := uuid.New()
	token, err := ts.MintInvitationToken(id)
	require.NoError(t, err)

	// Just inside the window.
	current = current.Add(7*24*time.Hour - time.Hour)
	_, err = ts.ValidateForInvitation(token, id)
	assert.NoError(t, err)

	// Past it.
	current = current.Add(2 * time.Hour)
	_, err = ts.ValidateForInvitation(token, id)
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrInvitationExpired, err)
}

func TestInvitationTokenMismatchedID(t *testing.T) {
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ts := newTokenService(t, func() time.Time { return current })

	token, err := ts.MintInvitationToken(uuid.New())
	require.NoError(t, err)

	_, err = ts.ValidateForInvitation(token, uuid.New())
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrInvalidToken, err)
}

func TestInvitationTokenGarbage(t *testing.T) {
	ts := newTokenService(t, time.Now)

	_, err := ts.Validate("not-a-token")
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrInvalidToken, err)
}

func TestInvitationTokenWrongKey(t *testing.T) {
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	ts := newTokenService(t, clock)

	other := auth.NewTokenService(auth.Config{
		TokenSigningKey: []byte("some-other-key"),
		TokenIssuer:     "auth-api-test",
	}, auth.WithTokenClock(clock))

	token, err := other.MintInvitationToken(uuid.New())
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrInvalidToken, err)
}

func TestAffiliationTokenEmbedsOrgAndBusiness(t *testing.T) {
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ts := newTokenService(t, func() time.Time { return current })

	toOrg := uuid.New()
	invitation := &auth.AffiliationInvitation{
		ID:        uuid.New(),
		FromOrgID: uuid.New(),
		ToOrgID:   &toOrg,
	}

	token, err := ts.MintAffiliationToken(invitation, "BC1234567")
	require.NoError(t, err)

	claims, err := ts.ValidateForInvitation(token, invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeAffiliationInvitation, claims.TokenType)
	assert.Equal(t, invitation.FromOrgID.String(), claims.FromOrgID)
	assert.Equal(t, toOrg.String(), claims.ToOrgID)
	assert.Equal(t, "BC1234567", claims.BusinessIdentifier)
}

func TestExpiredTokenCarriesValidationCategory(t *testing.T) {
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ts := newTokenService(t, func() time.Time { return current })

	token, err := ts.MintInvitationToken(uuid.New())
	require.NoError(t, err)

	current = current.Add(30 * 24 * time.Hour)
	_, err = ts.Validate(token)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
}
