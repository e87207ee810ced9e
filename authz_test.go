package auth_test

import (
	"context"
	"testing"

	auth "github.com/amaranthine/auth-api"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staffClaims() *auth.UserClaims {
	return &auth.UserClaims{Roles: []string{auth.TokenRoleStaff}}
}

func systemClaims(productCode string) *auth.UserClaims {
	return &auth.UserClaims{
		Roles:       []string{auth.TokenRoleSystem},
		ProductCode: productCode,
	}
}

func TestAuthGateNilClaimsDenied(t *testing.T) {
	gate := auth.NewAuthGate(nil)
	err := gate.Check(context.Background(), nil, auth.AuthCheck{})
	assertSameTextCode(t, auth.ErrPermissionDenied, err)
}

func TestAuthGateStaffBypassesMembershipLookup(t *testing.T) {
	// A nil repository manager proves the staff path never touches storage.
	gate := auth.NewAuthGate(nil)

	err := gate.Check(context.Background(), staffClaims(), auth.AuthCheck{
		OrgID:      uuid.New(),
		EqualsRole: auth.MembershipTypeOwner,
	})
	assert.NoError(t, err)
}

func TestAuthGateSystemAccountRequiresProductClaim(t *testing.T) {
	gate := auth.NewAuthGate(nil)

	err := gate.Check(context.Background(), systemClaims(""), auth.AuthCheck{OrgID: uuid.New()})
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrPermissionDenied, err)
}

func TestAuthGateSystemAccountAllSentinel(t *testing.T) {
	gate := auth.NewAuthGate(nil)

	err := gate.Check(context.Background(), systemClaims(auth.ProductCodeAll), auth.AuthCheck{
		OrgID: uuid.New(),
	})
	assert.NoError(t, err)
}
