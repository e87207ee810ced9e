package auth_test

import (
	"testing"

	auth "github.com/amaranthine/auth-api"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserClaimsRoles(t *testing.T) {
	claims := &auth.UserClaims{Roles: []string{"edit", auth.TokenRoleStaff}}

	assert.True(t, claims.HasRole("edit"))
	assert.True(t, claims.IsStaff())
	assert.False(t, claims.IsSystem())

	empty := &auth.UserClaims{}
	assert.False(t, empty.IsStaff())
	assert.False(t, empty.HasRole("anything"))
}

func TestUserClaimsSubjectGUID(t *testing.T) {
	guid := uuid.New()
	claims := &auth.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: guid.String()},
	}

	parsed, err := claims.SubjectGUID()
	require.NoError(t, err)
	assert.Equal(t, guid, parsed)

	bad := &auth.UserClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-guid"}}
	_, err = bad.SubjectGUID()
	assert.Error(t, err)
}

func TestUserClaimsAccountUUID(t *testing.T) {
	id := uuid.New()

	withAccount := &auth.UserClaims{AccountID: id.String()}
	parsed, ok := withAccount.AccountUUID()
	assert.True(t, ok)
	assert.Equal(t, id, parsed)

	_, ok = (&auth.UserClaims{}).AccountUUID()
	assert.False(t, ok)

	_, ok = (&auth.UserClaims{AccountID: "garbage"}).AccountUUID()
	assert.False(t, ok)
}
