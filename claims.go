package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token roles granted by the identity provider, distinct from membership
// roles on an org.
const (
	TokenRoleStaff  = "staff"
	TokenRoleSystem = "system"
)

// ProductCodeAll is the sentinel product claim marking a super-admin service
// account; it bypasses membership resolution entirely.
const ProductCodeAll = "ALL"

// UserClaims is the decoded identity-provider token for the current request.
// The gate consumes these; the IdP has already verified the signature.
type UserClaims struct {
	jwt.RegisteredClaims
	Username    string   `json:"preferred_username,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	AccountID   string   `json:"account_id,omitempty"`
	LoginSource string   `json:"login_source,omitempty"`
	ProductCode string   `json:"product_code,omitempty"`
	FirstName   string   `json:"given_name,omitempty"`
	LastName    string   `json:"family_name,omitempty"`
}

// HasRole reports whether the token carries the given IdP role.
func (c *UserClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff reports whether the caller is a staff user.
func (c *UserClaims) IsStaff() bool { return c.HasRole(TokenRoleStaff) }

// IsSystem reports whether the caller is a service account.
func (c *UserClaims) IsSystem() bool { return c.HasRole(TokenRoleSystem) }

// SubjectGUID parses the token subject as the Keycloak GUID.
func (c *UserClaims) SubjectGUID() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.Subject)
}

// AccountUUID parses the account-id claim when present.
func (c *UserClaims) AccountUUID() (uuid.UUID, bool) {
	if c.AccountID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(c.AccountID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
