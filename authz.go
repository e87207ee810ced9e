package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AuthCheck describes one authorization decision. Exactly one of OrgID or
// BusinessIdentifier names the target; one of the role policies applies.
type AuthCheck struct {
	OrgID              uuid.UUID
	BusinessIdentifier string

	// OneOfRoles passes when the caller's membership role is in the set.
	OneOfRoles []MembershipType
	// DisabledRoles passes when the caller's membership role is NOT in the set.
	DisabledRoles []MembershipType
	// EqualsRole passes on an exact role match.
	EqualsRole MembershipType
}

// AuthGate performs the per-request authorization check combining token
// claims, membership lookup and the permission resolver.
type AuthGate struct {
	repos  RepositoryManager
	logger Logger
}

// AuthGateOption customizes gate construction.
type AuthGateOption func(*AuthGate)

// WithAuthGateLogger overrides the logger.
func WithAuthGateLogger(logger Logger) AuthGateOption {
	return func(g *AuthGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewAuthGate wires the authorization gate.
func NewAuthGate(repos RepositoryManager, opts ...AuthGateOption) *AuthGate {
	g := &AuthGate{
		repos:  repos,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Check authorizes the claims against the target. Any unresolved role,
// missing membership or failed policy is ErrPermissionDenied, a hard stop.
func (g *AuthGate) Check(ctx context.Context, claims *UserClaims, check AuthCheck) error {
	if claims == nil {
		return ErrPermissionDenied
	}

	// Staff tokens authorize unconditionally against the staff equivalent.
	if claims.IsStaff() {
		return nil
	}

	if claims.IsSystem() {
		return g.checkSystem(ctx, claims, check)
	}

	role, err := g.resolveRole(ctx, claims, check)
	if err != nil {
		return err
	}
	return applyRolePolicy(role, check)
}

// checkSystem authorizes service accounts. A product_code claim is required;
// the ALL sentinel is a super-admin bypass.
func (g *AuthGate) checkSystem(ctx context.Context, claims *UserClaims, check AuthCheck) error {
	if claims.ProductCode == "" {
		return withMeta(ErrPermissionDenied, map[string]any{
			"reason": "service account missing product claim",
		})
	}
	if claims.ProductCode == ProductCodeAll {
		return nil
	}

	orgID, err := g.resolveTargetOrg(ctx, claims, check)
	if err != nil || orgID == uuid.Nil {
		return ErrPermissionDenied
	}
	return nil
}

// resolveRole finds the caller's active membership role on the target org,
// via the account-id claim when it matches, otherwise through the user row.
func (g *AuthGate) resolveRole(ctx context.Context, claims *UserClaims, check AuthCheck) (MembershipType, error) {
	orgID, err := g.resolveTargetOrg(ctx, claims, check)
	if err != nil || orgID == uuid.Nil {
		return "", ErrPermissionDenied
	}

	guid, err := claims.SubjectGUID()
	if err != nil {
		return "", ErrPermissionDenied
	}

	user, err := g.repos.Users().FindByGUID(ctx, guid)
	if err != nil {
		return "", ErrPermissionDenied
	}

	role, err := g.repos.Memberships().FindActiveRole(ctx, orgID, user.ID)
	if err != nil {
		return "", ErrPermissionDenied
	}
	return role, nil
}

func (g *AuthGate) resolveTargetOrg(ctx context.Context, claims *UserClaims, check AuthCheck) (uuid.UUID, error) {
	if check.OrgID != uuid.Nil {
		return check.OrgID, nil
	}

	if check.BusinessIdentifier != "" {
		entity, err := g.repos.Entities().FindByBusinessIdentifier(ctx, check.BusinessIdentifier)
		if err != nil {
			return uuid.Nil, err
		}
		// The account-id claim narrows which affiliated org the caller
		// is acting under.
		if accountID, ok := claims.AccountUUID(); ok {
			aff, err := g.repos.Affiliations().FindByOrgAndEntity(ctx, accountID, entity.ID)
			if err == nil {
				return aff.OrgID, nil
			}
			if !repository.IsRecordNotFound(err) {
				return uuid.Nil, err
			}
		}
		return uuid.Nil, ErrPermissionDenied
	}

	if accountID, ok := claims.AccountUUID(); ok {
		return accountID, nil
	}
	return uuid.Nil, ErrPermissionDenied
}

func applyRolePolicy(role MembershipType, check AuthCheck) error {
	if role == "" {
		return ErrPermissionDenied
	}

	if len(check.OneOfRoles) > 0 {
		for _, allowed := range check.OneOfRoles {
			if role == allowed {
				return nil
			}
		}
		return ErrPermissionDenied
	}

	if len(check.DisabledRoles) > 0 {
		for _, disabled := range check.DisabledRoles {
			if role == disabled {
				return ErrPermissionDenied
			}
		}
		return nil
	}

	if check.EqualsRole != "" {
		if role == check.EqualsRole {
			return nil
		}
		return ErrPermissionDenied
	}

	// No policy given: authenticated membership is enough.
	return nil
}
