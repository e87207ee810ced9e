package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Token types embedded in invitation tokens.
const (
	TokenTypeTeamInvitation        = "TEAM"
	TokenTypeAffiliationInvitation = "AFFILIATION"
)

const defaultInvitationTTLDays = 7

// InvitationTokenClaims is the payload signed into an invitation token. The
// affiliation fields are only set for affiliation tokens.
type InvitationTokenClaims struct {
	jwt.RegisteredClaims
	InvitationID       string `json:"inv,omitempty"`
	TokenType          string `json:"typ,omitempty"`
	FromOrgID          string `json:"from_org,omitempty"`
	ToOrgID            string `json:"to_org,omitempty"`
	BusinessIdentifier string `json:"business,omitempty"`
}

// TokenService mints and validates the signed, time-limited tokens embedded
// in invitation emails.
type TokenService struct {
	signingKey     []byte
	issuer         string
	invitationTTL  time.Duration
	affiliationTTL time.Duration
	now            func() time.Time
	logger         Logger
}

// TokenServiceOption customizes TokenService construction.
type TokenServiceOption func(*TokenService)

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger overrides the logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a TokenService from config. TTLs are expressed in
// days; zero falls back to the 7 day default.
func NewTokenService(cfg Config, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		signingKey:     cfg.TokenSigningKey,
		issuer:         cfg.TokenIssuer,
		invitationTTL:  ttlOrDefault(cfg.InvitationTTL),
		affiliationTTL: ttlOrDefault(cfg.AffiliationInvitationTTL),
		now:            time.Now,
		logger:         defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

func ttlOrDefault(days int) time.Duration {
	if days <= 0 {
		days = defaultInvitationTTLDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// InvitationTTL exposes the configured team-invitation token lifetime.
func (ts *TokenService) InvitationTTL() time.Duration { return ts.invitationTTL }

// AffiliationTTL exposes the configured affiliation-invitation token lifetime.
func (ts *TokenService) AffiliationTTL() time.Duration { return ts.affiliationTTL }

// MintInvitationToken signs a token for a team invitation.
func (ts *TokenService) MintInvitationToken(invitationID uuid.UUID) (string, error) {
	return ts.sign(&InvitationTokenClaims{
		InvitationID: invitationID.String(),
		TokenType:    TokenTypeTeamInvitation,
	}, ts.invitationTTL)
}

// MintAffiliationToken signs a token for an affiliation invitation,
// embedding both org ids and the business identifier.
func (ts *TokenService) MintAffiliationToken(ai *AffiliationInvitation, businessIdentifier string) (string, error) {
	claims := &InvitationTokenClaims{
		InvitationID:       ai.ID.String(),
		TokenType:          TokenTypeAffiliationInvitation,
		FromOrgID:          ai.FromOrgID.String(),
		BusinessIdentifier: businessIdentifier,
	}
	if ai.ToOrgID != nil {
		claims.ToOrgID = ai.ToOrgID.String()
	}
	return ts.sign(claims, ts.affiliationTTL)
}

func (ts *TokenService) sign(claims *InvitationTokenClaims, ttl time.Duration) (string, error) {
	now := ts.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    ts.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign invitation token")
	}
	return signed, nil
}

// Validate verifies signature and max-age and returns the embedded claims.
// An expired token yields ErrInvitationExpired; anything else that fails
// verification yields ErrInvalidToken.
func (ts *TokenService) Validate(tokenString string) (*InvitationTokenClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &InvitationTokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrInvitationExpired
		}
		return nil, goerrors.Wrap(err, ErrInvalidToken.Category, ErrInvalidToken.Message).
			WithTextCode(ErrInvalidToken.TextCode)
	}

	claims, ok := token.Claims.(*InvitationTokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token service could not decode invitation claims")
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateForInvitation validates the token and additionally checks the
// embedded invitation id against the one the caller is acting on. A mismatch
// is an invalid token, not an expired one.
func (ts *TokenService) ValidateForInvitation(tokenString string, invitationID uuid.UUID) (*InvitationTokenClaims, error) {
	claims, err := ts.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.InvitationID != invitationID.String() {
		return nil, withMeta(ErrInvalidToken, map[string]any{
			"invitation_id": invitationID.String(),
		})
	}
	return claims, nil
}
