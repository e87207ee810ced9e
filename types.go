package auth

import "fmt"

// Logger is the minimal logging surface services depend on. Callers inject
// their own implementation; defLogger is the fallback.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the token and TTL settings services need. It is constructed
// explicitly by the caller at startup; there is no package-level state.
type Config struct {
	// TokenSigningKey signs invitation tokens.
	TokenSigningKey []byte
	// TokenIssuer is stamped into minted tokens and verified on parse.
	TokenIssuer string
	// InvitationTTL bounds team-invitation token age. Zero means the
	// 7 day default.
	InvitationTTL int
	// AffiliationInvitationTTL bounds affiliation-invitation token age.
	// Zero means the 7 day default.
	AffiliationInvitationTTL int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
