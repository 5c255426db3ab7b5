package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"

	"wbor-twilio/internal/apperr"
	"wbor-twilio/internal/audit"
	"wbor-twilio/pkg/logger"
)

// PasswordChecker compares a caller-supplied token with the shared secret.
// Every mismatch is audited with the caller IP.
type PasswordChecker struct {
	secret string
	audit  *audit.Service
	log    *slog.Logger
}

func NewPasswordChecker(secret string, a *audit.Service, l *slog.Logger) *PasswordChecker {
	return &PasswordChecker{secret: secret, audit: a, log: logger.OrDefault(l)}
}

// Check returns an apperr Unauthorized error when token does not match.
// Surrounding whitespace in token is ignored on every entry point.
// An empty configured secret matches nothing.
func (p *PasswordChecker) Check(ctx context.Context, token, ip, path string) error {
	token = strings.TrimSpace(token)
	if p.secret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(p.secret)) == 1 {
		return nil
	}

	p.log.WarnContext(ctx, "unauthorized access attempt", "ip", ip, "path", path)
	if p.audit != nil {
		if err := p.audit.LogUnauthorized(ctx, ip, path); err != nil {
			p.log.ErrorContext(ctx, "audit append failed", "err", err)
		}
	}
	return apperr.Unauthorized("auth.check", "unauthorized")
}
