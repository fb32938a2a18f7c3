package session

import (
	"context"
	"strings"

	"github.com/helpdesk-ops/approval-service/internal/domain"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// AllowlistChecker answers whether an employee id currently holds elevated
// privileges. Satisfied by repository.AllowlistRepository.
type AllowlistChecker interface {
	Contains(ctx context.Context, employeeID string) (bool, error)
}

// Guards enforces identity-match and allowlist-membership rules over
// workflow operations.
type Guards struct {
	sessions  *Manager
	allowlist AllowlistChecker
}

// NewGuards builds the guard set.
func NewGuards(sessions *Manager, allowlist AllowlistChecker) *Guards {
	return &Guards{sessions: sessions, allowlist: allowlist}
}

// RequireSession validates the token and returns the bound identity.
func (g *Guards) RequireSession(ctx context.Context, token string) (domain.Identity, error) {
	return g.sessions.Validate(ctx, token)
}

// RequireIT validates the token and additionally requires the identity's
// employee id to be a current allowlist member. Membership is read from the
// allowlist on every call, never from the token, so revoking an employee id
// locks out all of that identity's live sessions immediately.
func (g *Guards) RequireIT(ctx context.Context, token string) (domain.Identity, error) {
	identity, err := g.sessions.Validate(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}
	if strings.TrimSpace(identity.EmployeeID) == "" {
		return domain.Identity{}, apperrors.NewForbidden("identity missing employee id")
	}
	allowed, err := g.allowlist.Contains(ctx, identity.EmployeeID)
	if err != nil {
		return domain.Identity{}, err
	}
	if !allowed {
		return domain.Identity{}, apperrors.NewForbidden("employee id not allowlisted")
	}
	return identity, nil
}

// RequireSelf enforces that a caller only touches their own records.
// Comparison is trimmed and case-insensitive.
func RequireSelf(callerEmail, targetEmail string) error {
	caller := strings.ToLower(strings.TrimSpace(callerEmail))
	target := strings.ToLower(strings.TrimSpace(targetEmail))
	if caller == "" || caller != target {
		return apperrors.NewForbidden("you may only access your own records")
	}
	return nil
}
