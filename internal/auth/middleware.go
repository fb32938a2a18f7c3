package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/session"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

const (
	identityLocal = "identity"
	tokenLocal    = "session_token"
)

// SessionRequired validates the bearer session token and stores the bound
// identity on the request context.
func SessionRequired(guards *session.Guards) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		identity, err := guards.RequireSession(c.Context(), token)
		if err != nil {
			return err
		}
		c.Locals(identityLocal, identity)
		c.Locals(tokenLocal, token)
		return c.Next()
	}
}

// ITRequired validates the session and requires current allowlist
// membership. The allowlist is consulted on every request, so removal takes
// effect immediately for already-issued sessions.
func ITRequired(guards *session.Guards) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		identity, err := guards.RequireIT(c.Context(), token)
		if err != nil {
			return err
		}
		c.Locals(identityLocal, identity)
		c.Locals(tokenLocal, token)
		return c.Next()
	}
}

// IdentityFrom retrieves the identity a guard middleware stored.
func IdentityFrom(c *fiber.Ctx) (domain.Identity, error) {
	identity, ok := c.Locals(identityLocal).(domain.Identity)
	if !ok {
		return domain.Identity{}, apperrors.NewUnauthorized("no session on request")
	}
	return identity, nil
}

// TokenFrom retrieves the raw session token. Used by logout to revoke it.
func TokenFrom(c *fiber.Ctx) string {
	token, _ := c.Locals(tokenLocal).(string)
	return token
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
