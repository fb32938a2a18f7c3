package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-ops/approval-service/internal/api/dto"
	"github.com/helpdesk-ops/approval-service/internal/auth"
	"github.com/helpdesk-ops/approval-service/internal/service"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// AuthHandler serves credential and session endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler instantiates the handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login exchanges a credential for a session token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	token, identity, err := h.auth.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.LoginResponse{Token: token, Identity: identity})
}

// Logout revokes the presented session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.Context(), auth.TokenFrom(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Session echoes the identity bound to the presented token.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	identity, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(identity)
}

// ChangePassword rotates the caller's own credential.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	identity, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if err := h.auth.ChangePassword(c.Context(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ResetPassword issues a temporary password. The response never discloses
// whether the email is registered.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if err := h.auth.ResetPassword(c.Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "if the email is registered, a temporary password has been sent"})
}

// CreateAdmin provisions an operations credential. Reached only through
// the allowlist guard.
func (h *AuthHandler) CreateAdmin(c *fiber.Ctx) error {
	var req dto.CreateAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	account, err := h.auth.CreateAdmin(c.Context(), service.NewAdminAccount{
		FullName:   req.FullName,
		Username:   req.Username,
		Password:   req.Password,
		Email:      req.Email,
		Department: req.Department,
		EmployeeID: req.EmployeeID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromAdmin(account))
}

// ListAdmins lists operations credentials without digests.
func (h *AuthHandler) ListAdmins(c *fiber.Ctx) error {
	accounts, err := h.auth.ListAdmins(c.Context())
	if err != nil {
		return err
	}
	out := make([]dto.AdminResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, dto.FromAdmin(&accounts[i]))
	}
	return c.JSON(out)
}
