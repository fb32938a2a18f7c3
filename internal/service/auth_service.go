package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helpdesk-ops/approval-service/internal/auth"
	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/events"
	"github.com/helpdesk-ops/approval-service/internal/repository"
	"github.com/helpdesk-ops/approval-service/internal/session"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// AuthService manages operations credentials and session lifecycle.
type AuthService struct {
	admins     repository.AdminRepository
	sessions   *session.Manager
	hasher     *auth.Hasher
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuthService instantiates the service.
func NewAuthService(
	admins repository.AdminRepository,
	sessions *session.Manager,
	hasher *auth.Hasher,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		admins:     admins,
		sessions:   sessions,
		hasher:     hasher,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Login verifies a credential and issues a fresh session token. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, domain.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", domain.Identity{}, apperrors.NewUnauthorized("invalid username or password")
	}
	account, err := s.admins.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", domain.Identity{}, apperrors.NewUnauthorized("invalid username or password")
		}
		return "", domain.Identity{}, err
	}
	if !s.hasher.Verify(account.PasswordDigest, password) {
		return "", domain.Identity{}, apperrors.NewUnauthorized("invalid username or password")
	}

	identity := account.Identity()
	token, err := s.sessions.Issue(ctx, identity)
	if err != nil {
		return "", domain.Identity{}, err
	}
	s.logger.Info("session issued", zap.String("username", username))
	return token, identity, nil
}

// Logout revokes the session. Revoking an already-dead token succeeds.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// ChangePassword rotates the caller's own credential. The current password
// must verify and the new one must satisfy the complexity policy; a reset
// temp password is no exception.
func (s *AuthService) ChangePassword(ctx context.Context, caller domain.Identity, current, next string) error {
	account, err := s.admins.GetByUsername(ctx, caller.Username)
	if err != nil {
		return err
	}
	if err := session.RequireSelf(caller.Email, account.Email); err != nil {
		return err
	}
	if !s.hasher.Verify(account.PasswordDigest, current) {
		return apperrors.NewUnauthorized("current password does not match")
	}
	if err := auth.ValidatePasswordPolicy(next); err != nil {
		return err
	}
	return s.admins.UpdatePasswordDigest(ctx, account.Username, s.hasher.Digest(next))
}

// ResetPassword issues a policy-compliant temporary password for the
// account registered under the given email, and sends it via the
// notification channel. The response does not reveal whether the email is
// registered.
func (s *AuthService) ResetPassword(ctx context.Context, email string) error {
	account, err := s.admins.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		return err
	}
	if err := s.admins.UpdatePasswordDigest(ctx, account.Username, s.hasher.Digest(tempPassword)); err != nil {
		return err
	}

	s.publish(ctx, events.Event{
		Type:       events.EventTempPasswordIssued,
		Recipients: []string{account.Email},
		Payload: events.TempPasswordIssuedPayload{
			Username:     account.Username,
			TempPassword: tempPassword,
		},
	})
	return nil
}

// NewAdminAccount is the payload for provisioning an operations credential.
type NewAdminAccount struct {
	FullName   string
	Username   string
	Password   string
	Email      string
	Department string
	EmployeeID string
}

// CreateAdmin provisions a new operations credential. The caller must have
// passed the allowlist guard already; the password policy applies at
// creation just as it does at change time.
func (s *AuthService) CreateAdmin(ctx context.Context, input NewAdminAccount) (*domain.AdminAccount, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Username == "" || input.Email == "" {
		return nil, apperrors.NewValidationError("username and email are required", nil)
	}
	if err := auth.ValidatePasswordPolicy(input.Password); err != nil {
		return nil, err
	}
	if existing, err := s.admins.GetByUsername(ctx, input.Username); err == nil && existing != nil {
		return nil, apperrors.NewConflict("username already registered", map[string]any{"username": input.Username})
	} else if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}

	account := &domain.AdminAccount{
		FullName:       input.FullName,
		Username:       input.Username,
		PasswordDigest: s.hasher.Digest(input.Password),
		Email:          input.Email,
		Department:     input.Department,
		EmployeeID:     strings.TrimSpace(input.EmployeeID),
		Role:           domain.RoleAdmin,
	}
	if err := s.admins.Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("admin account created", zap.String("username", account.Username))
	return account, nil
}

// ListAdmins returns all operations credentials without digests.
func (s *AuthService) ListAdmins(ctx context.Context) ([]domain.AdminAccount, error) {
	accounts, err := s.admins.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i].PasswordDigest = ""
	}
	return accounts, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event dispatch failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// generateTempPassword builds a random password that satisfies the
// complexity policy regardless of what the random bytes decode to.
func generateTempPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "Tmp!" + base64.RawURLEncoding.EncodeToString(buf) + "1", nil
}
