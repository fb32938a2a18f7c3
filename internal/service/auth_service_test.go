package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdesk-ops/approval-service/internal/auth"
	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/events"
	"github.com/helpdesk-ops/approval-service/internal/session"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

type fakeAdminRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.AdminAccount
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{accounts: make(map[string]*domain.AdminAccount)}
}

func (f *fakeAdminRepo) GetByUsername(_ context.Context, username string) (*domain.AdminAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[strings.ToLower(username)]
	if !ok {
		return nil, apperrors.NewNotFound("admin account", nil)
	}
	clone := *account
	return &clone, nil
}

func (f *fakeAdminRepo) GetByEmail(_ context.Context, email string) (*domain.AdminAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, account := range f.accounts {
		if strings.EqualFold(account.Email, email) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, apperrors.NewNotFound("admin account", nil)
}

func (f *fakeAdminRepo) Create(_ context.Context, account *domain.AdminAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(account.Username)
	if _, exists := f.accounts[key]; exists {
		return apperrors.NewConflict("username already registered", nil)
	}
	account.CreatedAt = time.Now()
	clone := *account
	f.accounts[key] = &clone
	return nil
}

func (f *fakeAdminRepo) UpdatePasswordDigest(_ context.Context, username, digest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[strings.ToLower(username)]
	if !ok {
		return apperrors.NewNotFound("admin account", nil)
	}
	account.PasswordDigest = digest
	return nil
}

func (f *fakeAdminRepo) List(_ context.Context) ([]domain.AdminAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AdminAccount, 0, len(f.accounts))
	for _, account := range f.accounts {
		out = append(out, *account)
	}
	return out, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func newTestAuthService(t *testing.T) (*AuthService, *fakeAdminRepo, *auth.Hasher, *recordingDispatcher) {
	t.Helper()
	admins := newFakeAdminRepo()
	hasher := auth.NewHasher("test-salt")
	sessions := session.NewManager(session.NewMemoryStore(), 8*time.Hour)
	dispatcher := &recordingDispatcher{}
	svc := NewAuthService(admins, sessions, hasher, dispatcher, zap.NewNop())
	return svc, admins, hasher, dispatcher
}

func seedAccount(t *testing.T, admins *fakeAdminRepo, hasher *auth.Hasher, username, email, password string) {
	t.Helper()
	require.NoError(t, admins.Create(context.Background(), &domain.AdminAccount{
		FullName:       "Seed User",
		Username:       username,
		PasswordDigest: hasher.Digest(password),
		Email:          email,
		EmployeeID:     "E1001",
		Role:           domain.RoleAdmin,
	}))
}

func TestLoginIssuesSession(t *testing.T) {
	svc, admins, hasher, _ := newTestAuthService(t)
	seedAccount(t, admins, hasher, "opsadmin", "ops@corp.com", "Secret#1")

	token, identity, err := svc.Login(context.Background(), "opsadmin", "Secret#1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "ops@corp.com", identity.Email)
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	svc, admins, hasher, _ := newTestAuthService(t)
	seedAccount(t, admins, hasher, "opsadmin", "ops@corp.com", "Secret#1")
	ctx := context.Background()

	_, _, wrongPassword := svc.Login(ctx, "opsadmin", "Wrong#1pw")
	_, _, unknownUser := svc.Login(ctx, "nobody", "Secret#1")

	// Same code and message either way: callers cannot probe usernames.
	assert.True(t, apperrors.IsCode(wrongPassword, "UNAUTHORIZED"))
	assert.True(t, apperrors.IsCode(unknownUser, "UNAUTHORIZED"))
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestChangePasswordEnforcesPolicyAndCurrent(t *testing.T) {
	svc, admins, hasher, _ := newTestAuthService(t)
	seedAccount(t, admins, hasher, "opsadmin", "ops@corp.com", "Secret#1")
	ctx := context.Background()
	caller := domain.Identity{Username: "opsadmin", Email: "ops@corp.com"}

	err := svc.ChangePassword(ctx, caller, "Wrong#1pw", "NewSecret#2")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	err = svc.ChangePassword(ctx, caller, "Secret#1", "weak")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	require.NoError(t, svc.ChangePassword(ctx, caller, "Secret#1", "NewSecret#2"))
	_, _, err = svc.Login(ctx, "opsadmin", "NewSecret#2")
	assert.NoError(t, err)
	_, _, err = svc.Login(ctx, "opsadmin", "Secret#1")
	assert.Error(t, err)
}

func TestChangePasswordRejectsOtherAccounts(t *testing.T) {
	svc, admins, hasher, _ := newTestAuthService(t)
	seedAccount(t, admins, hasher, "opsadmin", "ops@corp.com", "Secret#1")

	caller := domain.Identity{Username: "opsadmin", Email: "intruder@corp.com"}
	err := svc.ChangePassword(context.Background(), caller, "Secret#1", "NewSecret#2")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestResetPasswordIssuesWorkingTempCredential(t *testing.T) {
	svc, admins, hasher, dispatcher := newTestAuthService(t)
	seedAccount(t, admins, hasher, "opsadmin", "ops@corp.com", "Secret#1")
	ctx := context.Background()

	require.NoError(t, svc.ResetPassword(ctx, "ops@corp.com"))

	dispatcher.mu.Lock()
	require.Len(t, dispatcher.events, 1)
	payload, ok := dispatcher.events[0].Payload.(events.TempPasswordIssuedPayload)
	dispatcher.mu.Unlock()
	require.True(t, ok)

	assert.NoError(t, auth.ValidatePasswordPolicy(payload.TempPassword))
	_, _, err := svc.Login(ctx, "opsadmin", payload.TempPassword)
	assert.NoError(t, err)
	_, _, err = svc.Login(ctx, "opsadmin", "Secret#1")
	assert.Error(t, err)
}

func TestResetPasswordSilentOnUnknownEmail(t *testing.T) {
	svc, _, _, dispatcher := newTestAuthService(t)
	require.NoError(t, svc.ResetPassword(context.Background(), "ghost@corp.com"))

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	assert.Empty(t, dispatcher.events)
}

func TestCreateAdminAppliesPolicyAndUniqueness(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	input := NewAdminAccount{
		FullName:   "New Operator",
		Username:   "newop",
		Password:   "Secret#1",
		Email:      "newop@corp.com",
		EmployeeID: "E2002",
	}

	weak := input
	weak.Password = "weak"
	_, err := svc.CreateAdmin(ctx, weak)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	account, err := svc.CreateAdmin(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, account.Role)
	assert.NotEqual(t, "Secret#1", account.PasswordDigest)

	_, err = svc.CreateAdmin(ctx, input)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	_, _, err = svc.Login(ctx, "newop", "Secret#1")
	assert.NoError(t, err)
}

func TestListAdminsStripsDigests(t *testing.T) {
	svc, admins, hasher, _ := newTestAuthService(t)
	seedAccount(t, admins, hasher, "opsadmin", "ops@corp.com", "Secret#1")

	accounts, err := svc.ListAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Empty(t, accounts[0].PasswordDigest)
}
