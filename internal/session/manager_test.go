package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-ops/approval-service/internal/domain"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

func testIdentity() domain.Identity {
	return domain.Identity{
		FullName:   "Ops Admin",
		Username:   "opsadmin",
		Email:      "ops@corp.com",
		EmployeeID: "E1001",
		Role:       domain.RoleAdmin,
	}
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	manager := NewManager(NewMemoryStore(), 8*time.Hour)
	ctx := context.Background()

	token, err := manager.Issue(ctx, testIdentity())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := manager.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity(), identity)
}

func TestTokensAreOpaqueAndUnique(t *testing.T) {
	manager := NewManager(NewMemoryStore(), 8*time.Hour)
	ctx := context.Background()

	first, err := manager.Issue(ctx, testIdentity())
	require.NoError(t, err)
	second, err := manager.Issue(ctx, testIdentity())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Both stay valid: one identity may hold many concurrent sessions.
	_, err = manager.Validate(ctx, first)
	assert.NoError(t, err)
	_, err = manager.Validate(ctx, second)
	assert.NoError(t, err)
}

func TestValidateExpiredToken(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.Now = func() time.Time { return now }
	manager := NewManager(store, 8*time.Hour)
	ctx := context.Background()

	token, err := manager.Issue(ctx, testIdentity())
	require.NoError(t, err)

	now = now.Add(8*time.Hour + time.Minute)
	_, err = manager.Validate(ctx, token)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestValidateUnknownToken(t *testing.T) {
	manager := NewManager(NewMemoryStore(), 8*time.Hour)
	_, err := manager.Validate(context.Background(), "not-a-real-token")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	_, err = manager.Validate(context.Background(), "")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestDestroyRevokesAndIsIdempotent(t *testing.T) {
	manager := NewManager(NewMemoryStore(), 8*time.Hour)
	ctx := context.Background()

	token, err := manager.Issue(ctx, testIdentity())
	require.NoError(t, err)

	require.NoError(t, manager.Destroy(ctx, token))
	_, err = manager.Validate(ctx, token)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	// Destroying again, or destroying nothing, still succeeds.
	assert.NoError(t, manager.Destroy(ctx, token))
	assert.NoError(t, manager.Destroy(ctx, ""))
}
