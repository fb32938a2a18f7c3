package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

type fakeAllowlist struct {
	mu      sync.Mutex
	members map[string]bool
}

func (f *fakeAllowlist) Contains(_ context.Context, employeeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[employeeID], nil
}

func (f *fakeAllowlist) remove(employeeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, employeeID)
}

func TestRequireITChecksMembershipLive(t *testing.T) {
	manager := NewManager(NewMemoryStore(), 8*time.Hour)
	allowlist := &fakeAllowlist{members: map[string]bool{"E1001": true}}
	guards := NewGuards(manager, allowlist)
	ctx := context.Background()

	token, err := manager.Issue(ctx, testIdentity())
	require.NoError(t, err)

	identity, err := guards.RequireIT(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "E1001", identity.EmployeeID)

	// Revocation applies to live sessions immediately: membership is read
	// on every call, never baked into the token.
	allowlist.remove("E1001")
	_, err = guards.RequireIT(ctx, token)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	// The session itself is still valid for non-elevated calls.
	_, err = guards.RequireSession(ctx, token)
	assert.NoError(t, err)
}

func TestRequireITRejectsMissingEmployeeID(t *testing.T) {
	manager := NewManager(NewMemoryStore(), 8*time.Hour)
	guards := NewGuards(manager, &fakeAllowlist{members: map[string]bool{}})
	ctx := context.Background()

	identity := testIdentity()
	identity.EmployeeID = ""
	token, err := manager.Issue(ctx, identity)
	require.NoError(t, err)

	_, err = guards.RequireIT(ctx, token)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestRequireITRejectsDeadSession(t *testing.T) {
	manager := NewManager(NewMemoryStore(), 8*time.Hour)
	guards := NewGuards(manager, &fakeAllowlist{members: map[string]bool{"E1001": true}})

	_, err := guards.RequireIT(context.Background(), "stale-token")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestRequireSelf(t *testing.T) {
	assert.NoError(t, RequireSelf("user@corp.com", "user@corp.com"))
	assert.NoError(t, RequireSelf("  User@Corp.COM ", "user@corp.com"))

	err := RequireSelf("user@corp.com", "other@corp.com")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	// An empty caller never matches, not even another empty string.
	err = RequireSelf("", "")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestGuardsWithConcurrentValidation(t *testing.T) {
	manager := NewManager(NewMemoryStore(), 8*time.Hour)
	allowlist := &fakeAllowlist{members: map[string]bool{"E1001": true}}
	guards := NewGuards(manager, allowlist)
	ctx := context.Background()

	token, err := manager.Issue(ctx, testIdentity())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := guards.RequireIT(ctx, token); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
}
