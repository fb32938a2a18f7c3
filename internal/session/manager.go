package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/helpdesk-ops/approval-service/internal/domain"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

const keyPrefix = "sess:"

// Manager issues and validates opaque session tokens. Tokens are large
// random strings, never signed claims: every lookup goes back to the store,
// so destroying a token or letting it expire revokes it everywhere at once.
type Manager struct {
	store EphemeralStore
	ttl   time.Duration
}

// NewManager builds a manager over the given ephemeral store.
func NewManager(store EphemeralStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Manager{store: store, ttl: ttl}
}

// Issue mints a token bound to the identity with the absolute TTL. Many
// concurrent tokens may exist per identity.
func (m *Manager) Issue(ctx context.Context, identity domain.Identity) (string, error) {
	token := uuid.NewString() + "." + uuid.NewString()
	raw, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}
	if err := m.store.Put(ctx, keyPrefix+token, string(raw), m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Validate resolves a token to its identity. Missing and expired tokens are
// indistinguishable: both are unauthorized.
func (m *Manager) Validate(ctx context.Context, token string) (domain.Identity, error) {
	var identity domain.Identity
	if token == "" {
		return identity, apperrors.NewUnauthorized("missing session token")
	}
	raw, ok, err := m.store.Get(ctx, keyPrefix+token)
	if err != nil {
		return identity, err
	}
	if !ok {
		return identity, apperrors.NewUnauthorized("missing or expired session")
	}
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return identity, apperrors.NewUnauthorized("corrupt session record")
	}
	return identity, nil
}

// Destroy removes a token. Removing an absent token is a no-op, not an
// error, so logout is idempotent.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.Remove(ctx, keyPrefix+token)
}
