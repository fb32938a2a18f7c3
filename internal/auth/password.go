package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"unicode"

	"golang.org/x/crypto/pbkdf2"

	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

const digestIterations = 4096

// Hasher computes credential digests keyed by the process-wide secret salt.
// The digest is deterministic for a given salt, so login recomputes it from
// the supplied plaintext and compares against the stored value. The salt is
// initialized once at startup and must never be silently rotated: doing so
// would invalidate every stored credential.
type Hasher struct {
	salt []byte
}

// NewHasher builds a hasher around the configured salt.
func NewHasher(salt string) *Hasher {
	return &Hasher{salt: []byte(salt)}
}

// Digest returns the salted one-way digest of the plaintext.
func (h *Hasher) Digest(plain string) string {
	key := pbkdf2.Key([]byte(plain), h.salt, digestIterations, 32, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}

// Verify reports whether plain digests to stored.
func (h *Hasher) Verify(stored, plain string) bool {
	computed := h.Digest(plain)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(computed)) == 1
}

// ValidatePasswordPolicy enforces the minimum complexity policy: at least
// 8 characters with a letter, a digit, and a symbol. Applied to account
// creation, password change, and reset alike.
func ValidatePasswordPolicy(password string) error {
	var hasLetter, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if len(password) < 8 || !hasLetter || !hasDigit || !hasSymbol {
		return apperrors.NewValidationError(
			"password must be at least 8 characters and include letters, numbers and symbols", nil)
	}
	return nil
}

// EmployeeCodeHash returns the SHA-256 hex digest of an employee's unique
// code, the format the employee directory stores.
func EmployeeCodeHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
