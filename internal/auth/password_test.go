package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

func TestDigestIsDeterministicPerSalt(t *testing.T) {
	hasher := NewHasher("salt-one")
	assert.Equal(t, hasher.Digest("Secret#1"), hasher.Digest("Secret#1"))
	assert.NotEqual(t, hasher.Digest("Secret#1"), hasher.Digest("Secret#2"))

	// A different salt produces a disjoint digest space, which is why the
	// salt must stay stable for the life of the credential store.
	other := NewHasher("salt-two")
	assert.NotEqual(t, hasher.Digest("Secret#1"), other.Digest("Secret#1"))
}

func TestVerify(t *testing.T) {
	hasher := NewHasher("salt-one")
	stored := hasher.Digest("Secret#1")

	assert.True(t, hasher.Verify(stored, "Secret#1"))
	assert.False(t, hasher.Verify(stored, "Secret#2"))
	assert.False(t, hasher.Verify(stored, ""))
	assert.False(t, hasher.Verify("", "Secret#1"))
}

func TestValidatePasswordPolicy(t *testing.T) {
	valid := []string{
		"Secret#1",
		"a1!aaaaa",
		"p@ssw0rd with spaces",
	}
	for _, password := range valid {
		assert.NoError(t, ValidatePasswordPolicy(password), password)
	}

	invalid := []string{
		"",
		"short1!",        // 7 chars
		"NoDigits!",      // missing digit
		"nodigit1",       // missing symbol
		"12345678!",      // missing letter
		"abcdefgh",       // letters only
	}
	for _, password := range invalid {
		err := ValidatePasswordPolicy(password)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), password)
	}
}

func TestEmployeeCodeHash(t *testing.T) {
	// SHA-256 of "1234" in lowercase hex.
	assert.Equal(t,
		"03ac674216f3e15c761ee1a5e255f067953623c8b388b4459e13f978d7c846f4",
		EmployeeCodeHash("1234"),
	)
	assert.NotEqual(t, EmployeeCodeHash("1234"), EmployeeCodeHash("12345"))
}
