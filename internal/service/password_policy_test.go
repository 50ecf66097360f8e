package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordPolicyViolations(t *testing.T) {
	policy := DefaultPasswordPolicy()

	assert.Empty(t, policy.Violations(strongPassword))
	assert.Equal(t, []string{
		"Password must be at least 8 characters long",
		"Password must contain at least one uppercase letter",
		"Password must contain at least one number",
		"Password must contain at least one special character",
	}, policy.Violations("abc"))
	assert.Equal(t, []string{"Password must contain at least one lowercase letter"}, policy.Violations("ABCDEF1!"))
}

func TestPasswordPolicyCountsRunes(t *testing.T) {
	policy := PasswordPolicy{MinLength: 4}
	assert.Empty(t, policy.Violations("ñandú"))
	assert.NotEmpty(t, policy.Violations("ñañ"))
}

func TestPasswordPolicyCapsBytes(t *testing.T) {
	policy := DefaultPasswordPolicy()
	long := "Aa1$" + strings.Repeat("ñ", 40)
	assert.Equal(t, []string{"Password must be at most 72 bytes"}, policy.Violations(long))
	assert.Empty(t, policy.Violations("Aa1$"+strings.Repeat("ñ", 34)))
}

func TestPasswordPolicyStrengthScore(t *testing.T) {
	policy := PasswordPolicy{MinStrengthScore: 3}
	assert.Contains(t, policy.Violations("password"), "Password is too easy to guess")
	assert.Contains(t, policy.Violations("anareyes", "anareyes"), "Password is too easy to guess")
	assert.Empty(t, policy.Violations("correct horse battery staple kettle"))
}

func TestPasswordPolicyValidate(t *testing.T) {
	err := DefaultPasswordPolicy().Validate("abc")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Password does not meet requirements", validationErr.Message)
	assert.Len(t, validationErr.Details, 4)

	assert.NoError(t, DefaultPasswordPolicy().Validate(strongPassword))
}

func TestBcryptPasswordHasher(t *testing.T) {
	hasher := BcryptPasswordHasher{Cost: 4}
	hash, err := hasher.Hash(strongPassword)
	require.NoError(t, err)
	assert.True(t, hasher.Verify(hash, strongPassword))
	assert.False(t, hasher.Verify(hash, "other"))
	assert.False(t, hasher.NeedsRehash(hash))
	assert.True(t, BcryptPasswordHasher{Cost: 6}.NeedsRehash(hash))
	assert.True(t, hasher.NeedsRehash("not-a-hash"))
}
