package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateNumericCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.NotEqual(t, byte('0'), code[0])
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
	}

	_, err := GenerateNumericCode(2)
	assert.Error(t, err)
}

func TestHashTokenIsStableHex(t *testing.T) {
	a := HashToken("123456")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashToken("123456"))
	assert.NotEqual(t, a, HashToken("123457"))
}

func TestNormalizeRoles(t *testing.T) {
	got := NormalizeRoles([]string{" Admin", "Client", "", "Admin ", "Client"})
	assert.Equal(t, []string{"Admin", "Client"}, got)
	assert.Empty(t, NormalizeRoles(nil))
}

func TestContainsEmoji(t *testing.T) {
	assert.True(t, ContainsEmoji("hello 😀"))
	assert.True(t, ContainsEmoji("rocket 🚀"))
	assert.True(t, ContainsEmoji("sun ☀"))
	assert.False(t, ContainsEmoji("José Müller"))
	assert.False(t, ContainsEmoji("plain-text_123"))
}

type labelledInput struct {
	Username string `label:"Username" validate:"required,noemoji"`
	Email    string `json:"email" validate:"required,email"`
	Country  string `label:"Country" validate:"omitempty,max=5"`
}

func TestValidatorMessagesUseLabels(t *testing.T) {
	validate := NewValidator()

	err := validate.Struct(labelledInput{Username: "😀", Email: "nope", Country: "Philippines"})
	require.Error(t, err)
	assert.Equal(t, []string{
		"Username should not contain emojis",
		"Invalid email format",
		"Country must be at most 5 characters",
	}, ValidationMessages(err))

	err = validate.Struct(labelledInput{})
	require.Error(t, err)
	assert.Equal(t, []string{"Username is required", "email is required"}, ValidationMessages(err))

	assert.NoError(t, validate.Struct(labelledInput{Username: "alice", Email: "a@example.com"}))
}
