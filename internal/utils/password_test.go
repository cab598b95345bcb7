package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("correct horse battery")
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse battery", hashed)
	assert.True(t, CheckPassword(hashed, "correct horse battery"))
	assert.False(t, CheckPassword(hashed, "wrong horse battery"))
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("short")

	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("ada@example.com"))
	assert.NoError(t, ValidateEmail(" ada@example.com "))
	assert.ErrorIs(t, ValidateEmail("not-an-email"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail("Ada <ada@example.com>"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail(""), ErrInvalidEmail)
}
