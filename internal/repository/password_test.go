package repository

import (
	"strings"
	"testing"

	"adwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { PasswordCost = bcrypt.DefaultCost })

	hash, err := HashPassword("password1")
	require.NoError(t, err)
	assert.True(t, CheckPassword("password1", hash))
	assert.False(t, CheckPassword("password2", hash))

	_, err = HashPassword(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
