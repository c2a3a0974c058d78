package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher(t *testing.T) {
	h := New(bcrypt.MinCost)

	hashed, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hashed)
	assert.True(t, h.Check(hashed, "secret1"))
	assert.False(t, h.Check(hashed, "secret2"))
	assert.False(t, h.Check("not-a-hash", "secret1"))
}

func TestNew_InvalidCost(t *testing.T) {
	assert.Equal(t, DefaultCost, New(0).cost)
	assert.Equal(t, DefaultCost, New(bcrypt.MaxCost+1).cost)
	assert.Equal(t, bcrypt.MinCost, New(bcrypt.MinCost).cost)
}
