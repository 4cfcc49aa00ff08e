package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHasher(t *testing.T) PasswordHasher {
	t.Helper()
	// Small costs keep the test fast; production values come from config.
	h, err := NewArgon2Hasher(Argon2Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	return h
}

func TestArgon2HashAndVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := h.Verify("correct horse battery staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2HashesAreSalted(t *testing.T) {
	h := testHasher(t)

	first, err := h.Hash("same password")
	require.NoError(t, err)
	second, err := h.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestArgon2VerifyUsesEncodedParams(t *testing.T) {
	// A hash produced under one parameter set must verify with a hasher
	// configured differently, since the params travel in the hash itself.
	strict, err := NewArgon2Hasher(Argon2Params{
		Memory:      16 * 1024,
		Iterations:  2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	encoded, err := strict.Hash("secret")
	require.NoError(t, err)

	relaxed := testHasher(t)
	ok, err := relaxed.Verify("secret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArgon2VerifyRejectsMalformedHash(t *testing.T) {
	h := testHasher(t)

	_, err := h.Verify("secret", "not-a-phc-string")
	assert.Error(t, err)
}
