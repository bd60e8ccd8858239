package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHashAndCompare(t *testing.T) {
	hash, err := GetHash("secret-password")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "secret-password", hash)

	assert.NoError(t, CompareHash(hash, "secret-password"))
	assert.Error(t, CompareHash(hash, "wrong-password"))
}

func TestCompareHash_NotAHash(t *testing.T) {
	assert.Error(t, CompareHash("not-a-bcrypt-hash", "anything"))
}
