package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEncryptDecrypt(t *testing.T) {
	key, err := DeriveKey(testKey)
	require.NoError(t, err)

	a, err := Encrypt("+998901234567", key)
	require.NoError(t, err)
	b, err := Encrypt("+998901234567", key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "random nonce per call")

	plain, err := Decrypt(a, key)
	require.NoError(t, err)
	assert.Equal(t, "+998901234567", plain)
}

func TestDecrypt_WrongKey(t *testing.T) {
	key, _ := DeriveKey(testKey)
	other, _ := DeriveKey(strings.Repeat("ab", 32))

	enc, err := Encrypt("secret", key)
	require.NoError(t, err)

	_, err = Decrypt(enc, other)
	assert.Error(t, err)
}

func TestDecrypt_TooShort(t *testing.T) {
	key, _ := DeriveKey(testKey)
	_, err := Decrypt("AAAA", key)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestDeriveKey_Invalid(t *testing.T) {
	_, err := DeriveKey("zz")
	assert.Error(t, err)

	_, err = DeriveKey("abcd")
	assert.Error(t, err)
}
