package crypto

import (
	"bytes"
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestEnvelope(t *testing.T) *Envelope {
	t.Helper()
	env, err := NewEnvelope(testKey)
	require.NoError(t, err)
	return env
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	env := newTestEnvelope(t)

	for _, in := range []string{"01012345678", "홍길동", strings.Repeat("x", 500)} {
		blob, err := env.Encrypt(in)
		require.NoError(t, err)
		assert.Greater(t, len(blob), nonceSize)

		out, err := env.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	env := newTestEnvelope(t)

	a, err := env.Encrypt("01012345678")
	require.NoError(t, err)
	b, err := env.Encrypt("01012345678")
	require.NoError(t, err)

	assert.False(t, bytes.Equal(a, b))
	assert.False(t, bytes.Equal(a[:nonceSize], b[:nonceSize]))
}

func TestEmptyValues(t *testing.T) {
	env := newTestEnvelope(t)

	blob, err := env.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, blob)

	out, err := env.Decrypt(nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestDecrypt_Tampered(t *testing.T) {
	env := newTestEnvelope(t)

	blob, err := env.Encrypt("secret")
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff

	_, err = env.Decrypt(blob)
	assert.Error(t, err)

	_, err = env.Decrypt([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestDecrypt_WrongKey(t *testing.T) {
	env := newTestEnvelope(t)
	other, err := NewEnvelope(strings.Repeat("ff", 32))
	require.NoError(t, err)

	blob, err := env.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(blob)
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	env := newTestEnvelope(t)
	other, err := NewEnvelope(strings.Repeat("ff", 32))
	require.NoError(t, err)

	assert.Equal(t, env.Hash("01012345678"), env.Hash("01012345678"))
	assert.NotEqual(t, env.Hash("01012345678"), env.Hash("01012345679"))
	assert.NotEqual(t, env.Hash("01012345678"), other.Hash("01012345678"))
	assert.Len(t, env.Hash(""), 32)
}

func TestHash_SHA256MatchesUploadPipeline(t *testing.T) {
	env, err := NewEnvelope(testKey, WithHashScheme(HashSHA256))
	require.NoError(t, err)
	other, err := NewEnvelope(strings.Repeat("ff", 32), WithHashScheme(HashSHA256))
	require.NoError(t, err)

	want := sha256.Sum256([]byte("01012345678"))
	assert.Equal(t, want[:], env.Hash("01012345678"))
	assert.Equal(t, env.Hash("01012345678"), other.Hash("01012345678"))
}

func TestParseHashScheme(t *testing.T) {
	s, err := ParseHashScheme("sha256")
	require.NoError(t, err)
	assert.Equal(t, HashSHA256, s)

	s, err = ParseHashScheme("keyed")
	require.NoError(t, err)
	assert.Equal(t, HashKeyed, s)

	_, err = ParseHashScheme("md5")
	assert.Error(t, err)
}

func TestNewEnvelope_InvalidKey(t *testing.T) {
	for _, k := range []string{"", "zz", strings.Repeat("ab", 16)} {
		_, err := NewEnvelope(k)
		assert.ErrorIs(t, err, ErrInvalidKey)
	}
}
