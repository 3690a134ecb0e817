package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	for _, secret := range [][]byte{
		bytes.Repeat([]byte("k"), 32),
		[]byte("a-longer-passphrase-that-gets-stretched"),
	} {
		s, err := NewSealer(secret)
		require.NoError(t, err)

		sealed, err := s.Seal([]byte("cak_secret"), []byte("hash-1"))
		require.NoError(t, err)
		assert.NotContains(t, sealed, "cak_secret")

		opened, err := s.Open(sealed, []byte("hash-1"))
		require.NoError(t, err)
		assert.Equal(t, "cak_secret", string(opened))
	}
}

func TestSealerUsesFreshNonces(t *testing.T) {
	s, err := NewSealer(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	a, err := s.Seal([]byte("same"), nil)
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSealerRejectsTampering(t *testing.T) {
	s, err := NewSealer(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("secret"), []byte("hash-1"))
	require.NoError(t, err)

	_, err = s.Open(sealed, []byte("hash-2"))
	assert.ErrorIs(t, err, ErrCiphertext, "associated data mismatch")

	_, err = s.Open("not base64!", nil)
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = s.Open("AAAA", nil)
	assert.ErrorIs(t, err, ErrCiphertext, "too short")

	other, err := NewSealer(bytes.Repeat([]byte("x"), 32))
	require.NoError(t, err)
	_, err = other.Open(sealed, []byte("hash-1"))
	assert.ErrorIs(t, err, ErrCiphertext, "wrong key")
}

func TestNewSealerRejectsShortSecret(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	assert.Error(t, err)
}
