package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSignAndRecover(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)
	assert.False(t, signer.Identity().IsZero())

	digest := Keccak256([]byte("resolve_market"), []byte("payload"))
	sig, err := signer.SignDigest(digest)
	require.NoError(t, err)

	recovered, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Identity(), recovered)
}

func TestRecoverSigner_Malformed(t *testing.T) {
	digest := Keccak256([]byte("x"))
	_, err := RecoverSigner(digest, "0xnothex")
	assert.Error(t, err)
	_, err = RecoverSigner(digest, "0xdead")
	assert.Error(t, err)
}

func TestRecoverSigner_DifferentDigest(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)

	sig, err := signer.SignDigest(Keccak256([]byte("a")))
	require.NoError(t, err)

	recovered, err := RecoverSigner(Keccak256([]byte("b")), sig)
	if err == nil {
		assert.NotEqual(t, signer.Identity(), recovered)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKey, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)
}

func TestDecryptKey_WrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKey, "correct")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "incorrect")
	assert.Error(t, err)
}

func TestEncryptKey_Validation(t *testing.T) {
	_, err := EncryptKey(testKey, "")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pw")
	assert.Error(t, err)
}
