package security

import (
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	tok, err := svc.CreateForUser("user-1")
	require.NoError(t, err)

	sub, err := svc.Subject(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestTokenRejectsExpiredAndForeign(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	expired, err := svc.CreateWithTTL("user-1", -time.Minute)
	require.NoError(t, err)
	_, err = svc.Subject(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenService("other", time.Hour)
	foreign, err := other.CreateForUser("user-1")
	require.NoError(t, err)
	_, err = svc.Subject(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Subject("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestContentCipherRoundTrip(t *testing.T) {
	c, err := NewContentCipher("any length secret", nil)
	require.NoError(t, err)

	sealed, err := c.Seal("hello 👋")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "hello")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello 👋", plain)

	again, _ := c.Seal("hello 👋")
	assert.NotEqual(t, sealed, again, "nonce must differ per message")
}

func TestContentCipherOpensLegacyFernet(t *testing.T) {
	var k fernet.Key
	require.NoError(t, k.Generate())
	legacy, err := fernet.EncryptAndSign([]byte("old message"), &k)
	require.NoError(t, err)

	c, err := NewContentCipher("current", []string{k.Encode()})
	require.NoError(t, err)
	plain, err := c.Open(string(legacy))
	require.NoError(t, err)
	assert.Equal(t, "old message", plain)

	_, err = c.Open("garbage")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestContentCipherRequiresKey(t *testing.T) {
	_, err := NewContentCipher("", nil)
	assert.Error(t, err)
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(4)
	hashed, err := h.Hash("hunter22")
	require.NoError(t, err)

	assert.NoError(t, h.Verify("hunter22", hashed))
	assert.ErrorIs(t, h.Verify("wrong", hashed), ErrPasswordMismatch)
}
