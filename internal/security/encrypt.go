package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

var ErrDecrypt = errors.New("failed to decrypt message content")

// ContentCipher seals message content before it reaches the store. New
// content is AES-256-GCM; content written under older Fernet keys can still
// be opened.
type ContentCipher struct {
	aead   cipher.AEAD
	legacy []*fernet.Key
}

// NewContentCipher derives the AES key from secret with SHA-256. secret and
// every legacy key that parse as Fernet keys are accepted for reading.
func NewContentCipher(secret string, legacyKeys []string) (*ContentCipher, error) {
	if secret == "" {
		return nil, errors.New("encryption key must not be empty")
	}
	sum := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	c := &ContentCipher{aead: aead}
	for _, raw := range append([]string{secret}, legacyKeys...) {
		if k, err := fernet.DecodeKey(strings.TrimSpace(raw)); err == nil {
			c.legacy = append(c.legacy, k)
		}
	}
	return c, nil
}

func (c *ContentCipher) Seal(plain string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *ContentCipher) Open(enc string) (string, error) {
	if raw, err := base64.StdEncoding.DecodeString(enc); err == nil && len(raw) >= c.aead.NonceSize() {
		n := c.aead.NonceSize()
		if plain, err := c.aead.Open(nil, raw[:n], raw[n:], nil); err == nil {
			return string(plain), nil
		}
	}
	if len(c.legacy) > 0 {
		if plain := fernet.VerifyAndDecrypt([]byte(enc), 0*time.Second, c.legacy); plain != nil {
			return string(plain), nil
		}
	}
	return "", ErrDecrypt
}
