package secret

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// XChaChaCodec is the authenticated alternative to CBCCodec. Tokens are
// "nonceHex:sealedBase64"; any modification of the token fails decryption.
type XChaChaCodec struct {
	aead cipher.AEAD
}

var _ Codec = (*XChaChaCodec)(nil)

func NewXChaChaCodec(key []byte) (*XChaChaCodec, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating xchacha20poly1305 cipher")
	}
	return &XChaChaCodec{aead: aead}, nil
}

func (c *XChaChaCodec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "generating nonce")
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + separator + base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *XChaChaCodec) Decrypt(token string) (string, error) {
	parts := strings.SplitN(token, separator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrMalformedToken
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return "", ErrInvalidIV
	}
	sealed, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(sealed) < c.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}
