// Package secret encrypts short sensitive strings (contact numbers, API secrets)
// with a process-wide 256-bit key.
package secret

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

const (
	KeySize = 32

	ModeCBC     = "aes-256-cbc"
	ModeXChaCha = "xchacha20poly1305"

	separator = ":"
)

var (
	ErrInvalidKey        = errors.New("key must be 64 hex characters (32 bytes)")
	ErrMalformedToken    = errors.New("malformed token: expected iv:ciphertext")
	ErrInvalidIV         = errors.New("invalid initialization vector")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrInvalidPadding    = errors.New("invalid padding")
	ErrUnknownMode       = errors.New("unknown encryption mode")
)

// Codec turns plaintext into a printable token and back.
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// ParseKey decodes a hex encoded key, which must be exactly KeySize bytes long.
func ParseKey(hexKey string) ([]byte, error) {
	if len(hexKey) != 2*KeySize {
		return nil, ErrInvalidKey
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, err.Error())
	}
	return key, nil
}

// NewCodec returns the codec for mode; an empty mode selects AES-256-CBC.
func NewCodec(mode string, key []byte) (Codec, error) {
	switch mode {
	case "", ModeCBC:
		return NewCBCCodec(key)
	case ModeXChaCha:
		return NewXChaChaCodec(key)
	default:
		return nil, errors.Wrap(ErrUnknownMode, mode)
	}
}
