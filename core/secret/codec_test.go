package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

const testKeyHex = "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4"

func mustKey(t *testing.T) []byte {
	key, err := ParseKey(testKeyHex)
	if err != nil {
		t.Fatalf("ParseKey(): %v", err)
	}
	return key
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		hex     string
		wantErr bool
	}{
		{name: "valid", hex: testKeyHex},
		{name: "empty", hex: "", wantErr: true},
		{name: "too short", hex: testKeyHex[:62], wantErr: true},
		{name: "too long", hex: testKeyHex + "00", wantErr: true},
		{name: "not hex", hex: strings.Repeat("g", 64), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.hex)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && errors.Cause(err) != ErrInvalidKey {
				t.Errorf("ParseKey() error cause = %v, want %v", errors.Cause(err), ErrInvalidKey)
			}
			if !tt.wantErr && len(key) != KeySize {
				t.Errorf("len(key) = %d, want %d", len(key), KeySize)
			}
		})
	}
}

func TestNewCodec(t *testing.T) {
	key := mustKey(t)
	for _, mode := range []string{"", ModeCBC, ModeXChaCha} {
		if _, err := NewCodec(mode, key); err != nil {
			t.Errorf("NewCodec(%q) error = %v", mode, err)
		}
	}
	if _, err := NewCodec("rot13", key); errors.Cause(err) != ErrUnknownMode {
		t.Errorf("NewCodec(rot13) error = %v, want %v", err, ErrUnknownMode)
	}
	if _, err := NewCodec(ModeCBC, key[:16]); err != ErrInvalidKey {
		t.Errorf("NewCodec(short key) error = %v, want %v", err, ErrInvalidKey)
	}
}

func TestCodec_roundTrip(t *testing.T) {
	key := mustKey(t)
	cbc, _ := NewCBCCodec(key)
	xch, _ := NewXChaChaCodec(key)

	inputs := []string{
		"",
		"0917-123-4567",
		"exactly16bytes!!",
		"Mabuhay! Ñoño café 🎓",
		strings.Repeat("long secret ", 200),
	}
	for _, codec := range []Codec{cbc, xch} {
		for _, in := range inputs {
			token, err := codec.Encrypt(in)
			if err != nil {
				t.Fatalf("%T.Encrypt(%q): %v", codec, in, err)
			}
			out, err := codec.Decrypt(token)
			if err != nil {
				t.Fatalf("%T.Decrypt(%q): %v", codec, token, err)
			}
			if out != in {
				t.Errorf("%T round trip = %q, want %q", codec, out, in)
			}
		}
	}
}

func TestCBCCodec_Encrypt_format(t *testing.T) {
	codec, _ := NewCBCCodec(mustKey(t))

	t1, _ := codec.Encrypt("same input")
	t2, _ := codec.Encrypt("same input")
	if t1 == t2 {
		t.Error("Encrypt() should use a fresh iv per call")
	}

	parts := strings.SplitN(t1, ":", 2)
	if len(parts) != 2 {
		t.Fatalf("token %q has no separator", t1)
	}
	if iv, err := hex.DecodeString(parts[0]); err != nil || len(iv) != aes.BlockSize {
		t.Errorf("iv part %q is not 16 hex encoded bytes", parts[0])
	}
	if ct, err := base64.StdEncoding.DecodeString(parts[1]); err != nil || len(ct)%aes.BlockSize != 0 {
		t.Errorf("ciphertext part %q is not base64 of whole blocks", parts[1])
	}
}

func TestCBCCodec_Decrypt_malformed(t *testing.T) {
	key := mustKey(t)
	codec, _ := NewCBCCodec(key)
	valid, _ := codec.Encrypt("hello alumni")
	parts := strings.SplitN(valid, ":", 2)

	// a block of zeros decrypts fine but carries a 0x00 padding byte
	block, _ := aes.NewCipher(key)
	iv := make([]byte, aes.BlockSize)
	zeroBlock := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(zeroBlock, zeroBlock)
	badPadding := hex.EncodeToString(iv) + ":" + base64.StdEncoding.EncodeToString(zeroBlock)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: ErrMalformedToken},
		{name: "no separator", token: parts[0] + parts[1], wantErr: ErrMalformedToken},
		{name: "empty iv", token: ":" + parts[1], wantErr: ErrMalformedToken},
		{name: "empty ciphertext", token: parts[0] + ":", wantErr: ErrMalformedToken},
		{name: "non-hex iv", token: "zz" + parts[0][2:] + ":" + parts[1], wantErr: ErrInvalidIV},
		{name: "short iv", token: parts[0][:30] + ":" + parts[1], wantErr: ErrInvalidIV},
		{name: "bad base64", token: parts[0] + ":%%%notbase64", wantErr: ErrInvalidCiphertext},
		{name: "truncated ciphertext", token: parts[0] + ":" + base64.StdEncoding.EncodeToString([]byte("short")), wantErr: ErrInvalidCiphertext},
		{name: "extra separator", token: valid + ":junk", wantErr: ErrInvalidCiphertext},
		{name: "bad padding", token: badPadding, wantErr: ErrInvalidPadding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Decrypt(tt.token)
			if err != tt.wantErr {
				t.Errorf("Decrypt() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != "" {
				t.Errorf("Decrypt() = %q, want no plaintext", got)
			}
		})
	}
}

func TestXChaChaCodec_Decrypt_tampered(t *testing.T) {
	codec, _ := NewXChaChaCodec(mustKey(t))
	token, _ := codec.Encrypt("0917 123 4567")
	parts := strings.SplitN(token, ":", 2)
	sealed, _ := base64.StdEncoding.DecodeString(parts[1])
	sealed[0] ^= 0xff
	tampered := parts[0] + ":" + base64.StdEncoding.EncodeToString(sealed)

	if _, err := codec.Decrypt(tampered); err != ErrInvalidCiphertext {
		t.Errorf("Decrypt(tampered) error = %v, want %v", err, ErrInvalidCiphertext)
	}
	if _, err := codec.Decrypt("nope"); err != ErrMalformedToken {
		t.Errorf("Decrypt(nope) error = %v, want %v", err, ErrMalformedToken)
	}
}
