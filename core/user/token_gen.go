package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const tokenSep = "."

var (
	tokenSalt = []byte("lasalumni/password-reset")
	nowFunc   = time.Now // mockable

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// tokenGenerator makes and checks password reset tokens of the form
// <issued unix seconds, base36>.<hmac>. The hmac covers the password hash and the last
// login, so a token dies as soon as either changes.
type tokenGenerator struct {
	secretKey []byte
	timeout   time.Duration
}

func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

func (gen tokenGenerator) makeToken(usr User) string {
	issued := strconv.FormatInt(nowFunc().Unix(), 36)
	return issued + tokenSep + gen.signature(usr, issued)
}

func (gen tokenGenerator) verifyToken(usr User, token string) error {
	issued, sig, ok := strings.Cut(token, tokenSep)
	if !ok || issued == "" || sig == "" {
		return errInvalidToken
	}
	secs, err := strconv.ParseInt(issued, 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(gen.signature(usr, issued))) {
		return errInvalidToken
	}
	if nowFunc().Sub(time.Unix(secs, 0)) > gen.timeout {
		return errTokenExpired
	}
	return nil
}

func (gen tokenGenerator) signature(usr User, issued string) string {
	key := sha256.Sum256(append(append([]byte{}, tokenSalt...), gen.secretKey...))
	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte(usr.ID))
	mac.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		mac.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339Nano)))
	}
	mac.Write([]byte(issued))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
