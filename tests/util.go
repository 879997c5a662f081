package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/secret"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
	logsvc "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/services/logger"
)

// EncryptionKeyHex is a fixed key for tests only.
const EncryptionKeyHex = "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4"

// NewConfig returns a fully populated config without reading the environment.
func NewConfig(t *testing.T) *core.Config {
	key, err := secret.ParseKey(EncryptionKeyHex)
	if err != nil {
		t.Fatalf("NewConfig(): %v", err)
	}
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		t.Fatalf("NewConfig(): %v", err)
	}
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "LaSAlumni",
		Build:                     "test",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://alumni.test",
		DefaultFromEmail:          mail.Address{Name: "LaSAlumni", Address: "noreply@alumni.test"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		HTTPClientTimeout:         5 * time.Second,
		Server: core.ServerConfig{
			Host:                      "localhost:8000",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        15 * time.Minute,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
			LoginRateLimit:            100,
			LoginRateBurst:            100,
		},
		Encryption: core.EncryptionConfig{Key: key, Mode: secret.ModeCBC},
		TimeAPI:    core.TimeAPIConfig{Key: "test", City: "Manila"},
		Reminder: core.ReminderConfig{
			Location: loc,
			Mode:     "fail-fast",
			Subject:  "We miss you!",
		},
	}
}

func NewCodec(t *testing.T, conf *core.Config) secret.Codec {
	codec, err := secret.NewCodec(conf.Encryption.Mode, conf.Encryption.Key)
	if err != nil {
		t.Fatalf("NewCodec(): %v", err)
	}
	return codec
}

// NewLogger returns a logger that writes nowhere.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), nil)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// SetLastLogin overwrites the user's last login, a zero time clears it.
func SetLastLogin(t *testing.T, repo user.Repository, usr user.User, at time.Time) user.User {
	usr.LastLogin = at
	usr, err := repo.UpdateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("SetLastLogin(): %v", err)
	}
	return usr
}

func CreateProfile(t *testing.T, repo user.Repository, usr user.User, emailAddress string) user.AlumniProfile {
	p, err := repo.SaveProfile(context.Background(), user.AlumniProfile{
		UserID:       usr.ID,
		FirstName:    usr.Name,
		EmailAddress: emailAddress,
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateProfile(): %v", err)
	}
	return p
}
