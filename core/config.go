package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // zone database for REMINDER_TIMEZONE on hosts without one

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/secret"
)

const devSecretKey = "wq3$k1-alumni)dev#secret!x9pl2v+7e=dz&uoxh2(h!x)"

var errNoJWTSecret = errors.New("JWT_SECRET is required outside debug mode")

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		SecureCookies             bool
		LoginRateLimit            float64 // requests per second per client
		LoginRateBurst            int
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	EncryptionConfig struct {
		Key  []byte
		Mode string
	}

	TimeAPIConfig struct {
		Key     string
		BaseURL string
		City    string
	}

	ReminderConfig struct {
		Location   *time.Location
		Mode       string
		Subject    string
		Cooldown   time.Duration
		Interval   time.Duration
		CronSecret string
	}

	RedisConfig struct {
		Addr     string
		Password string
	}

	// Config is built once at process start and handed to every component that needs it.
	Config struct {
		Env                       string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		Build                     string
		SecretKey                 string
		FrontendBaseURL           string
		APIBaseURL                string
		DefaultFromEmail          mail.Address
		PasswordResetTimeoutDelta time.Duration
		HTTPClientTimeout         time.Duration
		SendgridAPIKey            string
		RollbarToken              string

		Server     ServerConfig
		Database   DatabaseConfig
		Encryption EncryptionConfig
		TimeAPI    TimeAPIConfig
		Reminder   ReminderConfig
		Redis      RedisConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("app_name", "LaSAlumni")
	v.SetDefault("build", "develop")
	v.SetDefault("frontend_base_url", "http://localhost:8000")
	v.SetDefault("api_base_url", "")
	v.SetDefault("default_from_email", "LaSAlumni <noreply@localhost>")
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)
	v.SetDefault("http_client_timeout", 30*time.Second)
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")

	v.SetDefault("server_host", "0.0.0.0:8000")
	v.SetDefault("server_debug_host", "0.0.0.0:4000")
	v.SetDefault("shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt_expiration_delta", 15*time.Minute)
	v.SetDefault("jwt_refresh_expiration_delta", 7*24*time.Hour)
	v.SetDefault("secure_cookies", false)
	v.SetDefault("login_rate_limit", 1.0)
	v.SetDefault("login_rate_burst", 5)

	v.SetDefault("db_engine", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_name", "lasalumni")
	v.SetDefault("db_user", "lasalumni")
	v.SetDefault("db_password", "")
	v.SetDefault("db_admin_user", "")
	v.SetDefault("db_admin_password", "")
	v.SetDefault("db_disable_tls", true)

	v.SetDefault("encryption_secret_key", "")
	v.SetDefault("encryption_mode", secret.ModeCBC)

	v.SetDefault("time_api_key", "")
	v.SetDefault("time_api_base_url", "https://api.api-ninjas.com")
	v.SetDefault("time_api_city", "Manila")

	v.SetDefault("reminder_timezone", "Asia/Manila")
	v.SetDefault("reminder_mode", "fail-fast")
	v.SetDefault("reminder_subject", "We miss you at the Alumni Portal!")
	v.SetDefault("reminder_cooldown", time.Duration(0))
	v.SetDefault("reminder_interval", time.Duration(0))
	v.SetDefault("cron_secret", "")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
}

// loadDotEnv loads config/.env.<env> if it exists; a missing file is not an error.
func loadDotEnv(env string) error {
	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "getting working directory")
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	return nil
}

// NewConfig reads the process configuration from the environment. It fails if the
// encryption key is absent or malformed, or if the JWT secret is missing in production.
func NewConfig() (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if err := loadDotEnv(env); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	conf := &Config{
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  env == "TEST",
		AppName:                   v.GetString("app_name"),
		Build:                     v.GetString("build"),
		SecretKey:                 v.GetString("jwt_secret"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		APIBaseURL:                strings.TrimRight(v.GetString("api_base_url"), "/"),
		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
		HTTPClientTimeout:         v.GetDuration("http_client_timeout"),
		SendgridAPIKey:            v.GetString("sendgrid_api_key"),
		RollbarToken:              v.GetString("rollbar_token"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			DebugHost:                 v.GetString("server_debug_host"),
			ShutdownTimeout:           v.GetDuration("shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
			SecureCookies:             v.GetBool("secure_cookies"),
			LoginRateLimit:            v.GetFloat64("login_rate_limit"),
			LoginRateBurst:            v.GetInt("login_rate_burst"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("db_engine"),
			Host:          v.GetString("db_host"),
			Port:          v.GetString("db_port"),
			Name:          v.GetString("db_name"),
			User:          v.GetString("db_user"),
			Password:      v.GetString("db_password"),
			AdminUser:     v.GetString("db_admin_user"),
			AdminPassword: v.GetString("db_admin_password"),
			DisableTLS:    v.GetBool("db_disable_tls"),
		},
		TimeAPI: TimeAPIConfig{
			Key:     v.GetString("time_api_key"),
			BaseURL: strings.TrimRight(v.GetString("time_api_base_url"), "/"),
			City:    v.GetString("time_api_city"),
		},
		Reminder: ReminderConfig{
			Mode:       v.GetString("reminder_mode"),
			Subject:    v.GetString("reminder_subject"),
			Cooldown:   v.GetDuration("reminder_cooldown"),
			Interval:   v.GetDuration("reminder_interval"),
			CronSecret: v.GetString("cron_secret"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
		},
	}

	if conf.SecretKey == "" {
		if !conf.Debug {
			return nil, errNoJWTSecret
		}
		conf.SecretKey = devSecretKey
	}

	from, err := mail.ParseAddress(v.GetString("default_from_email"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing DEFAULT_FROM_EMAIL")
	}
	conf.DefaultFromEmail = *from

	key, err := secret.ParseKey(v.GetString("encryption_secret_key"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing ENCRYPTION_SECRET_KEY")
	}
	conf.Encryption = EncryptionConfig{Key: key, Mode: v.GetString("encryption_mode")}

	loc, err := time.LoadLocation(v.GetString("reminder_timezone"))
	if err != nil {
		return nil, errors.Wrap(err, "loading REMINDER_TIMEZONE")
	}
	conf.Reminder.Location = loc

	if conf.Debug && conf.TimeAPI.Key == "" {
		log.Println("config: TIME_API_KEY is empty, server time will fall back to the local clock")
	}
	return conf, nil
}
