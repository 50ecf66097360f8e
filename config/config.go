package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"sims/internal/service"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	OTP      OTPConfig
	Mail     MailConfig
	Security SecurityConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

type HTTPConfig struct {
	Addr string
}

type DatabaseConfig struct {
	Driver string
	DSN    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type OTPConfig struct {
	TTL                    time.Duration
	Cooldown               time.Duration
	MaxPerHour             int
	MaxPerIPPerHour        int
	AllowedDomains         []string
	SendAlways             bool
	LegacyRegisterFallback bool
}

type MailConfig struct {
	ResendAPIKey string
	From         string
	AppName      string
}

type SecurityConfig struct {
	BcryptCost         int
	PasswordPolicyFile string
	RefreshSingleUse   bool
}

type LogConfig struct {
	Level string
	File  string
}

type MetricsConfig struct {
	Namespace string
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("error load env file")
	}

	cfg := Config{
		HTTP: HTTPConfig{Addr: envString("HTTP_ADDR", ":8080")},
		Database: DatabaseConfig{
			Driver: strings.ToLower(envString("DB_DRIVER", "postgres")),
			DSN:    os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			AccessSecret:  os.Getenv("JWT_SECRET"),
			RefreshSecret: envString("REFRESH_JWT_SECRET", os.Getenv("JWT_SECRET")),
			Issuer:        os.Getenv("JWT_ISSUER"),
			AccessTTL:     envSeconds("JWT_EXPIRY", 7200*time.Second),
			RefreshTTL:    envSeconds("REFRESH_JWT_EXPIRY", 1209600*time.Second),
		},
		OTP: OTPConfig{
			TTL:                    time.Duration(envInt("OTP_TTL_MINUTES", 5)) * time.Minute,
			Cooldown:               envSeconds("OTP_REQUEST_COOLDOWN", 60*time.Second),
			MaxPerHour:             envInt("OTP_MAX_PER_HOUR", 5),
			MaxPerIPPerHour:        envInt("OTP_MAX_IP_PER_HOUR", 20),
			AllowedDomains:         envList("OTP_ALLOWED_DOMAINS"),
			SendAlways:             envBool("OTP_SEND_ALWAYS", false),
			LegacyRegisterFallback: envBool("OTP_LEGACY_REGISTER_FALLBACK", true),
		},
		Mail: MailConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			From:         os.Getenv("MAIL_FROM"),
			AppName:      envString("APP_NAME", "SIMS"),
		},
		Security: SecurityConfig{
			BcryptCost:         envInt("BCRYPT_COST", 12),
			PasswordPolicyFile: os.Getenv("PASSWORD_POLICY_FILE"),
			RefreshSingleUse:   envBool("REFRESH_SINGLE_USE", false),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Metrics: MetricsConfig{Namespace: envString("METRICS_NAMESPACE", "sims")},
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWT.AccessSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT_EXPIRY must be shorter than REFRESH_JWT_EXPIRY")
	}
	if c.Security.RefreshSingleUse && c.Redis.Addr == "" {
		return errors.New("REFRESH_SINGLE_USE requires REDIS_ADDR")
	}
	return nil
}

// ServiceConfig projects the settings the auth services need.
func (c Config) ServiceConfig(policy service.PasswordPolicy) service.AuthConfig {
	return service.AuthConfig{
		OtpTTL:                        c.OTP.TTL,
		OtpCooldown:                   c.OTP.Cooldown,
		OtpMaxPerHour:                 c.OTP.MaxPerHour,
		OtpMaxPerIPPerHour:            c.OTP.MaxPerIPPerHour,
		OtpAllowedDomains:             c.OTP.AllowedDomains,
		OtpSendAlways:                 c.OTP.SendAlways,
		DisableLegacyRegisterFallback: !c.OTP.LegacyRegisterFallback,
		RefreshSingleUse:              c.Security.RefreshSingleUse,
		AppName:                       c.Mail.AppName,
		PasswordPolicy:                policy,
	}
}

func envString(key string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return value
}

// envSeconds accepts either a bare number of seconds or a Go duration string.
func envSeconds(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
