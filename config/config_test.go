package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sims/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"HTTP_ADDR", "DB_DRIVER", "DATABASE_URL", "REDIS_ADDR", "REDIS_DB",
	"JWT_SECRET", "REFRESH_JWT_SECRET", "JWT_ISSUER", "JWT_EXPIRY", "REFRESH_JWT_EXPIRY",
	"OTP_TTL_MINUTES", "OTP_REQUEST_COOLDOWN", "OTP_MAX_PER_HOUR", "OTP_MAX_IP_PER_HOUR",
	"OTP_ALLOWED_DOMAINS", "OTP_SEND_ALWAYS", "OTP_LEGACY_REGISTER_FALLBACK",
	"RESEND_API_KEY", "MAIL_FROM", "APP_NAME", "BCRYPT_COST", "PASSWORD_POLICY_FILE",
	"REFRESH_SINGLE_USE", "LOG_LEVEL", "LOG_FILE", "METRICS_NAMESPACE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "s3cret", cfg.JWT.RefreshSecret, "refresh secret falls back to the access secret")
	assert.Equal(t, 2*time.Hour, cfg.JWT.AccessTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, time.Minute, cfg.OTP.Cooldown)
	assert.Equal(t, 5, cfg.OTP.MaxPerHour)
	assert.True(t, cfg.OTP.LegacyRegisterFallback)
	assert.False(t, cfg.Security.RefreshSingleUse)
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.Equal(t, "SIMS", cfg.Mail.AppName)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REFRESH_JWT_SECRET", "other")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("JWT_EXPIRY", "15m")
	t.Setenv("REFRESH_JWT_EXPIRY", "3600")
	t.Setenv("OTP_ALLOWED_DOMAINS", " gmail.com, ,yahoo.com ")
	t.Setenv("OTP_LEGACY_REGISTER_FALLBACK", "false")
	t.Setenv("OTP_MAX_PER_HOUR", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "other", cfg.JWT.RefreshSecret)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, []string{"gmail.com", "yahoo.com"}, cfg.OTP.AllowedDomains)
	assert.Equal(t, 5, cfg.OTP.MaxPerHour)

	svc := cfg.ServiceConfig(service.DefaultPasswordPolicy())
	assert.True(t, svc.DisableLegacyRegisterFallback)
	assert.Equal(t, []string{"gmail.com", "yahoo.com"}, svc.OtpAllowedDomains)
}

func TestValidate(t *testing.T) {
	cfg := Config{JWT: JWTConfig{AccessSecret: "x", AccessTTL: time.Hour, RefreshTTL: time.Hour}}
	assert.EqualError(t, cfg.Validate(), "JWT_EXPIRY must be shorter than REFRESH_JWT_EXPIRY")

	cfg.JWT.RefreshTTL = 2 * time.Hour
	cfg.Security.RefreshSingleUse = true
	assert.EqualError(t, cfg.Validate(), "REFRESH_SINGLE_USE requires REDIS_ADDR")

	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate())
}

func TestLoadPasswordPolicy(t *testing.T) {
	policy, err := LoadPasswordPolicy("")
	require.NoError(t, err)
	assert.Equal(t, 8, policy.MinLength)

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_length: 12\nrequire_special: false\nmin_strength_score: 3\n"), 0o600))
	policy, err = LoadPasswordPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 12, policy.MinLength)
	assert.False(t, policy.RequireSpecial)
	assert.True(t, policy.RequireUppercase, "unset keys keep their defaults")
	assert.Equal(t, 3, policy.MinStrengthScore)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("min_strength_score: 9\n"), 0o600))
	_, err = LoadPasswordPolicy(bad)
	assert.Error(t, err)

	_, err = LoadPasswordPolicy(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(LogConfig{Level: "debug"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger = NewLogger(LogConfig{Level: "loud"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestOpenDatabase(t *testing.T) {
	_, err := OpenDatabase(DatabaseConfig{Driver: "oracle"})
	assert.EqualError(t, err, "unsupported database driver: oracle")

	db, err := OpenDatabase(DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	assert.NoError(t, sqlDB.Ping())
}
