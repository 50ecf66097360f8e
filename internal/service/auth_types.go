package service

import (
	"context"
	"time"

	"sims/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

// AuthConfig is handed to the services at construction. Zero values fall back to defaults.
type AuthConfig struct {
	OtpTTL             time.Duration
	OtpCooldown        time.Duration
	OtpMaxPerHour      int
	OtpMaxPerIPPerHour int
	OtpAllowedDomains  []string
	OtpSendAlways      bool

	// DisableLegacyRegisterFallback stops register verification from accepting login-purpose codes.
	DisableLegacyRegisterFallback bool

	RefreshSingleUse bool
	DefaultCountry   string
	AppName          string
	PasswordPolicy   PasswordPolicy
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
	NeedsRehash(hash string) bool
}

type TokenIssuer interface {
	IssueAccess(userID int64, username string, roles []string) (utils.IssuedToken, error)
	IssueRefresh(userID int64, username string, roles []string) (utils.IssuedToken, error)
	Verify(token string, expected utils.TokenKind) (*utils.Claims, error)
}

// OtpSender delivers one-time codes. A disabled sender puts login into single-factor mode.
type OtpSender interface {
	Enabled() bool
	SendOtp(ctx context.Context, email string, subject string, code string, ttlMinutes int) error
}

// RefreshTokenStore remembers spent refresh token ids.
type RefreshTokenStore interface {
	Claim(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost())
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports hashes produced with a lower cost than the current one.
func (h BcryptPasswordHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < h.cost()
}

func (h BcryptPasswordHasher) cost() int {
	if h.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return h.Cost
}

func (c AuthConfig) otpTTL() time.Duration {
	if c.OtpTTL > 0 {
		return c.OtpTTL
	}
	return 5 * time.Minute
}

func (c AuthConfig) otpCooldown() time.Duration {
	if c.OtpCooldown > 0 {
		return c.OtpCooldown
	}
	return 60 * time.Second
}

func (c AuthConfig) otpMaxPerHour() int {
	if c.OtpMaxPerHour > 0 {
		return c.OtpMaxPerHour
	}
	return 5
}

func (c AuthConfig) otpMaxPerIPPerHour() int {
	if c.OtpMaxPerIPPerHour > 0 {
		return c.OtpMaxPerIPPerHour
	}
	return 20
}

func (c AuthConfig) defaultCountry() string {
	if c.DefaultCountry != "" {
		return c.DefaultCountry
	}
	return "Philippines"
}

func (c AuthConfig) appName() string {
	if c.AppName != "" {
		return c.AppName
	}
	return "SIMS"
}

func (c AuthConfig) passwordPolicy() PasswordPolicy {
	if c.PasswordPolicy.isZero() {
		return DefaultPasswordPolicy()
	}
	return c.PasswordPolicy
}
