package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"sims/internal/entity"
	"sims/internal/repository"
	"sims/internal/utils"

	"github.com/sirupsen/logrus"
)

const otpDigits = 6

var legacyRegisterPurposes = []entity.OtpPurpose{entity.OtpLogin, entity.OtpLoginVerify}

// OtpLedger issues and consumes one-time codes. Rows are never deleted.
type OtpLedger struct {
	codes          repository.OtpRepository
	clock          Clock
	ttl            time.Duration
	legacyFallback bool
	logger         logrus.FieldLogger
}

func NewOtpLedger(codes repository.OtpRepository, clock Clock, config AuthConfig, logger logrus.FieldLogger) *OtpLedger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &OtpLedger{
		codes:          codes,
		clock:          clock,
		ttl:            config.otpTTL(),
		legacyFallback: !config.DisableLegacyRegisterFallback,
		logger:         logger,
	}
}

// Issue stores a fresh code for (email, purpose). Issuance policy is the caller's job.
func (l *OtpLedger) Issue(
	ctx context.Context,
	email string,
	purpose entity.OtpPurpose,
	userID *int64,
	ipAddress *string,
) (string, time.Time, error) {
	code, err := utils.GenerateNumericCode(otpDigits)
	if err != nil {
		return "", time.Time{}, err
	}
	now := l.now()
	row := &entity.OtpCode{
		UserID:      userID,
		Email:       utils.NormalizeEmail(email),
		Purpose:     purpose,
		CodeHash:    utils.HashToken(code),
		RequesterIP: ipAddress,
		ExpiresAt:   now.Add(l.ttl),
		CreatedAt:   now,
	}
	if err := l.codes.Create(ctx, row); err != nil {
		return "", time.Time{}, err
	}
	return code, row.ExpiresAt, nil
}

// Verify consumes the newest live code for (email, purpose) when submitted matches it.
// A code is accepted at most once, even under concurrent calls.
func (l *OtpLedger) Verify(ctx context.Context, email string, purpose entity.OtpPurpose, submitted string) (*entity.OtpCode, error) {
	email = utils.NormalizeEmail(email)
	submitted = strings.TrimSpace(submitted)
	now := l.now()

	row, err := l.codes.FindActive(ctx, email, acceptedPurposes(purpose), now)
	if err != nil {
		return nil, err
	}
	if row == nil && purpose == entity.OtpRegister && l.legacyFallback {
		row, err = l.codes.FindActive(ctx, email, legacyRegisterPurposes, now)
		if err != nil {
			return nil, err
		}
	}

	if row == nil || submitted == "" || !codeMatches(row.CodeHash, submitted) {
		l.recordFailure(ctx, email, purpose, now)
		return nil, ErrInvalidOtp
	}

	consumed, err := l.codes.Consume(ctx, row.ID, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		l.recordFailure(ctx, email, purpose, now)
		return nil, ErrInvalidOtp
	}
	row.ConsumedAt = &now
	return row, nil
}

// HasLive reports whether (email, purpose) still has an unconsumed, unexpired code.
func (l *OtpLedger) HasLive(ctx context.Context, email string, purpose entity.OtpPurpose) (bool, error) {
	row, err := l.codes.FindActive(ctx, utils.NormalizeEmail(email), acceptedPurposes(purpose), l.now())
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

func (l *OtpLedger) TTLMinutes() int {
	return int(l.ttl / time.Minute)
}

func (l *OtpLedger) recordFailure(ctx context.Context, email string, purpose entity.OtpPurpose, now time.Time) {
	if err := l.codes.RecordFailedAttempt(ctx, email, purpose, now); err != nil {
		l.logger.WithError(err).WithFields(logrus.Fields{
			"email":   email,
			"purpose": purpose,
		}).Warn("otp attempt counter update failed")
	}
}

func (l *OtpLedger) now() time.Time {
	return l.clock.Now()
}

// acceptedPurposes lets login codes issued under the older login_verify name still complete a login.
func acceptedPurposes(purpose entity.OtpPurpose) []entity.OtpPurpose {
	if purpose == entity.OtpLogin {
		return []entity.OtpPurpose{entity.OtpLogin, entity.OtpLoginVerify}
	}
	return []entity.OtpPurpose{purpose}
}

func codeMatches(storedHash string, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(utils.HashToken(submitted))) == 1
}

// OtpPolicy enforces issuance limits before a code is created.
type OtpPolicy struct {
	codes      repository.OtpRepository
	clock      Clock
	cooldown   time.Duration
	maxPerHour int
	maxPerIP   int
}

func NewOtpPolicy(codes repository.OtpRepository, clock Clock, config AuthConfig) *OtpPolicy {
	if clock == nil {
		clock = RealClock{}
	}
	return &OtpPolicy{
		codes:      codes,
		clock:      clock,
		cooldown:   config.otpCooldown(),
		maxPerHour: config.otpMaxPerHour(),
		maxPerIP:   config.otpMaxPerIPPerHour(),
	}
}

// Check returns a *RateLimitError when another code may not be issued yet.
func (p *OtpPolicy) Check(ctx context.Context, email string, purpose entity.OtpPurpose, ipAddress *string) error {
	email = utils.NormalizeEmail(email)
	now := p.clock.Now()

	remaining, err := p.CooldownRemaining(ctx, email, purpose)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return &RateLimitError{
			Reason:     fmt.Sprintf("please wait %d seconds before requesting another code", secondsCeil(remaining)),
			RetryAfter: remaining,
		}
	}

	windowStart := now.Add(-time.Hour)
	count, err := p.codes.CountIssuedSince(ctx, email, purpose, windowStart)
	if err != nil {
		return err
	}
	if count >= int64(p.maxPerHour) {
		return &RateLimitError{Reason: "too many verification codes requested, try again later", RetryAfter: time.Hour}
	}

	if ipAddress != nil && *ipAddress != "" {
		ipCount, err := p.codes.CountIssuedByIPSince(ctx, *ipAddress, windowStart)
		if err != nil {
			return err
		}
		if ipCount >= int64(p.maxPerIP) {
			return &RateLimitError{Reason: "too many verification codes requested from this address", RetryAfter: time.Hour}
		}
	}
	return nil
}

// CooldownRemaining is how long until (email, purpose) may receive a new code.
func (p *OtpPolicy) CooldownRemaining(ctx context.Context, email string, purpose entity.OtpPurpose) (time.Duration, error) {
	last, err := p.codes.LatestIssuedAt(ctx, utils.NormalizeEmail(email), purpose)
	if err != nil || last == nil {
		return 0, err
	}
	elapsed := p.clock.Now().Sub(*last)
	if elapsed >= p.cooldown {
		return 0, nil
	}
	return p.cooldown - elapsed, nil
}

func (p *OtpPolicy) CooldownSeconds() int {
	return secondsCeil(p.cooldown)
}

func secondsCeil(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
