package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"sims/internal/entity"
	"sims/internal/repository"
	"sims/internal/utils"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const strongPassword = "Sup3r$ecret"

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentOtp struct {
	Email   string
	Subject string
	Code    string
}

type recordingSender struct {
	mu       sync.Mutex
	disabled bool
	err      error
	sent     []sentOtp
}

func (s *recordingSender) Enabled() bool {
	return !s.disabled
}

func (s *recordingSender) SendOtp(_ context.Context, email string, subject string, code string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentOtp{Email: email, Subject: subject, Code: code})
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *recordingSender) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "no otp was sent")
	return s.sent[len(s.sent)-1].Code
}

type authFixture struct {
	db      *gorm.DB
	clock   *fixedClock
	sender  *recordingSender
	tokens  *utils.TokenManager
	users   repository.UserRepository
	roles   repository.RoleRepository
	otps    repository.OtpRepository
	hasher  BcryptPasswordHasher
	config  AuthConfig
	auth    *AuthService
	roleSvc *RoleService
}

type fixtureOption func(*authFixture, *AuthDependencies)

func withConfig(mutate func(*AuthConfig)) fixtureOption {
	return func(f *authFixture, _ *AuthDependencies) {
		mutate(&f.config)
	}
}

func withRefreshStore(store RefreshTokenStore) fixtureOption {
	return func(_ *authFixture, deps *AuthDependencies) {
		deps.RefreshTokens = store
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(entity.Models()...))
	return db
}

func newAuthFixture(t *testing.T, opts ...fixtureOption) *authFixture {
	t.Helper()
	db := setupTestDB(t)
	clock := newFixedClock()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	f := &authFixture{
		db:     db,
		clock:  clock,
		sender: &recordingSender{},
		tokens: &utils.TokenManager{
			AccessSecret:  []byte("access-secret"),
			RefreshSecret: []byte("refresh-secret"),
			Issuer:        "sims-test",
			Now:           clock.Now,
		},
		users:  repository.NewUserRepository(db),
		roles:  repository.NewRoleRepository(db),
		otps:   repository.NewOtpRepository(db),
		hasher: BcryptPasswordHasher{Cost: bcrypt.MinCost},
	}
	transactor := repository.NewTransactor(db)
	securityLogs := repository.NewSecurityLogRepository(db)
	deps := AuthDependencies{
		Users:         f.users,
		Roles:         f.roles,
		Transactor:    transactor,
		OtpCodes:      f.otps,
		LoginAttempts: repository.NewLoginAttemptRepository(db),
		SecurityLogs:  securityLogs,
		OtpSender:     f.sender,
		Passwords:     f.hasher,
		Tokens:        f.tokens,
		Clock:         clock,
		Logger:        log,
	}
	for _, opt := range opts {
		opt(f, &deps)
	}
	f.auth = NewAuthService(deps, f.config)
	f.roleSvc = NewRoleService(f.users, f.roles, transactor, securityLogs, log)
	return f
}

// seedUser stores an active account with the given roles and every capability flag off.
func (f *authFixture) seedUser(t *testing.T, username, email string, roles ...string) *entity.User {
	t.Helper()
	ctx := context.Background()
	hash, err := f.hasher.Hash(strongPassword)
	require.NoError(t, err)
	user := &entity.User{
		Username:             username,
		Email:                email,
		PasswordHash:         hash,
		FirstName:            "Test",
		LastName:             "User",
		Role:                 PrimaryRole(roles),
		IsActive:             true,
		CanAccessInventory:   boolPtr(false),
		CanAccessOrders:      boolPtr(false),
		CanAccessChatSupport: boolPtr(false),
	}
	require.NoError(t, f.users.Create(ctx, user))
	for _, name := range roles {
		role, err := f.roles.EnsureRole(ctx, name)
		require.NoError(t, err)
		require.NoError(t, f.roles.Link(ctx, user.ID, role.ID))
	}
	return user
}

func (f *authFixture) accessToken(t *testing.T, user *entity.User, roles ...string) string {
	t.Helper()
	token, err := f.tokens.IssueAccess(user.ID, user.Username, roles)
	require.NoError(t, err)
	return token.Token
}

// requestCode asks for a code and returns what the sender delivered.
func (f *authFixture) requestCode(t *testing.T, email string, purpose entity.OtpPurpose) string {
	t.Helper()
	before := f.sender.count()
	_, err := f.auth.RequestOtp(context.Background(), RequestOtpInput{Email: email, Purpose: purpose})
	require.NoError(t, err)
	require.Equal(t, before+1, f.sender.count(), "expected a code to be sent")
	return f.sender.lastCode(t)
}

func (f *authFixture) actions(t *testing.T) []entity.SecurityAction {
	t.Helper()
	var logs []entity.SecurityLog
	require.NoError(t, f.db.Order("id ASC").Find(&logs).Error)
	out := make([]entity.SecurityAction, 0, len(logs))
	for _, log := range logs {
		out = append(out, log.Action)
	}
	return out
}

func registerInput(username, email, code string) RegisterInput {
	return RegisterInput{
		Username:  username,
		Email:     email,
		Password:  strongPassword,
		FirstName: "Ana",
		LastName:  "Reyes",
		OtpCode:   code,
	}
}

func ipPtr(ip string) *string {
	return &ip
}
