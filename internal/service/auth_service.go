package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"sims/internal/entity"
	"sims/internal/metrics"
	"sims/internal/repository"
	"sims/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

type AuthDependencies struct {
	Users         repository.UserRepository
	Roles         repository.RoleRepository
	Transactor    repository.Transactor
	OtpCodes      repository.OtpRepository
	LoginAttempts repository.LoginAttemptRepository
	SecurityLogs  repository.SecurityLogRepository

	OtpSender     OtpSender
	Passwords     PasswordHasher
	Tokens        TokenIssuer
	RefreshTokens RefreshTokenStore
	Validate      *validator.Validate
	Clock         Clock
	Logger        logrus.FieldLogger
	Metrics       *metrics.Metrics
}

type AuthService struct {
	users    repository.UserRepository
	roles    repository.RoleRepository
	tx       repository.Transactor
	attempts repository.LoginAttemptRepository
	audit    auditTrail

	ledger        *OtpLedger
	otpPolicy     *OtpPolicy
	otpSender     OtpSender
	passwords     PasswordHasher
	tokens        TokenIssuer
	refreshTokens RefreshTokenStore
	permissions   PermissionResolver
	validate      *validator.Validate
	clock         Clock
	config        AuthConfig
	logger        logrus.FieldLogger
	metrics       *metrics.Metrics
}

func NewAuthService(deps AuthDependencies, config AuthConfig) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	clock := deps.Clock
	if clock == nil {
		clock = RealClock{}
	}
	sender := deps.OtpSender
	if sender == nil {
		sender = DisabledOtpSender{}
	}
	passwords := deps.Passwords
	if passwords == nil {
		passwords = BcryptPasswordHasher{}
	}
	validate := deps.Validate
	if validate == nil {
		validate = utils.NewValidator()
	}
	return &AuthService{
		users:         deps.Users,
		roles:         deps.Roles,
		tx:            deps.Transactor,
		attempts:      deps.LoginAttempts,
		audit:         auditTrail{logs: deps.SecurityLogs, logger: logger},
		ledger:        NewOtpLedger(deps.OtpCodes, clock, config, logger),
		otpPolicy:     NewOtpPolicy(deps.OtpCodes, clock, config),
		otpSender:     sender,
		passwords:     passwords,
		tokens:        deps.Tokens,
		refreshTokens: deps.RefreshTokens,
		validate:      validate,
		clock:         clock,
		config:        config,
		logger:        logger,
		metrics:       deps.Metrics,
	}
}

// Register creates an account gated by a register OTP, or by a Super Admin token when
// the code is ADMIN_OVERRIDE. The user row and its role link are written atomically.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input = normalizeRegisterInput(input)
	if err := s.validateStruct(input); err != nil {
		return nil, err
	}

	override := input.OtpCode == AdminOverrideCode
	if override {
		if err := s.authorizeOverride(ctx, input.CallerToken); err != nil {
			return nil, err
		}
	} else if input.OtpCode == "" {
		return nil, newValidationError("Verification code is required")
	}

	policy := s.config.passwordPolicy()
	if err := policy.Validate(input.Password, input.Username, input.Email, input.FirstName, input.LastName); err != nil {
		return nil, err
	}

	if !override {
		if _, err := s.verifyOtp(ctx, input.Email, entity.OtpRegister, input.OtpCode, input.IPAddress); err != nil {
			return nil, err
		}
	}

	taken, err := s.users.ExistsUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	taken, err = s.users.ExistsEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	roleName := entity.RoleClient
	if override && grantsAllCapabilities(input.Role) {
		roleName = input.Role
	}
	privileged := grantsAllCapabilities(roleName)

	user := &entity.User{
		Username:             input.Username,
		Email:                input.Email,
		PasswordHash:         hash,
		FirstName:            input.FirstName,
		LastName:             input.LastName,
		Phone:                optionalString(input.Phone),
		Country:              input.Country,
		Role:                 roleName,
		IsActive:             true,
		CanAccessInventory:   boolPtr(privileged),
		CanAccessOrders:      boolPtr(privileged),
		CanAccessChatSupport: boolPtr(privileged),
	}
	if user.Country == "" {
		user.Country = s.config.defaultCountry()
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAccountExists
			}
			return err
		}
		role, err := s.roles.EnsureRole(ctx, roleName)
		if err != nil {
			return err
		}
		return s.roles.Link(ctx, user.ID, role.ID)
	})
	if err != nil {
		return nil, err
	}

	s.audit.record(ctx, &user.ID, input.IPAddress, entity.RegisterSuccess, map[string]any{
		"role":           roleName,
		"admin_override": override,
	})
	if override {
		s.metrics.Registration("admin_override")
	} else {
		s.metrics.Registration("otp")
	}
	return s.issueSession(user, []string{roleName})
}

// Login checks the password and, when an OTP sender is available, starts the OTP step.
// Without a sender the login completes on the password alone.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return nil, newValidationError("Username and password are required")
	}

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = s.passwords.Verify(dummyPasswordHash, input.Password)
		s.failLogin(ctx, identifier, nil, input.IPAddress, entity.LoginFailed)
		return nil, ErrBadLogin
	}
	if !s.passwords.Verify(user.PasswordHash, input.Password) {
		s.failLogin(ctx, identifier, &user.ID, input.IPAddress, entity.LoginFailed)
		return nil, ErrBadLogin
	}
	if !user.IsActive {
		s.failLogin(ctx, identifier, &user.ID, input.IPAddress, entity.LoginFailedInactive)
		return nil, ErrAccountInactive
	}

	s.recordAttempt(ctx, identifier, input.IPAddress, true)
	s.rehashIfNeeded(ctx, user, input.Password)
	s.audit.record(ctx, &user.ID, input.IPAddress, entity.LoginPasswordVerified, nil)

	if !s.otpSender.Enabled() {
		s.logger.WithField("user_id", user.ID).Warn("otp sender disabled, completing login on password only")
		auth, err := s.finishLogin(ctx, user, input.IPAddress, "password")
		if err != nil {
			return nil, err
		}
		return &LoginResult{Auth: auth}, nil
	}

	challenge, err := s.sendLoginOtp(ctx, user, input.IPAddress)
	if err != nil {
		return nil, err
	}
	s.metrics.Login("otp_required")
	return &LoginResult{
		RequiresOtp:     true,
		Email:           user.Email,
		TTLMinutes:      challenge.TTLMinutes,
		CooldownSeconds: challenge.CooldownSeconds,
	}, nil
}

// CompleteLogin finishes a login that is waiting on its OTP.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*AuthResult, error) {
	email := utils.NormalizeEmail(input.Email)
	code := strings.TrimSpace(input.Code)
	if email == "" || code == "" {
		return nil, newValidationError("Email and verification code are required")
	}

	row, err := s.verifyOtp(ctx, email, entity.OtpLogin, code, input.IPAddress)
	if err != nil {
		return nil, err
	}

	var user *entity.User
	if row.UserID != nil {
		user, err = s.users.FindByID(ctx, *row.UserID)
	} else {
		user, err = s.users.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidOtp
	}
	if !user.IsActive {
		s.failLogin(ctx, email, &user.ID, input.IPAddress, entity.LoginFailedInactive)
		return nil, ErrAccountInactive
	}
	return s.finishLogin(ctx, user, input.IPAddress, "otp")
}

// RefreshToken rotates a refresh token into a new pair carrying the user's current roles.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string, ipAddress *string) (*AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrMissingToken
	}
	claims, err := s.tokens.Verify(refreshToken, utils.RefreshToken)
	if err != nil {
		s.metrics.Refresh("rejected")
		return nil, mapTokenError(err)
	}

	if s.singleUseRefresh() {
		fresh, err := s.refreshTokens.Claim(ctx, claims.ID, s.remaining(claims))
		if err != nil {
			return nil, err
		}
		if !fresh {
			s.metrics.Refresh("reused")
			return nil, ErrRefreshReused
		}
	}

	user, roles, err := s.liveAccount(ctx, claims.UserID)
	if err != nil {
		s.metrics.Refresh("rejected")
		return nil, err
	}
	result, err := s.issueSession(user, roles)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, &user.ID, ipAddress, entity.TokenRefreshed, nil)
	s.metrics.Refresh("ok")
	return result, nil
}

// VerifyToken accepts an access token only while its account is still active.
func (s *AuthService) VerifyToken(ctx context.Context, accessToken string) (*Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, ErrMissingToken
	}
	claims, err := s.tokens.Verify(accessToken, utils.AccessToken)
	if err != nil {
		return nil, mapTokenError(err)
	}
	user, roles, err := s.liveAccount(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return &Identity{Claims: claims, User: user, Roles: roles}, nil
}

func (s *AuthService) ChangePassword(
	ctx context.Context,
	userID int64,
	currentPassword string,
	newPassword string,
	ipAddress *string,
) error {
	if currentPassword == "" || newPassword == "" {
		return newValidationError("Current and new passwords are required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if !user.IsActive {
		return ErrAccountInactive
	}
	if !s.passwords.Verify(user.PasswordHash, currentPassword) {
		return ErrWrongPassword
	}
	policy := s.config.passwordPolicy()
	if err := policy.Validate(newPassword, user.Username, user.Email); err != nil {
		return err
	}
	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.audit.record(ctx, &user.ID, ipAddress, entity.PasswordChanged, nil)
	return nil
}

// ResetPassword sets a new password for the owner of a reset_password code.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	email := utils.NormalizeEmail(input.Email)
	code := strings.TrimSpace(input.Code)
	if email == "" || code == "" || input.NewPassword == "" {
		return newValidationError("Email, verification code and new password are required")
	}
	policy := s.config.passwordPolicy()
	if err := policy.Validate(input.NewPassword, email); err != nil {
		return err
	}
	if _, err := s.verifyOtp(ctx, email, entity.OtpResetPassword, code, input.IPAddress); err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidOtp
	}
	hash, err := s.passwords.Hash(input.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.audit.record(ctx, &user.ID, input.IPAddress, entity.PasswordReset, map[string]any{"source": "otp"})
	return nil
}

// RequestOtp issues and mails a code. For unknown accounts (login, reset) and taken
// emails (register) it answers with the same challenge without sending anything.
func (s *AuthService) RequestOtp(ctx context.Context, input RequestOtpInput) (*OtpChallenge, error) {
	email := utils.NormalizeEmail(input.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, newValidationError("Invalid email format")
	}
	if !input.Purpose.Valid() {
		return nil, newValidationError("Invalid purpose")
	}
	if !s.domainAllowed(email) {
		return nil, newValidationError("Email domain is not allowed")
	}
	if !s.otpSender.Enabled() {
		return nil, ErrOtpUnavailable
	}
	if err := s.otpPolicy.Check(ctx, email, input.Purpose, input.IPAddress); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	generic := &OtpChallenge{
		Email:           email,
		Purpose:         input.Purpose,
		TTLMinutes:      s.ledger.TTLMinutes(),
		CooldownSeconds: s.otpPolicy.CooldownSeconds(),
	}
	if !s.config.OtpSendAlways {
		if input.Purpose == entity.OtpRegister && user != nil {
			s.logger.WithField("purpose", input.Purpose).Info("otp suppressed for registered email")
			return generic, nil
		}
		if input.Purpose != entity.OtpRegister && (user == nil || !user.IsActive) {
			s.logger.WithField("purpose", input.Purpose).Info("otp suppressed for unknown account")
			return generic, nil
		}
	}

	var userID *int64
	if user != nil {
		userID = &user.ID
	}
	return s.issueAndSend(ctx, email, input.Purpose, userID, input.IPAddress)
}

// Logout spends the refresh token when single-use refresh is on. Otherwise tokens are
// stateless and logout only records the event.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, ipAddress *string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.Verify(refreshToken, utils.RefreshToken)
	if err != nil {
		return nil
	}
	if s.singleUseRefresh() {
		if _, err := s.refreshTokens.Claim(ctx, claims.ID, s.remaining(claims)); err != nil {
			return err
		}
	}
	s.audit.record(ctx, &claims.UserID, ipAddress, entity.Logout, nil)
	return nil
}

func (s *AuthService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	roles, err := s.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Roles: roles, Capabilities: s.permissions.Resolve(user, roles)}, nil
}

func (s *AuthService) authorizeOverride(ctx context.Context, callerToken string) error {
	if strings.TrimSpace(callerToken) == "" {
		return ErrOverrideNotAllowed
	}
	claims, err := s.tokens.Verify(callerToken, utils.AccessToken)
	if err != nil || !HasRole(claims.Roles, entity.RoleSuperAdmin) {
		return ErrOverrideNotAllowed
	}
	caller, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if caller == nil || !caller.IsActive {
		return ErrOverrideNotAllowed
	}
	roles, err := s.roles.RolesForUser(ctx, caller.ID)
	if err != nil {
		return err
	}
	if !HasRole(roles, entity.RoleSuperAdmin) {
		return ErrOverrideNotAllowed
	}
	return nil
}

func (s *AuthService) verifyOtp(
	ctx context.Context,
	email string,
	purpose entity.OtpPurpose,
	code string,
	ipAddress *string,
) (*entity.OtpCode, error) {
	row, err := s.ledger.Verify(ctx, email, purpose, code)
	if err != nil {
		if errors.Is(err, ErrInvalidOtp) {
			s.metrics.OtpVerified(string(purpose), false)
			s.audit.record(ctx, nil, ipAddress, entity.OtpVerifyFailed, map[string]any{
				"email":   utils.NormalizeEmail(email),
				"purpose": purpose,
			})
		}
		return nil, err
	}
	s.metrics.OtpVerified(string(purpose), true)
	return row, nil
}

func (s *AuthService) sendLoginOtp(ctx context.Context, user *entity.User, ipAddress *string) (*OtpChallenge, error) {
	remaining, err := s.otpPolicy.CooldownRemaining(ctx, user.Email, entity.OtpLogin)
	if err != nil {
		return nil, err
	}
	live := false
	if remaining > 0 {
		if live, err = s.ledger.HasLive(ctx, user.Email, entity.OtpLogin); err != nil {
			return nil, err
		}
	}
	if live {
		// The code sent moments ago is still the one to use.
		return &OtpChallenge{
			Email:           user.Email,
			Purpose:         entity.OtpLogin,
			TTLMinutes:      s.ledger.TTLMinutes(),
			CooldownSeconds: secondsCeil(remaining),
		}, nil
	}
	if err := s.otpPolicy.Check(ctx, user.Email, entity.OtpLogin, ipAddress); err != nil {
		return nil, err
	}
	return s.issueAndSend(ctx, user.Email, entity.OtpLogin, &user.ID, ipAddress)
}

func (s *AuthService) issueAndSend(
	ctx context.Context,
	email string,
	purpose entity.OtpPurpose,
	userID *int64,
	ipAddress *string,
) (*OtpChallenge, error) {
	code, _, err := s.ledger.Issue(ctx, email, purpose, userID, ipAddress)
	if err != nil {
		return nil, err
	}
	s.metrics.OtpIssued(string(purpose))

	ttl := s.ledger.TTLMinutes()
	if err := s.otpSender.SendOtp(ctx, email, s.otpSubject(purpose), code, ttl); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"email":   email,
			"purpose": purpose,
		}).Error("otp delivery failed")
		return nil, &OtpDeliveryError{Err: err}
	}
	return &OtpChallenge{
		Email:           email,
		Purpose:         purpose,
		TTLMinutes:      ttl,
		CooldownSeconds: s.otpPolicy.CooldownSeconds(),
	}, nil
}

func (s *AuthService) finishLogin(ctx context.Context, user *entity.User, ipAddress *string, method string) (*AuthResult, error) {
	now := s.clock.Now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("last_login update failed")
	} else {
		user.LastLogin = &now
	}
	roles, err := s.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	result, err := s.issueSession(user, roles)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, &user.ID, ipAddress, entity.LoginSuccess, map[string]any{"method": method})
	s.metrics.Login("success")
	return result, nil
}

func (s *AuthService) issueSession(user *entity.User, roles []string) (*AuthResult, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Username, roles)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(user.ID, user.Username, roles)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:      access.Token,
		AccessExpiresIn:  int64(access.TTL.Seconds()),
		RefreshToken:     refresh.Token,
		RefreshExpiresIn: int64(refresh.TTL.Seconds()),
		User:             user,
		Roles:            roles,
		Capabilities:     s.permissions.Resolve(user, roles),
	}, nil
}

func (s *AuthService) liveAccount(ctx context.Context, userID int64) (*entity.User, []string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, nil, ErrAccountInactive
	}
	roles, err := s.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, roles, nil
}

func (s *AuthService) failLogin(
	ctx context.Context,
	identifier string,
	userID *int64,
	ipAddress *string,
	action entity.SecurityAction,
) {
	s.recordAttempt(ctx, identifier, ipAddress, false)
	s.audit.record(ctx, userID, ipAddress, action, map[string]any{"identifier": identifier})
	if action == entity.LoginFailedInactive {
		s.metrics.Login("inactive")
		return
	}
	s.metrics.Login("failed")
}

func (s *AuthService) recordAttempt(ctx context.Context, identifier string, ipAddress *string, success bool) {
	if s.attempts == nil {
		return
	}
	attempt := &entity.LoginAttempt{
		Identifier: identifier,
		IPAddress:  ipAddress,
		Success:    success,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.attempts.Record(ctx, attempt); err != nil {
		s.logger.WithError(err).WithField("identifier", identifier).Warn("login attempt record failed")
	}
}

func (s *AuthService) rehashIfNeeded(ctx context.Context, user *entity.User, password string) {
	if !s.passwords.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.passwords.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("password rehash failed")
		return
	}
	user.PasswordHash = hash
}

func (s *AuthService) validateStruct(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return err
	}
	messages := utils.ValidationMessages(err)
	return newValidationError(messages[0], messages...)
}

func (s *AuthService) domainAllowed(email string) bool {
	if len(s.config.OtpAllowedDomains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, allowed := range s.config.OtpAllowedDomains {
		if strings.EqualFold(strings.TrimSpace(allowed), domain) {
			return true
		}
	}
	return false
}

func (s *AuthService) otpSubject(purpose entity.OtpPurpose) string {
	app := s.config.appName()
	switch purpose {
	case entity.OtpRegister:
		return "Your " + app + " registration code"
	case entity.OtpResetPassword:
		return "Reset your " + app + " password"
	default:
		return "Your " + app + " login code"
	}
}

func (s *AuthService) singleUseRefresh() bool {
	return s.config.RefreshSingleUse && s.refreshTokens != nil
}

func (s *AuthService) remaining(claims *utils.Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Time.Sub(s.clock.Now())
}

func mapTokenError(err error) error {
	if errors.Is(err, utils.ErrWrongTokenKind) {
		return ErrWrongTokenKind
	}
	return ErrInvalidToken
}

func normalizeRegisterInput(input RegisterInput) RegisterInput {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = utils.NormalizeEmail(input.Email)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Country = strings.TrimSpace(input.Country)
	input.OtpCode = strings.TrimSpace(input.OtpCode)
	input.Role = strings.TrimSpace(input.Role)
	return input
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
