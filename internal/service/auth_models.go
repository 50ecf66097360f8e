package service

import (
	"sims/internal/entity"
	"sims/internal/utils"
)

// AdminOverrideCode replaces the OTP when a Super Admin creates an account.
const AdminOverrideCode = "ADMIN_OVERRIDE"

type RegisterInput struct {
	Username  string `label:"Username" validate:"required,max=50,noemoji"`
	Email     string `label:"Email" validate:"required,noemoji,email,max=255"`
	Password  string `label:"Password" validate:"required,max=72"`
	FirstName string `label:"First name" validate:"required,max=100,noemoji"`
	LastName  string `label:"Last name" validate:"required,max=100,noemoji"`
	Phone     string `label:"Phone" validate:"omitempty,max=30,noemoji"`
	Country   string `label:"Country" validate:"omitempty,max=100,noemoji"`

	OtpCode string `validate:"-"`
	Role    string `validate:"-"`

	// CallerToken is the bearer token of the request, consulted only for ADMIN_OVERRIDE.
	CallerToken string  `validate:"-"`
	IPAddress   *string `validate:"-"`
}

type LoginInput struct {
	Identifier string
	Password   string
	IPAddress  *string
}

type CompleteLoginInput struct {
	Email     string
	Code      string
	IPAddress *string
}

type RequestOtpInput struct {
	Email     string
	Purpose   entity.OtpPurpose
	IPAddress *string
}

type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
	IPAddress   *string
}

// AuthResult is a completed sign-in: a token pair plus the live profile.
type AuthResult struct {
	AccessToken      string
	AccessExpiresIn  int64
	RefreshToken     string
	RefreshExpiresIn int64
	User             *entity.User
	Roles            []string
	Capabilities     Capabilities
}

// LoginResult carries either a pending OTP challenge or a completed sign-in.
type LoginResult struct {
	RequiresOtp     bool
	Email           string
	TTLMinutes      int
	CooldownSeconds int
	Auth            *AuthResult
}

type OtpChallenge struct {
	Email           string
	Purpose         entity.OtpPurpose
	TTLMinutes      int
	CooldownSeconds int
}

// Identity is a verified access token checked against live account state.
type Identity struct {
	Claims *utils.Claims
	User   *entity.User
	Roles  []string
}

// Actor is the caller of an administrative operation.
type Actor struct {
	UserID int64
	Roles  []string
}

type Profile struct {
	User         *entity.User
	Roles        []string
	Capabilities Capabilities
}
