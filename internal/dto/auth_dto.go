package dto

import (
	"time"

	"sims/internal/entity"
	"sims/internal/service"
)

type RegisterRequest struct {
	Username  string `json:"username" form:"username"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	Phone     string `json:"phone" form:"phone"`
	Country   string `json:"country" form:"country"`
	OtpCode   string `json:"otp_code" form:"otp_code"`
	Role      string `json:"role" form:"role"`
}

// LoginRequest accepts either username or email in the username field.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (r LoginRequest) Identifier() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Email
}

type OtpRequest struct {
	Email   string `json:"email" form:"email" validate:"required"`
	Purpose string `json:"purpose" form:"purpose" validate:"required"`
}

type OtpVerifyRequest struct {
	Email string `json:"email" form:"email" validate:"required"`
	Code  string `json:"code" form:"code" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" form:"new_password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" form:"email" validate:"required"`
	Code        string `json:"code" form:"code" validate:"required"`
	NewPassword string `json:"new_password" form:"new_password" validate:"required"`
}

type AssignRoleRequest struct {
	Role string `json:"role" form:"role" validate:"required"`
}

type SetCapabilityRequest struct {
	Enabled *bool `json:"enabled" form:"enabled" validate:"required"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" form:"active" validate:"required"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type CapabilitiesResponse struct {
	CanAccessInventory   bool `json:"can_access_inventory"`
	CanAccessOrders      bool `json:"can_access_orders"`
	CanAccessChatSupport bool `json:"can_access_chat_support"`
	FullAccess           bool `json:"full_access"`
}

type UserResponse struct {
	ID           int64                `json:"id"`
	Username     string               `json:"username"`
	Email        string               `json:"email"`
	FirstName    string               `json:"first_name"`
	LastName     string               `json:"last_name"`
	Phone        *string              `json:"phone,omitempty"`
	Country      string               `json:"country,omitempty"`
	Role         string               `json:"role"`
	Roles        []string             `json:"roles"`
	IsActive     bool                 `json:"is_active"`
	Capabilities CapabilitiesResponse `json:"capabilities"`
	LastLogin    *time.Time           `json:"last_login,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

type AuthResponse struct {
	Success          bool         `json:"success"`
	Message          string       `json:"message,omitempty"`
	Token            string       `json:"token"`
	ExpiresIn        int64        `json:"expires_in"`
	RefreshToken     string       `json:"refresh_token"`
	RefreshExpiresIn int64        `json:"refresh_expires_in"`
	User             UserResponse `json:"user"`
}

// LoginPendingResponse tells the client to submit the emailed code to /auth/otp/verify.
type LoginPendingResponse struct {
	Success         bool   `json:"success"`
	RequiresOtp     bool   `json:"requires_otp"`
	Email           string `json:"email"`
	TTLMinutes      int    `json:"ttl_minutes"`
	CooldownSeconds int    `json:"cooldown_seconds"`
	Message         string `json:"message"`
}

type OtpChallengeResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	Purpose         string `json:"purpose"`
	TTLMinutes      int    `json:"ttl_minutes"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

type VerifyResponse struct {
	Valid bool         `json:"valid"`
	User  UserResponse `json:"user"`
}

type RolesResponse struct {
	UserID      int64    `json:"user_id"`
	Roles       []string `json:"roles"`
	PrimaryRole string   `json:"primary_role"`
}

func CapabilitiesFrom(caps service.Capabilities) CapabilitiesResponse {
	return CapabilitiesResponse{
		CanAccessInventory:   caps.Inventory,
		CanAccessOrders:      caps.Orders,
		CanAccessChatSupport: caps.ChatSupport,
		FullAccess:           caps.FullAccess,
	}
}

func UserResponseFromEntity(user *entity.User, roles []string, caps service.Capabilities) UserResponse {
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Phone:        user.Phone,
		Country:      user.Country,
		Role:         service.PrimaryRole(roles),
		Roles:        roles,
		IsActive:     user.IsActive,
		Capabilities: CapabilitiesFrom(caps),
		LastLogin:    user.LastLogin,
		CreatedAt:    user.CreatedAt,
	}
}

// UserResponsesFromEntities renders a listing from the stored display label, without a role lookup per row.
func UserResponsesFromEntities(users []entity.User) []UserResponse {
	var resolver service.PermissionResolver
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		user := &users[i]
		roles := []string{}
		if user.Role != "" {
			roles = append(roles, user.Role)
		}
		responses = append(responses, UserResponseFromEntity(user, roles, resolver.Resolve(user, roles)))
	}
	return responses
}

func AuthResponseFromResult(result *service.AuthResult, message string) AuthResponse {
	return AuthResponse{
		Success:          true,
		Message:          message,
		Token:            result.AccessToken,
		ExpiresIn:        result.AccessExpiresIn,
		RefreshToken:     result.RefreshToken,
		RefreshExpiresIn: result.RefreshExpiresIn,
		User:             UserResponseFromEntity(result.User, result.Roles, result.Capabilities),
	}
}
