package handler

import (
	"errors"
	"net/http"
	"strings"

	"sims/api/middleware"
	"sims/internal/dto"
	"sims/internal/entity"
	"sims/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var errUnauthorized = errors.New("unauthorized")

type AuthHandler struct {
	Service  *service.AuthService
	Validate *validator.Validate
}

func NewAuthHandler(svc *service.AuthService, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		Service:  svc,
		Validate: validate,
	}
}

func (h *AuthHandler) RequestOtp(c echo.Context) error {
	var req dto.OtpRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	challenge, err := h.Service.RequestOtp(c.Request().Context(), service.RequestOtpInput{
		Email:     req.Email,
		Purpose:   entity.OtpPurpose(strings.TrimSpace(req.Purpose)),
		IPAddress: stringPtr(c.RealIP()),
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.OtpChallengeResponse{
		Success:         true,
		Message:         "If the address is eligible, a verification code has been sent",
		Purpose:         string(challenge.Purpose),
		TTLMinutes:      challenge.TTLMinutes,
		CooldownSeconds: challenge.CooldownSeconds,
	})
}

// Register creates an account. Field validation happens in the service so that
// every violation is reported with its label.
func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	input := service.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		Country:     req.Country,
		OtpCode:     req.OtpCode,
		Role:        req.Role,
		CallerToken: middleware.ExtractToken(c.Request()),
		IPAddress:   stringPtr(c.RealIP()),
	}
	result, err := h.Service.Register(c.Request().Context(), input)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AuthResponseFromResult(result, "User registered successfully"))
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Service.Login(c.Request().Context(), service.LoginInput{
		Identifier: req.Identifier(),
		Password:   req.Password,
		IPAddress:  stringPtr(c.RealIP()),
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	if result.RequiresOtp {
		return c.JSON(http.StatusOK, dto.LoginPendingResponse{
			Success:         true,
			RequiresOtp:     true,
			Email:           result.Email,
			TTLMinutes:      result.TTLMinutes,
			CooldownSeconds: result.CooldownSeconds,
			Message:         "Verification code sent to your email",
		})
	}
	return c.JSON(http.StatusOK, dto.AuthResponseFromResult(result.Auth, "Login successful"))
}

// VerifyLoginOtp completes a login that answered requires_otp.
func (h *AuthHandler) VerifyLoginOtp(c echo.Context) error {
	var req dto.OtpVerifyRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Service.CompleteLogin(c.Request().Context(), service.CompleteLoginInput{
		Email:     req.Email,
		Code:      req.Code,
		IPAddress: stringPtr(c.RealIP()),
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AuthResponseFromResult(result, "Login successful"))
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	result, err := h.Service.RefreshToken(c.Request().Context(), readRefreshToken(c), stringPtr(c.RealIP()))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AuthResponseFromResult(result, "Token refreshed"))
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.Service.Logout(c.Request().Context(), readRefreshToken(c), stringPtr(c.RealIP())); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "Logged out"})
}

func (h *AuthHandler) VerifyToken(c echo.Context) error {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errUnauthorized)
	}
	var resolver service.PermissionResolver
	caps := resolver.Resolve(identity.User, identity.Roles)
	return c.JSON(http.StatusOK, dto.VerifyResponse{
		Valid: true,
		User:  dto.UserResponseFromEntity(identity.User, identity.Roles, caps),
	})
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errUnauthorized)
	}
	profile, err := h.Service.Profile(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(profile.User, profile.Roles, profile.Capabilities))
}

func (h *AuthHandler) MyCapabilities(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errUnauthorized)
	}
	profile, err := h.Service.Profile(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.CapabilitiesFrom(profile.Capabilities))
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errUnauthorized)
	}
	var req dto.ChangePasswordRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	err := h.Service.ChangePassword(c.Request().Context(), userID, req.CurrentPassword, req.NewPassword, stringPtr(c.RealIP()))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "Password changed successfully"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req dto.ResetPasswordRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	err := h.Service.ResetPassword(c.Request().Context(), service.ResetPasswordInput{
		Email:       req.Email,
		Code:        req.Code,
		NewPassword: req.NewPassword,
		IPAddress:   stringPtr(c.RealIP()),
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "Password has been reset"})
}

func (h *AuthHandler) validate(payload any) error {
	return validatePayload(h.Validate, payload)
}

// readRefreshToken takes the body field first, then the bearer header, then X-Refresh-Token.
func readRefreshToken(c echo.Context) string {
	var req dto.RefreshRequest
	if err := decodeBody(c, &req); err == nil {
		if token := strings.TrimSpace(req.RefreshToken); token != "" {
			return token
		}
	}
	if token := middleware.BearerToken(c.Request()); token != "" {
		return token
	}
	return strings.TrimSpace(c.Request().Header.Get("X-Refresh-Token"))
}
