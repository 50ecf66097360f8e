package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"sims/internal/dto"
	"sims/internal/service"

	"github.com/labstack/echo/v4"
)

type TokenVerifier interface {
	VerifyToken(ctx context.Context, accessToken string) (*service.Identity, error)
}

type AuthMiddleware struct {
	Verifier TokenVerifier
}

// RequireAuth accepts a valid access token whose account is still active.
func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.Verifier == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
		}
		token := ExtractToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, dto.ErrorResponse{Error: service.ErrMissingToken.Error()})
		}
		identity, err := m.Verifier.VerifyToken(c.Request().Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, dto.ErrorResponse{Error: err.Error()})
		case errors.Is(err, service.ErrUnauthorized):
			return echo.NewHTTPError(http.StatusUnauthorized, dto.ErrorResponse{Error: err.Error()})
		default:
			return err
		}
		SetIdentity(c, identity)
		return next(c)
	}
}

// ExtractToken looks at the Authorization bearer, then X-Auth-Token, then the token query parameter.
func ExtractToken(r *http.Request) string {
	if token := BearerToken(r); token != "" {
		return token
	}
	if token := strings.TrimSpace(r.Header.Get("X-Auth-Token")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func BearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
