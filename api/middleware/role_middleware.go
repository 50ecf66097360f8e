package middleware

import (
	"net/http"

	"sims/internal/dto"
	"sims/internal/entity"
	"sims/internal/service"

	"github.com/labstack/echo/v4"
)

// RequireRole must run after RequireAuth. Roles come from the live lookup, not the token.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := IdentityFromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
			}
			if !service.HasRole(identity.Roles, role) {
				return echo.NewHTTPError(http.StatusForbidden, dto.ErrorResponse{Error: role + " role required"})
			}
			return next(c)
		}
	}
}

// RequireCapability gates storefront endpoints outside the auth routes, such as inventory
// or order management, on a resolved capability.
func RequireCapability(capability entity.Capability) echo.MiddlewareFunc {
	var resolver service.PermissionResolver
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := IdentityFromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
			}
			if !resolver.Resolve(identity.User, identity.Roles).Allows(capability) {
				return echo.NewHTTPError(http.StatusForbidden, dto.ErrorResponse{Error: "missing capability " + string(capability)})
			}
			return next(c)
		}
	}
}
