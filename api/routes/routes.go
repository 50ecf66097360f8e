package routes

import (
	"context"
	"net/http"
	"time"

	"sims/api/handler"
	"sims/api/middleware"
	"sims/internal/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// HealthCheck reports whether the service's backing stores answer.
type HealthCheck func(ctx context.Context) error

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	Admin          *handler.AdminHandler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       *middleware.RateLimiter
	LoginRate      *middleware.RateLimiter
	OtpRate        *middleware.RateLimiter
	Metrics        http.Handler
	Health         HealthCheck
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	adminHandler *handler.AdminHandler,
	authMiddleware middleware.AuthMiddleware,
) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		Admin:          adminHandler,
		AuthMiddleware: authMiddleware,
		AuthRate:       middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:      middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
		OtpRate:        middleware.NewRateLimiter(rate.Every(10*time.Second), 3, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo
	requireAuth := r.AuthMiddleware.RequireAuth

	e.POST("/auth/otp/request", r.Auth.RequestOtp, r.OtpRate.Middleware())
	e.POST("/auth/otp/verify", r.Auth.VerifyLoginOtp, r.LoginRate.Middleware())
	e.POST("/auth/register", r.Auth.Register, r.AuthRate.Middleware())
	e.POST("/auth/login", r.Auth.Login, r.LoginRate.Middleware())
	e.POST("/auth/refresh", r.Auth.Refresh, r.AuthRate.Middleware())
	e.POST("/auth/password/reset", r.Auth.ResetPassword, r.LoginRate.Middleware())
	e.POST("/auth/logout", r.Auth.Logout, r.AuthRate.Middleware())

	e.GET("/auth/verify", r.Auth.VerifyToken, requireAuth)
	e.POST("/auth/password/change", r.Auth.ChangePassword, requireAuth)
	e.GET("/me", r.Auth.Me, requireAuth)
	e.GET("/me/capabilities", r.Auth.MyCapabilities, requireAuth)

	admin := e.Group("/admin", requireAuth, middleware.RequireRole(entity.RoleSuperAdmin))
	admin.GET("/users", r.Admin.ListUsers)
	admin.POST("/users/:id/roles", r.Admin.AssignRole)
	admin.DELETE("/users/:id/roles/:role", r.Admin.RemoveRole)
	admin.PUT("/users/:id/capabilities/:capability", r.Admin.SetCapability)
	admin.PUT("/users/:id/active", r.Admin.SetActive)

	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics))
	}
	e.GET("/healthz", r.healthz)
}

func (r *Router) healthz(c echo.Context) error {
	if r.Health != nil {
		if err := r.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
