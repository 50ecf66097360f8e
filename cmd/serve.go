package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sims/api/handler"
	apiMiddleware "sims/api/middleware"
	"sims/api/routes"
	"sims/internal/entity"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			if autoMigrate {
				if err := app.db.WithContext(ctx).AutoMigrate(entity.Models()...); err != nil {
					return err
				}
			}
			return app.serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "run schema migration before serving")
	return cmd
}

func (a *application) serve(ctx context.Context) error {
	logger := a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestIDWithConfig(echoMiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(a.metrics.Middleware())
	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":     v.Status,
				"method":     v.Method,
				"uri":        v.URI,
				"ip":         v.RemoteIP,
				"request_id": v.RequestID,
				"latency_ms": v.Latency.Milliseconds(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authHandler := handler.NewAuthHandler(a.auth, a.validate)
	adminHandler := handler.NewAdminHandler(a.roles, a.validate)
	authMiddleware := apiMiddleware.AuthMiddleware{Verifier: a.auth}

	router := routes.NewRouter(e, authHandler, adminHandler, authMiddleware)
	router.Metrics = a.metrics.Handler()
	router.Health = a.ping
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("server started")
		errCh <- e.StartServer(server)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
