package main

import (
	"context"
	"fmt"

	"sims/config"
	"sims/internal/metrics"
	"sims/internal/repository"
	"sims/internal/service"
	"sims/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// application holds the wired services shared by every command.
type application struct {
	cfg      config.Config
	logger   *logrus.Logger
	db       *gorm.DB
	redis    *redis.Client
	metrics  *metrics.Metrics
	validate *validator.Validate
	hasher   service.BcryptPasswordHasher
	policy   service.PasswordPolicy

	auth  *service.AuthService
	roles *service.RoleService
}

func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(cfg.Log)

	policy, err := config.LoadPasswordPolicy(cfg.Security.PasswordPolicyFile)
	if err != nil {
		return nil, err
	}
	db, err := config.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	redisClient, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	app := &application{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		redis:    redisClient,
		metrics:  metrics.New(cfg.Metrics.Namespace),
		validate: utils.NewValidator(),
		hasher:   service.BcryptPasswordHasher{Cost: cfg.Security.BcryptCost},
		policy:   policy,
	}
	app.wireServices()
	return app, nil
}

func (a *application) wireServices() {
	userRepo := repository.NewUserRepository(a.db)
	roleRepo := repository.NewRoleRepository(a.db)
	transactor := repository.NewTransactor(a.db)
	securityRepo := repository.NewSecurityLogRepository(a.db)

	tokens := &utils.TokenManager{
		AccessSecret:  []byte(a.cfg.JWT.AccessSecret),
		RefreshSecret: []byte(a.cfg.JWT.RefreshSecret),
		Issuer:        a.cfg.JWT.Issuer,
		AccessTTL:     a.cfg.JWT.AccessTTL,
		RefreshTTL:    a.cfg.JWT.RefreshTTL,
	}

	sender := service.NewResendOtpSender(a.cfg.Mail.ResendAPIKey, a.cfg.Mail.From, a.cfg.Mail.AppName)
	if !sender.Enabled() {
		a.logger.Warn("RESEND_API_KEY or MAIL_FROM not set, logins complete without an emailed code")
	}

	deps := service.AuthDependencies{
		Users:         userRepo,
		Roles:         roleRepo,
		Transactor:    transactor,
		OtpCodes:      repository.NewOtpRepository(a.db),
		LoginAttempts: repository.NewLoginAttemptRepository(a.db),
		SecurityLogs:  securityRepo,
		OtpSender:     sender,
		Passwords:     a.hasher,
		Tokens:        tokens,
		Validate:      a.validate,
		Clock:         service.RealClock{},
		Logger:        a.logger,
		Metrics:       a.metrics,
	}
	if a.redis != nil {
		deps.RefreshTokens = repository.NewRefreshTokenStore(a.redis, "")
	}

	a.auth = service.NewAuthService(deps, a.cfg.ServiceConfig(a.policy))
	a.roles = service.NewRoleService(userRepo, roleRepo, transactor, securityRepo, a.logger)
}

func (a *application) ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *application) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
