// @title        Virtual Learning Platform Auth API
// @version      1.0
// @description  Authentication, session and role management for the learning platform.
// @BasePath     /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/virtuallearning/platform/internal/api"
	"github.com/virtuallearning/platform/internal/api/handler"
	"github.com/virtuallearning/platform/internal/core/service"
	"github.com/virtuallearning/platform/internal/infrastructure/db/mongo"
	"github.com/virtuallearning/platform/internal/infrastructure/db/redis"
	"github.com/virtuallearning/platform/internal/infrastructure/queue"
	"github.com/virtuallearning/platform/internal/pkg/config"
	"github.com/virtuallearning/platform/pkg/logger"
)

const shutdownGracePeriod = 15 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "vlp-auth",
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "vlp-auth",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := mongo.Disconnect(mongoClient); err != nil {
			log.Error().Err(err).Msg("mongodb disconnect")
		}
	}()

	rdb, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	userRepo := mongo.NewUserRepository(db)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure user indexes")
	}

	auditRepo := mongo.NewAuditRepository(db)
	if err := auditRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure audit indexes")
	}
	// Audit workers outlive the signal context: they stop only after the
	// HTTP server has finished its in-flight requests.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	audit := queue.NewAuditDispatcher(0, auditRepo, log)
	audit.Start(auditCtx)

	tokens := service.NewTokenService(service.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	limiter := redis.NewLoginLimiter(rdb, cfg.Auth.LoginMaxFailures, cfg.Auth.LoginLockoutWindow)
	authService := service.NewAuthService(userRepo, tokens, limiter, log).WithAudit(audit)

	e := api.NewRouter(authService, api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.Auth.RateLimitRPS,
		RateLimitBurst: cfg.Auth.RateLimitBurst,
		Health: map[string]handler.Pinger{
			"mongodb": handler.PingerFunc(func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }),
			"redis":   handler.PingerFunc(func(ctx context.Context) error { return pingRedis(ctx, rdb) }),
		},
	}, log)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		serverErrors <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	stopAudit()
	if err := audit.Wait(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("audit trail not fully flushed")
	}
	log.Info().Msg("server stopped")
}

func pingRedis(ctx context.Context, rdb *goredis.Client) error {
	return rdb.Ping(ctx).Err()
}
