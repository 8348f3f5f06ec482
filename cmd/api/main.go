package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"astral-auth/internal/config"
	"astral-auth/internal/db"
	"astral-auth/internal/email"
	apihttp "astral-auth/internal/http"
	"astral-auth/internal/repository"
	"astral-auth/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sentryEnabled := false
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
		}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
		}
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("db schema", zap.Error(err))
	}

	profileRepo := repository.NewPgProfileRepository(pool)
	identityRepo := repository.NewPgIdentityRepository(pool)

	emailSender := email.Sender(email.NewDisabledSender("email sender not configured"))
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	} else if cfg.AppEnv == "development" {
		emailSender = email.NewLogSender(logger)
	}

	var (
		otpLimiter  service.OTPRateLimiter
		tokenStore  service.RefreshTokenStore
		challenges  service.ChallengeStore
		redisClient *redis.Client
	)
	bus := service.NewIdentityBus()
	notifiers := []service.IdentityNotifier{bus}

	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, cfg.OTPResendWindow(), 1, logger)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			challenges = service.NewRedisChallengeStore(redisClient)
			notifiers = append(notifiers, service.NewRedisIdentityPublisher(redisClient, cfg.IdentityChannel, logger))

			subscriber := service.NewRedisIdentitySubscriber(redisClient, cfg.IdentityChannel, bus, logger)
			if err := subscriber.Start(ctx); err != nil {
				logger.Warn("identity subscriber start failed", zap.Error(err))
			} else {
				defer subscriber.Close()
			}
		}
		cancel()
	}
	if otpLimiter == nil {
		otpLimiter = service.NewOTPRateLimiter(cfg.OTPResendWindow(), 1)
	}

	var (
		store  service.CredentialStore
		jwtSvc *service.JWTService
	)
	switch cfg.CredentialStore {
	case config.CredentialStoreRemote:
		remote, err := service.NewRemoteCredentialStore(cfg.CredentialStoreURL, cfg.CredentialStoreAPIKey, logger)
		if err != nil {
			logger.Fatal("remote credential store", zap.Error(err))
		}
		store = remote
	default:
		if err := cfg.Validate(); err != nil {
			logger.Fatal("invalid config", zap.Error(err))
		}
		jwtSvc = service.NewJWTService(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), tokenStore)
		store = service.NewLocalCredentialStore(
			logger,
			identityRepo,
			challenges,
			otpLimiter,
			emailSender,
			jwtSvc,
			service.WithOTPTTL(cfg.OTPTTL()),
			service.WithMaxAttempts(cfg.OTPMaxAttempts),
		)
	}

	identityCache := service.NewIdentityCache(profileRepo, 0)
	bus.Subscribe(identityCache.HandleIdentityEvent)

	authSvc := service.NewAuthService(logger, store, profileRepo, service.NewMultiNotifier(logger, notifiers...))

	checks := map[string]apihttp.HealthCheck{
		"postgres": func(ctx context.Context) error { return db.Ping(ctx, pool) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	authHandler := apihttp.NewAuthHandler(logger, authSvc, jwtSvc, identityCache, apihttp.CookieConfig{
		Name:   cfg.SessionCookieName,
		Secure: cfg.SessionCookieSecure,
	})
	healthHandler := apihttp.NewHealthHandler(logger, checks)
	router := apihttp.NewRouter(logger, authHandler, healthHandler, apihttp.RouterOptions{
		JWT:           jwtSvc,
		CookieName:    cfg.SessionCookieName,
		SentryEnabled: sentryEnabled,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("credential_store", cfg.CredentialStore),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
