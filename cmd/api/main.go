package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ispcare/backend/internal/api"
	"github.com/ispcare/backend/internal/auth"
	"github.com/ispcare/backend/internal/cache"
	"github.com/ispcare/backend/internal/channel"
	"github.com/ispcare/backend/internal/config"
	"github.com/ispcare/backend/internal/domain"
	"github.com/ispcare/backend/internal/fcm"
	"github.com/ispcare/backend/internal/realtime"
	"github.com/ispcare/backend/internal/repository"
	"github.com/ispcare/backend/internal/storage"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Starting ISP notification API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := initDatabase(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to database")

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db, logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	repo := repository.NewPostgresRepository(db)
	healthDeps := map[string]api.Pinger{"postgres": repo}

	// OTP and session stores: redis when configured, else process memory
	var (
		otpStore     domain.OTPStore
		sessionStore domain.SessionStore
	)
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		otpStore = cache.NewRedisOTPStore(rdb, cfg.Redis.KeyPrefix, cfg.OTP.Retention)
		sessionStore = cache.NewRedisSessionStore(rdb, cfg.Redis.KeyPrefix)
		healthDeps["redis"] = api.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info("Using redis for sessions and OTPs", zap.String("addr", cfg.Redis.Addr))
	} else {
		memOTP := cache.NewMemoryOTPStore(cfg.OTP.Retention)
		memSessions := cache.NewMemorySessionStore()
		cache.StartJanitor(ctx, time.Minute, memOTP, memSessions)
		otpStore, sessionStore = memOTP, memSessions
		logger.Warn("REDIS_ADDR not set - sessions and OTPs are kept in process memory")
	}

	emailSender, err := initEmailSender(cfg.Email, logger)
	if err != nil {
		logger.Fatal("Failed to initialize email sender", zap.Error(err))
	}
	smsSender := initSMSSender(cfg.SMS, logger)

	var pushSender domain.PushSender
	if cfg.Firebase.Enabled {
		fcmClient, err := fcm.NewClient(ctx, logger, cfg.Firebase.CredentialsFile)
		if err != nil {
			logger.Warn("Failed to initialize Firebase client - push notifications will be disabled", zap.Error(err))
		} else {
			pushSender = fcmClient
			logger.Info("Firebase client initialized")
		}
	}

	archive, err := initArchive(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize archive storage", zap.Error(err))
	}

	hub := realtime.NewHub(logger, cfg.Server.AllowedOrigins)
	go hub.Run(ctx)

	// Services
	tokens := auth.NewTokenManager(cfg.Session.Secret)
	sessions := domain.NewSessionManager(sessionStore, tokens, cfg.Session.TTL)
	otps := domain.NewOTPManager(otpStore, cfg.OTP.TTL)
	authService := domain.NewAuthService(repo, sessions, otps, emailSender, logger)

	notificationService := domain.NewNotificationService(repo, repo, hub, pushSender, archive, logger)
	dispatcher := domain.NewDispatcher(repo, repo, emailSender, smsSender, notificationService, logger)

	notificationService.StartCleanupWorker(ctx, cfg.Notifications.CleanupInterval, cfg.Notifications.Retention)

	// Handlers
	authHandler := api.NewAuthHandler(authService, cfg.Server.AllowAdminSignup, logger)
	notificationHandler := api.NewNotificationHandler(notificationService, dispatcher, hub, logger)
	alertHandler := api.NewAlertHandler(dispatcher, notificationService, cfg.Notifications.Retention, logger)
	healthHandler := api.NewHealthHandler(healthDeps, logger)

	router := api.NewRouter(authHandler, notificationHandler, alertHandler, healthHandler, authService, cfg.Server.AllowedOrigins, logger)
	r := router.Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stops the cleanup worker, the janitor and the websocket hub
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func initDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func initEmailSender(cfg config.EmailConfig, logger *zap.Logger) (domain.EmailSender, error) {
	switch cfg.Provider {
	case "postmark":
		return channel.NewPostmarkEmailSender(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.From, cfg.PostmarkStream)
	case "smtp":
		return channel.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.From), nil
	default:
		logger.Warn("EMAIL_PROVIDER=log - emails are written to the log only")
		return channel.NewLogEmailSender(logger), nil
	}
}

func initSMSSender(cfg config.SMSConfig, logger *zap.Logger) domain.SMSSender {
	if cfg.Provider == "http" {
		return channel.NewHTTPSMSSender(cfg.GatewayURL, cfg.APIKey, cfg.SenderID, cfg.Timeout, logger)
	}
	logger.Warn("SMS_PROVIDER=log - text messages are written to the log only")
	return channel.NewLogSMSSender(logger)
}

// initArchive returns nil when archiving is disabled
func initArchive(ctx context.Context, cfg config.StorageConfig) (domain.ArchiveStorage, error) {
	var (
		fs  storage.FileStorage
		err error
	)
	switch cfg.Type {
	case "local":
		fs, err = storage.NewLocalFileStorage(cfg.LocalPath, cfg.LocalBaseURL)
	case "s3":
		fs, err = storage.NewS3Storage(ctx, cfg)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fs, nil
}
