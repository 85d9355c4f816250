package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-videotube/internal/config"
	"go-videotube/internal/database"
	"go-videotube/internal/event"
	"go-videotube/internal/handler"
	"go-videotube/internal/middleware"
	"go-videotube/internal/repository"
	"go-videotube/internal/repository/sqlitestore"
	"go-videotube/internal/router"
	"go-videotube/internal/security"
	"go-videotube/internal/service"
	"go-videotube/internal/storage"
	"go-videotube/internal/telemetry"
)

type App struct {
	server       *http.Server
	logger       *slog.Logger
	cleanupFuncs []func()
}

type stores struct {
	users         service.UserStore
	subscriptions service.SubscriptionStore
	audit         service.AuditStore
	health        handler.HealthCheck
	close         func()
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.onClose(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	})

	db, err := openStores(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.onClose(db.close)

	handlers, authMiddleware, err := a.wire(ctx, cfg, db)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router.New(cfg, logger, authMiddleware, handlers),
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

func (a *App) wire(ctx context.Context, cfg *config.Config, db stores) (router.Handlers, *middleware.AuthMiddleware, error) {
	logger := a.logger

	hasher, err := security.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return router.Handlers{}, nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	codec, err := security.NewTokenCodec(security.TokenCodecConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	if err != nil {
		return router.Handlers{}, nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	if err := os.MkdirAll(cfg.UploadTempDir, 0o755); err != nil {
		return router.Handlers{}, nil, fmt.Errorf("failed to create upload temp dir: %w", err)
	}

	var (
		uploader     storage.Uploader
		mediaHandler *handler.MediaHandler
	)
	switch cfg.StorageDriver {
	case config.StorageS3:
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return router.Handlers{}, nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		uploader = s3Store
		logger.Info("media storage ready", "driver", "s3", "bucket", cfg.S3Bucket)
	default:
		localStore, err := storage.NewLocalStore(cfg.LocalStorageRoot, cfg.LocalStorageBaseURL)
		if err != nil {
			return router.Handlers{}, nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		uploader = localStore
		mediaHandler = handler.NewMediaHandler(localStore.Paths())
		logger.Info("media storage ready", "driver", "local", "root", localStore.Root())
	}

	bus := event.NewBus(logger)
	auditService := service.NewAuditService(db.audit, logger)
	a.onClose(auditService.Start(bus))

	verifier := service.NewCredentialVerifier(db.users, hasher, logger)
	sessionService := service.NewSessionService(db.users, verifier, hasher, codec, bus, service.SessionConfig{
		RevokeOnRefreshReuse:   cfg.RevokeOnRefreshReuse,
		RotationGrace:          cfg.RefreshRotationGrace,
		RevokeOnPasswordChange: cfg.RevokeOnPasswordChange,
	}, logger)
	mediaService := service.NewMediaService(uploader, logger)
	accountService := service.NewAccountService(db.users, db.subscriptions, hasher, mediaService, bus, logger)

	userHandler := handler.NewUserHandler(sessionService, accountService, auditService, handler.CookieConfig{
		Secure:     cfg.CookieSecure,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, cfg.MaxUploadSize, cfg.UploadTempDir)

	handlers := router.Handlers{
		User:   userHandler,
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{"database": db.health}),
		Docs:   handler.NewDocsHandler("./docs/openapi.yaml"),
		Media:  mediaHandler,
	}

	return handlers, middleware.NewAuthMiddleware(codec, db.users, logger), nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stores, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		logger.Info("opening SQLite database", "path", cfg.SQLitePath)
		sqlDB, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return stores{}, fmt.Errorf("failed to open sqlite database: %w", err)
		}

		repos := sqlitestore.New(sqlDB)
		return stores{
			users:         repos.Users,
			subscriptions: repos.Subscriptions,
			audit:         repos.Audit,
			health:        sqlDB.PingContext,
			close:         func() { _ = sqlDB.Close() },
		}, nil
	default:
		logger.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, database.PoolOptions{
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			ApplicationName: cfg.ServiceName,
		}, logger)
		if err != nil {
			return stores{}, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return stores{}, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		logger.Info("database ready")

		return stores{
			users:         repository.NewUserRepository(db.Pool),
			subscriptions: repository.NewSubscriptionRepository(db.Pool),
			audit:         repository.NewAuditRepository(db.Pool),
			health:        db.Health,
			close:         db.Close,
		}, nil
	}
}

func (a *App) onClose(fn func()) {
	a.cleanupFuncs = append(a.cleanupFuncs, fn)
}

// Handler exposes the routed handler for in-process tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-serveErr:
		a.Close()
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.Close()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	a.logger.Info("server stopped")
	return nil
}
