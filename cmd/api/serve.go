package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/sukudha/academy-service/internal/api/http"
	"github.com/sukudha/academy-service/internal/api/http/handlers"
	"github.com/sukudha/academy-service/internal/auth"
	"github.com/sukudha/academy-service/internal/config"
	"github.com/sukudha/academy-service/internal/events"
	"github.com/sukudha/academy-service/internal/mail"
	"github.com/sukudha/academy-service/internal/observability"
	"github.com/sukudha/academy-service/internal/persistence"
	"github.com/sukudha/academy-service/internal/repository"
	"github.com/sukudha/academy-service/internal/service"
	"github.com/sukudha/academy-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return oops.Code("LOGGER_INIT_FAILED").Wrap(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	health := map[string]handlers.Pinger{"store": users}

	var forgotThrottle, resetThrottle service.Throttle
	if cfg.Redis.Addr != "" {
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		forgotThrottle = persistence.NewRateLimiter(redis.Client, "forgot-password:", cfg.Auth.ForgotPasswordPerWindow, cfg.Auth.ForgotPasswordWindow)
		resetThrottle = persistence.NewRateLimiter(redis.Client, "reset-password:", cfg.Auth.ResetPasswordPerWindow, cfg.Auth.ResetPasswordWindow)
		health["redis"] = redis
	}

	dispatcher := events.NewInMemoryDispatcher()
	var bridge *events.NATSBridge
	if cfg.NATS.URL != "" {
		nc, err := events.ConnectNATS(cfg.NATS.URL, cfg.App.Name)
		if err != nil {
			return err
		}
		defer nc.Close()
		bridge = events.NewNATSBridge(nc, cfg.NATS.SubjectPrefix, logger)
	}
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Mail)
	worker.StartNotificationWorker(notifications, dispatcher, bridge, logger)

	metrics := observability.NewMetrics()
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Users:         users,
		Mailer:        mail.NewSender(cfg.Mail, logger),
		Throttle:      forgotThrottle,
		ResetThrottle: resetThrottle,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ErrorHandler:          httptransport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, health),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService),
		AuthMiddleware: auth.NewMiddleware(authService.TokenManager(), users),
		Metrics:        metrics,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return oops.Code("LISTEN_FAILED").With("addr", cfg.App.Addr()).Wrap(err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	return app.ShutdownWithTimeout(shutdownTimeout)
}

// openStore connects the credential store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.UserRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, nil, oops.Code("MIGRATION_FAILED").Wrap(err)
			}
		}
		return repository.NewUserRepository(pg.PoolHandle()), pg.Close, nil

	case config.StoreDriverMongo:
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, cfg.App.Name, logger)
		if err != nil {
			return nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
		}
		if err := repository.EnsureUserIndexes(ctx, mg.DB); err != nil {
			mg.Close(context.Background())
			return nil, nil, err
		}
		return repository.NewMongoUserRepository(mg.DB), func() { mg.Close(context.Background()) }, nil

	default:
		logger.Warn("using in-memory user store; data is lost on restart")
		return repository.NewMemoryUserRepository(), func() {}, nil
	}
}
