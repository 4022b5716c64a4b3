package main

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

	"github.com/hibiken/asynq"

	"github.com/pressroom/pressroom/cmd/pressroom/cli"
	"github.com/pressroom/pressroom/internal/app"
	"github.com/pressroom/pressroom/internal/auth"
	"github.com/pressroom/pressroom/internal/links"
	"github.com/pressroom/pressroom/internal/observability"
	"github.com/pressroom/pressroom/internal/platform/cache"
	"github.com/pressroom/pressroom/internal/platform/db"
	"github.com/pressroom/pressroom/internal/posts"
	"github.com/pressroom/pressroom/internal/rbac"
	"github.com/pressroom/pressroom/internal/shared"
	"github.com/pressroom/pressroom/internal/view"
	"github.com/pressroom/pressroom/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 {
		if err := runCommand(ctx, cfg, os.Args[1:]); err != nil {
			logger.Error("command failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, dbpool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	rbacService := rbac.NewService(rbac.NewRepository(dbpool))
	roles, err := rbacService.ValidateRoles(ctx)
	if err != nil {
		return fmt.Errorf("validate roles: %w", err)
	}
	logger.Info("roles loaded", slog.Int("count", len(roles)))
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	sessionManager := shared.NewSessionManager(redisClient, "pressroom_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	auditLogger := shared.NewAuditLogger(dbpool)

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, auditLogger)

	postsCache := posts.NewCache(redisClient, cfg.PostsCacheTTL, logger)
	postsService := posts.NewService(posts.NewRepository(dbpool), postsCache, auditLogger, logger, posts.ServiceConfig{PerPage: cfg.PostsPerPage})
	postsHandler := posts.NewHandler(logger, postsService, templates, csrfManager, rbacMiddleware)

	linksService := links.NewService(links.NewRepository(dbpool), auditLogger, logger)
	linksHandler := links.NewHandler(logger, linksService, templates, csrfManager)

	inspector := asynq.NewInspector(redisOpt(cfg))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBACMiddleware: rbacMiddleware,
		AuthHandler:    authHandler,
		PostsHandler:   postsHandler,
		LinksHandler:   linksHandler,
		JobHandler:     jobHandler,
		Metrics:        observability.NewMetrics(),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runCommand handles the operational subcommands, e.g. `pressroom migrate`.
func runCommand(ctx context.Context, cfg *app.Config, args []string) error {
	switch args[0] {
	case "migrate":
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()
		return db.Migrate(ctx, pool)
	case "jobs":
		jobsCLI := cli.NewJobsCLI(redisOpt(cfg), cfg.AuditRetention)
		defer jobsCLI.Close()
		return jobsCLI.Run(ctx, os.Stdout, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func redisOpt(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
