// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/blockpress/internal/auth"
	"github.com/olegiv/blockpress/internal/cache"
	"github.com/olegiv/blockpress/internal/config"
	"github.com/olegiv/blockpress/internal/handler"
	"github.com/olegiv/blockpress/internal/handler/api"
	"github.com/olegiv/blockpress/internal/imaging"
	"github.com/olegiv/blockpress/internal/logging"
	"github.com/olegiv/blockpress/internal/middleware"
	"github.com/olegiv/blockpress/internal/scheduler"
	"github.com/olegiv/blockpress/internal/service"
	"github.com/olegiv/blockpress/internal/util"
	"github.com/olegiv/blockpress/internal/version"
	"github.com/olegiv/blockpress/internal/webhook"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "blockpress - block-based blogging API\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOCKPRESS_JWT_SECRET      Token signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOCKPRESS_DB_DRIVER       sqlite|postgres (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOCKPRESS_DB_PATH         SQLite database path (default: ./data/blockpress.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOCKPRESS_DATABASE_URL    Postgres connection URL\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOCKPRESS_SERVER_PORT     Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOCKPRESS_ENV             Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOCKPRESS_REDIS_URL       Redis URL for the listing cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOCKPRESS_NATS_URL        NATS URL for post events (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOCKPRESS_WEBHOOK_URLS    Comma-separated webhook endpoints (optional)\n")
	}

	flag.Parse()

	// Handle -h/-help flag
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.New(appVersion, appGitCommit, appBuildTime)

	// Handle -v/-version flag
	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.IsDevelopment())
	slog.SetDefault(logger)
	slog.Info("starting blockpress", "version", info.Version, "commit", info.GitCommit)

	ctx := context.Background()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the event log
	logger = slog.New(logging.NewEventLogHandler(logging.NewBaseHandler(os.Stdout, cfg.LogLevel, cfg.IsDevelopment()), repos.events))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	// Listing cache
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisURL = cfg.RedisURL
	cacheCfg.Prefix = cfg.CachePrefix
	cacheCfg.DefaultTTL = cfg.CacheTTL
	cacher, backend, err := cache.New(cacheCfg)
	if err != nil {
		slog.Warn("cache unavailable, using memory", "error", err)
		cacheCfg.RedisURL = ""
		cacher, backend, _ = cache.New(cacheCfg)
	}
	defer func() { _ = cacher.Close() }()
	slog.Info("cache initialized", "backend", backend)

	// Event sinks: webhooks and NATS, behind a debouncer for repeated saves
	var sinks []webhook.Sink
	if len(cfg.WebhookURLs) > 0 {
		// Local receivers are fine while developing.
		if !cfg.IsDevelopment() {
			for _, u := range cfg.WebhookURLs {
				if err := util.ValidateWebhookURL(ctx, u, nil); err != nil {
					return fmt.Errorf("webhook URL %q: %w", u, err)
				}
			}
		}
		dispatcher := webhook.NewDispatcher(cfg.WebhookURLs, cfg.WebhookSecret, logger, webhook.DefaultConfig())
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
		sinks = append(sinks, dispatcher)
		slog.Info("webhook dispatcher initialized", "endpoints", len(cfg.WebhookURLs))
	}
	if cfg.NATSURL != "" {
		nc, err := webhook.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer nc.Close()
		sinks = append(sinks, webhook.NewNATSPublisher(nc, cfg.NATSSubject, logger))
		slog.Info("NATS publisher initialized", "subject", cfg.NATSSubject)
	}
	debouncer := webhook.NewDebouncer(webhook.NewBus(logger, sinks...), webhook.DefaultDebounceConfig(), logger)
	defer debouncer.Stop()
	publisher := webhook.NewBus(logger, debouncer)

	// Services
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	events := service.NewEventService(repos.events, logger)

	authSvc := service.NewAuthService(repos.users, tokens, logger)
	authSvc.SetAuditLog(events)

	media := service.NewMediaService(repos.images, repos.posts,
		imaging.NewProcessor(cfg.UploadDir, cfg.UploadBaseURL), publisher, logger)
	media.SetMaxUploadSize(cfg.MaxUploadSize)

	posts := service.NewPostService(repos.posts, media, cache.NewPostCache(cacher, cfg.CacheTTL), publisher, logger)
	posts.SetAuditLog(events)

	if cfg.AdminEmail != "" {
		created, err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("seeding admin account: %w", err)
		}
		if created {
			slog.Info("admin account created", "email", cfg.AdminEmail)
		}
	}

	// Maintenance jobs
	sched := scheduler.New(logger)
	err = scheduler.RegisterMaintenance(sched.Registry(), scheduler.MaintenanceConfig{
		Schedule:       cfg.CleanupSchedule,
		Drafts:         media,
		DraftMaxAge:    cfg.DraftMaxAge,
		Events:         events,
		EventRetention: cfg.EventRetention,
	}, logger)
	if err != nil {
		return fmt.Errorf("registering scheduled jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// Login protection
	loginCfg := middleware.DefaultLoginProtectionConfig()
	loginCfg.Logger = logger
	loginProtection := middleware.NewLoginProtection(loginCfg)
	defer loginProtection.Stop()

	apiRateLimiter := middleware.NewAPIRateLimiter(cfg.APIRateLimit, cfg.APIRateBurst)
	defer apiRateLimiter.Stop()

	// Health checks
	healthHandler := handler.NewHealthHandler(cfg.UploadDir, info)
	healthHandler.AddCheck("database", repos.ping)
	if pinger, ok := cacher.(interface{ Ping(context.Context) error }); ok {
		healthHandler.AddCheck("cache", pinger.Ping)
	}
	if sp, ok := cacher.(cache.StatsProvider); ok {
		healthHandler.SetCacheStats(sp)
	}

	apiHandler := api.NewHandler(api.Config{
		Auth:            authSvc,
		Posts:           posts,
		Media:           media,
		Events:          events,
		Jobs:            sched.Registry(),
		Cache:           cacher,
		LoginProtection: loginProtection,
		SecureCookies:   !cfg.IsDevelopment(),
		Logger:          logger,
	})

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))

	securityCfg := middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())
	securityCfg.ExcludePaths = []string{"/uploads/"}
	r.Use(middleware.SecurityHeaders(securityCfg))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Authenticate(authSvc))

	// Health check endpoints (no rate limiting)
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// Uploaded images
	r.With(middleware.StaticCache(604800)).
		Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	csrfCfg := middleware.DefaultCSRFConfig([]byte(cfg.JWTSecret), cfg.IsDevelopment(), originHosts(cfg.CORSOrigins)...)
	r.Group(func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		r.Use(middleware.SkipCSRFForBearer)
		r.Use(middleware.CSRF(csrfCfg))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Mount("/api/v1", apiHandler.Routes())
	})

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Longer to allow for large uploads and slow connections
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// originHosts turns CORS origins into the host[:port] form the
// cross-origin check expects.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
