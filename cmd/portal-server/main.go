package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sonexus/portal/internal/config"
	"github.com/sonexus/portal/internal/domain/audit"
	"github.com/sonexus/portal/internal/domain/benefits"
	"github.com/sonexus/portal/internal/domain/dashboard"
	"github.com/sonexus/portal/internal/domain/enrollment"
	"github.com/sonexus/portal/internal/domain/forms"
	"github.com/sonexus/portal/internal/domain/messaging"
	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/domain/program"
	"github.com/sonexus/portal/internal/domain/provider"
	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/db"
	"github.com/sonexus/portal/internal/platform/eligibility"
	"github.com/sonexus/portal/internal/platform/events"
	"github.com/sonexus/portal/internal/platform/filestore"
	"github.com/sonexus/portal/internal/platform/metrics"
	"github.com/sonexus/portal/internal/platform/middleware"
	"github.com/sonexus/portal/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "Provider Portal API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a database backup or apply a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	metrics.Init()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1MB", "64MB"))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	userStore := auth.NewUserStorePG(pool)
	authProvider := auth.NewJWTProvider(userStore, []byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL(), logger)
	e.Use(auth.BearerMiddleware(authProvider, auth.AuthSkipper))

	// Adapter profiles
	store, err := buildFileStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file store")
	}
	investigator := buildInvestigator(cfg, logger)
	notifier := buildNotifier(cfg, logger)

	bus := events.NewInMemoryBus(logger)
	for _, eventType := range []string{provider.EventAffiliationApproved, enrollment.EventEnrollmentSubmitted} {
		bus.Subscribe(eventType, func(_ context.Context, e events.Event) {
			metrics.ObserveEvent(e.Type)
		})
	}

	txRunner := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}

	// Repositories
	auditRepo := audit.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	providerRepo := provider.NewRepoPG(pool)
	affiliationRepo := provider.NewAffiliationRepoPG(pool)
	programRepo := program.NewRepoPG(pool)
	serviceRepo := program.NewServiceRepoPG(pool)
	serviceEnrollmentRepo := program.NewServiceEnrollmentRepoPG(pool)
	enrollmentRepo := enrollment.NewRepoPG(pool)
	historyRepo := enrollment.NewHistoryRepoPG(pool)
	benefitsRepo := benefits.NewRepoPG(pool)
	formRepo := forms.NewRepoPG(pool)
	downloadRepo := forms.NewDownloadRepoPG(pool)
	threadRepo := messaging.NewThreadRepoPG(pool)
	messageRepo := messaging.NewMessageRepoPG(pool)
	attachmentRepo := messaging.NewAttachmentRepoPG(pool)

	// Services
	auditSvc := audit.NewService(auditRepo, logger)
	provider.RegisterEventHandlers(bus, userStore, notifier, logger)
	providerSvc := provider.NewService(providerRepo, affiliationRepo, bus, auditSvc, logger)
	patientSvc := patient.NewService(patientRepo, providerSvc, auditSvc, logger)
	programSvc := program.NewService(programRepo, serviceRepo, serviceEnrollmentRepo, patientRepo, auditSvc, logger)
	enrollmentSvc := enrollment.NewService(
		enrollmentRepo, historyRepo,
		patientRepo, programRepo, providerRepo,
		userStore, providerSvc,
		bus, notifier, auditSvc, txRunner, logger,
	)
	benefitsSvc := benefits.NewService(benefitsRepo, patientRepo, programRepo, providerSvc, investigator, auditSvc, logger)
	formsSvc := forms.NewService(formRepo, downloadRepo, store, auditSvc, logger)
	messagingSvc := messaging.NewService(
		threadRepo, messageRepo, attachmentRepo,
		patientRepo, programRepo,
		store, auditSvc, txRunner, logger,
	)
	dashboardSvc := dashboard.NewService(
		enrollmentRepo, benefitsRepo, patientRepo,
		serviceEnrollmentRepo, threadRepo, messageRepo,
		logger,
	)

	// Health and metrics
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

	// API routes
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	if cfg.RequestTimeout > 0 {
		apiV1.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeout) * time.Second))
	}

	auth.NewHandler(authProvider).RegisterRoutes(apiV1, apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	provider.NewHandler(providerSvc).RegisterRoutes(apiV1)
	program.NewHandler(programSvc).RegisterRoutes(apiV1)
	enrollment.NewHandler(enrollmentSvc).RegisterRoutes(apiV1)
	benefits.NewHandler(benefitsSvc).RegisterRoutes(apiV1)
	forms.NewHandler(formsSvc).RegisterRoutes(apiV1)
	messaging.NewHandler(messagingSvc).RegisterRoutes(apiV1)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(apiV1)
	audit.NewHandler(auditSvc).RegisterRoutes(apiV1)

	notifGroup := apiV1.Group("", auth.RequireRole(auth.RoleAdmin))
	notification.NewHandler(notifier).RegisterRoutes(notifGroup)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func buildFileStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (filestore.FileStore, error) {
	switch cfg.FileStore {
	case "minio":
		return filestore.NewMinioStore(ctx, filestore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
	default:
		logger.Warn().Msg("using in-memory file store; uploads do not survive restarts")
		return filestore.NewMemoryStore(), nil
	}
}

func buildInvestigator(cfg *config.Config, logger zerolog.Logger) eligibility.Investigator {
	if cfg.BenefitsAdapter == "http" {
		return eligibility.NewHTTPInvestigator(cfg.BenefitsAPIURL, logger)
	}
	return eligibility.NewRuleBasedInvestigator(logger)
}

func buildNotifier(cfg *config.Config, logger zerolog.Logger) *notification.Notifier {
	var sender notification.EmailSender
	if cfg.Notifier == "smtp" {
		sender = notification.NewSMTPEmailSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.EmailFrom,
		})
	} else {
		sender = notification.NewLogEmailSender(logger)
	}
	return notification.NewNotifier(sender, notification.NewTemplateEngine())
}
