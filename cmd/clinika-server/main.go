package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinika/clinika/internal/config"
	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/domain/legacy"
	"github.com/clinika/clinika/internal/domain/migration"
	"github.com/clinika/clinika/internal/domain/profile"
	"github.com/clinika/clinika/internal/domain/registration"
	"github.com/clinika/clinika/internal/domain/scheduling"
	"github.com/clinika/clinika/internal/platform/auth"
	"github.com/clinika/clinika/internal/platform/db"
	"github.com/clinika/clinika/internal/platform/metrics"
	"github.com/clinika/clinika/internal/platform/middleware"
	"github.com/clinika/clinika/internal/platform/rollout"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinika-server",
		Short: "Clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(backfillCmd())
	rootCmd.AddCommand(auditCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database schema migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			pool, cleanup, err := openPool()
			if err != nil {
				return err
			}
			defer cleanup()

			count, err := db.NewMigrator(pool, dir).Up(context.Background())
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

			pool, cleanup, err := openPool()
			if err != nil {
				return err
			}
			defer cleanup()

			statuses, err := db.NewMigrator(pool, dir).Status(context.Background())
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

	return cmd
}

// backfillCmd runs the federated backfill once and prints the summary as
// JSON. The exit code is non-zero when any record errored, so operational
// tooling can alert on it.
func backfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Backfill the federated shape from legacy records",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			pool, cleanup, err := openPool()
			if err != nil {
				return err
			}
			defer cleanup()

			migrator, _ := buildMigration(pool, logger)
			summary, err := migrator.Run(context.Background())
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if summary.HasErrors() {
				return fmt.Errorf("backfill completed with per-record errors")
			}
			return nil
		},
	}
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare the legacy and federated shapes for divergence",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			pool, cleanup, err := openPool()
			if err != nil {
				return err
			}
			defer cleanup()

			auditor := migration.NewAuditor(migration.NewAuditStore(pool), logger)
			report, err := auditor.Audit(context.Background(), nil)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if !report.Clean() {
				return fmt.Errorf("audit found inconsistencies")
			}
			return nil
		},
	}
	return cmd
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.IsProduction() {
		logger = logger.Level(zerolog.InfoLevel)
	} else {
		logger = logger.Level(zerolog.DebugLevel)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			SigningKey: []byte(cfg.AuthSecret),
		}))
	}

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Repositories
	clinicRepo := legacy.NewClinicRepo(pool)
	accountRepo := legacy.NewLoginAccountRepo(pool)
	doctorRepo := legacy.NewDoctorRepo(pool)
	patientRepo := legacy.NewPatientRepo(pool)
	personRepo := identity.NewRepo(pool)
	profileRepo := profile.NewRepo(pool)
	appointmentRepo := scheduling.NewRepo(pool)
	ledgerRepo := migration.NewLedgerRepo(pool)

	// Services
	gate := rollout.NewGate(cfg.Rollout())
	resolver := identity.NewResolver(personRepo, accountRepo, logger)
	profileMgr := profile.NewManager(profileRepo, clinicRepo, logger)
	coordinator := scheduling.NewCoordinator(appointmentRepo, doctorRepo, patientRepo, resolver, profileMgr, gate, logger)
	registrationSvc := registration.NewService(doctorRepo, patientRepo, resolver, profileMgr, gate, logger)
	migrator := migration.NewMigrator(doctorRepo, patientRepo, appointmentRepo, resolver, profileMgr, ledgerRepo, logger)
	auditor := migration.NewAuditor(migration.NewAuditStore(pool), logger)

	// Handlers
	scheduling.NewHandler(coordinator).RegisterRoutes(apiV1)
	profile.NewHandler(profileMgr).RegisterRoutes(apiV1)
	registration.NewHandler(registrationSvc).RegisterRoutes(apiV1)
	migration.NewHandler(migrator, auditor, ledgerRepo).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

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

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool() (pool *pgxpool.Pool, cleanup func(), err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	p, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

func buildMigration(pool *pgxpool.Pool, logger zerolog.Logger) (*migration.Migrator, *migration.Auditor) {
	doctorRepo := legacy.NewDoctorRepo(pool)
	patientRepo := legacy.NewPatientRepo(pool)
	accountRepo := legacy.NewLoginAccountRepo(pool)
	clinicRepo := legacy.NewClinicRepo(pool)
	personRepo := identity.NewRepo(pool)
	profileRepo := profile.NewRepo(pool)
	appointmentRepo := scheduling.NewRepo(pool)
	ledgerRepo := migration.NewLedgerRepo(pool)

	resolver := identity.NewResolver(personRepo, accountRepo, logger)
	profileMgr := profile.NewManager(profileRepo, clinicRepo, logger)
	migrator := migration.NewMigrator(doctorRepo, patientRepo, appointmentRepo, resolver, profileMgr, ledgerRepo, logger)
	auditor := migration.NewAuditor(migration.NewAuditStore(pool), logger)
	return migrator, auditor
}
