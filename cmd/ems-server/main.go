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
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emsgrid/emsgrid/internal/config"
	"github.com/emsgrid/emsgrid/internal/domain/compiler"
	"github.com/emsgrid/emsgrid/internal/domain/export"
	"github.com/emsgrid/emsgrid/internal/domain/nemsis"
	"github.com/emsgrid/emsgrid/internal/domain/onboarding"
	"github.com/emsgrid/emsgrid/internal/domain/ruledoc"
	"github.com/emsgrid/emsgrid/internal/domain/rulepack"
	"github.com/emsgrid/emsgrid/internal/domain/validation"
	"github.com/emsgrid/emsgrid/internal/platform/auth"
	"github.com/emsgrid/emsgrid/internal/platform/contentstore"
	"github.com/emsgrid/emsgrid/internal/platform/db"
	"github.com/emsgrid/emsgrid/internal/platform/events"
	"github.com/emsgrid/emsgrid/internal/platform/middleware"
	"github.com/emsgrid/emsgrid/internal/platform/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ems-server",
		Short: "EMS compliance rule-pack and reporting server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the compliance API server",
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
			schema, _ := cmd.Flags().GetString("schema")
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
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
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
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

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

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, "./migrations"); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// Persistence backends
	var (
		pool    *pgxpool.Pool
		st      store.Store
		content contentstore.ContentStore
	)
	switch cfg.StoreBackend {
	case "postgres":
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		st = store.NewPGStore(pool)
		content = contentstore.NewPGStore(pool)
		logger.Info().Msg("connected to database")
	case "memory":
		st = store.NewMemoryStore()
		content = contentstore.NewMemoryStore()
		logger.Warn().Msg("using in-memory store; data will not survive restarts")
	}

	sink := events.NewLogSink(logger)

	// Domain services
	packs := rulepack.NewService(st, content, sink, logger, cfg.MaxPackFileBytes)
	docs := ruledoc.NewRepository(st)
	compSvc := compiler.NewService(packs, docs, sink, logger)
	validator := validation.NewValidator(docs, logger)
	exportSvc := export.NewService(st, sink, logger)
	onboardSvc := onboarding.NewService(st, packs, sink, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	switch cfg.ResolvedAuthMode() {
	case "development":
		e.Use(auth.DevMiddleware())
	default:
		e.Use(auth.Middleware(auth.Config{
			Secret:   []byte(cfg.AuthSecret),
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
		}))
	}

	if pool != nil {
		e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	} else {
		e.Use(db.TenantOnlyMiddleware(cfg.DefaultTenant))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	apiV1 := e.Group("/api/v1")

	rulepack.NewHandler(packs).RegisterRoutes(apiV1)
	compiler.NewHandler(compSvc, docs).RegisterRoutes(apiV1)
	validation.NewHandler(validator, packs).RegisterRoutes(apiV1)
	nemsis.NewHandler(cfg.AgencyState).RegisterRoutes(apiV1)
	export.NewHandler(exportSvc, st).RegisterRoutes(apiV1)
	onboarding.NewHandler(onboardSvc).RegisterRoutes(apiV1)

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
