package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"photobooth-kiosk/internal/config"
	"photobooth-kiosk/internal/database"
	"photobooth-kiosk/internal/handlers"
	"photobooth-kiosk/internal/logging"
	"photobooth-kiosk/internal/metrics"
)

var migrateOnStart bool

var rootCmd = &cobra.Command{
	Use:   "photobooth-kiosk",
	Short: "Self-service photobooth kiosk backend",
	Long: `photobooth-kiosk drives a photobooth: package and payment selection,
timed captures from a local camera, frame compositing, asset uploads and
delivery by QR code, email or print.

Configuration comes from environment variables or config.yaml.

Examples:
  photobooth-kiosk serve
  photobooth-kiosk serve --migrate
  photobooth-kiosk migrate`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations to DATABASE_URL and exit",
	RunE:  runMigrate,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply database migrations before serving")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.LogLevel, cfg.Environment)
	return cfg, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return migrate(cmd.Context(), cfg)
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	defer migrator.Close()

	applied, err := migrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Info().Int("applied", applied).Msg("Migrations completed")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateOnStart {
		if err := migrate(ctx, cfg); err != nil {
			return err
		}
	}

	m := metrics.NewMetrics("photobooth", prometheus.DefaultRegisterer)

	app, err := build(cfg, m)
	if err != nil {
		return err
	}
	defer app.Close()

	router := handlers.NewRouter(app.routerDeps(cfg, m))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("booth_id", cfg.BoothID).
		Bool("supabase", cfg.UseSupabase()).
		Msg("Starting kiosk server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
