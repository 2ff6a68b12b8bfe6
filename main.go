package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/app"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/config"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/database"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/pkg/logger"
)

func main() {
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	migrateDirection := migrateCmd.String("direction", "up", "direction of migration (up/down)")

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			migrateCmd.Parse(os.Args[2:])
			runMigrations(*migrateDirection)
			return
		case "serve":
		}
	}

	// Логгер до загрузки конфигурации
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log = logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor)

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Контекст для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	go func() {
		if err := application.Run(); err != nil {
			log.Fatal().Err(err).Msg("Failed to run application")
		}
	}()

	log.Info().Msgf("PlagExit portal started on %s", cfg.Server.Address)

	<-ctx.Done()
	log.Info().Msg("Shutting down PlagExit portal...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown gracefully")
	}

	log.Info().Msg("PlagExit portal stopped")
}

func runMigrations(direction string) {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := database.Migrate(cfg.Database, direction); err != nil {
		log.Fatal().Err(err).Str("direction", direction).Msg("Failed to run migrations")
	}

	log.Info().Str("direction", direction).Msg("Migrations applied successfully")
}
