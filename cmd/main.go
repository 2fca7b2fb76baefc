package main

import (
	"fmt"
	"os"
	"time"

	"github.com/farellandr/ticketgate/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var Version = "dev"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "ticketgate",
		Short:         "Event registration, ticketing and check-in service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional YAML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(operatorCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stdout).Level(cfg.Level()).With().
		Timestamp().
		Str("service", "ticketgate").
		Str("release", cfg.Release).
		Logger()
}

// bootstrap loads config, builds the logger and opens the migrated database.
func bootstrap() (*config.Config, zerolog.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		return nil, log, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, log, db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
