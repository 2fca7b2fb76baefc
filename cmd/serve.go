package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/farellandr/ticketgate/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var noQueue bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, fulfillment worker and sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			app, err := server.NewApp(cfg, db, log)
			if err != nil {
				return err
			}
			defer app.Close()

			if !noQueue {
				if err := app.EnableQueue(); err != nil {
					return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&noQueue, "no-queue", false, "fulfill tickets inline even if a RabbitMQ URL is configured")
	return cmd
}
