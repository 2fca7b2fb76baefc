package main

import (
	"github.com/farellandr/ticketgate/internal/server"
	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Retry ticket delivery for registrations still missing a QR image or email",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)

			app, err := server.NewApp(cfg, db, log)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("retried", n).Msg("sweep finished")
			return nil
		},
	}
}
