package main

import (
	"fmt"
	"os"

	"github.com/farellandr/ticketgate/internal/events"
	"github.com/spf13/cobra"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Manage event configuration",
	}
	cmd.AddCommand(eventsImportCmd())
	return cmd
}

func eventsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Create or update events from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			seeds, err := events.ParseSeeds(f)
			if err != nil {
				return err
			}

			_, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)

			n, err := events.NewStore(db).Import(cmd.Context(), seeds)
			if err != nil {
				return fmt.Errorf("imported %d of %d events: %w", n, len(seeds), err)
			}
			log.Info().Int("count", n).Str("file", args[0]).Msg("events imported")
			return nil
		},
	}
}
