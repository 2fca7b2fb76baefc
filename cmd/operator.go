package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/farellandr/ticketgate/internal/auth"
	"github.com/spf13/cobra"
)

func operatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage operator accounts",
	}
	cmd.AddCommand(operatorAddCmd())
	return cmd
}

func operatorAddCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "add [email]",
		Short: "Create an operator account",
		Long: `Create an operator account for the admin and ops APIs.

Roles come from AUTH_ADMIN_EMAILS and AUTH_MANAGER_EMAILS, not from the account.
Without --password the password is read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if password == "" {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			op, err := auth.NewOperators(db).Create(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}

			log.Info().
				Str("operator", op.Email).
				Bool("admin", cfg.Auth.Admins.Allows(op.Email)).
				Bool("manager", cfg.Auth.Managers.Allows(op.Email)).
				Msg("operator created")
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "operator password (min 8 characters)")
	return cmd
}
