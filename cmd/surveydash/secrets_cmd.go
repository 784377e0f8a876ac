package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"surveydash/internal/secrets"
)

func secretsCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the API token in the OS keychain",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set-token",
			Short: "Store the API token read from stdin",
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := opts.userConfigPath()
				if err != nil {
					return err
				}
				cfg, _, err := opts.loadConfig(p)
				if err != nil {
					return err
				}
				sc := bufio.NewScanner(cmd.InOrStdin())
				if !sc.Scan() {
					if err := sc.Err(); err != nil {
						return err
					}
					return errors.New("no token on stdin")
				}
				tok := strings.TrimSpace(sc.Text())
				if err := secrets.SetAPIToken(cfg, tok); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s for %s\n", secrets.Mask(tok), secrets.KeyringAccount(cfg))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete-token",
			Short: "Remove the API token from the keychain",
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := opts.userConfigPath()
				if err != nil {
					return err
				}
				cfg, _, err := opts.loadConfig(p)
				if err != nil {
					return err
				}
				if err := secrets.DeleteAPIToken(cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted token for %s\n", secrets.KeyringAccount(cfg))
				return nil
			},
		},
	)
	return cmd
}
