package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func configCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the config file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := opts.userConfigPath()
				if err != nil {
					return err
				}
				abs, _ := filepath.Abs(p)
				fmt.Fprintln(cmd.OutOrStdout(), abs)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the config file with environment overrides applied",
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := opts.userConfigPath()
				if err != nil {
					return err
				}
				_, vr, err := opts.loadConfig(p)
				for _, w := range vr.Warnings {
					fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
				}
				for _, e := range vr.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", e)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", p)
				return nil
			},
		},
	)
	return cmd
}
