package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justyntemme/assetgrid/internal/config"
)

func NewConfigCmd(mgr **config.Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or regenerate the config file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), (*mgr).Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config, backing up the existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			backup, err := config.GenerateConfig((*mgr).Path())
			if err != nil {
				return err
			}
			if backup != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Backed up previous config to %s\n", backup)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", (*mgr).Path())
			return nil
		},
	})

	return cmd
}
