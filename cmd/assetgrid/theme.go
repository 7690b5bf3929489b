package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justyntemme/assetgrid/internal/config"
	"github.com/justyntemme/assetgrid/internal/store"
)

func NewThemeCmd(mgr **config.Manager) *cobra.Command {
	var toggle bool

	cmd := &cobra.Command{
		Use:   "theme [light|dark]",
		Short: "Show or set the stored theme preference",
		Long: `Show or set the light/dark theme preference.

Examples:
  assetgrid theme            # print the current theme
  assetgrid theme dark       # switch to dark
  assetgrid theme --toggle   # flip between light and dark`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{store.ThemeLight, store.ThemeDark},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openStore((*mgr).Get())
			if err != nil {
				return err
			}
			defer db.Close()

			var theme string
			switch {
			case len(args) == 1:
				theme = args[0]
				err = db.SetTheme(ctx, theme)
			case toggle:
				theme, err = db.ToggleTheme(ctx)
			default:
				theme, err = db.Theme(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		},
	}

	cmd.Flags().BoolVar(&toggle, "toggle", false, "switch between light and dark")
	return cmd
}
