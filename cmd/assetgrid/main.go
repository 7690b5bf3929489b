package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justyntemme/assetgrid/internal/config"
	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/logging"
	"github.com/justyntemme/assetgrid/internal/store"
)

var (
	configPath string
	logLevel   string
	debugCats  []string
	mgr        *config.Manager
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "assetgrid",
		Short:         "Browse folders of 3D models, video, audio and images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/assetgrid/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().StringSliceVar(&debugCats, "debug", nil, "debug categories to turn on, -CAT turns one off (debug builds only)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		mgr = config.NewManager(configPath)
		loadErr := mgr.Load()

		cfg := mgr.Get()
		level := cfg.Server.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		if len(debugCats) > 0 {
			applyDebugCategories(debugCats)
			level = "debug"
		}
		if err := logging.Init(logging.Config{Level: level, Format: cfg.Server.LogFormat, OutputPath: "stderr"}); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		if len(debugCats) > 0 && !debug.Enabled {
			logging.L().Warn("--debug has no effect without the debug build tag")
		}
		if loadErr != nil {
			logging.L().Warn("config: using defaults", zap.Error(loadErr))
		}
		if err := mgr.ParseError(); err != nil {
			logging.L().Warn("config: file could not be parsed, using defaults",
				zap.String("path", mgr.Path()), zap.Error(err))
		}
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		logging.Sync()
	}

	rootCmd.AddCommand(NewServeCmd(&mgr))
	rootCmd.AddCommand(NewScanCmd(&mgr))
	rootCmd.AddCommand(NewThemeCmd(&mgr))
	rootCmd.AddCommand(NewConfigCmd(&mgr))
	return rootCmd
}

func applyDebugCategories(cats []string) {
	for _, c := range cats {
		c = strings.ToUpper(strings.TrimSpace(c))
		if name, ok := strings.CutPrefix(c, "-"); ok {
			debug.Disable(debug.Category(name))
			continue
		}
		debug.Enable(debug.Category(c))
	}
}

// openStore opens the settings database named by the config.
func openStore(cfg config.Config) (*store.DB, error) {
	path := cfg.Store.Path
	if path == "" {
		path = store.DefaultPath()
	}
	db := store.NewDB()
	if err := db.Open(path); err != nil {
		return nil, err
	}
	return db, nil
}
