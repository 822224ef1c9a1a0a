// Command server runs the audio resolution service and its command-line tools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hongeet.dev/backend/internal/config"
	"hongeet.dev/backend/internal/utils"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config
	logger  *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:           "hongeet",
	Short:         "Hongeet - audio resolution and music search backend",
	Long:          `Hongeet resolves video identifiers into playable audio and ranks free-text music searches.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// config init must work without a readable configuration
		if cmd.Annotations["skipConfig"] == "true" {
			return nil
		}
		return initConfig()
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/app.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("dev", false, "development logging")

	bindings := map[string]string{
		"logging.level":       "log-level",
		"logging.development": "dev",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to bind flag %s: %v\n", flag, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newResolveCmd(),
		newSearchCmd(),
		newRelatedCmd(),
		newDownloadCmd(),
		newUpdateExtractorCmd(),
		newConfigCmd(),
	)
}

// initConfig loads the configuration and builds the logger.
func initConfig() error {
	loaded, err := config.LoadConfig(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	logger = utils.NewLogger(utils.LoggerOptions{
		Development: cfg.Logging.Development,
		Level:       utils.ParseLevel(cfg.Logging.Level),
		OutputPaths: cfg.Logging.OutputPaths,
	})
	utils.GlobalLogger = logger

	for _, warning := range config.ValidateAndFixConfig(cfg) {
		logger.Warn("Configuration adjusted", "warning", warning)
	}
	return nil
}
