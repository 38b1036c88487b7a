package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/AnyUserName/imgpress-cli/internal/config"
	"github.com/AnyUserName/imgpress-cli/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	verbose    bool
	logFormat  string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "imgpress",
	Short: "Batch image compression with bounded parallel workers",
	Long: `imgpress compresses batches of images into JPEG, PNG, WebP, AVIF or
JPEG XL using a fixed pool of workers.

Each file becomes a job that can fail independently and be retried from
its original bytes. Finished jobs are written to a directory or a zip
archive together with a JSON manifest.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: auto, console, json")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: user config dir)")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgpress %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// loadConfig reads the config file and applies persistent flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
}
