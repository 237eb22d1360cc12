package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"loglens/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "loglens",
	Short: "loglens - reconstruct and correlate automation-framework runs from their logs",
	Long: `loglens parses the execution logs of an image-recognition-driven automation
framework and rebuilds the run as structured tasks, pipeline nodes and
recognition/action attempts, then correlates a secondary process's log
against the reconstructed tasks.

It understands both log dialects: sources that emit aggregated lifecycle
markers, and sources that only emit low-level enter/leave traces which must
be re-synthesized into the same events.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"stderr"}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to loglens config file")
}

// loadConfig resolves the effective configuration: defaults, then the
// config file when one is given.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
