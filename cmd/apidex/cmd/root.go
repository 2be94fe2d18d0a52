// Package cmd provides the CLI commands for apidex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/apidex/apidex/internal/config"
	"github.com/apidex/apidex/internal/logging"
	"github.com/apidex/apidex/pkg/version"
)

// Persistent flags shared by all subcommands.
var (
	flagDataDir    string
	flagConfigPath string
	flagDebug      bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the apidex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apidex",
		Short: "Hybrid search over API documentation",
		Long: `apidex indexes API documentation and serves hybrid search over it,
combining BM25 keyword matching with semantic embeddings through
Reciprocal Rank Fusion. Optional query expansion, cross-encoder
reranking, and MMR diversification refine the ranking.

Index a JSONL corpus with 'apidex index --file docs.jsonl', then
query it with 'apidex search "create webhook"'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("apidex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Index data directory (default: .apidex)")
	cmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "Config file path (default: <data-dir>/apidex.yaml)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if flagDebug {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging must never block the actual command.
		fmt.Fprintf(os.Stderr, "warning: logging setup failed: %v\n", err)
		return nil
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	path := flagConfigPath
	if path == "" {
		dataDir := flagDataDir
		if dataDir == "" {
			dataDir = config.Default().Paths.DataDir
		}
		path = filepath.Join(dataDir, "apidex.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.Paths.DataDir = flagDataDir
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
