// Command loomwork is the binary entrypoint for the factored-cognition
// workbench: an interactive REPL, a non-interactive script runner, and
// snapshot file utilities.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gitrdm/loomwork/internal/config"
)

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "loomwork",
		Short: "A content-addressed hypertext workbench for factored cognition",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to loomwork.toml (default: search order in internal/config)")
	root.AddCommand(newReplCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newSnapshotCommand())
	return root
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.Set(level); err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return cfg.Build()
}
