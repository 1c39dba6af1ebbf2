package cmd

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "portfolio-a2c",
	Short: "Train a portfolio trading policy with synchronous A2C",
	Long: `portfolio-a2c trains a stochastic portfolio allocation policy with
synchronous advantage actor-critic.

Rollout workers each trade their own share of the training window and
hand trajectory segments to a coordinator, which applies exactly one
update per synchronisation round.`,
	SilenceUsage: true,
}

var (
	logLevel string
	logJSON  bool
)

// Execute adds all child commands to the root command and sets flags
// appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"write logs as JSON")
}

// newLogger returns a logger writing to w at the configured level
func newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, errors.Errorf("unknown log level %q", logLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	if logJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
