package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/samuelfneumann/portfolioa2c/experiment"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a policy",
	Long: `Train trains a policy as described by a configuration file and
saves the final parameters as a checkpoint.

Example:
  portfolio-a2c train --config config.yaml --resume`,
	RunE: runTrain,
}

var (
	trainConfig         string
	trainResume         bool
	trainFreshOnMissing bool
	trainProgress       bool
)

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVarP(&trainConfig, "config", "c", "",
		"path to YAML or JSON configuration (required)")
	trainCmd.Flags().BoolVar(&trainResume, "resume", false,
		"resume from the configured checkpoint")
	trainCmd.Flags().BoolVar(&trainFreshOnMissing, "fresh-on-missing", false,
		"with --resume, start fresh if the checkpoint does not exist")
	trainCmd.Flags().BoolVar(&trainProgress, "progress", true,
		"display a progress bar of completed rounds")

	trainCmd.MarkFlagRequired("config")
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cfg, err := experiment.LoadConfig(trainConfig)
	if err != nil {
		return err
	}

	exp, err := experiment.NewA2C(cfg, logger)
	if err != nil {
		return err
	}
	if trainResume {
		if err := exp.Resume(trainFreshOnMissing); err != nil {
			return err
		}
	} else if trainFreshOnMissing {
		return errors.New("--fresh-on-missing requires --resume")
	}
	if trainProgress && !logJSON {
		exp.SetProgress(cmd.ErrOrStderr())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	report, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if report.RunID != "" {
		fmt.Fprintf(out, "run:    %s\n", report.RunID)
	}
	fmt.Fprintf(out, "rounds: %d\n", report.Result.Rounds)
	fmt.Fprintf(out, "steps:  %d\n", report.Result.Steps)
	if report.Evaluation != nil {
		b := report.Evaluation.Benchmark
		fmt.Fprintf(out, "validation wealth:    %.2f\n",
			report.Evaluation.Final())
		fmt.Fprintf(out, "validation benchmark: %.2f\n", b[len(b)-1])
	}
	return nil
}
