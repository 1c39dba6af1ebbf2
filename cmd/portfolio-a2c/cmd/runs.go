package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/portfolioa2c/experiment/journal"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the training runs in a journal",
	RunE:  runRuns,
}

var (
	runsJournal string
	runsRounds  string
)

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().StringVarP(&runsJournal, "journal", "j", "runs.db",
		"path to SQLite journal")
	runsCmd.Flags().StringVar(&runsRounds, "rounds", "",
		"list the rounds and final wealth of the run with this id")
}

func runRuns(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(runsJournal)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if runsRounds != "" {
		rounds, err := j.Rounds(ctx, runsRounds)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ROUND\tCONTRIBUTORS\tSTEPS\tLOSS\tFINISHED")
		for _, r := range rounds {
			fmt.Fprintf(w, "%d\t%d\t%d\t%.6g\t%d\n", r.Round, r.Contributors,
				r.Steps, r.Loss, r.Finished)
		}

		wealth, err := j.Wealth(ctx, runsRounds)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "\nWORKER\tWEALTH")
		workers := make([]int, 0, len(wealth))
		for worker := range wealth {
			workers = append(workers, worker)
		}
		sort.Ints(workers)
		for _, worker := range workers {
			fmt.Fprintf(w, "%d\t%.2f\n", worker, wealth[worker])
		}
		return nil
	}

	runs, err := j.ListRuns(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tWORKERS\tT_MAX\tROUNDS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n", r.ID,
			r.Started.Format("2006-01-02 15:04:05"), r.Status, r.Workers,
			r.TMax, r.Rounds)
	}
	return nil
}
