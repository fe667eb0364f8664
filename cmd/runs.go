package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent job runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rl := openRunLog()
		if rl == nil {
			return eris.New("runs: run log unavailable")
		}
		defer rl.Close() //nolint:errcheck

		entries, err := rl.List(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "runs: list")
		}
		if len(entries) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tJOB\tSTATUS\tSTARTED\tDURATION\tRECORDS\tERROR")
		for _, e := range entries {
			duration := "-"
			if e.CompletedAt != nil {
				duration = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				e.ID[:8], e.Job, e.Status,
				e.StartedAt.Format(time.RFC3339),
				duration, e.Records, e.Error)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to show")
	rootCmd.AddCommand(runsCmd)
}
