package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the Monday.com board's column layout",
	Long: `Lists every column on the configured board with its identifier and type.
Useful for checking that the configured column IDs match the live board.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.RequireMonday(); err != nil {
			return err
		}

		client := newMondayClient()
		columns, err := client.Columns(ctx, cfg.Monday.BoardID)
		if err != nil {
			return eris.Wrap(err, "board: fetch columns")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TITLE\tID\tTYPE")
		for _, col := range columns {
			fmt.Fprintf(w, "%s\t%s\t%s\n", col.Title, col.ID, col.Type)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}
