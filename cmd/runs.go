package cmd

import (
	"github.com/spf13/cobra"

	"arboreal/harvest/internal/db"
	"arboreal/harvest/internal/report"
)

var (
	runsJSON  bool
	runsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List downloads recorded in the SQLite file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		runs, err := d.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		if runsJSON {
			if runs == nil {
				runs = []db.Run{}
			}
			return report.WriteJSON(cmd.OutOrStdout(), runs)
		}
		report.WriteRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().String("sqlite", "", "SQLite file written by download --sqlite")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "Output as JSON")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to show (0 for all)")
	rootCmd.AddCommand(runsCmd)
}
