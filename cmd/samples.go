package cmd

import (
	"github.com/spf13/cobra"

	"arboreal/harvest/internal/aggregate"
	"arboreal/harvest/internal/report"
	"arboreal/harvest/internal/table"
)

var (
	samplesJSON  bool
	samplesLimit int
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "List the sample summaries visible to the API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		samples, err := aggregate.LoadSamples(ctx, client)
		if err != nil {
			return err
		}

		if samplesJSON {
			records := samples.Records()
			if samplesLimit > 0 && samplesLimit < len(records) {
				records = records[:samplesLimit]
			}
			if records == nil {
				records = []*table.Record{}
			}
			return report.WriteJSON(cmd.OutOrStdout(), records)
		}

		view := samples.Reindex(samplesColumns)
		report.WriteTable(cmd.OutOrStdout(), view, samplesLimit)
		return nil
	},
}

// samplesColumns is the terminal view; --json carries every column.
var samplesColumns = []string{"sample_id", "name", "unix_time", "area", "latitude", "longitude", "comment"}

func init() {
	samplesCmd.Flags().BoolVar(&samplesJSON, "json", false, "Output as JSON")
	samplesCmd.Flags().IntVar(&samplesLimit, "limit", 50, "Maximum rows to show (0 for all)")
	rootCmd.AddCommand(samplesCmd)
}
