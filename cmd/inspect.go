package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"arboreal/harvest/internal/aggregate"
	"arboreal/harvest/internal/config"
	"arboreal/harvest/internal/report"
	"arboreal/harvest/internal/table"
)

var (
	inspectJSON bool
	inspectRows int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <sample-id>",
	Short: "Aggregate one sample and show what it contributes to each dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid sample id %q", args[0])
		}
		ctx := cmd.Context()
		logger := config.GetLogger(ctx)
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		started := time.Now()
		all, err := aggregate.LoadSamples(ctx, client)
		if err != nil {
			return err
		}
		samples := selectSample(all, id)
		if samples.Len() == 0 {
			logger.Warn("sample not in sample list, inspecting detail only", slog.Int64("sample_id", id))
			samples.Append(table.Row{aggregate.SampleIDColumn: id})
		}

		res, err := aggregate.New(aggregate.Options{Logger: logger}).Aggregate(ctx, samples, client)
		if err != nil {
			return err
		}
		summary := report.NewSummary(res)
		summary.Integrity = aggregate.CheckIntegrity(res, integrityTopN)
		summary.ElapsedMs = time.Since(started).Milliseconds()

		out := cmd.OutOrStdout()
		if inspectJSON {
			return report.WriteJSON(out, summary)
		}
		report.WriteSummary(out, summary)
		if inspectRows != 0 {
			for _, n := range res.Tables()[1:] {
				if n.Table.Len() == 0 {
					continue
				}
				fmt.Fprintf(out, "\n%s\n", n.Name)
				report.WriteTable(out, n.Table, inspectRows)
			}
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
	inspectCmd.Flags().IntVar(&inspectRows, "rows", 5, "Rows to preview per dataset (0 to hide, -1 for all)")
	rootCmd.AddCommand(inspectCmd)
}

// selectSample returns the rows of samples whose sample_id is id, keeping the
// column layout.
func selectSample(samples *table.Table, id int64) *table.Table {
	out := table.New(samples.Columns...)
	for _, row := range samples.Rows {
		if v, err := table.Int64(row[aggregate.SampleIDColumn]); err == nil && v == id {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
