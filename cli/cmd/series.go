package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/powerhawk/cli/internal/client"
	"github.com/telhawk-systems/powerhawk/cli/pkg/output"
	"github.com/telhawk-systems/powerhawk/common/models"
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Query the time-series store",
	Long: `Read time-series rows from the writer service.

Without --machine, every bucket of the plant is read.`,
	Example: `  pwctl series --plant plant-1 --machine compressor-7 --since 1h
  pwctl series --plant plant-1 --limit 50 -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		plant, _ := cmd.Flags().GetString("plant")
		machine, _ := cmd.Flags().GetString("machine")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		if plant == "" {
			return fmt.Errorf("--plant is required")
		}

		q := client.SeriesQuery{Plant: plant, Machine: machine, Limit: limit}
		if since > 0 {
			q.From = time.Now().Add(-since).UnixMilli()
		}

		p, err := activeProfile()
		if err != nil {
			return err
		}

		rows, err := client.NewSeriesClient(p.WriterURL).List(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("failed to query series: %w", err)
		}
		return render(cmd, rows, seriesTable(rows))
	},
}

func seriesTable(rows []models.TimeSeriesRow) *output.Table {
	table := output.NewTable([]string{"TIMESTAMP", "PLANT", "MACHINE", "BUCKET", "KW", "KVA", "UTIL"})
	for _, r := range rows {
		table.AddRow([]string{
			formatMillis(r.Timestamp),
			r.PlantID,
			r.MachineID,
			r.PlantBucket,
			formatFloat(r.KW),
			formatFloat(r.KVA),
			formatInt(r.Utilization),
		})
	}
	return table
}

func init() {
	rootCmd.AddCommand(seriesCmd)

	seriesCmd.Flags().String("plant", "", "plant id")
	seriesCmd.Flags().String("machine", "", "machine id (default: all machines of the plant)")
	seriesCmd.Flags().Duration("since", 0, "only rows newer than this duration")
	seriesCmd.Flags().Int("limit", 0, "maximum rows (default: server limit)")
}
