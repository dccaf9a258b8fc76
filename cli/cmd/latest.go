package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/powerhawk/cli/internal/client"
	"github.com/telhawk-systems/powerhawk/cli/pkg/output"
	"github.com/telhawk-systems/powerhawk/common/models"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Latest reading commands",
	Long:  "Show the most recent reading per machine from the latest service",
}

var latestGetCmd = &cobra.Command{
	Use:   "get <plantId> <machineId>",
	Short: "Show the latest reading of one machine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := activeProfile()
		if err != nil {
			return err
		}

		row, err := client.NewLatestClient(p.LatestURL).Get(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to get latest state: %w", err)
		}
		return render(cmd, row, latestTable([]models.LatestStateRow{row}))
	},
}

var latestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the latest readings of a plant",
	Example: `  pwctl latest list --plant plant-1
  pwctl latest list --plant plant-1 -o yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		plant, _ := cmd.Flags().GetString("plant")
		if plant == "" {
			return fmt.Errorf("--plant is required")
		}

		p, err := activeProfile()
		if err != nil {
			return err
		}

		rows, err := client.NewLatestClient(p.LatestURL).List(cmd.Context(), plant)
		if err != nil {
			return fmt.Errorf("failed to list latest state: %w", err)
		}
		return render(cmd, rows, latestTable(rows))
	},
}

func latestTable(rows []models.LatestStateRow) *output.Table {
	table := output.NewTable([]string{"PLANT", "MACHINE", "LAST SEEN", "KW", "KVAR", "KVA", "PF", "UTIL"})
	for _, r := range rows {
		table.AddRow([]string{
			r.PlantID,
			r.MachineID,
			formatMillis(r.LastTimestamp),
			formatFloat(r.KW),
			formatFloat(r.KVAr),
			formatFloat(r.KVA),
			formatFloat(r.PowerFactor),
			formatInt(r.Utilization),
		})
	}
	return table
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func formatFloat(o models.Optional[float64]) string {
	if v, ok := o.Get(); ok {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "-"
}

func formatInt(o models.Optional[int]) string {
	if v, ok := o.Get(); ok {
		return strconv.Itoa(v)
	}
	return "-"
}

func init() {
	rootCmd.AddCommand(latestCmd)
	latestCmd.AddCommand(latestGetCmd)
	latestCmd.AddCommand(latestListCmd)

	latestListCmd.Flags().String("plant", "", "plant id")
}
