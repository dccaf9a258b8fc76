package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/powerhawk/cli/internal/client"
	"github.com/telhawk-systems/powerhawk/cli/pkg/output"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Device registry commands",
	Long:  "Read and update the device registry used by the enrich service",
}

var registryGetCmd = &cobra.Command{
	Use:   "get <macId>",
	Short: "Show a registry entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := activeProfile()
		if err != nil {
			return err
		}

		dev, err := client.NewRegistryClient(p.EnrichURL).Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get device %s: %w", args[0], err)
		}
		return render(cmd, dev, deviceTable(dev))
	},
}

var registrySetCmd = &cobra.Command{
	Use:   "set <macId>",
	Short: "Create or replace a registry entry",
	Example: `  pwctl registry set AA:BB:CC:DD:EE:FF --plant plant-1 --machine compressor-7
  pwctl registry set AA:BB:CC:DD:EE:FF --plant plant-1 --util-threshold 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plant, _ := cmd.Flags().GetString("plant")
		machine, _ := cmd.Flags().GetString("machine")

		attrs := map[string]any{}
		if plant != "" {
			attrs["plantId"] = plant
		}
		if machine != "" {
			attrs["machineId"] = machine
		}
		if cmd.Flags().Changed("util-threshold") {
			threshold, _ := cmd.Flags().GetFloat64("util-threshold")
			attrs["utilThresholdKw"] = threshold
		}
		if len(attrs) == 0 {
			return fmt.Errorf("at least one of --plant, --machine or --util-threshold is required")
		}

		p, err := activeProfile()
		if err != nil {
			return err
		}

		dev, err := client.NewRegistryClient(p.EnrichURL).Put(cmd.Context(), args[0], attrs)
		if err != nil {
			return fmt.Errorf("failed to set device %s: %w", args[0], err)
		}
		return render(cmd, dev, deviceTable(dev))
	},
}

func deviceTable(dev *client.Device) *output.Table {
	table := output.NewTable([]string{"MAC ID", "ATTRIBUTE", "VALUE"})

	keys := make([]string, 0, len(dev.Attributes))
	for k := range dev.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		table.AddRow([]string{dev.MacID, k, formatValue(dev.Attributes[k])})
	}
	return table
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryGetCmd)
	registryCmd.AddCommand(registrySetCmd)

	registrySetCmd.Flags().String("plant", "", "plant id")
	registrySetCmd.Flags().String("machine", "", "machine id")
	registrySetCmd.Flags().Float64("util-threshold", 0, "utilization threshold in kW")
}
