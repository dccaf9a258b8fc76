package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/powerhawk/cli/internal/simulator"
	"github.com/telhawk-systems/powerhawk/cli/pkg/output"
	"github.com/telhawk-systems/powerhawk/common/logging"

	natsclient "github.com/telhawk-systems/powerhawk/common/messaging/nats"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish synthetic device packets",
	Long: `Generate packets for a simulated fleet and publish them on the raw
device uplink subjects consumed by the enrich service.

Packets alternate between the flat and nested SlaveData shapes. A fraction
of them can carry a timed-out kw reading to exercise validation.`,
	Example: `  pwctl simulate --devices 20 --count 1000 --interval 10ms
  pwctl simulate --devices 5 --plants 2 --invalid-ratio 0.1 --seed 42`,
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	devices, _ := cmd.Flags().GetInt("devices")
	plants, _ := cmd.Flags().GetInt("plants")
	count, _ := cmd.Flags().GetInt("count")
	interval, _ := cmd.Flags().GetDuration("interval")
	invalidRatio, _ := cmd.Flags().GetFloat64("invalid-ratio")
	seed, _ := cmd.Flags().GetInt64("seed")

	if devices < 1 || count < 1 {
		return fmt.Errorf("--devices and --count must be at least 1")
	}
	if invalidRatio < 0 || invalidRatio > 1 {
		return fmt.Errorf("--invalid-ratio must be between 0 and 1")
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	p, err := activeProfile()
	if err != nil {
		return err
	}

	logger := logging.New(slog.LevelInfo, "text").With(logging.Service("pwctl"))

	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = p.NATSURL
	natsCfg.Name = "pwctl-simulate"
	natsCfg.MaxReconnects = 5
	natsCfg.Logger = logger.Logger
	nc, err := natsclient.NewClient(natsCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := simulator.NewGenerator(simulator.Config{
		Devices:      devices,
		Plants:       plants,
		InvalidRatio: invalidRatio,
		Seed:         seed,
	})

	output.Info("Simulating %d devices across %d plants on %s", devices, plants, p.RawSubject)
	stats, err := simulator.NewRunner(nc, p.RawSubject, gen, logger).Run(ctx, count, interval)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err := nc.Drain(); err != nil {
		output.Warn("drain: %v", err)
	}

	table := output.NewTable([]string{"PUBLISHED", "INVALID", "FAILED"})
	table.AddRow([]string{fmt.Sprint(stats.Published), fmt.Sprint(stats.Invalid), fmt.Sprint(stats.Failed)})
	return render(cmd, stats, table)
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().Int("devices", 10, "number of simulated devices")
	simulateCmd.Flags().Int("plants", 1, "number of plants the devices are spread across")
	simulateCmd.Flags().Int("count", 100, "total packets to publish")
	simulateCmd.Flags().Duration("interval", time.Second, "pause between packets")
	simulateCmd.Flags().Float64("invalid-ratio", 0, "fraction of packets with a timed-out kw reading")
	simulateCmd.Flags().Int64("seed", 0, "random seed (default: time based)")
}
