package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/powerhawk/cli/internal/config"
	"github.com/telhawk-systems/powerhawk/cli/pkg/output"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage deployment profiles",
}

var profileSetCmd = &cobra.Command{
	Use:     "set <name>",
	Short:   "Create or update a profile and make it current",
	Example: `  pwctl profile set staging --latest-url https://latest.staging:8083 --nats-url nats://nats.staging:4222`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			cfg = config.Default()
		}

		p := cfg.Profiles[args[0]]
		if p == nil {
			p = &config.Profile{}
		}

		fields := map[string]*string{
			"enrich-url":   &p.EnrichURL,
			"writer-url":   &p.WriterURL,
			"latest-url":   &p.LatestURL,
			"archive-url":  &p.ArchiveURL,
			"nats-url":     &p.NATSURL,
			"raw-subject":  &p.RawSubject,
			"database-url": &p.DatabaseURL,
			"device-token": &p.DeviceToken,
		}
		for flag, field := range fields {
			if cmd.Flags().Changed(flag) {
				*field, _ = cmd.Flags().GetString(flag)
			}
		}

		if err := cfg.SaveProfile(args[0], p); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		output.Success("Profile %s saved", args[0])
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved endpoints of the active profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := activeProfile()
		if err != nil {
			return err
		}

		settings := [][2]string{
			{"enrich_url", p.EnrichURL},
			{"writer_url", p.WriterURL},
			{"latest_url", p.LatestURL},
			{"archive_url", p.ArchiveURL},
			{"nats_url", p.NATSURL},
			{"raw_subject", p.RawSubject},
		}

		table := output.NewTable([]string{"SETTING", "VALUE"})
		view := make(map[string]string, len(settings))
		for _, kv := range settings {
			table.AddRow([]string{kv[0], kv[1]})
			view[kv[0]] = kv[1]
		}
		return render(cmd, view, table)
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileShowCmd)

	profileSetCmd.Flags().String("enrich-url", "", "enrich service URL")
	profileSetCmd.Flags().String("writer-url", "", "writer service URL")
	profileSetCmd.Flags().String("latest-url", "", "latest service URL")
	profileSetCmd.Flags().String("archive-url", "", "archive service URL")
	profileSetCmd.Flags().String("nats-url", "", "NATS server URL")
	profileSetCmd.Flags().String("raw-subject", "", "raw device uplink subject filter")
	profileSetCmd.Flags().String("database-url", "", "postgres connection URL")
	profileSetCmd.Flags().String("device-token", "", "default device bearer token")
}
