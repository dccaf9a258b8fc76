package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/powerhawk/enrich/pkg/tokens"
)

var deviceTokenCmd = &cobra.Command{
	Use:   "device-token <macId>",
	Short: "Issue a device bearer token",
	Long: `Sign an HS256 device token for the enrich packet endpoint.

The secret must match the enrich service auth.device_jwt_secret. It is read
from --secret or POWERHAWK_AUTH_DEVICE_JWT_SECRET.`,
	Example: `  pwctl device-token AA:BB:CC:DD:EE:FF --ttl 720h`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		if secret == "" {
			secret = os.Getenv("POWERHAWK_AUTH_DEVICE_JWT_SECRET")
		}
		if secret == "" {
			return fmt.Errorf("a signing secret is required (use --secret)")
		}

		token, err := tokens.NewDeviceTokens(secret, ttl).Issue(args[0])
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deviceTokenCmd)

	deviceTokenCmd.Flags().String("secret", "", "HS256 signing secret")
	deviceTokenCmd.Flags().Duration("ttl", 0, "token lifetime (0 issues a token without expiry)")
}
