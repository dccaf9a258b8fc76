package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/powerhawk/cli/internal/client"
	"github.com/telhawk-systems/powerhawk/cli/pkg/output"
)

var packetsCmd = &cobra.Command{
	Use:   "packets",
	Short: "Packet ingress commands",
}

var packetsSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Post packets to the enrich service",
	Long:  "Send NDJSON packets (one JSON object per line) from a file or stdin to the enrich HTTP endpoint",
	Example: `  pwctl packets send --file readings.ndjson
  echo '{"macId":"AA:BB","kw":12.5}' | pwctl packets send`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		token, _ := cmd.Flags().GetString("token")

		var in io.Reader = cmd.InOrStdin()
		if file != "" && file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		packets, err := readPackets(in)
		if err != nil {
			return err
		}
		if len(packets) == 0 {
			return fmt.Errorf("no packets to send")
		}

		p, err := activeProfile()
		if err != nil {
			return err
		}
		if token == "" {
			token = p.DeviceToken
		}

		res, err := client.NewPacketClient(p.EnrichURL, token).Send(cmd.Context(), packets)
		if err != nil {
			return fmt.Errorf("failed to send packets: %w", err)
		}

		table := output.NewTable([]string{"ACCEPTED", "DROPPED"})
		table.AddRow([]string{fmt.Sprint(res.Accepted), fmt.Sprint(res.Dropped)})
		return render(cmd, res, table)
	},
}

func readPackets(r io.Reader) ([]map[string]any, error) {
	var packets []map[string]any
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var p map[string]any
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		packets = append(packets, p)
	}
	return packets, scanner.Err()
}

func init() {
	rootCmd.AddCommand(packetsCmd)
	packetsCmd.AddCommand(packetsSendCmd)

	packetsSendCmd.Flags().StringP("file", "f", "", "NDJSON file (default: stdin)")
	packetsSendCmd.Flags().StringP("token", "t", "", "device bearer token (default: profile device_token)")
}
