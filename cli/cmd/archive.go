package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/powerhawk/cli/internal/client"
	"github.com/telhawk-systems/powerhawk/cli/pkg/output"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Bulk archive commands",
}

var archiveSanitizeCmd = &cobra.Command{
	Use:   "sanitize",
	Short: "Preview how the archive sanitizer treats records",
	Long:  "Send NDJSON records to the archive transform endpoint and show which are kept and how they are rewritten",
	Example: `  pwctl archive sanitize --file records.ndjson
  echo '{"kw":"Response Timed Out"}' | pwctl archive sanitize`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var in io.Reader = cmd.InOrStdin()
		if file != "" && file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		var docs [][]byte
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64<<10), 1<<20)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				docs = append(docs, []byte(line))
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no records to sanitize")
		}

		p, err := activeProfile()
		if err != nil {
			return err
		}

		results, err := client.NewArchiveClient(p.ArchiveURL).Transform(cmd.Context(), docs)
		if err != nil {
			return fmt.Errorf("failed to sanitize records: %w", err)
		}

		table := output.NewTable([]string{"RECORD", "RESULT", "DATA"})
		for _, r := range results {
			table.AddRow([]string{r.RecordID, r.Result, strings.TrimSuffix(r.Data, "\n")})
		}
		return render(cmd, results, table)
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveSanitizeCmd)

	archiveSanitizeCmd.Flags().StringP("file", "f", "", "NDJSON file (default: stdin)")
}
