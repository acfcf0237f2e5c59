package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// newStatsCmd creates the stats command: fetches /stats from a running server.
func newStatsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats from a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := fmt.Sprintf("http://%s/stats", addr)
			client := &http.Client{Timeout: 5 * time.Second}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", url, err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
			}

			var stats json.RawMessage
			if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
				return err
			}
			var pretty map[string]any
			if err := json.Unmarshal(stats, &pretty); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pretty)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "Address of the running server")
	return cmd
}
