package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohik-agnext/docker-chatbot/internal/retrieval"
)

// newSearchCmd creates the search command: a one-shot query against the
// local corpus snapshot, without a running server.
func newSearchCmd() *cobra.Command {
	var (
		topK       int
		namespaces []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot hybrid search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cleanup, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			orch, err := buildEngine(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = orch.Close() }()

			ctx := cmd.Context()
			if err := orch.Warmup(ctx); err != nil {
				return err
			}

			resp, err := orch.Retrieve(ctx, retrieval.Request{
				Query:      strings.Join(args, " "),
				Namespaces: namespaces,
				TopK:       topK,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Fprintf(out, "namespaces: %s\n", strings.Join(resp.Namespaces, ", "))
			if resp.Degraded {
				fmt.Fprintf(out, "degraded: %s source unavailable\n", resp.DegradedReason)
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for _, r := range resp.Results {
				fmt.Fprintf(out, "%2d. [%.4f] %s (%s/%s)\n    %s\n",
					r.Rank, r.Score, r.ChunkID, r.Namespace, r.Granularity, r.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (0 = configured default)")
	cmd.Flags().StringSliceVarP(&namespaces, "namespace", "n", nil, "Pin the search to specific namespaces")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the full response as JSON")
	return cmd
}
