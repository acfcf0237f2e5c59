// Package cmd provides the CLI commands for policyrag.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohik-agnext/docker-chatbot/pkg/version"
)

var (
	configPath string
	logLevel   string
)

// NewRootCmd creates the root command for the policyrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policyrag",
		Short: "Hybrid retrieval engine for policy document QA",
		Long: `policyrag serves namespace-scoped hybrid retrieval (BM25 + vector
search fused with reciprocal rank fusion) over a policy document corpus.

Run 'policyrag serve' to start the HTTP server, or 'policyrag search' for
a one-shot query against a local corpus snapshot.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("policyrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "policyrag.yaml", "Path to the config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(
		newServeCmd(),
		newSearchCmd(),
		newStatsCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}
