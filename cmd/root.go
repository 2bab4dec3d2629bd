// Package cmd implements the ai-platform-rag command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Knowledge-base retrieval toolkit",
	Long: `ragctl manages the knowledge-base retrieval pipeline: it chunks markdown
documents into hierarchical sections, vectorizes them into PostgreSQL with
pgvector, searches sections semantically, and answers questions through the
two-tier routing protocol against the configured answer engines.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
