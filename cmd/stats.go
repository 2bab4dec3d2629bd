package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huangkk10/ai-platform-rag/internal/app"
	"github.com/huangkk10/ai-platform-rag/internal/config"
	"github.com/huangkk10/ai-platform-rag/internal/knowledge"
)

var (
	statsSourceTable string
	statsSourceID    int64
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many sections are indexed for a document",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsSourceTable, "source-table", "", "source table the document belongs to (required)")
	statsCmd.Flags().Int64Var(&statsSourceID, "source-id", 0, "row id of the document in its source table (required)")
	_ = statsCmd.MarkFlagRequired("source-table")
	_ = statsCmd.MarkFlagRequired("source-id")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	key := knowledge.DocumentKey{SourceTable: statsSourceTable, SourceID: statsSourceID}
	count, err := a.Knowledge.CountDocument(ctx, key)
	if err != nil {
		return fmt.Errorf("counting sections: %w", err)
	}

	fmt.Printf("%s/%d: %d sections indexed\n", statsSourceTable, statsSourceID, count)
	return nil
}
