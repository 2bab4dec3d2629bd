package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huangkk10/ai-platform-rag/internal/app"
	"github.com/huangkk10/ai-platform-rag/internal/config"
	"github.com/huangkk10/ai-platform-rag/internal/knowledge"
	"github.com/huangkk10/ai-platform-rag/internal/rag"
)

var (
	searchSourceTable string
	searchLimit       int
	searchThreshold   float64
	searchContext     string
	searchWindow      int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find relevant sections by semantic similarity",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchSourceTable, "source-table", "", "restrict search to one source table (required)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum cosine similarity")
	searchCmd.Flags().StringVar(&searchContext, "context", "", "context expansion: adjacent, hierarchical or both")
	searchCmd.Flags().IntVar(&searchWindow, "window", 0, "adjacent context window size")
	_ = searchCmd.MarkFlagRequired("source-table")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	var opts []knowledge.SearchOption
	if searchLimit > 0 {
		opts = append(opts, knowledge.WithLimit(int32(searchLimit)))
	}
	if searchThreshold > 0 {
		opts = append(opts, knowledge.WithThreshold(float32(searchThreshold)))
	}

	if searchContext == "" {
		results, err := a.Retriever.Search(ctx, args[0], searchSourceTable, opts...)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}
		for i, hit := range results {
			printHit(i+1, hit)
		}
		if len(results) == 0 {
			fmt.Println("No sections matched.")
		}
		return nil
	}

	mode, err := contextMode(searchContext)
	if err != nil {
		return err
	}
	ctxOpts := rag.ContextOptions{Mode: mode, Window: int32(searchWindow), IncludeSiblings: true}

	results, err := a.Retriever.SearchWithContext(ctx, args[0], searchSourceTable, ctxOpts, opts...)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	for i, hit := range results {
		printHit(i+1, hit.Result)
		if hit.Parent != nil {
			fmt.Printf("     parent: %s\n", hit.Parent.Path)
		}
		for _, child := range hit.Children {
			fmt.Printf("     child: %s\n", child.Path)
		}
		for _, sib := range hit.Siblings {
			fmt.Printf("     sibling: %s\n", sib.Path)
		}
		for _, adj := range hit.Adjacent {
			fmt.Printf("     adjacent: %s\n", adj.Path)
		}
	}
	if len(results) == 0 {
		fmt.Println("No sections matched.")
	}
	return nil
}

func printHit(rank int, hit knowledge.Result) {
	fmt.Printf("%2d. [%.3f] %s\n", rank, hit.Similarity, hit.Section.Path)
}

func contextMode(s string) (rag.ContextMode, error) {
	switch s {
	case "adjacent":
		return rag.ContextAdjacent, nil
	case "hierarchical":
		return rag.ContextHierarchical, nil
	case "both":
		return rag.ContextBoth, nil
	default:
		return "", fmt.Errorf("unknown context mode %q (want adjacent, hierarchical or both)", s)
	}
}
