package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/huangkk10/ai-platform-rag/internal/app"
	"github.com/huangkk10/ai-platform-rag/internal/config"
)

var (
	indexSourceTable string
	indexSourceID    int64
	indexTitle       string
	indexForce       bool
)

var indexCmd = &cobra.Command{
	Use:   "index [markdown file or directory]",
	Short: "Chunk markdown documents and vectorize their sections",
	Long: `Index chunks a markdown document into hierarchical sections and stores
one embedding per section. Given a directory, every .md file in it is
indexed; source ids are assigned sequentially starting from --source-id.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexSourceTable, "source-table", "", "source table the documents belong to (required)")
	indexCmd.Flags().Int64Var(&indexSourceID, "source-id", 0, "row id of the document in its source table (required)")
	indexCmd.Flags().StringVar(&indexTitle, "title", "", "document title, single file only (defaults to the file name)")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "delete existing section vectors before indexing")
	_ = indexCmd.MarkFlagRequired("source-table")
	_ = indexCmd.MarkFlagRequired("source-id")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	if info.IsDir() {
		if indexTitle != "" {
			return fmt.Errorf("--title applies to a single file, not a directory")
		}
		return indexDirectory(cmd, a, args[0])
	}
	return indexFile(cmd, a, args[0], indexSourceID, indexTitle)
}

// indexDirectory indexes every .md file under dir in path order, assigning
// sequential source ids from --source-id.
func indexDirectory(cmd *cobra.Command, a *app.App, dir string) error {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .md files under %s", dir)
	}
	sort.Strings(paths)

	var failed int
	for i, path := range paths {
		fmt.Printf("%s: ", path)
		if err := indexFile(cmd, a, path, indexSourceID+int64(i), ""); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  %v\n", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(paths))
	}
	return nil
}

func indexFile(cmd *cobra.Command, a *app.App, path string, sourceID int64, title string) error {
	ctx := cmd.Context()

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	result, err := a.Vectorizer.Vectorize(ctx, indexSourceTable, sourceID, string(content), title, indexForce)
	if err != nil {
		return fmt.Errorf("vectorizing document: %w", err)
	}

	fmt.Printf("Indexed %d/%d sections", result.VectorizedCount, result.TotalSections)
	if result.DeletedCount > 0 {
		fmt.Printf(" (replaced %d existing)", result.DeletedCount)
	}
	fmt.Println()

	for _, secErr := range result.SectionErrors {
		fmt.Fprintf(os.Stderr, "  failed: %v\n", secErr)
	}
	if !result.Success {
		return fmt.Errorf("no section was vectorized")
	}
	return nil
}
