package cmd

import (
	"fmt"
	"os/user"
	"strings"

	"github.com/spf13/cobra"

	"github.com/huangkk10/ai-platform-rag/internal/app"
	"github.com/huangkk10/ai-platform-rag/internal/config"
	"github.com/huangkk10/ai-platform-rag/internal/router"
)

var (
	askCategory string
	askUser     string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question through the two-tier routing protocol",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askCategory, "category", "", "knowledge-base category to ask (required)")
	askCmd.Flags().StringVar(&askUser, "user", "", "user identifier sent to the answer engine")
	_ = askCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	r, ok := a.Router(askCategory)
	if !ok {
		return fmt.Errorf("no answer engine configured for category %q (configured: %s)",
			askCategory, strings.Join(a.Bindings.Categories(), ", "))
	}

	userID := askUser
	if userID == "" {
		if u, err := user.Current(); err == nil {
			userID = u.Username
		} else {
			userID = "anonymous"
		}
	}

	question := strings.Join(args, " ")
	decision, err := r.Route(ctx, question, userID)
	if err != nil {
		return fmt.Errorf("the answer service is temporarily unavailable: %w", err)
	}

	fmt.Println(decision.Answer)
	printDecisionDetail(decision)
	return nil
}

func printDecisionDetail(d *router.Decision) {
	fmt.Println()
	fmt.Printf("[mode=%s stage=%d outcome=%s]\n", d.Mode, d.Stage, d.Outcome)
	if len(d.Citations) > 0 {
		fmt.Println("Sources:")
		for _, c := range d.Citations {
			fmt.Printf("  - %s (%.2f)\n", c.DocumentName, c.Score)
		}
	}
}
