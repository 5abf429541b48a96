package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewRecommendCmd creates the 'recommend' command for ranked suggestions.
func NewRecommendCmd() *cobra.Command {
	var configPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "recommend <context-signature> <tool>...",
		Short: "Rank candidate tools for a context",
		Long: `Rank the given candidate tools for a context signature using the learned
policy and execution statistics. Read-only; no policy state changes.`,
		Example: `  planning-agent recommend 3f7c2b... smart_retrieve get_members run_job
  planning-agent recommend 3f7c2b... smart_retrieve get_members --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(configPath, args[0], args[1:], jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

// runRecommend prints ranked recommendations for the context.
func runRecommend(configPath, contextSig string, tools []string, jsonOutput bool) error {
	a, err := newApp(configPath, false)
	if err != nil {
		return err
	}
	defer a.close()

	recs, err := a.engine.Recommendations(context.Background(), contextSig, tools)
	if err != nil {
		return fmt.Errorf("computing recommendations: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tTOOL\tCONFIDENCE\tVISITS")
	for i, rec := range recs {
		fmt.Fprintf(w, "%d\t%s\t%.3f\t%d\n", i+1, rec.ToolName, rec.Confidence, rec.VisitCount)
	}
	return w.Flush()
}
