package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the 'stats' command for inspecting tool performance.
func NewStatsCmd() *cobra.Command {
	var configPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-tool execution statistics",
		Long:  `Display aggregate success rate, rating, and latency per tool from the execution history.`,
		Example: `  planning-agent stats
  planning-agent stats --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(configPath, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

// runStats prints aggregate statistics for every tool with history.
func runStats(configPath string, jsonOutput bool) error {
	a, err := newApp(configPath, false)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.coordinator.ToolMetrics(context.Background())
	if err != nil {
		return fmt.Errorf("loading tool metrics: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	if len(stats) == 0 {
		fmt.Println("No executions recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tCALLS\tSUCCESS\tAVG RATING\tAVG TIME (MS)")
	for _, st := range stats {
		rating := "-"
		if st.RatedCalls > 0 {
			rating = fmt.Sprintf("%.1f (%d)", st.AvgRating, st.RatedCalls)
		}
		fmt.Fprintf(w, "%s\t%d\t%.0f%%\t%s\t%.0f\n",
			st.ToolName, st.TotalCalls, st.SuccessRate*100, rating, st.AvgTimeMs)
	}
	return w.Flush()
}
