/*
Package main is the entry point for the planning-agent CLI.

planning-agent is the learning core of a natural-language front end over an
enterprise planning REST API. It records tool executions, folds user
ratings back into a learned selection policy, and serves ranked tool
recommendations to the surrounding orchestrator.

Usage:
  planning-agent [command]

Available Commands:
  serve       Run the feedback and recommendation API
  stats       Show per-tool execution statistics
  rate        Attach a 1-5 rating to a recorded execution
  recommend   Rank candidate tools for a context
  version     Show version information

Examples:
  # Run the REST API
  planning-agent serve

  # Inspect learned tool performance
  planning-agent stats

  # Rate an execution from the terminal
  planning-agent rate 6d1f0a7e-... 5
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/epmlabs/planning-agent/internal/cli"
	"github.com/epmlabs/planning-agent/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "planning-agent",
		Short: "Learning core for tool selection in the planning agent",
		Long: `planning-agent records tool executions, learns from outcomes and delayed
user ratings, and recommends which tool to run next for a given context.

The learned policy is a per-(context, tool) value table updated after every
execution and again when a rating arrives. Recommendations combine the
learned values with historical success rate, rating, and latency.`,
		Version: version.GetVersion(),
	}

	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewStatsCmd())
	rootCmd.AddCommand(cli.NewRateCmd())
	rootCmd.AddCommand(cli.NewRecommendCmd())
	rootCmd.AddCommand(cli.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
