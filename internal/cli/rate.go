package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRateCmd creates the 'rate' command for attaching a rating offline.
func NewRateCmd() *cobra.Command {
	var configPath string
	var feedbackText string

	cmd := &cobra.Command{
		Use:   "rate <execution-id> <rating>",
		Short: "Attach a 1-5 rating to a recorded execution",
		Long: `Attach a user rating to a previously recorded tool execution.

The rating triggers one delayed policy update with the recomputed reward.
Each execution can be rated once; later attempts are rejected.`,
		Example: `  planning-agent rate 6d1f0a7e-... 5
  planning-agent rate 6d1f0a7e-... 2 --feedback "wrong member list"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rating must be an integer 1-5, got %q", args[1])
			}
			return runRate(configPath, args[0], rating, feedbackText)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVarP(&feedbackText, "feedback", "f", "", "Optional free-text feedback")

	return cmd
}

// runRate attaches the rating and reports the outcome.
func runRate(configPath, executionID string, rating int, feedbackText string) error {
	a, err := newApp(configPath, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.coordinator.AttachRating(context.Background(), executionID, rating, feedbackText); err != nil {
		return err
	}

	fmt.Printf("Rated execution %s: %d stars\n", executionID, rating)
	return nil
}
