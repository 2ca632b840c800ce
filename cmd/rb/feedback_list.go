package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rulebook-dev/rulebook/internal/config"
	"github.com/rulebook-dev/rulebook/internal/timeparsing"
	"github.com/rulebook-dev/rulebook/internal/types"
)

type pageFunc func(ctx context.Context, cursor string, size int) (*types.Slice[*types.Feedback], error)

func pageSizeFlag(cmd *cobra.Command) int {
	if cmd.Flags().Changed("size") {
		size, _ := cmd.Flags().GetInt("size")
		return size
	}
	return config.PageSize()
}

func runPage(cmd *cobra.Command, fetch pageFunc, empty string) {
	cursor, _ := cmd.Flags().GetString("cursor")
	page, err := fetch(rootCtx, cursor, pageSizeFlag(cmd))
	if err != nil {
		FatalErrorRespectJSON(err)
	}
	if jsonOutput {
		outputJSON(page)
		return
	}
	writePage(os.Stdout, page, empty)
}

var feedbackPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List proposals awaiting automated review",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runPage(cmd, svc.ListPending, "No proposals awaiting automated review.")
	},
}

var feedbackAwaitingCmd = &cobra.Command{
	Use:   "awaiting",
	Short: "List approved proposals that need a human decision",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runPage(cmd, svc.ListAwaitingHumanReview, "No proposals awaiting human review.")
	},
}

var feedbackSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search feedback by status, target, type, risk and creation time",
	Long: `Search feedback. Repeat --status and --risk to match any of several values.
--since and --until accept -7d, 2025-01-31, RFC3339 or phrases like "yesterday".

Examples:
  rb feedback search --status MERGED --since -30d
  rb feedback search --target CODING_RULE --risk HIGH --risk MEDIUM
  rb feedback search --target-id rule-1a2b3c`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		filter, err := searchFilterFromFlags(cmd, time.Now())
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		runPage(cmd, func(ctx context.Context, cursor string, size int) (*types.Slice[*types.Feedback], error) {
			return svc.Search(ctx, filter, cursor, size)
		}, "No matching feedback.")
	},
}

// searchFilterFromFlags builds a filter from the search flags.
func searchFilterFromFlags(cmd *cobra.Command, now time.Time) (types.FeedbackFilter, error) {
	var filter types.FeedbackFilter

	statuses, _ := cmd.Flags().GetStringSlice("status")
	for _, s := range statuses {
		st, err := types.ParseStatus(s)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	risks, _ := cmd.Flags().GetStringSlice("risk")
	for _, s := range risks {
		r, err := types.ParseRiskLevel(s)
		if err != nil {
			return filter, err
		}
		filter.RiskLevels = append(filter.RiskLevels, r)
	}
	excluded, _ := cmd.Flags().GetStringSlice("exclude-risk")
	for _, s := range excluded {
		r, err := types.ParseRiskLevel(s)
		if err != nil {
			return filter, err
		}
		filter.ExcludeRisks = append(filter.ExcludeRisks, r)
	}

	if s, _ := cmd.Flags().GetString("target"); s != "" {
		tt, err := types.ParseTargetType(s)
		if err != nil {
			return filter, err
		}
		filter.TargetType = tt
	}
	if s, _ := cmd.Flags().GetString("type"); s != "" {
		ft, err := types.ParseFeedbackType(s)
		if err != nil {
			return filter, err
		}
		filter.FeedbackType = ft
	}
	filter.TargetID, _ = cmd.Flags().GetString("target-id")

	since, _ := cmd.Flags().GetString("since")
	until, _ := cmd.Flags().GetString("until")
	var err error
	if filter.CreatedAfter, err = timeparsing.ParseBound(since, now); err != nil {
		return filter, fmt.Errorf("--since: %w", err)
	}
	if filter.CreatedBefore, err = timeparsing.ParseBound(until, now); err != nil {
		return filter, fmt.Errorf("--until: %w", err)
	}
	if filter.CreatedAfter != nil && filter.CreatedBefore != nil && !filter.CreatedAfter.Before(*filter.CreatedBefore) {
		return filter, fmt.Errorf("--since must be before --until")
	}
	return filter, nil
}

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().String("cursor", "", "Continue from the cursor printed by the previous page")
	cmd.Flags().Int("size", 0, "Page size, 1-100 (default from page-size config)")
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("status", nil, "Status to match (repeatable)")
	cmd.Flags().StringSlice("risk", nil, "Risk level to match (repeatable)")
	cmd.Flags().StringSlice("exclude-risk", nil, "Risk level to exclude (repeatable)")
	cmd.Flags().String("target", "", "Target type")
	cmd.Flags().String("target-id", "", "Target entity ID")
	cmd.Flags().String("type", "", "Feedback type: CREATE, UPDATE or DELETE")
	cmd.Flags().String("since", "", "Created after (e.g. -7d, 2025-01-31, yesterday)")
	cmd.Flags().String("until", "", "Created before")
}

func init() {
	for _, c := range []*cobra.Command{feedbackPendingCmd, feedbackAwaitingCmd, feedbackSearchCmd} {
		addPageFlags(c)
	}
	addSearchFlags(feedbackSearchCmd)
	feedbackCmd.AddCommand(feedbackPendingCmd, feedbackAwaitingCmd, feedbackSearchCmd)
}
