package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rulebook-dev/rulebook/internal/config"
	"github.com/rulebook-dev/rulebook/internal/reviewer"
	"github.com/rulebook-dev/rulebook/internal/types"
	"github.com/rulebook-dev/rulebook/internal/ui"
)

var feedbackReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run automated review over pending proposals (or --human to decide interactively)",
	Long: `Without --human, every PENDING_LLM proposal is sent to the configured Claude
model and approved or rejected. Needs reviewer.api-key or ANTHROPIC_API_KEY.

With --human, walks through the proposals awaiting a human decision and asks
you to approve, reject or skip each one.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if human, _ := cmd.Flags().GetBool("human"); human {
			runHumanReview(cmd)
			return
		}

		settings := config.Reviewer()
		if v, _ := cmd.Flags().GetString("model"); v != "" {
			settings.Model = v
		}
		if cmd.Flags().Changed("concurrency") {
			settings.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}
		maxRetries := settings.MaxRetries
		if maxRetries == 0 {
			maxRetries = -1
		}

		rev, err := reviewer.NewAnthropic(reviewer.AnthropicOptions{
			APIKey:     settings.APIKey,
			Model:      settings.Model,
			MaxRetries: maxRetries,
		})
		if err != nil {
			if errors.Is(err, reviewer.ErrAPIKeyRequired) && !jsonOutput {
				FatalErrorWithHint(err.Error(), "rb config set reviewer.model <model>, and export ANTHROPIC_API_KEY")
			}
			FatalErrorRespectJSON(err)
		}
		runner, err := reviewer.NewRunner(reviewer.RunnerOptions{
			Service:     svc,
			Reviewer:    rev,
			Concurrency: settings.Concurrency,
			PageSize:    config.PageSize(),
			Logger:      logger,
		})
		if err != nil {
			FatalErrorRespectJSON(err)
		}

		logger.Info("Starting automated review", "model", rev.Model(), "concurrency", settings.Concurrency)
		sum, err := runner.Run(rootCtx)
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		if jsonOutput {
			outputJSON(sum)
			return
		}
		writeSummary(os.Stdout, "Reviewed", sum)
	},
}

var feedbackAutoMergeCmd = &cobra.Command{
	Use:   "automerge",
	Short: "Merge every proposal that needs no further decision",
	Long: `Merges LLM_APPROVED proposals classified SAFE, in creation order. With
--include-human-approved, HUMAN_APPROVED proposals are merged too.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		includeHuman, _ := cmd.Flags().GetBool("include-human-approved")
		runner, err := reviewer.NewRunner(reviewer.RunnerOptions{
			Service:  svc,
			PageSize: config.PageSize(),
			Logger:   logger,
		})
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		sum, err := runner.AutoMerge(rootCtx, reviewer.AutoMergeOptions{IncludeHumanApproved: includeHuman})
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		if jsonOutput {
			outputJSON(sum)
			return
		}
		writeSummary(os.Stdout, "Auto-merge", sum)
		for _, it := range sum.Items {
			fmt.Printf("  %s %s -> %s\n", ui.RenderPassIcon(), it.ID, it.TargetID)
		}
	},
}

const (
	choiceApprove = "approve"
	choiceReject  = "reject"
	choiceSkip    = "skip"
	choiceQuit    = "quit"
)

// errQuitReview ends an interactive session early.
var errQuitReview = errors.New("review ended")

func runHumanReview(cmd *cobra.Command) {
	if jsonOutput {
		FatalErrorRespectJSON(fmt.Errorf("--human is interactive and cannot be combined with --json"))
	}
	if !ui.IsInputTerminal() {
		FatalErrorWithHint("--human needs an interactive terminal",
			"use 'rb feedback approve <id> --human' or 'rb feedback reject <id> --human --notes ...'")
	}

	who := getActor()
	sum := &reviewer.Summary{}
	cursor := ""
	for {
		page, err := svc.ListAwaitingHumanReview(rootCtx, cursor, config.PageSize())
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		for _, f := range page.Items {
			if err := decideInteractively(f, who, sum); err != nil {
				if errors.Is(err, errQuitReview) || errors.Is(err, huh.ErrUserAborted) {
					writeSummary(os.Stdout, "Human review", sum)
					return
				}
				FatalError("form error: %v", err)
			}
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	if sum.Approved+sum.Rejected+sum.Skipped+sum.Failed == 0 {
		fmt.Println(ui.RenderMuted("No proposals awaiting human review."))
		return
	}
	writeSummary(os.Stdout, "Human review", sum)
}

func decideInteractively(f *types.Feedback, who string, sum *reviewer.Summary) error {
	fmt.Println()
	writeFeedbackDetail(os.Stdout, f, false)
	fmt.Println()

	choice := choiceSkip
	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Decision for %s", f.ID)).
			Description(fmt.Sprintf("%s risk %s %s", f.RiskLevel, f.FeedbackType, f.TargetType)).
			Options(
				huh.NewOption("Approve", choiceApprove),
				huh.NewOption("Reject", choiceReject),
				huh.NewOption("Skip for now", choiceSkip),
				huh.NewOption("Quit", choiceQuit),
			).
			Value(&choice),
	)).WithTheme(huh.ThemeDracula()).Run(); err != nil {
		return err
	}

	var action types.Action
	var notes string
	switch choice {
	case choiceQuit:
		return errQuitReview
	case choiceSkip:
		sum.Skipped++
		return nil
	case choiceApprove:
		action = types.ActionHumanApprove
	case choiceReject:
		action = types.ActionHumanReject
		if err := huh.NewForm(huh.NewGroup(
			huh.NewText().
				Title("Reason").
				Description("Recorded as the review notes (required)").
				CharLimit(2000).
				Value(&notes).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("a reason is required")
					}
					return nil
				}),
		)).WithTheme(huh.ThemeDracula()).Run(); err != nil {
			return err
		}
	}

	logger.Info("Human decision", "id", f.ID, "action", action, "actor", who)
	out, err := svc.Process(rootCtx, f.ID, action, strings.TrimSpace(notes))
	if err != nil {
		fmt.Printf("%s %s: %v\n", ui.RenderFailIcon(), f.ID, err)
		sum.Failed++
		sum.Errors = append(sum.Errors, &reviewer.ItemError{ID: f.ID, Err: err, Msg: err.Error()})
		return nil
	}
	if action == types.ActionHumanApprove {
		sum.Approved++
	} else {
		sum.Rejected++
	}
	fmt.Printf("%s %s is now %s\n", ui.StatusIcon(out.Status), out.ID, ui.RenderStatus(out.Status))
	return nil
}

func init() {
	feedbackReviewCmd.Flags().Bool("human", false, "Decide proposals awaiting human review interactively")
	feedbackReviewCmd.Flags().String("model", "", "Claude model (default from reviewer.model)")
	feedbackReviewCmd.Flags().Int("concurrency", 0, "Proposals reviewed in parallel (default from reviewer.concurrency)")

	feedbackAutoMergeCmd.Flags().Bool("include-human-approved", false, "Also merge HUMAN_APPROVED proposals")

	feedbackCmd.AddCommand(feedbackReviewCmd, feedbackAutoMergeCmd)
}
