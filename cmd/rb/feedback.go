package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rulebook-dev/rulebook/internal/feedback"
	"github.com/rulebook-dev/rulebook/internal/types"
	"github.com/rulebook-dev/rulebook/internal/ui"
)

var feedbackCmd = &cobra.Command{
	Use:     "feedback",
	Aliases: []string{"fb"},
	GroupID: "review",
	Short:   "Propose, review and merge changes to governed metadata",
	Long: `A feedback item proposes creating, updating or deleting one coding rule,
rule example, class template or checklist item. It starts in PENDING_LLM, is
approved or rejected by automated review, and, unless classified SAFE, needs a
human approval before it can be merged.

Examples:
  rb feedback create --target CODING_RULE --type CREATE --payload-file rule.yaml
  rb feedback review
  rb feedback awaiting
  rb feedback approve fb-1a2b3c --human
  rb feedback merge fb-1a2b3c`,
}

var feedbackCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Record a new proposal",
	Long: `Record a new proposal. The payload is a JSON object given inline with
--payload, or a JSON, YAML or TOML file given with --payload-file ("-" reads
stdin). UPDATE and DELETE need --target-id.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		targetFlag, _ := cmd.Flags().GetString("target")
		typeFlag, _ := cmd.Flags().GetString("type")
		targetID, _ := cmd.Flags().GetString("target-id")
		inline, _ := cmd.Flags().GetString("payload")
		file, _ := cmd.Flags().GetString("payload-file")

		targetType, err := types.ParseTargetType(targetFlag)
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		feedbackType, err := types.ParseFeedbackType(typeFlag)
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		payload, err := readPayload(inline, file, os.Stdin)
		if err != nil {
			FatalErrorRespectJSON(err)
		}

		id, err := svc.Create(rootCtx, feedback.CreateRequest{
			TargetType:   targetType,
			TargetID:     targetID,
			FeedbackType: feedbackType,
			Payload:      payload,
		})
		if err != nil {
			FatalErrorRespectJSON(err)
		}

		if jsonOutput {
			f, err := svc.Get(rootCtx, id)
			if err != nil {
				FatalErrorRespectJSON(err)
			}
			outputJSON(f)
			return
		}
		fmt.Printf("%s Created %s\n", ui.RenderPassIcon(), ui.RenderBold(id))
	},
}

var feedbackShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a feedback item",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		full, _ := cmd.Flags().GetBool("full")
		f, err := svc.Get(rootCtx, args[0])
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		if jsonOutput {
			outputJSON(f)
			return
		}
		writeFeedbackDetail(os.Stdout, f, full)
	},
}

var feedbackApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a proposal (automated review stage, or --human)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		human, _ := cmd.Flags().GetBool("human")
		action := types.ActionLLMApprove
		if human {
			action = types.ActionHumanApprove
		}
		runDecision(args[0], action, "")
	},
}

var feedbackRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a proposal with a reason",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		human, _ := cmd.Flags().GetBool("human")
		notes, _ := cmd.Flags().GetString("notes")
		if notes == "" {
			FatalErrorRespectJSON(fmt.Errorf("--notes is required when rejecting"))
		}
		action := types.ActionLLMReject
		if human {
			action = types.ActionHumanReject
		}
		runDecision(args[0], action, notes)
	},
}

func runDecision(id string, action types.Action, notes string) {
	if action == types.ActionHumanApprove || action == types.ActionHumanReject {
		logger.Info("Human decision", "id", id, "action", action, "actor", getActor())
	}
	f, err := svc.Process(rootCtx, id, action, notes)
	if err != nil {
		FatalErrorRespectJSON(err)
	}
	if jsonOutput {
		outputJSON(f)
		return
	}
	icon := ui.RenderPassIcon()
	if f.Status.IsRejection() {
		icon = ui.RenderFailIcon()
	}
	fmt.Printf("%s %s is now %s\n", icon, ui.RenderBold(f.ID), ui.RenderStatus(f.Status))
	if f.Status == types.StatusLLMApproved && f.RiskLevel.RequiresHumanReview() {
		fmt.Println(ui.RenderMuted(fmt.Sprintf("  %s risk: needs 'rb feedback approve %s --human' before merge", f.RiskLevel, f.ID)))
	}
}

var feedbackMergeCmd = &cobra.Command{
	Use:   "merge <id>",
	Short: "Apply an approved proposal to its target",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		res, err := svc.Merge(rootCtx, args[0])
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		if jsonOutput {
			outputJSON(res)
			return
		}
		f := res.Feedback
		fmt.Printf("%s Merged %s: %s %s %s\n", ui.RenderPassIcon(), ui.RenderBold(f.ID),
			f.FeedbackType, f.TargetType, res.TargetID)
	},
}

func init() {
	feedbackCreateCmd.Flags().String("target", "", "Target type: CODING_RULE, RULE_EXAMPLE, CLASS_TEMPLATE, CHECKLIST_ITEM")
	feedbackCreateCmd.Flags().String("type", "", "Change: CREATE, UPDATE or DELETE")
	feedbackCreateCmd.Flags().String("target-id", "", "Entity to update or delete")
	feedbackCreateCmd.Flags().String("payload", "", "Payload as a JSON object")
	feedbackCreateCmd.Flags().String("payload-file", "", "Payload file (.json, .yaml, .toml, or - for stdin)")
	_ = feedbackCreateCmd.MarkFlagRequired("target")
	_ = feedbackCreateCmd.MarkFlagRequired("type")

	feedbackShowCmd.Flags().Bool("full", false, "Show the complete payload")

	feedbackApproveCmd.Flags().Bool("human", false, "Record a human approval (after automated approval)")
	feedbackRejectCmd.Flags().Bool("human", false, "Record a human rejection (after automated approval)")
	feedbackRejectCmd.Flags().StringP("notes", "m", "", "Reason for the rejection")

	feedbackCmd.AddCommand(feedbackCreateCmd, feedbackShowCmd, feedbackApproveCmd, feedbackRejectCmd, feedbackMergeCmd)
	rootCmd.AddCommand(feedbackCmd)
}
