package feedback

import (
	"context"
	"fmt"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
	"github.com/rulebook-dev/rulebook/internal/workflow"
)

// MergeResult is the outcome of a successful merge.
type MergeResult struct {
	Feedback *types.Feedback `json:"feedback"`
	TargetID string          `json:"target_id"` // Entity created, updated or deleted
}

// Process applies a review decision (LLM_APPROVE, LLM_REJECT, HUMAN_APPROVE,
// HUMAN_REJECT). Notes are recorded only for rejections.
func (s *Service) Process(ctx context.Context, id string, action types.Action, notes string) (*types.Feedback, error) {
	attrs := []any{"id", id, "action", action}

	var out *types.Feedback
	var from types.Status
	err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		f, err := tx.GetFeedback(ctx, id)
		if err != nil {
			return err
		}
		from = f.Status
		if !action.IsProcessAction() {
			return &workflow.TransitionError{
				From:   f.Status,
				Action: action,
				Reason: "not a review decision",
			}
		}
		if err := workflow.Apply(f, action, notes, s.clock()); err != nil {
			return err
		}
		if err := tx.UpdateFeedback(ctx, f); err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "process", err, attrs...)
	}

	s.recordTransition(ctx, out, from, action)
	s.log.Info("Feedback processed", "id", out.ID, "action", action,
		"from", from, "status", out.Status, "risk", out.RiskLevel)
	return out, nil
}

// Merge applies an approved feedback item to its target and moves it to
// MERGED. The guard, the type-specific validator, the strategy and the
// status write run in one transaction: if any step fails nothing changes.
func (s *Service) Merge(ctx context.Context, id string) (*MergeResult, error) {
	attrs := []any{"id", id, "action", types.ActionMerge}

	var result *MergeResult
	var from types.Status
	err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		f, err := tx.GetFeedback(ctx, id)
		if err != nil {
			return err
		}
		from = f.Status
		if err := workflow.Check(f.Status, types.ActionMerge, f.RiskLevel); err != nil {
			return err
		}

		validator, err := s.validators.Lookup(f.TargetType)
		if err != nil {
			return err
		}
		strategy, err := s.strategies.Lookup(f.TargetType)
		if err != nil {
			return err
		}
		if err := validator.Validate(ctx, tx, f); err != nil {
			return err
		}
		targetID, err := strategy.Merge(ctx, tx, f)
		if err != nil {
			return fmt.Errorf("apply %s %s: %w", f.TargetType, f.FeedbackType, err)
		}

		if err := workflow.Apply(f, types.ActionMerge, "", s.clock()); err != nil {
			return err
		}
		if err := tx.UpdateFeedback(ctx, f); err != nil {
			return err
		}
		result = &MergeResult{Feedback: f, TargetID: targetID}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "merge", err, attrs...)
	}

	s.recordTransition(ctx, result.Feedback, from, types.ActionMerge)
	s.log.Info("Feedback merged", "id", id, "from", from, "target_type", result.Feedback.TargetType,
		"target_id", result.TargetID, "risk", result.Feedback.RiskLevel)
	return result, nil
}
