package merge

import (
	"context"
	"errors"

	"github.com/rulebook-dev/rulebook/internal/payload"
	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// check is an extra type-specific precondition. doc is the decoded payload.
type check func(ctx context.Context, tx storage.Transaction, f *types.Feedback, doc map[string]any) error

// entityValidator enforces the preconditions shared by every target type
// and then runs the type's extra checks.
type entityValidator[E any] struct {
	t      *target[E]
	checks []check
}

func (v *entityValidator[E]) Validate(ctx context.Context, tx storage.Transaction, f *types.Feedback) error {
	switch f.FeedbackType {
	case types.FeedbackCreate:
		if f.TargetID != "" {
			_, err := v.t.get(ctx, tx, f.TargetID)
			if err == nil {
				return notEligible(f, "%s already exists", v.t.name)
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		}
	case types.FeedbackUpdate, types.FeedbackDelete:
		if f.TargetID == "" {
			return notEligible(f, "%s requires a target id", f.FeedbackType)
		}
		_, err := v.t.get(ctx, tx, f.TargetID)
		if errors.Is(err, storage.ErrNotFound) {
			return notEligible(f, "%s no longer exists", v.t.name)
		}
		if err != nil {
			return err
		}
		if err := v.noConflictingPending(ctx, tx, f); err != nil {
			return err
		}
	default:
		return notEligible(f, "unknown feedback type %q", f.FeedbackType)
	}

	if len(v.checks) == 0 {
		return nil
	}
	doc, err := payload.Decode(f.Payload)
	if err != nil {
		return notEligible(f, "%v", err)
	}
	for _, c := range v.checks {
		if err := c(ctx, tx, f, doc); err != nil {
			return err
		}
	}
	return nil
}

// noConflictingPending blocks an UPDATE or DELETE while an older proposal
// for the same target still awaits its first review and touches the same
// keys. A DELETE overlaps everything. The block clears once the older
// proposal is reviewed.
func (v *entityValidator[E]) noConflictingPending(ctx context.Context, tx storage.Transaction, f *types.Feedback) error {
	createdAt := f.CreatedAt
	older, err := tx.SearchFeedback(ctx, storage.SliceCriteria{
		Filter: types.FeedbackFilter{
			Statuses:      []types.Status{types.StatusPendingLLM},
			TargetType:    f.TargetType,
			TargetID:      f.TargetID,
			CreatedBefore: &createdAt,
		},
	})
	if err != nil {
		return err
	}
	keys := payloadKeys(f)
	for _, other := range older {
		if other.ID == f.ID || other.FeedbackType == types.FeedbackCreate {
			continue
		}
		if f.FeedbackType == types.FeedbackDelete || other.FeedbackType == types.FeedbackDelete ||
			overlaps(keys, payloadKeys(other)) {
			return notEligible(f, "pending feedback %s proposes a conflicting change to this %s", other.ID, v.t.name)
		}
	}
	return nil
}

func payloadKeys(f *types.Feedback) map[string]bool {
	doc, err := payload.Decode(f.Payload)
	if err != nil {
		return nil
	}
	keys := make(map[string]bool, len(doc))
	for k := range doc {
		keys[k] = true
	}
	return keys
}

func overlaps(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

// uniqueRuleCode rejects a rule code already used by another rule.
func uniqueRuleCode(ctx context.Context, tx storage.Transaction, f *types.Feedback, doc map[string]any) error {
	if f.FeedbackType == types.FeedbackDelete {
		return nil
	}
	code, _ := doc["code"].(string)
	if code == "" {
		return nil
	}
	existing, err := tx.GetCodingRuleByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == f.TargetID && f.FeedbackType == types.FeedbackUpdate {
		return nil
	}
	return notEligible(f, "rule code %q is already used by %s", code, existing.ID)
}

// ruleHasNoExamples blocks deleting a rule that still has examples.
func ruleHasNoExamples(ctx context.Context, tx storage.Transaction, f *types.Feedback, _ map[string]any) error {
	if f.FeedbackType != types.FeedbackDelete {
		return nil
	}
	examples, err := tx.ListRuleExamples(ctx, f.TargetID)
	if err != nil {
		return err
	}
	if n := len(examples); n > 0 {
		return notEligible(f, "coding rule still has %d example(s)", n)
	}
	return nil
}

// parentRuleExists requires the coding rule an example points at.
func parentRuleExists(ctx context.Context, tx storage.Transaction, f *types.Feedback, doc map[string]any) error {
	if f.FeedbackType == types.FeedbackDelete {
		return nil
	}
	ruleID, _ := doc["rule_id"].(string)
	if ruleID == "" {
		return nil
	}
	_, err := tx.GetCodingRule(ctx, ruleID)
	if errors.Is(err, storage.ErrNotFound) {
		return notEligible(f, "parent coding rule %s does not exist", ruleID)
	}
	return err
}
