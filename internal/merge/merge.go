// Package merge applies approved feedback to the governed entity it targets.
//
// Two registries are keyed by target type. A Validator checks type-specific
// merge preconditions (the target still exists, the parent rule is present,
// no older pending proposal conflicts). A Strategy decodes the payload and
// performs the create, update or delete through the caller's transaction.
// Both run inside the same unit of work as the MERGED status write.
package merge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rulebook-dev/rulebook/internal/registry"
	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// ErrMergeNotEligible is matched by every *NotEligibleError.
var ErrMergeNotEligible = errors.New("merge not eligible")

// NotEligibleError reports a type-specific precondition that blocks a merge.
// The feedback item keeps its approved status and the merge may be retried
// once the underlying condition is resolved.
type NotEligibleError struct {
	FeedbackID string
	TargetType types.TargetType
	TargetID   string
	Reason     string
}

func (e *NotEligibleError) Error() string {
	if e.TargetID != "" {
		return fmt.Sprintf("feedback %s cannot be merged into %s %s: %s", e.FeedbackID, e.TargetType, e.TargetID, e.Reason)
	}
	return fmt.Sprintf("feedback %s cannot be merged into %s: %s", e.FeedbackID, e.TargetType, e.Reason)
}

func (e *NotEligibleError) Is(target error) bool {
	return target == ErrMergeNotEligible
}

func notEligible(f *types.Feedback, format string, args ...any) error {
	return &NotEligibleError{
		FeedbackID: f.ID,
		TargetType: f.TargetType,
		TargetID:   f.TargetID,
		Reason:     fmt.Sprintf(format, args...),
	}
}

// Validator checks merge-time eligibility for one target type. The generic
// status and risk checks have already passed when Validate is called.
type Validator interface {
	Validate(ctx context.Context, tx storage.Transaction, f *types.Feedback) error
}

// Strategy applies an approved payload to the target entity and returns the
// ID of the entity it created, updated or deleted.
type Strategy interface {
	Merge(ctx context.Context, tx storage.Transaction, f *types.Feedback) (string, error)
}

// ValidatorRegistry maps target types to merge validators.
type ValidatorRegistry = registry.Registry[Validator]

// StrategyRegistry maps target types to merge strategies.
type StrategyRegistry = registry.Registry[Strategy]

// NewValidatorRegistry returns an empty merge validator registry.
func NewValidatorRegistry() *ValidatorRegistry {
	return registry.New[Validator]("merge validator")
}

// NewStrategyRegistry returns an empty merge strategy registry.
func NewStrategyRegistry() *StrategyRegistry {
	return registry.New[Strategy]("merge strategy")
}

// DefaultValidators returns validators for every built-in target type.
func DefaultValidators() *ValidatorRegistry {
	r := NewValidatorRegistry()
	r.MustRegister(types.TargetCodingRule, &entityValidator[types.CodingRule]{
		t:      codingRules,
		checks: []check{uniqueRuleCode, ruleHasNoExamples},
	})
	r.MustRegister(types.TargetRuleExample, &entityValidator[types.RuleExample]{
		t:      ruleExamples,
		checks: []check{parentRuleExists},
	})
	r.MustRegister(types.TargetClassTemplate, &entityValidator[types.ClassTemplate]{t: classTemplates})
	r.MustRegister(types.TargetChecklistItem, &entityValidator[types.ChecklistItem]{t: checklistItems})
	return r
}

// DefaultStrategies returns strategies for every built-in target type,
// stamping entities with the wall clock.
func DefaultStrategies() *StrategyRegistry {
	return NewStrategies(time.Now)
}

// NewStrategies returns strategies for every built-in target type that take
// entity timestamps from now.
func NewStrategies(now func() time.Time) *StrategyRegistry {
	r := NewStrategyRegistry()
	r.MustRegister(types.TargetCodingRule, &entityStrategy[types.CodingRule]{t: codingRules, now: now})
	r.MustRegister(types.TargetRuleExample, &entityStrategy[types.RuleExample]{t: ruleExamples, now: now})
	r.MustRegister(types.TargetClassTemplate, &entityStrategy[types.ClassTemplate]{t: classTemplates, now: now})
	r.MustRegister(types.TargetChecklistItem, &entityStrategy[types.ChecklistItem]{t: checklistItems, now: now})
	return r
}
