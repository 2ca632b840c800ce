// Package risk assigns a risk level to new feedback.
//
// The level is computed once, when feedback is created, and decides whether
// a human must approve it before merge. The built-in PolicyClassifier maps
// (target type, feedback type) pairs to levels through an ordered rule list
// that can be overridden from configuration.
package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rulebook-dev/rulebook/internal/types"
)

// Classifier computes the risk level of a proposed change.
type Classifier interface {
	Classify(ctx context.Context, tt types.TargetType, ft types.FeedbackType, payload json.RawMessage) (types.RiskLevel, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, tt types.TargetType, ft types.FeedbackType, payload json.RawMessage) (types.RiskLevel, error)

func (f ClassifierFunc) Classify(ctx context.Context, tt types.TargetType, ft types.FeedbackType, payload json.RawMessage) (types.RiskLevel, error) {
	return f(ctx, tt, ft, payload)
}

// Fixed returns a classifier that always answers level.
func Fixed(level types.RiskLevel) Classifier {
	return ClassifierFunc(func(context.Context, types.TargetType, types.FeedbackType, json.RawMessage) (types.RiskLevel, error) {
		return level, nil
	})
}

// Rule maps a (target type, feedback type) pair to a level. Empty Target or
// Feedback matches anything.
type Rule struct {
	Target   types.TargetType
	Feedback types.FeedbackType
	Level    types.RiskLevel
}

// Matches reports whether r applies to the pair.
func (r Rule) Matches(tt types.TargetType, ft types.FeedbackType) bool {
	return (r.Target == "" || r.Target == tt) && (r.Feedback == "" || r.Feedback == ft)
}

// String renders r in the form ParseRule accepts.
func (r Rule) String() string {
	target, feedback := string(r.Target), string(r.Feedback)
	if target == "" {
		target = "*"
	}
	if feedback == "" {
		feedback = "*"
	}
	return fmt.Sprintf("%s:%s=%s", target, feedback, r.Level)
}

// ParseRule parses "TARGET:FEEDBACK=LEVEL" where either side of the colon
// may be "*" ("*:DELETE=HIGH", "checklist-item:update=safe").
func ParseRule(s string) (Rule, error) {
	lhs, level, ok := strings.Cut(s, "=")
	if !ok {
		return Rule{}, fmt.Errorf("risk rule %q: missing '=LEVEL'", s)
	}
	target, feedback, ok := strings.Cut(lhs, ":")
	if !ok {
		return Rule{}, fmt.Errorf("risk rule %q: expected TARGET:FEEDBACK before '='", s)
	}

	var r Rule
	var err error
	if t := strings.TrimSpace(target); t != "*" {
		if r.Target, err = types.ParseTargetType(t); err != nil {
			return Rule{}, fmt.Errorf("risk rule %q: %w", s, err)
		}
	}
	if f := strings.TrimSpace(feedback); f != "*" {
		if r.Feedback, err = types.ParseFeedbackType(f); err != nil {
			return Rule{}, fmt.Errorf("risk rule %q: %w", s, err)
		}
	}
	if r.Level, err = types.ParseRiskLevel(level); err != nil {
		return Rule{}, fmt.Errorf("risk rule %q: %w", s, err)
	}
	return r, nil
}

// DefaultRules is the built-in policy. Deletions always need a human;
// checklist wording changes and new examples carry little risk.
func DefaultRules() []Rule {
	return []Rule{
		{Feedback: types.FeedbackDelete, Level: types.RiskHigh},
		{Target: types.TargetChecklistItem, Feedback: types.FeedbackUpdate, Level: types.RiskSafe},
		{Target: types.TargetRuleExample, Feedback: types.FeedbackCreate, Level: types.RiskLow},
	}
}

// DefaultLevel applies when no rule matches.
const DefaultLevel = types.RiskMedium

// PolicyClassifier returns the level of the first matching rule.
type PolicyClassifier struct {
	rules    []Rule
	fallback types.RiskLevel
}

// NewPolicy builds a classifier from rules evaluated in order.
func NewPolicy(rules []Rule, fallback types.RiskLevel) (*PolicyClassifier, error) {
	if !fallback.IsValid() {
		return nil, fmt.Errorf("invalid default risk level %q", fallback)
	}
	for _, r := range rules {
		if !r.Level.IsValid() {
			return nil, fmt.Errorf("risk rule %s: invalid level", r)
		}
	}
	return &PolicyClassifier{rules: append([]Rule(nil), rules...), fallback: fallback}, nil
}

// Default returns the built-in policy.
func Default() *PolicyClassifier {
	p, _ := NewPolicy(DefaultRules(), DefaultLevel)
	return p
}

// FromConfig builds a policy from configured rule strings and default
// level. No rules means the built-in rules; an empty fallback means MEDIUM.
func FromConfig(rules []string, fallback string) (*PolicyClassifier, error) {
	level := DefaultLevel
	if strings.TrimSpace(fallback) != "" {
		var err error
		if level, err = types.ParseRiskLevel(fallback); err != nil {
			return nil, fmt.Errorf("risk.default: %w", err)
		}
	}
	if len(rules) == 0 {
		return NewPolicy(DefaultRules(), level)
	}
	parsed := make([]Rule, 0, len(rules))
	for _, s := range rules {
		r, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, r)
	}
	return NewPolicy(parsed, level)
}

// Classify implements Classifier. The payload is not inspected.
func (p *PolicyClassifier) Classify(_ context.Context, tt types.TargetType, ft types.FeedbackType, _ json.RawMessage) (types.RiskLevel, error) {
	for _, r := range p.rules {
		if r.Matches(tt, ft) {
			return r.Level, nil
		}
	}
	return p.fallback, nil
}

// Rules returns a copy of the rule list.
func (p *PolicyClassifier) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}
