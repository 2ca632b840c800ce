// Package types defines core data structures for the rulebook feedback workflow.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Feedback is a proposed change to a governed entity, tracked through the
// review workflow until it is rejected or merged.
type Feedback struct {
	ID           string          `json:"id"`
	TargetType   TargetType      `json:"target_type"`
	TargetID     string          `json:"target_id,omitempty"` // May name a not-yet-existing entity for CREATE
	FeedbackType FeedbackType    `json:"feedback_type"`
	RiskLevel    RiskLevel       `json:"risk_level"`
	Payload      json.RawMessage `json:"payload,omitempty"` // Opaque; decoded only by the merge strategy
	Status       Status          `json:"status"`
	ReviewNotes  string          `json:"review_notes,omitempty"` // Set only on rejection
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Version is bumped by the store on every successful update and is used
	// to detect lost updates between load and save.
	Version int64 `json:"-"`
}

// Snapshot returns a deep copy of f so callers can hand it out without
// sharing the payload buffer.
func (f *Feedback) Snapshot() *Feedback {
	if f == nil {
		return nil
	}
	cp := *f
	if f.Payload != nil {
		cp.Payload = append(json.RawMessage(nil), f.Payload...)
	}
	return &cp
}

// TargetType identifies which kind of governed entity a feedback item concerns.
type TargetType string

const (
	TargetCodingRule    TargetType = "CODING_RULE"
	TargetRuleExample   TargetType = "RULE_EXAMPLE"
	TargetClassTemplate TargetType = "CLASS_TEMPLATE"
	TargetChecklistItem TargetType = "CHECKLIST_ITEM"
)

// AllTargetTypes returns every known target type in declaration order.
func AllTargetTypes() []TargetType {
	return []TargetType{TargetCodingRule, TargetRuleExample, TargetClassTemplate, TargetChecklistItem}
}

// IsValid checks if the target type is one of the known kinds.
func (t TargetType) IsValid() bool {
	switch t {
	case TargetCodingRule, TargetRuleExample, TargetClassTemplate, TargetChecklistItem:
		return true
	}
	return false
}

// ParseTargetType parses a target type case-insensitively. Dashes are
// accepted in place of underscores ("coding-rule").
func ParseTargetType(s string) (TargetType, error) {
	t := TargetType(normalizeTag(s))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid target type %q (valid: %s)", s, joinTags(AllTargetTypes()))
	}
	return t, nil
}

// FeedbackType describes what kind of mutation a feedback item proposes.
type FeedbackType string

const (
	FeedbackCreate FeedbackType = "CREATE"
	FeedbackUpdate FeedbackType = "UPDATE"
	FeedbackDelete FeedbackType = "DELETE"
)

// IsValid checks if the feedback type value is valid
func (t FeedbackType) IsValid() bool {
	switch t {
	case FeedbackCreate, FeedbackUpdate, FeedbackDelete:
		return true
	}
	return false
}

// ParseFeedbackType parses a feedback type case-insensitively.
func ParseFeedbackType(s string) (FeedbackType, error) {
	t := FeedbackType(normalizeTag(s))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid feedback type %q (valid: CREATE, UPDATE, DELETE)", s)
	}
	return t, nil
}

// RiskLevel determines whether human review is required before merge.
type RiskLevel string

const (
	RiskSafe   RiskLevel = "SAFE"
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// AllRiskLevels returns the risk levels from least to most risky.
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{RiskSafe, RiskLow, RiskMedium, RiskHigh}
}

// IsValid checks if the risk level value is valid
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskSafe, RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// RequiresHumanReview reports whether a human must sign off before merge.
// SAFE items may merge straight after automated approval.
func (r RiskLevel) RequiresHumanReview() bool {
	return r != RiskSafe
}

// ParseRiskLevel parses a risk level case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(normalizeTag(s))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid risk level %q (valid: SAFE, LOW, MEDIUM, HIGH)", s)
	}
	return r, nil
}

// Status is the workflow state of a feedback item.
type Status string

const (
	StatusPendingLLM    Status = "PENDING_LLM"
	StatusLLMApproved   Status = "LLM_APPROVED"
	StatusLLMRejected   Status = "LLM_REJECTED"
	StatusHumanApproved Status = "HUMAN_APPROVED"
	StatusHumanRejected Status = "HUMAN_REJECTED"
	StatusMerged        Status = "MERGED"
)

// AllStatuses returns every workflow status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPendingLLM,
		StatusLLMApproved,
		StatusLLMRejected,
		StatusHumanApproved,
		StatusHumanRejected,
		StatusMerged,
	}
}

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingLLM, StatusLLMApproved, StatusLLMRejected,
		StatusHumanApproved, StatusHumanRejected, StatusMerged:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusLLMRejected, StatusHumanRejected, StatusMerged:
		return true
	}
	return false
}

// IsRejection reports whether s is one of the rejection states.
func (s Status) IsRejection() bool {
	return s == StatusLLMRejected || s == StatusHumanRejected
}

// ParseStatus parses a status case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(normalizeTag(s))
	if !st.IsValid() {
		return "", fmt.Errorf("invalid status %q (valid: %s)", s, joinTags(AllStatuses()))
	}
	return st, nil
}

// Action is a workflow transition request.
type Action string

const (
	ActionLLMApprove   Action = "LLM_APPROVE"
	ActionLLMReject    Action = "LLM_REJECT"
	ActionHumanApprove Action = "HUMAN_APPROVE"
	ActionHumanReject  Action = "HUMAN_REJECT"
	ActionMerge        Action = "MERGE"
)

// AllActions returns every workflow action.
func AllActions() []Action {
	return []Action{ActionLLMApprove, ActionLLMReject, ActionHumanApprove, ActionHumanReject, ActionMerge}
}

// IsValid checks if the action value is valid
func (a Action) IsValid() bool {
	switch a {
	case ActionLLMApprove, ActionLLMReject, ActionHumanApprove, ActionHumanReject, ActionMerge:
		return true
	}
	return false
}

// IsProcessAction reports whether a is a review decision (everything but MERGE).
func (a Action) IsProcessAction() bool {
	return a.IsValid() && a != ActionMerge
}

// IsRejection reports whether a records review notes.
func (a Action) IsRejection() bool {
	return a == ActionLLMReject || a == ActionHumanReject
}

// ParseAction parses an action case-insensitively.
func ParseAction(s string) (Action, error) {
	a := Action(normalizeTag(s))
	if !a.IsValid() {
		return "", fmt.Errorf("invalid action %q (valid: %s)", s, joinTags(AllActions()))
	}
	return a, nil
}

func normalizeTag(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
}

func joinTags[T ~string](tags []T) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
