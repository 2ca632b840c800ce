package types

import "time"

// CodingRule is an architectural or coding rule enforced by reviewers.
type CodingRule struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"` // Short unique key, e.g. "ARCH-001"
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Severity ranks how strictly a coding rule is enforced.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// RuleExample is a good or bad code sample attached to a coding rule.
type RuleExample struct {
	ID          string      `json:"id"`
	RuleID      string      `json:"rule_id"`
	Kind        ExampleKind `json:"kind"`
	Language    string      `json:"language"`
	Snippet     string      `json:"snippet"`
	Explanation string      `json:"explanation,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ExampleKind marks an example as compliant or violating.
type ExampleKind string

const (
	ExampleGood ExampleKind = "GOOD"
	ExampleBad  ExampleKind = "BAD"
)

// IsValid checks if the example kind value is valid
func (k ExampleKind) IsValid() bool {
	return k == ExampleGood || k == ExampleBad
}

// ClassTemplate is a code skeleton for a class in a given architectural layer.
type ClassTemplate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Layer       string    `json:"layer"`
	Language    string    `json:"language"`
	Content     string    `json:"content"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChecklistItem is one line of a review checklist.
type ChecklistItem struct {
	ID          string    `json:"id"`
	Checklist   string    `json:"checklist"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
