package types

import "time"

// FeedbackFilter narrows feedback searches. Zero-valued fields do not filter.
type FeedbackFilter struct {
	Statuses      []Status
	TargetType    TargetType
	TargetID      string
	FeedbackType  FeedbackType
	RiskLevels    []RiskLevel
	ExcludeRisks  []RiskLevel
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Matches reports whether f satisfies every set criterion. Stores that
// cannot push a filter down to their query language use it directly.
func (ff FeedbackFilter) Matches(f *Feedback) bool {
	if len(ff.Statuses) > 0 && !contains(ff.Statuses, f.Status) {
		return false
	}
	if ff.TargetType != "" && f.TargetType != ff.TargetType {
		return false
	}
	if ff.TargetID != "" && f.TargetID != ff.TargetID {
		return false
	}
	if ff.FeedbackType != "" && f.FeedbackType != ff.FeedbackType {
		return false
	}
	if len(ff.RiskLevels) > 0 && !contains(ff.RiskLevels, f.RiskLevel) {
		return false
	}
	if len(ff.ExcludeRisks) > 0 && contains(ff.ExcludeRisks, f.RiskLevel) {
		return false
	}
	if ff.CreatedAfter != nil && !f.CreatedAt.After(*ff.CreatedAfter) {
		return false
	}
	if ff.CreatedBefore != nil && !f.CreatedAt.Before(*ff.CreatedBefore) {
		return false
	}
	return true
}

// Slice is one bounded, ordered page of a cursor query.
type Slice[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
	Size       int    `json:"size"`
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
