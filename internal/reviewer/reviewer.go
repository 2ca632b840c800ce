// Package reviewer performs the automated review stage: every PENDING_LLM
// feedback item is judged by a Reviewer (normally a Claude model) and moved
// to LLM_APPROVED or LLM_REJECTED through the feedback service.
package reviewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rulebook-dev/rulebook/internal/types"
)

// Decision is a reviewer's judgement on one proposal.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Verdict is the outcome of reviewing one feedback item.
type Verdict struct {
	Decision Decision `json:"decision"`
	Notes    string   `json:"notes,omitempty"`
}

// Action maps the verdict to the workflow action the service applies.
func (v Verdict) Action() types.Action {
	if v.Decision == DecisionApprove {
		return types.ActionLLMApprove
	}
	return types.ActionLLMReject
}

// Reviewer judges a single feedback item.
type Reviewer interface {
	Review(ctx context.Context, f *types.Feedback) (Verdict, error)
}

// Func adapts a function to the Reviewer interface.
type Func func(ctx context.Context, f *types.Feedback) (Verdict, error)

// Review implements Reviewer.
func (fn Func) Review(ctx context.Context, f *types.Feedback) (Verdict, error) {
	return fn(ctx, f)
}

// ErrMalformedVerdict is returned when a model reply does not contain a
// usable verdict.
var ErrMalformedVerdict = errors.New("malformed verdict")

// ParseVerdict extracts the verdict object from a model reply. The reply may
// wrap the JSON in prose or a code fence.
func ParseVerdict(reply string) (Verdict, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Verdict{}, fmt.Errorf("%w: no JSON object in reply", ErrMalformedVerdict)
	}

	var v Verdict
	if err := json.Unmarshal([]byte(reply[start:end+1]), &v); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	v.Decision = Decision(strings.ToLower(strings.TrimSpace(string(v.Decision))))
	v.Notes = strings.TrimSpace(v.Notes)

	switch v.Decision {
	case DecisionApprove:
		v.Notes = ""
	case DecisionReject:
		if v.Notes == "" {
			v.Notes = "rejected by automated review"
		}
	default:
		return Verdict{}, fmt.Errorf("%w: unknown decision %q", ErrMalformedVerdict, v.Decision)
	}
	return v, nil
}
