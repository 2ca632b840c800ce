// Package workflow enforces the feedback review state machine.
//
// The guard is pure: it inspects a status and a risk level and either allows
// the requested action or returns a *TransitionError. It performs no I/O, so
// the full transition table can be tested without a store.
//
//	PENDING_LLM ──LLM_APPROVE──▶ LLM_APPROVED ──HUMAN_APPROVE (risk≠SAFE)──▶ HUMAN_APPROVED
//	     │                           │   │                                       │
//	     └─LLM_REJECT─▶ LLM_REJECTED │   └─MERGE (risk=SAFE)─▶ MERGED ◀──MERGE───┘
//	                                 └─HUMAN_REJECT─▶ HUMAN_REJECTED
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/rulebook-dev/rulebook/internal/types"
)

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid state transition")

// TransitionError reports an action that is illegal from the current state.
// Risk is set only when the risk level is what blocked the action.
type TransitionError struct {
	From   types.Status
	Action types.Action
	Risk   types.RiskLevel
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s feedback in status %s", e.Action, e.From)
	if e.Risk != "" {
		msg += fmt.Sprintf(" with risk %s", e.Risk)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// rule is one row of the transition table.
type rule struct {
	from   types.Status
	action types.Action
	to     types.Status
	// allow is an additional risk precondition; nil means none.
	allow func(types.RiskLevel) bool
	// denied explains a failed risk precondition.
	denied string
}

var table = []rule{
	{from: types.StatusPendingLLM, action: types.ActionLLMApprove, to: types.StatusLLMApproved},
	{from: types.StatusPendingLLM, action: types.ActionLLMReject, to: types.StatusLLMRejected},
	{
		from: types.StatusLLMApproved, action: types.ActionHumanApprove, to: types.StatusHumanApproved,
		allow:  types.RiskLevel.RequiresHumanReview,
		denied: "SAFE feedback does not go through human review",
	},
	{from: types.StatusLLMApproved, action: types.ActionHumanReject, to: types.StatusHumanRejected},
	{
		from: types.StatusLLMApproved, action: types.ActionMerge, to: types.StatusMerged,
		allow:  func(r types.RiskLevel) bool { return r == types.RiskSafe },
		denied: "human approval is required before merge",
	},
	{from: types.StatusHumanApproved, action: types.ActionMerge, to: types.StatusMerged},
}

// Transition returns the status that action leads to from status at the
// given risk level, or a *TransitionError when the table forbids it.
func Transition(status types.Status, action types.Action, risk types.RiskLevel) (types.Status, error) {
	for _, r := range table {
		if r.from != status || r.action != action {
			continue
		}
		if r.allow != nil && !r.allow(risk) {
			return "", &TransitionError{From: status, Action: action, Risk: risk, Reason: r.denied}
		}
		return r.to, nil
	}

	reason := ""
	switch {
	case !action.IsValid():
		reason = "unknown action"
	case status == types.StatusMerged:
		reason = "feedback is already merged"
	case status.IsTerminal():
		reason = "feedback is in a terminal state"
	}
	return "", &TransitionError{From: status, Action: action, Reason: reason}
}

// Check reports whether action is legal from status at the given risk level.
func Check(status types.Status, action types.Action, risk types.RiskLevel) error {
	_, err := Transition(status, action, risk)
	return err
}

// Allowed lists the actions legal from status at the given risk level, in
// table order.
func Allowed(status types.Status, risk types.RiskLevel) []types.Action {
	var actions []types.Action
	for _, a := range types.AllActions() {
		if Check(status, a, risk) == nil {
			actions = append(actions, a)
		}
	}
	return actions
}

// Apply runs the guard against f and, when allowed, moves f to the next
// status. Review notes are recorded only for rejections; approvals leave
// them untouched so notes never appear outside a rejection state.
func Apply(f *types.Feedback, action types.Action, notes string, now time.Time) error {
	next, err := Transition(f.Status, action, f.RiskLevel)
	if err != nil {
		return err
	}
	f.Status = next
	if action.IsRejection() {
		f.ReviewNotes = notes
	}
	f.UpdatedAt = now
	return nil
}
