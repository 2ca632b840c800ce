package reviewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulebook-dev/rulebook/internal/feedback"
	"github.com/rulebook-dev/rulebook/internal/risk"
	"github.com/rulebook-dev/rulebook/internal/storage/memory"
	"github.com/rulebook-dev/rulebook/internal/types"
)

func newFeedbackService(t *testing.T, classifier risk.Classifier) *feedback.Service {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })
	svc, err := feedback.New(feedback.Options{Store: store, Classifier: classifier})
	require.NoError(t, err)
	return svc
}

func createRule(t *testing.T, svc *feedback.Service, code string) string {
	t.Helper()
	payload := fmt.Sprintf(`{"code":%q,"name":"Rule %s","description":"d","severity":"WARNING"}`, code, code)
	id, err := svc.Create(context.Background(), feedback.CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(payload),
	})
	require.NoError(t, err)
	return id
}

// approveUnlessRejectCode rejects rules whose code starts with "BAD".
var approveUnlessRejectCode = Func(func(_ context.Context, f *types.Feedback) (Verdict, error) {
	if strings.Contains(string(f.Payload), `"code":"BAD`) {
		return Verdict{Decision: DecisionReject, Notes: "too vague"}, nil
	}
	return Verdict{Decision: DecisionApprove}, nil
})

func TestNewRunnerRequiresService(t *testing.T) {
	_, err := NewRunner(RunnerOptions{Reviewer: approveUnlessRejectCode})
	require.Error(t, err)
}

func TestRunWithoutReviewer(t *testing.T) {
	r, err := NewRunner(RunnerOptions{Service: newFeedbackService(t, nil)})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.ErrorIs(t, err, ErrNoReviewer)

	sum, err := r.AutoMerge(context.Background(), AutoMergeOptions{})
	require.NoError(t, err)
	assert.Zero(t, sum.Merged)
}

func TestRunReviewsEveryPendingItem(t *testing.T) {
	ctx := context.Background()
	svc := newFeedbackService(t, risk.Fixed(types.RiskMedium))

	var good, bad []string
	for i := 0; i < 7; i++ {
		good = append(good, createRule(t, svc, fmt.Sprintf("ARCH-%03d", i)))
	}
	for i := 0; i < 3; i++ {
		bad = append(bad, createRule(t, svc, fmt.Sprintf("BAD-%03d", i)))
	}

	// Page size smaller than the backlog exercises cursor paging.
	r, err := NewRunner(RunnerOptions{Service: svc, Reviewer: approveUnlessRejectCode, Concurrency: 3, PageSize: 4})
	require.NoError(t, err)

	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Reviewed)
	assert.Equal(t, 7, sum.Approved)
	assert.Equal(t, 3, sum.Rejected)
	assert.Zero(t, sum.Failed)
	assert.Len(t, sum.Items, 10)

	for _, id := range good {
		f, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.StatusLLMApproved, f.Status)
		assert.Empty(t, f.ReviewNotes)
	}
	for _, id := range bad {
		f, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.StatusLLMRejected, f.Status)
		assert.Equal(t, "too vague", f.ReviewNotes)
	}

	pending, err := svc.ListPending(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, pending.Items)
}

func TestRunCollectsReviewerFailures(t *testing.T) {
	ctx := context.Background()
	svc := newFeedbackService(t, nil)
	ok := createRule(t, svc, "ARCH-001")
	broken := createRule(t, svc, "ARCH-002")

	rev := Func(func(_ context.Context, f *types.Feedback) (Verdict, error) {
		if f.ID == broken {
			return Verdict{}, errors.New("upstream unavailable")
		}
		return Verdict{Decision: DecisionApprove}, nil
	})
	r, err := NewRunner(RunnerOptions{Service: svc, Reviewer: rev})
	require.NoError(t, err)

	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Approved)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, broken, sum.Errors[0].ID)
	assert.Contains(t, sum.Errors[0].Error(), "upstream unavailable")

	f, err := svc.Get(ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLLMApproved, f.Status)
	f, err = svc.Get(ctx, broken)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPendingLLM, f.Status, "failed review leaves the item pending")
}

func TestRunSkipsItemsDecidedConcurrently(t *testing.T) {
	ctx := context.Background()
	svc := newFeedbackService(t, nil)
	id := createRule(t, svc, "ARCH-001")

	// Another reviewer decides the item while ours is still thinking.
	rev := Func(func(ctx context.Context, f *types.Feedback) (Verdict, error) {
		_, err := svc.Process(ctx, f.ID, types.ActionLLMReject, "duplicate")
		assert.NoError(t, err)
		return Verdict{Decision: DecisionApprove}, nil
	})
	r, err := NewRunner(RunnerOptions{Service: svc, Reviewer: rev})
	require.NoError(t, err)

	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, sum.Reviewed)
	assert.Zero(t, sum.Failed)

	f, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLLMRejected, f.Status)
}

func TestRunStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newFeedbackService(t, nil)
	for i := 0; i < 5; i++ {
		createRule(t, svc, fmt.Sprintf("ARCH-%03d", i))
	}

	var calls atomic.Int32
	rev := Func(func(ctx context.Context, _ *types.Feedback) (Verdict, error) {
		calls.Add(1)
		cancel()
		return Verdict{}, ctx.Err()
	})
	r, err := NewRunner(RunnerOptions{Service: svc, Reviewer: rev, Concurrency: 1})
	require.NoError(t, err)

	_, err = r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAutoMergeMergesSafeApprovals(t *testing.T) {
	ctx := context.Background()

	// CODING_RULE proposals are SAFE, everything else HIGH.
	classifier := risk.ClassifierFunc(func(_ context.Context, tt types.TargetType, _ types.FeedbackType, _ json.RawMessage) (types.RiskLevel, error) {
		if tt == types.TargetCodingRule {
			return types.RiskSafe, nil
		}
		return types.RiskHigh, nil
	})
	svc := newFeedbackService(t, classifier)

	safe := createRule(t, svc, "ARCH-001")
	pending := createRule(t, svc, "ARCH-002")
	high, err := svc.Create(ctx, feedback.CreateRequest{
		TargetType:   types.TargetChecklistItem,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(`{"checklist":"release","title":"Tag the build","position":1}`),
	})
	require.NoError(t, err)

	for _, id := range []string{safe, high} {
		_, err := svc.Process(ctx, id, types.ActionLLMApprove, "")
		require.NoError(t, err)
	}

	r, err := NewRunner(RunnerOptions{Service: svc})
	require.NoError(t, err)

	sum, err := r.AutoMerge(ctx, AutoMergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Merged)
	require.Len(t, sum.Items, 1)
	assert.Equal(t, safe, sum.Items[0].ID)
	assert.NotEmpty(t, sum.Items[0].TargetID)

	for id, want := range map[string]types.Status{
		safe:    types.StatusMerged,
		pending: types.StatusPendingLLM,
		high:    types.StatusLLMApproved,
	} {
		f, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, f.Status, id)
	}

	// A human approves the HIGH item; the second pass picks it up.
	_, err = svc.Process(ctx, high, types.ActionHumanApprove, "")
	require.NoError(t, err)
	sum, err = r.AutoMerge(ctx, AutoMergeOptions{IncludeHumanApproved: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Merged)

	f, err := svc.Get(ctx, high)
	require.NoError(t, err)
	assert.Equal(t, types.StatusMerged, f.Status)
}

func TestAutoMergeRecordsValidationFailures(t *testing.T) {
	ctx := context.Background()
	svc := newFeedbackService(t, risk.Fixed(types.RiskSafe))

	first := createRule(t, svc, "ARCH-001")
	dup := createRule(t, svc, "ARCH-001")
	for _, id := range []string{first, dup} {
		_, err := svc.Process(ctx, id, types.ActionLLMApprove, "")
		require.NoError(t, err)
	}

	r, err := NewRunner(RunnerOptions{Service: svc, Reviewer: approveUnlessRejectCode})
	require.NoError(t, err)
	sum, err := r.AutoMerge(ctx, AutoMergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Merged)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, dup, sum.Errors[0].ID)

	f, err := svc.Get(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLLMApproved, f.Status)
}
