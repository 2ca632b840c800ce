package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulebook-dev/rulebook/internal/merge"
	"github.com/rulebook-dev/rulebook/internal/payload"
	"github.com/rulebook-dev/rulebook/internal/registry"
	"github.com/rulebook-dev/rulebook/internal/risk"
	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/storage/memory"
	"github.com/rulebook-dev/rulebook/internal/types"
	"github.com/rulebook-dev/rulebook/internal/workflow"
)

const rulePayload = `{"code":"ARCH-001","name":"Layering","description":"Domain must not import infrastructure","severity":"ERROR"}`

// testClock advances a millisecond per call so ordering is deterministic.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newService(t *testing.T, classifier risk.Classifier) (*Service, storage.Storage) {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })
	clock := newTestClock()
	svc, err := New(Options{
		Store:      store,
		Classifier: classifier,
		Clock:      clock.Now,
	})
	require.NoError(t, err)
	return svc, store
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

// Scenario A: SAFE coding rule creation merges right after automated approval.
func TestSafeCreateMergesAfterLLMApproval(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, risk.Fixed(types.RiskSafe))

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	f, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPendingLLM, f.Status)
	assert.Equal(t, types.RiskSafe, f.RiskLevel)

	f, err = svc.Process(ctx, id, types.ActionLLMApprove, "")
	require.NoError(t, err)
	assert.Equal(t, types.StatusLLMApproved, f.Status)

	res, err := svc.Merge(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusMerged, res.Feedback.Status)
	assert.Empty(t, res.Feedback.ReviewNotes)

	rule, err := store.GetCodingRule(ctx, res.TargetID)
	require.NoError(t, err)
	assert.Equal(t, "ARCH-001", rule.Code)
	assert.Equal(t, types.SeverityError, rule.Severity)
}

// Scenario B: MEDIUM template update needs a human before merge.
func TestMediumUpdateRequiresHumanApproval(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, risk.Fixed(types.RiskMedium))

	tpl := &types.ClassTemplate{
		ID: "tpl-svc", Name: "Service", Layer: "application", Language: "go",
		Content: "type Service struct{}", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	tpl.UpdatedAt = tpl.CreatedAt
	require.NoError(t, store.CreateClassTemplate(ctx, tpl))

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetClassTemplate,
		TargetID:     tpl.ID,
		FeedbackType: types.FeedbackUpdate,
		Payload:      json.RawMessage(`{"content":"type Service struct{ repo Repo }"}`),
	})
	require.NoError(t, err)

	_, err = svc.Process(ctx, id, types.ActionLLMApprove, "")
	require.NoError(t, err)

	_, err = svc.Merge(ctx, id)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	var te *workflow.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.StatusLLMApproved, te.From)
	assert.Equal(t, types.RiskMedium, te.Risk)

	unchanged, err := store.GetClassTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "type Service struct{}", unchanged.Content)

	f, err := svc.Process(ctx, id, types.ActionHumanApprove, "")
	require.NoError(t, err)
	assert.Equal(t, types.StatusHumanApproved, f.Status)

	res, err := svc.Merge(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusMerged, res.Feedback.Status)
	assert.Equal(t, tpl.ID, res.TargetID)

	merged, err := store.GetClassTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "type Service struct{ repo Repo }", merged.Content)
}

// Two approved updates to different fields of one target both merge.
func TestApprovedUpdatesToOneTargetBothMerge(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, risk.Fixed(types.RiskMedium))

	tpl := &types.ClassTemplate{
		ID: "tpl-1", Name: "Repo", Layer: "infrastructure", Language: "go",
		Content: "type Repo struct{}", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	tpl.UpdatedAt = tpl.CreatedAt
	require.NoError(t, store.CreateClassTemplate(ctx, tpl))

	var ids []string
	for _, p := range []string{`{"content":"type Repo struct{ db *sql.DB }"}`, `{"description":"Persistence adapter"}`} {
		id, err := svc.Create(ctx, CreateRequest{
			TargetType:   types.TargetClassTemplate,
			TargetID:     tpl.ID,
			FeedbackType: types.FeedbackUpdate,
			Payload:      json.RawMessage(p),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		_, err := svc.Process(ctx, id, types.ActionLLMApprove, "")
		require.NoError(t, err)
		_, err = svc.Process(ctx, id, types.ActionHumanApprove, "")
		require.NoError(t, err)
	}
	for _, id := range ids {
		res, err := svc.Merge(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.StatusMerged, res.Feedback.Status)
	}

	merged, err := store.GetClassTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "type Repo struct{ db *sql.DB }", merged.Content)
	assert.Equal(t, "Persistence adapter", merged.Description)
}

// Entity timestamps come from the same clock as the feedback item.
func TestDefaultStrategiesUseServiceClock(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, risk.Fixed(types.RiskSafe))

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.NoError(t, err)
	_, err = svc.Process(ctx, id, types.ActionLLMApprove, "")
	require.NoError(t, err)
	res, err := svc.Merge(ctx, id)
	require.NoError(t, err)

	rule, err := store.GetCodingRule(ctx, res.TargetID)
	require.NoError(t, err)
	assert.Equal(t, 2025, rule.CreatedAt.Year())
	assert.Equal(t, time.February, rule.CreatedAt.Month())
	assert.True(t, rule.CreatedAt.Before(res.Feedback.UpdatedAt), "rule %v, feedback %v", rule.CreatedAt, res.Feedback.UpdatedAt)
}

// Scenario C: automated rejection records notes and blocks merge.
func TestLLMRejectionRecordsNotes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil)

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.NoError(t, err)

	f, err := svc.Process(ctx, id, types.ActionLLMReject, "invalid format")
	require.NoError(t, err)
	assert.Equal(t, types.StatusLLMRejected, f.Status)
	assert.Equal(t, "invalid format", f.ReviewNotes)

	_, err = svc.Merge(ctx, id)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	assert.Equal(t, CodeInvalidStateTransition, ErrorCode(err))

	reloaded, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "invalid format", reloaded.ReviewNotes)
}

// Scenario D: a payload missing a required key is never stored.
func TestInvalidPayloadIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, nil)

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(`{"code":"ARCH-001","name":"Layering","severity":"ERROR"}`),
	})
	require.ErrorIs(t, err, payload.ErrInvalidPayload)
	assert.Empty(t, id)
	assert.Equal(t, CodeInvalidPayload, ErrorCode(err))

	var pe *payload.InvalidPayloadError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, types.TargetCodingRule, pe.TargetType)
	assert.Equal(t, types.FeedbackCreate, pe.FeedbackType)
	assert.Contains(t, pe.Reason, "description")

	items, err := store.SearchFeedback(ctx, storage.SliceCriteria{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, nil)

	tests := []struct {
		name string
		req  CreateRequest
		code string
	}{
		{"unknown target type", CreateRequest{TargetType: "WIDGET", FeedbackType: types.FeedbackCreate, Payload: json.RawMessage(`{}`)}, CodeUnsupportedTargetType},
		{"unknown feedback type", CreateRequest{TargetType: types.TargetCodingRule, FeedbackType: "MOVE", Payload: json.RawMessage(`{}`)}, CodeInvalidPayload},
		{"update without target", CreateRequest{TargetType: types.TargetCodingRule, FeedbackType: types.FeedbackUpdate, Payload: json.RawMessage(`{"name":"x"}`)}, CodeInvalidPayload},
		{"delete without target", CreateRequest{TargetType: types.TargetChecklistItem, FeedbackType: types.FeedbackDelete}, CodeInvalidPayload},
		{"not an object", CreateRequest{TargetType: types.TargetChecklistItem, FeedbackType: types.FeedbackCreate, Payload: json.RawMessage(`[1,2]`)}, CodeInvalidPayload},
		{"unknown key", CreateRequest{TargetType: types.TargetChecklistItem, TargetID: "chk-1", FeedbackType: types.FeedbackUpdate, Payload: json.RawMessage(`{"colour":"red"}`)}, CodeInvalidPayload},
		{"trailing data", CreateRequest{TargetType: types.TargetCodingRule, FeedbackType: types.FeedbackCreate, Payload: json.RawMessage(rulePayload + " trailing-garbage{")}, CodeInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, ErrorCode(err), "error: %v", err)
		})
	}

	items, err := store.SearchFeedback(ctx, storage.SliceCriteria{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUnregisteredPayloadValidator(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, err := New(Options{Store: store, Payloads: payload.NewRegistry()})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.ErrorIs(t, err, registry.ErrUnsupportedTargetType)
}

func TestMergedFeedbackRejectsEveryAction(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, risk.Fixed(types.RiskSafe))

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.NoError(t, err)
	_, err = svc.Process(ctx, id, types.ActionLLMApprove, "")
	require.NoError(t, err)
	_, err = svc.Merge(ctx, id)
	require.NoError(t, err)

	for _, action := range []types.Action{types.ActionLLMApprove, types.ActionLLMReject, types.ActionHumanApprove, types.ActionHumanReject} {
		_, err := svc.Process(ctx, id, action, "late")
		assert.ErrorIs(t, err, workflow.ErrInvalidTransition, "action %s", action)
	}
	_, err = svc.Merge(ctx, id)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	// The strategy ran exactly once.
	rules, err := store.ListCodingRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	f, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusMerged, f.Status)
	assert.Empty(t, f.ReviewNotes)
}

func TestProcessRejectsMergeAction(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, risk.Fixed(types.RiskSafe))
	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.NoError(t, err)

	_, err = svc.Process(ctx, id, types.ActionMerge, "")
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil)

	_, err := svc.Get(ctx, "fb-missing")
	assert.Equal(t, CodeNotFound, ErrorCode(err))
	_, err = svc.Process(ctx, "fb-missing", types.ActionLLMApprove, "")
	assert.Equal(t, CodeNotFound, ErrorCode(err))
	_, err = svc.Merge(ctx, "fb-missing")
	assert.Equal(t, CodeNotFound, ErrorCode(err))
}

func TestApprovalNotesAreIgnored(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil)
	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.NoError(t, err)

	f, err := svc.Process(ctx, id, types.ActionLLMApprove, "looks good")
	require.NoError(t, err)
	assert.Empty(t, f.ReviewNotes)
}

func TestMergeNotEligibleKeepsStatus(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, risk.Fixed(types.RiskSafe))

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetRuleExample,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(`{"rule_id":"rule-missing","kind":"GOOD","language":"go","snippet":"x"}`),
	})
	require.NoError(t, err)
	_, err = svc.Process(ctx, id, types.ActionLLMApprove, "")
	require.NoError(t, err)

	_, err = svc.Merge(ctx, id)
	require.ErrorIs(t, err, merge.ErrMergeNotEligible)
	assert.Equal(t, CodeMergeNotEligible, ErrorCode(err))

	f, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLLMApproved, f.Status)

	// Resolving the condition makes the same item mergeable.
	now := time.Now().UTC()
	require.NoError(t, store.CreateCodingRule(ctx, &types.CodingRule{
		ID: "rule-missing", Code: "LATE-1", Name: "n", Description: "d",
		Severity: types.SeverityInfo, CreatedAt: now, UpdatedAt: now,
	}))
	_, err = svc.Merge(ctx, id)
	require.NoError(t, err)
}

// failingStrategy mutates the target and then fails, so the test can check
// that the side effect is rolled back with the status change.
type failingStrategy struct{}

func (failingStrategy) Merge(ctx context.Context, tx storage.Transaction, f *types.Feedback) (string, error) {
	now := time.Now().UTC()
	err := tx.CreateCodingRule(ctx, &types.CodingRule{
		ID: "rule-partial", Code: "PARTIAL", Name: "n", Description: "d",
		Severity: types.SeverityInfo, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return "", errors.New("disk full")
}

func TestMergeIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	strategies := merge.NewStrategyRegistry()
	strategies.MustRegister(types.TargetCodingRule, failingStrategy{})
	svc, err := New(Options{Store: store, Strategies: strategies, Classifier: risk.Fixed(types.RiskSafe)})
	require.NoError(t, err)

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.NoError(t, err)
	_, err = svc.Process(ctx, id, types.ActionLLMApprove, "")
	require.NoError(t, err)

	_, err = svc.Merge(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, CodeInternal, ErrorCode(err))

	f, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLLMApproved, f.Status)

	_, err = store.GetCodingRule(ctx, "rule-partial")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMergeWithoutStrategy(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, err := New(Options{Store: store, Strategies: merge.NewStrategyRegistry(), Classifier: risk.Fixed(types.RiskSafe)})
	require.NoError(t, err)

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.NoError(t, err)
	_, err = svc.Process(ctx, id, types.ActionLLMApprove, "")
	require.NoError(t, err)

	_, err = svc.Merge(ctx, id)
	require.ErrorIs(t, err, registry.ErrUnsupportedTargetType)
	assert.Equal(t, CodeUnsupportedTargetType, ErrorCode(err))
}

func TestConcurrentMergeAppliesOnce(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, risk.Fixed(types.RiskSafe))

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.NoError(t, err)
	_, err = svc.Process(ctx, id, types.ActionLLMApprove, "")
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Merge(ctx, id)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		code := ErrorCode(err)
		assert.Contains(t, []string{CodeInvalidStateTransition, CodeConcurrentModification}, code, "error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	rules, err := store.ListCodingRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestProcessRacingMerge(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, risk.Fixed(types.RiskSafe))

	id, err := svc.Create(ctx, CreateRequest{
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		Payload:      json.RawMessage(rulePayload),
	})
	require.NoError(t, err)
	_, err = svc.Process(ctx, id, types.ActionLLMApprove, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mergeErr, rejectErr error
	wg.Add(2)
	go func() { defer wg.Done(); _, mergeErr = svc.Merge(ctx, id) }()
	go func() { defer wg.Done(); _, rejectErr = svc.Process(ctx, id, types.ActionHumanReject, "no") }()
	wg.Wait()

	// Exactly one side wins and the stored state matches the winner.
	require.True(t, (mergeErr == nil) != (rejectErr == nil), "merge=%v reject=%v", mergeErr, rejectErr)
	f, err := svc.Get(ctx, id)
	require.NoError(t, err)
	if mergeErr == nil {
		assert.Equal(t, types.StatusMerged, f.Status)
	} else {
		assert.Equal(t, types.StatusHumanRejected, f.Status)
		assert.Equal(t, "no", f.ReviewNotes)
	}
}

func TestListPendingAndAwaiting(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, risk.Default())

	create := func(tt types.TargetType, target string, ft types.FeedbackType, body string) string {
		t.Helper()
		id, err := svc.Create(ctx, CreateRequest{TargetType: tt, TargetID: target, FeedbackType: ft, Payload: json.RawMessage(body)})
		require.NoError(t, err)
		return id
	}

	safe := create(types.TargetChecklistItem, "chk-1", types.FeedbackUpdate, `{"title":"x"}`)
	high := create(types.TargetCodingRule, "rule-1", types.FeedbackDelete, `{}`)
	pending := create(types.TargetCodingRule, "", types.FeedbackCreate, rulePayload)

	for _, id := range []string{safe, high} {
		_, err := svc.Process(ctx, id, types.ActionLLMApprove, "")
		require.NoError(t, err)
	}

	page, err := svc.ListPending(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, pending, page.Items[0].ID)
	assert.Equal(t, DefaultPageSize, page.Size)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)

	page, err = svc.ListAwaitingHumanReview(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, high, page.Items[0].ID)
}

func TestSearchPaging(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil)

	var ids []string
	for i := 0; i < 7; i++ {
		id, err := svc.Create(ctx, CreateRequest{
			TargetType:   types.TargetChecklistItem,
			FeedbackType: types.FeedbackCreate,
			Payload:      json.RawMessage(fmt.Sprintf(`{"checklist":"release","title":"step %d","position":%d}`, i, i)),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var got []string
	cursor := ""
	pages := 0
	for {
		page, err := svc.Search(ctx, types.FeedbackFilter{TargetType: types.TargetChecklistItem}, cursor, 3)
		require.NoError(t, err)
		pages++
		for _, f := range page.Items {
			got = append(got, f.ID)
		}
		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			break
		}
		require.NotEmpty(t, page.NextCursor)
		cursor = page.NextCursor
	}
	assert.Equal(t, ids, got)
	assert.Equal(t, 3, pages)
}

func TestSearchPageSizeClamp(t *testing.T) {
	assert.Equal(t, DefaultPageSize, clampPageSize(0))
	assert.Equal(t, DefaultPageSize, clampPageSize(-5))
	assert.Equal(t, 7, clampPageSize(7))
	assert.Equal(t, MaxPageSize, clampPageSize(1000))
}

func TestSearchInvalidCursor(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Search(context.Background(), types.FeedbackFilter{}, "%%%", 5)
	require.ErrorIs(t, err, storage.ErrInvalidCursor)
	assert.Equal(t, CodeInvalidCursor, ErrorCode(err))
}

func TestErrorCodeUnknown(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, CodeInternal, ErrorCode(errors.New("boom")))
	assert.Equal(t, CodeConcurrentModification, ErrorCode(fmt.Errorf("save: %w", storage.ErrConcurrentModification)))
	assert.True(t, Retryable(fmt.Errorf("save: %w", storage.ErrConcurrentModification)))
	assert.False(t, Retryable(storage.ErrNotFound))
}
