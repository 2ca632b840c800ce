package teststore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) storage.Storage

// RunConformance exercises the storage.Storage contract against stores
// produced by open. Every backend runs it from its own tests.
func RunConformance(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, env *Env)
	}{
		{"FeedbackRoundTrip", testFeedbackRoundTrip},
		{"FeedbackNotFound", testFeedbackNotFound},
		{"FeedbackDuplicateID", testFeedbackDuplicateID},
		{"FeedbackVersionCheck", testFeedbackVersionCheck},
		{"FeedbackWriteOnceFields", testFeedbackWriteOnceFields},
		{"SearchOrderAndCursor", testSearchOrderAndCursor},
		{"SearchFilters", testSearchFilters},
		{"TransactionCommit", testTransactionCommit},
		{"TransactionRollback", testTransactionRollback},
		{"TransactionPanic", testTransactionPanic},
		{"CodingRules", testCodingRules},
		{"RuleExamples", testRuleExamples},
		{"ClassTemplates", testClassTemplates},
		{"ChecklistItems", testChecklistItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, NewEnv(t, open(t)))
		})
	}
}

func testFeedbackRoundTrip(t *testing.T, env *Env) {
	created := time.Date(2025, 5, 6, 7, 8, 9, 123456789, time.UTC)
	f := &types.Feedback{
		TargetType:   types.TargetClassTemplate,
		TargetID:     "tpl-1",
		FeedbackType: types.FeedbackUpdate,
		RiskLevel:    types.RiskHigh,
		Payload:      json.RawMessage(`{"content":"type A struct{}","layer":"domain"}`),
		Status:       types.StatusLLMRejected,
		ReviewNotes:  "invalid format",
		CreatedAt:    created,
		UpdatedAt:    created.Add(time.Minute),
	}
	if err := env.Store.CreateFeedback(env.Ctx, f); err != nil {
		t.Fatalf("CreateFeedback: %v", err)
	}
	if f.ID == "" {
		t.Fatal("CreateFeedback did not assign an ID")
	}
	if f.Version != 1 {
		t.Errorf("Version after create = %d, want 1", f.Version)
	}

	got := env.MustGetFeedback(f.ID)
	if got.TargetType != f.TargetType || got.TargetID != f.TargetID || got.FeedbackType != f.FeedbackType {
		t.Errorf("target mismatch: got %s/%s/%s", got.TargetType, got.TargetID, got.FeedbackType)
	}
	if got.RiskLevel != f.RiskLevel || got.Status != f.Status || got.ReviewNotes != f.ReviewNotes {
		t.Errorf("state mismatch: got %s/%s/%q", got.RiskLevel, got.Status, got.ReviewNotes)
	}
	if string(got.Payload) != string(f.Payload) {
		t.Errorf("payload = %s, want %s", got.Payload, f.Payload)
	}
	if !got.CreatedAt.Equal(f.CreatedAt) || !got.UpdatedAt.Equal(f.UpdatedAt) {
		t.Errorf("timestamps = %v/%v, want %v/%v", got.CreatedAt, got.UpdatedAt, f.CreatedAt, f.UpdatedAt)
	}
	if got.Version != 1 {
		t.Errorf("loaded Version = %d, want 1", got.Version)
	}
}

func testFeedbackNotFound(t *testing.T, env *Env) {
	_, err := env.Store.GetFeedback(env.Ctx, "fb-missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetFeedback(missing) error = %v, want ErrNotFound", err)
	}
	err = env.Store.UpdateFeedback(env.Ctx, &types.Feedback{ID: "fb-missing", Version: 1})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("UpdateFeedback(missing) error = %v, want ErrNotFound", err)
	}
}

func testFeedbackDuplicateID(t *testing.T, env *Env) {
	f := env.SeedFeedback(types.TargetCodingRule, "", types.FeedbackCreate, `{}`)
	dup := &types.Feedback{
		ID:           f.ID,
		TargetType:   types.TargetCodingRule,
		FeedbackType: types.FeedbackCreate,
		RiskLevel:    types.RiskLow,
		Status:       types.StatusPendingLLM,
		CreatedAt:    env.tick(),
		UpdatedAt:    env.Now,
	}
	if err := env.Store.CreateFeedback(env.Ctx, dup); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("CreateFeedback(duplicate) error = %v, want ErrAlreadyExists", err)
	}
}

func testFeedbackVersionCheck(t *testing.T, env *Env) {
	f := env.SeedFeedback(types.TargetCodingRule, "", types.FeedbackCreate, `{}`)

	first := env.MustGetFeedback(f.ID)
	second := env.MustGetFeedback(f.ID)

	first.Status = types.StatusLLMApproved
	first.UpdatedAt = env.tick()
	if err := env.Store.UpdateFeedback(env.Ctx, first); err != nil {
		t.Fatalf("first UpdateFeedback: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("Version after update = %d, want 2", first.Version)
	}

	second.Status = types.StatusLLMRejected
	second.ReviewNotes = "late"
	err := env.Store.UpdateFeedback(env.Ctx, second)
	if !errors.Is(err, storage.ErrConcurrentModification) {
		t.Fatalf("stale UpdateFeedback error = %v, want ErrConcurrentModification", err)
	}

	got := env.MustGetFeedback(f.ID)
	if got.Status != types.StatusLLMApproved || got.ReviewNotes != "" {
		t.Errorf("stored = %s/%q, want LLM_APPROVED with no notes", got.Status, got.ReviewNotes)
	}
	if got.Version != 2 {
		t.Errorf("stored Version = %d, want 2", got.Version)
	}
}

func testFeedbackWriteOnceFields(t *testing.T, env *Env) {
	f := env.SeedFeedback(types.TargetChecklistItem, "chk-1", types.FeedbackUpdate, `{"title":"a"}`)

	loaded := env.MustGetFeedback(f.ID)
	loaded.Payload = json.RawMessage(`{"title":"b"}`)
	loaded.RiskLevel = types.RiskSafe
	loaded.TargetID = "chk-2"
	loaded.Status = types.StatusLLMApproved
	if err := env.Store.UpdateFeedback(env.Ctx, loaded); err != nil {
		t.Fatalf("UpdateFeedback: %v", err)
	}

	got := env.MustGetFeedback(f.ID)
	if string(got.Payload) != `{"title":"a"}` || got.RiskLevel != types.RiskMedium || got.TargetID != "chk-1" {
		t.Errorf("write-once fields changed: payload=%s risk=%s target=%s", got.Payload, got.RiskLevel, got.TargetID)
	}
	if got.Status != types.StatusLLMApproved {
		t.Errorf("status = %s, want LLM_APPROVED", got.Status)
	}
}

func testSearchOrderAndCursor(t *testing.T, env *Env) {
	// Two items share a timestamp so the ID breaks the tie.
	ts := env.tick()
	for _, id := range []string{"fb-b", "fb-a"} {
		f := &types.Feedback{
			ID: id, TargetType: types.TargetCodingRule, FeedbackType: types.FeedbackCreate,
			RiskLevel: types.RiskLow, Status: types.StatusPendingLLM, CreatedAt: ts, UpdatedAt: ts,
		}
		if err := env.Store.CreateFeedback(env.Ctx, f); err != nil {
			t.Fatalf("CreateFeedback(%s): %v", id, err)
		}
	}
	c := env.SeedFeedback(types.TargetCodingRule, "", types.FeedbackCreate, `{}`)
	d := env.SeedFeedback(types.TargetCodingRule, "", types.FeedbackCreate, `{}`)

	want := []string{"fb-a", "fb-b", c.ID, d.ID}

	var got []string
	var after *storage.Cursor
	for page := 0; page < 5; page++ {
		items, err := env.Store.SearchFeedback(env.Ctx, storage.SliceCriteria{After: after, Limit: 3})
		if err != nil {
			t.Fatalf("SearchFeedback page %d: %v", page, err)
		}
		for _, f := range items {
			got = append(got, f.ID)
		}
		if len(items) < 3 {
			break
		}
		cur := storage.CursorFor(items[len(items)-1])
		after = &cur
	}

	if len(got) != len(want) {
		t.Fatalf("paged IDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("paged IDs = %v, want %v", got, want)
		}
	}
}

func testSearchFilters(t *testing.T, env *Env) {
	safe := env.SeedFeedbackWith(types.TargetChecklistItem, "chk-1", types.FeedbackUpdate,
		types.RiskSafe, types.StatusLLMApproved, `{"title":"x"}`)
	high := env.SeedFeedbackWith(types.TargetCodingRule, "rule-1", types.FeedbackDelete,
		types.RiskHigh, types.StatusLLMApproved, `{}`)
	pending := env.SeedFeedback(types.TargetClassTemplate, "", types.FeedbackCreate, `{}`)
	mid := env.Now

	later := env.SeedFeedbackWith(types.TargetCodingRule, "rule-2", types.FeedbackUpdate,
		types.RiskLow, types.StatusMerged, `{"name":"x"}`)

	tests := []struct {
		name   string
		filter types.FeedbackFilter
		want   []string
	}{
		{"all", types.FeedbackFilter{}, []string{safe.ID, high.ID, pending.ID, later.ID}},
		{"status", types.FeedbackFilter{Statuses: []types.Status{types.StatusLLMApproved}}, []string{safe.ID, high.ID}},
		{"awaiting human", types.FeedbackFilter{
			Statuses:     []types.Status{types.StatusLLMApproved},
			ExcludeRisks: []types.RiskLevel{types.RiskSafe},
		}, []string{high.ID}},
		{"target type", types.FeedbackFilter{TargetType: types.TargetCodingRule}, []string{high.ID, later.ID}},
		{"target id", types.FeedbackFilter{TargetID: "rule-2"}, []string{later.ID}},
		{"feedback type", types.FeedbackFilter{FeedbackType: types.FeedbackCreate}, []string{pending.ID}},
		{"risk levels", types.FeedbackFilter{RiskLevels: []types.RiskLevel{types.RiskSafe, types.RiskLow}}, []string{safe.ID, later.ID}},
		{"created after", types.FeedbackFilter{CreatedAfter: &mid}, []string{later.ID}},
		{"created before", types.FeedbackFilter{CreatedBefore: &mid}, []string{safe.ID, high.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := env.Store.SearchFeedback(env.Ctx, storage.SliceCriteria{Filter: tt.filter})
			if err != nil {
				t.Fatalf("SearchFeedback: %v", err)
			}
			if len(items) != len(tt.want) {
				t.Fatalf("got %d items, want %v", len(items), tt.want)
			}
			for i, f := range items {
				if f.ID != tt.want[i] {
					t.Errorf("item %d = %s, want %s", i, f.ID, tt.want[i])
				}
			}
		})
	}
}

func testTransactionCommit(t *testing.T, env *Env) {
	f := env.SeedFeedback(types.TargetCodingRule, "", types.FeedbackCreate, `{}`)
	err := env.Store.RunInTransaction(env.Ctx, func(tx storage.Transaction) error {
		loaded, err := tx.GetFeedback(env.Ctx, f.ID)
		if err != nil {
			return err
		}
		now := env.tick()
		rule := &types.CodingRule{ID: "rule-tx", Code: "TX-1", Name: "tx", Description: "d",
			Severity: types.SeverityInfo, CreatedAt: now, UpdatedAt: now}
		if err := tx.CreateCodingRule(env.Ctx, rule); err != nil {
			return err
		}
		loaded.Status = types.StatusLLMApproved
		loaded.UpdatedAt = now
		return tx.UpdateFeedback(env.Ctx, loaded)
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	env.AssertStatus(f.ID, types.StatusLLMApproved)
	if _, err := env.Store.GetCodingRule(env.Ctx, "rule-tx"); err != nil {
		t.Errorf("committed rule missing: %v", err)
	}
}

func testTransactionRollback(t *testing.T, env *Env) {
	f := env.SeedFeedback(types.TargetCodingRule, "", types.FeedbackCreate, `{}`)
	boom := errors.New("boom")
	err := env.Store.RunInTransaction(env.Ctx, func(tx storage.Transaction) error {
		now := env.tick()
		rule := &types.CodingRule{ID: "rule-rb", Code: "RB-1", Name: "rb", Description: "d",
			Severity: types.SeverityInfo, CreatedAt: now, UpdatedAt: now}
		if err := tx.CreateCodingRule(env.Ctx, rule); err != nil {
			return err
		}
		loaded, err := tx.GetFeedback(env.Ctx, f.ID)
		if err != nil {
			return err
		}
		loaded.Status = types.StatusLLMApproved
		if err := tx.UpdateFeedback(env.Ctx, loaded); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTransaction error = %v, want boom", err)
	}
	env.AssertStatus(f.ID, types.StatusPendingLLM)
	if _, err := env.Store.GetCodingRule(env.Ctx, "rule-rb"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("rolled back rule lookup error = %v, want ErrNotFound", err)
	}
}

func testTransactionPanic(t *testing.T, env *Env) {
	f := env.SeedFeedback(types.TargetCodingRule, "", types.FeedbackCreate, `{}`)
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = env.Store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
			loaded, err := tx.GetFeedback(env.Ctx, f.ID)
			if err != nil {
				return err
			}
			loaded.Status = types.StatusLLMRejected
			if err := tx.UpdateFeedback(env.Ctx, loaded); err != nil {
				return err
			}
			panic("mid-transaction")
		})
	}()
	env.AssertStatus(f.ID, types.StatusPendingLLM)
}

func testCodingRules(t *testing.T, env *Env) {
	b := env.SeedRule("SEC-002")
	a := env.SeedRule("ARCH-001")

	got, err := env.Store.GetCodingRuleByCode(env.Ctx, "SEC-002")
	if err != nil || got.ID != b.ID {
		t.Fatalf("GetCodingRuleByCode = %v, %v; want %s", got, err, b.ID)
	}
	if _, err := env.Store.GetCodingRuleByCode(env.Ctx, "NOPE"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetCodingRuleByCode(missing) error = %v, want ErrNotFound", err)
	}

	dup := *a
	dup.ID = "rule-other"
	if err := env.Store.CreateCodingRule(env.Ctx, &dup); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Errorf("duplicate code error = %v, want ErrAlreadyExists", err)
	}

	a.Name = "Layering"
	a.Severity = types.SeverityError
	a.UpdatedAt = env.tick()
	if err := env.Store.UpdateCodingRule(env.Ctx, a); err != nil {
		t.Fatalf("UpdateCodingRule: %v", err)
	}
	reloaded, err := env.Store.GetCodingRule(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("GetCodingRule: %v", err)
	}
	if reloaded.Name != "Layering" || reloaded.Severity != types.SeverityError || !reloaded.UpdatedAt.Equal(a.UpdatedAt) {
		t.Errorf("updated rule = %+v", reloaded)
	}

	rules, err := env.Store.ListCodingRules(env.Ctx)
	if err != nil {
		t.Fatalf("ListCodingRules: %v", err)
	}
	if len(rules) != 2 || rules[0].Code != "ARCH-001" || rules[1].Code != "SEC-002" {
		t.Errorf("ListCodingRules order wrong: %+v", rules)
	}

	if err := env.Store.DeleteCodingRule(env.Ctx, b.ID); err != nil {
		t.Fatalf("DeleteCodingRule: %v", err)
	}
	if err := env.Store.DeleteCodingRule(env.Ctx, b.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
	if err := env.Store.UpdateCodingRule(env.Ctx, b); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("update of deleted rule error = %v, want ErrNotFound", err)
	}
}

func testRuleExamples(t *testing.T, env *Env) {
	r1 := env.SeedRule("R-1")
	r2 := env.SeedRule("R-2")
	e1 := env.SeedExample(r1)
	env.SeedExample(r2)
	e3 := env.SeedExample(r1)

	list, err := env.Store.ListRuleExamples(env.Ctx, r1.ID)
	if err != nil {
		t.Fatalf("ListRuleExamples: %v", err)
	}
	if len(list) != 2 || list[0].ID != e1.ID || list[1].ID != e3.ID {
		t.Errorf("ListRuleExamples(%s) = %+v", r1.ID, list)
	}

	e1.Kind = types.ExampleBad
	e1.Explanation = "panics"
	if err := env.Store.UpdateRuleExample(env.Ctx, e1); err != nil {
		t.Fatalf("UpdateRuleExample: %v", err)
	}
	got, err := env.Store.GetRuleExample(env.Ctx, e1.ID)
	if err != nil || got.Kind != types.ExampleBad || got.Explanation != "panics" {
		t.Errorf("GetRuleExample = %+v, %v", got, err)
	}

	if err := env.Store.DeleteRuleExample(env.Ctx, e3.ID); err != nil {
		t.Fatalf("DeleteRuleExample: %v", err)
	}
	all, err := env.Store.ListRuleExamples(env.Ctx, "")
	if err != nil || len(all) != 2 {
		t.Errorf("ListRuleExamples(all) = %d items, %v; want 2", len(all), err)
	}
}

func testClassTemplates(t *testing.T, env *Env) {
	b := env.SeedTemplate("Repository")
	a := env.SeedTemplate("Controller")

	if err := env.Store.CreateClassTemplate(env.Ctx, a); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Errorf("duplicate id error = %v, want ErrAlreadyExists", err)
	}

	list, err := env.Store.ListClassTemplates(env.Ctx)
	if err != nil {
		t.Fatalf("ListClassTemplates: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Errorf("ListClassTemplates order wrong: %+v", list)
	}

	b.Content = "type Repository interface{}"
	if err := env.Store.UpdateClassTemplate(env.Ctx, b); err != nil {
		t.Fatalf("UpdateClassTemplate: %v", err)
	}
	got, err := env.Store.GetClassTemplate(env.Ctx, b.ID)
	if err != nil || got.Content != b.Content {
		t.Errorf("GetClassTemplate = %+v, %v", got, err)
	}
	if err := env.Store.DeleteClassTemplate(env.Ctx, a.ID); err != nil {
		t.Fatalf("DeleteClassTemplate: %v", err)
	}
	if _, err := env.Store.GetClassTemplate(env.Ctx, a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("deleted template lookup error = %v, want ErrNotFound", err)
	}
}

func testChecklistItems(t *testing.T, env *Env) {
	third := env.SeedChecklistItem("release", 3)
	first := env.SeedChecklistItem("release", 1)
	env.SeedChecklistItem("review", 0)

	list, err := env.Store.ListChecklistItems(env.Ctx, "release")
	if err != nil {
		t.Fatalf("ListChecklistItems: %v", err)
	}
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != third.ID {
		t.Errorf("ListChecklistItems order wrong: %+v", list)
	}

	third.Position = 0
	if err := env.Store.UpdateChecklistItem(env.Ctx, third); err != nil {
		t.Fatalf("UpdateChecklistItem: %v", err)
	}
	list, _ = env.Store.ListChecklistItems(env.Ctx, "release")
	if len(list) != 2 || list[0].ID != third.ID {
		t.Errorf("reordered list = %+v", list)
	}

	all, err := env.Store.ListChecklistItems(env.Ctx, "")
	if err != nil || len(all) != 3 {
		t.Errorf("ListChecklistItems(all) = %d items, %v; want 3", len(all), err)
	}
	if err := env.Store.DeleteChecklistItem(env.Ctx, first.ID); err != nil {
		t.Fatalf("DeleteChecklistItem: %v", err)
	}
	if _, err := env.Store.GetChecklistItem(env.Ctx, first.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("deleted item lookup error = %v, want ErrNotFound", err)
	}
}
