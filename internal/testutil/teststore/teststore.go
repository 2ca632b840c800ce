// Package teststore provides backend-agnostic helpers for storage tests.
//
// Every helper goes through the storage.Storage interface so that the same
// fixtures and the same conformance suite run against the in-memory store
// and every SQL dialect.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    env := teststore.NewEnv(t, memory.New())
//	    rule := env.SeedRule("ARCH-001")
//	    fb := env.SeedFeedback(types.TargetCodingRule, rule.ID, types.FeedbackUpdate, `{"name":"x"}`)
//	}
package teststore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// Env provides a test environment with common setup and helpers.
type Env struct {
	t     *testing.T
	Store storage.Storage
	Ctx   context.Context

	// Now is the base time for seeded entities. Each seed advances it by a
	// millisecond so ordering is deterministic.
	Now time.Time
	seq int
}

// NewEnv wraps store in an Env. The store is closed when the test completes.
func NewEnv(t *testing.T, store storage.Storage) *Env {
	t.Helper()
	t.Cleanup(func() { _ = store.Close() })
	return &Env{
		t:     t,
		Store: store,
		Ctx:   context.Background(),
		Now:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (e *Env) tick() time.Time {
	e.Now = e.Now.Add(time.Millisecond)
	return e.Now
}

func (e *Env) nextID(prefix string) string {
	e.seq++
	return fmt.Sprintf("%s-test%03d", prefix, e.seq)
}

// ---------------------------------------------------------------------------
// Governed entity helpers
// ---------------------------------------------------------------------------

// SeedRule creates a coding rule with the given code.
func (e *Env) SeedRule(code string) *types.CodingRule {
	e.t.Helper()
	now := e.tick()
	r := &types.CodingRule{
		ID:          e.nextID("rule"),
		Code:        code,
		Name:        "Rule " + code,
		Description: "Seeded rule " + code,
		Severity:    types.SeverityWarning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Store.CreateCodingRule(e.Ctx, r); err != nil {
		e.t.Fatalf("CreateCodingRule(%q) failed: %v", code, err)
	}
	return r
}

// SeedExample creates a GOOD example for rule.
func (e *Env) SeedExample(rule *types.CodingRule) *types.RuleExample {
	e.t.Helper()
	now := e.tick()
	ex := &types.RuleExample{
		ID:        e.nextID("ex"),
		RuleID:    rule.ID,
		Kind:      types.ExampleGood,
		Language:  "go",
		Snippet:   "return nil",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Store.CreateRuleExample(e.Ctx, ex); err != nil {
		e.t.Fatalf("CreateRuleExample(%s) failed: %v", rule.ID, err)
	}
	return ex
}

// SeedTemplate creates a class template with the given name.
func (e *Env) SeedTemplate(name string) *types.ClassTemplate {
	e.t.Helper()
	now := e.tick()
	tpl := &types.ClassTemplate{
		ID:        e.nextID("tpl"),
		Name:      name,
		Layer:     "service",
		Language:  "go",
		Content:   "type " + name + " struct{}",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Store.CreateClassTemplate(e.Ctx, tpl); err != nil {
		e.t.Fatalf("CreateClassTemplate(%q) failed: %v", name, err)
	}
	return tpl
}

// SeedChecklistItem creates an item at position in checklist.
func (e *Env) SeedChecklistItem(checklist string, position int) *types.ChecklistItem {
	e.t.Helper()
	now := e.tick()
	c := &types.ChecklistItem{
		ID:        e.nextID("chk"),
		Checklist: checklist,
		Title:     fmt.Sprintf("%s item %d", checklist, position),
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Store.CreateChecklistItem(e.Ctx, c); err != nil {
		e.t.Fatalf("CreateChecklistItem(%q) failed: %v", checklist, err)
	}
	return c
}

// ---------------------------------------------------------------------------
// Feedback helpers
// ---------------------------------------------------------------------------

// SeedFeedback stores a PENDING_LLM feedback item with MEDIUM risk directly,
// bypassing validation.
func (e *Env) SeedFeedback(tt types.TargetType, targetID string, ft types.FeedbackType, payload string) *types.Feedback {
	e.t.Helper()
	return e.SeedFeedbackWith(tt, targetID, ft, types.RiskMedium, types.StatusPendingLLM, payload)
}

// SeedFeedbackWith stores a feedback item with explicit risk and status.
func (e *Env) SeedFeedbackWith(tt types.TargetType, targetID string, ft types.FeedbackType,
	risk types.RiskLevel, status types.Status, payload string) *types.Feedback {
	e.t.Helper()
	now := e.tick()
	f := &types.Feedback{
		TargetType:   tt,
		TargetID:     targetID,
		FeedbackType: ft,
		RiskLevel:    risk,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if payload != "" {
		f.Payload = json.RawMessage(payload)
	}
	if err := e.Store.CreateFeedback(e.Ctx, f); err != nil {
		e.t.Fatalf("CreateFeedback(%s %s) failed: %v", tt, ft, err)
	}
	return f
}

// MustGetFeedback loads a feedback item or fails the test.
func (e *Env) MustGetFeedback(id string) *types.Feedback {
	e.t.Helper()
	f, err := e.Store.GetFeedback(e.Ctx, id)
	if err != nil {
		e.t.Fatalf("GetFeedback(%s) failed: %v", id, err)
	}
	return f
}

// AssertStatus asserts the stored status of a feedback item.
func (e *Env) AssertStatus(id string, want types.Status) {
	e.t.Helper()
	if got := e.MustGetFeedback(id).Status; got != want {
		e.t.Errorf("feedback %s status = %s, want %s", id, got, want)
	}
}
