// Package memory implements storage.Storage entirely in process memory.
//
// It backs unit tests and the "memory" backend of the CLI. A transaction
// works on a private copy of the dataset which replaces the live one only on
// commit, so a failed or panicking transaction leaves no trace. Write
// transactions hold the store lock for their whole duration and are
// therefore fully serialized.
package memory

import (
	"context"
	"sync"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// MemoryStorage is an in-memory storage.Storage.
type MemoryStorage struct {
	mu     sync.RWMutex
	data   *dataset
	closed bool
}

var _ storage.Storage = (*MemoryStorage)(nil)

// New returns an empty in-memory store.
func New() *MemoryStorage {
	return &MemoryStorage{data: newDataset()}
}

// RunInTransaction executes fn against a copy of the dataset and commits the
// copy if fn returns nil.
func (m *MemoryStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storage.ErrClosed
	}

	work := m.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

// Close marks the store closed. Further operations return storage.ErrClosed.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryStorage) read(ctx context.Context, fn func(t *memTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return storage.ErrClosed
	}
	return fn(&memTx{d: m.data})
}

// write runs a single mutation. Every memTx mutation validates before it
// changes anything, so no copy is needed.
func (m *MemoryStorage) write(ctx context.Context, fn func(t *memTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storage.ErrClosed
	}
	return fn(&memTx{d: m.data})
}

func (m *MemoryStorage) CreateFeedback(ctx context.Context, f *types.Feedback) error {
	return m.write(ctx, func(t *memTx) error { return t.CreateFeedback(ctx, f) })
}

func (m *MemoryStorage) GetFeedback(ctx context.Context, id string) (*types.Feedback, error) {
	var out *types.Feedback
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.GetFeedback(ctx, id)
		return err
	})
	return out, err
}

func (m *MemoryStorage) UpdateFeedback(ctx context.Context, f *types.Feedback) error {
	return m.write(ctx, func(t *memTx) error { return t.UpdateFeedback(ctx, f) })
}

func (m *MemoryStorage) SearchFeedback(ctx context.Context, c storage.SliceCriteria) ([]*types.Feedback, error) {
	var out []*types.Feedback
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.SearchFeedback(ctx, c)
		return err
	})
	return out, err
}

func (m *MemoryStorage) CreateCodingRule(ctx context.Context, r *types.CodingRule) error {
	return m.write(ctx, func(t *memTx) error { return t.CreateCodingRule(ctx, r) })
}

func (m *MemoryStorage) GetCodingRule(ctx context.Context, id string) (*types.CodingRule, error) {
	var out *types.CodingRule
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.GetCodingRule(ctx, id)
		return err
	})
	return out, err
}

func (m *MemoryStorage) GetCodingRuleByCode(ctx context.Context, code string) (*types.CodingRule, error) {
	var out *types.CodingRule
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.GetCodingRuleByCode(ctx, code)
		return err
	})
	return out, err
}

func (m *MemoryStorage) UpdateCodingRule(ctx context.Context, r *types.CodingRule) error {
	return m.write(ctx, func(t *memTx) error { return t.UpdateCodingRule(ctx, r) })
}

func (m *MemoryStorage) DeleteCodingRule(ctx context.Context, id string) error {
	return m.write(ctx, func(t *memTx) error { return t.DeleteCodingRule(ctx, id) })
}

func (m *MemoryStorage) ListCodingRules(ctx context.Context) ([]*types.CodingRule, error) {
	var out []*types.CodingRule
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.ListCodingRules(ctx)
		return err
	})
	return out, err
}

func (m *MemoryStorage) CreateRuleExample(ctx context.Context, e *types.RuleExample) error {
	return m.write(ctx, func(t *memTx) error { return t.CreateRuleExample(ctx, e) })
}

func (m *MemoryStorage) GetRuleExample(ctx context.Context, id string) (*types.RuleExample, error) {
	var out *types.RuleExample
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.GetRuleExample(ctx, id)
		return err
	})
	return out, err
}

func (m *MemoryStorage) UpdateRuleExample(ctx context.Context, e *types.RuleExample) error {
	return m.write(ctx, func(t *memTx) error { return t.UpdateRuleExample(ctx, e) })
}

func (m *MemoryStorage) DeleteRuleExample(ctx context.Context, id string) error {
	return m.write(ctx, func(t *memTx) error { return t.DeleteRuleExample(ctx, id) })
}

func (m *MemoryStorage) ListRuleExamples(ctx context.Context, ruleID string) ([]*types.RuleExample, error) {
	var out []*types.RuleExample
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.ListRuleExamples(ctx, ruleID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) CreateClassTemplate(ctx context.Context, tpl *types.ClassTemplate) error {
	return m.write(ctx, func(t *memTx) error { return t.CreateClassTemplate(ctx, tpl) })
}

func (m *MemoryStorage) GetClassTemplate(ctx context.Context, id string) (*types.ClassTemplate, error) {
	var out *types.ClassTemplate
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.GetClassTemplate(ctx, id)
		return err
	})
	return out, err
}

func (m *MemoryStorage) UpdateClassTemplate(ctx context.Context, tpl *types.ClassTemplate) error {
	return m.write(ctx, func(t *memTx) error { return t.UpdateClassTemplate(ctx, tpl) })
}

func (m *MemoryStorage) DeleteClassTemplate(ctx context.Context, id string) error {
	return m.write(ctx, func(t *memTx) error { return t.DeleteClassTemplate(ctx, id) })
}

func (m *MemoryStorage) ListClassTemplates(ctx context.Context) ([]*types.ClassTemplate, error) {
	var out []*types.ClassTemplate
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.ListClassTemplates(ctx)
		return err
	})
	return out, err
}

func (m *MemoryStorage) CreateChecklistItem(ctx context.Context, c *types.ChecklistItem) error {
	return m.write(ctx, func(t *memTx) error { return t.CreateChecklistItem(ctx, c) })
}

func (m *MemoryStorage) GetChecklistItem(ctx context.Context, id string) (*types.ChecklistItem, error) {
	var out *types.ChecklistItem
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.GetChecklistItem(ctx, id)
		return err
	})
	return out, err
}

func (m *MemoryStorage) UpdateChecklistItem(ctx context.Context, c *types.ChecklistItem) error {
	return m.write(ctx, func(t *memTx) error { return t.UpdateChecklistItem(ctx, c) })
}

func (m *MemoryStorage) DeleteChecklistItem(ctx context.Context, id string) error {
	return m.write(ctx, func(t *memTx) error { return t.DeleteChecklistItem(ctx, id) })
}

func (m *MemoryStorage) ListChecklistItems(ctx context.Context, checklist string) ([]*types.ChecklistItem, error) {
	var out []*types.ChecklistItem
	err := m.read(ctx, func(t *memTx) (err error) {
		out, err = t.ListChecklistItems(ctx, checklist)
		return err
	})
	return out, err
}
