package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/rulebook-dev/rulebook/internal/idgen"
	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// dataset is the full contents of the store. Stored values are private
// copies; every read hands out a fresh copy.
type dataset struct {
	feedback  map[string]*types.Feedback
	rules     map[string]*types.CodingRule
	examples  map[string]*types.RuleExample
	templates map[string]*types.ClassTemplate
	checklist map[string]*types.ChecklistItem
}

func newDataset() *dataset {
	return &dataset{
		feedback:  make(map[string]*types.Feedback),
		rules:     make(map[string]*types.CodingRule),
		examples:  make(map[string]*types.RuleExample),
		templates: make(map[string]*types.ClassTemplate),
		checklist: make(map[string]*types.ChecklistItem),
	}
}

func (d *dataset) clone() *dataset {
	cp := &dataset{
		feedback:  make(map[string]*types.Feedback, len(d.feedback)),
		rules:     cloneMap(d.rules),
		examples:  cloneMap(d.examples),
		templates: cloneMap(d.templates),
		checklist: cloneMap(d.checklist),
	}
	for id, f := range d.feedback {
		cp.feedback[id] = f.Snapshot()
	}
	return cp
}

func cloneMap[E any](m map[string]*E) map[string]*E {
	out := make(map[string]*E, len(m))
	for id, e := range m {
		v := *e
		out[id] = &v
	}
	return out
}

// memTx implements storage.Transaction over one dataset. Locking is the
// caller's job.
type memTx struct {
	d *dataset
}

var _ storage.Transaction = (*memTx)(nil)

func (t *memTx) CreateFeedback(_ context.Context, f *types.Feedback) error {
	if f.ID == "" {
		for nonce := 0; ; nonce++ {
			id := idgen.New(idgen.PrefixFeedback)
			if _, taken := t.d.feedback[id]; !taken {
				f.ID = id
				break
			}
			if nonce > 10 {
				return fmt.Errorf("generate feedback id: too many collisions")
			}
		}
	} else if _, exists := t.d.feedback[f.ID]; exists {
		return fmt.Errorf("feedback %s: %w", f.ID, storage.ErrAlreadyExists)
	}
	f.Version = 1
	t.d.feedback[f.ID] = f.Snapshot()
	return nil
}

func (t *memTx) GetFeedback(_ context.Context, id string) (*types.Feedback, error) {
	f, ok := t.d.feedback[id]
	if !ok {
		return nil, fmt.Errorf("feedback %s: %w", id, storage.ErrNotFound)
	}
	return f.Snapshot(), nil
}

func (t *memTx) UpdateFeedback(_ context.Context, f *types.Feedback) error {
	cur, ok := t.d.feedback[f.ID]
	if !ok {
		return fmt.Errorf("feedback %s: %w", f.ID, storage.ErrNotFound)
	}
	if cur.Version != f.Version {
		return fmt.Errorf("feedback %s at version %d (have %d): %w",
			f.ID, cur.Version, f.Version, storage.ErrConcurrentModification)
	}
	next := cur.Snapshot()
	next.Status = f.Status
	next.ReviewNotes = f.ReviewNotes
	next.UpdatedAt = f.UpdatedAt
	next.Version++
	t.d.feedback[f.ID] = next
	f.Version = next.Version
	return nil
}

func (t *memTx) SearchFeedback(_ context.Context, c storage.SliceCriteria) ([]*types.Feedback, error) {
	var out []*types.Feedback
	for _, f := range t.d.feedback {
		if !c.Filter.Matches(f) {
			continue
		}
		if c.After != nil && !c.After.Before(f) {
			continue
		}
		out = append(out, f.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out, nil
}

func (t *memTx) CreateCodingRule(_ context.Context, r *types.CodingRule) error {
	for _, existing := range t.d.rules {
		if existing.Code == r.Code && existing.ID != r.ID {
			return fmt.Errorf("coding rule code %q: %w", r.Code, storage.ErrAlreadyExists)
		}
	}
	return insert(t.d.rules, "coding rule", r.ID, r)
}

func (t *memTx) GetCodingRule(_ context.Context, id string) (*types.CodingRule, error) {
	return get(t.d.rules, "coding rule", id)
}

func (t *memTx) GetCodingRuleByCode(_ context.Context, code string) (*types.CodingRule, error) {
	for _, r := range t.d.rules {
		if r.Code == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("coding rule with code %q: %w", code, storage.ErrNotFound)
}

func (t *memTx) UpdateCodingRule(_ context.Context, r *types.CodingRule) error {
	for _, existing := range t.d.rules {
		if existing.Code == r.Code && existing.ID != r.ID {
			return fmt.Errorf("coding rule code %q: %w", r.Code, storage.ErrAlreadyExists)
		}
	}
	return replace(t.d.rules, "coding rule", r.ID, r)
}

func (t *memTx) DeleteCodingRule(_ context.Context, id string) error {
	return remove(t.d.rules, "coding rule", id)
}

func (t *memTx) ListCodingRules(_ context.Context) ([]*types.CodingRule, error) {
	return list(t.d.rules, nil, func(a, b *types.CodingRule) bool {
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.ID < b.ID
	}), nil
}

func (t *memTx) CreateRuleExample(_ context.Context, e *types.RuleExample) error {
	return insert(t.d.examples, "rule example", e.ID, e)
}

func (t *memTx) GetRuleExample(_ context.Context, id string) (*types.RuleExample, error) {
	return get(t.d.examples, "rule example", id)
}

func (t *memTx) UpdateRuleExample(_ context.Context, e *types.RuleExample) error {
	return replace(t.d.examples, "rule example", e.ID, e)
}

func (t *memTx) DeleteRuleExample(_ context.Context, id string) error {
	return remove(t.d.examples, "rule example", id)
}

func (t *memTx) ListRuleExamples(_ context.Context, ruleID string) ([]*types.RuleExample, error) {
	var keep func(*types.RuleExample) bool
	if ruleID != "" {
		keep = func(e *types.RuleExample) bool { return e.RuleID == ruleID }
	}
	return list(t.d.examples, keep, func(a, b *types.RuleExample) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	}), nil
}

func (t *memTx) CreateClassTemplate(_ context.Context, tpl *types.ClassTemplate) error {
	return insert(t.d.templates, "class template", tpl.ID, tpl)
}

func (t *memTx) GetClassTemplate(_ context.Context, id string) (*types.ClassTemplate, error) {
	return get(t.d.templates, "class template", id)
}

func (t *memTx) UpdateClassTemplate(_ context.Context, tpl *types.ClassTemplate) error {
	return replace(t.d.templates, "class template", tpl.ID, tpl)
}

func (t *memTx) DeleteClassTemplate(_ context.Context, id string) error {
	return remove(t.d.templates, "class template", id)
}

func (t *memTx) ListClassTemplates(_ context.Context) ([]*types.ClassTemplate, error) {
	return list(t.d.templates, nil, func(a, b *types.ClassTemplate) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	}), nil
}

func (t *memTx) CreateChecklistItem(_ context.Context, c *types.ChecklistItem) error {
	return insert(t.d.checklist, "checklist item", c.ID, c)
}

func (t *memTx) GetChecklistItem(_ context.Context, id string) (*types.ChecklistItem, error) {
	return get(t.d.checklist, "checklist item", id)
}

func (t *memTx) UpdateChecklistItem(_ context.Context, c *types.ChecklistItem) error {
	return replace(t.d.checklist, "checklist item", c.ID, c)
}

func (t *memTx) DeleteChecklistItem(_ context.Context, id string) error {
	return remove(t.d.checklist, "checklist item", id)
}

func (t *memTx) ListChecklistItems(_ context.Context, checklist string) ([]*types.ChecklistItem, error) {
	var keep func(*types.ChecklistItem) bool
	if checklist != "" {
		keep = func(c *types.ChecklistItem) bool { return c.Checklist == checklist }
	}
	return list(t.d.checklist, keep, func(a, b *types.ChecklistItem) bool {
		if a.Checklist != b.Checklist {
			return a.Checklist < b.Checklist
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	}), nil
}

func insert[E any](m map[string]*E, kind, id string, e *E) error {
	if id == "" {
		return fmt.Errorf("%s: id is required", kind)
	}
	if _, exists := m[id]; exists {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrAlreadyExists)
	}
	v := *e
	m[id] = &v
	return nil
}

func get[E any](m map[string]*E, kind, id string) (*E, error) {
	e, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	v := *e
	return &v, nil
}

func replace[E any](m map[string]*E, kind, id string, e *E) error {
	if _, ok := m[id]; !ok {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	v := *e
	m[id] = &v
	return nil
}

func remove[E any](m map[string]*E, kind, id string) error {
	if _, ok := m[id]; !ok {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	delete(m, id)
	return nil
}

func list[E any](m map[string]*E, keep func(*E) bool, less func(a, b *E) bool) []*E {
	out := make([]*E, 0, len(m))
	for _, e := range m {
		if keep != nil && !keep(e) {
			continue
		}
		v := *e
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
