package merge

import (
	"context"
	"time"

	"github.com/rulebook-dev/rulebook/internal/idgen"
	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// target binds one governed entity type to its transaction operations.
type target[E any] struct {
	name   string
	prefix string

	get    func(ctx context.Context, tx storage.Transaction, id string) (*E, error)
	create func(ctx context.Context, tx storage.Transaction, e *E) error
	update func(ctx context.Context, tx storage.Transaction, e *E) error
	remove func(ctx context.Context, tx storage.Transaction, id string) error

	// stamp assigns identity and both timestamps to a new entity.
	stamp func(e *E, id string, now time.Time)
	// touch refreshes the modification time of an existing entity.
	touch func(e *E, now time.Time)
}

var codingRules = &target[types.CodingRule]{
	name:   "coding rule",
	prefix: idgen.PrefixCodingRule,
	get: func(ctx context.Context, tx storage.Transaction, id string) (*types.CodingRule, error) {
		return tx.GetCodingRule(ctx, id)
	},
	create: func(ctx context.Context, tx storage.Transaction, r *types.CodingRule) error {
		return tx.CreateCodingRule(ctx, r)
	},
	update: func(ctx context.Context, tx storage.Transaction, r *types.CodingRule) error {
		return tx.UpdateCodingRule(ctx, r)
	},
	remove: func(ctx context.Context, tx storage.Transaction, id string) error {
		return tx.DeleteCodingRule(ctx, id)
	},
	stamp: func(r *types.CodingRule, id string, now time.Time) {
		r.ID, r.CreatedAt, r.UpdatedAt = id, now, now
	},
	touch: func(r *types.CodingRule, now time.Time) { r.UpdatedAt = now },
}

var ruleExamples = &target[types.RuleExample]{
	name:   "rule example",
	prefix: idgen.PrefixRuleExample,
	get: func(ctx context.Context, tx storage.Transaction, id string) (*types.RuleExample, error) {
		return tx.GetRuleExample(ctx, id)
	},
	create: func(ctx context.Context, tx storage.Transaction, e *types.RuleExample) error {
		return tx.CreateRuleExample(ctx, e)
	},
	update: func(ctx context.Context, tx storage.Transaction, e *types.RuleExample) error {
		return tx.UpdateRuleExample(ctx, e)
	},
	remove: func(ctx context.Context, tx storage.Transaction, id string) error {
		return tx.DeleteRuleExample(ctx, id)
	},
	stamp: func(e *types.RuleExample, id string, now time.Time) {
		e.ID, e.CreatedAt, e.UpdatedAt = id, now, now
	},
	touch: func(e *types.RuleExample, now time.Time) { e.UpdatedAt = now },
}

var classTemplates = &target[types.ClassTemplate]{
	name:   "class template",
	prefix: idgen.PrefixClassTemplate,
	get: func(ctx context.Context, tx storage.Transaction, id string) (*types.ClassTemplate, error) {
		return tx.GetClassTemplate(ctx, id)
	},
	create: func(ctx context.Context, tx storage.Transaction, t *types.ClassTemplate) error {
		return tx.CreateClassTemplate(ctx, t)
	},
	update: func(ctx context.Context, tx storage.Transaction, t *types.ClassTemplate) error {
		return tx.UpdateClassTemplate(ctx, t)
	},
	remove: func(ctx context.Context, tx storage.Transaction, id string) error {
		return tx.DeleteClassTemplate(ctx, id)
	},
	stamp: func(t *types.ClassTemplate, id string, now time.Time) {
		t.ID, t.CreatedAt, t.UpdatedAt = id, now, now
	},
	touch: func(t *types.ClassTemplate, now time.Time) { t.UpdatedAt = now },
}

var checklistItems = &target[types.ChecklistItem]{
	name:   "checklist item",
	prefix: idgen.PrefixChecklistItem,
	get: func(ctx context.Context, tx storage.Transaction, id string) (*types.ChecklistItem, error) {
		return tx.GetChecklistItem(ctx, id)
	},
	create: func(ctx context.Context, tx storage.Transaction, c *types.ChecklistItem) error {
		return tx.CreateChecklistItem(ctx, c)
	},
	update: func(ctx context.Context, tx storage.Transaction, c *types.ChecklistItem) error {
		return tx.UpdateChecklistItem(ctx, c)
	},
	remove: func(ctx context.Context, tx storage.Transaction, id string) error {
		return tx.DeleteChecklistItem(ctx, id)
	},
	stamp: func(c *types.ChecklistItem, id string, now time.Time) {
		c.ID, c.CreatedAt, c.UpdatedAt = id, now, now
	},
	touch: func(c *types.ChecklistItem, now time.Time) { c.UpdatedAt = now },
}
