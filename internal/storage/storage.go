// Package storage defines the persistence boundary for feedback items and
// the governed entities they target.
//
// Concrete implementations live in the sqlstore (SQLite, MySQL/Dolt) and
// memory sub-packages. Consumers depend on these interfaces so that
// alternative implementations (instrumented wrappers, fakes) can be
// substituted.
package storage

import (
	"context"
	"errors"

	"github.com/rulebook-dev/rulebook/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConcurrentModification is returned by UpdateFeedback when the stored
// version no longer matches the version that was loaded. Callers should
// reload and retry.
var ErrConcurrentModification = errors.New("concurrent modification")

// ErrAlreadyExists is returned when creating an entity whose ID is taken.
var ErrAlreadyExists = errors.New("already exists")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// FeedbackStore persists feedback items.
type FeedbackStore interface {
	// CreateFeedback inserts f, assigning an ID when f.ID is empty.
	CreateFeedback(ctx context.Context, f *types.Feedback) error
	// GetFeedback returns ErrNotFound (wrapped) when id is unknown.
	GetFeedback(ctx context.Context, id string) (*types.Feedback, error)
	// UpdateFeedback saves the mutable fields (status, review notes,
	// updated_at) if the stored version equals f.Version, then bumps
	// f.Version. Returns ErrConcurrentModification on a version mismatch.
	UpdateFeedback(ctx context.Context, f *types.Feedback) error
	// SearchFeedback returns up to c.Limit items ordered by
	// (created_at, id) ascending, starting after c.After.
	SearchFeedback(ctx context.Context, c SliceCriteria) ([]*types.Feedback, error)
}

// RuleStore persists the governed entities feedback can target. Get
// methods return ErrNotFound (wrapped) for unknown IDs; Create returns
// ErrAlreadyExists for a taken ID.
type RuleStore interface {
	CreateCodingRule(ctx context.Context, r *types.CodingRule) error
	GetCodingRule(ctx context.Context, id string) (*types.CodingRule, error)
	GetCodingRuleByCode(ctx context.Context, code string) (*types.CodingRule, error)
	UpdateCodingRule(ctx context.Context, r *types.CodingRule) error
	DeleteCodingRule(ctx context.Context, id string) error
	ListCodingRules(ctx context.Context) ([]*types.CodingRule, error)

	CreateRuleExample(ctx context.Context, e *types.RuleExample) error
	GetRuleExample(ctx context.Context, id string) (*types.RuleExample, error)
	UpdateRuleExample(ctx context.Context, e *types.RuleExample) error
	DeleteRuleExample(ctx context.Context, id string) error
	ListRuleExamples(ctx context.Context, ruleID string) ([]*types.RuleExample, error)

	CreateClassTemplate(ctx context.Context, t *types.ClassTemplate) error
	GetClassTemplate(ctx context.Context, id string) (*types.ClassTemplate, error)
	UpdateClassTemplate(ctx context.Context, t *types.ClassTemplate) error
	DeleteClassTemplate(ctx context.Context, id string) error
	ListClassTemplates(ctx context.Context) ([]*types.ClassTemplate, error)

	CreateChecklistItem(ctx context.Context, c *types.ChecklistItem) error
	GetChecklistItem(ctx context.Context, id string) (*types.ChecklistItem, error)
	UpdateChecklistItem(ctx context.Context, c *types.ChecklistItem) error
	DeleteChecklistItem(ctx context.Context, id string) error
	ListChecklistItems(ctx context.Context, checklist string) ([]*types.ChecklistItem, error)
}

// Transaction exposes every store operation inside one atomic unit of work.
//
// # Transaction Semantics
//
//   - If fn returns an error, the transaction is rolled back
//   - If fn panics, the transaction is rolled back and the panic re-raised
//   - On successful return from fn, the transaction is committed
//   - Write transactions against the same store are serialized
//
// # Example Usage
//
//	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
//	    f, err := tx.GetFeedback(ctx, id)
//	    if err != nil {
//	        return err // Triggers rollback
//	    }
//	    if err := tx.UpdateCodingRule(ctx, rule); err != nil {
//	        return err // Triggers rollback
//	    }
//	    return tx.UpdateFeedback(ctx, f) // nil triggers commit
//	})
type Transaction interface {
	FeedbackStore
	RuleStore
}

// Storage is the full persistence boundary.
type Storage interface {
	Transaction

	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error
	Close() error
}
