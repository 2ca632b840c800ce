package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// Coding rules

const ruleColumns = "id, code, name, description, severity, category, created_at, updated_at"

func (c *conn) CreateCodingRule(ctx context.Context, r *types.CodingRule) error {
	if r.ID == "" {
		return fmt.Errorf("coding rule: id is required")
	}
	_, err := c.q.ExecContext(ctx, "INSERT INTO coding_rules ("+ruleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.Code, r.Name, r.Description, string(r.Severity), r.Category,
		storage.FormatTime(r.CreatedAt), storage.FormatTime(r.UpdatedAt))
	return c.writeErr(err, "coding rule", r.ID)
}

func (c *conn) GetCodingRule(ctx context.Context, id string) (*types.CodingRule, error) {
	r, err := scanRule(c.q.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM coding_rules WHERE id = ?", id))
	return r, readErr(err, "coding rule "+id)
}

func (c *conn) GetCodingRuleByCode(ctx context.Context, code string) (*types.CodingRule, error) {
	r, err := scanRule(c.q.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM coding_rules WHERE code = ?", code))
	return r, readErr(err, fmt.Sprintf("coding rule with code %q", code))
}

func (c *conn) UpdateCodingRule(ctx context.Context, r *types.CodingRule) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE coding_rules
		SET code = ?, name = ?, description = ?, severity = ?, category = ?, updated_at = ?
		WHERE id = ?
	`, r.Code, r.Name, r.Description, string(r.Severity), r.Category, storage.FormatTime(r.UpdatedAt), r.ID)
	return c.affectedOne(res, err, "coding rule", r.ID)
}

func (c *conn) DeleteCodingRule(ctx context.Context, id string) error {
	res, err := c.q.ExecContext(ctx, "DELETE FROM coding_rules WHERE id = ?", id)
	return c.affectedOne(res, err, "coding rule", id)
}

func (c *conn) ListCodingRules(ctx context.Context) ([]*types.CodingRule, error) {
	return queryAll(ctx, c.q, scanRule, "list coding rules",
		"SELECT "+ruleColumns+" FROM coding_rules ORDER BY code, id")
}

func scanRule(row rowScanner) (*types.CodingRule, error) {
	var r types.CodingRule
	var severity, createdAt, updatedAt string
	if err := row.Scan(&r.ID, &r.Code, &r.Name, &r.Description, &severity, &r.Category,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.Severity = types.Severity(severity)
	return &r, parseTimes(&r.CreatedAt, &r.UpdatedAt, createdAt, updatedAt)
}

// Rule examples

const exampleColumns = "id, rule_id, kind, language, snippet, explanation, created_at, updated_at"

func (c *conn) CreateRuleExample(ctx context.Context, e *types.RuleExample) error {
	if e.ID == "" {
		return fmt.Errorf("rule example: id is required")
	}
	_, err := c.q.ExecContext(ctx, "INSERT INTO rule_examples ("+exampleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.RuleID, string(e.Kind), e.Language, e.Snippet, e.Explanation,
		storage.FormatTime(e.CreatedAt), storage.FormatTime(e.UpdatedAt))
	return c.writeErr(err, "rule example", e.ID)
}

func (c *conn) GetRuleExample(ctx context.Context, id string) (*types.RuleExample, error) {
	e, err := scanExample(c.q.QueryRowContext(ctx, "SELECT "+exampleColumns+" FROM rule_examples WHERE id = ?", id))
	return e, readErr(err, "rule example "+id)
}

func (c *conn) UpdateRuleExample(ctx context.Context, e *types.RuleExample) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE rule_examples
		SET rule_id = ?, kind = ?, language = ?, snippet = ?, explanation = ?, updated_at = ?
		WHERE id = ?
	`, e.RuleID, string(e.Kind), e.Language, e.Snippet, e.Explanation, storage.FormatTime(e.UpdatedAt), e.ID)
	return c.affectedOne(res, err, "rule example", e.ID)
}

func (c *conn) DeleteRuleExample(ctx context.Context, id string) error {
	res, err := c.q.ExecContext(ctx, "DELETE FROM rule_examples WHERE id = ?", id)
	return c.affectedOne(res, err, "rule example", id)
}

func (c *conn) ListRuleExamples(ctx context.Context, ruleID string) ([]*types.RuleExample, error) {
	if ruleID == "" {
		return queryAll(ctx, c.q, scanExample, "list rule examples",
			"SELECT "+exampleColumns+" FROM rule_examples ORDER BY created_at, id")
	}
	return queryAll(ctx, c.q, scanExample, "list rule examples",
		"SELECT "+exampleColumns+" FROM rule_examples WHERE rule_id = ? ORDER BY created_at, id", ruleID)
}

func scanExample(row rowScanner) (*types.RuleExample, error) {
	var e types.RuleExample
	var kind, createdAt, updatedAt string
	if err := row.Scan(&e.ID, &e.RuleID, &kind, &e.Language, &e.Snippet, &e.Explanation,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Kind = types.ExampleKind(kind)
	return &e, parseTimes(&e.CreatedAt, &e.UpdatedAt, createdAt, updatedAt)
}

// Class templates

const templateColumns = "id, name, layer, language, content, description, created_at, updated_at"

func (c *conn) CreateClassTemplate(ctx context.Context, t *types.ClassTemplate) error {
	if t.ID == "" {
		return fmt.Errorf("class template: id is required")
	}
	_, err := c.q.ExecContext(ctx, "INSERT INTO class_templates ("+templateColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.Name, t.Layer, t.Language, t.Content, t.Description,
		storage.FormatTime(t.CreatedAt), storage.FormatTime(t.UpdatedAt))
	return c.writeErr(err, "class template", t.ID)
}

func (c *conn) GetClassTemplate(ctx context.Context, id string) (*types.ClassTemplate, error) {
	t, err := scanTemplate(c.q.QueryRowContext(ctx, "SELECT "+templateColumns+" FROM class_templates WHERE id = ?", id))
	return t, readErr(err, "class template "+id)
}

func (c *conn) UpdateClassTemplate(ctx context.Context, t *types.ClassTemplate) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE class_templates
		SET name = ?, layer = ?, language = ?, content = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, t.Name, t.Layer, t.Language, t.Content, t.Description, storage.FormatTime(t.UpdatedAt), t.ID)
	return c.affectedOne(res, err, "class template", t.ID)
}

func (c *conn) DeleteClassTemplate(ctx context.Context, id string) error {
	res, err := c.q.ExecContext(ctx, "DELETE FROM class_templates WHERE id = ?", id)
	return c.affectedOne(res, err, "class template", id)
}

func (c *conn) ListClassTemplates(ctx context.Context) ([]*types.ClassTemplate, error) {
	return queryAll(ctx, c.q, scanTemplate, "list class templates",
		"SELECT "+templateColumns+" FROM class_templates ORDER BY name, id")
}

func scanTemplate(row rowScanner) (*types.ClassTemplate, error) {
	var t types.ClassTemplate
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Name, &t.Layer, &t.Language, &t.Content, &t.Description,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &t, parseTimes(&t.CreatedAt, &t.UpdatedAt, createdAt, updatedAt)
}

// Checklist items

const checklistColumns = "id, checklist, title, description, position, created_at, updated_at"

func (c *conn) CreateChecklistItem(ctx context.Context, item *types.ChecklistItem) error {
	if item.ID == "" {
		return fmt.Errorf("checklist item: id is required")
	}
	_, err := c.q.ExecContext(ctx, "INSERT INTO checklist_items ("+checklistColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		item.ID, item.Checklist, item.Title, item.Description, item.Position,
		storage.FormatTime(item.CreatedAt), storage.FormatTime(item.UpdatedAt))
	return c.writeErr(err, "checklist item", item.ID)
}

func (c *conn) GetChecklistItem(ctx context.Context, id string) (*types.ChecklistItem, error) {
	item, err := scanChecklistItem(c.q.QueryRowContext(ctx, "SELECT "+checklistColumns+" FROM checklist_items WHERE id = ?", id))
	return item, readErr(err, "checklist item "+id)
}

func (c *conn) UpdateChecklistItem(ctx context.Context, item *types.ChecklistItem) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE checklist_items
		SET checklist = ?, title = ?, description = ?, position = ?, updated_at = ?
		WHERE id = ?
	`, item.Checklist, item.Title, item.Description, item.Position, storage.FormatTime(item.UpdatedAt), item.ID)
	return c.affectedOne(res, err, "checklist item", item.ID)
}

func (c *conn) DeleteChecklistItem(ctx context.Context, id string) error {
	res, err := c.q.ExecContext(ctx, "DELETE FROM checklist_items WHERE id = ?", id)
	return c.affectedOne(res, err, "checklist item", id)
}

func (c *conn) ListChecklistItems(ctx context.Context, checklist string) ([]*types.ChecklistItem, error) {
	if checklist == "" {
		return queryAll(ctx, c.q, scanChecklistItem, "list checklist items",
			"SELECT "+checklistColumns+" FROM checklist_items ORDER BY checklist, position, id")
	}
	return queryAll(ctx, c.q, scanChecklistItem, "list checklist items",
		"SELECT "+checklistColumns+" FROM checklist_items WHERE checklist = ? ORDER BY position, id", checklist)
}

func scanChecklistItem(row rowScanner) (*types.ChecklistItem, error) {
	var item types.ChecklistItem
	var createdAt, updatedAt string
	if err := row.Scan(&item.ID, &item.Checklist, &item.Title, &item.Description, &item.Position,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &item, parseTimes(&item.CreatedAt, &item.UpdatedAt, createdAt, updatedAt)
}

// Shared helpers

func queryAll[E any](ctx context.Context, q querier, scan func(rowScanner) (*E, error), op, query string, args ...any) ([]*E, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []*E{}
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (c *conn) writeErr(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	if c.d.duplicate(err) {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrAlreadyExists)
	}
	return fmt.Errorf("write %s %s: %w", kind, id, err)
}

func readErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return fmt.Errorf("read %s: %w", what, err)
}

// affectedOne maps an UPDATE or DELETE that touched no row to ErrNotFound.
// MySQL connections are opened with clientFoundRows so unchanged rows count.
func (c *conn) affectedOne(res sql.Result, err error, kind, id string) error {
	if err != nil {
		return c.writeErr(err, kind, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

func parseTimes(created, updated *time.Time, createdAt, updatedAt string) error {
	var err error
	if *created, err = storage.ParseTime(createdAt); err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}
	if *updated, err = storage.ParseTime(updatedAt); err != nil {
		return fmt.Errorf("parse updated_at: %w", err)
	}
	return nil
}
