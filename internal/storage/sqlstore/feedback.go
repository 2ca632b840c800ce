package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rulebook-dev/rulebook/internal/idgen"
	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs every storage.Transaction operation against a querier. The
// Store embeds one bound to the pool; RunInTransaction hands out one bound
// to a *sql.Tx.
type conn struct {
	q    querier
	d    *dialect
	inTx bool
}

var _ storage.Transaction = (*conn)(nil)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const feedbackColumns = `id, target_type, target_id, feedback_type, risk_level, payload,
	status, review_notes, created_at, updated_at, version`

func (c *conn) CreateFeedback(ctx context.Context, f *types.Feedback) error {
	generated := f.ID == ""
	for attempt := 0; ; attempt++ {
		if generated {
			f.ID = idgen.New(idgen.PrefixFeedback)
		}
		err := c.insertFeedback(ctx, f)
		if err == nil {
			f.Version = 1
			return nil
		}
		if !c.d.duplicate(err) {
			return fmt.Errorf("insert feedback: %w", err)
		}
		if !generated {
			return fmt.Errorf("feedback %s: %w", f.ID, storage.ErrAlreadyExists)
		}
		if attempt > 10 {
			f.ID = ""
			return fmt.Errorf("generate feedback id: too many collisions")
		}
	}
}

func (c *conn) insertFeedback(ctx context.Context, f *types.Feedback) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO feedback (`+feedbackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`,
		f.ID, string(f.TargetType), f.TargetID, string(f.FeedbackType), string(f.RiskLevel),
		string(f.Payload), string(f.Status), nullString(f.ReviewNotes),
		storage.FormatTime(f.CreatedAt), storage.FormatTime(f.UpdatedAt),
	)
	return err
}

func (c *conn) GetFeedback(ctx context.Context, id string) (*types.Feedback, error) {
	query := "SELECT " + feedbackColumns + " FROM feedback WHERE id = ?"
	if c.inTx {
		query += c.d.lockSuffix
	}
	f, err := scanFeedback(c.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feedback %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback %s: %w", id, err)
	}
	return f, nil
}

// UpdateFeedback writes only the fields the review workflow changes.
func (c *conn) UpdateFeedback(ctx context.Context, f *types.Feedback) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE feedback
		SET status = ?, review_notes = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, string(f.Status), nullString(f.ReviewNotes), storage.FormatTime(f.UpdatedAt), f.ID, f.Version)
	if err != nil {
		return fmt.Errorf("update feedback %s: %w", f.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update feedback %s: %w", f.ID, err)
	}
	if n == 1 {
		f.Version++
		return nil
	}

	var current int64
	err = c.q.QueryRowContext(ctx, "SELECT version FROM feedback WHERE id = ?", f.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("feedback %s: %w", f.ID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update feedback %s: %w", f.ID, err)
	}
	return fmt.Errorf("feedback %s at version %d (have %d): %w",
		f.ID, current, f.Version, storage.ErrConcurrentModification)
}

func (c *conn) SearchFeedback(ctx context.Context, crit storage.SliceCriteria) ([]*types.Feedback, error) {
	where, args := feedbackWhere(crit)

	query := "SELECT " + feedbackColumns + " FROM feedback"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if crit.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, crit.Limit)
	}

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search feedback: %w", err)
	}
	defer rows.Close()

	var out []*types.Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("search feedback: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search feedback: %w", err)
	}
	return out, nil
}

// feedbackWhere builds the WHERE clauses for crit. Timestamps compare as
// text, which is sound because FormatTime is fixed width.
func feedbackWhere(crit storage.SliceCriteria) ([]string, []any) {
	var where []string
	var args []any
	ff := crit.Filter

	if len(ff.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(ff.Statuses))+")")
		for _, s := range ff.Statuses {
			args = append(args, string(s))
		}
	}
	if ff.TargetType != "" {
		where = append(where, "target_type = ?")
		args = append(args, string(ff.TargetType))
	}
	if ff.TargetID != "" {
		where = append(where, "target_id = ?")
		args = append(args, ff.TargetID)
	}
	if ff.FeedbackType != "" {
		where = append(where, "feedback_type = ?")
		args = append(args, string(ff.FeedbackType))
	}
	if len(ff.RiskLevels) > 0 {
		where = append(where, "risk_level IN ("+placeholders(len(ff.RiskLevels))+")")
		for _, r := range ff.RiskLevels {
			args = append(args, string(r))
		}
	}
	if len(ff.ExcludeRisks) > 0 {
		where = append(where, "risk_level NOT IN ("+placeholders(len(ff.ExcludeRisks))+")")
		for _, r := range ff.ExcludeRisks {
			args = append(args, string(r))
		}
	}
	if ff.CreatedAfter != nil {
		where = append(where, "created_at > ?")
		args = append(args, storage.FormatTime(*ff.CreatedAfter))
	}
	if ff.CreatedBefore != nil {
		where = append(where, "created_at < ?")
		args = append(args, storage.FormatTime(*ff.CreatedBefore))
	}
	if crit.After != nil {
		ts := storage.FormatTime(crit.After.CreatedAt)
		where = append(where, "(created_at > ? OR (created_at = ? AND id > ?))")
		args = append(args, ts, ts, crit.After.ID)
	}
	return where, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanFeedback(row rowScanner) (*types.Feedback, error) {
	var (
		f                    types.Feedback
		targetType, fbType   string
		riskLevel, status    string
		payload              string
		notes                sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&f.ID, &targetType, &f.TargetID, &fbType, &riskLevel, &payload,
		&status, &notes, &createdAt, &updatedAt, &f.Version); err != nil {
		return nil, err
	}

	f.TargetType = types.TargetType(targetType)
	f.FeedbackType = types.FeedbackType(fbType)
	f.RiskLevel = types.RiskLevel(riskLevel)
	f.Status = types.Status(status)
	if payload != "" {
		f.Payload = json.RawMessage(payload)
	}
	if notes.Valid {
		f.ReviewNotes = notes.String
	}

	var err error
	if f.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("feedback %s: parse created_at: %w", f.ID, err)
	}
	if f.UpdatedAt, err = storage.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("feedback %s: parse updated_at: %w", f.ID, err)
	}
	return &f, nil
}

// nullString stores empty strings as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
