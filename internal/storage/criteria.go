package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rulebook-dev/rulebook/internal/types"
)

// ErrInvalidCursor is returned when a continuation cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// SliceCriteria selects a bounded, ordered slice of feedback items.
// Results are ordered by (CreatedAt, ID) ascending.
type SliceCriteria struct {
	Filter types.FeedbackFilter
	After  *Cursor // Exclusive lower bound; nil starts from the beginning
	Limit  int     // Maximum rows to return; <= 0 means no limit
}

// Cursor marks a position in the (created_at, id) ordering.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorFor returns the cursor positioned at f.
func CursorFor(f *types.Feedback) Cursor {
	return Cursor{CreatedAt: f.CreatedAt, ID: f.ID}
}

// Before reports whether the cursor position sorts strictly before f.
func (c Cursor) Before(f *types.Feedback) bool {
	if !f.CreatedAt.Equal(c.CreatedAt) {
		return f.CreatedAt.After(c.CreatedAt)
	}
	return f.ID > c.ID
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw := FormatTime(c.CreatedAt) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Cursor.Encode. An empty token
// yields a nil cursor.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: malformed token", ErrInvalidCursor)
	}
	t, err := ParseTime(ts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return &Cursor{CreatedAt: t, ID: id}, nil
}

// FormatTime renders t in the fixed-width UTC form every backend stores,
// so that lexical and chronological order agree.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// timeLayout is RFC3339 with a fixed nine-digit fraction.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
