package merge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rulebook-dev/rulebook/internal/idgen"
	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// entityStrategy decodes the payload onto the entity type E. Payload keys
// match the entity's JSON field names.
type entityStrategy[E any] struct {
	t   *target[E]
	now func() time.Time
}

func (s *entityStrategy[E]) Merge(ctx context.Context, tx storage.Transaction, f *types.Feedback) (string, error) {
	now := s.now().UTC()

	switch f.FeedbackType {
	case types.FeedbackCreate:
		e := new(E)
		if err := decodeOnto(f.Payload, e); err != nil {
			return "", fmt.Errorf("decode %s: %w", s.t.name, err)
		}
		id := f.TargetID
		if id == "" {
			id = idgen.New(s.t.prefix)
		}
		s.t.stamp(e, id, now)
		if err := s.t.create(ctx, tx, e); err != nil {
			return "", fmt.Errorf("create %s %s: %w", s.t.name, id, err)
		}
		return id, nil

	case types.FeedbackUpdate:
		e, err := s.t.get(ctx, tx, f.TargetID)
		if err != nil {
			return "", fmt.Errorf("load %s %s: %w", s.t.name, f.TargetID, err)
		}
		if err := decodeOnto(f.Payload, e); err != nil {
			return "", fmt.Errorf("decode %s: %w", s.t.name, err)
		}
		s.t.touch(e, now)
		if err := s.t.update(ctx, tx, e); err != nil {
			return "", fmt.Errorf("update %s %s: %w", s.t.name, f.TargetID, err)
		}
		return f.TargetID, nil

	case types.FeedbackDelete:
		if err := s.t.remove(ctx, tx, f.TargetID); err != nil {
			return "", fmt.Errorf("delete %s %s: %w", s.t.name, f.TargetID, err)
		}
		return f.TargetID, nil
	}
	return "", fmt.Errorf("unknown feedback type %q", f.FeedbackType)
}

// decodeOnto overlays the keys present in raw onto dst. Keys absent from the
// payload leave the existing field values in place.
func decodeOnto(raw json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after the payload object")
	}
	return nil
}
