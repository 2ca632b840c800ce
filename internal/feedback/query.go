package feedback

import (
	"context"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// Get returns one feedback item.
func (s *Service) Get(ctx context.Context, id string) (*types.Feedback, error) {
	f, err := s.store.GetFeedback(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "get", err, "id", id)
	}
	return f, nil
}

// ListPending pages through items awaiting automated review.
func (s *Service) ListPending(ctx context.Context, cursor string, size int) (*types.Slice[*types.Feedback], error) {
	return s.page(ctx, "list pending", types.FeedbackFilter{
		Statuses: []types.Status{types.StatusPendingLLM},
	}, cursor, size)
}

// ListAwaitingHumanReview pages through automatically approved items whose
// risk level requires a human decision.
func (s *Service) ListAwaitingHumanReview(ctx context.Context, cursor string, size int) (*types.Slice[*types.Feedback], error) {
	return s.page(ctx, "list awaiting", types.FeedbackFilter{
		Statuses:     []types.Status{types.StatusLLMApproved},
		ExcludeRisks: []types.RiskLevel{types.RiskSafe},
	}, cursor, size)
}

// Search pages through items matching filter.
func (s *Service) Search(ctx context.Context, filter types.FeedbackFilter, cursor string, size int) (*types.Slice[*types.Feedback], error) {
	return s.page(ctx, "search", filter, cursor, size)
}

// page fetches one more row than requested so HasMore needs no count query.
func (s *Service) page(ctx context.Context, op string, filter types.FeedbackFilter, cursor string, size int) (*types.Slice[*types.Feedback], error) {
	size = clampPageSize(size)

	after, err := storage.DecodeCursor(cursor)
	if err != nil {
		return nil, s.fail(ctx, op, err, "cursor", cursor)
	}

	items, err := s.store.SearchFeedback(ctx, storage.SliceCriteria{
		Filter: filter,
		After:  after,
		Limit:  size + 1,
	})
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	out := &types.Slice[*types.Feedback]{Items: items, Size: size}
	if len(items) > size {
		out.Items = items[:size]
		out.HasMore = true
		out.NextCursor = storage.CursorFor(out.Items[size-1]).Encode()
	}
	if out.Items == nil {
		out.Items = []*types.Feedback{}
	}
	s.log.Debug("Feedback page read", "op", op, "count", len(out.Items), "has_more", out.HasMore)
	return out, nil
}

func clampPageSize(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	}
	return size
}
