package feedback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rulebook-dev/rulebook/internal/payload"
	"github.com/rulebook-dev/rulebook/internal/registry"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// CreateRequest describes a proposed change.
type CreateRequest struct {
	TargetType   types.TargetType
	TargetID     string // Required for UPDATE and DELETE
	FeedbackType types.FeedbackType
	Payload      json.RawMessage
}

// Create validates the proposal, classifies its risk and stores it in
// PENDING_LLM. Nothing is stored when any step fails.
func (s *Service) Create(ctx context.Context, req CreateRequest) (string, error) {
	attrs := []any{"target_type", req.TargetType, "feedback_type", req.FeedbackType, "target_id", req.TargetID}

	if !req.TargetType.IsValid() {
		return "", s.fail(ctx, "create", &registry.UnsupportedTargetTypeError{
			Registry:   "payload validator",
			TargetType: req.TargetType,
		}, attrs...)
	}
	if !req.FeedbackType.IsValid() {
		return "", s.fail(ctx, "create", &payload.InvalidPayloadError{
			TargetType:   req.TargetType,
			FeedbackType: req.FeedbackType,
			Reason:       "unknown feedback type",
		}, attrs...)
	}
	if req.TargetID == "" && req.FeedbackType != types.FeedbackCreate {
		return "", s.fail(ctx, "create", &payload.InvalidPayloadError{
			TargetType:   req.TargetType,
			FeedbackType: req.FeedbackType,
			Reason:       "target id is required",
		}, attrs...)
	}

	validator, err := s.payloads.Lookup(req.TargetType)
	if err != nil {
		return "", s.fail(ctx, "create", err, attrs...)
	}
	if err := validator.Validate(req.Payload, req.FeedbackType); err != nil {
		return "", s.fail(ctx, "create", err, attrs...)
	}

	level, err := s.classifier.Classify(ctx, req.TargetType, req.FeedbackType, req.Payload)
	if err != nil {
		return "", s.fail(ctx, "create", fmt.Errorf("classify risk: %w", err), attrs...)
	}
	if !level.IsValid() {
		return "", s.fail(ctx, "create", fmt.Errorf("classify risk: invalid level %q", level), attrs...)
	}

	now := s.clock()
	f := &types.Feedback{
		TargetType:   req.TargetType,
		TargetID:     req.TargetID,
		FeedbackType: req.FeedbackType,
		RiskLevel:    level,
		Payload:      append(json.RawMessage(nil), req.Payload...),
		Status:       types.StatusPendingLLM,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateFeedback(ctx, f); err != nil {
		return "", s.fail(ctx, "create", fmt.Errorf("store feedback: %w", err), attrs...)
	}

	s.log.Info("Feedback created", "id", f.ID, "target_type", f.TargetType,
		"feedback_type", f.FeedbackType, "risk", f.RiskLevel)
	return f.ID, nil
}
