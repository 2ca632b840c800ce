// Package feedback orchestrates the review-and-merge workflow.
//
// A Service exposes the four use cases: create a feedback item, process a
// review decision, merge an approved item, and read pages of items. Every
// mutation runs inside one storage transaction and saves with an optimistic
// version check, so two racing requests against the same item cannot both
// succeed.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rulebook-dev/rulebook/internal/merge"
	"github.com/rulebook-dev/rulebook/internal/payload"
	"github.com/rulebook-dev/rulebook/internal/registry"
	"github.com/rulebook-dev/rulebook/internal/risk"
	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/telemetry"
	"github.com/rulebook-dev/rulebook/internal/types"
	"github.com/rulebook-dev/rulebook/internal/workflow"
)

const meterScope = "github.com/rulebook-dev/rulebook/feedback"

// Page size bounds for the read operations.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Options wires a Service. Store is required; every other field has a
// built-in default.
type Options struct {
	Store      storage.Storage
	Payloads   *payload.Registry
	Validators *merge.ValidatorRegistry
	Strategies *merge.StrategyRegistry
	Classifier risk.Classifier
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Service implements the feedback use cases.
type Service struct {
	store      storage.Storage
	payloads   *payload.Registry
	validators *merge.ValidatorRegistry
	strategies *merge.StrategyRegistry
	classifier risk.Classifier
	log        *slog.Logger
	now        func() time.Time

	transitions metric.Int64Counter
	failures    metric.Int64Counter
}

// New returns a Service backed by opts.Store.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("feedback: store is required")
	}
	s := &Service{
		store:      opts.Store,
		payloads:   opts.Payloads,
		validators: opts.Validators,
		strategies: opts.Strategies,
		classifier: opts.Classifier,
		log:        opts.Logger,
		now:        opts.Clock,
	}
	if s.payloads == nil {
		s.payloads = payload.DefaultRegistry()
	}
	if s.validators == nil {
		s.validators = merge.DefaultValidators()
	}
	if s.classifier == nil {
		s.classifier = risk.Default()
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.strategies == nil {
		s.strategies = merge.NewStrategies(s.now)
	}

	m := telemetry.Meter(meterScope)
	s.transitions, _ = m.Int64Counter("rb.feedback.transitions",
		metric.WithDescription("Feedback status transitions applied"),
	)
	s.failures, _ = m.Int64Counter("rb.feedback.failures",
		metric.WithDescription("Feedback operations rejected, by error code"),
	)
	return s, nil
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) recordTransition(ctx context.Context, f *types.Feedback, from types.Status, action types.Action) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rb.action", string(action)),
		attribute.String("rb.status.from", string(from)),
		attribute.String("rb.status.to", string(f.Status)),
		attribute.String("rb.target.type", string(f.TargetType)),
	))
}

// Error codes returned by ErrorCode.
const (
	CodeInvalidPayload         = "invalid_payload"
	CodeUnsupportedTargetType  = "unsupported_target_type"
	CodeNotFound               = "not_found"
	CodeInvalidStateTransition = "invalid_state_transition"
	CodeMergeNotEligible       = "merge_not_eligible"
	CodeConcurrentModification = "concurrent_modification"
	CodeInvalidCursor          = "invalid_cursor"
	CodeAlreadyExists          = "already_exists"
	CodeInternal               = "internal"
)

// ErrorCode maps an error returned by a Service method to a stable code
// suitable for machine-readable output.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, payload.ErrInvalidPayload):
		return CodeInvalidPayload
	case errors.Is(err, registry.ErrUnsupportedTargetType):
		return CodeUnsupportedTargetType
	case errors.Is(err, workflow.ErrInvalidTransition):
		return CodeInvalidStateTransition
	case errors.Is(err, merge.ErrMergeNotEligible):
		return CodeMergeNotEligible
	case errors.Is(err, storage.ErrConcurrentModification):
		return CodeConcurrentModification
	case errors.Is(err, storage.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, storage.ErrInvalidCursor):
		return CodeInvalidCursor
	case errors.Is(err, storage.ErrAlreadyExists):
		return CodeAlreadyExists
	}
	return CodeInternal
}

// Retryable reports whether the caller should reload and retry.
func Retryable(err error) bool {
	return errors.Is(err, storage.ErrConcurrentModification)
}

func (s *Service) fail(ctx context.Context, op string, err error, attrs ...any) error {
	code := ErrorCode(err)
	s.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rb.operation", op),
		attribute.String("rb.error.code", code),
	))
	s.log.Info(fmt.Sprintf("Feedback %s failed", op), append(attrs, "code", code, "error", err)...)
	return err
}
