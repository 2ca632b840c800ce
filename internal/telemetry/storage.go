package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
)

const storageScopeName = "github.com/rulebook-dev/rulebook/storage"

// InstrumentedStorage wraps storage.Storage with OTel tracing and metrics.
// Every method gets a span and is counted in rb.storage.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStorage struct {
	inner  storage.Storage
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

var _ storage.Storage = (*InstrumentedStorage)(nil)

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStorage(s storage.Storage) storage.Storage {
	if !Enabled() {
		return s
	}
	return newInstrumented(s)
}

func newInstrumented(s storage.Storage) *InstrumentedStorage {
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("rb.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("rb.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("rb.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	return &InstrumentedStorage{
		inner:  s,
		tracer: Tracer(storageScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStorage) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStorage) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// ── Feedback ────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateFeedback(ctx context.Context, f *types.Feedback) error {
	attrs := []attribute.KeyValue{
		attribute.String("rb.target.type", string(f.TargetType)),
		attribute.String("rb.feedback.type", string(f.FeedbackType)),
	}
	ctx, span, t := s.op(ctx, "CreateFeedback", attrs...)
	err := s.inner.CreateFeedback(ctx, f)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetFeedback(ctx context.Context, id string) (*types.Feedback, error) {
	attrs := []attribute.KeyValue{attribute.String("rb.feedback.id", id)}
	ctx, span, t := s.op(ctx, "GetFeedback", attrs...)
	v, err := s.inner.GetFeedback(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) UpdateFeedback(ctx context.Context, f *types.Feedback) error {
	attrs := []attribute.KeyValue{
		attribute.String("rb.feedback.id", f.ID),
		attribute.String("rb.feedback.status", string(f.Status)),
	}
	ctx, span, t := s.op(ctx, "UpdateFeedback", attrs...)
	err := s.inner.UpdateFeedback(ctx, f)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) SearchFeedback(ctx context.Context, c storage.SliceCriteria) ([]*types.Feedback, error) {
	attrs := []attribute.KeyValue{attribute.Int("rb.query.limit", c.Limit)}
	ctx, span, t := s.op(ctx, "SearchFeedback", attrs...)
	v, err := s.inner.SearchFeedback(ctx, c)
	span.SetAttributes(attribute.Int("rb.result.count", len(v)))
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Coding rules ────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateCodingRule(ctx context.Context, r *types.CodingRule) error {
	ctx, span, t := s.op(ctx, "CreateCodingRule")
	err := s.inner.CreateCodingRule(ctx, r)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) GetCodingRule(ctx context.Context, id string) (*types.CodingRule, error) {
	ctx, span, t := s.op(ctx, "GetCodingRule")
	v, err := s.inner.GetCodingRule(ctx, id)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) GetCodingRuleByCode(ctx context.Context, code string) (*types.CodingRule, error) {
	ctx, span, t := s.op(ctx, "GetCodingRuleByCode")
	v, err := s.inner.GetCodingRuleByCode(ctx, code)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) UpdateCodingRule(ctx context.Context, r *types.CodingRule) error {
	ctx, span, t := s.op(ctx, "UpdateCodingRule")
	err := s.inner.UpdateCodingRule(ctx, r)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) DeleteCodingRule(ctx context.Context, id string) error {
	ctx, span, t := s.op(ctx, "DeleteCodingRule")
	err := s.inner.DeleteCodingRule(ctx, id)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) ListCodingRules(ctx context.Context) ([]*types.CodingRule, error) {
	ctx, span, t := s.op(ctx, "ListCodingRules")
	v, err := s.inner.ListCodingRules(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

// ── Rule examples ───────────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateRuleExample(ctx context.Context, e *types.RuleExample) error {
	ctx, span, t := s.op(ctx, "CreateRuleExample")
	err := s.inner.CreateRuleExample(ctx, e)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) GetRuleExample(ctx context.Context, id string) (*types.RuleExample, error) {
	ctx, span, t := s.op(ctx, "GetRuleExample")
	v, err := s.inner.GetRuleExample(ctx, id)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) UpdateRuleExample(ctx context.Context, e *types.RuleExample) error {
	ctx, span, t := s.op(ctx, "UpdateRuleExample")
	err := s.inner.UpdateRuleExample(ctx, e)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) DeleteRuleExample(ctx context.Context, id string) error {
	ctx, span, t := s.op(ctx, "DeleteRuleExample")
	err := s.inner.DeleteRuleExample(ctx, id)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) ListRuleExamples(ctx context.Context, ruleID string) ([]*types.RuleExample, error) {
	ctx, span, t := s.op(ctx, "ListRuleExamples")
	v, err := s.inner.ListRuleExamples(ctx, ruleID)
	s.done(ctx, span, t, err)
	return v, err
}

// ── Class templates ─────────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateClassTemplate(ctx context.Context, tpl *types.ClassTemplate) error {
	ctx, span, t := s.op(ctx, "CreateClassTemplate")
	err := s.inner.CreateClassTemplate(ctx, tpl)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) GetClassTemplate(ctx context.Context, id string) (*types.ClassTemplate, error) {
	ctx, span, t := s.op(ctx, "GetClassTemplate")
	v, err := s.inner.GetClassTemplate(ctx, id)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) UpdateClassTemplate(ctx context.Context, tpl *types.ClassTemplate) error {
	ctx, span, t := s.op(ctx, "UpdateClassTemplate")
	err := s.inner.UpdateClassTemplate(ctx, tpl)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) DeleteClassTemplate(ctx context.Context, id string) error {
	ctx, span, t := s.op(ctx, "DeleteClassTemplate")
	err := s.inner.DeleteClassTemplate(ctx, id)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) ListClassTemplates(ctx context.Context) ([]*types.ClassTemplate, error) {
	ctx, span, t := s.op(ctx, "ListClassTemplates")
	v, err := s.inner.ListClassTemplates(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

// ── Checklist items ─────────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateChecklistItem(ctx context.Context, c *types.ChecklistItem) error {
	ctx, span, t := s.op(ctx, "CreateChecklistItem")
	err := s.inner.CreateChecklistItem(ctx, c)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) GetChecklistItem(ctx context.Context, id string) (*types.ChecklistItem, error) {
	ctx, span, t := s.op(ctx, "GetChecklistItem")
	v, err := s.inner.GetChecklistItem(ctx, id)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) UpdateChecklistItem(ctx context.Context, c *types.ChecklistItem) error {
	ctx, span, t := s.op(ctx, "UpdateChecklistItem")
	err := s.inner.UpdateChecklistItem(ctx, c)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) DeleteChecklistItem(ctx context.Context, id string) error {
	ctx, span, t := s.op(ctx, "DeleteChecklistItem")
	err := s.inner.DeleteChecklistItem(ctx, id)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) ListChecklistItems(ctx context.Context, checklist string) ([]*types.ChecklistItem, error) {
	attrs := []attribute.KeyValue{attribute.String("rb.checklist", checklist)}
	ctx, span, t := s.op(ctx, "ListChecklistItems", attrs...)
	v, err := s.inner.ListChecklistItems(ctx, checklist)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Transactions ─────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	ctx, span, t := s.op(ctx, "RunInTransaction")
	err := s.inner.RunInTransaction(ctx, fn)
	s.done(ctx, span, t, err)
	return err
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
