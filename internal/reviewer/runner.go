package reviewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/rulebook-dev/rulebook/internal/feedback"
	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/telemetry"
	"github.com/rulebook-dev/rulebook/internal/types"
	"github.com/rulebook-dev/rulebook/internal/workflow"
)

const (
	runnerScope        = "github.com/rulebook-dev/rulebook/reviewer"
	defaultConcurrency = 4
)

// Workflow is the subset of the feedback service the runner drives.
// *feedback.Service satisfies it.
type Workflow interface {
	ListPending(ctx context.Context, cursor string, size int) (*types.Slice[*types.Feedback], error)
	Search(ctx context.Context, filter types.FeedbackFilter, cursor string, size int) (*types.Slice[*types.Feedback], error)
	Process(ctx context.Context, id string, action types.Action, notes string) (*types.Feedback, error)
	Merge(ctx context.Context, id string) (*feedback.MergeResult, error)
}

var _ Workflow = (*feedback.Service)(nil)

// RunnerOptions configures a Runner. Reviewer may be nil when only
// AutoMerge is used.
type RunnerOptions struct {
	Service     Workflow
	Reviewer    Reviewer
	Concurrency int // Items reviewed in parallel (default 4)
	PageSize    int // Items fetched per page (default feedback.DefaultPageSize)
	Logger      *slog.Logger
}

// Runner drives the automated review stage over every pending item.
type Runner struct {
	svc         Workflow
	reviewer    Reviewer
	concurrency int
	pageSize    int
	log         *slog.Logger
	verdicts    metric.Int64Counter
}

// Summary reports what a Run or AutoMerge did.
type Summary struct {
	Reviewed int           `json:"reviewed"`
	Approved int           `json:"approved"`
	Rejected int           `json:"rejected"`
	Merged   int           `json:"merged"`
	Skipped  int           `json:"skipped"` // lost a race with another writer
	Failed   int           `json:"failed"`
	Errors   []*ItemError  `json:"errors,omitempty"`
	Items    []SummaryItem `json:"items,omitempty"`
	mu       sync.Mutex
}

// SummaryItem records the outcome for one feedback item.
type SummaryItem struct {
	ID       string       `json:"id"`
	Status   types.Status `json:"status"`
	TargetID string       `json:"target_id,omitempty"`
}

// ItemError is a per-item failure that did not stop the batch.
type ItemError struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
	Msg string `json:"error"`
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.ID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func (s *Summary) record(fn func(*Summary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *Summary) fail(id string, err error) {
	s.record(func(s *Summary) {
		s.Failed++
		s.Errors = append(s.Errors, &ItemError{ID: id, Err: err, Msg: err.Error()})
	})
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Service == nil {
		return nil, errors.New("reviewer: service is required")
	}
	r := &Runner{
		svc:         opts.Service,
		reviewer:    opts.Reviewer,
		concurrency: opts.Concurrency,
		pageSize:    opts.PageSize,
		log:         opts.Logger,
	}
	if r.concurrency <= 0 {
		r.concurrency = defaultConcurrency
	}
	if r.pageSize <= 0 {
		r.pageSize = feedback.DefaultPageSize
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	r.verdicts, _ = telemetry.Meter(runnerScope).Int64Counter("rb.reviewer.verdicts",
		metric.WithDescription("Automated review outcomes"),
	)
	return r, nil
}

// ErrNoReviewer is returned by Run when the runner was built without a
// Reviewer. AutoMerge does not need one.
var ErrNoReviewer = errors.New("reviewer: no reviewer configured")

// Run reviews every PENDING_LLM item. Reviewer failures are collected in
// the summary and do not stop the batch; context cancellation does.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if r.reviewer == nil {
		return nil, ErrNoReviewer
	}
	sum := &Summary{}
	cursor := ""
	for {
		page, err := r.svc.ListPending(ctx, cursor, r.pageSize)
		if err != nil {
			return sum, fmt.Errorf("list pending: %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, f := range page.Items {
			g.Go(func() error {
				return r.reviewOne(gctx, f, sum)
			})
		}
		if err := g.Wait(); err != nil {
			return sum, err
		}

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	r.log.Info("Review batch complete", "reviewed", sum.Reviewed, "approved", sum.Approved,
		"rejected", sum.Rejected, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

// reviewOne returns an error only when the batch must stop.
func (r *Runner) reviewOne(ctx context.Context, f *types.Feedback, sum *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	verdict, err := r.reviewer.Review(ctx, f)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Warn("Review failed", "id", f.ID, "error", err)
		r.count(ctx, "error")
		sum.fail(f.ID, err)
		return nil
	}

	out, err := r.svc.Process(ctx, f.ID, verdict.Action(), verdict.Notes)
	switch {
	case err == nil:
	case lostRace(err):
		r.log.Debug("Review skipped", "id", f.ID, "reason", feedback.ErrorCode(err))
		r.count(ctx, "skipped")
		sum.record(func(s *Summary) { s.Skipped++ })
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		r.count(ctx, "error")
		sum.fail(f.ID, err)
		return nil
	}

	r.count(ctx, string(verdict.Decision))
	sum.record(func(s *Summary) {
		s.Reviewed++
		if verdict.Decision == DecisionApprove {
			s.Approved++
		} else {
			s.Rejected++
		}
		s.Items = append(s.Items, SummaryItem{ID: out.ID, Status: out.Status})
	})
	return nil
}

// AutoMergeOptions narrows AutoMerge.
type AutoMergeOptions struct {
	// IncludeHumanApproved also merges HUMAN_APPROVED items.
	IncludeHumanApproved bool
}

// AutoMerge merges every item that needs no further decision: LLM_APPROVED
// items classified SAFE, and optionally HUMAN_APPROVED items. Merges run
// one at a time so that two proposals against the same target apply in
// creation order.
func (r *Runner) AutoMerge(ctx context.Context, opts AutoMergeOptions) (*Summary, error) {
	sum := &Summary{}
	if err := r.mergeAll(ctx, types.FeedbackFilter{
		Statuses:   []types.Status{types.StatusLLMApproved},
		RiskLevels: []types.RiskLevel{types.RiskSafe},
	}, sum); err != nil {
		return sum, err
	}
	if opts.IncludeHumanApproved {
		if err := r.mergeAll(ctx, types.FeedbackFilter{
			Statuses: []types.Status{types.StatusHumanApproved},
		}, sum); err != nil {
			return sum, err
		}
	}
	r.log.Info("Auto-merge complete", "merged", sum.Merged, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

func (r *Runner) mergeAll(ctx context.Context, filter types.FeedbackFilter, sum *Summary) error {
	cursor := ""
	for {
		page, err := r.svc.Search(ctx, filter, cursor, r.pageSize)
		if err != nil {
			return fmt.Errorf("search mergeable: %w", err)
		}
		for _, f := range page.Items {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.svc.Merge(ctx, f.ID)
			switch {
			case err == nil:
				sum.Merged++
				sum.Items = append(sum.Items, SummaryItem{ID: f.ID, Status: res.Feedback.Status, TargetID: res.TargetID})
			case lostRace(err):
				sum.Skipped++
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				r.log.Warn("Auto-merge failed", "id", f.ID, "code", feedback.ErrorCode(err), "error", err)
				sum.fail(f.ID, err)
			}
		}
		if !page.HasMore {
			return nil
		}
		cursor = page.NextCursor
	}
}

// lostRace reports whether another writer changed the item first.
func lostRace(err error) bool {
	return errors.Is(err, workflow.ErrInvalidTransition) ||
		errors.Is(err, storage.ErrConcurrentModification)
}

func (r *Runner) count(ctx context.Context, outcome string) {
	r.verdicts.Add(ctx, 1, metric.WithAttributes(attribute.String("rb.outcome", outcome)))
}
