package reviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/rulebook-dev/rulebook/internal/telemetry"
	"github.com/rulebook-dev/rulebook/internal/types"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-haiku-4-5"

	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	maxReplyTokens        = 512
	aiScope               = "github.com/rulebook-dev/rulebook/ai"
)

// ErrAPIKeyRequired is returned when no API key is available.
var ErrAPIKeyRequired = errors.New("API key required")

// AnthropicOptions configures an AnthropicReviewer.
type AnthropicOptions struct {
	APIKey         string
	Model          string
	MaxRetries     int           // Retries after the first attempt; < 0 means none
	InitialBackoff time.Duration // First retry delay, doubled per attempt
	BaseURL        string        // Overrides the API endpoint
}

// AnthropicReviewer asks a Claude model to judge each proposal.
type AnthropicReviewer struct {
	client         anthropic.Client
	model          anthropic.Model
	prompt         *template.Template
	maxRetries     int
	initialBackoff time.Duration
}

var _ Reviewer = (*AnthropicReviewer)(nil)

// NewAnthropic creates a reviewer backed by the Anthropic Messages API.
func NewAnthropic(opts AnthropicOptions) (*AnthropicReviewer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or reviewer.api-key", ErrAPIKeyRequired)
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}

	// Retries are ours, so the SDK's own are off.
	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	tmpl, err := template.New("review").Parse(reviewPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse review template: %w", err)
	}

	aiMetricsOnce.Do(initAIMetrics)

	return &AnthropicReviewer{
		client:         anthropic.NewClient(clientOpts...),
		model:          anthropic.Model(opts.Model),
		prompt:         tmpl,
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
	}, nil
}

// Model returns the configured model name.
func (r *AnthropicReviewer) Model() string {
	return string(r.model)
}

// Review implements Reviewer.
func (r *AnthropicReviewer) Review(ctx context.Context, f *types.Feedback) (Verdict, error) {
	prompt, err := r.renderPrompt(f)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to render prompt: %w", err)
	}
	reply, err := r.callWithRetry(ctx, prompt)
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(reply)
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter(aiScope)
	aiMetrics.inputTokens, _ = m.Int64Counter("rb.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("rb.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("rb.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

func (r *AnthropicReviewer) callWithRetry(ctx context.Context, prompt string) (string, error) {
	tracer := telemetry.Tracer(aiScope)
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("rb.ai.model", string(r.model)),
		attribute.String("rb.ai.operation", "review"),
	)

	params := anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: maxReplyTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initialBackoff
	bo.MaxElapsedTime = 0 // bounded by retry count

	attempts := 0
	var reply string
	err := backoff.Retry(func() error {
		attempts++
		t0 := time.Now()
		message, err := r.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !isRetryable(err) {
				return backoff.Permanent(fmt.Errorf("non-retryable error: %w", err))
			}
			return err
		}

		// Record token usage and latency.
		modelAttr := attribute.String("rb.ai.model", string(r.model))
		aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
		aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
		aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
		span.SetAttributes(
			attribute.Int64("rb.ai.input_tokens", message.Usage.InputTokens),
			attribute.Int64("rb.ai.output_tokens", message.Usage.OutputTokens),
		)

		for _, block := range message.Content {
			if block.Type == "text" {
				reply = block.Text
				return nil
			}
		}
		return backoff.Permanent(fmt.Errorf("unexpected response format: no text block"))
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.maxRetries)), ctx))

	span.SetAttributes(attribute.Int("rb.ai.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if attempts > r.maxRetries && isRetryable(err) {
			return "", fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		return "", err
	}
	return reply, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		statusCode := apiErr.StatusCode
		return statusCode == 429 || statusCode >= 500
	}

	return false
}

type promptData struct {
	TargetType   types.TargetType
	TargetID     string
	FeedbackType types.FeedbackType
	RiskLevel    types.RiskLevel
	Payload      string
}

func (r *AnthropicReviewer) renderPrompt(f *types.Feedback) (string, error) {
	payload := string(f.Payload)
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, f.Payload, "", "  "); err == nil {
		payload = pretty.String()
	}

	var buf bytes.Buffer
	err := r.prompt.Execute(&buf, promptData{
		TargetType:   f.TargetType,
		TargetID:     f.TargetID,
		FeedbackType: f.FeedbackType,
		RiskLevel:    f.RiskLevel,
		Payload:      payload,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

const systemPrompt = `You review proposed changes to a team's engineering governance metadata: coding rules, rule examples, class templates and review checklists. Approve proposals that are well-formed, specific and consistent with good engineering practice. Reject proposals that are vague, contradictory, duplicated, unsafe or malformed, and say why in one or two sentences.`

const reviewPromptTemplate = `Review this proposal.

**Target:** {{.TargetType}}{{if .TargetID}} {{.TargetID}}{{end}}
**Change:** {{.FeedbackType}}
**Risk level:** {{.RiskLevel}}

{{if .Payload}}**Payload:**
` + "```json" + `
{{.Payload}}
` + "```" + `
{{end}}
Reply with a single JSON object and nothing else:

{"decision": "approve" | "reject", "notes": "<reason, required when rejecting>"}`
