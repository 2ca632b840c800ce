package payload

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rulebook-dev/rulebook/internal/registry"
	"github.com/rulebook-dev/rulebook/internal/types"
)

func TestDefaultRegistryCoversAllTargetTypes(t *testing.T) {
	r := DefaultRegistry()
	for _, tt := range types.AllTargetTypes() {
		if _, err := r.Lookup(tt); err != nil {
			t.Errorf("no validator for %s: %v", tt, err)
		}
	}
}

func TestLookupUnregistered(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup(types.TargetCodingRule)
	if !errors.Is(err, registry.ErrUnsupportedTargetType) {
		t.Fatalf("Lookup error = %v, want ErrUnsupportedTargetType", err)
	}
}

func TestValidate(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name       string
		target     types.TargetType
		ft         types.FeedbackType
		payload    string
		wantReason string // empty = valid
	}{
		{
			name:    "coding rule create",
			target:  types.TargetCodingRule,
			ft:      types.FeedbackCreate,
			payload: `{"code":"ARCH-001","name":"No cycles","description":"Layers must not import upward","severity":"ERROR"}`,
		},
		{
			name:       "coding rule create missing key",
			target:     types.TargetCodingRule,
			ft:         types.FeedbackCreate,
			payload:    `{"code":"ARCH-001","name":"No cycles","severity":"ERROR"}`,
			wantReason: `missing required key "description"`,
		},
		{
			name:       "coding rule bad severity",
			target:     types.TargetCodingRule,
			ft:         types.FeedbackCreate,
			payload:    `{"code":"A-1","name":"n","description":"d","severity":"FATAL"}`,
			wantReason: `key "severity": must be one of INFO, WARNING, ERROR`,
		},
		{
			name:       "unknown key",
			target:     types.TargetClassTemplate,
			ft:         types.FeedbackUpdate,
			payload:    `{"body":"x"}`,
			wantReason: `unknown key "body"`,
		},
		{
			name:    "template partial update",
			target:  types.TargetClassTemplate,
			ft:      types.FeedbackUpdate,
			payload: `{"content":"class {{.Name}}Service {}"}`,
		},
		{
			name:       "empty update",
			target:     types.TargetClassTemplate,
			ft:         types.FeedbackUpdate,
			payload:    `{}`,
			wantReason: "update must change at least one key",
		},
		{
			name:       "update blanks required field",
			target:     types.TargetClassTemplate,
			ft:         types.FeedbackUpdate,
			payload:    `{"name":"   "}`,
			wantReason: `key "name": must not be empty`,
		},
		{
			name:       "wrong value type",
			target:     types.TargetRuleExample,
			ft:         types.FeedbackUpdate,
			payload:    `{"snippet":42}`,
			wantReason: `key "snippet": expected string, got number`,
		},
		{
			name:    "checklist position",
			target:  types.TargetChecklistItem,
			ft:      types.FeedbackCreate,
			payload: `{"checklist":"pr-review","title":"Tests added","position":3}`,
		},
		{
			name:       "checklist negative position",
			target:     types.TargetChecklistItem,
			ft:         types.FeedbackUpdate,
			payload:    `{"position":-1}`,
			wantReason: `key "position": must be >= 0`,
		},
		{
			name:       "checklist fractional position",
			target:     types.TargetChecklistItem,
			ft:         types.FeedbackUpdate,
			payload:    `{"position":1.5}`,
			wantReason: `key "position": expected integer, got 1.5`,
		},
		{
			name:       "not an object",
			target:     types.TargetCodingRule,
			ft:         types.FeedbackCreate,
			payload:    `["a"]`,
			wantReason: "payload must be a JSON object",
		},
		{
			name:       "trailing data after object",
			target:     types.TargetCodingRule,
			ft:         types.FeedbackCreate,
			payload:    `{"code":"A-1","name":"n","description":"d","severity":"INFO"} trailing-garbage{`,
			wantReason: "unexpected data after the top-level value",
		},
		{
			name:       "two objects",
			target:     types.TargetClassTemplate,
			ft:         types.FeedbackUpdate,
			payload:    `{"content":"a"}{"content":"b"}`,
			wantReason: "unexpected data after the top-level value",
		},
		{
			name:    "delete empty",
			target:  types.TargetCodingRule,
			ft:      types.FeedbackDelete,
			payload: ``,
		},
		{
			name:    "delete with reason",
			target:  types.TargetRuleExample,
			ft:      types.FeedbackDelete,
			payload: `{"reason":"duplicate"}`,
		},
		{
			name:       "delete with fields",
			target:     types.TargetRuleExample,
			ft:         types.FeedbackDelete,
			payload:    `{"snippet":"x"}`,
			wantReason: `delete payload accepts only "reason"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := r.Lookup(tt.target)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			err = v.Validate(json.RawMessage(tt.payload), tt.ft)

			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}

			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("Validate() error = %v, want ErrInvalidPayload", err)
			}
			var pe *InvalidPayloadError
			if !errors.As(err, &pe) {
				t.Fatalf("error is %T", err)
			}
			if pe.TargetType != tt.target || pe.FeedbackType != tt.ft {
				t.Errorf("error names %s/%s, want %s/%s", pe.TargetType, pe.FeedbackType, tt.target, tt.ft)
			}
			if !strings.Contains(pe.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want it to contain %q", pe.Reason, tt.wantReason)
			}
		})
	}
}
