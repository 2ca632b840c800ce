// Package payload validates proposed feedback payloads before a feedback
// item is allowed to exist.
//
// Payloads are opaque JSON documents. Validation is structural only: the
// payload must be an object, carry the keys its target type requires, and
// give each key a value of the right shape. What the keys mean is left to
// the merge strategy for the target type.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rulebook-dev/rulebook/internal/registry"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// ErrInvalidPayload is matched by every *InvalidPayloadError.
var ErrInvalidPayload = errors.New("invalid payload")

// InvalidPayloadError reports why a payload does not conform to its
// target type.
type InvalidPayloadError struct {
	TargetType   types.TargetType
	FeedbackType types.FeedbackType
	Reason       string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid %s payload for %s: %s", e.FeedbackType, e.TargetType, e.Reason)
}

func (e *InvalidPayloadError) Is(target error) bool {
	return target == ErrInvalidPayload
}

// Validator checks a payload against one target type's structural rules.
// Validate has no side effects.
type Validator interface {
	Validate(payload json.RawMessage, ft types.FeedbackType) error
}

// Registry maps target types to payload validators.
type Registry = registry.Registry[Validator]

// NewRegistry returns an empty payload validator registry.
func NewRegistry() *Registry {
	return registry.New[Validator]("payload validator")
}

// DefaultRegistry returns a registry with validators for every built-in
// target type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for tt, fields := range builtinSchemas {
		r.MustRegister(tt, NewSchemaValidator(tt, fields))
	}
	return r
}

// Decode parses a JSON object payload into a generic map. Integers are
// kept as json.Number so their shape can be checked.
func Decode(payload json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	return doc, nil
}

// expectEOF rejects input left after the first JSON value.
func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("payload must be a single JSON object: unexpected data after the top-level value")
	}
	return nil
}

// FieldKind is the JSON shape a payload field must have.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInteger
)

func (k FieldKind) String() string {
	if k == KindInteger {
		return "integer"
	}
	return "string"
}

// Field describes one payload key.
type Field struct {
	Kind     FieldKind
	Required bool     // Must be present on CREATE; must be non-empty whenever present
	Enum     []string // Allowed string values, if restricted
	MaxLen   int      // 0 = unlimited
	Min      *int     // Lower bound for integers
}

// SchemaValidator validates payloads against a field schema.
type SchemaValidator struct {
	targetType types.TargetType
	fields     map[string]Field
}

// NewSchemaValidator builds a validator for tt from a field schema.
func NewSchemaValidator(tt types.TargetType, fields map[string]Field) *SchemaValidator {
	return &SchemaValidator{targetType: tt, fields: fields}
}

// Validate implements Validator.
func (v *SchemaValidator) Validate(payload json.RawMessage, ft types.FeedbackType) error {
	fail := func(format string, args ...any) error {
		return &InvalidPayloadError{TargetType: v.targetType, FeedbackType: ft, Reason: fmt.Sprintf(format, args...)}
	}

	if !ft.IsValid() {
		return fail("unknown feedback type")
	}

	doc, err := Decode(payload)
	if err != nil {
		return fail("%v", err)
	}

	if ft == types.FeedbackDelete {
		return v.validateDelete(doc, fail)
	}

	for _, key := range sortedKeys(doc) {
		if _, known := v.fields[key]; !known {
			return fail("unknown key %q", key)
		}
	}

	if ft == types.FeedbackCreate {
		for _, name := range sortedKeys(v.fields) {
			if v.fields[name].Required {
				if _, ok := doc[name]; !ok {
					return fail("missing required key %q", name)
				}
			}
		}
	} else if len(doc) == 0 {
		return fail("update must change at least one key")
	}

	for _, key := range sortedKeys(doc) {
		if err := v.fields[key].check(doc[key]); err != nil {
			return fail("key %q: %v", key, err)
		}
	}
	return nil
}

func (v *SchemaValidator) validateDelete(doc map[string]any, fail func(string, ...any) error) error {
	for _, key := range sortedKeys(doc) {
		if key != "reason" {
			return fail("delete payload accepts only \"reason\", got %q", key)
		}
		if _, ok := doc[key].(string); !ok {
			return fail("key \"reason\": expected string")
		}
	}
	return nil
}

func (f Field) check(value any) error {
	switch f.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %s", jsonKind(value))
		}
		if f.Required && strings.TrimSpace(s) == "" {
			return errors.New("must not be empty")
		}
		if f.MaxLen > 0 && len(s) > f.MaxLen {
			return fmt.Errorf("must be at most %d characters", f.MaxLen)
		}
		if len(f.Enum) > 0 && !containsString(f.Enum, s) {
			return fmt.Errorf("must be one of %s", strings.Join(f.Enum, ", "))
		}
	case KindInteger:
		n, ok := value.(json.Number)
		if !ok {
			return fmt.Errorf("expected integer, got %s", jsonKind(value))
		}
		i, err := n.Int64()
		if err != nil {
			return fmt.Errorf("expected integer, got %s", n)
		}
		if f.Min != nil && i < int64(*f.Min) {
			return fmt.Errorf("must be >= %d", *f.Min)
		}
	}
	return nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
