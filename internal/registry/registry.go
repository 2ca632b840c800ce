// Package registry maps target types to the capability that handles them.
//
// Registries are populated at process start and read on every request; a
// lookup miss is a configuration gap and is reported as an
// *UnsupportedTargetTypeError rather than silently ignored.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rulebook-dev/rulebook/internal/types"
)

// ErrUnsupportedTargetType is matched by every *UnsupportedTargetTypeError.
var ErrUnsupportedTargetType = errors.New("unsupported target type")

// UnsupportedTargetTypeError is returned by Lookup on a miss. It names the
// registry and the target type that had no handler.
type UnsupportedTargetTypeError struct {
	Registry   string
	TargetType types.TargetType
}

func (e *UnsupportedTargetTypeError) Error() string {
	return fmt.Sprintf("no %s registered for target type %q", e.Registry, e.TargetType)
}

func (e *UnsupportedTargetTypeError) Is(target error) bool {
	return target == ErrUnsupportedTargetType
}

// Registry holds one handler per target type.
type Registry[T any] struct {
	name     string
	mu       sync.RWMutex
	handlers map[types.TargetType]T
}

// New creates an empty registry. The name appears in lookup errors.
func New[T any](name string) *Registry[T] {
	return &Registry[T]{
		name:     name,
		handlers: make(map[types.TargetType]T),
	}
}

// Register adds a handler. Returns an error if the target type is unknown
// or already has a handler.
func (r *Registry[T]) Register(tt types.TargetType, h T) error {
	if !tt.IsValid() {
		return fmt.Errorf("%s: cannot register invalid target type %q", r.name, tt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[tt]; exists {
		return fmt.Errorf("%s for %q already registered", r.name, tt)
	}
	r.handlers[tt] = h
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry[T]) MustRegister(tt types.TargetType, h T) {
	if err := r.Register(tt, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for tt.
func (r *Registry[T]) Lookup(tt types.TargetType) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[tt]
	if !ok {
		var zero T
		return zero, &UnsupportedTargetTypeError{Registry: r.name, TargetType: tt}
	}
	return h, nil
}

// Types returns the registered target types, sorted.
func (r *Registry[T]) Types() []types.TargetType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]types.TargetType, 0, len(r.handlers))
	for tt := range r.handlers {
		result = append(result, tt)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Count returns the number of registered handlers.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
