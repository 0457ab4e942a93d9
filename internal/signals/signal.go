// Package signals holds the named computations applied to raw text:
// embedding providers and the sentence splitter.
package signals

import (
	"context"
	"fmt"
	"sync"

	pkgerrors "github.com/yungbote/conceptlab-backend/internal/pkg/errors"
)

// Signal is a named computation over raw data.
type Signal interface {
	Name() string
}

// TextEmbedding is a signal that maps a batch of texts to fixed-size
// vectors, one per input in the same order.
type TextEmbedding interface {
	Signal
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Registry resolves signals by name. It is built once at startup and passed
// by reference wherever signals are needed.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Signal
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]Signal{}}
}

// Register adds a signal, rejecting duplicate names.
func (r *Registry) Register(s Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[s.Name()]; ok {
		return fmt.Errorf("%w: signal %q", pkgerrors.ErrAlreadyExists, s.Name())
	}
	r.byName[s.Name()] = s
	return nil
}

// Signal looks up a signal by name.
func (r *Registry) Signal(name string) (Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: signal %q", pkgerrors.ErrNotFound, name)
	}
	return s, nil
}
