package strategy

import (
	"sort"
	"sync"

	"github.com/yanun0323/errors"

	"tradeexec/internal/marketdata"
	"tradeexec/internal/recorder"
	"tradeexec/internal/storage"
	"tradeexec/pkg/exception"
)

// BuilderContext carries the collaborators a strategy may need at construction.
type BuilderContext struct {
	History   marketdata.History
	Snapshots storage.SnapshotStore
	Journal   *recorder.Journal
}

// Builder constructs a strategy from raw JSON params.
type Builder func(params []byte, bc BuilderContext) (Strategy, error)

// Registry maps strategy ids to builders. It is populated at startup and
// handed to whatever composes the engine.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder under id.
func (r *Registry) Register(id string, b Builder) error {
	if id == "" || b == nil {
		return errors.Wrap(exception.ErrInvalidArgument, "strategy id and builder are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builders[id]; ok {
		return errors.Wrapf(exception.ErrDuplicateStrategy, "%s", id)
	}
	r.builders[id] = b
	return nil
}

// Build constructs the strategy registered under id.
func (r *Registry) Build(id string, params []byte, bc BuilderContext) (Strategy, error) {
	r.mu.RLock()
	b, ok := r.builders[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(exception.ErrUnknownStrategy, "%s", id)
	}
	s, err := b(params, bc)
	if err != nil {
		return nil, errors.Wrapf(err, "build strategy %s", id)
	}
	return s, nil
}

// IDs returns every registered id in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.builders))
	for id := range r.builders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
