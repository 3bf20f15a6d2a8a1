package counterpool

import (
	"log/slog"

	"github.com/sparsefacet/engine/pkg/collab"
	"github.com/sparsefacet/engine/pkg/config"
	"github.com/sparsefacet/engine/pkg/syncmap"
)

// Registry holds one Pool per facet field, lazily created on first use.
// A single Executor is shared across every field's janitor so the
// total number of background cleaning goroutines is capped
// server-wide rather than per field.
type Registry struct {
	pools    *syncmap.Map[string, *Pool]
	executor collab.Executor
	log      *slog.Logger
}

// NewRegistry builds a Registry backed by executor (nil means every
// pool clears inline). log may be nil, in which case slog.Default() is
// used.
func NewRegistry(executor collab.Executor, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		pools:    syncmap.New[string, *Pool](),
		executor: executor,
		log:      log,
	}
}

// PoolFor returns the pool for field, creating it on first access with
// the given config and maxima provider. A caller with no field-specific
// override passes the zero Config{}, which falls back to the
// process-wide default installed in pkg/config (config.Load()). Later
// calls for the same field ignore cfg/maxima and return the
// already-created pool; a maxima change for a field is expected to
// arrive as a new structure key passed to Acquire, not as a new
// Registry entry.
func (r *Registry) PoolFor(field string, cfg config.Config, maxima collab.MaximaProvider) *Pool {
	if cfg == (config.Config{}) {
		cfg = *config.Load()
	}
	return r.pools.LoadOrCreate(field, func() *Pool {
		fieldLog := r.log.With("field", field)
		factory := BuildFactory(maxima, cfg, fieldLog)
		return New(cfg.PoolSize, cfg.PoolMinEmpty, r.executor, factory, fieldLog)
	})
}

// Fields returns the number of distinct fields with a pool, for tests
// and diagnostics.
func (r *Registry) Fields() int {
	return r.pools.Len()
}
