// Package registry maps profile names to their shared connection pools.
package registry

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/pgstash/pgstash/pkg/pool"
)

// Registry hands out one pool per name, creating it on first lookup.
// Lookups are safe for concurrent use; the pools themselves still expect a
// single logical owner at a time (see pool.Pool).
type Registry struct {
	pools *xsync.Map[string, *pool.Pool]
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		pools: xsync.NewMap[string, *pool.Pool](),
	}
}

// Lookup returns the pool registered under name, calling build to create it
// on first lookup. Every lookup for the same name returns the same pool;
// when two lookups race on a fresh name, one build result is kept and the
// other is discarded unused.
func (r *Registry) Lookup(name string, build func() *pool.Pool) *pool.Pool {
	if p, ok := r.pools.Load(name); ok {
		return p
	}
	p, _ := r.pools.LoadOrStore(name, build())
	return p
}

// Len reports the number of registered pools.
func (r *Registry) Len() int {
	return r.pools.Size()
}
