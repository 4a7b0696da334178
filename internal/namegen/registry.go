package namegen

import (
	"fmt"
	"sync"
)

// Registry assigns unique node names from a Generator, retrying on
// collision. It exists because Generator alone can produce the same name
// twice; Registry is the layer that actually guarantees uniqueness within a
// running daemon.
type Registry struct {
	mu    sync.Mutex
	gen   *Generator
	taken map[string]bool
}

// NewRegistry wraps gen with collision tracking.
func NewRegistry(gen *Generator) *Registry {
	return &Registry{gen: gen, taken: make(map[string]bool)}
}

// maxAttempts bounds the retry loop so a near-exhausted word list fails
// loudly instead of spinning forever.
const maxAttempts = 100

// Assign returns a name not currently held by any other node.
func (r *Registry) Assign() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < maxAttempts; i++ {
		name := r.gen.Next()
		if !r.taken[name] {
			r.taken[name] = true
			return name, nil
		}
	}
	return "", fmt.Errorf("namegen: no unique name found after %d attempts", maxAttempts)
}

// Release frees name for reuse, e.g. when its daemon node is torn down.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.taken, name)
}
