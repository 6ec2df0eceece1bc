// Package asset tracks in-memory image buffers as release-once handles.
// Each handle is owned by exactly one image record; the registry keeps
// live and double-release counts so leaks and double frees are observable.
package asset

import (
	"sync"

	"github.com/rs/zerolog"
)

type Handle interface {
	// Bytes returns the underlying data, or nil after Release.
	Bytes() []byte
	Len() int
	Release()
}

type Registry struct {
	mu             sync.Mutex
	log            zerolog.Logger
	created        int
	live           int
	doubleReleases int
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{log: log.With().Str("component", "asset-registry").Logger()}
}

// New wraps data in a tracked handle. The registry never copies data; the
// caller hands over ownership.
func (r *Registry) New(data []byte) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
	r.live++
	return &buffer{reg: r, data: data}
}

// Live returns the number of handles created but not yet released.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *Registry) Created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

// DoubleReleases counts Release calls on already-released handles. Any
// non-zero value is a defect.
func (r *Registry) DoubleReleases() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doubleReleases
}

func (r *Registry) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live--
}

func (r *Registry) doubleRelease() {
	r.mu.Lock()
	r.doubleReleases++
	n := r.doubleReleases
	r.mu.Unlock()
	r.log.Error().Int("double_releases", n).Msg("handle released twice")
}

type buffer struct {
	reg      *Registry
	mu       sync.Mutex
	data     []byte
	released bool
}

func (b *buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

func (b *buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func (b *buffer) Release() {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		b.reg.doubleRelease()
		return
	}
	b.released = true
	b.data = nil
	b.mu.Unlock()
	b.reg.release()
}
