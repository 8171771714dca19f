// Package handle issues revocable references to in-memory image data for
// display, and tracks which of them are still live.
package handle

import (
	"sync"

	"github.com/google/uuid"
)

const scheme = "blob:zclover/"

// Handle is an opaque reference to registered data. The zero value refers
// to nothing.
type Handle string

// IsZero reports whether h refers to nothing.
func (h Handle) IsZero() bool { return h == "" }

type blob struct {
	data []byte
	mime string
}

// Registry owns the data behind every live handle.
type Registry struct {
	mu   sync.Mutex
	live map[Handle]blob
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{live: make(map[Handle]blob)}
}

// Create registers data and returns a fresh handle for it.
func (r *Registry) Create(data []byte, mime string) Handle {
	h := Handle(scheme + uuid.NewString())
	r.mu.Lock()
	r.live[h] = blob{data: data, mime: mime}
	r.mu.Unlock()
	return h
}

// Revoke frees the data behind h. Revoking an unknown or already revoked
// handle is a no-op.
func (r *Registry) Revoke(h Handle) {
	if h.IsZero() {
		return
	}
	r.mu.Lock()
	delete(r.live, h)
	r.mu.Unlock()
}

// Resolve returns the data and MIME type behind h.
func (r *Registry) Resolve(h Handle) ([]byte, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.live[h]
	return b.data, b.mime, ok
}

// Live returns the number of unrevoked handles.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Slot holds at most one handle. Replacing or releasing the slot revokes
// the handle it held.
type Slot struct {
	reg *Registry

	mu  sync.Mutex
	cur Handle
}

// NewSlot creates an empty slot backed by reg.
func NewSlot(reg *Registry) *Slot {
	return &Slot{reg: reg}
}

// Replace stores h and revokes the previous handle, if any. Replacing a
// handle with itself keeps it live.
func (s *Slot) Replace(h Handle) {
	s.mu.Lock()
	prev := s.cur
	s.cur = h
	s.mu.Unlock()

	if prev != h {
		s.reg.Revoke(prev)
	}
}

// Release revokes the held handle and empties the slot.
func (s *Slot) Release() {
	s.Replace("")
}

// Current returns the held handle.
func (s *Slot) Current() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Registry returns the registry backing the slot.
func (s *Slot) Registry() *Registry { return s.reg }
