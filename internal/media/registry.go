// Package media holds generated and uploaded binaries in memory behind opaque
// "blob:<uuid>" references. Entries are reference counted and dropped when the
// last holder releases them.
package media

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"studio/internal/domain"
)

const refPrefix = "blob:"

type entry struct {
	data []byte
	mime string
	refs int
}

// Registry maps references to content.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// Create stores data and returns a handle holding the first reference.
func (r *Registry) Create(data []byte, mime string) *Handle {
	ref := refPrefix + uuid.NewString()
	r.mu.Lock()
	r.entries[ref] = &entry{data: data, mime: mime, refs: 1}
	r.mu.Unlock()
	return &Handle{reg: r, ref: ref}
}

// Open returns the content behind ref.
func (r *Registry) Open(ref string) ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[strings.TrimSpace(ref)]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return e.data, e.mime, nil
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) retain(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[ref]
	if !ok {
		return false
	}
	e.refs++
	return true
}

func (r *Registry) release(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[ref]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(r.entries, ref)
	}
}

// Handle is one owner's claim on a registry entry. Release is idempotent per
// handle; each Retain yields a new handle that must be released separately.
type Handle struct {
	reg  *Registry
	ref  string
	once sync.Once
}

// Ref returns the content reference.
func (h *Handle) Ref() string {
	if h == nil {
		return ""
	}
	return h.ref
}

// Retain adds a reference and returns the new owner's handle. It returns nil
// when the entry is already gone.
func (h *Handle) Retain() *Handle {
	if h == nil || !h.reg.retain(h.ref) {
		return nil
	}
	return &Handle{reg: h.reg, ref: h.ref}
}

// Release drops this handle's reference.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() { h.reg.release(h.ref) })
}

// ReleaseAll releases every handle in hs.
func ReleaseAll(hs []*Handle) {
	for _, h := range hs {
		h.Release()
	}
}
