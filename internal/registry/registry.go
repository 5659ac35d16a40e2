// Package registry keeps every captured photo of the process lifetime in
// memory for read-back. Entries are never evicted.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/observability"
)

var ErrNotFound = errors.New("photo not found")

// Descriptor is the lightweight view of a registered photo.
type Descriptor struct {
	RequestID string    `json:"request_id"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	MimeType  string    `json:"mime_type"`
	Filename  string    `json:"filename"`
	Size      int       `json:"size"`
}

type Registry struct {
	mu     sync.RWMutex
	photos map[string]*models.CapturedPhoto
	order  []string
}

func New() *Registry {
	return &Registry{photos: make(map[string]*models.CapturedPhoto)}
}

// Add registers a photo under its request id. A second photo with an
// already registered id is ignored and Add reports false.
func (r *Registry) Add(p *models.CapturedPhoto) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.photos[p.RequestID]; exists {
		return false
	}
	r.photos[p.RequestID] = p
	r.order = append(r.order, p.RequestID)
	observability.RegistryPhotos.Set(float64(len(r.order)))
	return true
}

// List returns descriptors in capture order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		p := r.photos[id]
		out = append(out, Descriptor{
			RequestID: p.RequestID,
			SessionID: p.SessionID,
			Timestamp: p.Timestamp,
			MimeType:  p.MimeType,
			Filename:  p.Filename,
			Size:      p.Size,
		})
	}
	return out
}

// Get returns the raw bytes and mime type of a photo.
func (r *Registry) Get(requestID string) ([]byte, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.photos[requestID]
	if !ok {
		return nil, "", ErrNotFound
	}
	return p.Data, p.MimeType, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
