// Package mock provides in-memory implementations of the storage
// interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/storage"
)

// Object is one uploaded object.
type Object struct {
	Data        []byte
	ContentType string
}

// ObjectStore is an in-memory storage.ObjectStore with no-overwrite semantics.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	order   []string

	// Error injection: PutError fails every upload, FailBucket only uploads
	// to that bucket.
	PutError   error
	FailBucket string
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]Object)}
}

func (m *ObjectStore) PutObjectExclusive(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if m.PutError != nil && (m.FailBucket == "" || m.FailBucket == bucket) {
		return m.PutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := bucket + "/" + key
	if _, ok := m.objects[path]; ok {
		return storage.ErrObjectExists
	}
	m.objects[path] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	m.order = append(m.order, path)
	return nil
}

func (m *ObjectStore) ObjectURL(bucket, key string) string {
	return "http://objects.test/" + bucket + "/" + key
}

// Get returns the object stored at bucket/key.
func (m *ObjectStore) Get(bucket, key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket+"/"+key]
	return obj, ok
}

// Paths returns "bucket/key" of every object in upload order.
func (m *ObjectStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// RecordStore is an in-memory storage.RecordStore.
type RecordStore struct {
	mu         sync.RWMutex
	photos     []models.StoredPhotoRecord
	embeddings []models.FaceEmbeddingRecord

	PhotoError     error
	EmbeddingError error
	// CropRecordError fails only face_crop record writes.
	CropRecordError error
}

func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

func (m *RecordStore) InsertPhotoRecord(ctx context.Context, rec *models.StoredPhotoRecord) error {
	if m.PhotoError != nil {
		return m.PhotoError
	}
	if m.CropRecordError != nil && rec.Status == models.PhotoStatusFaceCrop {
		return m.CropRecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = uuid.New()
	m.photos = append(m.photos, *rec)
	return nil
}

func (m *RecordStore) InsertEmbedding(ctx context.Context, rec *models.FaceEmbeddingRecord) error {
	if m.EmbeddingError != nil {
		return m.EmbeddingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = uuid.New()
	m.embeddings = append(m.embeddings, *rec)
	return nil
}

// Photos returns the photo records with the given status, in write order.
func (m *RecordStore) Photos(status models.PhotoStatus) []models.StoredPhotoRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.StoredPhotoRecord
	for _, p := range m.photos {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// Embeddings returns every embedding record in write order.
func (m *RecordStore) Embeddings() []models.FaceEmbeddingRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.FaceEmbeddingRecord(nil), m.embeddings...)
}
