package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/docforge/internal/entity"
)

// MemoryRepository keeps records in process. The counter only grows, so a
// deleted ID is never handed out again.
type MemoryRepository struct {
	mu     sync.RWMutex
	docs   map[int64]*entity.Document
	nextID atomic.Int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[int64]*entity.Document)}
}

func (r *MemoryRepository) Insert(_ context.Context, doc *entity.Document) (*entity.Document, error) {
	c := cloneDocument(doc)
	c.ID = r.nextID.Add(1)
	c.PDFURL = entity.PDFURL(c.ID)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.docs[c.ID] = c
	r.mu.Unlock()
	return cloneDocument(c), nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Find(_ context.Context, id int64) (*entity.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, notFound(id)
	}
	return cloneDocument(d), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, notFound(id)
	}
	delete(r.docs, id)
	return d, nil
}

// List returns records in insertion order.
func (r *MemoryRepository) List(_ context.Context) ([]*entity.Document, error) {
	r.mu.RLock()
	out := make([]*entity.Document, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, cloneDocument(d))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
