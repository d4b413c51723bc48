package database

import (
	"context"
	"sync"

	"github.com/yike5460/commprobe/internal/model"
)

// MemoryStore keeps crawl state in process memory. It serves one-shot
// runs that opt out of the on-disk database; nothing survives the
// process.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]model.ContentRecord
	batches []*model.Batch
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.ContentRecord)}
}

// LoadRecord returns the record stored under runKey, or an empty record.
func (m *MemoryStore) LoadRecord(_ context.Context, runKey string) (model.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[runKey]; ok {
		return rec.Clone(), nil
	}
	return model.NewContentRecord(), nil
}

// SaveRecord stores the record under runKey.
func (m *MemoryStore) SaveRecord(_ context.Context, runKey string, rec model.ContentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[runKey] = rec.Clone()
	return nil
}

// SaveBatch appends the batch to the in-memory history.
func (m *MemoryStore) SaveBatch(_ context.Context, batch *model.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return nil
}

// Batches returns the stored batches in insertion order.
func (m *MemoryStore) Batches() []*model.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Batch(nil), m.batches...)
}
