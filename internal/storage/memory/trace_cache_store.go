package memory

import (
	"bytes"
	"context"
	"sync"

	"txrecon/internal/domain"
	"txrecon/internal/storage"
)

// TraceCacheStore is an in-memory implementation of storage.TraceCacheStore.
type TraceCacheStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TraceRecord // keyed by network|tx_hash
}

// NewTraceCacheStore creates a new in-memory trace cache store.
func NewTraceCacheStore() *TraceCacheStore {
	return &TraceCacheStore{
		data: make(map[string]*domain.TraceRecord),
	}
}

func traceKey(network, txHash string) string {
	return network + "|" + storage.NormalizeTxHash(txHash)
}

// Put stores a trace, replacing any existing record.
func (s *TraceCacheStore) Put(_ context.Context, r *domain.TraceRecord) error {
	if r == nil || r.Network == "" || r.TxHash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[traceKey(r.Network, r.TxHash)] = copyTraceRecord(r)
	return nil
}

// Get retrieves a trace. Returns ErrNotFound if not exists.
func (s *TraceCacheStore) Get(_ context.Context, network, txHash string) (*domain.TraceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[traceKey(network, txHash)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyTraceRecord(r), nil
}

func copyTraceRecord(r *domain.TraceRecord) *domain.TraceRecord {
	c := *r
	c.TxHash = storage.NormalizeTxHash(r.TxHash)
	c.Payload = bytes.Clone(r.Payload)
	return &c
}

var _ storage.TraceCacheStore = (*TraceCacheStore)(nil)
