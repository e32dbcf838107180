package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"txrecon/internal/domain"
	"txrecon/internal/storage"
)

// TransferStore is an in-memory implementation of storage.TransferStore.
type TransferStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransferRecord // keyed by transfer_id
}

// NewTransferStore creates a new in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{
		data: make(map[string]*domain.TransferRecord),
	}
}

// InsertBulk adds transfers atomically. Fails entire batch on any duplicate.
func (s *TransferStore) InsertBulk(_ context.Context, records []*domain.TransferRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate and check duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.TransferID == "" || r.ReportID == "" || r.Value == nil || r.Value.Sign() < 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.TransferID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.TransferID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.TransferID] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range records {
		s.data[r.TransferID] = copyTransferRecord(r)
	}
	return nil
}

// GetByReportID retrieves a report's transfers, ACTUAL before LOCAL, by position.
func (s *TransferStore) GetByReportID(_ context.Context, reportID string) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferRecord
	for _, r := range s.data {
		if r.ReportID == reportID {
			result = append(result, copyTransferRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		ri, rj := storage.OriginRank(result[i].Origin), storage.OriginRank(result[j].Origin)
		if ri != rj {
			return ri < rj
		}
		return result[i].Position < result[j].Position
	})
	return result, nil
}

func copyTransferRecord(r *domain.TransferRecord) *domain.TransferRecord {
	c := *r
	c.Value = new(big.Int).Set(r.Value)
	return &c
}

var _ storage.TransferStore = (*TransferStore)(nil)
