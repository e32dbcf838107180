package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"txrecon/internal/domain"
	"txrecon/internal/storage"
)

// ReportStore is an in-memory implementation of storage.ReportStore.
type ReportStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ReportRecord // keyed by report_id
	now  func() time.Time
}

// NewReportStore creates a new in-memory report store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		data: make(map[string]*domain.ReportRecord),
		now:  time.Now,
	}
}

// Insert adds a new report. Returns ErrDuplicateKey if report_id exists.
func (s *ReportStore) Insert(_ context.Context, r *domain.ReportRecord) error {
	if r == nil || r.ReportID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ReportID]; exists {
		return storage.ErrDuplicateKey
	}

	c := copyReportRecord(r)
	c.CreatedAt = s.now().UnixMilli()
	s.data[r.ReportID] = c
	return nil
}

// GetByID retrieves a report by ID. Returns ErrNotFound if not exists.
func (s *ReportStore) GetByID(_ context.Context, reportID string) (*domain.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[reportID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyReportRecord(r), nil
}

// GetByTxHash retrieves all reports for a transaction, ordered by generated_at ASC.
func (s *ReportStore) GetByTxHash(_ context.Context, network, txHash string) ([]*domain.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txHash = storage.NormalizeTxHash(txHash)
	var result []*domain.ReportRecord
	for _, r := range s.data {
		if r.Network == network && r.TxHash == txHash {
			result = append(result, copyReportRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].GeneratedAt != result[j].GeneratedAt {
			return result[i].GeneratedAt < result[j].GeneratedAt
		}
		return result[i].ReportID < result[j].ReportID
	})
	return result, nil
}

func copyReportRecord(r *domain.ReportRecord) *domain.ReportRecord {
	c := *r
	c.TxHash = storage.NormalizeTxHash(r.TxHash)
	c.LocalTxHash = storage.NormalizeTxHash(r.LocalTxHash)
	c.Payload = bytes.Clone(r.Payload)
	return &c
}

var _ storage.ReportStore = (*ReportStore)(nil)
