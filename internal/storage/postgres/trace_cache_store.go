package postgres

import (
	"context"
	"fmt"

	"txrecon/internal/domain"
	"txrecon/internal/storage"
)

// TraceCacheStore implements storage.TraceCacheStore using PostgreSQL.
type TraceCacheStore struct {
	pool *Pool
}

// NewTraceCacheStore creates a new TraceCacheStore.
func NewTraceCacheStore(pool *Pool) *TraceCacheStore {
	return &TraceCacheStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TraceCacheStore = (*TraceCacheStore)(nil)

// Put upserts a trace for (network, tx_hash).
func (s *TraceCacheStore) Put(ctx context.Context, r *domain.TraceRecord) error {
	if r == nil || r.Network == "" || r.TxHash == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trace_cache (network, tx_hash, payload, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network, tx_hash)
		DO UPDATE SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at
	`

	_, err := s.pool.Exec(ctx, query,
		r.Network,
		storage.NormalizeTxHash(r.TxHash),
		r.Payload,
		r.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("put trace: %w", err)
	}
	return nil
}

// Get retrieves a trace. Returns ErrNotFound if not exists.
func (s *TraceCacheStore) Get(ctx context.Context, network, txHash string) (*domain.TraceRecord, error) {
	query := `
		SELECT network, tx_hash, payload, fetched_at
		FROM trace_cache
		WHERE network = $1 AND tx_hash = $2
	`

	var r domain.TraceRecord
	err := s.pool.QueryRow(ctx, query, network, storage.NormalizeTxHash(txHash)).Scan(
		&r.Network,
		&r.TxHash,
		&r.Payload,
		&r.FetchedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trace: %w", err)
	}
	return &r, nil
}
