package tracecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"txrecon/internal/domain"
	"txrecon/internal/storage"
)

// StoreCache keeps cached traces in a storage.TraceCacheStore.
type StoreCache struct {
	store storage.TraceCacheStore
	now   func() time.Time
}

// NewStoreCache creates a cache backed by store.
func NewStoreCache(store storage.TraceCacheStore) *StoreCache {
	return &StoreCache{store: store, now: time.Now}
}

// WithClock sets the clock used for FetchedAt.
func (c *StoreCache) WithClock(now func() time.Time) *StoreCache {
	c.now = now
	return c
}

// Compile-time interface check.
var _ Cache = (*StoreCache)(nil)

// Load fetches the entry from the store.
func (c *StoreCache) Load(ctx context.Context, network, txHash string) (*Entry, error) {
	rec, err := c.store.Get(ctx, network, storage.NormalizeTxHash(txHash))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get cached trace: %w", err)
	}
	return decodeEntry(rec.Payload, network, txHash)
}

// Save upserts the entry into the store.
func (c *StoreCache) Save(ctx context.Context, network, txHash string, trace *domain.TraceResult) error {
	fetchedAt := c.now()
	payload, err := encodeEntry(&Entry{
		Network:   network,
		TxHash:    txHash,
		FetchedAt: fetchedAt,
		Trace:     trace,
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	rec := &domain.TraceRecord{
		Network:   network,
		TxHash:    storage.NormalizeTxHash(txHash),
		Payload:   payload,
		FetchedAt: fetchedAt.UnixMilli(),
	}
	if err := c.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("put cached trace: %w", err)
	}
	return nil
}
