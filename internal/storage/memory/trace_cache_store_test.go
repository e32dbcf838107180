package memory

import (
	"context"
	"errors"
	"testing"

	"txrecon/internal/domain"
	"txrecon/internal/storage"
)

func TestTraceCacheStore_PutAndGet(t *testing.T) {
	store := NewTraceCacheStore()
	ctx := context.Background()

	rec := &domain.TraceRecord{
		Network:   "mainnet",
		TxHash:    "0xABCDEF",
		Payload:   []byte(`{"schemaVersion":1}`),
		FetchedAt: 1704067200000,
	}
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "mainnet", "0xabcdef")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.TxHash != "0xabcdef" {
		t.Errorf("TxHash not normalized: got %s", got.TxHash)
	}
	if string(got.Payload) != `{"schemaVersion":1}` {
		t.Errorf("Payload mismatch: got %s", got.Payload)
	}
}

func TestTraceCacheStore_PutReplaces(t *testing.T) {
	store := NewTraceCacheStore()
	ctx := context.Background()

	_ = store.Put(ctx, &domain.TraceRecord{Network: "mainnet", TxHash: "0x1", Payload: []byte("old"), FetchedAt: 1})
	if err := store.Put(ctx, &domain.TraceRecord{Network: "mainnet", TxHash: "0x1", Payload: []byte("new"), FetchedAt: 2}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := store.Get(ctx, "mainnet", "0x1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Payload) != "new" || got.FetchedAt != 2 {
		t.Errorf("expected replaced record, got %s at %d", got.Payload, got.FetchedAt)
	}
}

func TestTraceCacheStore_NetworkIsPartOfKey(t *testing.T) {
	store := NewTraceCacheStore()
	ctx := context.Background()

	_ = store.Put(ctx, &domain.TraceRecord{Network: "mainnet", TxHash: "0x1", Payload: []byte("x")})

	_, err := store.Get(ctx, "arbitrum", "0x1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTraceCacheStore_InvalidInput(t *testing.T) {
	store := NewTraceCacheStore()
	ctx := context.Background()

	if err := store.Put(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Put(ctx, &domain.TraceRecord{Network: "mainnet"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty hash, got %v", err)
	}
}

func TestTraceCacheStore_ReturnsCopy(t *testing.T) {
	store := NewTraceCacheStore()
	ctx := context.Background()

	payload := []byte("abc")
	_ = store.Put(ctx, &domain.TraceRecord{Network: "mainnet", TxHash: "0x1", Payload: payload})
	payload[0] = 'z'

	got, _ := store.Get(ctx, "mainnet", "0x1")
	if string(got.Payload) != "abc" {
		t.Error("Store should keep a copy of the payload")
	}
}
