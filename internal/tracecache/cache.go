// Package tracecache persists fetched traces so a run can proceed when the
// trace provider is unavailable.
package tracecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"txrecon/internal/domain"
)

var (
	// ErrCacheMiss is returned when no usable cached trace exists.
	ErrCacheMiss = errors.New("trace cache miss")

	// ErrVersionMismatch is returned for an entry written with another schema version.
	ErrVersionMismatch = errors.New("trace cache schema version mismatch")
)

// Entry is a cached trace.
type Entry struct {
	Network   string
	TxHash    string
	FetchedAt time.Time
	Trace     *domain.TraceResult
}

// Cache loads and saves traces keyed by (network, txHash).
type Cache interface {
	// Load returns the cached trace. Returns ErrCacheMiss if absent.
	Load(ctx context.Context, network, txHash string) (*Entry, error)

	// Save stores trace, replacing any previous entry for the key.
	Save(ctx context.Context, network, txHash string, trace *domain.TraceResult) error
}

// envelope is the on-disk / in-store representation of an Entry.
type envelope struct {
	SchemaVersion int                 `json:"schemaVersion"`
	Network       string              `json:"network"`
	TxHash        string              `json:"txHash"`
	FetchedAt     time.Time           `json:"fetchedAt"`
	Trace         *domain.TraceResult `json:"trace"`
}

func encodeEntry(e *Entry) ([]byte, error) {
	if e.Trace == nil {
		return nil, errors.New("nil trace")
	}
	return json.MarshalIndent(envelope{
		SchemaVersion: domain.TraceSchemaVersion,
		Network:       e.Network,
		TxHash:        strings.ToLower(e.TxHash),
		FetchedAt:     e.FetchedAt.UTC(),
		Trace:         e.Trace,
	}, "", "  ")
}

// decodeEntry parses data and checks it belongs to (network, txHash).
// Entries for another key are reported as a miss.
func decodeEntry(data []byte, network, txHash string) (*Entry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	if env.SchemaVersion != domain.TraceSchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, env.SchemaVersion, domain.TraceSchemaVersion)
	}
	if !strings.EqualFold(env.Network, network) || !strings.EqualFold(env.TxHash, txHash) {
		return nil, ErrCacheMiss
	}
	if env.Trace == nil {
		return nil, fmt.Errorf("decode cache entry: missing trace")
	}
	return &Entry{
		Network:   env.Network,
		TxHash:    env.TxHash,
		FetchedAt: env.FetchedAt,
		Trace:     env.Trace,
	}, nil
}

// Chain consults caches in order on Load and writes to all of them on Save.
type Chain []Cache

// Compile-time interface check.
var _ Cache = Chain(nil)

// Load returns the first hit. A non-miss error from one cache does not stop
// the search; it is returned only if no later cache hits.
func (c Chain) Load(ctx context.Context, network, txHash string) (*Entry, error) {
	var firstErr error
	for _, cache := range c {
		e, err := cache.Load(ctx, network, txHash)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, ErrCacheMiss) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrCacheMiss
}

// Save writes to every cache and joins the errors.
func (c Chain) Save(ctx context.Context, network, txHash string, trace *domain.TraceResult) error {
	var errs []error
	for _, cache := range c {
		if err := cache.Save(ctx, network, txHash, trace); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
