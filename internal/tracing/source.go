// Package tracing fetches the recorded execution trace of a historical
// transaction from a trace provider.
package tracing

import (
	"context"
	"errors"
	"fmt"

	"txrecon/internal/domain"
)

var (
	// ErrMissingCredential is returned when no access key is configured.
	ErrMissingCredential = errors.New("missing trace access key")

	// ErrTraceNotFound is returned when the provider has no trace for the hash.
	ErrTraceNotFound = errors.New("trace not found")

	// ErrInvalidTxHash is returned for a malformed transaction hash.
	ErrInvalidTxHash = errors.New("invalid transaction hash")
)

// Source fetches transaction traces.
type Source interface {
	// FetchTrace returns the trace of txHash on network. Failures are
	// returned as *FetchError.
	FetchTrace(ctx context.Context, txHash, network string) (*domain.TraceResult, error)
}

// FetchError reports a failed trace fetch: the provider was unreachable,
// rejected the credentials, or returned an unusable payload.
type FetchError struct {
	Network string
	TxHash  string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch trace %s on %s: %v", e.TxHash, e.Network, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
