// Package stub provides an in-memory tracing.Source for tests.
package stub

import (
	"context"
	"strings"
	"sync"

	"txrecon/internal/domain"
	"txrecon/internal/tracing"
)

// Source is a canned trace source keyed by network and transaction hash.
type Source struct {
	mu     sync.Mutex
	traces map[string]*domain.TraceResult
	err    error
	calls  int
}

// NewSource creates an empty stub source.
func NewSource() *Source {
	return &Source{traces: make(map[string]*domain.TraceResult)}
}

// Compile-time interface check.
var _ tracing.Source = (*Source)(nil)

// AddTrace registers a trace for network/txHash.
func (s *Source) AddTrace(network, txHash string, trace *domain.TraceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[key(network, txHash)] = trace
}

// SetError makes every subsequent fetch fail with err.
func (s *Source) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the number of FetchTrace invocations.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FetchTrace implements tracing.Source.
func (s *Source) FetchTrace(ctx context.Context, txHash, network string) (*domain.TraceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err := ctx.Err(); err != nil {
		return nil, &tracing.FetchError{Network: network, TxHash: txHash, Err: err}
	}
	if s.err != nil {
		return nil, &tracing.FetchError{Network: network, TxHash: txHash, Err: s.err}
	}
	trace, ok := s.traces[key(network, txHash)]
	if !ok {
		return nil, &tracing.FetchError{Network: network, TxHash: txHash, Err: tracing.ErrTraceNotFound}
	}
	return trace, nil
}

func key(network, txHash string) string {
	return strings.ToLower(network) + "|" + strings.ToLower(txHash)
}
