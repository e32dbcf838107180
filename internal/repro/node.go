package repro

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"txrecon/internal/domain"
	"txrecon/internal/extract"
)

// Default configuration values.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultReceiptTimeout = 2 * time.Minute
)

// ReceiptFetcher fetches transaction receipts. *ethclient.Client implements it.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// NodeSource reads the reproduction transaction from a local node, waiting
// for it to be mined when needed.
type NodeSource struct {
	fetcher      ReceiptFetcher
	txHash       common.Hash
	heads        HeadSource
	decoder      *EventDecoder
	pollInterval time.Duration
	timeout      time.Duration
	logger       *log.Logger
}

// NewNodeSource creates a source for txHash.
func NewNodeSource(fetcher ReceiptFetcher, txHash common.Hash) *NodeSource {
	return &NodeSource{
		fetcher:      fetcher,
		txHash:       txHash,
		pollInterval: DefaultPollInterval,
		timeout:      DefaultReceiptTimeout,
		logger:       log.New(os.Stderr, "[repro] ", log.LstdFlags),
	}
}

// WithHeads wakes the receipt wait on new blocks instead of only polling.
func (s *NodeSource) WithHeads(h HeadSource) *NodeSource {
	s.heads = h
	return s
}

// WithDecoder decodes custom events from the receipt.
func (s *NodeSource) WithDecoder(d *EventDecoder) *NodeSource {
	s.decoder = d
	return s
}

// WithPollInterval sets the receipt poll interval. Non-positive values keep
// the default.
func (s *NodeSource) WithPollInterval(d time.Duration) *NodeSource {
	if d > 0 {
		s.pollInterval = d
	}
	return s
}

// WithTimeout bounds the total receipt wait.
func (s *NodeSource) WithTimeout(d time.Duration) *NodeSource {
	s.timeout = d
	return s
}

// WithLogger sets the logger.
func (s *NodeSource) WithLogger(l *log.Logger) *NodeSource {
	s.logger = l
	return s
}

// Compile-time interface checks.
var (
	_ Source         = (*NodeSource)(nil)
	_ ReceiptFetcher = (*ethclient.Client)(nil)
)

// Reproduce waits for the receipt and converts it.
func (s *NodeSource) Reproduce(ctx context.Context) (*domain.Reproduction, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	receipt, err := s.waitReceipt(ctx)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, fmt.Errorf("%w: %s", ErrReverted, s.txHash.Hex())
	}

	r := &domain.Reproduction{
		TxHash: s.txHash.Hex(),
		Logs:   extract.FromReceiptLogs(receipt.Logs),
	}
	if s.decoder != nil {
		events, failed := s.decoder.Decode(receipt.Logs)
		if failed > 0 {
			s.logger.Printf("%d custom event logs could not be decoded", failed)
		}
		r.CustomEvents = events
	}
	return r, nil
}

func (s *NodeSource) waitReceipt(ctx context.Context) (*types.Receipt, error) {
	var heads <-chan Head
	if s.heads != nil {
		heads = s.heads.Heads()
	}
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.fetcher.TransactionReceipt(ctx, s.txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetch receipt %s: %w", s.txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for receipt %s: %w", s.txHash.Hex(), ctx.Err())
		case _, ok := <-heads:
			if !ok {
				s.logger.Printf("head subscription ended, polling every %s", s.pollInterval)
				heads = nil
			}
		case <-ticker.C:
		}
	}
}

// DialNode connects to a local node over HTTP (and optionally websocket for
// new heads) and returns a source for txHash with a cleanup func.
func DialNode(ctx context.Context, rpcURL, wsURL string, txHash common.Hash) (*NodeSource, func(), error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial node: %w", err)
	}
	src := NewNodeSource(client, txHash)
	cleanup := client.Close

	if wsURL != "" {
		w, err := DialHeads(ctx, wsURL)
		if err != nil {
			src.logger.Printf("head subscription unavailable, polling: %v", err)
		} else {
			src.WithHeads(w)
			cleanup = func() {
				w.Close()
				client.Close()
			}
		}
	}
	return src, cleanup, nil
}
