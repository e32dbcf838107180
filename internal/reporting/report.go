package reporting

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"txrecon/internal/domain"
	"txrecon/internal/extract"
	"txrecon/internal/ledger"
	"txrecon/internal/verification"
)

// ComparisonReport is the complete result of one reconciliation run.
type ComparisonReport struct {
	Metadata   Metadata
	Actual     ActualSection
	Local      LocalSection
	Comparison verification.Comparison

	// Summaries are console diagnostics. They are not serialized and are
	// recomputed from the transfer lists on Decode.
	Summaries Summaries
}

// Metadata identifies the run.
type Metadata struct {
	ReportID    string
	GeneratedAt time.Time
	TxHash      string
	Network     string
	LocalTxHash string
}

// ActualSection holds the real transaction's side.
type ActualSection struct {
	Transfers        []domain.TransferEvent
	CallTraceExcerpt string
	Error            string // fetch error when the cache was used as fallback
	UsedCache        bool
}

// LocalSection holds the reproduction's side.
type LocalSection struct {
	Transfers    []domain.TransferEvent
	CustomEvents []domain.CustomEvent
}

// Summaries are per-side aggregates.
type Summaries struct {
	ActualByToken map[common.Address]*big.Int
	LocalByToken  map[common.Address]*big.Int
	ActualFlows   ledger.NetFlowLedger
	LocalFlows    ledger.NetFlowLedger

	// Extraction counters; zero for decoded reports.
	ActualStats extract.Stats
	LocalStats  extract.Stats
}

// Summarize aggregates both transfer lists.
func Summarize(actual, local []domain.TransferEvent) Summaries {
	return Summaries{
		ActualByToken: ledger.AggregateByToken(actual),
		LocalByToken:  ledger.AggregateByToken(local),
		ActualFlows:   ledger.AggregateNetFlows(actual),
		LocalFlows:    ledger.AggregateNetFlows(local),
	}
}
