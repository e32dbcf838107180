package reporting

import (
	"time"

	"txrecon/internal/domain"
	"txrecon/internal/extract"
	"txrecon/internal/idhash"
	"txrecon/internal/verification"
)

// ExcerptNodes is the number of call-tree nodes kept in a report.
const ExcerptNodes = 5

// AssembleInput carries everything a report is built from.
type AssembleInput struct {
	TxHash      string
	Network     string
	LocalTxHash string

	Trace      *domain.TraceResult
	TraceError string
	UsedCache  bool

	ActualTransfers []domain.TransferEvent
	LocalTransfers  []domain.TransferEvent
	ActualStats     extract.Stats
	LocalStats      extract.Stats
	CustomEvents    []domain.CustomEvent

	Comparison verification.Comparison
}

// Assembler builds ComparisonReports.
type Assembler struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewAssembler creates an Assembler using the UTC wall clock.
func NewAssembler() *Assembler {
	return &Assembler{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

// Assemble composes the report. The report ID is derived from the run's
// identity and generation time.
func (a *Assembler) Assemble(in AssembleInput) *ComparisonReport {
	generatedAt := a.now()

	var excerpt string
	if in.Trace != nil {
		excerpt = CallTraceExcerpt(in.Trace.Trace, ExcerptNodes)
	}

	summaries := Summarize(in.ActualTransfers, in.LocalTransfers)
	summaries.ActualStats = in.ActualStats
	summaries.LocalStats = in.LocalStats

	return &ComparisonReport{
		Metadata: Metadata{
			ReportID:    idhash.ComputeReportID(in.Network, in.TxHash, in.LocalTxHash, generatedAt.UnixMilli()),
			GeneratedAt: generatedAt,
			TxHash:      in.TxHash,
			Network:     in.Network,
			LocalTxHash: in.LocalTxHash,
		},
		Actual: ActualSection{
			Transfers:        in.ActualTransfers,
			CallTraceExcerpt: excerpt,
			Error:            in.TraceError,
			UsedCache:        in.UsedCache,
		},
		Local: LocalSection{
			Transfers:    in.LocalTransfers,
			CustomEvents: in.CustomEvents,
		},
		Comparison: in.Comparison,
		Summaries:  summaries,
	}
}

// Assemble builds a report with the default Assembler.
func Assemble(in AssembleInput) *ComparisonReport {
	return NewAssembler().Assemble(in)
}
