// Package pipeline runs a reconciliation end to end: trace, reproduction,
// extraction, comparison, report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"txrecon/internal/domain"
	"txrecon/internal/extract"
	"txrecon/internal/observability"
	"txrecon/internal/registry"
	"txrecon/internal/reporting"
	"txrecon/internal/repro"
	"txrecon/internal/sink"
	"txrecon/internal/storage"
	"txrecon/internal/tracecache"
	"txrecon/internal/tracing"
	"txrecon/internal/verification"
)

var (
	// ErrNoTrace is returned when the trace can be neither fetched nor loaded from the cache.
	ErrNoTrace = errors.New("no trace available")

	// ErrNoTxHash is returned when no target transaction is configured.
	ErrNoTxHash = errors.New("no target transaction hash")
)

// cachedSuffix marks a fetch error that was recovered from the cache.
const cachedSuffix = " (used cached copy)"

// Params identifies the run.
type Params struct {
	TxHash       string // empty: Expectations.TxHash
	Network      string // empty: Expectations.Network
	ForceRefresh bool
	TraceTimeout time.Duration
	OutputDir    string // empty: the report file is not written
}

// Result is the outcome of a run. PersistErr joins every persistence
// failure; the report is complete even when it is set.
type Result struct {
	Report     *reporting.ComparisonReport
	ReportPath string
	Registry   *registry.Registry
	PersistErr error
}

// Reconciler wires the collaborators of a run.
type Reconciler struct {
	params       Params
	expectations domain.Expectations
	trace        tracing.Source
	repro        repro.Source

	cache       tracecache.Cache
	registry    *registry.Registry
	reports     storage.ReportStore
	transfers   storage.TransferStore
	sink        sink.Sink
	metrics     *observability.Metrics
	metricsFile string

	stdout io.Writer
	logger *log.Logger
	clock  func() time.Time
}

// NewReconciler creates a reconciler. Optional collaborators are set with
// the With* methods.
func NewReconciler(params Params, exp domain.Expectations, trace tracing.Source, src repro.Source) *Reconciler {
	return &Reconciler{
		params:       params,
		expectations: exp,
		trace:        trace,
		repro:        src,
		registry:     registry.Default(),
		stdout:       os.Stdout,
		logger:       log.New(os.Stderr, "[reconcile] ", log.LstdFlags),
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// WithCache sets the trace cache.
func (r *Reconciler) WithCache(c tracecache.Cache) *Reconciler {
	r.cache = c
	return r
}

// WithRegistry replaces the token registry.
func (r *Reconciler) WithRegistry(reg *registry.Registry) *Reconciler {
	r.registry = reg
	return r
}

// WithReportStore archives reports.
func (r *Reconciler) WithReportStore(s storage.ReportStore) *Reconciler {
	r.reports = s
	return r
}

// WithTransferStore archives both transfer lists.
func (r *Reconciler) WithTransferStore(s storage.TransferStore) *Reconciler {
	r.transfers = s
	return r
}

// WithSink publishes reports.
func (r *Reconciler) WithSink(s sink.Sink) *Reconciler {
	r.sink = s
	return r
}

// WithMetrics records run metrics, written to path when it is not empty.
func (r *Reconciler) WithMetrics(m *observability.Metrics, path string) *Reconciler {
	r.metrics = m
	r.metricsFile = path
	return r
}

// WithOutput sets where the console summary is printed.
func (r *Reconciler) WithOutput(w io.Writer) *Reconciler {
	r.stdout = w
	return r
}

// WithLogger sets the diagnostic logger.
func (r *Reconciler) WithLogger(l *log.Logger) *Reconciler {
	r.logger = l
	return r
}

// WithClock sets a custom clock function for deterministic output.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// traceOutcome is the trace of a run and how it was obtained.
type traceOutcome struct {
	trace     *domain.TraceResult
	err       string
	usedCache bool
	saveErr   error
}

// Run executes the reconciliation. A non-nil Result is returned whenever a
// report was produced; the error is then the persistence error, if any.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	txHash, network := r.target()
	if txHash == "" {
		r.metrics.RecordRun("failed", r.clock())
		return nil, ErrNoTxHash
	}

	res, err := r.run(ctx, txHash, network)
	if res == nil {
		r.metrics.RecordRun("failed", r.clock())
		return nil, err
	}

	status := "ok"
	if res.PersistErr != nil {
		status = "failed"
	}
	r.metrics.RecordRun(status, r.clock())
	if r.metricsFile != "" {
		if err := r.metrics.WriteTextfile(r.metricsFile); err != nil {
			r.logger.Printf("metrics: %v", err)
		}
	}

	if res.PersistErr != nil {
		return res, fmt.Errorf("persist: %w", res.PersistErr)
	}
	return res, nil
}

func (r *Reconciler) run(ctx context.Context, txHash, network string) (*Result, error) {
	start := time.Now()
	to, err := r.loadTrace(ctx, txHash, network)
	r.metrics.ObserveStage(observability.StageTraceFetch, time.Since(start))
	if err != nil {
		return nil, err
	}

	start = time.Now()
	rep, err := r.repro.Reproduce(ctx)
	r.metrics.ObserveStage(observability.StageReproduce, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("local reproduction: %w", err)
	}

	start = time.Now()
	actual, actualStats := extract.TransfersWithStats(to.trace.RawLogs(), domain.OriginActual)
	local, localStats := extract.TransfersWithStats(rep.Logs, domain.OriginLocal)
	r.recordExtraction(domain.OriginActual, actualStats)
	r.recordExtraction(domain.OriginLocal, localStats)

	reg := registry.New()
	if r.registry != nil {
		reg.Merge(r.registry)
	}
	reg.AugmentFromAssetChanges(network, to.trace.AssetChanges)

	comparison := verification.Compare(resolveDecimals(r.expectations, reg, network), actual, local)
	r.metrics.RecordComparison(
		comparison.AlignmentScore,
		matchedChecks(comparison),
		3*len(comparison.Victims)+1,
		len(comparison.Discrepancies),
	)

	report := reporting.NewAssembler().WithClock(r.clock).Assemble(reporting.AssembleInput{
		TxHash:          txHash,
		Network:         network,
		LocalTxHash:     rep.TxHash,
		Trace:           to.trace,
		TraceError:      to.err,
		UsedCache:       to.usedCache,
		ActualTransfers: actual,
		LocalTransfers:  local,
		ActualStats:     actualStats,
		LocalStats:      localStats,
		CustomEvents:    rep.CustomEvents,
		Comparison:      comparison,
	})
	r.metrics.ObserveStage(observability.StageCompare, time.Since(start))

	reporting.PrintSummary(r.stdout, report, reg)

	start = time.Now()
	res := &Result{Report: report, Registry: reg}
	var errs []error
	if to.saveErr != nil {
		r.metrics.RecordPersistError("trace_cache")
		errs = append(errs, to.saveErr)
	}
	errs = append(errs, r.persist(ctx, res)...)
	res.PersistErr = errors.Join(errs...)
	r.metrics.ObserveStage(observability.StagePersist, time.Since(start))

	return res, nil
}

func (r *Reconciler) target() (string, string) {
	txHash, network := r.params.TxHash, r.params.Network
	if txHash == "" {
		txHash = r.expectations.TxHash
	}
	if network == "" {
		network = r.expectations.Network
	}
	if network == "" {
		network = "mainnet"
	}
	return txHash, network
}

// loadTrace reads the cache unless a refresh is forced, fetches on a miss,
// and falls back to the cache when the fetch fails.
func (r *Reconciler) loadTrace(ctx context.Context, txHash, network string) (*traceOutcome, error) {
	if r.cache != nil && !r.params.ForceRefresh {
		entry, err := r.cache.Load(ctx, network, txHash)
		switch {
		case err == nil:
			r.metrics.RecordCacheHit()
			r.logger.Printf("using cached trace for %s (fetched %s)", txHash, entry.FetchedAt.Format(time.RFC3339))
			return &traceOutcome{trace: entry.Trace, usedCache: true}, nil
		case !errors.Is(err, tracecache.ErrCacheMiss):
			r.logger.Printf("trace cache unreadable, fetching: %v", err)
		}
	}

	fetchCtx := ctx
	if r.params.TraceTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.params.TraceTimeout)
		defer cancel()
	}

	trace, fetchErr := r.trace.FetchTrace(fetchCtx, txHash, network)
	if fetchErr == nil {
		out := &traceOutcome{trace: trace}
		if r.cache != nil {
			if err := r.cache.Save(ctx, network, txHash, trace); err != nil {
				out.saveErr = fmt.Errorf("save trace cache: %w", err)
			}
		}
		return out, nil
	}

	if r.cache != nil {
		entry, err := r.cache.Load(ctx, network, txHash)
		if err == nil {
			r.metrics.RecordFetchError(true)
			r.logger.Printf("trace fetch failed, using cached copy: %v", fetchErr)
			return &traceOutcome{
				trace:     entry.Trace,
				err:       fetchErr.Error() + cachedSuffix,
				usedCache: true,
			}, nil
		}
	}
	r.metrics.RecordFetchError(false)

	if errors.Is(fetchErr, tracing.ErrMissingCredential) {
		return nil, fmt.Errorf("%w for %s on %s: set TRACE_ACCESS_KEY: %w", ErrNoTrace, txHash, network, fetchErr)
	}
	return nil, fmt.Errorf("%w for %s on %s: %w", ErrNoTrace, txHash, network, fetchErr)
}

func (r *Reconciler) recordExtraction(origin domain.Origin, stats extract.Stats) {
	if stats.Malformed > 0 {
		r.logger.Printf("skipped %d malformed %s transfer logs", stats.Malformed, origin)
	}
	r.metrics.RecordExtraction(origin.String(), stats.Transfers, stats.Malformed)
}

func matchedChecks(c verification.Comparison) int {
	n := 0
	for _, v := range c.Victims {
		n += v.Matches.Count()
	}
	if c.FlashMint.Matches {
		n++
	}
	return n
}

// resolveDecimals fills unset decimals from the registry, keyed by the
// token's address on the real network. The input is not modified.
func resolveDecimals(exp domain.Expectations, reg *registry.Registry, network string) domain.Expectations {
	victims := make([]domain.VictimSpec, len(exp.Victims))
	copy(victims, exp.Victims)
	for i := range victims {
		if victims[i].Decimals == nil {
			victims[i].Decimals = domain.Uint8(reg.Metadata(network, victims[i].ActualToken).Decimals)
		}
	}
	exp.Victims = victims
	if exp.FlashMint.Decimals == nil {
		exp.FlashMint.Decimals = domain.Uint8(reg.Metadata(network, exp.FlashMint.ActualToken).Decimals)
	}
	return exp
}
