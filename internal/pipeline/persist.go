package pipeline

import (
	"context"
	"fmt"

	"txrecon/internal/domain"
	"txrecon/internal/reporting"
	"txrecon/internal/sink"
	"txrecon/internal/storage"
)

// persist writes the report to every configured target. Each failure is
// logged once and returned; no target stops the others.
func (r *Reconciler) persist(ctx context.Context, res *Result) []error {
	var errs []error
	fail := func(target string, err error) {
		r.metrics.RecordPersistError(target)
		r.logger.Printf("persist %s: %v", target, err)
		errs = append(errs, fmt.Errorf("%s: %w", target, err))
	}

	report := res.Report
	if r.params.OutputDir != "" {
		path, err := reporting.WriteFile(r.params.OutputDir, report)
		if err != nil {
			fail("file", err)
		} else {
			res.ReportPath = path
			r.logger.Printf("report written to %s", path)
		}
	}

	if r.reports == nil && r.transfers == nil && r.sink == nil {
		return errs
	}

	payload, err := reporting.Encode(report)
	if err != nil {
		fail("encode", err)
		return errs
	}

	if r.reports != nil {
		rec := &domain.ReportRecord{
			ReportID:       report.Metadata.ReportID,
			Network:        report.Metadata.Network,
			TxHash:         storage.NormalizeTxHash(report.Metadata.TxHash),
			LocalTxHash:    storage.NormalizeTxHash(report.Metadata.LocalTxHash),
			AlignmentScore: report.Comparison.AlignmentScore,
			GeneratedAt:    report.Metadata.GeneratedAt.UnixMilli(),
			Payload:        payload,
		}
		if err := r.reports.Insert(ctx, rec); err != nil {
			fail("report_store", err)
		}
	}

	if r.transfers != nil {
		records := storage.NewTransferRecords(report.Metadata.ReportID, report.Actual.Transfers, report.Local.Transfers)
		if len(records) > 0 {
			if err := r.transfers.InsertBulk(ctx, records); err != nil {
				fail("transfer_store", err)
			}
		}
	}

	if r.sink != nil {
		if err := r.sink.Emit(ctx, sink.TypeComparisonReport, report.Metadata.ReportID, payload); err != nil {
			fail("sink", err)
		}
	}
	return errs
}
