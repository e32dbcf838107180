package storage

import (
	"context"

	"txrecon/internal/domain"
)

// TraceCacheStore provides access to trace_cache storage.
type TraceCacheStore interface {
	// Put stores a trace, replacing any existing record for (network, tx_hash).
	Put(ctx context.Context, r *domain.TraceRecord) error

	// Get retrieves a trace by network and tx hash. Returns ErrNotFound if not exists.
	Get(ctx context.Context, network, txHash string) (*domain.TraceRecord, error)
}

// ReportStore provides access to comparison_reports storage.
type ReportStore interface {
	// Insert adds a new report. Returns ErrDuplicateKey if report_id exists.
	Insert(ctx context.Context, r *domain.ReportRecord) error

	// GetByID retrieves a report by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, reportID string) (*domain.ReportRecord, error)

	// GetByTxHash retrieves all reports for a transaction, ordered by generated_at ASC.
	GetByTxHash(ctx context.Context, network, txHash string) ([]*domain.ReportRecord, error)
}

// TransferStore provides access to transfer_events storage.
type TransferStore interface {
	// InsertBulk adds transfers atomically. Fails entire batch on any duplicate transfer_id.
	InsertBulk(ctx context.Context, records []*domain.TransferRecord) error

	// GetByReportID retrieves a report's transfers, ACTUAL before LOCAL, each by position ASC.
	GetByReportID(ctx context.Context, reportID string) ([]*domain.TransferRecord, error)
}
