package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"txrecon/internal/domain"
	"txrecon/internal/storage"
)

// ReportStore implements storage.ReportStore using PostgreSQL.
type ReportStore struct {
	pool *Pool
}

// NewReportStore creates a new ReportStore.
func NewReportStore(pool *Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReportStore = (*ReportStore)(nil)

// Insert adds a new report. Returns ErrDuplicateKey if report_id exists.
func (s *ReportStore) Insert(ctx context.Context, r *domain.ReportRecord) error {
	if r == nil || r.ReportID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO comparison_reports (
			report_id, network, tx_hash, local_tx_hash, alignment_score, generated_at, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ReportID,
		r.Network,
		storage.NormalizeTxHash(r.TxHash),
		storage.NormalizeTxHash(r.LocalTxHash),
		r.AlignmentScore,
		r.GeneratedAt,
		r.Payload,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by ID. Returns ErrNotFound if not exists.
func (s *ReportStore) GetByID(ctx context.Context, reportID string) (*domain.ReportRecord, error) {
	query := `
		SELECT report_id, network, tx_hash, local_tx_hash, alignment_score, generated_at, payload, created_at
		FROM comparison_reports
		WHERE report_id = $1
	`

	r, err := scanReport(s.pool.QueryRow(ctx, query, reportID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get report by id: %w", err)
	}
	return r, nil
}

// GetByTxHash retrieves all reports for a transaction, ordered by generated_at ASC.
func (s *ReportStore) GetByTxHash(ctx context.Context, network, txHash string) ([]*domain.ReportRecord, error) {
	query := `
		SELECT report_id, network, tx_hash, local_tx_hash, alignment_score, generated_at, payload, created_at
		FROM comparison_reports
		WHERE network = $1 AND tx_hash = $2
		ORDER BY generated_at ASC, report_id ASC
	`

	rows, err := s.pool.Query(ctx, query, network, storage.NormalizeTxHash(txHash))
	if err != nil {
		return nil, fmt.Errorf("query reports by tx hash: %w", err)
	}
	defer rows.Close()

	var result []*domain.ReportRecord
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return result, nil
}

// scanReport scans a single row into ReportRecord.
func scanReport(row pgx.Row) (*domain.ReportRecord, error) {
	var r domain.ReportRecord

	err := row.Scan(
		&r.ReportID,
		&r.Network,
		&r.TxHash,
		&r.LocalTxHash,
		&r.AlignmentScore,
		&r.GeneratedAt,
		&r.Payload,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
