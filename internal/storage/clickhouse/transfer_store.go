package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"txrecon/internal/domain"
	"txrecon/internal/storage"
)

// TransferStore implements storage.TransferStore using ClickHouse.
// Values are stored as UInt256.
type TransferStore struct {
	conn *Conn
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(conn *Conn) *TransferStore {
	return &TransferStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

// maxUint256 bounds what the value column can hold.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// InsertBulk adds transfers atomically. Fails entire batch on any duplicate.
func (s *TransferStore) InsertBulk(ctx context.Context, records []*domain.TransferRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Validate and check intra-batch duplicates
	ids := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.TransferID == "" || r.ReportID == "" || r.Value == nil ||
			r.Value.Sign() < 0 || r.Value.Cmp(maxUint256) > 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.TransferID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.TransferID] = struct{}{}
		ids = append(ids, r.TransferID)
	}

	// MergeTree does not enforce uniqueness; check existing rows explicitly
	var existing uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM transfer_events WHERE transfer_id IN (?)`, ids,
	).Scan(&existing); err != nil {
		return fmt.Errorf("check existing transfers: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO transfer_events (
			transfer_id, report_id, origin, position,
			token, from_address, to_address, value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.TransferID, r.ReportID, r.Origin.String(), uint32(r.Position),
			r.Token.Hex(), r.From.Hex(), r.To.Hex(), r.Value,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByReportID retrieves a report's transfers, ACTUAL before LOCAL, by position.
func (s *TransferStore) GetByReportID(ctx context.Context, reportID string) ([]*domain.TransferRecord, error) {
	query := `
		SELECT transfer_id, report_id, origin, position, token, from_address, to_address, value
		FROM transfer_events FINAL
		WHERE report_id = ?
		ORDER BY origin = 'ACTUAL' DESC, position ASC
	`

	rows, err := s.conn.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var result []*domain.TransferRecord
	for rows.Next() {
		var (
			r               domain.TransferRecord
			origin          string
			position        uint32
			token, from, to string
			value           big.Int
		)
		if err := rows.Scan(&r.TransferID, &r.ReportID, &origin, &position, &token, &from, &to, &value); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		r.Origin = domain.Origin(origin)
		r.Position = int(position)
		r.Token = common.HexToAddress(token)
		r.From = common.HexToAddress(from)
		r.To = common.HexToAddress(to)
		r.Value = new(big.Int).Set(&value)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return result, nil
}
