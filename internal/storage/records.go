package storage

import (
	"strings"

	"txrecon/internal/domain"
	"txrecon/internal/idhash"
)

// NewTransferRecords wraps both transfer lists of a report as records.
func NewTransferRecords(reportID string, actual, local []domain.TransferEvent) []*domain.TransferRecord {
	out := make([]*domain.TransferRecord, 0, len(actual)+len(local))
	for _, evs := range [][]domain.TransferEvent{actual, local} {
		for i, ev := range evs {
			out = append(out, &domain.TransferRecord{
				TransferID:    idhash.ComputeTransferID(reportID, ev.Origin.String(), i),
				ReportID:      reportID,
				Position:      i,
				TransferEvent: ev,
			})
		}
	}
	return out
}

// NormalizeTxHash lower-cases a tx hash for use as a key.
func NormalizeTxHash(txHash string) string {
	return strings.ToLower(txHash)
}

// OriginRank orders ACTUAL before LOCAL.
func OriginRank(o domain.Origin) int {
	if o == domain.OriginActual {
		return 0
	}
	return 1
}
