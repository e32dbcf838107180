package extract

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"txrecon/internal/domain"
)

// FromReceiptLogs converts go-ethereum receipt logs into RawLog form so they
// can go through the same extraction as trace logs.
func FromReceiptLogs(logs []*types.Log) []domain.RawLog {
	out := make([]domain.RawLog, 0, len(logs))
	for _, l := range logs {
		if l == nil {
			continue
		}
		topics := make([]string, len(l.Topics))
		for i, t := range l.Topics {
			topics[i] = t.Hex()
		}
		out = append(out, domain.RawLog{
			Address: l.Address.Hex(),
			Topics:  topics,
			Data:    hexutil.Encode(l.Data),
		})
	}
	return out
}
