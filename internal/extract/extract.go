// Package extract decodes raw event logs into normalized ERC-20 transfers.
package extract

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"txrecon/internal/domain"
)

// TransferSignature is keccak256("Transfer(address,address,uint256)").
var TransferSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var (
	errTopicCount = errors.New("transfer log must have exactly 3 topics")
	errAddress    = errors.New("malformed address")
	errTopic      = errors.New("malformed topic")
	errData       = errors.New("malformed data")
)

// Stats counts what happened to each input log.
type Stats struct {
	Total     int // logs seen
	Transfers int // decoded transfers
	Ignored   int // no topics or a different event signature
	Malformed int // transfer signature but undecodable
}

// Transfers decodes every Transfer log in logs, tagging each with origin.
// Logs with another signature and malformed transfer logs are skipped.
func Transfers(logs []domain.RawLog, origin domain.Origin) []domain.TransferEvent {
	out, _ := TransfersWithStats(logs, origin)
	return out
}

// TransfersWithStats is Transfers plus per-log accounting.
func TransfersWithStats(logs []domain.RawLog, origin domain.Origin) ([]domain.TransferEvent, Stats) {
	stats := Stats{Total: len(logs)}
	out := make([]domain.TransferEvent, 0, len(logs))

	for _, l := range logs {
		if !IsTransfer(l) {
			stats.Ignored++
			continue
		}
		ev, err := decode(l, origin)
		if err != nil {
			stats.Malformed++
			continue
		}
		out = append(out, ev)
		stats.Transfers++
	}
	return out, stats
}

// IsTransfer reports whether the first topic of l is the Transfer signature.
// The comparison is case-insensitive and tolerates a missing 0x prefix.
func IsTransfer(l domain.RawLog) bool {
	if len(l.Topics) == 0 {
		return false
	}
	return strings.EqualFold(strip0x(l.Topics[0]), strip0x(TransferSignature.Hex()))
}

func decode(l domain.RawLog, origin domain.Origin) (domain.TransferEvent, error) {
	if len(l.Topics) != 3 {
		// ERC-721 transfers share the signature but index the token id.
		return domain.TransferEvent{}, errTopicCount
	}
	if !common.IsHexAddress(l.Address) {
		return domain.TransferEvent{}, errAddress
	}

	from, err := topicAddress(l.Topics[1])
	if err != nil {
		return domain.TransferEvent{}, err
	}
	to, err := topicAddress(l.Topics[2])
	if err != nil {
		return domain.TransferEvent{}, err
	}

	data, err := hexutil.Decode(with0x(l.Data))
	if err != nil || len(data) < 32 {
		return domain.TransferEvent{}, errData
	}

	return domain.TransferEvent{
		Token:  common.HexToAddress(l.Address),
		From:   from,
		To:     to,
		Value:  new(big.Int).SetBytes(data[:32]),
		Origin: origin,
	}, nil
}

// topicAddress decodes a 32-byte indexed address topic.
func topicAddress(topic string) (common.Address, error) {
	b, err := hexutil.Decode(with0x(topic))
	if err != nil || len(b) != common.HashLength {
		return common.Address{}, errTopic
	}
	for _, x := range b[:common.HashLength-common.AddressLength] {
		if x != 0 {
			return common.Address{}, errTopic
		}
	}
	return common.BytesToAddress(b), nil
}

func strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func with0x(s string) string {
	return "0x" + strip0x(strings.TrimSpace(s))
}
