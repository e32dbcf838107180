// Package ledger folds transfer lists into per-token totals and signed
// per-account net flows. Both are diagnostics; neither feeds pass/fail logic.
package ledger

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"txrecon/internal/domain"
)

// NetFlowLedger maps token -> account -> (incoming - outgoing).
type NetFlowLedger map[common.Address]map[common.Address]*big.Int

// AggregateByToken sums transfer values per token, ignoring direction.
func AggregateByToken(events []domain.TransferEvent) map[common.Address]*big.Int {
	totals := make(map[common.Address]*big.Int)
	for _, ev := range events {
		if ev.Value == nil {
			continue
		}
		sum, ok := totals[ev.Token]
		if !ok {
			sum = new(big.Int)
			totals[ev.Token] = sum
		}
		sum.Add(sum, ev.Value)
	}
	return totals
}

// AggregateNetFlows debits the sender and credits the receiver of every
// transfer. For any transfer set, each token's entries sum to zero.
func AggregateNetFlows(events []domain.TransferEvent) NetFlowLedger {
	l := make(NetFlowLedger)
	for _, ev := range events {
		if ev.Value == nil {
			continue
		}
		l.entry(ev.Token, ev.From).Sub(l.entry(ev.Token, ev.From), ev.Value)
		l.entry(ev.Token, ev.To).Add(l.entry(ev.Token, ev.To), ev.Value)
	}
	return l
}

func (l NetFlowLedger) entry(token, account common.Address) *big.Int {
	accounts, ok := l[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l[token] = accounts
	}
	v, ok := accounts[account]
	if !ok {
		v = new(big.Int)
		accounts[account] = v
	}
	return v
}

// NetFlow returns the net flow of account for token (zero if absent).
func (l NetFlowLedger) NetFlow(token, account common.Address) *big.Int {
	if v, ok := l[token][account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Sum returns the sum of all accounts' net flows for token.
func (l NetFlowLedger) Sum(token common.Address) *big.Int {
	sum := new(big.Int)
	for _, v := range l[token] {
		sum.Add(sum, v)
	}
	return sum
}

// Unbalanced returns tokens whose net flows do not sum to zero, sorted.
// Always empty for a ledger built by AggregateNetFlows.
func (l NetFlowLedger) Unbalanced() []common.Address {
	var out []common.Address
	for token := range l {
		if l.Sum(token).Sign() != 0 {
			out = append(out, token)
		}
	}
	SortAddresses(out)
	return out
}

// Tokens returns the ledger's tokens in ascending byte order.
func (l NetFlowLedger) Tokens() []common.Address {
	out := make([]common.Address, 0, len(l))
	for token := range l {
		out = append(out, token)
	}
	SortAddresses(out)
	return out
}

// SortAddresses sorts addrs in ascending byte order.
func SortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0
	})
}
