package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// VictimSpec carries the expected amounts for one victim/asset pair.
// Expected amounts come from domain knowledge of the fixture, not from the
// reconciliation itself.
type VictimSpec struct {
	ID                 string
	Label              string
	LocalToken         common.Address // token address inside the reproduction
	ActualToken        common.Address // token address on the real network
	Decimals           *uint8         // nil: resolved from the token registry
	ExpectedCollateral *big.Int
	ExpectedDust       *big.Int
}

// GlobalCheckSpec is the single transaction-wide check (the flash-mint or
// flash-loan amount).
type GlobalCheckSpec struct {
	Label       string
	LocalToken  common.Address
	ActualToken common.Address
	Decimals    *uint8
	Expected    *big.Int
}

// DecimalsOr returns the configured decimals, or def when unset.
func (s VictimSpec) DecimalsOr(def uint8) uint8 {
	return decimalsOr(s.Decimals, def)
}

// DecimalsOr returns the configured decimals, or def when unset.
func (s GlobalCheckSpec) DecimalsOr(def uint8) uint8 {
	return decimalsOr(s.Decimals, def)
}

// Uint8 returns a pointer to v.
func Uint8(v uint8) *uint8 {
	return &v
}

func decimalsOr(d *uint8, def uint8) uint8 {
	if d == nil {
		return def
	}
	return *d
}

// Expectations groups everything the caller supplies about one exploit.
type Expectations struct {
	TxHash    string // optional default target transaction
	Network   string // optional default network
	Victims   []VictimSpec
	FlashMint GlobalCheckSpec
}
