// Package matching correlates expected amounts with observed transfers.
//
// Records from a real trace and a local reproduction share no identifier,
// so correlation is by token and value proximity.
package matching

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"txrecon/internal/domain"
)

// toleranceDivisor gives a 0.5% window.
const toleranceDivisor = 200

// ToleranceWindow returns 0 for a non-positive target and
// max(1, floor(target/200)) otherwise.
func ToleranceWindow(target *big.Int) *big.Int {
	if target == nil || target.Sign() <= 0 {
		return new(big.Int)
	}
	w := new(big.Int).Quo(target, big.NewInt(toleranceDivisor))
	if w.Sign() == 0 {
		w.SetInt64(1)
	}
	return w
}

// FindClosest returns the candidate for token whose value is nearest to
// target and within tolerance. A nil or zero tolerance requires an exact value.
// Ties go to the first candidate seen. A nil target is treated as zero.
func FindClosest(candidates []domain.TransferEvent, token common.Address, target, tolerance *big.Int) (domain.TransferEvent, bool) {
	if target == nil {
		target = new(big.Int)
	}
	exact := tolerance == nil || tolerance.Sign() == 0

	var (
		best     domain.TransferEvent
		bestDiff *big.Int
		diff     = new(big.Int)
	)
	for _, c := range candidates {
		// common.Address equality already ignores hex case.
		if c.Token != token || c.Value == nil {
			continue
		}
		diff.Sub(c.Value, target).Abs(diff)
		if exact {
			if diff.Sign() != 0 {
				continue
			}
		} else if diff.Cmp(tolerance) > 0 {
			continue
		}
		if bestDiff == nil || diff.Cmp(bestDiff) < 0 {
			best = c
			bestDiff = new(big.Int).Set(diff)
		}
	}
	return best, bestDiff != nil
}

// FindExact returns the first candidate for token whose value equals target.
func FindExact(candidates []domain.TransferEvent, token common.Address, target *big.Int) (domain.TransferEvent, bool) {
	return FindClosest(candidates, token, target, nil)
}
