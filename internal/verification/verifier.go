// Package verification compares reproduced exploit amounts against the real
// transaction's transfers and reduces the result to an alignment score.
package verification

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"txrecon/internal/domain"
	"txrecon/internal/matching"
)

// Field names used in divergences and discrepancy lines.
const (
	FieldCollateralPulled = "collateralPulled"
	FieldDustReturned     = "dustReturned"
	FieldBurned           = "burned"
	FieldFlashMint        = "flashMint"
)

// Amounts holds one side's figures for a victim.
type Amounts struct {
	CollateralPulled *big.Int
	DustReturned     *big.Int
	Burned           *big.Int
}

// Matches records which per-victim checks passed.
type Matches struct {
	CollateralPulled bool
	DustReturned     bool
	Burned           bool
}

// Count returns the number of passing checks.
func (m Matches) Count() int {
	n := 0
	for _, ok := range []bool{m.CollateralPulled, m.DustReturned, m.Burned} {
		if ok {
			n++
		}
	}
	return n
}

// All reports whether every check passed.
func (m Matches) All() bool {
	return m.Count() == 3
}

// VictimComparison is the outcome of comparing one victim/asset pair.
type VictimComparison struct {
	VictimID    string
	Label       string
	LocalToken  common.Address
	ActualToken common.Address
	Decimals    uint8
	Actual      Amounts
	Reproduced  Amounts
	Matches     Matches

	// LocalFound records whether the reproduction emitted the exact expected
	// transfers. It does not affect Matches or the score.
	LocalFound Matches
}

// GlobalCheck is the transaction-wide flash-mint check.
type GlobalCheck struct {
	Label       string
	LocalToken  common.Address
	ActualToken common.Address
	Decimals    uint8
	Actual      *big.Int
	Reproduced  *big.Int
	Matches     bool
	LocalFound  bool
}

// Comparison is the full comparison block of a report.
type Comparison struct {
	Victims        []VictimComparison
	FlashMint      GlobalCheck
	AlignmentScore int
	Discrepancies  []string
}

// FieldDivergence is one failing check.
type FieldDivergence struct {
	Label    string
	Field    string
	Expected *big.Int // reproduced value
	Actual   *big.Int
	Decimals uint8
}

// String renders the divergence as a discrepancy line.
func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s: %s mismatch (expected: %s, actual: %s)",
		d.Label, d.Field, FormatAmount(d.Expected, d.Decimals), FormatAmount(d.Actual, d.Decimals))
}

// BurnedAmount returns max(0, collateral - dust). Nil inputs count as zero.
func BurnedAmount(collateral, dust *big.Int) *big.Int {
	burned := new(big.Int)
	if collateral != nil {
		burned.Set(collateral)
	}
	if dust != nil {
		burned.Sub(burned, dust)
	}
	if burned.Sign() < 0 {
		burned.SetInt64(0)
	}
	return burned
}

// CompareVictim matches the victim's expected amounts against the actual
// transfers within a 0.5% window and against the local transfers exactly.
//
// The burned check mirrors the collateral check: no independent burn signal
// is inspected.
func CompareVictim(spec domain.VictimSpec, actual, local []domain.TransferEvent) VictimComparison {
	actualColl, collOK := matching.FindClosest(actual, spec.ActualToken, spec.ExpectedCollateral,
		matching.ToleranceWindow(spec.ExpectedCollateral))
	actualDust, dustOK := matching.FindClosest(actual, spec.ActualToken, spec.ExpectedDust,
		matching.ToleranceWindow(spec.ExpectedDust))

	localColl, localCollOK := matching.FindExact(local, spec.LocalToken, spec.ExpectedCollateral)
	localDust, localDustOK := matching.FindExact(local, spec.LocalToken, spec.ExpectedDust)

	vc := VictimComparison{
		VictimID:    spec.ID,
		Label:       spec.Label,
		LocalToken:  spec.LocalToken,
		ActualToken: spec.ActualToken,
		Decimals:    spec.DecimalsOr(domain.DefaultDecimals),
		Actual:      amounts(valueOf(actualColl, collOK), valueOf(actualDust, dustOK)),
		Reproduced:  amounts(valueOf(localColl, localCollOK), valueOf(localDust, localDustOK)),
		Matches: Matches{
			CollateralPulled: collOK,
			DustReturned:     dustOK,
			Burned:           collOK,
		},
		LocalFound: Matches{
			CollateralPulled: localCollOK,
			DustReturned:     localDustOK,
			Burned:           localCollOK,
		},
	}
	if vc.Label == "" {
		vc.Label = spec.ID
	}
	return vc
}

// CompareVictims runs CompareVictim for every spec, preserving order.
func CompareVictims(specs []domain.VictimSpec, actual, local []domain.TransferEvent) []VictimComparison {
	out := make([]VictimComparison, 0, len(specs))
	for _, spec := range specs {
		out = append(out, CompareVictim(spec, actual, local))
	}
	return out
}

// CheckGlobal evaluates the flash-mint check the same way as a victim's
// collateral: tolerance window on the actual side, exact on the local side.
func CheckGlobal(spec domain.GlobalCheckSpec, actual, local []domain.TransferEvent) GlobalCheck {
	a, ok := matching.FindClosest(actual, spec.ActualToken, spec.Expected, matching.ToleranceWindow(spec.Expected))
	l, localOK := matching.FindExact(local, spec.LocalToken, spec.Expected)

	label := spec.Label
	if label == "" {
		label = "Flash mint"
	}
	return GlobalCheck{
		Label:       label,
		LocalToken:  spec.LocalToken,
		ActualToken: spec.ActualToken,
		Decimals:    spec.DecimalsOr(domain.DefaultDecimals),
		Actual:      valueOf(a, ok),
		Reproduced:  valueOf(l, localOK),
		Matches:     ok,
		LocalFound:  localOK,
	}
}

// AlignmentScore returns round(100 * matching / total) where total is three
// checks per victim plus the global check. Halves round up.
func AlignmentScore(victims []VictimComparison, global GlobalCheck) int {
	total := 3*len(victims) + 1
	matched := 0
	for _, v := range victims {
		matched += v.Matches.Count()
	}
	if global.Matches {
		matched++
	}
	return (200*matched + total) / (2 * total)
}

// Divergences lists every failing check in victim order, then the global check.
func Divergences(victims []VictimComparison, global GlobalCheck) []FieldDivergence {
	var out []FieldDivergence
	for _, v := range victims {
		add := func(ok bool, field string, expected, actual *big.Int) {
			if ok {
				return
			}
			out = append(out, FieldDivergence{
				Label: v.Label, Field: field, Expected: expected, Actual: actual, Decimals: v.Decimals,
			})
		}
		add(v.Matches.CollateralPulled, FieldCollateralPulled, v.Reproduced.CollateralPulled, v.Actual.CollateralPulled)
		add(v.Matches.DustReturned, FieldDustReturned, v.Reproduced.DustReturned, v.Actual.DustReturned)
		add(v.Matches.Burned, FieldBurned, v.Reproduced.Burned, v.Actual.Burned)
	}
	if !global.Matches {
		out = append(out, FieldDivergence{
			Label: global.Label, Field: FieldFlashMint,
			Expected: global.Reproduced, Actual: global.Actual, Decimals: global.Decimals,
		})
	}
	return out
}

// Discrepancies renders Divergences as human-readable lines.
func Discrepancies(victims []VictimComparison, global GlobalCheck) []string {
	divs := Divergences(victims, global)
	out := make([]string, 0, len(divs))
	for _, d := range divs {
		out = append(out, d.String())
	}
	return out
}

// Compare builds the complete comparison block.
func Compare(exp domain.Expectations, actual, local []domain.TransferEvent) Comparison {
	victims := CompareVictims(exp.Victims, actual, local)
	global := CheckGlobal(exp.FlashMint, actual, local)
	return Comparison{
		Victims:        victims,
		FlashMint:      global,
		AlignmentScore: AlignmentScore(victims, global),
		Discrepancies:  Discrepancies(victims, global),
	}
}

func amounts(collateral, dust *big.Int) Amounts {
	return Amounts{
		CollateralPulled: collateral,
		DustReturned:     dust,
		Burned:           BurnedAmount(collateral, dust),
	}
}

func valueOf(ev domain.TransferEvent, ok bool) *big.Int {
	if !ok || ev.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(ev.Value)
}
