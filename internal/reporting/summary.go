package reporting

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"txrecon/internal/ledger"
	"txrecon/internal/registry"
	"txrecon/internal/verification"
)

const (
	markOK   = "✓"
	markFail = "✗"
)

func mark(ok bool) string {
	if ok {
		return markOK
	}
	return markFail
}

// PrintSummary writes the console summary: run header, per-token volume and
// conservation diagnostics, per-victim amounts with a mark per field, the
// flash-mint check, the alignment score and the discrepancy list.
// reg may be nil.
func PrintSummary(w io.Writer, r *ComparisonReport, reg *registry.Registry) {
	if reg == nil {
		reg = registry.New()
	}
	network := r.Metadata.Network

	fmt.Fprintf(w, "Transaction: %s (%s)\n", r.Metadata.TxHash, network)
	if r.Metadata.LocalTxHash != "" {
		fmt.Fprintf(w, "Reproduction: %s\n", r.Metadata.LocalTxHash)
	}
	if r.Actual.UsedCache {
		if r.Actual.Error != "" {
			fmt.Fprintf(w, "Trace: cached copy (%s)\n", r.Actual.Error)
		} else {
			fmt.Fprintln(w, "Trace: cached copy")
		}
	}
	fmt.Fprintf(w, "Transfers: actual %d, local %d\n", len(r.Actual.Transfers), len(r.Local.Transfers))
	if s := r.Summaries.ActualStats; s.Malformed > 0 {
		fmt.Fprintf(w, "Skipped malformed actual logs: %d\n", s.Malformed)
	}
	if s := r.Summaries.LocalStats; s.Malformed > 0 {
		fmt.Fprintf(w, "Skipped malformed local logs: %d\n", s.Malformed)
	}

	printVolumes(w, "Actual", r.Summaries.ActualByToken, r.Summaries.ActualFlows, reg, network)
	printVolumes(w, "Local", r.Summaries.LocalByToken, r.Summaries.LocalFlows, reg, network)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Victims:")
	if len(r.Comparison.Victims) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, v := range r.Comparison.Victims {
		symbol := reg.Metadata(network, v.ActualToken).DisplaySymbol(shortAddress(v.ActualToken))
		fmt.Fprintf(w, "  %s [%s]\n", v.Label, symbol)
		printField(w, verification.FieldCollateralPulled, v.Actual.CollateralPulled, v.Reproduced.CollateralPulled, v.Decimals, v.Matches.CollateralPulled)
		printField(w, verification.FieldDustReturned, v.Actual.DustReturned, v.Reproduced.DustReturned, v.Decimals, v.Matches.DustReturned)
		printField(w, verification.FieldBurned, v.Actual.Burned, v.Reproduced.Burned, v.Decimals, v.Matches.Burned)
	}

	g := r.Comparison.FlashMint
	fmt.Fprintf(w, "  %s\n", g.Label)
	printField(w, verification.FieldFlashMint, g.Actual, g.Reproduced, g.Decimals, g.Matches)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Alignment score: %d%%\n", r.Comparison.AlignmentScore)

	if len(r.Comparison.Discrepancies) == 0 {
		fmt.Fprintln(w, "No discrepancies.")
		return
	}
	fmt.Fprintln(w, "Discrepancies:")
	for _, d := range r.Comparison.Discrepancies {
		fmt.Fprintf(w, "  - %s\n", d)
	}
}

func printField(w io.Writer, field string, actual, reproduced *big.Int, decimals uint8, ok bool) {
	fmt.Fprintf(w, "    %-17s actual %-24s reproduced %-24s %s\n",
		field,
		verification.FormatAmount(actual, decimals),
		verification.FormatAmount(reproduced, decimals),
		mark(ok))
}

func printVolumes(w io.Writer, side string, totals map[common.Address]*big.Int, flows ledger.NetFlowLedger, reg *registry.Registry, network string) {
	if len(totals) == 0 {
		return
	}
	tokens := make([]common.Address, 0, len(totals))
	for token := range totals {
		tokens = append(tokens, token)
	}
	ledger.SortAddresses(tokens)

	fmt.Fprintf(w, "%s volume:\n", side)
	for _, token := range tokens {
		meta := reg.Metadata(network, token)
		conserved := flows.Sum(token).Sign() == 0
		fmt.Fprintf(w, "  %-10s %s  conserved %s\n",
			meta.DisplaySymbol(shortAddress(token)),
			verification.FormatAmount(totals[token], meta.Decimals),
			mark(conserved))
	}
}

func shortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}
