package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"txrecon/internal/verification"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *ComparisonReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Reconciliation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.Metadata.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Transaction: `%s` on %s\n\n", r.Metadata.TxHash, r.Metadata.Network))
	if r.Metadata.LocalTxHash != "" {
		sb.WriteString(fmt.Sprintf("Reproduction: `%s`\n\n", r.Metadata.LocalTxHash))
	}
	sb.WriteString(fmt.Sprintf("**Alignment score: %d%%**\n\n", r.Comparison.AlignmentScore))

	// Trace source
	sb.WriteString("## Trace Source\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Actual Transfers | %d |\n", len(r.Actual.Transfers)))
	sb.WriteString(fmt.Sprintf("| Local Transfers | %d |\n", len(r.Local.Transfers)))
	sb.WriteString(fmt.Sprintf("| Custom Events | %d |\n", len(r.Local.CustomEvents)))
	sb.WriteString(fmt.Sprintf("| Used Cache | %t |\n", r.Actual.UsedCache))
	if r.Actual.Error != "" {
		sb.WriteString(fmt.Sprintf("| Fetch Error | %s |\n", r.Actual.Error))
	}
	sb.WriteString("\n")

	if r.Actual.CallTraceExcerpt != "" {
		sb.WriteString("### Call Trace Excerpt\n\n```\n")
		sb.WriteString(r.Actual.CallTraceExcerpt)
		sb.WriteString("\n```\n\n")
	}

	// Victims
	sb.WriteString("## Victims\n\n")
	if len(r.Comparison.Victims) > 0 {
		sb.WriteString("| Victim | Field | Actual | Reproduced | Match |\n")
		sb.WriteString("|--------|-------|--------|------------|-------|\n")
		for _, v := range r.Comparison.Victims {
			rows := []struct {
				field      string
				actual     string
				reproduced string
				ok         bool
			}{
				{verification.FieldCollateralPulled, verification.FormatAmount(v.Actual.CollateralPulled, v.Decimals), verification.FormatAmount(v.Reproduced.CollateralPulled, v.Decimals), v.Matches.CollateralPulled},
				{verification.FieldDustReturned, verification.FormatAmount(v.Actual.DustReturned, v.Decimals), verification.FormatAmount(v.Reproduced.DustReturned, v.Decimals), v.Matches.DustReturned},
				{verification.FieldBurned, verification.FormatAmount(v.Actual.Burned, v.Decimals), verification.FormatAmount(v.Reproduced.Burned, v.Decimals), v.Matches.Burned},
			}
			for _, row := range rows {
				sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
					v.Label, row.field, row.actual, row.reproduced, passFail(row.ok)))
			}
		}
	} else {
		sb.WriteString("No victims configured.\n")
	}
	sb.WriteString("\n")

	// Global check
	g := r.Comparison.FlashMint
	sb.WriteString("## Flash Mint\n\n")
	sb.WriteString("| Check | Actual | Reproduced | Match |\n")
	sb.WriteString("|-------|--------|------------|-------|\n")
	sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n\n",
		g.Label, verification.FormatAmount(g.Actual, g.Decimals), verification.FormatAmount(g.Reproduced, g.Decimals), passFail(g.Matches)))

	// Discrepancies
	sb.WriteString("## Discrepancies\n\n")
	if len(r.Comparison.Discrepancies) > 0 {
		for _, d := range r.Comparison.Discrepancies {
			sb.WriteString(fmt.Sprintf("- %s\n", d))
		}
	} else {
		sb.WriteString("None.\n")
	}
	sb.WriteString("\n")

	// Custom events
	if len(r.Local.CustomEvents) > 0 {
		sb.WriteString("## Custom Events\n\n")
		for _, ev := range r.Local.CustomEvents {
			sb.WriteString(fmt.Sprintf("- %s %s\n", ev.Name, formatArgs(ev.Args)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func formatArgs(args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+args[k])
	}
	return strings.Join(parts, " ")
}
