package reporting

import (
	"bytes"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txrecon/internal/domain"
	"txrecon/internal/extract"
	"txrecon/internal/idhash"
	"txrecon/internal/registry"
	"txrecon/internal/verification"
)

var (
	usdc      = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	localUSDC = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	dai       = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	victim    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	attacker  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

var fixedClock = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func hugeValue() *big.Int {
	v, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	return v
}

func sampleInput() AssembleInput {
	actual := []domain.TransferEvent{
		{Token: usdc, From: victim, To: attacker, Value: big.NewInt(25_660_570_000), Origin: domain.OriginActual},
		{Token: usdc, From: attacker, To: victim, Value: big.NewInt(1), Origin: domain.OriginActual},
		{Token: dai, From: common.Address{}, To: attacker, Value: hugeValue(), Origin: domain.OriginActual},
	}
	local := []domain.TransferEvent{
		{Token: localUSDC, From: victim, To: attacker, Value: big.NewInt(25_660_570_000), Origin: domain.OriginLocal},
	}
	exp := domain.Expectations{
		Victims: []domain.VictimSpec{{
			ID: "v1", Label: "Vault A", LocalToken: localUSDC, ActualToken: usdc, Decimals: domain.Uint8(6),
			ExpectedCollateral: big.NewInt(25_660_570_000), ExpectedDust: big.NewInt(1),
		}},
		FlashMint: domain.GlobalCheckSpec{Label: "DAI flash mint", LocalToken: dai, ActualToken: dai, Decimals: domain.Uint8(18), Expected: hugeValue()},
	}
	return AssembleInput{
		TxHash:      "0xabc",
		Network:     "mainnet",
		LocalTxHash: "0xdef",
		Trace: &domain.TraceResult{Trace: []domain.CallNode{
			{Type: "CALL", From: attacker.Hex(), To: usdc.Hex(), Method: "transfer", GasUsed: 51234},
			{Type: "CALL", CallType: "delegatecall", From: usdc.Hex(), To: dai.Hex(), GasUsed: 100, TraceAddress: []int{0}},
		}},
		TraceError:      "dial tcp: timeout (used cached copy)",
		UsedCache:       true,
		ActualTransfers: actual,
		LocalTransfers:  local,
		ActualStats:     extract.Stats{Total: 5, Transfers: 3, Ignored: 1, Malformed: 1},
		CustomEvents:    []domain.CustomEvent{{Name: "Exploit", Args: map[string]string{"profit": "42", "asset": "0x01"}}},
		Comparison:      verification.Compare(exp, actual, local),
	}
}

func TestAssemble(t *testing.T) {
	r := NewAssembler().WithClock(fixedClock).Assemble(sampleInput())

	assert.Equal(t, idhash.ComputeReportID("mainnet", "0xabc", "0xdef", fixedClock().UnixMilli()), r.Metadata.ReportID)
	assert.Equal(t, fixedClock(), r.Metadata.GeneratedAt)
	assert.True(t, r.Actual.UsedCache)
	assert.Contains(t, r.Actual.Error, "(used cached copy)")
	assert.Len(t, r.Actual.Transfers, 3)
	assert.Equal(t, "25660570001", r.Summaries.ActualByToken[usdc].String())
	assert.Equal(t, 0, r.Summaries.ActualFlows.Sum(usdc).Sign())
	assert.Equal(t, 1, r.Summaries.ActualStats.Malformed)
	assert.Equal(t, 100, r.Comparison.AlignmentScore)
}

func TestCallTraceExcerpt(t *testing.T) {
	nodes := make([]domain.CallNode, 7)
	for i := range nodes {
		nodes[i] = domain.CallNode{Type: "call", From: "0xa", To: "0xb", GasUsed: domain.Quantity(i)}
	}
	nodes[1].Method = "flashLoan"
	nodes[1].TraceAddress = []int{0, 2}

	out := CallTraceExcerpt(nodes, ExcerptNodes)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "[0] CALL 0xa -> 0xb gasUsed=0", lines[0])
	assert.Equal(t, "[2] CALL 0xa -> 0xb (flashLoan) gasUsed=1", lines[1])

	assert.Empty(t, CallTraceExcerpt(nil, ExcerptNodes))
	assert.Empty(t, CallTraceExcerpt(nodes, -1))
}

func TestEncode_AmountsAreDecimalStrings(t *testing.T) {
	r := NewAssembler().WithClock(fixedClock).Assemble(sampleInput())
	data, err := Encode(r)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	actual := doc["actual"].(map[string]any)
	transfers := actual["transfers"].([]any)
	assert.Equal(t, "123456789012345678901234567890", transfers[2].(map[string]any)["value"])
	assert.Equal(t, true, actual["usedCache"])

	cmp := doc["comparison"].(map[string]any)
	victims := cmp["victims"].([]any)
	v := victims[0].(map[string]any)
	assert.Equal(t, "v1", v["victimId"])
	assert.Equal(t, "25660569999", v["actual"].(map[string]any)["burned"])
	assert.Equal(t, "123456789012345678901234567890", cmp["flashMint"].(map[string]any)["actual"])
	assert.Equal(t, float64(100), cmp["alignmentScore"])
	assert.Equal(t, []any{}, cmp["discrepancies"])
}

func TestDecode_RestoresReport(t *testing.T) {
	orig := NewAssembler().WithClock(fixedClock).Assemble(sampleInput())
	data, err := Encode(orig)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, orig.Metadata, got.Metadata)
	assert.Equal(t, orig.Actual, got.Actual)
	assert.Equal(t, orig.Local, got.Local)
	assert.Equal(t, orig.Comparison.AlignmentScore, got.Comparison.AlignmentScore)
	assert.Equal(t, 0, orig.Comparison.FlashMint.Actual.Cmp(got.Comparison.FlashMint.Actual))
	assert.Equal(t, orig.Summaries.ActualByToken, got.Summaries.ActualByToken)

	again, err := Encode(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestDecode_Rejects(t *testing.T) {
	orig := NewAssembler().WithClock(fixedClock).Assemble(sampleInput())
	data, err := Encode(orig)
	require.NoError(t, err)

	tests := map[string]func(doc map[string]any){
		"schema version": func(doc map[string]any) { doc["schemaVersion"] = 99 },
		"negative value": func(doc map[string]any) {
			doc["actual"].(map[string]any)["transfers"].([]any)[0].(map[string]any)["value"] = "-5"
		},
		"numeric value": func(doc map[string]any) {
			doc["actual"].(map[string]any)["transfers"].([]any)[0].(map[string]any)["value"] = "1e18"
		},
		"bad origin": func(doc map[string]any) {
			doc["local"].(map[string]any)["transfers"].([]any)[0].(map[string]any)["origin"] = "ELSEWHERE"
		},
		"score above range": func(doc map[string]any) {
			doc["comparison"].(map[string]any)["alignmentScore"] = 101
		},
		"negative score": func(doc map[string]any) {
			doc["comparison"].(map[string]any)["alignmentScore"] = -1
		},
		"bad token": func(doc map[string]any) {
			doc["comparison"].(map[string]any)["flashMint"].(map[string]any)["actualToken"] = "0x12"
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			var doc map[string]any
			require.NoError(t, json.Unmarshal(data, &doc))
			mutate(doc)
			bad, err := json.Marshal(doc)
			require.NoError(t, err)

			_, err = Decode(bad)
			assert.ErrorIs(t, err, ErrInvalidReport)
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := NewAssembler().WithClock(fixedClock).Assemble(sampleInput())

	path, err := WriteFile(dir, r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mainnet-comparison.json"), path)
	assert.Equal(t, ReportPath(dir, "MAINNET"), path)

	r.Comparison.AlignmentScore = 42
	_, err = WriteFile(dir, r)
	require.NoError(t, err)

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Comparison.AlignmentScore)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestPrintSummary(t *testing.T) {
	in := sampleInput()
	in.ActualTransfers = in.ActualTransfers[:1] // drop dust and flash mint transfers
	exp := domain.Expectations{
		Victims: []domain.VictimSpec{{
			ID: "v1", Label: "Vault A", LocalToken: localUSDC, ActualToken: usdc, Decimals: domain.Uint8(6),
			ExpectedCollateral: big.NewInt(25_660_570_000), ExpectedDust: big.NewInt(1),
		}},
		FlashMint: domain.GlobalCheckSpec{Label: "DAI flash mint", ActualToken: dai, LocalToken: dai, Decimals: domain.Uint8(18), Expected: hugeValue()},
	}
	in.Comparison = verification.Compare(exp, in.ActualTransfers, in.LocalTransfers)
	r := NewAssembler().WithClock(fixedClock).Assemble(in)

	var buf bytes.Buffer
	PrintSummary(&buf, r, registry.Default())
	out := buf.String()

	assert.Contains(t, out, "Transaction: 0xabc (mainnet)")
	assert.Contains(t, out, "Trace: cached copy (dial tcp: timeout (used cached copy))")
	assert.Contains(t, out, "Vault A [USDC]")
	assert.Contains(t, out, "25660.57")
	assert.Contains(t, out, "Alignment score: 50%")
	assert.Contains(t, out, "Vault A: dustReturned mismatch (expected: 0, actual: 0)")

	victimsAt := strings.Index(out, "Victims:")
	scoreAt := strings.Index(out, "Alignment score:")
	discAt := strings.Index(out, "Discrepancies:")
	assert.True(t, victimsAt < scoreAt && scoreAt < discAt, "summary sections out of order")
	assert.Contains(t, out, markOK)
	assert.Contains(t, out, markFail)
}

func TestPrintSummary_NilRegistry(t *testing.T) {
	r := NewAssembler().WithClock(fixedClock).Assemble(sampleInput())
	var buf bytes.Buffer
	PrintSummary(&buf, r, nil)
	assert.Contains(t, buf.String(), "No discrepancies.")
}

func TestRenderMarkdown(t *testing.T) {
	r := NewAssembler().WithClock(fixedClock).Assemble(sampleInput())
	md := RenderMarkdown(r)

	assert.Contains(t, md, "# Reconciliation Report")
	assert.Contains(t, md, "**Alignment score: 100%**")
	assert.Contains(t, md, "| Vault A | collateralPulled | 25660.57 | 25660.57 | PASS |")
	assert.Contains(t, md, "[0] CALL")
	assert.Contains(t, md, "- Exploit asset=0x01 profit=42")
}

func TestRenderTransfersCSV(t *testing.T) {
	in := sampleInput()
	csv := RenderTransfersCSV(in.ActualTransfers, in.LocalTransfers)
	lines := strings.Split(strings.TrimSpace(csv), "\n")

	require.Len(t, lines, 5)
	assert.Equal(t, "origin,token,from,to,value", lines[0])
	assert.True(t, strings.HasPrefix(lines[4], "LOCAL,"+localUSDC.Hex()))
	assert.True(t, strings.HasSuffix(lines[3], ",123456789012345678901234567890"))
}
