package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"txrecon/internal/domain"
	"txrecon/internal/verification"
)

// SchemaVersion is the version of the persisted report document.
const SchemaVersion = 1

// ErrInvalidReport is returned by Decode for a malformed document.
var ErrInvalidReport = errors.New("invalid report")

// The wire types below are the persisted JSON shape. Every integer amount is
// a decimal string; big.Int never reaches encoding/json directly.

type reportDTO struct {
	SchemaVersion int           `json:"schemaVersion"`
	Metadata      metadataDTO   `json:"metadata"`
	Actual        actualDTO     `json:"actual"`
	Local         localDTO      `json:"local"`
	Comparison    comparisonDTO `json:"comparison"`
}

type metadataDTO struct {
	ReportID    string `json:"reportId"`
	GeneratedAt string `json:"generatedAt"`
	TxHash      string `json:"txHash"`
	Network     string `json:"network"`
	LocalTxHash string `json:"localTxHash"`
}

type transferDTO struct {
	Token  string `json:"token"`
	From   string `json:"from"`
	To     string `json:"to"`
	Value  string `json:"value"`
	Origin string `json:"origin"`
}

type actualDTO struct {
	Transfers        []transferDTO `json:"transfers"`
	CallTraceExcerpt string        `json:"callTraceExcerpt"`
	Error            string        `json:"error,omitempty"`
	UsedCache        bool          `json:"usedCache,omitempty"`
}

type localDTO struct {
	Transfers    []transferDTO        `json:"transfers"`
	CustomEvents []domain.CustomEvent `json:"customEvents"`
}

type amountsDTO struct {
	CollateralPulled string `json:"collateralPulled"`
	DustReturned     string `json:"dustReturned"`
	Burned           string `json:"burned"`
}

type matchesDTO struct {
	CollateralPulled bool `json:"collateralPulled"`
	DustReturned     bool `json:"dustReturned"`
	Burned           bool `json:"burned"`
}

type victimDTO struct {
	VictimID    string     `json:"victimId"`
	Label       string     `json:"label"`
	LocalToken  string     `json:"localToken"`
	ActualToken string     `json:"actualToken"`
	Decimals    uint8      `json:"decimals"`
	Actual      amountsDTO `json:"actual"`
	Reproduced  amountsDTO `json:"reproduced"`
	Matches     matchesDTO `json:"matches"`
	LocalFound  matchesDTO `json:"localFound"`
}

type flashMintDTO struct {
	Label       string `json:"label"`
	LocalToken  string `json:"localToken"`
	ActualToken string `json:"actualToken"`
	Decimals    uint8  `json:"decimals"`
	Actual      string `json:"actual"`
	Reproduced  string `json:"reproduced"`
	Matches     bool   `json:"matches"`
	LocalFound  bool   `json:"localFound"`
}

type comparisonDTO struct {
	Victims        []victimDTO  `json:"victims"`
	FlashMint      flashMintDTO `json:"flashMint"`
	AlignmentScore int          `json:"alignmentScore"`
	Discrepancies  []string     `json:"discrepancies"`
}

// Encode renders the report as indented JSON.
func Encode(r *ComparisonReport) ([]byte, error) {
	dto := reportDTO{
		SchemaVersion: SchemaVersion,
		Metadata: metadataDTO{
			ReportID:    r.Metadata.ReportID,
			GeneratedAt: r.Metadata.GeneratedAt.UTC().Format(time.RFC3339Nano),
			TxHash:      r.Metadata.TxHash,
			Network:     r.Metadata.Network,
			LocalTxHash: r.Metadata.LocalTxHash,
		},
		Actual: actualDTO{
			Transfers:        encodeTransfers(r.Actual.Transfers),
			CallTraceExcerpt: r.Actual.CallTraceExcerpt,
			Error:            r.Actual.Error,
			UsedCache:        r.Actual.UsedCache,
		},
		Local: localDTO{
			Transfers:    encodeTransfers(r.Local.Transfers),
			CustomEvents: r.Local.CustomEvents,
		},
		Comparison: comparisonDTO{
			Victims:        make([]victimDTO, 0, len(r.Comparison.Victims)),
			AlignmentScore: r.Comparison.AlignmentScore,
			Discrepancies:  r.Comparison.Discrepancies,
		},
	}
	if dto.Local.CustomEvents == nil {
		dto.Local.CustomEvents = []domain.CustomEvent{}
	}
	if dto.Comparison.Discrepancies == nil {
		dto.Comparison.Discrepancies = []string{}
	}

	for _, v := range r.Comparison.Victims {
		dto.Comparison.Victims = append(dto.Comparison.Victims, victimDTO{
			VictimID:    v.VictimID,
			Label:       v.Label,
			LocalToken:  v.LocalToken.Hex(),
			ActualToken: v.ActualToken.Hex(),
			Decimals:    v.Decimals,
			Actual:      encodeAmounts(v.Actual),
			Reproduced:  encodeAmounts(v.Reproduced),
			Matches:     matchesDTO(v.Matches),
			LocalFound:  matchesDTO(v.LocalFound),
		})
	}

	g := r.Comparison.FlashMint
	dto.Comparison.FlashMint = flashMintDTO{
		Label:       g.Label,
		LocalToken:  g.LocalToken.Hex(),
		ActualToken: g.ActualToken.Hex(),
		Decimals:    g.Decimals,
		Actual:      bigString(g.Actual),
		Reproduced:  bigString(g.Reproduced),
		Matches:     g.Matches,
		LocalFound:  g.LocalFound,
	}

	data, err := json.MarshalIndent(dto, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

// Decode parses a document produced by Encode. Summaries are recomputed.
func Decode(data []byte) (*ComparisonReport, error) {
	var dto reportDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if dto.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, want %d", ErrInvalidReport, dto.SchemaVersion, SchemaVersion)
	}
	if score := dto.Comparison.AlignmentScore; score < 0 || score > 100 {
		return nil, fmt.Errorf("%w: alignmentScore %d out of range", ErrInvalidReport, score)
	}

	generatedAt, err := time.Parse(time.RFC3339Nano, dto.Metadata.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: generatedAt: %v", ErrInvalidReport, err)
	}

	actual, err := decodeTransfers(dto.Actual.Transfers)
	if err != nil {
		return nil, fmt.Errorf("%w: actual: %v", ErrInvalidReport, err)
	}
	local, err := decodeTransfers(dto.Local.Transfers)
	if err != nil {
		return nil, fmt.Errorf("%w: local: %v", ErrInvalidReport, err)
	}

	r := &ComparisonReport{
		Metadata: Metadata{
			ReportID:    dto.Metadata.ReportID,
			GeneratedAt: generatedAt,
			TxHash:      dto.Metadata.TxHash,
			Network:     dto.Metadata.Network,
			LocalTxHash: dto.Metadata.LocalTxHash,
		},
		Actual: ActualSection{
			Transfers:        actual,
			CallTraceExcerpt: dto.Actual.CallTraceExcerpt,
			Error:            dto.Actual.Error,
			UsedCache:        dto.Actual.UsedCache,
		},
		Local: LocalSection{
			Transfers:    local,
			CustomEvents: dto.Local.CustomEvents,
		},
		Comparison: verification.Comparison{
			AlignmentScore: dto.Comparison.AlignmentScore,
			Discrepancies:  dto.Comparison.Discrepancies,
		},
		Summaries: Summarize(actual, local),
	}

	for _, v := range dto.Comparison.Victims {
		vc, err := decodeVictim(v)
		if err != nil {
			return nil, fmt.Errorf("%w: victim %s: %v", ErrInvalidReport, v.VictimID, err)
		}
		r.Comparison.Victims = append(r.Comparison.Victims, vc)
	}

	g, err := decodeFlashMint(dto.Comparison.FlashMint)
	if err != nil {
		return nil, fmt.Errorf("%w: flashMint: %v", ErrInvalidReport, err)
	}
	r.Comparison.FlashMint = g
	return r, nil
}

func encodeTransfers(evs []domain.TransferEvent) []transferDTO {
	out := make([]transferDTO, 0, len(evs))
	for _, ev := range evs {
		out = append(out, transferDTO{
			Token:  ev.Token.Hex(),
			From:   ev.From.Hex(),
			To:     ev.To.Hex(),
			Value:  bigString(ev.Value),
			Origin: ev.Origin.String(),
		})
	}
	return out
}

func decodeTransfers(dtos []transferDTO) ([]domain.TransferEvent, error) {
	out := make([]domain.TransferEvent, 0, len(dtos))
	for i, d := range dtos {
		token, err := parseAddress(d.Token)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: token: %w", i, err)
		}
		from, err := parseAddress(d.From)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: from: %w", i, err)
		}
		to, err := parseAddress(d.To)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: to: %w", i, err)
		}
		value, err := parseBig(d.Value)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: value: %w", i, err)
		}
		origin := domain.Origin(d.Origin)
		if !origin.IsValid() {
			return nil, fmt.Errorf("transfer %d: unknown origin %q", i, d.Origin)
		}
		out = append(out, domain.TransferEvent{Token: token, From: from, To: to, Value: value, Origin: origin})
	}
	return out, nil
}

func decodeVictim(d victimDTO) (verification.VictimComparison, error) {
	localToken, err := parseAddress(d.LocalToken)
	if err != nil {
		return verification.VictimComparison{}, fmt.Errorf("localToken: %w", err)
	}
	actualToken, err := parseAddress(d.ActualToken)
	if err != nil {
		return verification.VictimComparison{}, fmt.Errorf("actualToken: %w", err)
	}
	actual, err := decodeAmounts(d.Actual)
	if err != nil {
		return verification.VictimComparison{}, fmt.Errorf("actual: %w", err)
	}
	reproduced, err := decodeAmounts(d.Reproduced)
	if err != nil {
		return verification.VictimComparison{}, fmt.Errorf("reproduced: %w", err)
	}
	return verification.VictimComparison{
		VictimID:    d.VictimID,
		Label:       d.Label,
		LocalToken:  localToken,
		ActualToken: actualToken,
		Decimals:    d.Decimals,
		Actual:      actual,
		Reproduced:  reproduced,
		Matches:     verification.Matches(d.Matches),
		LocalFound:  verification.Matches(d.LocalFound),
	}, nil
}

func decodeFlashMint(d flashMintDTO) (verification.GlobalCheck, error) {
	localToken, err := parseAddress(d.LocalToken)
	if err != nil {
		return verification.GlobalCheck{}, fmt.Errorf("localToken: %w", err)
	}
	actualToken, err := parseAddress(d.ActualToken)
	if err != nil {
		return verification.GlobalCheck{}, fmt.Errorf("actualToken: %w", err)
	}
	actual, err := parseBig(d.Actual)
	if err != nil {
		return verification.GlobalCheck{}, fmt.Errorf("actual: %w", err)
	}
	reproduced, err := parseBig(d.Reproduced)
	if err != nil {
		return verification.GlobalCheck{}, fmt.Errorf("reproduced: %w", err)
	}
	return verification.GlobalCheck{
		Label:       d.Label,
		LocalToken:  localToken,
		ActualToken: actualToken,
		Decimals:    d.Decimals,
		Actual:      actual,
		Reproduced:  reproduced,
		Matches:     d.Matches,
		LocalFound:  d.LocalFound,
	}, nil
}

func encodeAmounts(a verification.Amounts) amountsDTO {
	return amountsDTO{
		CollateralPulled: bigString(a.CollateralPulled),
		DustReturned:     bigString(a.DustReturned),
		Burned:           bigString(a.Burned),
	}
}

func decodeAmounts(d amountsDTO) (verification.Amounts, error) {
	var (
		a   verification.Amounts
		err error
	)
	if a.CollateralPulled, err = parseBig(d.CollateralPulled); err != nil {
		return a, fmt.Errorf("collateralPulled: %w", err)
	}
	if a.DustReturned, err = parseBig(d.DustReturned); err != nil {
		return a, fmt.Errorf("dustReturned: %w", err)
	}
	if a.Burned, err = parseBig(d.Burned); err != nil {
		return a, fmt.Errorf("burned: %w", err)
	}
	return a, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal integer: %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", s)
	}
	return v, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("not an address: %q", s)
	}
	return common.HexToAddress(s), nil
}
