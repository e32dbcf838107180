package verification

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"txrecon/internal/domain"
)

// ErrInvalidExpectations is returned for a malformed expectations document.
var ErrInvalidExpectations = errors.New("invalid expectations")

type expectationsFile struct {
	TxHash    string        `json:"txHash"`
	Network   string        `json:"network"`
	Victims   []victimFile  `json:"victims"`
	FlashMint flashMintFile `json:"flashMint"`
}

type victimFile struct {
	ID                 string `json:"id"`
	Label              string `json:"label"`
	LocalToken         string `json:"localToken"`
	ActualToken        string `json:"actualToken"`
	Decimals           *uint8 `json:"decimals"`
	ExpectedCollateral string `json:"expectedCollateral"`
	ExpectedDust       string `json:"expectedDust"`
}

type flashMintFile struct {
	Label       string `json:"label"`
	LocalToken  string `json:"localToken"`
	ActualToken string `json:"actualToken"`
	Decimals    *uint8 `json:"decimals"`
	Expected    string `json:"expected"`
}

// LoadExpectations reads an expectations JSON document from path.
func LoadExpectations(path string) (*domain.Expectations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read expectations %s: %w", path, err)
	}
	exp, err := ParseExpectations(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exp, nil
}

// ParseExpectations decodes an expectations document. Amounts are decimal
// strings; an empty amount means zero. Missing decimals stay unset so the
// caller can resolve them from token metadata.
func ParseExpectations(data []byte) (*domain.Expectations, error) {
	var f expectationsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpectations, err)
	}

	exp := &domain.Expectations{TxHash: f.TxHash, Network: f.Network}
	seen := make(map[string]bool, len(f.Victims))
	for i, v := range f.Victims {
		if v.ID == "" {
			return nil, fmt.Errorf("%w: victim %d: missing id", ErrInvalidExpectations, i)
		}
		if seen[v.ID] {
			return nil, fmt.Errorf("%w: duplicate victim id %q", ErrInvalidExpectations, v.ID)
		}
		seen[v.ID] = true

		local, actual, err := tokenPair(v.LocalToken, v.ActualToken)
		if err != nil {
			return nil, fmt.Errorf("%w: victim %s: %v", ErrInvalidExpectations, v.ID, err)
		}
		coll, err := parseAmount(v.ExpectedCollateral)
		if err != nil {
			return nil, fmt.Errorf("%w: victim %s: expectedCollateral: %v", ErrInvalidExpectations, v.ID, err)
		}
		dust, err := parseAmount(v.ExpectedDust)
		if err != nil {
			return nil, fmt.Errorf("%w: victim %s: expectedDust: %v", ErrInvalidExpectations, v.ID, err)
		}
		exp.Victims = append(exp.Victims, domain.VictimSpec{
			ID:                 v.ID,
			Label:              v.Label,
			LocalToken:         local,
			ActualToken:        actual,
			Decimals:           v.Decimals,
			ExpectedCollateral: coll,
			ExpectedDust:       dust,
		})
	}

	local, actual, err := tokenPair(f.FlashMint.LocalToken, f.FlashMint.ActualToken)
	if err != nil {
		return nil, fmt.Errorf("%w: flashMint: %v", ErrInvalidExpectations, err)
	}
	amount, err := parseAmount(f.FlashMint.Expected)
	if err != nil {
		return nil, fmt.Errorf("%w: flashMint: expected: %v", ErrInvalidExpectations, err)
	}
	exp.FlashMint = domain.GlobalCheckSpec{
		Label:       f.FlashMint.Label,
		LocalToken:  local,
		ActualToken: actual,
		Decimals:    f.FlashMint.Decimals,
		Expected:    amount,
	}
	return exp, nil
}

// tokenPair parses both token addresses. An empty local token reuses the
// actual one (reproductions against a fork keep real addresses).
func tokenPair(local, actual string) (common.Address, common.Address, error) {
	if !common.IsHexAddress(actual) {
		return common.Address{}, common.Address{}, fmt.Errorf("bad actualToken %q", actual)
	}
	if local == "" {
		local = actual
	}
	if !common.IsHexAddress(local) {
		return common.Address{}, common.Address{}, fmt.Errorf("bad localToken %q", local)
	}
	return common.HexToAddress(local), common.HexToAddress(actual), nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal integer: %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", s)
	}
	return v, nil
}
