package verification

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a raw integer amount with the given decimal precision,
// trimming trailing zeros. Nil renders as "0".
func FormatAmount(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}
