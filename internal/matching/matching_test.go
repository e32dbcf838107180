package matching

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txrecon/internal/domain"
)

var (
	usdc  = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	dai   = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func ev(token common.Address, v int64, to common.Address) domain.TransferEvent {
	return domain.TransferEvent{Token: token, From: alice, To: to, Value: big.NewInt(v), Origin: domain.OriginActual}
}

func TestToleranceWindow(t *testing.T) {
	tests := []struct {
		name   string
		target *big.Int
		want   int64
	}{
		{"nil", nil, 0},
		{"zero", big.NewInt(0), 0},
		{"negative", big.NewInt(-500), 0},
		{"below divisor", big.NewInt(1), 1},
		{"just under divisor", big.NewInt(399), 1},
		{"exact multiple", big.NewInt(400), 2},
		{"floor", big.NewInt(25_660_570_000), 128_302_850},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToleranceWindow(tt.target).Int64())
		})
	}
}

func TestFindClosest_Boundary(t *testing.T) {
	target := big.NewInt(25_660_570_000)
	tol := big.NewInt(128)

	tests := []struct {
		name  string
		value int64
		found bool
	}{
		{"exact", 25_660_570_000, true},
		{"within above", 25_660_570_050, true},
		{"within below", 25_660_569_950, true},
		{"on boundary", 25_660_570_128, true},
		{"past boundary", 25_660_570_129, false},
		{"far", 25_660_570_200, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindClosest([]domain.TransferEvent{ev(usdc, tt.value, bob)}, usdc, target, tol)
			assert.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.value, got.Value.Int64())
			}
		})
	}
}

func TestFindClosest_PicksMinimalDiff(t *testing.T) {
	cands := []domain.TransferEvent{
		ev(usdc, 1_000_040, alice),
		ev(dai, 1_000_000, alice), // wrong token
		ev(usdc, 999_990, bob),
		ev(usdc, 1_000_003, alice),
	}
	got, ok := FindClosest(cands, usdc, big.NewInt(1_000_000), big.NewInt(5_000))
	require.True(t, ok)
	assert.Equal(t, int64(1_000_003), got.Value.Int64())
}

func TestFindClosest_TieGoesToFirstSeen(t *testing.T) {
	first := ev(usdc, 1_010, alice)
	second := ev(usdc, 990, bob)

	got, ok := FindClosest([]domain.TransferEvent{first, second}, usdc, big.NewInt(1_000), big.NewInt(20))
	require.True(t, ok)
	assert.Equal(t, alice, got.To)

	got, ok = FindClosest([]domain.TransferEvent{second, first}, usdc, big.NewInt(1_000), big.NewInt(20))
	require.True(t, ok)
	assert.Equal(t, bob, got.To)
}

func TestFindClosest_ZeroToleranceIsExact(t *testing.T) {
	cands := []domain.TransferEvent{ev(usdc, 2, alice), ev(usdc, 1, bob)}

	got, ok := FindClosest(cands, usdc, big.NewInt(1), big.NewInt(0))
	require.True(t, ok)
	assert.Equal(t, bob, got.To)

	_, ok = FindClosest(cands, usdc, big.NewInt(3), big.NewInt(0))
	assert.False(t, ok)
}

func TestFindClosest_NoCandidates(t *testing.T) {
	_, ok := FindClosest(nil, usdc, big.NewInt(1), big.NewInt(1))
	assert.False(t, ok)

	_, ok = FindClosest([]domain.TransferEvent{ev(dai, 1, bob)}, usdc, big.NewInt(1), big.NewInt(1))
	assert.False(t, ok)
}

func TestFindClosest_NilTargetMatchesZeroValue(t *testing.T) {
	got, ok := FindClosest([]domain.TransferEvent{ev(usdc, 0, bob)}, usdc, nil, nil)
	require.True(t, ok)
	assert.Equal(t, bob, got.To)
}

func TestFindExact(t *testing.T) {
	cands := []domain.TransferEvent{ev(usdc, 7, alice), ev(usdc, 7, bob)}
	got, ok := FindExact(cands, usdc, big.NewInt(7))
	require.True(t, ok)
	assert.Equal(t, alice, got.To)

	_, ok = FindExact(cands, usdc, big.NewInt(8))
	assert.False(t, ok)
}
