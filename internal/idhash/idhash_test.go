package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestComputeReportID(t *testing.T) {
	tests := []struct {
		name        string
		network     string
		txHash      string
		localTxHash string
		generatedAt int64
	}{
		{"mainnet", "mainnet", "0xabc", "0xdef", 1700000000000},
		{"no local hash", "mainnet", "0xabc", "", 1700000000000},
		{"other network", "arbitrum", "0x123", "0x456", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := ComputeReportID(tt.network, tt.txHash, tt.localTxHash, tt.generatedAt)
			if len(id) != 64 {
				t.Errorf("len = %d, want 64", len(id))
			}
			if _, err := hex.DecodeString(id); err != nil {
				t.Errorf("not hex: %v", err)
			}
			if again := ComputeReportID(tt.network, tt.txHash, tt.localTxHash, tt.generatedAt); again != id {
				t.Errorf("not deterministic: %s != %s", again, id)
			}
		})
	}
}

func TestComputeReportID_KnownValue(t *testing.T) {
	sum := sha256.Sum256([]byte("mainnet|0xabc|0xdef|42"))
	want := hex.EncodeToString(sum[:])

	if got := ComputeReportID("mainnet", "0xabc", "0xdef", 42); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestComputeReportID_CaseInsensitive(t *testing.T) {
	a := ComputeReportID("Mainnet", "0xABC", "0xDEF", 42)
	b := ComputeReportID("mainnet", "0xabc", "0xdef", 42)
	if a != b {
		t.Errorf("hash case changed id: %s != %s", a, b)
	}
}

func TestComputeReportID_Uniqueness(t *testing.T) {
	base := ComputeReportID("mainnet", "0xabc", "0xdef", 42)
	variants := []string{
		ComputeReportID("arbitrum", "0xabc", "0xdef", 42),
		ComputeReportID("mainnet", "0xabd", "0xdef", 42),
		ComputeReportID("mainnet", "0xabc", "0xdee", 42),
		ComputeReportID("mainnet", "0xabc", "0xdef", 43),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base", i)
		}
	}
}

func TestComputeTransferID(t *testing.T) {
	a := ComputeTransferID("r1", "ACTUAL", 0)
	b := ComputeTransferID("r1", "LOCAL", 0)
	c := ComputeTransferID("r1", "ACTUAL", 1)

	if a == b || a == c || b == c {
		t.Error("expected distinct transfer ids")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
}
