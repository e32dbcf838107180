package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeReportID computes a deterministic report_id using SHA256.
// Formula: SHA256(network|tx_hash|local_tx_hash|generated_at)
// Hashes are lower-cased first. Returns hex-encoded hash (64 characters).
func ComputeReportID(
	network string,
	txHash string,
	localTxHash string,
	generatedAt int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		strings.ToLower(network),
		strings.ToLower(txHash),
		strings.ToLower(localTxHash),
		generatedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
