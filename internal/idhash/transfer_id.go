package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTransferID computes a deterministic transfer_id using SHA256.
// Formula: SHA256(report_id|origin|index)
// Index is the transfer's position within its origin's list.
func ComputeTransferID(
	reportID string,
	origin string,
	index int,
) string {
	data := fmt.Sprintf("%s|%s|%d", reportID, origin, index)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
