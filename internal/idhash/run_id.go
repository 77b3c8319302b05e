package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(sid|style|period_start_us|period_end_us|capital_base)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(sid int64, style string, periodStart, periodEnd time.Time, capitalBase float64) string {
	data := fmt.Sprintf("%d|%s|%d|%d|%.6f",
		sid,
		style,
		periodStart.UTC().UnixMicro(),
		periodEnd.UTC().UnixMicro(),
		capitalBase,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTxnID computes a deterministic transaction id using SHA256.
// Formula: SHA256(run_id|sid|amount|dt_us)
func ComputeTxnID(runID string, sid, amount int64, dt time.Time) string {
	data := fmt.Sprintf("%s|%d|%d|%d", runID, sid, amount, dt.UTC().UnixMicro())

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
