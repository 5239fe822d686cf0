// Package idhash computes deterministic identifiers for trades and runs.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ComputeTradeID computes a deterministic trade id using SHA256.
// Formula: SHA256(symbol|side|timestamp|sequence)
// Returns hex-encoded hash (64 characters). The sequence number
// disambiguates multiple fills at the same timestamp.
func ComputeTradeID(symbol, side string, timestamp int64, sequence int) string {
	data := fmt.Sprintf("%s|%s|%d|%d", symbol, side, timestamp, sequence)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeOrderID computes a deterministic order id using SHA256.
// Formula: SHA256(symbol|direction|triggerPrice|sequence)
func ComputeOrderID(symbol, direction string, triggerPrice float64, sequence int) string {
	data := fmt.Sprintf("%s|%s|%.8f|%d", symbol, direction, triggerPrice, sequence)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// NewRunID returns a random identifier for a run. Runs are not
// deterministic entities, so a UUID is fine here.
func NewRunID() string {
	return uuid.NewString()
}
