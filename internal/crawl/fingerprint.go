package crawl

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Separators keep adjacent keys and values from colliding in the digest.
const (
	fpFieldSep = 0x1e
	fpPairSep  = 0x1f
)

// Fingerprint computes a stable content hash over all domain fields. Field
// order is canonicalized before hashing, so two structurally identical
// records always fingerprint identically regardless of extraction order.
func Fingerprint(fields Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{fpPairSep})
		h.Write([]byte(fields[k]))
		h.Write([]byte{fpFieldSep})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Classify compares a freshly computed fingerprint against the stored prior.
// hasPrior is false when no record exists yet for the natural key.
func Classify(prior string, hasPrior bool, fingerprint string) Classification {
	switch {
	case !hasPrior:
		return ClassificationAdded
	case prior == fingerprint:
		return ClassificationUnchanged
	default:
		return ClassificationModified
	}
}

// ShouldRotate implements the rotate-every-N cadence: true after every n-th
// successful fetch. n <= 0 disables cadence rotation.
func ShouldRotate(successCount, n int) bool {
	if n <= 0 {
		return false
	}
	return successCount > 0 && successCount%n == 0
}
