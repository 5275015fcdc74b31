package utils

import (
	"crypto/rand"
	"fmt"
	"time"
)

const referenceCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateClaimNumber builds a human-readable claim number: CLM-YYYYMMDD-XXXXXX.
// Ambiguous characters (0/O, 1/I) are left out so numbers survive being read over the phone.
func GenerateClaimNumber(now time.Time) string {
	return GenerateReference("CLM", now, 6)
}

// GenerateReference returns PREFIX-YYYYMMDD-<n random chars>.
func GenerateReference(prefix string, now time.Time, n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	for i := range buf {
		buf[i] = referenceCharset[int(buf[i])%len(referenceCharset)]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), string(buf))
}
