package detection

import (
	"math"
	"strings"
	"unicode"
)

// corporate suffixes that vary between statements for the same provider
var noiseSuffixes = []string{"inc", "llc", "ltd", "corp", "co", "com", "www"}

// NormalizeMerchant reduces a statement merchant string to a stable key:
// lower case, alphanumerics and single spaces only, trailing corporate
// suffixes and store numbers stripped. "NETFLIX.COM  *1234" and
// "Netflix Inc" both normalize to "netflix".
func NormalizeMerchant(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	parts := strings.Fields(b.String())
	// drop trailing noise tokens: pure numbers and corporate suffixes
	for len(parts) > 1 {
		last := parts[len(parts)-1]
		if isNumeric(last) || isNoiseSuffix(last) {
			parts = parts[:len(parts)-1]
			continue
		}
		break
	}
	return strings.Join(parts, " ")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func isNoiseSuffix(s string) bool {
	for _, suffix := range noiseSuffixes {
		if s == suffix {
			return true
		}
	}
	return false
}

// AmountBucket maps an absolute amount onto a geometric bucket index sized
// by the configured tolerance, so amounts within the tolerance of each
// other land in the same fingerprint bucket.
func AmountBucket(amount, tolerance float64) int {
	abs := math.Abs(amount)
	if abs < 0.01 {
		return 0
	}
	return int(math.Round(math.Log(abs) / math.Log(1+tolerance)))
}
