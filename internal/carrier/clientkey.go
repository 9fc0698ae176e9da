package carrier

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"unicode/utf8"
)

// MaxClientKeyLen is the carrier's correlation id limit in bytes.
const MaxClientKeyLen = 30

const hashSuffixLen = 6

// BuildClientKey returns "{seed}-{recipientID}" when it fits, otherwise the
// seed is trimmed and suffixed with six hex chars of sha1 over the full key.
func BuildClientKey(seed string, recipientID int64) string {
	base := seed + "-" + strconv.FormatInt(recipientID, 10)
	if len(base) <= MaxClientKeyLen {
		return base
	}

	sum := sha1.Sum([]byte(base))
	suffix := hex.EncodeToString(sum[:])[:hashSuffixLen]
	return truncateBytes(seed, MaxClientKeyLen-hashSuffixLen-1) + "-" + suffix
}

// truncateBytes never splits a multi-byte rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
