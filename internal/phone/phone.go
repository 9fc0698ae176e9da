// Package phone normalises, validates and masks Korean mobile numbers.
package phone

import (
	"regexp"
	"strings"
	"unicode"
)

var mobilePattern = regexp.MustCompile(`^010\d{8}$`)

// Normalize strips everything but digits.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func IsValid(p string) bool {
	return mobilePattern.MatchString(p)
}

// Mask renders 01012345678 as 010-****-5678.
func Mask(p string) string {
	digits := Normalize(p)
	if digits == "" {
		return ""
	}
	if len(digits) < 4 {
		return "****"
	}
	return digits[:3] + "-****-" + digits[len(digits)-4:]
}

// MaskBarcode keeps the last four characters.
func MaskBarcode(code string) string {
	if code == "" {
		return ""
	}
	if len(code) <= 4 {
		return "****"
	}
	return "****" + code[len(code)-4:]
}
