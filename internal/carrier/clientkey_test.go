package carrier

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBuildClientKey_Short(t *testing.T) {
	assert.Equal(t, "CMP2026-42", BuildClientKey("CMP2026", 42))
}

func TestBuildClientKey_ExactlyThirty(t *testing.T) {
	seed := strings.Repeat("a", 27)
	key := BuildClientKey(seed, 12)
	assert.Equal(t, seed+"-12", key)
	assert.Len(t, key, MaxClientKeyLen)
}

func TestBuildClientKey_LongIsHashedAndStable(t *testing.T) {
	seed := "SPRING-PROMOTION-2026-GANGNAM-STORE"
	key := BuildClientKey(seed, 123456)

	assert.LessOrEqual(t, len(key), MaxClientKeyLen)
	assert.Equal(t, key, BuildClientKey(seed, 123456))
	assert.NotEqual(t, key, BuildClientKey(seed, 123457))
	assert.True(t, strings.HasPrefix(key, seed[:23]+"-"))
	assert.Len(t, key[24:], 6)
}

func TestBuildClientKey_MultiByteSeed(t *testing.T) {
	seed := strings.Repeat("봄", 12) // 36 bytes
	key := BuildClientKey(seed, 7)

	assert.LessOrEqual(t, len(key), MaxClientKeyLen)
	assert.True(t, utf8.ValidString(key))
}

func TestBuildClientKey_CSSeedFits(t *testing.T) {
	key := BuildClientKey("CMP2026-CS153012", 99)
	assert.Equal(t, "CMP2026-CS153012-99", key)
}
