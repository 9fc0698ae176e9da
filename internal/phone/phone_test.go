package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAndValidate(t *testing.T) {
	tests := []struct {
		raw   string
		norm  string
		valid bool
	}{
		{"010-1234-5678", "01012345678", true},
		{" 010 1234 5678 ", "01012345678", true},
		{"01112345678", "01112345678", false},
		{"0101234567", "0101234567", false},
		{"", "", false},
		{"abc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			n := Normalize(tt.raw)
			assert.Equal(t, tt.norm, n)
			assert.Equal(t, tt.valid, IsValid(n))
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "010-****-5678", Mask("010-1234-5678"))
	assert.Equal(t, "****", Mask("12"))
	assert.Equal(t, "", Mask(""))
}

func TestMaskBarcode(t *testing.T) {
	assert.Equal(t, "****9012", MaskBarcode("123456789012"))
	assert.Equal(t, "****", MaskBarcode("1234"))
	assert.Equal(t, "", MaskBarcode(""))
}
