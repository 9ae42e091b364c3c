package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"42", 42, true},
		{"1,234", 1234, true},
		{"1.234", 1234, true},
		{"1 234", 1234, true},
		{"1 234 567", 1234567, true},
		{"1\u00a0234", 1234, true},
		{"4\u202f321 followers", 4321, true},
		{"12'500", 12500, true},
		{"1,234,567", 1234567, true},
		{"1.234.567,8", 1234568, true},
		{"1,234.5", 1235, true},
		{"1,5", 2, true},
		{"1.2K", 1200, true},
		{"1.2k", 1200, true},
		{"12.5k followers", 12500, true},
		{"3M", 3000000, true},
		{"2.5m monthly views", 2500000, true},
		{"1B", 1000000000, true},
		{"1,2 mil", 1200, true},
		{"12 mil seguidores", 12000, true},
		{"1,5 Mio.", 1500000, true},
		{"3 Tsd.", 3000, true},
		{"2 Mrd", 2000000000, true},
		{"3.4万", 34000, true},
		{"1.2億", 120000000, true},
		{"1,234K", 1234, true},
		{"Followers: 987", 987, true},
		{"128 Pins", 128, true},
		{"", 0, false},
		{"Pins", 0, false},
		{"99999999999999999999", 0, false},
		{"9999999999999999B", 0, false},
		{"9.2 billion", 9200000000, true},
		{"—", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
