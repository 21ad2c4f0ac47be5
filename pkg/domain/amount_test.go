package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeeOf(t *testing.T) {
	tests := []struct {
		name  string
		total uint64
		bps   BasisPoints
		want  uint64
	}{
		{"quarter percent of a thousand", 1000, 250, 25},
		{"floors to zero on dust", 1, 250, 0},
		{"five percent", 1000, 500, 50},
		{"zero rate", 1000, 0, 0},
		{"full rate", 1000, 10_000, 1000},
		{"rate above full is capped", 1000, 20_000, 1000},
		{"no overflow on max total", math.MaxUint64, 10_000, math.MaxUint64},
		{"large total floors", math.MaxUint64, 1, math.MaxUint64 / 10_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FeeOf(tt.total, tt.bps))
		})
	}
}

func TestMulAmount(t *testing.T) {
	got, ok := MulAmount(10, 100)
	assert.True(t, ok)
	assert.Equal(t, uint64(1000), got)

	_, ok = MulAmount(math.MaxUint64, 2)
	assert.False(t, ok)

	_, ok = AddAmount(math.MaxUint64, 1)
	assert.False(t, ok)
}

func TestBasisPointsValid(t *testing.T) {
	assert.True(t, BasisPoints(10_000).Valid())
	assert.False(t, BasisPoints(10_001).Valid())
}
