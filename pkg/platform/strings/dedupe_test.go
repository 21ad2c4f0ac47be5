package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupe(t *testing.T) {
	tests := []struct {
		name  string
		fn    func([]string) []string
		input []string
		want  []string
	}{
		{"nil slice", DedupeAndTrim, nil, nil},
		{"empty slice", DedupeAndTrim, []string{}, []string{}},
		{"trims and keeps first occurrence", DedupeAndTrim, []string{" foo ", "bar", "foo", "", "  "}, []string{"foo", "bar"}},
		{"case is significant without folding", DedupeAndTrim, []string{"Foo", "foo"}, []string{"Foo", "foo"}},
		{"lower folds names", DedupeAndTrimLower, []string{" Kafka", "kafka ", "MEMORY"}, []string{"kafka", "memory"}},
		{"upper folds tickers", DedupeAndTrimUpper, []string{"usdc", " USDC", "eurc"}, []string{"USDC", "EURC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.input))
		})
	}
}
