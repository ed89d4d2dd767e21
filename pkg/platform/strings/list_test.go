package strings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "blank", input: "  ", expected: nil},
		{name: "single", input: "k1:9092", expected: []string{"k1:9092"}},
		{name: "trims and drops empties", input: " a , ,b,", expected: []string{"a", "b"}},
		{name: "keeps first occurrence", input: "b,a,b,c,a", expected: []string{"b", "a", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input, ","))
		})
	}
}

func TestDedupe(t *testing.T) {
	assert.Nil(t, Dedupe(nil, nil))
	assert.Equal(t, []string{"A", "a"}, Dedupe([]string{"A", "a", "A", ""}, nil))
	assert.Equal(t, []string{"a"}, Dedupe([]string{"A", " a "}, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	}))
}
