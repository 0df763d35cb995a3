package pacifica

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrecisionOf(t *testing.T) {
	cases := []struct {
		size string
		want int
	}{
		{"0.01", 2},
		{"0.001", 3},
		{"1", 0},
		{"10", 0},
		{"0.100", 1},
		{"0.00000001", 8},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, precisionOf(c.size), "size %q", c.size)
	}
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "612.34", formatFloat(612.34))
	assert.Equal(t, "2", formatFloat(2.0))
	assert.Equal(t, "0.001", formatFloat(0.001))
}
