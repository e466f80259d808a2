package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscrete(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		total    int
		expected int
	}{
		{"first of three", 0, 3, 0},
		{"middle of three", 1, 3, 50},
		{"last of three", 2, 3, 100},
		{"second of four", 1, 4, 33},
		{"third of four", 2, 4, 67},
		{"single step", 0, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Discrete(tt.index, tt.total))
		})
	}
}

func TestContinuous(t *testing.T) {
	assert.InDelta(t, 0.0, Continuous(0, 7, 0), 1e-9)
	assert.InDelta(t, 50.0/7, Continuous(0, 7, 50), 1e-9)
	assert.InDelta(t, 100.0*3.5/7, Continuous(3, 7, 50), 1e-9)
	assert.InDelta(t, 100.0, Continuous(6, 7, 100), 1e-9)
	assert.InDelta(t, 0.0, Continuous(0, 0, 10), 1e-9)
}
