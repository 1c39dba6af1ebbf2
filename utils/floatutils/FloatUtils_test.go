package floatutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r1"
)

func TestClip(t *testing.T) {
	assert.Equal(t, 2.0, Clip(5, -1, 2))
	assert.Equal(t, -1.0, Clip(-5, -1, 2))
	assert.Equal(t, 0.5, Clip(0.5, -1, 2))
	assert.True(t, math.IsNaN(Clip(math.NaN(), -1, 2)))
}

func TestClipInterval(t *testing.T) {
	in := r1.Interval{Min: -3, Max: 0}
	assert.Equal(t, -3.0, ClipInterval(-10, in))
	assert.Equal(t, 0.0, ClipInterval(4, in))
}
