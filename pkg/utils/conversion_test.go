package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt(t *testing.T) {
	assert.Equal(t, 5, ToInt(float64(5), 0))
	assert.Equal(t, 5, ToInt(5, 0))
	assert.Equal(t, 5, ToInt("5", 0))
	assert.Equal(t, 7, ToInt("not a number", 7))
	assert.Equal(t, 7, ToInt(nil, 7))
}

func TestToFloat(t *testing.T) {
	assert.InDelta(t, 0.5, ToFloat(0.5, 0), 0.001)
	assert.InDelta(t, 2, ToFloat(2, 0), 0.001)
	assert.InDelta(t, 0.5, ToFloat("0.5", 0), 0.001)
	assert.InDelta(t, 1.5, ToFloat(true, 1.5), 0.001)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hel...", Truncate("hello world", 3))
	assert.Equal(t, "", Truncate("hello", 0))
	assert.Equal(t, "héll...", Truncate("héllo wörld", 4))
}
