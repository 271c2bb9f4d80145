package infra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareOrderedKey(t *testing.T) {
	assert.Equal(t, int64(0), CompareOrderedKey(21, 21))
	assert.Equal(t, int64(-1), CompareOrderedKey(6, 19))
	assert.Equal(t, int64(1), CompareOrderedKey(90, 34))
	assert.Equal(t, int64(-1), CompareOrderedKey("a", "b"))
	assert.Equal(t, int64(1), CompareOrderedKey(uint8('z'), uint8('a')))

	var cmp OrderedKeyComparator[float64] = CompareOrderedKey[float64]
	assert.Equal(t, int64(1), cmp(1.1, 1.0))
}

func TestIsUnorderedKey(t *testing.T) {
	assert.True(t, IsUnorderedKey(math.NaN()))
	assert.True(t, IsUnorderedKey(float32(math.NaN())))
	assert.False(t, IsUnorderedKey(math.Inf(1)))
	assert.False(t, IsUnorderedKey(0))
	assert.False(t, IsUnorderedKey(""))
}
