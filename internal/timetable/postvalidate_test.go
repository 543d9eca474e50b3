package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairsCleanly(t *testing.T) {
	assert.True(t, pairsCleanly(nil))
	assert.True(t, pairsCleanly([]int{0, 1}))
	assert.True(t, pairsCleanly([]int{0, 1, 3, 4}))
	assert.False(t, pairsCleanly([]int{0}))
	assert.False(t, pairsCleanly([]int{0, 2}))
	assert.False(t, pairsCleanly([]int{0, 1, 2}))
	assert.False(t, pairsCleanly([]int{1, 2, 3, 5}))
}
