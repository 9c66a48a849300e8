package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUniqueAndIncreasing(t *testing.T) {
	const n = 10000
	seen := make(map[int64]struct{}, n)
	prev := int64(-1)
	for i := 0; i < n; i++ {
		id := Generate()
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestSetNodeIDOutOfRange(t *testing.T) {
	SetNodeID(4096)
	assert.EqualValues(t, 1, get().node)
	SetNodeID(7)
	assert.EqualValues(t, 7, get().node)
	SetNodeID(1) // 复位，避免影响其他用例
}
