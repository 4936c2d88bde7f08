package gpu

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/core"
)

func runSchedule(elements []SortElement) {
	for _, p := range Schedule(len(elements)) {
		applyPass(elements, p)
	}
}

func TestScheduleStageCount(t *testing.T) {
	// log2(n) stages, stage s contributing s passes: n=1024 gives 10 stages
	// and 1+2+...+10 = 55 passes.
	assert.Len(t, Schedule(1024), 55)
	assert.Len(t, Schedule(2), 1)
	assert.Empty(t, Schedule(1))
}

func TestSortSmallSizes(t *testing.T) {
	cases := [][]float32{
		{},
		{1},
		{2, 1},
		{1, 2},
		{3, 3, 3, 3},
		{4, -1, 0, 7, -2, 5, 5, 1},
	}
	for _, keys := range cases {
		elements := make([]SortElement, len(keys))
		for i, k := range keys {
			elements[i] = SortElement{Key: k, Index: uint32(i)}
		}
		runSchedule(elements)
		for i := 1; i < len(elements); i++ {
			assert.LessOrEqual(t, elements[i-1].Key, elements[i].Key, "keys %v", keys)
		}
	}
}

func TestSortLargeRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	elements := make([]SortElement, 1024)
	want := make([]float32, len(elements))
	for i := range elements {
		k := float32(rng.NormFloat64() * 10)
		elements[i] = SortElement{Key: k, Index: uint32(i)}
		want[i] = k
	}
	sort.Slice(want, func(a, b int) bool { return want[a] < want[b] })

	runSchedule(elements)
	for i, e := range elements {
		require.Equal(t, want[i], e.Key, "position %d", i)
	}
}

func TestSortKeepsIndexPayload(t *testing.T) {
	elements := []SortElement{
		{Key: 3, Index: 0},
		{Key: 1, Index: 1},
		{Key: 4, Index: 2},
		{Key: 2, Index: 3},
	}
	runSchedule(elements)
	assert.Equal(t, []SortElement{
		{Key: 1, Index: 1},
		{Key: 2, Index: 3},
		{Key: 3, Index: 0},
		{Key: 4, Index: 2},
	}, elements)
}

func TestPaddingSortsToTail(t *testing.T) {
	const n = 17
	padded := core.NextPowerOfTwo(n)
	require.Equal(t, 32, padded)

	rng := rand.New(rand.NewSource(7))
	elements := make([]SortElement, padded)
	for i := 0; i < n; i++ {
		elements[i] = SortElement{Key: float32(rng.NormFloat64()), Index: uint32(i)}
	}
	sentinel := float32(math.Inf(1))
	for i := n; i < padded; i++ {
		elements[i] = SortElement{Key: sentinel, Index: uint32(i)}
	}

	runSchedule(elements)

	// All live indices land in the first n slots, the sentinel padding after.
	seen := map[uint32]bool{}
	for i := 0; i < n; i++ {
		require.Less(t, elements[i].Index, uint32(n))
		assert.False(t, seen[elements[i].Index], "duplicate index %d", elements[i].Index)
		seen[elements[i].Index] = true
	}
	for i := n; i < padded; i++ {
		assert.Equal(t, sentinel, elements[i].Key)
	}
	for i := 1; i < padded; i++ {
		assert.LessOrEqual(t, elements[i-1].Key, elements[i].Key)
	}
}
