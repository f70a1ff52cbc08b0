package transform

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalk_VisitsFullSpaceInOrder(t *testing.T) {
	var visited [][]int64
	Walk(nil, []int64{2, 3}, nil, func(upper []int64, lower [][]int64) {
		visited = append(visited, append([]int64(nil), upper...))
		require.Empty(t, lower)
	})
	require.Equal(t, [][]int64{
		{0, 0}, {0, 1}, {0, 2},
		{1, 0}, {1, 1}, {1, 2},
	}, visited)
}

func TestWalk_Strides(t *testing.T) {
	var visited [][]int64
	Walk(nil, []int64{8}, []int64{2}, func(upper []int64, lower [][]int64) {
		visited = append(visited, append([]int64(nil), upper...))
	})
	require.Equal(t, [][]int64{{0}, {2}, {4}, {6}}, visited)
}

// TestWalk_MatchesFullEvaluation is the incremental-delta invariant over a
// whole loop nest: the lower coordinates Walk maintains step by step must
// equal full re-evaluation of every chain at every point.
func TestWalk_MatchesFullEvaluation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	names := []string{"a", "b", "c", "d"}
	for trial := 0; trial < 50; trial++ {
		rank := 2 + rng.Intn(3)
		shape := make([]int64, rank)
		bounds := make([]int64, rank)
		start := make([]int64, rank)
		for i := range shape {
			bounds[i] = 1 + rng.Int63n(4)
			start[i] = rng.Int63n(4)
			shape[i] = bounds[i] + start[i] + 4
		}
		domains := []Domain{
			{Start: start, Chain: []*Map{randomMap(rng, names[:rank], shape)}},
			{Start: make([]int64, rank), Chain: nil},
		}

		steps := 0
		Walk(domains, bounds, nil, func(upper []int64, lower [][]int64) {
			steps++
			abs := make([]int64, rank)
			for i := range abs {
				abs[i] = start[i] + upper[i]
			}
			require.Equal(t, ApplyChain(domains[0].Chain, abs), lower[0])
			require.Equal(t, upper, lower[1])
		})
		require.Equal(t, int(Product(bounds)), steps)
	}
}

// TestWalk_RegisterCopyNest mirrors the copy nest the blockwise GEMM
// lowering generates: an LDS-side chain and a flat register-side chain
// iterated jointly. Every register element must be written exactly once
// and every LDS coordinate must stay in bounds.
func TestWalk_RegisterCopyNest(t *testing.T) {
	const (
		k, kPerThread = 8, 2
		m, mRepeat    = 128, 2
		mPerThread    = 4
		stride        = 64
		kPack         = 4
	)
	lds := gemmTileMap(t, k, mRepeat, m/mRepeat, stride, m, kPack)

	regSize := int64(kPerThread * mRepeat * mPerThread * kPack)
	regBuilder := NewBottomUp([]string{"raw"}, []int64{regSize})
	regBuilder.Unmerge([]string{"k", "mRepeat", "mPerThread", "kpack"}, []int{0, 1, 2, 3}, "raw",
		[]int64{kPerThread, mRepeat, mPerThread, kPack})
	reg := regBuilder.Get()

	threadOffset := int64(32)
	domains := []Domain{
		{Start: []int64{0, 0, threadOffset, 0}, Chain: []*Map{lds}},
		{Start: []int64{0, 0, 0, 0}, Chain: []*Map{reg}},
	}

	written := make(map[int64]bool)
	Walk(domains, []int64{kPerThread, mRepeat, mPerThread, kPack}, nil,
		func(upper []int64, lower [][]int64) {
			ldsCoord, regCoord := lower[0], lower[1]
			require.Len(t, ldsCoord, 3)
			require.True(t, ldsCoord[0] >= 0 && ldsCoord[0] < k)
			require.True(t, ldsCoord[1] >= 0 && ldsCoord[1] < m)
			require.True(t, ldsCoord[2] >= 0 && ldsCoord[2] < kPack)
			require.False(t, written[regCoord[0]], "register %d written twice", regCoord[0])
			written[regCoord[0]] = true
		})
	require.Len(t, written, int(regSize))
}
