package transform

import (
	"bytes"
	"encoding/gob"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gemmTileMap builds the LDS re-striding map used by register tiling:
// {k, mRepeat, mPerThread, kpack} -> {k, m, kpack} with
// m = mRepeat*stride + mPerThread.
func gemmTileMap(t *testing.T, k, mRepeat, mPerThread, stride, m, kPack int64) *Map {
	t.Helper()
	b := NewTopDown([]string{"k", "mRepeat", "mPerThread", "kpack"},
		[]int64{k, mRepeat, mPerThread, kPack})
	b.PassThrough("k")
	b.Embed("m", 1, m, []string{"mRepeat", "mPerThread"}, []int64{stride, 1})
	b.PassThroughAt("kpack", 2, "kpack")
	return b.Get()
}

func TestTopDown_Apply(t *testing.T) {
	m := gemmTileMap(t, 8, 2, 64, 64, 128, 4)
	require.Equal(t, 4, m.UpperRank())
	require.Equal(t, 3, m.LowerRank())
	require.Equal(t, []int64{8, 128, 4}, m.LowerShape())
	require.Equal(t, []string{"k", "m", "kpack"}, m.LowerNames())

	assert.Equal(t, []int64{0, 0, 0}, m.Apply([]int64{0, 0, 0, 0}))
	assert.Equal(t, []int64{3, 64, 2}, m.Apply([]int64{3, 1, 0, 2}))
	assert.Equal(t, []int64{7, 127, 3}, m.Apply([]int64{7, 1, 63, 3}))
}

func TestTopDown_EmbedRejectsOutOfBounds(t *testing.T) {
	// Maximum coordinate 1*64 + 63 = 127 fits in 128.
	require.NotPanics(t, func() { gemmTileMap(t, 8, 2, 64, 64, 128, 1) })

	// Stride 65 pushes the maximum coordinate to 128: rejected.
	require.Panics(t, func() { gemmTileMap(t, 8, 2, 64, 65, 128, 1) })

	// Extent shrunk below the maximum coordinate: rejected.
	require.Panics(t, func() { gemmTileMap(t, 8, 2, 64, 64, 127, 1) })
}

// TestEmbed_MaxCoordinateProperty checks that for every embed the builder
// accepts, the maximum producible lower coordinate stays below the lower
// extent.
func TestEmbed_MaxCoordinateProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		nDims := 1 + rng.Intn(3)
		names := []string{"a", "b", "c"}[:nDims]
		extents := make([]int64, nDims)
		coeffs := make([]int64, nDims)
		var maxCoord int64
		for i := range extents {
			extents[i] = 1 + rng.Int63n(8)
			coeffs[i] = rng.Int63n(16)
			maxCoord += (extents[i] - 1) * coeffs[i]
		}
		lowerExtent := maxCoord + 1 + rng.Int63n(4)

		b := NewTopDown(names, extents)
		b.Embed("flat", 0, lowerExtent, names, coeffs)
		m := b.Get()

		topCorner := make([]int64, nDims)
		for i := range topCorner {
			topCorner[i] = extents[i] - 1
		}
		lower := m.Apply(topCorner)
		require.Less(t, lower[0], lowerExtent)
	}
}

func TestBottomUp_UnmergeRowMajor(t *testing.T) {
	b := NewBottomUp([]string{"raw"}, []int64{2 * 3 * 4})
	b.Unmerge([]string{"x", "y", "z"}, []int{0, 1, 2}, "raw", []int64{2, 3, 4})
	m := b.Get()

	require.Equal(t, []int64{2, 3, 4}, m.UpperShape())
	// Row-major: z moves fastest.
	assert.Equal(t, []int64{0}, m.Apply([]int64{0, 0, 0}))
	assert.Equal(t, []int64{1}, m.Apply([]int64{0, 0, 1}))
	assert.Equal(t, []int64{4}, m.Apply([]int64{0, 1, 0}))
	assert.Equal(t, []int64{12}, m.Apply([]int64{1, 0, 0}))
	assert.Equal(t, []int64{23}, m.Apply([]int64{1, 2, 3}))
}

func TestBottomUp_UnmergeRejectsWrongProduct(t *testing.T) {
	b := NewBottomUp([]string{"raw"}, []int64{24})
	require.Panics(t, func() {
		b.Unmerge([]string{"x", "y"}, []int{0, 1}, "raw", []int64{2, 3})
	})
}

func TestBuilder_RejectsIncompleteSpaces(t *testing.T) {
	// An upper dimension never mapped is a construction bug.
	b := NewTopDown([]string{"k", "m"}, []int64{4, 8})
	b.PassThrough("k")
	require.Panics(t, func() { b.Get() })

	// Duplicate dimension names are rejected up-front.
	require.Panics(t, func() { NewTopDown([]string{"k", "k"}, []int64{4, 4}) })
}

// randomMap builds a random valid map with the given upper rank, returning
// it together with its upper shape.
func randomMap(rng *rand.Rand, upperNames []string, upperShape []int64) *Map {
	b := NewTopDown(upperNames, upperShape)
	if rng.Intn(2) == 0 && len(upperNames) > 1 {
		// Embed all upper dims into one flat dim plus pass-throughs.
		nEmbed := 2
		coeffs := make([]int64, nEmbed)
		var maxCoord int64
		for i := 0; i < nEmbed; i++ {
			coeffs[i] = 1 + rng.Int63n(8)
			maxCoord += (upperShape[i] - 1) * coeffs[i]
		}
		b.Embed("flat", 0, maxCoord+1+rng.Int63n(8), upperNames[:nEmbed], coeffs)
		for i := nEmbed; i < len(upperNames); i++ {
			b.PassThroughAt(upperNames[i], i-nEmbed+1, upperNames[i])
		}
	} else {
		for i, name := range upperNames {
			b.PassThroughAt(name, i, name)
		}
	}
	return b.Get()
}

// TestApplyDelta_MatchesApply is the incremental-update equivalence
// property: stepping a map by coordinate deltas must land exactly where a
// full evaluation lands.
func TestApplyDelta_MatchesApply(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"a", "b", "c", "d"}
	for trial := 0; trial < 100; trial++ {
		rank := 2 + rng.Intn(3)
		shape := make([]int64, rank)
		for i := range shape {
			shape[i] = 2 + rng.Int63n(6)
		}
		m := randomMap(rng, names[:rank], shape)

		prev := make([]int64, rank)
		lower := m.Apply(prev)
		for step := 0; step < 50; step++ {
			next := make([]int64, rank)
			for i := range next {
				next[i] = rng.Int63n(shape[i])
			}
			lower = m.ApplyDelta(prev, next, lower)
			require.Equal(t, m.Apply(next), lower, "trial %d step %d", trial, step)
			prev = next
		}
	}
}

func TestMap_GobRoundTrip(t *testing.T) {
	m := gemmTileMap(t, 8, 2, 64, 64, 128, 4)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(m))
	var decoded Map
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))

	require.Equal(t, m.UpperShape(), decoded.UpperShape())
	require.Equal(t, m.LowerNames(), decoded.LowerNames())
	for _, upper := range [][]int64{{0, 0, 0, 0}, {3, 1, 17, 2}, {7, 1, 63, 3}} {
		assert.Equal(t, m.Apply(upper), decoded.Apply(upper))
	}
}
