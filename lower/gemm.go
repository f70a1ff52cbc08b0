package lower

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/waveir/waveir/ir"
	"github.com/waveir/waveir/transform"
)

// blockwiseGemmPattern lowers the non-XDLOPS wave.blockwise_gemm into an
// outer K loop that stages LDS tiles into private register buffers and
// issues the threadwise GEMM primitive per step.
type blockwiseGemmPattern struct{}

func (blockwiseGemmPattern) OpType() ir.OpType { return ir.OpTypeBlockwiseGemm }

func (blockwiseGemmPattern) MatchAndRewrite(op *ir.Op, rw *ir.Rewriter) error {
	blockA := op.Operand(0)
	blockB := op.Operand(1)
	bufferC := op.Operand(2)
	threadOffsetA := op.Operand(3)
	threadOffsetB := op.Operand(4)
	attrs := ir.AttrsOf[ir.BlockwiseGemmAttrs](op)

	blockAType := blockA.Type().(ir.MemRefType)
	blockBType := blockB.Type().(ir.MemRefType)
	bufferCType := bufferC.Type().(ir.MemRefType)
	elementType := bufferCType.DType

	k := blockAType.Shape[0]
	m := blockAType.Shape[1]
	n := blockBType.Shape[1]
	kPack := blockAType.Shape[2]

	mC := bufferCType.Shape[0]
	nC := bufferCType.Shape[1]
	kPerThread := attrs.KPerThread
	mPerThread := attrs.MPerThread
	nPerThread := attrs.NPerThread

	// Repeat count is the per-thread output extent over the per-thread tile
	// extent; a non-dividing configuration is a tuning-parameter contract
	// violation, caught here rather than producing a short copy.
	if mC%mPerThread != 0 || nC%nPerThread != 0 {
		exceptions.Panicf("blockwise_gemm per-thread tile %dx%d does not divide output tile %dx%d",
			mPerThread, nPerThread, mC, nC)
	}
	mRepeat := mC / mPerThread
	nRepeat := nC / nPerThread
	if m%mRepeat != 0 || n%nRepeat != 0 {
		exceptions.Panicf("blockwise_gemm repeat counts %d/%d do not divide LDS extents %d/%d",
			mRepeat, nRepeat, m, n)
	}
	if k%kPerThread != 0 {
		exceptions.Panicf("blockwise_gemm kPerThread %d does not divide K %d", kPerThread, k)
	}

	klog.V(2).Infof("blockwise_gemm: M=%d MRepeat=%d MPerThread=%d N=%d NRepeat=%d NPerThread=%d",
		mC, mRepeat, mPerThread, nC, nRepeat, nPerThread)

	// Re-stride the LDS matrices to express the repeat x per-thread
	// decomposition of the register tiling.
	strideLDSBufferA := transform.NewTopDown(
		[]string{"k", "mRepeat", "mPerThread", "kpack"},
		[]int64{k, mRepeat, m / mRepeat, kPack})
	strideLDSBufferA.PassThrough("k")
	strideLDSBufferA.Embed("m", 1, m, []string{"mRepeat", "mPerThread"},
		[]int64{attrs.MRepeatStride, 1})
	strideLDSBufferA.PassThroughAt("kpack", 2, "kpack")
	ldsViewA := strideLDSBufferA.Get()

	strideLDSBufferB := transform.NewTopDown(
		[]string{"k", "nRepeat", "nPerThread", "kpack"},
		[]int64{k, nRepeat, n / nRepeat, kPack})
	strideLDSBufferB.PassThrough("k")
	strideLDSBufferB.Embed("n", 1, n, []string{"nRepeat", "nPerThread"},
		[]int64{attrs.NRepeatStride, 1})
	strideLDSBufferB.PassThroughAt("kpack", 2, "kpack")
	ldsViewB := strideLDSBufferB.Get()

	// Private register buffers for the per-thread A and B tiles; they live
	// only inside the generated loop body.
	threadANumRegisters := kPerThread * mC * kPack
	threadBNumRegisters := kPerThread * nC * kPack
	threadA := rw.GpuAlloc(ir.MakeMemRef(elementType, ir.AddressSpacePrivate, threadANumRegisters))
	threadB := rw.GpuAlloc(ir.MakeMemRef(elementType, ir.AddressSpacePrivate, threadBNumRegisters))

	// Multi-dimensional views of the flat register buffers for the copies.
	viewA := transform.NewBottomUp([]string{"raw"}, []int64{threadANumRegisters})
	viewA.Unmerge([]string{"k", "mRepeat", "mPerThread", "kpack"}, []int{0, 1, 2, 3}, "raw",
		[]int64{kPerThread, mRepeat, mPerThread, kPack})
	registerViewA := viewA.Get()

	viewB := transform.NewBottomUp([]string{"raw"}, []int64{threadBNumRegisters})
	viewB.Unmerge([]string{"k", "nRepeat", "nPerThread", "kpack"}, []int{0, 1, 2, 3}, "raw",
		[]int64{kPerThread, nRepeat, nPerThread, kPack})
	registerViewB := viewB.Get()

	klog.V(2).Infof("blockwise_gemm outer loop: k=%d kPerThread=%d", k, kPerThread)

	zero := rw.ConstantIndex(0)
	loop := rw.AffineFor(0, k, kPerThread)
	rw.SetInsertionPointToStart(loop.Body())
	kOffset := loop.InductionVar()

	registerStartCoords := []*ir.Value{zero, zero, zero, zero}

	copyALoop := rw.TransformingFor(
		[][]*ir.Value{{kOffset, zero, threadOffsetA, zero}, registerStartCoords},
		[][]*transform.Map{{ldsViewA}, {registerViewA}},
		[]int64{kPerThread, mRepeat, mPerThread, kPack}, nil,
		true /*forceUnroll*/, true /*useIndexDiffs*/)
	rw.SetInsertionPointToStart(copyALoop.Body())
	aCopy := rw.Load(blockA, copyALoop.LowerCoords(0)...)
	aCast := rw.Convert(aCopy, elementType)
	rw.Store(aCast, threadA, copyALoop.LowerCoords(1)...)

	rw.SetInsertionPointToEnd(loop.Body())
	copyBLoop := rw.TransformingFor(
		[][]*ir.Value{{kOffset, zero, threadOffsetB, zero}, registerStartCoords},
		[][]*transform.Map{{ldsViewB}, {registerViewB}},
		[]int64{kPerThread, nRepeat, nPerThread, kPack}, nil,
		true /*forceUnroll*/, true /*useIndexDiffs*/)
	rw.SetInsertionPointToStart(copyBLoop.Body())
	bCopy := rw.Load(blockB, copyBLoop.LowerCoords(0)...)
	bCast := rw.Convert(bCopy, elementType)
	rw.Store(bCast, threadB, copyBLoop.LowerCoords(1)...)

	// Zero-cost re-views of the register buffers as [k, m, kpack] /
	// [k, n, kpack], then the threadwise GEMM accumulating into C.
	rw.SetInsertionPointToEnd(loop.Body())
	reshapedA := reshapeBuffer(rw, threadA, []string{"k", "m", "kpack"},
		[]int64{kPerThread, mC, kPack})
	reshapedB := reshapeBuffer(rw, threadB, []string{"k", "n", "kpack"},
		[]int64{kPerThread, nC, kPack})
	rw.ThreadwiseGemm(reshapedA, reshapedB, bufferC)

	rw.ReplaceOp(op)
	return nil
}

// reshapeBuffer re-views a flat register buffer under the given named
// shape. No data moves: the result is a transform view of the same
// storage.
func reshapeBuffer(rw *ir.Rewriter, buffer *ir.Value, names []string, shape []int64) *ir.Value {
	flat := buffer.Type().(ir.MemRefType)
	view := transform.NewBottomUp([]string{"raw"}, []int64{flat.NumElements()})
	positions := make([]int, len(names))
	for i := range positions {
		positions[i] = i
	}
	view.Unmerge(names, positions, "raw", shape)
	return rw.Transform(buffer, view.Get())
}
