// waveir-lower builds a demonstration blockwise-GEMM module from flags,
// runs the blockwise-to-threadwise lowering pass on it and prints the IR
// before and after.
//
// Example:
//
//	waveir-lower -m=128 -n=64 -k=8 -m_per_wave=128 -n_per_wave=64
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/waveir/waveir/ir"
	"github.com/waveir/waveir/lower"
	"github.com/waveir/waveir/xdlops"
)

var (
	flagM     = flag.Int64("m", 128, "M extent of the blockwise tile.")
	flagN     = flag.Int64("n", 64, "N extent of the blockwise tile.")
	flagK     = flag.Int64("k", 8, "K extent of one blockwise step.")
	flagKPack = flag.Int64("kpack", 1, "Number of K elements packed per LDS vector element.")

	flagMPerWave = flag.Int64("m_per_wave", 64, "M extent one wave computes (instruction-matrix path).")
	flagNPerWave = flag.Int64("n_per_wave", 64, "N extent one wave computes (instruction-matrix path).")

	flagDType = flag.String("dtype", "Float32", "Element type of the A/B tiles: Float32, Float16 or BFloat16.")

	flagVanilla = flag.Bool("vanilla", false,
		"Lower the non-instruction-matrix blockwise GEMM instead of the XDLOPS one.")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 2)
	infoStyle  = lipgloss.NewStyle().Faint(true)
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() > 0 {
		klog.Errorf("Unexpected arguments %v. See 'waveir-lower -help'.", flag.Args())
		os.Exit(1)
	}

	dtype := must.M1(dtypes.DTypeString(*flagDType))
	module := buildDemoModule(dtype)

	fmt.Println(titleStyle.Render("Before lowering"))
	fmt.Println(infoStyle.Render(fmt.Sprintf("tile %dx%dx%d, kpack=%d, %s elements per LDS matrix pair",
		*flagM, *flagN, *flagK, *flagKPack,
		humanize.Comma((*flagM+*flagN)**flagK**flagKPack))))
	fmt.Print(module.String())

	pass := lower.NewPass(xdlops.Default())
	must.M(pass.Run(module))

	fmt.Println(titleStyle.Render("After lowering"))
	fmt.Println(infoStyle.Render(fmt.Sprintf("driver state: %s", pass.State())))
	fmt.Print(module.String())
}

// buildDemoModule assembles the usual kernel epilogue shape: zero-fill the
// accumulators, one blockwise GEMM step and a threadwise writeback copy.
func buildDemoModule(dtype dtypes.DType) *ir.Module {
	m, n, k, kPack := *flagM, *flagN, *flagK, *flagKPack
	module := ir.NewModule()
	b := ir.NewBuilder(module)

	if *flagVanilla {
		blockA := b.GpuAlloc(ir.MakeMemRef(dtype, ir.AddressSpaceWorkgroup, k, m, kPack))
		blockB := b.GpuAlloc(ir.MakeMemRef(dtype, ir.AddressSpaceWorkgroup, k, n, kPack))
		bufferC := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpacePrivate, 8, 8))
		b.Fill(bufferC, b.ConstantScalar(dtypes.Float32, 0))
		zero := b.ConstantIndex(0)
		b.BlockwiseGemm(blockA, blockB, bufferC, zero, zero, ir.BlockwiseGemmAttrs{
			KPerThread: 1, MPerThread: 4, NPerThread: 4,
			MRepeatStride: m / 2, NRepeatStride: n / 2,
		})
		writeback(b, bufferC)
		return module
	}

	matrixA := b.GpuAlloc(ir.MakeMemRef(dtype, ir.AddressSpaceWorkgroup, k*m*kPack))
	matrixB := b.GpuAlloc(ir.MakeMemRef(dtype, ir.AddressSpaceWorkgroup, k*n*kPack))
	bufferA := b.GpuAlloc(ir.MakeMemRef(dtype, ir.AddressSpacePrivate, 2*k*kPack))
	bufferB := b.GpuAlloc(ir.MakeMemRef(dtype, ir.AddressSpacePrivate, 2*k*kPack))
	// Two accumulator vectors per 64x64 quadrant of the per-wave tile.
	numAccumulators := 2 * (*flagMPerWave / 64) * (*flagNPerWave / 64)
	if numAccumulators < 2 {
		numAccumulators = 2
	}
	acc := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpacePrivate, numAccumulators*32))
	b.Fill(acc, b.ConstantScalar(dtypes.Float32, 0))

	accType := ir.VectorType{DType: dtypes.Float32, Len: 32}
	vectorCs := make([]*ir.Value, numAccumulators)
	for i := range vectorCs {
		vectorCs[i] = b.InBoundsLoad(accType, acc, b.ConstantIndex(int64(i)*32))
	}
	zero := b.ConstantIndex(0)
	b.BlockwiseGemmV2(matrixA, matrixB, zero, zero, bufferA, bufferB, vectorCs,
		ir.BlockwiseGemmV2Attrs{
			M: m, N: n, K: k,
			MPerWave: *flagMPerWave, NPerWave: *flagNPerWave,
			KPack: kPack,
		})
	writeback(b, acc)
	return module
}

// writeback appends the threadwise copy moving the accumulator registers
// out to a global buffer.
func writeback(b *ir.Builder, registers *ir.Value) {
	regType := registers.Type().(ir.MemRefType)
	out := b.GpuAlloc(ir.MakeMemRef(regType.DType, ir.AddressSpaceGlobal, 16384))
	coords := make([]*ir.Value, regType.Rank())
	for i := range coords {
		coords[i] = b.ConstantIndex(0)
	}
	b.ThreadwiseCopyV2(registers, out, coords, []*ir.Value{b.ConstantIndex(0)},
		ir.ThreadwiseCopyV2Attrs{Length: 4, RightOobDims: []int64{0}})
}
