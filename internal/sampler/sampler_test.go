package sampler

import (
	"testing"

	"github.com/hqge/sparkle/internal/affine2d"
	"github.com/hqge/sparkle/internal/buffer"
	"github.com/hqge/sparkle/internal/filter"
	"github.com/hqge/sparkle/internal/pixel"
	"github.com/stretchr/testify/require"
)

func newRig(t *testing.T, n int) (*buffer.Store, *affine2d.Store) {
	t.Helper()
	bufs, err := buffer.NewStore(n)
	require.NoError(t, err)
	mats, err := affine2d.NewStore(2)
	require.NoError(t, err)
	return bufs, mats
}

// TestIdentityCopy is invariant #2: sampling through identity with nearest
// and no masking onto a same-sized target reproduces src exactly.
func TestIdentityCopy(t *testing.T) {
	bufs, mats := newRig(t, 2)
	bufs.Reset(0, 6, 5, pixel.RGB)
	bufs.Reset(1, 6, 5, pixel.RGB)

	bufs.AllocateForLoad(0)
	for i := range bufs.Get(0).Pixels {
		bufs.Get(0).Pixels[i] = byte((i * 37) % 256)
	}
	bufs.Get(0).Pixels[0] = 1 // ensure not accidentally blank
	bufs.AllocateForLoad(1)

	Run(bufs, mats, Params{
		SrcBuf: 0, TargetBuf: 1, TMatrix: 0,
		Mask: NoMask{}, Alg: filter.Nearest,
	})

	require.Equal(t, bufs.Get(0).Pixels, bufs.Get(1).Pixels)
}

// TestBoundingBoxTightness is invariant #5: nothing outside the transformed
// corner bbox is touched.
func TestBoundingBoxTightness(t *testing.T) {
	bufs, mats := newRig(t, 2)
	bufs.Reset(0, 10, 10, pixel.Gray)
	bufs.LoadFill(0, pixel.ARGB8{A: 255, R: 255, G: 255, B: 255})

	bufs.Reset(1, 100, 100, pixel.Gray)
	bufs.LoadFill(1, pixel.ARGB8{A: 255, R: 42, G: 42, B: 42}) // sentinel

	mats.Translate(0, 10, 20)

	Run(bufs, mats, Params{
		SrcBuf: 0, TargetBuf: 1, TMatrix: 0,
		Mask: NoMask{}, Alg: filter.Nearest,
	})

	target := bufs.Get(1)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			inBox := x >= 10 && x < 20 && y >= 20 && y < 30
			got := target.Pixels[target.Offset(x, y)]
			if inBox {
				require.Equalf(t, byte(255), got, "x=%d y=%d should be painted", x, y)
			} else {
				require.Equalf(t, byte(42), got, "x=%d y=%d should keep sentinel", x, y)
			}
		}
	}
}

// TestProceduralMaskCorrectness is invariant #6.
func TestProceduralMaskCorrectness(t *testing.T) {
	bufs, mats := newRig(t, 2)
	w, h := 20, 20
	bufs.Reset(0, w, h, pixel.Gray)
	bufs.LoadFill(0, pixel.ARGB8{A: 255, R: 255, G: 255, B: 255})
	bufs.Reset(1, w, h, pixel.Gray)
	bufs.LoadFill(1, pixel.ARGB8{A: 255, R: 1, G: 1, B: 1}) // sentinel

	Run(bufs, mats, Params{
		SrcBuf: 0, TargetBuf: 1, TMatrix: 0,
		Mask: ProceduralMask{XBound: 0.5, SideX: Right, YBound: 0, SideY: Above},
		Alg: filter.Nearest,
	})

	bound := int(float64(w-1) * 0.5)
	target := bufs.Get(1)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			got := target.Pixels[target.Offset(x, y)]
			if x > bound {
				require.Equalf(t, byte(1), got, "x=%d y=%d past boundary should be untouched", x, y)
			}
		}
	}
}

// TestRasterMaskMultiplicativity is invariant #7.
func TestRasterMaskMultiplicativity(t *testing.T) {
	bufs, mats := newRig(t, 3)
	w, h := 3, 30
	bufs.Reset(0, w, h, pixel.ARGB) // src, opaque
	bufs.LoadFill(0, pixel.ARGB8{A: 255, R: 200, G: 200, B: 200})

	bufs.Reset(1, w, h, pixel.ARGB) // target, opaque black
	bufs.LoadFill(1, pixel.ARGB8{A: 255, R: 0, G: 0, B: 0})

	bufs.Reset(2, w, h, pixel.Gray) // mask: three horizontal bands
	bufs.AllocateForLoad(2)
	mask := bufs.Get(2)
	for y := 0; y < h; y++ {
		var v byte
		switch {
		case y < h/3:
			v = 0
		case y < 2*h/3:
			v = 128
		default:
			v = 255
		}
		for x := 0; x < w; x++ {
			mask.Pixels[mask.Offset(x, y)] = v
		}
	}

	Run(bufs, mats, Params{
		SrcBuf: 0, TargetBuf: 1, TMatrix: 0,
		Mask: RasterMask{BufIndex: 2}, Alg: filter.Nearest,
	})

	target := bufs.Get(1)
	sample := func(y int) pixel.ARGB8 {
		return pixel.ReadAt(target.Pixels, target.Offset(1, y), pixel.ARGB)
	}

	band0 := sample(0)
	band1 := sample(h/3 + 1)
	band2 := sample(h - 1)

	require.InDelta(t, 0, float64(band0.R), 2)
	require.InDelta(t, 100, float64(band1.R), 6) // ~200*0.5 over black
	require.InDelta(t, 200, float64(band2.R), 2)
}

// TestOverAlgebra is invariant #8.
func TestOverAlgebra(t *testing.T) {
	bufs, mats := newRig(t, 2)
	bufs.Reset(0, 2, 2, pixel.ARGB)
	bufs.LoadFill(0, pixel.ARGB8{A: 255, R: 9, G: 8, B: 7})
	bufs.Reset(1, 2, 2, pixel.ARGB)
	bufs.LoadFill(1, pixel.ARGB8{A: 255, R: 200, G: 201, B: 202})

	Run(bufs, mats, Params{SrcBuf: 0, TargetBuf: 1, TMatrix: 0, Mask: NoMask{}, Alg: filter.Nearest})

	got := pixel.ReadAt(bufs.Get(1).Pixels, 0, pixel.ARGB)
	require.Equal(t, pixel.ARGB8{A: 255, R: 9, G: 8, B: 7}, got)
}

func TestOverAlgebraTransparentSourceLeavesTargetUnchanged(t *testing.T) {
	bufs, mats := newRig(t, 2)
	bufs.Reset(0, 2, 2, pixel.ARGB)
	bufs.LoadFill(0, pixel.ARGB8{A: 0, R: 9, G: 8, B: 7})
	bufs.Reset(1, 2, 2, pixel.ARGB)
	bufs.LoadFill(1, pixel.ARGB8{A: 255, R: 200, G: 201, B: 202})

	Run(bufs, mats, Params{SrcBuf: 0, TargetBuf: 1, TMatrix: 0, Mask: NoMask{}, Alg: filter.Nearest})

	got := pixel.ReadAt(bufs.Get(1).Pixels, 0, pixel.ARGB)
	require.Equal(t, pixel.ARGB8{A: 255, R: 200, G: 201, B: 202}, got)
}

// scenario S4 from spec §8: a translate that re-centres the source on its
// own middle, a 90-degree rotation about that centre, then a translate to
// the final target position. The source is a non-square 6x10 rectangle so
// the rotated footprint (10x6, centre unchanged) is distinguishable from a
// plain translate — verified by geometry, not exact bytes, per spec.md:211.
func TestScenarioS4RotateAboutCenter(t *testing.T) {
	bufs, mats := newRig(t, 2)
	bufs.Reset(0, 6, 10, pixel.Gray)
	bufs.LoadFill(0, pixel.ARGB8{A: 255, R: 255, G: 255, B: 255})
	bufs.Reset(1, 100, 100, pixel.Gray)
	bufs.LoadFill(1, pixel.ARGB8{A: 255})

	mats.Translate(0, -3, -5) // recentre the 6x10 source on its own middle
	mats.Rotate(0, 90)        // rotate clockwise about that centre
	mats.Translate(0, 50, 50) // place the rotated footprint on the target

	Run(bufs, mats, Params{SrcBuf: 0, TargetBuf: 1, TMatrix: 0, Mask: NoMask{}, Alg: filter.Nearest})

	target := bufs.Get(1)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			inBox := x >= 45 && x < 55 && y >= 47 && y < 53
			want := byte(0)
			if inBox {
				want = 255
			}
			require.Equalf(t, want, target.Pixels[target.Offset(x, y)], "x=%d y=%d", x, y)
		}
	}
}

func TestValidationFatalOnDistinctBuffers(t *testing.T) {
	bufs, mats := newRig(t, 1)
	bufs.Reset(0, 2, 2, pixel.RGB)
	bufs.LoadFill(0, pixel.ARGB8{A: 255})
	require.Panics(t, func() {
		Run(bufs, mats, Params{SrcBuf: 0, TargetBuf: 0, TMatrix: 0, Mask: NoMask{}, Alg: filter.Nearest})
	})
}

func TestValidationFatalOnUnloadedBuffer(t *testing.T) {
	bufs, mats := newRig(t, 2)
	bufs.Reset(0, 2, 2, pixel.RGB)
	bufs.Reset(1, 2, 2, pixel.RGB)
	require.Panics(t, func() {
		Run(bufs, mats, Params{SrcBuf: 0, TargetBuf: 1, TMatrix: 0, Mask: NoMask{}, Alg: filter.Nearest})
	})
}

func TestValidationFatalOnSubareaOutOfBounds(t *testing.T) {
	bufs, mats := newRig(t, 2)
	bufs.Reset(0, 4, 4, pixel.RGB)
	bufs.LoadFill(0, pixel.ARGB8{A: 255})
	bufs.Reset(1, 4, 4, pixel.RGB)
	bufs.LoadFill(1, pixel.ARGB8{A: 255})
	require.Panics(t, func() {
		Run(bufs, mats, Params{
			SrcBuf: 0, TargetBuf: 1, TMatrix: 0,
			SubareaSet: true, SrcX: 2, SrcY: 2, SrcW: 4, SrcH: 4,
			Mask: NoMask{}, Alg: filter.Nearest,
		})
	})
}

func TestValidationFatalOnBadMaskBuffer(t *testing.T) {
	bufs, mats := newRig(t, 3)
	bufs.Reset(0, 2, 2, pixel.RGB)
	bufs.LoadFill(0, pixel.ARGB8{A: 255})
	bufs.Reset(1, 2, 2, pixel.RGB)
	bufs.LoadFill(1, pixel.ARGB8{A: 255})
	bufs.Reset(2, 2, 2, pixel.RGB) // wrong channel count for a mask
	bufs.LoadFill(2, pixel.ARGB8{A: 255})

	require.Panics(t, func() {
		Run(bufs, mats, Params{
			SrcBuf: 0, TargetBuf: 1, TMatrix: 0,
			Mask: RasterMask{BufIndex: 2}, Alg: filter.Nearest,
		})
	})
}

// scenario S3 from spec §8.
func TestScenarioS3TranslateFill(t *testing.T) {
	bufs, mats := newRig(t, 2)
	bufs.Reset(0, 10, 10, pixel.Gray)
	bufs.LoadFill(0, pixel.ARGB8{A: 255, R: 255, G: 255, B: 255})
	bufs.Reset(1, 100, 100, pixel.Gray)
	bufs.LoadFill(1, pixel.ARGB8{A: 255})

	mats.Translate(0, 10, 20)

	Run(bufs, mats, Params{SrcBuf: 0, TargetBuf: 1, TMatrix: 0, Mask: NoMask{}, Alg: filter.Nearest})

	target := bufs.Get(1)
	for y := 10; y < 30; y++ {
		for x := 0; x < 30; x++ {
			want := byte(0)
			if x >= 10 && x < 20 && y >= 20 && y < 30 {
				want = 255
			}
			require.Equal(t, want, target.Pixels[target.Offset(x, y)])
		}
	}
}
