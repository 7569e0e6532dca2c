package filter

import (
	"math"
	"testing"

	"github.com/hqge/sparkle/internal/buffer"
	"github.com/hqge/sparkle/internal/pixel"
	"github.com/stretchr/testify/require"
)

func solidBuffer(t *testing.T, w, h int, c pixel.ARGB8) *buffer.Buffer {
	t.Helper()
	s, err := buffer.NewStore(1)
	require.NoError(t, err)
	s.Reset(0, w, h, pixel.ARGB)
	s.LoadFill(0, c)
	return s.Get(0)
}

func TestNearestClampsToBounds(t *testing.T) {
	b := solidBuffer(t, 2, 2, pixel.ARGB8{A: 255, R: 10, G: 20, B: 30})
	got := Sample(b, -5, -5, Nearest)
	want := pixel.ToPremultiplied(pixel.ARGB8{A: 255, R: 10, G: 20, B: 30})
	require.InDelta(t, want.R, got.R, 1e-9)
}

func TestNearestFloorsCoordinates(t *testing.T) {
	s, err := buffer.NewStore(1)
	require.NoError(t, err)
	s.Reset(0, 2, 1, pixel.Gray)
	b := s.Get(0)
	b.Pixels = []byte{0, 255}

	got := Sample(b, 0.9, 0.5, Nearest)
	require.InDelta(t, 0.0, got.R, 1e-9)

	got = Sample(b, 1.1, 0.5, Nearest)
	require.InDelta(t, 1.0, got.R, 1e-9)
}

func TestSolidBufferAnyAlgorithmReturnsSolidColour(t *testing.T) {
	c := pixel.ARGB8{A: 255, R: 40, G: 80, B: 120}
	b := solidBuffer(t, 8, 8, c)
	want := pixel.ToPremultiplied(c)

	for _, alg := range []Algorithm{Nearest, Bilinear, Bicubic} {
		for _, pt := range [][2]float64{{0, 0}, {3.5, 3.5}, {7.9, 0.1}} {
			got := Sample(b, pt[0], pt[1], alg)
			require.InDeltaf(t, want.R, got.R, 1e-6, "alg=%v pt=%v", alg, pt)
			require.InDeltaf(t, want.A, got.A, 1e-6, "alg=%v pt=%v", alg, pt)
		}
	}
}

func TestBilinearInterpolatesMidpoint(t *testing.T) {
	s, err := buffer.NewStore(1)
	require.NoError(t, err)
	s.Reset(0, 2, 1, pixel.Gray)
	b := s.Get(0)
	b.Pixels = []byte{0, 255}

	// Pixel centres are at x=0.5 and x=1.5; the midpoint x=1.0 should be
	// exactly the average.
	got := Sample(b, 1.0, 0.5, Bilinear)
	require.InDelta(t, 0.5, got.R, 1e-9)
}

func TestBicubicMatchesNearestOnConstantRegion(t *testing.T) {
	c := pixel.ARGB8{A: 255, R: 200, G: 100, B: 50}
	b := solidBuffer(t, 16, 16, c)

	got := Sample(b, 8.3, 8.7, Bicubic)
	want := pixel.ToPremultiplied(c)
	require.InDelta(t, want.R, got.R, 1e-6)
	require.InDelta(t, want.G, got.G, 1e-6)
	require.InDelta(t, want.B, got.B, 1e-6)
}

func TestAlgorithmValid(t *testing.T) {
	require.True(t, Nearest.Valid())
	require.True(t, Bilinear.Valid())
	require.True(t, Bicubic.Valid())
	require.False(t, Algorithm(99).Valid())
}

func TestSamplePanicsOnUnknownAlgorithm(t *testing.T) {
	b := solidBuffer(t, 1, 1, pixel.ARGB8{A: 255})
	require.Panics(t, func() { Sample(b, 0, 0, Algorithm(99)) })
}

func TestNoNaNAcrossWideRange(t *testing.T) {
	b := solidBuffer(t, 4, 4, pixel.ARGB8{A: 128, R: 64, G: 64, B: 64})
	for _, alg := range []Algorithm{Nearest, Bilinear, Bicubic} {
		for x := -2.0; x <= 6.0; x += 0.37 {
			for y := -2.0; y <= 6.0; y += 0.41 {
				c := Sample(b, x, y, alg)
				if math.IsNaN(c.A) || math.IsNaN(c.R) || math.IsNaN(c.G) || math.IsNaN(c.B) {
					t.Fatalf("NaN at alg=%v x=%v y=%v", alg, x, y)
				}
			}
		}
	}
}
