// Package filter implements the three reconstruction filters the
// sampler-compositor uses to read a source buffer at fractional coordinates.
package filter

import (
	"math"

	"github.com/hqge/sparkle/internal/buffer"
	"github.com/hqge/sparkle/internal/pixel"
)

// Algorithm selects a reconstruction filter.
type Algorithm int

const (
	Nearest Algorithm = iota
	Bilinear
	Bicubic
)

// Valid reports whether a is one of the three known algorithms.
func (a Algorithm) Valid() bool {
	return a == Nearest || a == Bilinear || a == Bicubic
}

// Sample reconstructs a premultiplied colour from src at fractional point
// (x, y), assumed inside src's geometric bounds, using the given algorithm.
func Sample(src *buffer.Buffer, x, y float64, alg Algorithm) pixel.Premultiplied {
	switch alg {
	case Nearest:
		return nearest(src, x, y)
	case Bilinear:
		return bilinear(src, x, y)
	case Bicubic:
		return bicubic(src, x, y)
	default:
		panic("filter: unknown reconstruction algorithm")
	}
}

func clampIndex(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

// texel reads pixel (ix, iy) of src as premultiplied floats, clamping the
// indices to the buffer's valid range.
func texel(src *buffer.Buffer, ix, iy int) pixel.Premultiplied {
	ix = clampIndex(ix, 0, src.Width-1)
	iy = clampIndex(iy, 0, src.Height-1)
	return pixel.ReadPremultipliedAt(src.Pixels, src.Offset(ix, iy), src.Channels)
}

func nearest(src *buffer.Buffer, x, y float64) pixel.Premultiplied {
	ix := clampIndex(int(math.Floor(x)), 0, src.Width-1)
	iy := clampIndex(int(math.Floor(y)), 0, src.Height-1)
	return texel(src, ix, iy)
}

func bilinear(src *buffer.Buffer, x, y float64) pixel.Premultiplied {
	// Half-pixel centres: pixel i covers [i, i+1), centred at i+0.5.
	fx := x - 0.5
	fy := y - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	c00 := texel(src, x0, y0)
	c10 := texel(src, x0+1, y0)
	c01 := texel(src, x0, y0+1)
	c11 := texel(src, x0+1, y0+1)

	top := lerp(c00, c10, tx)
	bot := lerp(c01, c11, tx)
	return lerp(top, bot, ty)
}

func lerp(a, b pixel.Premultiplied, t float64) pixel.Premultiplied {
	return pixel.Premultiplied{
		A: a.A + (b.A-a.A)*t,
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
	}
}

// catmullRom evaluates the Catmull-Rom cubic convolution kernel at offset t
// from p1, given the four control points p0..p3 spaced one unit apart.
func catmullRom(p0, p1, p2, p3 pixel.Premultiplied, t float64) pixel.Premultiplied {
	t2 := t * t
	t3 := t2 * t

	weight := func(a, b, c, d float64) float64 {
		return 0.5 * ((2 * b) +
			(-a+c)*t +
			(2*a-5*b+4*c-d)*t2 +
			(-a+3*b-3*c+d)*t3)
	}

	return pixel.Premultiplied{
		A: weight(p0.A, p1.A, p2.A, p3.A),
		R: weight(p0.R, p1.R, p2.R, p3.R),
		G: weight(p0.G, p1.G, p2.G, p3.G),
		B: weight(p0.B, p1.B, p2.B, p3.B),
	}
}

func bicubic(src *buffer.Buffer, x, y float64) pixel.Premultiplied {
	fx := x - 0.5
	fy := y - 0.5

	x1 := int(math.Floor(fx))
	y1 := int(math.Floor(fy))
	tx := fx - float64(x1)
	ty := fy - float64(y1)

	var rows [4]pixel.Premultiplied
	for j := -1; j <= 2; j++ {
		p0 := texel(src, x1-1, y1+j)
		p1 := texel(src, x1, y1+j)
		p2 := texel(src, x1+1, y1+j)
		p3 := texel(src, x1+2, y1+j)
		rows[j+1] = catmullRom(p0, p1, p2, p3, tx)
	}

	return catmullRom(rows[0], rows[1], rows[2], rows[3], ty)
}
