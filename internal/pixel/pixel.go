// Package pixel implements the canonical colour representations used
// throughout Sparkle and the conversions between them: 8-bit non-premultiplied
// ARGB, the three on-disk channel layouts (gray, RGB, ARGB), and the
// premultiplied floating-point form the sampler-compositor operates in.
package pixel

import "math"

// Channels is the number of bytes a register stores per pixel. Only these
// three layouts exist anywhere in a buffer register.
type Channels int

const (
	Gray Channels = 1
	RGB  Channels = 3
	ARGB Channels = 4
)

// Valid reports whether c is one of the three supported channel counts.
func (c Channels) Valid() bool {
	return c == Gray || c == RGB || c == ARGB
}

// ARGB8 is a colour in 8-bit non-premultiplied form: A, R, G, B each in
// [0, 255]. Alpha 0 means fully transparent.
type ARGB8 struct {
	A, R, G, B uint8
}

// Premultiplied is the sampler-compositor's internal working colour: four
// doubles in [0, 1] with R, G, B already scaled by A.
type Premultiplied struct {
	A, R, G, B float64
}

// luma weights used for down-conversion to gray, applied to linear 8-bit RGB.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// DownToRGB composites c over opaque black using its own alpha and returns
// opaque 8-bit RGB.
func DownToRGB(c ARGB8) (r, g, b uint8) {
	a := float64(c.A) / 255
	r = clampByte(float64(c.R) * a)
	g = clampByte(float64(c.G) * a)
	b = clampByte(float64(c.B) * a)
	return r, g, b
}

// DownToGray composites c over opaque black, then applies the fixed luma
// weighting to produce a single gray channel.
func DownToGray(c ARGB8) uint8 {
	r, g, b := DownToRGB(c)
	y := lumaR*float64(r) + lumaG*float64(g) + lumaB*float64(b)
	return clampByte(y)
}

// UpFromGray replicates a gray value into opaque RGB.
func UpFromGray(gray uint8) ARGB8 {
	return ARGB8{A: 255, R: gray, G: gray, B: gray}
}

// UpFromRGB promotes 8-bit RGB to opaque ARGB.
func UpFromRGB(r, g, b uint8) ARGB8 {
	return ARGB8{A: 255, R: r, G: g, B: b}
}

// ToPremultiplied converts 8-bit non-premultiplied ARGB to the premultiplied
// float working colour.
func ToPremultiplied(c ARGB8) Premultiplied {
	a := float64(c.A) / 255
	return Premultiplied{
		A: a,
		R: a * float64(c.R) / 255,
		G: a * float64(c.G) / 255,
		B: a * float64(c.B) / 255,
	}
}

// epsZeroAlpha is the threshold below which an alpha value is treated as
// exactly transparent when un-premultiplying, to avoid dividing by (near) 0.
const epsZeroAlpha = 1e-6

// FromPremultiplied converts a premultiplied float colour back to 8-bit
// non-premultiplied ARGB. Colours with alpha below epsZeroAlpha collapse to
// fully transparent black rather than dividing by (near) zero.
func FromPremultiplied(p Premultiplied) ARGB8 {
	mustFinite(p.A, p.R, p.G, p.B)

	if p.A <= epsZeroAlpha {
		return ARGB8{}
	}

	r := clamp01(p.R/p.A) * 255
	g := clamp01(p.G/p.A) * 255
	b := clamp01(p.B/p.A) * 255
	a := clamp01(p.A) * 255

	return ARGB8{
		A: clampByte(a),
		R: clampByte(r),
		G: clampByte(g),
		B: clampByte(b),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// mustFinite panics if any of the given values is NaN or infinite. Per
// spec.md §4.1, non-finite intermediates during colour conversion are a
// fatal programmer or data error, never a recoverable one.
func mustFinite(vs ...float64) {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			panic("pixel: non-finite channel value")
		}
	}
}

// ReadAt decodes the pixel at byte offset off in a buffer with the given
// channel layout into non-premultiplied 8-bit ARGB.
func ReadAt(data []byte, off int, ch Channels) ARGB8 {
	switch ch {
	case Gray:
		return UpFromGray(data[off])
	case RGB:
		return UpFromRGB(data[off], data[off+1], data[off+2])
	case ARGB:
		return ARGB8{A: data[off], R: data[off+1], G: data[off+2], B: data[off+3]}
	default:
		panic("pixel: invalid channel count")
	}
}

// WriteAt encodes c into data at byte offset off according to ch, performing
// whatever down- or up-conversion the layout requires.
func WriteAt(data []byte, off int, ch Channels, c ARGB8) {
	switch ch {
	case Gray:
		data[off] = DownToGray(c)
	case RGB:
		r, g, b := DownToRGB(c)
		data[off], data[off+1], data[off+2] = r, g, b
	case ARGB:
		data[off], data[off+1], data[off+2], data[off+3] = c.A, c.R, c.G, c.B
	default:
		panic("pixel: invalid channel count")
	}
}

// WritePremultipliedAt writes the result of an OVER composite, p, into data
// at byte offset off according to ch. p is assumed already composited onto
// an opaque destination for Gray/RGB targets (ReadPremultipliedAt always
// returns destination alpha 1 for those layouts, so the OVER result is
// itself opaque and p.R/p.G/p.B need no un-premultiplication). For ARGB
// targets the alpha may be < 1 and FromPremultiplied's near-zero short
// circuit applies.
func WritePremultipliedAt(data []byte, off int, ch Channels, p Premultiplied) {
	mustFinite(p.A, p.R, p.G, p.B)

	switch ch {
	case Gray:
		r := clamp01(p.R) * 255
		g := clamp01(p.G) * 255
		b := clamp01(p.B) * 255
		data[off] = clampByte(lumaR*r + lumaG*g + lumaB*b)
	case RGB:
		data[off] = clampByte(clamp01(p.R) * 255)
		data[off+1] = clampByte(clamp01(p.G) * 255)
		data[off+2] = clampByte(clamp01(p.B) * 255)
	case ARGB:
		c := FromPremultiplied(p)
		data[off], data[off+1], data[off+2], data[off+3] = c.A, c.R, c.G, c.B
	default:
		panic("pixel: invalid channel count")
	}
}

// ReadPremultipliedAt reads the pixel at byte offset off and promotes it to
// premultiplied floats. Gray and RGB pixels are read as fully opaque.
func ReadPremultipliedAt(data []byte, off int, ch Channels) Premultiplied {
	switch ch {
	case Gray:
		y := float64(data[off]) / 255
		return Premultiplied{A: 1, R: y, G: y, B: y}
	case RGB:
		return Premultiplied{
			A: 1,
			R: float64(data[off]) / 255,
			G: float64(data[off+1]) / 255,
			B: float64(data[off+2]) / 255,
		}
	case ARGB:
		return ToPremultiplied(ARGB8{A: data[off], R: data[off+1], G: data[off+2], B: data[off+3]})
	default:
		panic("pixel: invalid channel count")
	}
}
