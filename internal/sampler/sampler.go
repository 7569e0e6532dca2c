// Package sampler implements the sampler-compositor: the engine that
// projects target pixels back through a matrix's inverse, reconstructs a
// source colour, applies masking, and alpha-composites OVER into the
// target. This is the core of Sparkle.
package sampler

import (
	"fmt"
	"math"

	"github.com/hqge/sparkle/internal/affine2d"
	"github.com/hqge/sparkle/internal/buffer"
	"github.com/hqge/sparkle/internal/filter"
	"github.com/hqge/sparkle/internal/pixel"
)

// XSide selects which side of a vertical boundary a procedural mask keeps.
type XSide int

const (
	Left XSide = iota
	Right
)

// YSide selects which side of a horizontal boundary a procedural mask keeps.
type YSide int

const (
	Above YSide = iota
	Below
)

// Mask is the sampler's masking configuration: exactly one of no masking, a
// procedural half-plane mask, or a raster grayscale mask. Replacing
// spec.md's cross-flag bitset with this variant type makes the "exactly one
// of procedural/raster" consistency rule a property of the type itself.
type Mask interface {
	isMask()
}

// NoMask disables masking entirely (every target pixel in bounds is a
// compositing candidate).
type NoMask struct{}

func (NoMask) isMask() {}

// ProceduralMask keeps only the half-plane on the selected side of each
// normalized boundary coordinate.
type ProceduralMask struct {
	XBound float64 // normalized [0,1]
	SideX  XSide
	YBound float64 // normalized [0,1]
	SideY  YSide
}

func (ProceduralMask) isMask() {}

// RasterMask scales the source's premultiplied contribution by a grayscale
// mask buffer, same-sized as the target.
type RasterMask struct {
	BufIndex int
}

func (RasterMask) isMask() {}

// Params is the ephemeral sample parameter block consumed by one Sample
// call, per spec §3.
type Params struct {
	SrcBuf, TargetBuf int
	SrcX, SrcY        int
	SrcW, SrcH        int
	SubareaSet        bool
	TMatrix           int
	Mask              Mask
	Alg               filter.Algorithm
}

func fatalf(format string, args ...any) {
	panic(fmt.Sprintf("sampler: "+format, args...))
}

func mustFinite(name string, vs ...float64) {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			fatalf("non-finite %s", name)
		}
	}
}

// Run executes one sample operation: it validates p against bufs and mats,
// derives the target rendering bounds, and composites src over target pixel
// by pixel. Every precondition violation is a fatal programmer error (it
// panics); there are no recoverable failures inside Run, per spec §4.5.
func Run(bufs *buffer.Store, mats *affine2d.Store, p Params) {
	validate(bufs, mats, &p)

	src := bufs.Get(p.SrcBuf)
	target := bufs.Get(p.TargetBuf)

	minX, minY, maxX, maxY, ok := renderBounds(mats.Get(p.TMatrix), p, target)
	if !ok {
		return
	}

	var mask *buffer.Buffer
	if rm, isRaster := p.Mask.(RasterMask); isRaster {
		mask = bufs.Get(rm.BufIndex)
	}

	inv := mats.Inverse(p.TMatrix)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if mask != nil {
				mb := mask.Pixels[mask.Offset(x, y)]
				if mb == 0 {
					continue
				}
				compositePixel(src, target, inv, p, x, y, float64(mb)/255)
				continue
			}
			compositePixel(src, target, inv, p, x, y, 1)
		}
	}
}

// compositePixel projects (x, y) back into source space, samples, masks,
// and composites OVER into target[x,y]. maskWeight is 1 under no-masking or
// procedural masking (the procedural half-plane test already happened when
// narrowing the bounds) and the raster mask's normalized byte otherwise.
func compositePixel(src, target *buffer.Buffer, inv affine2d.Inverse, p Params, x, y int, maskWeight float64) {
	sx, sy := inv.Apply(float64(x)+0.5, float64(y)+0.5)
	mustFinite("projected source coordinate", sx, sy)

	if sx < float64(p.SrcX) || sx > float64(p.SrcX+p.SrcW) ||
		sy < float64(p.SrcY) || sy > float64(p.SrcY+p.SrcH) {
		return
	}

	srcColor := filter.Sample(src, sx, sy, p.Alg)
	if maskWeight != 1 {
		srcColor.A *= maskWeight
		srcColor.R *= maskWeight
		srcColor.G *= maskWeight
		srcColor.B *= maskWeight
	}

	dstColor := pixel.ReadPremultipliedAt(target.Pixels, target.Offset(x, y), target.Channels)
	out := over(srcColor, dstColor)
	pixel.WritePremultipliedAt(target.Pixels, target.Offset(x, y), target.Channels, out)
}

// over applies Porter-Duff OVER: out = src + dst*(1-src.a).
func over(src, dst pixel.Premultiplied) pixel.Premultiplied {
	inv := 1 - src.A
	return pixel.Premultiplied{
		A: src.A + dst.A*inv,
		R: src.R + dst.R*inv,
		G: src.G + dst.G*inv,
		B: src.B + dst.B*inv,
	}
}

// validate implements spec §4.5 step 1: parameter consistency checks. It
// also fills in p.SrcX/Y/W/H with the full source extent when the subarea
// flag is unset.
func validate(bufs *buffer.Store, mats *affine2d.Store, p *Params) {
	if p.SrcBuf == p.TargetBuf {
		fatalf("src_buf and target_buf must be distinct")
	}
	if !bufs.IsLoaded(p.SrcBuf) {
		fatalf("src_buf %d is not loaded", p.SrcBuf)
	}
	if !bufs.IsLoaded(p.TargetBuf) {
		fatalf("target_buf %d is not loaded", p.TargetBuf)
	}
	if p.TMatrix < 0 || p.TMatrix >= mats.Count() {
		fatalf("matrix register %d out of range", p.TMatrix)
	}
	if !p.Alg.Valid() {
		fatalf("unknown sample algorithm %v", p.Alg)
	}

	src := bufs.Get(p.SrcBuf)
	if !p.SubareaSet {
		p.SrcX, p.SrcY, p.SrcW, p.SrcH = 0, 0, src.Width, src.Height
	} else {
		if p.SrcX < 0 || p.SrcY < 0 || p.SrcW < 0 || p.SrcH < 0 ||
			p.SrcX+p.SrcW > src.Width || p.SrcY+p.SrcH > src.Height {
			fatalf("source subarea [%d,%d,%d,%d] exceeds source bounds %dx%d",
				p.SrcX, p.SrcY, p.SrcW, p.SrcH, src.Width, src.Height)
		}
	}

	switch m := p.Mask.(type) {
	case nil:
		fatalf("mask configuration unset")
	case NoMask:
		// nothing further to validate
	case ProceduralMask:
		mustFinite("x_boundary", m.XBound)
		mustFinite("y_boundary", m.YBound)
		if m.XBound < 0 || m.XBound > 1 || m.YBound < 0 || m.YBound > 1 {
			fatalf("procedural mask boundary out of [0,1]")
		}
	case RasterMask:
		if m.BufIndex == p.SrcBuf || m.BufIndex == p.TargetBuf {
			fatalf("raster mask buffer must differ from src and target")
		}
		if !bufs.IsLoaded(m.BufIndex) {
			fatalf("raster mask buffer %d is not loaded", m.BufIndex)
		}
		mb := bufs.Get(m.BufIndex)
		target := bufs.Get(p.TargetBuf)
		if mb.Channels != pixel.Gray {
			fatalf("raster mask buffer must have exactly 1 channel")
		}
		if mb.Width != target.Width || mb.Height != target.Height {
			fatalf("raster mask buffer dimensions must match target")
		}
	default:
		fatalf("unknown mask variant %T", m)
	}
}

// renderBounds implements spec §4.5 step 2: derive the integer target
// rendering bounds, intersected with the target extent and (under
// procedural masking) the allowed half-planes. ok is false when the
// resulting box is empty.
func renderBounds(m affine2d.Matrix, p Params, target *buffer.Buffer) (minX, minY, maxX, maxY int, ok bool) {
	sx, sy, sw, sh := float64(p.SrcX), float64(p.SrcY), float64(p.SrcW), float64(p.SrcH)
	corners := [4][2]float64{
		{sx, sy}, {sx + sw, sy}, {sx, sy + sh}, {sx + sw, sy + sh},
	}

	var fMinX, fMinY, fMaxX, fMaxY float64
	for i, c := range corners {
		tx, ty := m.Apply(c[0], c[1])
		mustFinite("transformed corner", tx, ty)
		if i == 0 {
			fMinX, fMaxX, fMinY, fMaxY = tx, tx, ty, ty
			continue
		}
		fMinX = math.Min(fMinX, tx)
		fMaxX = math.Max(fMaxX, tx)
		fMinY = math.Min(fMinY, ty)
		fMaxY = math.Max(fMaxY, ty)
	}

	const i32min, i32max = math.MinInt32, math.MaxInt32
	minXf, maxXf := math.Floor(fMinX), math.Ceil(fMaxX)
	minYf, maxYf := math.Floor(fMinY), math.Ceil(fMaxY)
	if minXf < i32min || maxXf > i32max || minYf < i32min || maxYf > i32max {
		fatalf("target bounding box exceeds signed 32-bit range")
	}

	minX, maxX = int(minXf), int(maxXf)
	minY, maxY = int(minYf), int(maxYf)

	minX = max(minX, 0)
	minY = max(minY, 0)
	maxX = min(maxX, target.Width-1)
	maxY = min(maxY, target.Height-1)

	if pm, isProcedural := p.Mask.(ProceduralMask); isProcedural {
		xBound := boundaryPixel(pm.XBound, target.Width)
		yBound := boundaryPixel(pm.YBound, target.Height)
		switch pm.SideX {
		case Left:
			minX = max(minX, xBound)
		case Right:
			maxX = min(maxX, xBound)
		}
		switch pm.SideY {
		case Above:
			minY = max(minY, yBound)
		case Below:
			maxY = min(maxY, yBound)
		}
	}

	if minX > maxX || minY > maxY {
		return 0, 0, 0, 0, false
	}
	return minX, minY, maxX, maxY, true
}

// boundaryPixel converts a normalized [0,1] boundary coordinate to an
// integer pixel column/row, per spec §4.5 step 2.
func boundaryPixel(bound float64, extent int) int {
	switch bound {
	case 0:
		return 0
	case 1:
		return extent - 1
	default:
		return int(math.Floor(bound * float64(extent-1)))
	}
}
