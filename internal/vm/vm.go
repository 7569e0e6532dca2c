// Package vm implements the script-facing façade: the typed entry points an
// operator-dispatch front-end calls into. It owns one buffer register
// store, one matrix register store, the sticky sampler configuration, and
// the process-wide last-error slot, all as explicit fields of a VM value
// rather than package-level singletons (per spec.md §9's redesign note).
package vm

import (
	"io"
	"os"

	"github.com/hqge/sparkle/internal/affine2d"
	"github.com/hqge/sparkle/internal/buffer"
	"github.com/hqge/sparkle/internal/filter"
	"github.com/hqge/sparkle/internal/imageio"
	"github.com/hqge/sparkle/internal/pixel"
	"github.com/hqge/sparkle/internal/sampler"
)

// noErrorSentinel is returned by LastError when no failure has been
// recorded, per spec.md §3.
const noErrorSentinel = "No error"

// unset marks an optional register selector (source/target/matrix) as not
// yet chosen by any sample_source/sample_target/sample_matrix call.
const unset = -1

// config is the sampler configuration that persists across Sample calls,
// per spec.md §6: "Sampler configuration state... is sticky across sample
// calls."
type config struct {
	srcBuf, targetBuf, tMatrix int
	srcX, srcY, srcW, srcH     int
	subareaSet                 bool
	mask                       sampler.Mask
	alg                        filter.Algorithm
}

func defaultConfig() config {
	return config{
		srcBuf:    unset,
		targetBuf: unset,
		tMatrix:   unset,
		mask:      sampler.ProceduralMask{XBound: 0, SideX: sampler.Left, YBound: 0, SideY: sampler.Above},
		alg:       filter.Bilinear,
	}
}

// VM is one Sparkle virtual machine: a buffer register store, a matrix
// register store, sticky sampler configuration, and a last-error slot.
type VM struct {
	Bufs *buffer.Store
	Mats *affine2d.Store

	// Stderr receives print and diagnostic output. Defaults to os.Stderr;
	// tests may substitute a buffer.
	Stderr io.Writer

	cfg     config
	lastErr string
}

// New creates a VM with the given buffer and matrix register counts, per
// spec.md §5: a one-time initialization call that fixes the register
// counts for the lifetime of the VM.
func New(bufCount, matCount int) (*VM, error) {
	bufs, err := buffer.NewStore(bufCount)
	if err != nil {
		return nil, err
	}
	mats, err := affine2d.NewStore(matCount)
	if err != nil {
		return nil, err
	}
	return &VM{
		Bufs:   bufs,
		Mats:   mats,
		Stderr: os.Stderr,
		cfg:    defaultConfig(),
	}, nil
}

// setError records msg as the last-error slot's contents. It is the only
// way the slot's text changes; per spec.md §3 it is not reset between
// successful calls.
func (v *VM) setError(msg string) {
	v.lastErr = msg
}

// LastError returns the last recorded error, or the "No error" sentinel
// when no failure has been recorded yet.
func (v *VM) LastError() string {
	if v.lastErr == "" {
		return noErrorSentinel
	}
	return v.lastErr
}

// Print writes msg as a diagnostic line to Stderr.
func (v *VM) Print(msg string) {
	io.WriteString(v.Stderr, msg+"\n")
}

// --- Buffer register store façade (spec.md §4.2) ---

// BufC returns the fixed buffer register count.
func (v *VM) BufC() int { return v.Bufs.Count() }

// Reset redeclares buffer register i. Fatal on invalid arguments.
func (v *VM) Reset(i, w, h int, ch pixel.Channels) { v.Bufs.Reset(i, w, h, ch) }

// GetDim returns register i's declared dimensions.
func (v *VM) GetDim(i int) (w, h int) { return v.Bufs.Dim(i) }

// GetChannels returns register i's declared channel count.
func (v *VM) GetChannels(i int) pixel.Channels { return v.Bufs.Channels(i) }

// IsLoaded reports whether register i currently holds pixel data.
func (v *VM) IsLoaded(i int) bool { return v.Bufs.IsLoaded(i) }

// LoadFill fills register i with a solid colour.
func (v *VM) LoadFill(i int, a, r, g, b uint8) {
	v.Bufs.LoadFill(i, pixel.ARGB8{A: a, R: r, G: g, B: b})
}

// LoadPNG decodes a PNG file into register i. Returns false and records the
// last-error slot on failure; the register is left unloaded.
func (v *VM) LoadPNG(i int, path string) bool {
	if err := imageio.LoadPNG(v.Bufs, i, path); err != nil {
		v.setError(err.Error())
		return false
	}
	return true
}

// LoadJPEG decodes a JPEG file into register i, under the same rules as
// LoadPNG.
func (v *VM) LoadJPEG(i int, path string) bool {
	if err := imageio.LoadJPEG(v.Bufs, i, path); err != nil {
		v.setError(err.Error())
		return false
	}
	return true
}

// LoadMJPGFrame decodes frame f of the M-JPEG stream indexed by indexPath
// into register i.
func (v *VM) LoadMJPGFrame(i, f int, indexPath string) bool {
	if err := imageio.LoadMJPGFrame(v.Bufs, i, f, indexPath); err != nil {
		v.setError(err.Error())
		return false
	}
	return true
}

// StorePNG encodes register i as a PNG file at path.
func (v *VM) StorePNG(i int, path string) bool {
	if err := imageio.StorePNG(v.Bufs, i, path); err != nil {
		v.setError(err.Error())
		return false
	}
	return true
}

// StoreJPEG encodes register i as a JPEG file at path with the given
// quality.
func (v *VM) StoreJPEG(i int, path string, quality int) bool {
	if err := imageio.StoreJPEG(v.Bufs, i, path, quality); err != nil {
		v.setError(err.Error())
		return false
	}
	return true
}

// StoreMJPG appends register i as one more frame of the M-JPEG stream at
// path.
func (v *VM) StoreMJPG(i int, path string, quality int) bool {
	if err := imageio.StoreMJPG(v.Bufs, i, path, quality); err != nil {
		v.setError(err.Error())
		return false
	}
	return true
}

// ColorInvert inverts register i's non-alpha channels in place.
func (v *VM) ColorInvert(i int) { v.Bufs.ColorInvert(i) }

// --- Matrix register store façade (spec.md §4.3) ---

// MatC returns the fixed matrix register count.
func (v *VM) MatC() int { return v.Mats.Count() }

func (v *VM) MatrixReset(m int)                     { v.Mats.Reset(m) }
func (v *VM) MatrixMultiply(m, a, b int)            { v.Mats.Multiply(m, a, b) }
func (v *VM) MatrixTranslate(m int, tx, ty float64) { v.Mats.Translate(m, tx, ty) }
func (v *VM) MatrixScale(m int, sx, sy float64)     { v.Mats.Scale(m, sx, sy) }
func (v *VM) MatrixRotate(m int, deg float64)       { v.Mats.Rotate(m, deg) }

// --- Sticky sampler configuration façade (spec.md §6) ---

// SampleSource selects register i as the full-buffer source for subsequent
// Sample calls.
func (v *VM) SampleSource(i int) {
	v.cfg.srcBuf = i
	v.cfg.subareaSet = false
}

// SampleSourceArea selects a sub-rectangle of register i as the source.
func (v *VM) SampleSourceArea(i, x, y, w, h int) {
	v.cfg.srcBuf = i
	v.cfg.subareaSet = true
	v.cfg.srcX, v.cfg.srcY, v.cfg.srcW, v.cfg.srcH = x, y, w, h
}

// SampleTarget selects register i as the target for subsequent Sample
// calls.
func (v *VM) SampleTarget(i int) { v.cfg.targetBuf = i }

// SampleMatrix selects matrix register m for subsequent Sample calls.
func (v *VM) SampleMatrix(m int) { v.cfg.tMatrix = m }

// SampleMaskNone selects procedural masking with pass-all defaults.
func (v *VM) SampleMaskNone() {
	v.cfg.mask = sampler.ProceduralMask{XBound: 0, SideX: sampler.Left, YBound: 0, SideY: sampler.Above}
}

// currentProcedural returns the current procedural mask configuration,
// switching into procedural mode (with pass-all defaults) if the current
// mask is a raster mask.
func (v *VM) currentProcedural() sampler.ProceduralMask {
	pm, ok := v.cfg.mask.(sampler.ProceduralMask)
	if !ok {
		pm = sampler.ProceduralMask{XBound: 0, SideX: sampler.Left, YBound: 0, SideY: sampler.Above}
	}
	return pm
}

// SampleMaskX sets the procedural mask's vertical boundary.
func (v *VM) SampleMaskX(val float64) {
	pm := v.currentProcedural()
	pm.XBound = val
	v.cfg.mask = pm
}

// SampleMaskY sets the procedural mask's horizontal boundary.
func (v *VM) SampleMaskY(val float64) {
	pm := v.currentProcedural()
	pm.YBound = val
	v.cfg.mask = pm
}

// SampleMaskLeft selects the Left side: the procedural mask keeps columns
// x >= the vertical boundary.
func (v *VM) SampleMaskLeft() {
	pm := v.currentProcedural()
	pm.SideX = sampler.Left
	v.cfg.mask = pm
}

// SampleMaskRight selects the Right side: the procedural mask keeps columns
// x <= the vertical boundary.
func (v *VM) SampleMaskRight() {
	pm := v.currentProcedural()
	pm.SideX = sampler.Right
	v.cfg.mask = pm
}

// SampleMaskAbove selects the Above side: the procedural mask keeps rows
// y >= the horizontal boundary.
func (v *VM) SampleMaskAbove() {
	pm := v.currentProcedural()
	pm.SideY = sampler.Above
	v.cfg.mask = pm
}

// SampleMaskBelow selects the Below side: the procedural mask keeps rows
// y <= the horizontal boundary.
func (v *VM) SampleMaskBelow() {
	pm := v.currentProcedural()
	pm.SideY = sampler.Below
	v.cfg.mask = pm
}

// SampleMaskRaster selects register i as a raster grayscale mask.
func (v *VM) SampleMaskRaster(i int) {
	v.cfg.mask = sampler.RasterMask{BufIndex: i}
}

func (v *VM) SampleNearest()  { v.cfg.alg = filter.Nearest }
func (v *VM) SampleBilinear() { v.cfg.alg = filter.Bilinear }
func (v *VM) SampleBicubic()  { v.cfg.alg = filter.Bicubic }

// Sample runs the sampler-compositor engine using the current sticky
// configuration. Fatal (panics) if source, target, or matrix have never
// been selected, or if any of the engine's own preconditions (spec.md
// §4.5 step 1) are violated.
func (v *VM) Sample() {
	if v.cfg.srcBuf == unset || v.cfg.targetBuf == unset || v.cfg.tMatrix == unset {
		panic("vm: sample called before source/target/matrix were all selected")
	}

	sampler.Run(v.Bufs, v.Mats, sampler.Params{
		SrcBuf:     v.cfg.srcBuf,
		TargetBuf:  v.cfg.targetBuf,
		SrcX:       v.cfg.srcX,
		SrcY:       v.cfg.srcY,
		SrcW:       v.cfg.srcW,
		SrcH:       v.cfg.srcH,
		SubareaSet: v.cfg.subareaSet,
		TMatrix:    v.cfg.tMatrix,
		Mask:       v.cfg.mask,
		Alg:        v.cfg.alg,
	})
}
