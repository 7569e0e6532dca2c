package script

import (
	"fmt"

	"github.com/hqge/sparkle/internal/pixel"
	"github.com/hqge/sparkle/internal/vm"
)

// opFunc is one operator's implementation: pop its arguments off the stack
// (the last, topmost argument first), call the matching vm façade entry
// point, and report any
// recoverable failure. Fatal/programmer-error faults are left to propagate
// as Go panics, per spec.md §7 ("never to be caught").
type opFunc func(st *Stack, v *vm.VM, line int) error

// ioFailure turns a false boolean result from a fallible vm entry point
// into a recoverable RuntimeError carrying the VM's last-error text.
func ioFailure(line int, v *vm.VM, opName string) error {
	return &RuntimeError{Line: line, Msg: fmt.Sprintf("%s: %s", opName, v.LastError())}
}

// operators is the name -> implementation registry the interpreter
// dispatches through, the Sparkle analogue of mappers.RegisterMapper's
// id -> Mapper table: a flat map built once, read-only thereafter.
var operators = map[string]opFunc{
	"print": func(st *Stack, v *vm.VM, line int) error {
		msg, err := st.PopString(line)
		if err != nil {
			return err
		}
		v.Print(msg)
		return nil
	},
	"reset": func(st *Stack, v *vm.VM, line int) error {
		c, err := st.PopInt(line)
		if err != nil {
			return err
		}
		h, err := st.PopInt(line)
		if err != nil {
			return err
		}
		w, err := st.PopInt(line)
		if err != nil {
			return err
		}
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.Reset(i, w, h, pixel.Channels(c))
		return nil
	},
	"load_png": func(st *Stack, v *vm.VM, line int) error {
		path, err := st.PopString(line)
		if err != nil {
			return err
		}
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		if !v.LoadPNG(i, path) {
			return ioFailure(line, v, "load_png")
		}
		return nil
	},
	"load_jpeg": func(st *Stack, v *vm.VM, line int) error {
		path, err := st.PopString(line)
		if err != nil {
			return err
		}
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		if !v.LoadJPEG(i, path) {
			return ioFailure(line, v, "load_jpeg")
		}
		return nil
	},
	"load_frame": func(st *Stack, v *vm.VM, line int) error {
		path, err := st.PopString(line)
		if err != nil {
			return err
		}
		f, err := st.PopInt(line)
		if err != nil {
			return err
		}
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		if !v.LoadMJPGFrame(i, f, path) {
			return ioFailure(line, v, "load_frame")
		}
		return nil
	},
	"fill": func(st *Stack, v *vm.VM, line int) error {
		b, err := st.PopInt(line)
		if err != nil {
			return err
		}
		g, err := st.PopInt(line)
		if err != nil {
			return err
		}
		r, err := st.PopInt(line)
		if err != nil {
			return err
		}
		a, err := st.PopInt(line)
		if err != nil {
			return err
		}
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.LoadFill(i, uint8(a), uint8(r), uint8(g), uint8(b))
		return nil
	},
	"store_png": func(st *Stack, v *vm.VM, line int) error {
		path, err := st.PopString(line)
		if err != nil {
			return err
		}
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		if !v.StorePNG(i, path) {
			return ioFailure(line, v, "store_png")
		}
		return nil
	},
	"store_jpeg": func(st *Stack, v *vm.VM, line int) error {
		q, err := st.PopInt(line)
		if err != nil {
			return err
		}
		path, err := st.PopString(line)
		if err != nil {
			return err
		}
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		if !v.StoreJPEG(i, path, q) {
			return ioFailure(line, v, "store_jpeg")
		}
		return nil
	},
	"store_mjpg": func(st *Stack, v *vm.VM, line int) error {
		q, err := st.PopInt(line)
		if err != nil {
			return err
		}
		path, err := st.PopString(line)
		if err != nil {
			return err
		}
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		if !v.StoreMJPG(i, path, q) {
			return ioFailure(line, v, "store_mjpg")
		}
		return nil
	},
	"identity": func(st *Stack, v *vm.VM, line int) error {
		m, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.MatrixReset(m)
		return nil
	},
	"multiply": func(st *Stack, v *vm.VM, line int) error {
		b, err := st.PopInt(line)
		if err != nil {
			return err
		}
		a, err := st.PopInt(line)
		if err != nil {
			return err
		}
		m, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.MatrixMultiply(m, a, b)
		return nil
	},
	"translate": func(st *Stack, v *vm.VM, line int) error {
		ty, err := st.PopFloat(line)
		if err != nil {
			return err
		}
		tx, err := st.PopFloat(line)
		if err != nil {
			return err
		}
		m, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.MatrixTranslate(m, tx, ty)
		return nil
	},
	"scale": func(st *Stack, v *vm.VM, line int) error {
		sy, err := st.PopFloat(line)
		if err != nil {
			return err
		}
		sx, err := st.PopFloat(line)
		if err != nil {
			return err
		}
		m, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.MatrixScale(m, sx, sy)
		return nil
	},
	"rotate": func(st *Stack, v *vm.VM, line int) error {
		deg, err := st.PopFloat(line)
		if err != nil {
			return err
		}
		m, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.MatrixRotate(m, deg)
		return nil
	},
	"color_invert": func(st *Stack, v *vm.VM, line int) error {
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.ColorInvert(i)
		return nil
	},
	"sample_source": func(st *Stack, v *vm.VM, line int) error {
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.SampleSource(i)
		return nil
	},
	"sample_source_area": func(st *Stack, v *vm.VM, line int) error {
		h, err := st.PopInt(line)
		if err != nil {
			return err
		}
		w, err := st.PopInt(line)
		if err != nil {
			return err
		}
		y, err := st.PopInt(line)
		if err != nil {
			return err
		}
		x, err := st.PopInt(line)
		if err != nil {
			return err
		}
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.SampleSourceArea(i, x, y, w, h)
		return nil
	},
	"sample_target": func(st *Stack, v *vm.VM, line int) error {
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.SampleTarget(i)
		return nil
	},
	"sample_matrix": func(st *Stack, v *vm.VM, line int) error {
		m, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.SampleMatrix(m)
		return nil
	},
	"sample_mask_none": func(st *Stack, v *vm.VM, line int) error {
		v.SampleMaskNone()
		return nil
	},
	"sample_mask_x": func(st *Stack, v *vm.VM, line int) error {
		val, err := st.PopFloat(line)
		if err != nil {
			return err
		}
		v.SampleMaskX(val)
		return nil
	},
	"sample_mask_y": func(st *Stack, v *vm.VM, line int) error {
		val, err := st.PopFloat(line)
		if err != nil {
			return err
		}
		v.SampleMaskY(val)
		return nil
	},
	"sample_mask_left":  func(st *Stack, v *vm.VM, line int) error { v.SampleMaskLeft(); return nil },
	"sample_mask_right": func(st *Stack, v *vm.VM, line int) error { v.SampleMaskRight(); return nil },
	"sample_mask_above": func(st *Stack, v *vm.VM, line int) error { v.SampleMaskAbove(); return nil },
	"sample_mask_below": func(st *Stack, v *vm.VM, line int) error { v.SampleMaskBelow(); return nil },
	"sample_mask_raster": func(st *Stack, v *vm.VM, line int) error {
		i, err := st.PopInt(line)
		if err != nil {
			return err
		}
		v.SampleMaskRaster(i)
		return nil
	},
	"sample_nearest":  func(st *Stack, v *vm.VM, line int) error { v.SampleNearest(); return nil },
	"sample_bilinear": func(st *Stack, v *vm.VM, line int) error { v.SampleBilinear(); return nil },
	"sample_bicubic":  func(st *Stack, v *vm.VM, line int) error { v.SampleBicubic(); return nil },
	"sample":          func(st *Stack, v *vm.VM, line int) error { v.Sample(); return nil },
}
