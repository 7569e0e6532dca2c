// Package imageio implements the image I/O adaptors: load and store buffer
// registers from PNG, JPEG, and M-JPEG-by-index (solid fill is
// buffer.Store.LoadFill, not part of this package). It is the
// boundary where the buffer store's declared dimensions meet the outside
// world's files.
package imageio

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hqge/sparkle/internal/buffer"
	"github.com/hqge/sparkle/internal/pixel"
	"github.com/pkg/errors"
)

// copyImageInto copies img's pixels into register i of bufs, down- or
// up-converting each pixel to the register's declared channel count. img's
// bounds must already have been checked against the register's declared
// dimensions by the caller.
func copyImageInto(bufs *buffer.Store, i int, img image.Image) {
	b := bufs.AllocateForLoad(i)
	bounds := img.Bounds()

	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			nc := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			c := pixel.ARGB8{A: nc.A, R: nc.R, G: nc.G, B: nc.B}
			pixel.WriteAt(b.Pixels, b.Offset(x, y), b.Channels, c)
		}
	}
}

// checkDims returns an error if img's bounds don't exactly match the
// register's declared width and height, per spec §4.2.
func checkDims(bufs *buffer.Store, i int, img image.Image) error {
	w, h := bufs.Dim(i)
	bounds := img.Bounds()
	if bounds.Dx() != w || bounds.Dy() != h {
		return errors.Errorf("decoded image is %dx%d, register %d declares %dx%d", bounds.Dx(), bounds.Dy(), i, w, h)
	}
	return nil
}

// LoadPNG decodes the PNG file at path into register i. Register i's
// declared dimensions must exactly match the file's. On any failure the
// register is left unloaded and the error describes the cause.
func LoadPNG(bufs *buffer.Store, i int, path string) error {
	f, err := os.Open(path)
	if err != nil {
		bufs.Unload(i)
		return errors.Wrapf(err, "load_png: opening %q", path)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		bufs.Unload(i)
		return errors.Wrapf(err, "load_png: decoding %q", path)
	}

	if err := checkDims(bufs, i, img); err != nil {
		bufs.Unload(i)
		return errors.Wrap(err, "load_png")
	}

	copyImageInto(bufs, i, img)
	return nil
}

// LoadJPEG decodes the JPEG file at path into register i, under the same
// rules as LoadPNG.
func LoadJPEG(bufs *buffer.Store, i int, path string) error {
	f, err := os.Open(path)
	if err != nil {
		bufs.Unload(i)
		return errors.Wrapf(err, "load_jpeg: opening %q", path)
	}
	defer f.Close()

	return loadJPEGFrom(bufs, i, f, "load_jpeg: decoding "+path)
}

// loadJPEGFrom decodes exactly one JPEG frame from r into register i. It is
// shared by LoadJPEG and LoadMJPGFrame, which differ only in how they open
// the reader.
func loadJPEGFrom(bufs *buffer.Store, i int, r io.Reader, errContext string) error {
	img, err := jpeg.Decode(r)
	if err != nil {
		bufs.Unload(i)
		return errors.Wrap(err, errContext)
	}

	if err := checkDims(bufs, i, img); err != nil {
		bufs.Unload(i)
		return errors.Wrap(err, errContext)
	}

	copyImageInto(bufs, i, img)
	return nil
}

// mjpgCompanionPath derives the companion JPEG-stream file path from an
// index file path by stripping the index file's last extension, e.g.
// "movie.mjpg.ix" -> "movie.mjpg".
func mjpgCompanionPath(indexPath string) string {
	ext := filepath.Ext(indexPath)
	return strings.TrimSuffix(indexPath, ext)
}

// readMJPGIndex reads an MJPG index file's offset table, per spec §6: a
// big-endian uint64 record count followed by that many big-endian uint64
// byte offsets, non-negative and strictly ascending.
func readMJPGIndex(indexPath string) ([]int64, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening index %q", indexPath)
	}
	defer f.Close()

	var count uint64
	if err := binary.Read(f, binary.BigEndian, &count); err != nil {
		return nil, errors.Wrapf(err, "reading record count from %q", indexPath)
	}

	offsets := make([]int64, count)
	var prev int64 = -1
	for idx := range offsets {
		var off uint64
		if err := binary.Read(f, binary.BigEndian, &off); err != nil {
			return nil, errors.Wrapf(err, "reading offset record %d from %q", idx, indexPath)
		}
		signed := int64(off)
		if signed < 0 || signed <= prev {
			return nil, errors.Errorf("malformed index %q: offsets must be non-negative and strictly ascending", indexPath)
		}
		offsets[idx] = signed
		prev = signed
	}

	return offsets, nil
}

// LoadMJPGFrame decodes frame f of the M-JPEG stream indexed by indexPath
// into register i. The companion file is indexPath with its last extension
// stripped.
func LoadMJPGFrame(bufs *buffer.Store, i, f int, indexPath string) error {
	offsets, err := readMJPGIndex(indexPath)
	if err != nil {
		bufs.Unload(i)
		return errors.Wrap(err, "load_frame")
	}

	if f < 0 || f >= len(offsets) {
		bufs.Unload(i)
		return errors.Errorf("load_frame: Invalid frame index %d (have %d frames)", f, len(offsets))
	}

	companion := mjpgCompanionPath(indexPath)
	cf, err := os.Open(companion)
	if err != nil {
		bufs.Unload(i)
		return errors.Wrapf(err, "load_frame: opening companion %q", companion)
	}
	defer cf.Close()

	if _, err := cf.Seek(offsets[f], io.SeekStart); err != nil {
		bufs.Unload(i)
		return errors.Wrapf(err, "load_frame: seeking to frame %d in %q", f, companion)
	}

	return loadJPEGFrom(bufs, i, cf, "load_frame: decoding frame in "+companion)
}

// imageFor builds a standard library image.Image view over register i's
// pixels, suitable for passing to png.Encode or jpeg.Encode.
func imageFor(b *buffer.Buffer) image.Image {
	switch b.Channels {
	case pixel.Gray:
		img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
		copy(img.Pix, b.Pixels)
		return img
	case pixel.RGB:
		img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
		for y := 0; y < b.Height; y++ {
			for x := 0; x < b.Width; x++ {
				c := pixel.ReadAt(b.Pixels, b.Offset(x, y), pixel.RGB)
				img.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
			}
		}
		return img
	case pixel.ARGB:
		img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
		for y := 0; y < b.Height; y++ {
			for x := 0; x < b.Width; x++ {
				c := pixel.ReadAt(b.Pixels, b.Offset(x, y), pixel.ARGB)
				img.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
			}
		}
		return img
	default:
		panic("imageio: invalid channel count")
	}
}

// StorePNG requires register i to be loaded and encodes it as a PNG file at
// path.
func StorePNG(bufs *buffer.Store, i int, path string) error {
	if !bufs.IsLoaded(i) {
		return errors.Errorf("store_png: register %d is not loaded", i)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "store_png: creating %q", path)
	}
	defer f.Close()

	if err := png.Encode(f, imageFor(bufs.Get(i))); err != nil {
		return errors.Wrapf(err, "store_png: encoding %q", path)
	}
	return nil
}

// clampQuality clamps q to [0, 100], per spec §4.2.
func clampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}

// StoreJPEG requires register i to be loaded and encodes it as a JPEG file
// at path, overwriting any existing file.
func StoreJPEG(bufs *buffer.Store, i int, path string, quality int) error {
	if !bufs.IsLoaded(i) {
		return errors.Errorf("store_jpeg: register %d is not loaded", i)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "store_jpeg: creating %q", path)
	}
	defer f.Close()

	opts := &jpeg.Options{Quality: clampQuality(quality)}
	if err := jpeg.Encode(f, imageFor(bufs.Get(i)), opts); err != nil {
		return errors.Wrapf(err, "store_jpeg: encoding %q", path)
	}
	return nil
}

// StoreMJPG requires register i to be loaded and appends it as one more
// JPEG frame to the M-JPEG stream at path, creating both the stream and its
// companion index file (path+".ix") if they don't already exist.
func StoreMJPG(bufs *buffer.Store, i int, path string, quality int) error {
	if !bufs.IsLoaded(i) {
		return errors.Errorf("store_mjpg: register %d is not loaded", i)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "store_mjpg: opening %q", path)
	}
	defer f.Close()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.Wrapf(err, "store_mjpg: determining append offset in %q", path)
	}

	opts := &jpeg.Options{Quality: clampQuality(quality)}
	if err := jpeg.Encode(f, imageFor(bufs.Get(i)), opts); err != nil {
		return errors.Wrapf(err, "store_mjpg: encoding %q", path)
	}

	if err := appendMJPGIndexRecord(path+".ix", offset); err != nil {
		return errors.Wrapf(err, "store_mjpg: updating index for %q", path)
	}
	return nil
}

// appendMJPGIndexRecord appends one offset record to an MJPG index file,
// creating it (with a zero record count) if it doesn't already exist, and
// bumping its record count.
func appendMJPGIndexRecord(indexPath string, offset int64) error {
	var count uint64

	if data, err := os.ReadFile(indexPath); err == nil {
		if len(data) < 8 {
			return errors.Errorf("existing index %q is truncated", indexPath)
		}
		count = binary.BigEndian.Uint64(data[:8])
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "reading existing index %q", indexPath)
	}

	f, err := os.OpenFile(indexPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrapf(err, "opening index %q", indexPath)
	}
	defer f.Close()

	count++
	header := make([]byte, 8)
	binary.BigEndian.PutUint64(header, count)
	if _, err := f.WriteAt(header, 0); err != nil {
		return errors.Wrapf(err, "writing record count to %q", indexPath)
	}

	record := make([]byte, 8)
	binary.BigEndian.PutUint64(record, uint64(offset))
	if _, err := f.WriteAt(record, int64(8*count)); err != nil {
		return errors.Wrapf(err, "writing offset record to %q", indexPath)
	}

	return nil
}
