// Package affine2d implements the matrix register store: 2D affine
// transforms with premultiply helpers and a lazily-cached inverse.
package affine2d

import (
	"fmt"
	"math"
)

// MaxRegisters is the hard cap on the number of matrix registers a VM may
// declare, per spec §6.
const MaxRegisters = 4096

// Matrix is a 2D affine transform [[a,b,c],[d,e,f],[0,0,1]] mapping source
// space to target space.
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity is the identity transform.
var Identity = Matrix{A: 1, E: 1}

// Inverse is a cached inverse transform, mapping target space back to
// source space.
type Inverse struct {
	A, B, C float64
	D, E, F float64
}

// Apply maps point (x, y) through m.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.C, m.D*x + m.E*y + m.F
}

// Apply maps point (x, y) through the inverse transform.
func (inv Inverse) Apply(x, y float64) (float64, float64) {
	return inv.A*x + inv.B*y + inv.C, inv.D*x + inv.E*y + inv.F
}

// Mul returns a*b (apply b first, then a), matching matrix_multiply's
// "M = A . B" convention in spec §4.3.
func Mul(a, b Matrix) Matrix {
	return Matrix{
		A: a.A*b.A + a.B*b.D,
		B: a.A*b.B + a.B*b.E,
		C: a.A*b.C + a.B*b.F + a.C,
		D: a.D*b.A + a.E*b.D,
		E: a.D*b.B + a.E*b.E,
		F: a.D*b.C + a.E*b.F + a.F,
	}
}

func translation(tx, ty float64) Matrix {
	return Matrix{A: 1, E: 1, C: tx, F: ty}
}

func scaling(sx, sy float64) Matrix {
	return Matrix{A: sx, E: sy}
}

func rotation(deg float64) Matrix {
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return Matrix{A: cos, B: -sin, D: sin, E: cos}
}

// invert computes the inverse of m, per spec §4.3's formulas. The caller
// must already have checked the determinant is non-zero.
func invert(m Matrix) Inverse {
	det := m.A*m.E - m.B*m.D
	return Inverse{
		A: m.E / det,
		B: -m.B / det,
		C: (m.B*m.F - m.C*m.E) / det,
		D: -m.D / det,
		E: m.A / det,
		F: (m.C*m.D - m.A*m.F) / det,
	}
}

// reg is one matrix register: its current entries plus a lazily-computed,
// mutation-invalidated inverse.
type reg struct {
	m     Matrix
	inv   Inverse
	invOK bool
}

// Store is the fixed-size matrix register table.
type Store struct {
	regs []reg
}

// NewStore allocates a store with n registers, each created as identity
// with the identity inverse already cached, per spec §3's lifecycle rule.
func NewStore(n int) (*Store, error) {
	if n < 0 || n > MaxRegisters {
		return nil, fmt.Errorf("affine2d: register count %d out of range [0, %d]", n, MaxRegisters)
	}
	s := &Store{regs: make([]reg, n)}
	for i := range s.regs {
		s.regs[i] = reg{m: Identity, inv: invert(Identity), invOK: true}
	}
	return s, nil
}

// Count returns the fixed register count (matc() in spec §4.3).
func (s *Store) Count() int {
	return len(s.regs)
}

func (s *Store) checkIndex(i int) {
	if i < 0 || i >= len(s.regs) {
		panic(fmt.Sprintf("affine2d: register index %d out of range [0, %d)", i, len(s.regs)))
	}
}

// Get returns the current entries of register i.
func (s *Store) Get(i int) Matrix {
	s.checkIndex(i)
	return s.regs[i].m
}

// set stores m into register i and invalidates its cached inverse.
func (s *Store) set(i int, m Matrix) {
	s.checkIndex(i)
	s.regs[i].m = m
	s.regs[i].invOK = false
}

// Reset sets register i to identity with the identity inverse cached.
func (s *Store) Reset(i int) {
	s.checkIndex(i)
	s.regs[i] = reg{m: Identity, inv: invert(Identity), invOK: true}
}

// Multiply stores a*b into register m. m must be distinct from both a and b;
// a and b may coincide. Fatal on aliasing, per spec §4.3.
func (s *Store) Multiply(m, a, b int) {
	if m == a || m == b {
		panic("affine2d: matrix_multiply result register aliases an operand")
	}
	s.set(m, Mul(s.Get(a), s.Get(b)))
}

// Translate premultiplies register m by a translation of (tx, ty): stores
// T . M back into m. No-op when both translations are zero.
func (s *Store) Translate(m int, tx, ty float64) {
	mustFinite(tx, ty)
	if tx == 0 && ty == 0 {
		return
	}
	s.set(m, Mul(translation(tx, ty), s.Get(m)))
}

// Scale premultiplies register m by diag(sx, sy, 1). sx and sy must be
// finite and non-zero (fatal otherwise). No-op when both equal 1.
func (s *Store) Scale(m int, sx, sy float64) {
	mustFinite(sx, sy)
	if sx == 0 || sy == 0 {
		panic("affine2d: matrix_scale with zero scale factor")
	}
	if sx == 1 && sy == 1 {
		return
	}
	s.set(m, Mul(scaling(sx, sy), s.Get(m)))
}

// Rotate premultiplies register m by a clockwise rotation of deg degrees,
// reduced modulo 360. deg must be finite (fatal otherwise). No-op when the
// reduced angle is zero.
func (s *Store) Rotate(m int, deg float64) {
	mustFinite(deg)
	reduced := math.Mod(deg, 360)
	if reduced < 0 {
		reduced += 360
	}
	if reduced == 0 {
		return
	}
	s.set(m, Mul(rotation(reduced), s.Get(m)))
}

// Inverse returns register m's inverse, computing and caching it on first
// use since the last mutation. Panics if the transform is singular.
func (s *Store) Inverse(m int) Inverse {
	s.checkIndex(m)
	r := &s.regs[m]
	if !r.invOK {
		det := r.m.A*r.m.E - r.m.B*r.m.D
		if det == 0 {
			panic(fmt.Sprintf("affine2d: matrix %d is singular, cannot invert", m))
		}
		r.inv = invert(r.m)
		r.invOK = true
	}
	return r.inv
}

func mustFinite(vs ...float64) {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			panic("affine2d: non-finite argument")
		}
	}
}
