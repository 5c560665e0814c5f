// Package network removes linear distortion from one-port reflection
// measurements.
//
// A reflectometer never sees a device directly: connectors, cables and the
// receiver switch form an unknown error two-port between the device and the
// reference plane. Measuring three known standards (open, short, match)
// determines that two-port, after which any raw measurement can be mapped
// back to the device's true reflection coefficient. All corrections are
// applied per frequency bin, independently.
package network

import (
	"errors"
	"fmt"
	"math/cmplx"
)

// ErrDegenerateStandards is returned when the three calibration standards do
// not span the bilinear transform, e.g. two standards share an ideal value.
var ErrDegenerateStandards = errors.New("degenerate calibration standards")

// detEps is the relative determinant threshold below which the per-bin
// standards system is treated as degenerate.
const detEps = 1e-12

// Standards holds the reflection coefficients of the three one-port
// calibration standards on a shared frequency axis.
type Standards struct {
	Open  []complex128
	Short []complex128
	Match []complex128
}

// IdealStandards returns the textbook standards (+1, -1, 0) replicated over
// n frequency bins. MatchFromImpedance refines the match column when the
// physical termination is not exactly the reference impedance.
func IdealStandards(n int) Standards {
	s := Standards{
		Open:  make([]complex128, n),
		Short: make([]complex128, n),
		Match: make([]complex128, n),
	}
	for i := 0; i < n; i++ {
		s.Open[i] = 1
		s.Short[i] = -1
	}
	return s
}

// MatchFromImpedance replaces the match column with the reflection
// coefficient of a termination of the given impedance against z0, constant
// over frequency. A 49.98 Ω termination in a 50 Ω system yields a small
// negative real Γ rather than exactly zero.
func (s Standards) MatchFromImpedance(z, z0 complex128) Standards {
	out := s
	out.Match = make([]complex128, len(s.Match))
	gamma := GammaFromImpedance(z, z0)
	for i := range out.Match {
		out.Match[i] = gamma
	}
	return out
}

func (s Standards) bins() (int, error) {
	n := len(s.Open)
	if len(s.Short) != n || len(s.Match) != n {
		return 0, fmt.Errorf("standards arrays disagree: open=%d short=%d match=%d",
			len(s.Open), len(s.Short), len(s.Match))
	}
	if n == 0 {
		return 0, errors.New("standards are empty")
	}
	return n, nil
}

// ErrorBox is the per-bin solution of the three-standard calibration: the
// coefficients (a, b, c) of the bilinear transform
//
//	measured = (a·Γ + b) / (c·Γ + 1)
//
// relating a device's true reflection coefficient Γ to its raw measurement.
type ErrorBox struct {
	a, b, c []complex128
}

// Calibrate solves the error box from the ideal and raw measured values of
// the three standards. The solve is exact for any non-degenerate standards;
// a (near-)singular per-bin system returns ErrDegenerateStandards identifying
// the bin rather than producing a poorly conditioned result.
func Calibrate(ideal, measured Standards) (*ErrorBox, error) {
	n, err := ideal.bins()
	if err != nil {
		return nil, fmt.Errorf("ideal %w", err)
	}
	m, err := measured.bins()
	if err != nil {
		return nil, fmt.Errorf("measured %w", err)
	}
	if n != m {
		return nil, fmt.Errorf("ideal standards have %d bins, measured %d", n, m)
	}

	box := &ErrorBox{
		a: make([]complex128, n),
		b: make([]complex128, n),
		c: make([]complex128, n),
	}
	for i := 0; i < n; i++ {
		g := [3]complex128{ideal.Open[i], ideal.Short[i], ideal.Match[i]}
		mm := [3]complex128{measured.Open[i], measured.Short[i], measured.Match[i]}

		// Each standard contributes  a·g + b - c·g·m = m.
		var rows [3][3]complex128
		var rhs [3]complex128
		for k := 0; k < 3; k++ {
			rows[k] = [3]complex128{g[k], 1, -g[k] * mm[k]}
			rhs[k] = mm[k]
		}

		sol, err := solveComplex3(rows, rhs)
		if err != nil {
			return nil, fmt.Errorf("bin %d: %w", i, err)
		}
		box.a[i], box.b[i], box.c[i] = sol[0], sol[1], sol[2]
	}
	return box, nil
}

// Bins returns the number of frequency bins the error box covers.
func (e *ErrorBox) Bins() int { return len(e.a) }

// Correct inverts the bilinear transform for every bin of a raw one-port
// measurement, returning the device's reflection coefficient at the
// reference plane.
func (e *ErrorBox) Correct(raw []complex128) ([]complex128, error) {
	if len(raw) != len(e.a) {
		return nil, fmt.Errorf("raw measurement has %d bins, error box %d", len(raw), len(e.a))
	}
	out := make([]complex128, len(raw))
	for i, m := range raw {
		den := e.a[i] - e.c[i]*m
		if den == 0 {
			return nil, fmt.Errorf("bin %d: measurement at bilinear pole: %w", i, ErrDegenerateStandards)
		}
		out[i] = (m - e.b[i]) / den
	}
	return out, nil
}

// Directivity returns the error-box directivity term per bin (the raw
// measurement of a perfect match).
func (e *ErrorBox) Directivity() []complex128 {
	out := make([]complex128, len(e.b))
	copy(out, e.b)
	return out
}

// SourceMatch returns the error-box source-match term per bin.
func (e *ErrorBox) SourceMatch() []complex128 {
	out := make([]complex128, len(e.c))
	for i, c := range e.c {
		out[i] = -c
	}
	return out
}

// ReflectionTracking returns the error-box reflection-tracking term per bin.
func (e *ErrorBox) ReflectionTracking() []complex128 {
	out := make([]complex128, len(e.a))
	for i := range e.a {
		out[i] = e.a[i] - e.b[i]*e.c[i]
	}
	return out
}

// solveComplex3 solves a 3x3 complex system by Gaussian elimination with
// partial pivoting on magnitude.
func solveComplex3(a [3][3]complex128, b [3]complex128) ([3]complex128, error) {
	var zero [3]complex128

	scale := 0.0
	for _, row := range a {
		for _, v := range row {
			if av := cmplx.Abs(v); av > scale {
				scale = av
			}
		}
	}
	if scale == 0 {
		return zero, fmt.Errorf("zero standards system: %w", ErrDegenerateStandards)
	}

	for col := 0; col < 3; col++ {
		pivot := col
		maxAbs := cmplx.Abs(a[col][col])
		for r := col + 1; r < 3; r++ {
			if av := cmplx.Abs(a[r][col]); av > maxAbs {
				maxAbs = av
				pivot = r
			}
		}
		if maxAbs <= detEps*scale {
			return zero, fmt.Errorf("pivot %d is %g relative to scale %g: %w",
				col, maxAbs, scale, ErrDegenerateStandards)
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}
		for r := col + 1; r < 3; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < 3; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	var x [3]complex128
	for i := 2; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < 3; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x, nil
}
