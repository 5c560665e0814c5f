// Package modeling fits smooth parametric models to frequency-sampled
// quantities: reflection-coefficient components, noise-wave temperatures,
// gain and offset curves.
//
// A fit is ordinary least squares on a fixed basis (plain polynomial or
// Fourier series) evaluated at frequency normalised to [-1, 1] over the fit
// window. The fitted Model is a pure function of frequency; all inputs are
// copied at construction so a Model never aliases caller arrays.
//
// Frequencies are in MHz throughout. Unit conversion happens at the edges of
// the system, never here.
package modeling

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidNTerms is returned when a fit is requested with a non-positive
// term count. It is raised before any array access.
var ErrInvalidNTerms = errors.New("n_terms must be >0")

// ModelType selects the basis used for a fit.
type ModelType int

const (
	// Polynomial uses the monomial basis 1, x, x², … on normalised frequency.
	Polynomial ModelType = iota
	// Fourier uses 1, cos(πx), sin(πx), cos(2πx), sin(2πx), … on normalised
	// frequency.
	Fourier
)

// String returns the configuration-surface name of the model type.
func (t ModelType) String() string {
	switch t {
	case Polynomial:
		return "polynomial"
	case Fourier:
		return "fourier"
	default:
		return fmt.Sprintf("ModelType(%d)", int(t))
	}
}

// ParseModelType converts a configuration string into a ModelType.
func ParseModelType(s string) (ModelType, error) {
	switch s {
	case "polynomial":
		return Polynomial, nil
	case "fourier":
		return Fourier, nil
	default:
		return 0, fmt.Errorf("invalid model type %q (must be polynomial or fourier)", s)
	}
}

// Model is a fitted frequency-domain curve. It is immutable after Fit and
// safe for concurrent evaluation.
type Model struct {
	typ    ModelType
	coeffs []float64
	fMin   float64
	fMax   float64
}

// Fit performs an ordinary least-squares fit of values sampled at freqs onto
// nTerms basis functions of the given type.
//
// Requirements, checked in order before any numeric work:
//   - nTerms > 0 (ErrInvalidNTerms otherwise)
//   - len(freqs) == len(values)
//   - len(freqs) >= nTerms
//   - the frequency window has non-zero width
//
// Evaluating the returned Model outside [min(freqs), max(freqs)] extrapolates
// the basis; it is permitted but carries no accuracy guarantee.
func Fit(freqs, values []float64, nTerms int, typ ModelType) (*Model, error) {
	if nTerms <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidNTerms, nTerms)
	}
	if typ != Polynomial && typ != Fourier {
		return nil, fmt.Errorf("invalid model type %v", typ)
	}
	if len(freqs) != len(values) {
		return nil, fmt.Errorf("fit: %d frequencies but %d values", len(freqs), len(values))
	}
	if len(freqs) < nTerms {
		return nil, fmt.Errorf("fit: %d samples cannot constrain %d terms", len(freqs), nTerms)
	}

	fMin, fMax := freqs[0], freqs[0]
	for _, f := range freqs[1:] {
		if f < fMin {
			fMin = f
		}
		if f > fMax {
			fMax = f
		}
	}
	if fMax == fMin {
		return nil, fmt.Errorf("fit: degenerate frequency window [%g, %g]", fMin, fMax)
	}

	design := make([][]float64, len(freqs))
	for i, f := range freqs {
		design[i] = basisRow(normalize(f, fMin, fMax), nTerms, typ)
	}

	coeffs, err := LeastSquares(design, values)
	if err != nil {
		return nil, fmt.Errorf("fit %s model with %d terms: %w", typ, nTerms, err)
	}

	return &Model{typ: typ, coeffs: coeffs, fMin: fMin, fMax: fMax}, nil
}

// NTerms returns the number of fitted basis terms.
func (m *Model) NTerms() int { return len(m.coeffs) }

// Type returns the basis type the model was fitted with.
func (m *Model) Type() ModelType { return m.typ }

// Coeffs returns a copy of the fitted coefficient vector.
func (m *Model) Coeffs() []float64 {
	out := make([]float64, len(m.coeffs))
	copy(out, m.coeffs)
	return out
}

// Window returns the frequency bounds the fit was normalised over.
func (m *Model) Window() (fMin, fMax float64) { return m.fMin, m.fMax }

// Eval evaluates the model at a single frequency in MHz.
func (m *Model) Eval(f float64) float64 {
	x := normalize(f, m.fMin, m.fMax)
	row := basisRow(x, len(m.coeffs), m.typ)
	sum := 0.0
	for i, c := range m.coeffs {
		sum += c * row[i]
	}
	return sum
}

// EvalAll evaluates the model at each frequency and returns a new slice.
func (m *Model) EvalAll(freqs []float64) []float64 {
	out := make([]float64, len(freqs))
	for i, f := range freqs {
		out[i] = m.Eval(f)
	}
	return out
}

// Restore reconstructs a Model from stored coefficients, e.g. a snapshot read
// back from the solution store. The inverse of Coeffs/Window/Type.
func Restore(typ ModelType, coeffs []float64, fMin, fMax float64) (*Model, error) {
	if len(coeffs) == 0 {
		return nil, fmt.Errorf("restore: %w (got 0)", ErrInvalidNTerms)
	}
	if fMax == fMin {
		return nil, fmt.Errorf("restore: degenerate frequency window [%g, %g]", fMin, fMax)
	}
	c := make([]float64, len(coeffs))
	copy(c, coeffs)
	return &Model{typ: typ, coeffs: c, fMin: fMin, fMax: fMax}, nil
}

// Basis evaluates the first nTerms basis functions of typ at frequency f,
// normalised over [fMin, fMax]. Callers use it to build joint design matrices
// spanning several curves that share one window.
func Basis(typ ModelType, f float64, nTerms int, fMin, fMax float64) []float64 {
	return basisRow(normalize(f, fMin, fMax), nTerms, typ)
}

// normalize maps f to [-1, 1] over the fit window.
func normalize(f, fMin, fMax float64) float64 {
	return (2*f - (fMax + fMin)) / (fMax - fMin)
}

// basisRow evaluates the first nTerms basis functions at normalised x.
func basisRow(x float64, nTerms int, typ ModelType) []float64 {
	row := make([]float64, nTerms)
	switch typ {
	case Polynomial:
		p := 1.0
		for i := range row {
			row[i] = p
			p *= x
		}
	case Fourier:
		row[0] = 1
		for i := 1; i < nTerms; i++ {
			k := float64((i + 1) / 2)
			if i%2 == 1 {
				row[i] = math.Cos(k * math.Pi * x)
			} else {
				row[i] = math.Sin(k * math.Pi * x)
			}
		}
	}
	return row
}
