package modeling

import "fmt"

// ComplexModel models a complex-valued frequency curve, e.g. a reflection
// coefficient, as two independent real fits of the real and imaginary parts.
type ComplexModel struct {
	re *Model
	im *Model
}

// FitComplex fits the real and imaginary parts of values independently, each
// with nTerms basis terms. The same validation as Fit applies; a failure in
// either component aborts the whole fit.
func FitComplex(freqs []float64, values []complex128, nTerms int, typ ModelType) (*ComplexModel, error) {
	if nTerms <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidNTerms, nTerms)
	}
	if len(freqs) != len(values) {
		return nil, fmt.Errorf("fit: %d frequencies but %d values", len(freqs), len(values))
	}

	re := make([]float64, len(values))
	im := make([]float64, len(values))
	for i, v := range values {
		re[i] = real(v)
		im[i] = imag(v)
	}

	reModel, err := Fit(freqs, re, nTerms, typ)
	if err != nil {
		return nil, fmt.Errorf("real part: %w", err)
	}
	imModel, err := Fit(freqs, im, nTerms, typ)
	if err != nil {
		return nil, fmt.Errorf("imaginary part: %w", err)
	}

	return &ComplexModel{re: reModel, im: imModel}, nil
}

// Eval evaluates the model at a single frequency in MHz.
func (m *ComplexModel) Eval(f float64) complex128 {
	return complex(m.re.Eval(f), m.im.Eval(f))
}

// EvalAll evaluates the model at each frequency and returns a new slice.
func (m *ComplexModel) EvalAll(freqs []float64) []complex128 {
	out := make([]complex128, len(freqs))
	for i, f := range freqs {
		out[i] = m.Eval(f)
	}
	return out
}

// Real returns the fitted real-part model.
func (m *ComplexModel) Real() *Model { return m.re }

// Imag returns the fitted imaginary-part model.
func (m *ComplexModel) Imag() *Model { return m.im }

// Window returns the frequency bounds the fit was normalised over.
func (m *ComplexModel) Window() (fMin, fMax float64) { return m.re.Window() }
