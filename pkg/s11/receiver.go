package s11

import (
	"fmt"

	"github.com/lowband/rxcal/pkg/modeling"
	"github.com/lowband/rxcal/pkg/network"
)

// Receiver models the reflection coefficient looking into the receiver
// input. Immutable after construction.
type Receiver struct {
	freqs []float64
	raw   []complex128
	model *modeling.ComplexModel
}

// NewReceiver corrects the receiver reading against its own standards and
// fits the result.
//
// matchOhm is the DC resistance of the match standard; the textbook ideals
// assume a perfect termination, and the small departure of the physical
// resistor is folded into the ideal match column. nTerms must be positive
// (checked before any correction runs).
func NewReceiver(ms MeasurementSet, matchOhm float64, nTerms int, typ modeling.ModelType) (*Receiver, error) {
	if nTerms <= 0 {
		return nil, fmt.Errorf("receiver s11 fit: %w (got %d)", modeling.ErrInvalidNTerms, nTerms)
	}
	if err := ms.Validate(); err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}
	if ms.Device == nil {
		return nil, fmt.Errorf("receiver: measurement set has no device reading")
	}
	if matchOhm <= 0 {
		return nil, fmt.Errorf("receiver: match resistance must be positive, got %g", matchOhm)
	}

	ideal := network.IdealStandards(len(ms.Freqs)).MatchFromImpedance(complex(matchOhm, 0), 50)
	box, err := network.Calibrate(ideal, network.Standards{Open: ms.Open, Short: ms.Short, Match: ms.Match})
	if err != nil {
		return nil, fmt.Errorf("receiver standards: %w", err)
	}
	corrected, err := box.Correct(ms.Device)
	if err != nil {
		return nil, fmt.Errorf("receiver correction: %w", err)
	}

	model, err := modeling.FitComplex(ms.Freqs, corrected, nTerms, typ)
	if err != nil {
		return nil, fmt.Errorf("receiver s11 fit: %w", err)
	}

	freqs := make([]float64, len(ms.Freqs))
	copy(freqs, ms.Freqs)
	return &Receiver{freqs: freqs, raw: corrected, model: model}, nil
}

// Frequencies returns a copy of the measurement frequency axis in MHz.
func (r *Receiver) Frequencies() []float64 {
	out := make([]float64, len(r.freqs))
	copy(out, r.freqs)
	return out
}

// RawS11 returns a copy of the corrected, unmodeled per-bin reflection
// coefficient.
func (r *Receiver) RawS11() []complex128 {
	out := make([]complex128, len(r.raw))
	copy(out, r.raw)
	return out
}

// Model returns the fitted reflection-coefficient model.
func (r *Receiver) Model() *modeling.ComplexModel { return r.model }

// S11 evaluates the fitted model at a frequency in MHz.
func (r *Receiver) S11(f float64) complex128 { return r.model.Eval(f) }
