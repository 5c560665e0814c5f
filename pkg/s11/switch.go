package s11

import (
	"fmt"

	"github.com/lowband/rxcal/pkg/modeling"
	"github.com/lowband/rxcal/pkg/network"
)

// SwitchNTerms carries the independent term counts for the three switch
// S-parameter fits.
type SwitchNTerms struct {
	S11    int
	S12S21 int
	S22    int
}

// InternalSwitch models the receiver's input switch as an error two-port.
//
// The switch sits between every reference load and the receiver, so its
// S-parameters must be known before any load's reflection coefficient can be
// de-embedded. They are derived by measuring the external standards through
// the switch: the OSL solve then yields directivity (= s11), source match
// (= s22) and reflection tracking (= s12·s21) per bin, each of which is
// fitted independently.
type InternalSwitch struct {
	freqs     []float64
	s11Data   []complex128
	s12s21Data []complex128
	s22Data   []complex128

	s11Model    *modeling.ComplexModel
	s12s21Model *modeling.ComplexModel
	s22Model    *modeling.ComplexModel
}

// NewInternalSwitch derives and fits the switch S-parameters from standards
// measured through the switch.
//
// matchOhm is the DC resistance of the switch kit's match standard. All three
// term counts must be positive; a zero or negative count fails before any
// numeric work, naming the offending component.
func NewInternalSwitch(ms MeasurementSet, matchOhm float64, nTerms SwitchNTerms, typ modeling.ModelType) (*InternalSwitch, error) {
	if nTerms.S11 <= 0 {
		return nil, fmt.Errorf("internal switch s11 fit: %w (got %d)", modeling.ErrInvalidNTerms, nTerms.S11)
	}
	if nTerms.S12S21 <= 0 {
		return nil, fmt.Errorf("internal switch s12s21 fit: %w (got %d)", modeling.ErrInvalidNTerms, nTerms.S12S21)
	}
	if nTerms.S22 <= 0 {
		return nil, fmt.Errorf("internal switch s22 fit: %w (got %d)", modeling.ErrInvalidNTerms, nTerms.S22)
	}
	if err := ms.Validate(); err != nil {
		return nil, fmt.Errorf("internal switch: %w", err)
	}
	if matchOhm <= 0 {
		return nil, fmt.Errorf("internal switch: match resistance must be positive, got %g", matchOhm)
	}

	ideal := network.IdealStandards(len(ms.Freqs)).MatchFromImpedance(complex(matchOhm, 0), 50)
	box, err := network.Calibrate(ideal, network.Standards{Open: ms.Open, Short: ms.Short, Match: ms.Match})
	if err != nil {
		return nil, fmt.Errorf("internal switch standards: %w", err)
	}

	sw := &InternalSwitch{
		s11Data:    box.Directivity(),
		s12s21Data: box.ReflectionTracking(),
		s22Data:    box.SourceMatch(),
	}
	sw.freqs = make([]float64, len(ms.Freqs))
	copy(sw.freqs, ms.Freqs)

	if sw.s11Model, err = modeling.FitComplex(sw.freqs, sw.s11Data, nTerms.S11, typ); err != nil {
		return nil, fmt.Errorf("internal switch s11 fit: %w", err)
	}
	if sw.s12s21Model, err = modeling.FitComplex(sw.freqs, sw.s12s21Data, nTerms.S12S21, typ); err != nil {
		return nil, fmt.Errorf("internal switch s12s21 fit: %w", err)
	}
	if sw.s22Model, err = modeling.FitComplex(sw.freqs, sw.s22Data, nTerms.S22, typ); err != nil {
		return nil, fmt.Errorf("internal switch s22 fit: %w", err)
	}

	return sw, nil
}

// Frequencies returns a copy of the measurement frequency axis in MHz.
func (s *InternalSwitch) Frequencies() []float64 {
	out := make([]float64, len(s.freqs))
	copy(out, s.freqs)
	return out
}

// S11Data returns a copy of the per-bin derived switch s11.
func (s *InternalSwitch) S11Data() []complex128 {
	out := make([]complex128, len(s.s11Data))
	copy(out, s.s11Data)
	return out
}

// S12S21Data returns a copy of the per-bin derived s12·s21 product.
func (s *InternalSwitch) S12S21Data() []complex128 {
	out := make([]complex128, len(s.s12s21Data))
	copy(out, s.s12s21Data)
	return out
}

// S22Data returns a copy of the per-bin derived switch s22.
func (s *InternalSwitch) S22Data() []complex128 {
	out := make([]complex128, len(s.s22Data))
	copy(out, s.s22Data)
	return out
}

// S11Model returns the fitted s11 model.
func (s *InternalSwitch) S11Model() *modeling.ComplexModel { return s.s11Model }

// S12S21Model returns the fitted s12·s21 model.
func (s *InternalSwitch) S12S21Model() *modeling.ComplexModel { return s.s12s21Model }

// S22Model returns the fitted s22 model.
func (s *InternalSwitch) S22Model() *modeling.ComplexModel { return s.s22Model }

// TwoPortAt evaluates the fitted switch models on a frequency grid, yielding
// the two-port used to de-embed load measurements.
func (s *InternalSwitch) TwoPortAt(freqs []float64) network.TwoPort {
	return network.TwoPort{
		S11:    s.s11Model.EvalAll(freqs),
		S12S21: s.s12s21Model.EvalAll(freqs),
		S22:    s.s22Model.EvalAll(freqs),
	}
}
