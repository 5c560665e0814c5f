package s11

import (
	"fmt"

	"github.com/lowband/rxcal/pkg/modeling"
	"github.com/lowband/rxcal/pkg/network"
)

// LoadS11 is the corrected, fitted reflection coefficient of one reference
// load at the receiver input plane.
//
// Correction runs in two cascaded stages: the load's raw reading is first
// calibrated against the standards measured at the same plane, then the
// internal switch two-port is de-embedded so the result refers to the plane
// the receiver model uses.
type LoadS11 struct {
	name  string
	freqs []float64
	raw   []complex128
	model *modeling.ComplexModel
}

// NewLoadS11 corrects and fits one load's reflection coefficient.
//
// name identifies the load in errors ("ambient", "hot_load", ...). sw must
// already be constructed; its fitted models are evaluated on the load's own
// frequency axis.
func NewLoadS11(name string, ms MeasurementSet, sw *InternalSwitch, nTerms int, typ modeling.ModelType) (*LoadS11, error) {
	if name == "" {
		return nil, fmt.Errorf("load name cannot be empty")
	}
	if nTerms <= 0 {
		return nil, fmt.Errorf("load %s s11 fit: %w (got %d)", name, modeling.ErrInvalidNTerms, nTerms)
	}
	if sw == nil {
		return nil, fmt.Errorf("load %s: internal switch is required", name)
	}
	if err := ms.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if ms.Device == nil {
		return nil, fmt.Errorf("load %s: measurement set has no device reading", name)
	}

	// Stage one: remove the measurement path up to the switch plane.
	ideal := network.IdealStandards(len(ms.Freqs))
	box, err := network.Calibrate(ideal, network.Standards{Open: ms.Open, Short: ms.Short, Match: ms.Match})
	if err != nil {
		return nil, fmt.Errorf("load %s standards: %w", name, err)
	}
	atSwitch, err := box.Correct(ms.Device)
	if err != nil {
		return nil, fmt.Errorf("load %s correction: %w", name, err)
	}

	// Stage two: de-embed the switch so Γ refers to the receiver input plane.
	corrected, err := sw.TwoPortAt(ms.Freqs).DeEmbed(atSwitch)
	if err != nil {
		return nil, fmt.Errorf("load %s switch de-embedding: %w", name, err)
	}

	model, err := modeling.FitComplex(ms.Freqs, corrected, nTerms, typ)
	if err != nil {
		return nil, fmt.Errorf("load %s s11 fit: %w", name, err)
	}

	freqs := make([]float64, len(ms.Freqs))
	copy(freqs, ms.Freqs)
	return &LoadS11{name: name, freqs: freqs, raw: corrected, model: model}, nil
}

// Name returns the load identifier.
func (l *LoadS11) Name() string { return l.name }

// Frequencies returns a copy of the measurement frequency axis in MHz.
func (l *LoadS11) Frequencies() []float64 {
	out := make([]float64, len(l.freqs))
	copy(out, l.freqs)
	return out
}

// RawS11 returns a copy of the corrected, unmodeled per-bin reflection
// coefficient.
func (l *LoadS11) RawS11() []complex128 {
	out := make([]complex128, len(l.raw))
	copy(out, l.raw)
	return out
}

// Model returns the fitted reflection-coefficient model.
func (l *LoadS11) Model() *modeling.ComplexModel { return l.model }

// S11 evaluates the fitted model at a frequency in MHz.
func (l *LoadS11) S11(f float64) complex128 { return l.model.Eval(f) }
