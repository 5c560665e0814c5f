// Package s11 turns raw reflection-coefficient readings into smooth
// frequency-domain models.
//
// Every physical one-port in the instrument — the receiver input, each
// reference load, the internal switch — is measured alongside open, short and
// match standards. This package applies the network corrections that strip
// the measurement path out of those readings and fits the result with
// pkg/modeling, yielding a continuous Γ(f) per device.
package s11

import (
	"errors"
	"fmt"
)

// MeasurementSet is a raw one-port measurement session: the device under test
// and the three calibration standards, all read at the same reference plane
// on a shared frequency axis in MHz.
type MeasurementSet struct {
	Freqs  []float64
	Device []complex128
	Open   []complex128
	Short  []complex128
	Match  []complex128
}

// Validate checks that all arrays share the frequency axis length.
func (m MeasurementSet) Validate() error {
	n := len(m.Freqs)
	if n == 0 {
		return errors.New("measurement set has no frequency axis")
	}
	if len(m.Open) != n || len(m.Short) != n || len(m.Match) != n {
		return fmt.Errorf("standards do not match frequency axis: freqs=%d open=%d short=%d match=%d",
			n, len(m.Open), len(m.Short), len(m.Match))
	}
	if m.Device != nil && len(m.Device) != n {
		return fmt.Errorf("device reading has %d bins, frequency axis %d", len(m.Device), n)
	}
	return nil
}

// Crop returns the subset of the measurement set with fLow <= f <= fHigh.
// The original set is unchanged. An empty result is an error.
func (m MeasurementSet) Crop(fLow, fHigh float64) (MeasurementSet, error) {
	if err := m.Validate(); err != nil {
		return MeasurementSet{}, err
	}
	if fLow > fHigh {
		return MeasurementSet{}, fmt.Errorf("frequency window inverted: [%g, %g]", fLow, fHigh)
	}

	out := MeasurementSet{}
	for i, f := range m.Freqs {
		if f < fLow || f > fHigh {
			continue
		}
		out.Freqs = append(out.Freqs, f)
		out.Open = append(out.Open, m.Open[i])
		out.Short = append(out.Short, m.Short[i])
		out.Match = append(out.Match, m.Match[i])
		if m.Device != nil {
			out.Device = append(out.Device, m.Device[i])
		}
	}
	if len(out.Freqs) == 0 {
		return MeasurementSet{}, fmt.Errorf("no samples inside window [%g, %g] MHz", fLow, fHigh)
	}
	return out, nil
}
