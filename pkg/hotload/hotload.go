// Package hotload corrects the hot reference load for the loss of the
// semi-rigid cable between the load and the reference plane.
//
// The cable attenuates the hot load's thermal emission and adds its own, so
// the temperature the receiver actually sees is a gain-weighted mix of the
// load and ambient temperatures. The gain follows from the cable's two-port
// S-parameters and the hot load's reflection coefficient.
package hotload

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/lowband/rxcal/pkg/modeling"
	"github.com/lowband/rxcal/pkg/network"
)

const gainSlack = 1e-9

// Correction holds the per-bin cable power gain for one observation.
type Correction struct {
	freqs []float64
	gain  []float64
}

// New computes the cable power gain per bin.
//
// cable is the semi-rigid two-port, evaluated on the same grid as gammaRef.
// gammaRef is the hot load's reflection coefficient measured at the reference
// plane, i.e. looking into the cable. The gain of a passive cable lies in
// (0, 1]; values outside that range indicate inconsistent inputs and are an
// error rather than a silent clamp.
func New(freqs []float64, cable network.TwoPort, gammaRef []complex128) (*Correction, error) {
	if len(freqs) == 0 {
		return nil, errors.New("hot load correction has no frequency axis")
	}
	if len(gammaRef) != len(freqs) {
		return nil, fmt.Errorf("reflection coefficient has %d bins, frequency axis %d", len(gammaRef), len(freqs))
	}

	// Reflection at the load side of the cable.
	gammaLoad, err := cable.DeEmbed(gammaRef)
	if err != nil {
		return nil, fmt.Errorf("hot load cable de-embedding: %w", err)
	}

	gain := make([]float64, len(freqs))
	for i := range freqs {
		num := cmplx.Abs(cable.S12S21[i]) * (1 - absSq(gammaLoad[i]))
		den := absSq(1-cable.S11[i]*gammaLoad[i]) * (1 - absSq(gammaRef[i]))
		if den == 0 {
			return nil, fmt.Errorf("hot load gain undefined at %g MHz", freqs[i])
		}
		g := num / den
		if g <= 0 || g > 1+gainSlack {
			return nil, fmt.Errorf("hot load gain %g at %g MHz outside (0, 1]", g, freqs[i])
		}
		if g > 1 {
			g = 1
		}
		gain[i] = g
	}

	return &Correction{
		freqs: append([]float64(nil), freqs...),
		gain:  gain,
	}, nil
}

func absSq(z complex128) float64 {
	return real(z)*real(z) + imag(z)*imag(z)
}

// Frequencies returns a copy of the frequency axis in MHz.
func (c *Correction) Frequencies() []float64 {
	return append([]float64(nil), c.freqs...)
}

// Gain returns a copy of the per-bin cable power gain.
func (c *Correction) Gain() []float64 {
	return append([]float64(nil), c.gain...)
}

// EffectiveTemperature returns the per-bin temperature seen at the reference
// plane, G·tHot + (1-G)·tAmbient, in Kelvin.
func (c *Correction) EffectiveTemperature(tHot, tAmbient float64) []float64 {
	out := make([]float64, len(c.gain))
	for i, g := range c.gain {
		out[i] = g*tHot + (1-g)*tAmbient
	}
	return out
}

// Embedded bench measurement of the standard semi-rigid cable, 50-100 MHz.
// Used when an observation archive carries no cable S-parameter files.
var semiRigidTable = struct {
	freqs  []float64
	s11    []complex128
	s12s21 []complex128
	s22    []complex128
}{
	freqs: []float64{50, 55, 60, 65, 70, 75, 80, 85, 90, 95, 100},
	s11: []complex128{
		complex(0.0104, 0.0282), complex(0.0101, 0.0296), complex(0.0097, 0.0310),
		complex(0.0092, 0.0324), complex(0.0086, 0.0337), complex(0.0080, 0.0350),
		complex(0.0073, 0.0362), complex(0.0065, 0.0374), complex(0.0057, 0.0385),
		complex(0.0048, 0.0396), complex(0.0039, 0.0406),
	},
	s12s21: []complex128{
		complex(0.9861, -0.1279), complex(0.9846, -0.1404), complex(0.9830, -0.1528),
		complex(0.9812, -0.1652), complex(0.9793, -0.1775), complex(0.9772, -0.1898),
		complex(0.9750, -0.2020), complex(0.9727, -0.2141), complex(0.9702, -0.2262),
		complex(0.9676, -0.2382), complex(0.9648, -0.2501),
	},
	s22: []complex128{
		complex(0.0098, 0.0271), complex(0.0095, 0.0285), complex(0.0091, 0.0299),
		complex(0.0086, 0.0312), complex(0.0081, 0.0325), complex(0.0075, 0.0338),
		complex(0.0068, 0.0350), complex(0.0061, 0.0361), complex(0.0053, 0.0372),
		complex(0.0045, 0.0383), complex(0.0036, 0.0393),
	},
}

const semiRigidNTerms = 4

// DefaultCable fits the embedded semi-rigid cable table and evaluates it on
// freqs. freqs must lie inside the table's 50-100 MHz span.
func DefaultCable(freqs []float64) (network.TwoPort, error) {
	for _, f := range freqs {
		if f < semiRigidTable.freqs[0] || f > semiRigidTable.freqs[len(semiRigidTable.freqs)-1] {
			return network.TwoPort{}, fmt.Errorf("frequency %g MHz outside embedded cable table span [%g, %g]",
				f, semiRigidTable.freqs[0], semiRigidTable.freqs[len(semiRigidTable.freqs)-1])
		}
	}

	s11, err := modeling.FitComplex(semiRigidTable.freqs, semiRigidTable.s11, semiRigidNTerms, modeling.Polynomial)
	if err != nil {
		return network.TwoPort{}, fmt.Errorf("embedded cable s11 fit: %w", err)
	}
	s12s21, err := modeling.FitComplex(semiRigidTable.freqs, semiRigidTable.s12s21, semiRigidNTerms, modeling.Polynomial)
	if err != nil {
		return network.TwoPort{}, fmt.Errorf("embedded cable s12s21 fit: %w", err)
	}
	s22, err := modeling.FitComplex(semiRigidTable.freqs, semiRigidTable.s22, semiRigidNTerms, modeling.Polynomial)
	if err != nil {
		return network.TwoPort{}, fmt.Errorf("embedded cable s22 fit: %w", err)
	}

	return network.TwoPort{
		S11:    s11.EvalAll(freqs),
		S12S21: s12s21.EvalAll(freqs),
		S22:    s22.EvalAll(freqs),
	}, nil
}
