// Package spectra holds the averaged power-spectral-density readings of one
// reference source and derives its uncalibrated antenna temperature.
//
// A lab measurement records three switched PSD time series per source: the
// source itself, the internal calibration load, and the calibration load with
// the noise source firing. Averaging their ratio cancels the receiver gain,
// leaving a three-position ratio Q that maps linearly to temperature.
package spectra

import (
	"errors"
	"fmt"
	"math"
)

// Default assumed temperatures of the internal calibration load, in Kelvin.
const (
	DefaultTLoad   = 300
	DefaultTLoadNS = 350
)

// Reading is one source's raw switched time series, [time][frequency].
// ThermistorTemps carries one physical temperature reading per time sample.
type Reading struct {
	Freqs           []float64
	PSource         [][]float64
	PLoad           [][]float64
	PLoadNS         [][]float64
	ThermistorTemps []float64
}

// Options controls construction-time preprocessing.
type Options struct {
	// IgnorePercent discards this leading percentage of time samples before
	// averaging, dropping the settling period after a source swap. Must be
	// in [0, 100).
	IgnorePercent float64

	// FLow and FHigh mask the frequency axis, in MHz. Both zero means no
	// masking.
	FLow, FHigh float64

	// TLoad and TLoadNS override the assumed calibration-load temperatures,
	// in Kelvin. Zero selects the defaults.
	TLoad, TLoadNS float64
}

// Spectrum is an immutable time-averaged spectrum for one source.
type Spectrum struct {
	freqs   []float64
	pSource []float64
	pLoad   []float64
	pLoadNS []float64

	thermAvg float64
	tLoad    float64
	tLoadNS  float64
}

// New averages a raw reading into a Spectrum.
//
// Preprocessing order: discard the leading IgnorePercent of time samples,
// average over the remaining ones, then mask the frequency window.
func New(r Reading, opts Options) (*Spectrum, error) {
	if err := validateReading(r); err != nil {
		return nil, err
	}
	if opts.IgnorePercent < 0 || opts.IgnorePercent >= 100 {
		return nil, fmt.Errorf("ignore fraction must be in [0, 100) percent, got %g", opts.IgnorePercent)
	}

	nTimes := len(r.PSource)
	skip := int(math.Floor(float64(nTimes) * opts.IgnorePercent / 100))
	if skip >= nTimes {
		return nil, fmt.Errorf("ignore fraction %g%% leaves no time samples of %d", opts.IgnorePercent, nTimes)
	}

	s := &Spectrum{
		freqs:   append([]float64(nil), r.Freqs...),
		pSource: averageRows(r.PSource[skip:]),
		pLoad:   averageRows(r.PLoad[skip:]),
		pLoadNS: averageRows(r.PLoadNS[skip:]),
		tLoad:   opts.TLoad,
		tLoadNS: opts.TLoadNS,
	}
	for _, t := range r.ThermistorTemps[skip:] {
		s.thermAvg += t
	}
	s.thermAvg /= float64(nTimes - skip)

	if err := s.applyDefaultsAndWindow(opts); err != nil {
		return nil, err
	}
	return s, nil
}

// FromAveraged wraps spectra that were already averaged over time.
// opts.IgnorePercent is not applicable and must be zero.
func FromAveraged(freqs, pSource, pLoad, pLoadNS []float64, thermistorTemp float64, opts Options) (*Spectrum, error) {
	n := len(freqs)
	if n == 0 {
		return nil, errors.New("spectrum has no frequency axis")
	}
	if len(pSource) != n || len(pLoad) != n || len(pLoadNS) != n {
		return nil, fmt.Errorf("spectrum arrays do not match frequency axis: freqs=%d source=%d load=%d load_ns=%d",
			n, len(pSource), len(pLoad), len(pLoadNS))
	}
	if opts.IgnorePercent != 0 {
		return nil, errors.New("ignore fraction does not apply to pre-averaged spectra")
	}

	s := &Spectrum{
		freqs:    append([]float64(nil), freqs...),
		pSource:  append([]float64(nil), pSource...),
		pLoad:    append([]float64(nil), pLoad...),
		pLoadNS:  append([]float64(nil), pLoadNS...),
		thermAvg: thermistorTemp,
		tLoad:    opts.TLoad,
		tLoadNS:  opts.TLoadNS,
	}
	if err := s.applyDefaultsAndWindow(opts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Spectrum) applyDefaultsAndWindow(opts Options) error {
	if s.tLoad == 0 {
		s.tLoad = DefaultTLoad
	}
	if s.tLoadNS == 0 {
		s.tLoadNS = DefaultTLoadNS
	}

	if opts.FLow == 0 && opts.FHigh == 0 {
		return nil
	}
	if opts.FLow > opts.FHigh {
		return fmt.Errorf("frequency window inverted: [%g, %g]", opts.FLow, opts.FHigh)
	}
	var freqs, src, ld, ldns []float64
	for i, f := range s.freqs {
		if f < opts.FLow || f > opts.FHigh {
			continue
		}
		freqs = append(freqs, f)
		src = append(src, s.pSource[i])
		ld = append(ld, s.pLoad[i])
		ldns = append(ldns, s.pLoadNS[i])
	}
	if len(freqs) == 0 {
		return fmt.Errorf("no spectrum samples inside window [%g, %g] MHz", opts.FLow, opts.FHigh)
	}
	s.freqs, s.pSource, s.pLoad, s.pLoadNS = freqs, src, ld, ldns
	return nil
}

func validateReading(r Reading) error {
	n := len(r.Freqs)
	if n == 0 {
		return errors.New("spectrum reading has no frequency axis")
	}
	nTimes := len(r.PSource)
	if nTimes == 0 {
		return errors.New("spectrum reading has no time samples")
	}
	if len(r.PLoad) != nTimes || len(r.PLoadNS) != nTimes {
		return fmt.Errorf("switched series disagree on time samples: source=%d load=%d load_ns=%d",
			nTimes, len(r.PLoad), len(r.PLoadNS))
	}
	if len(r.ThermistorTemps) != nTimes {
		return fmt.Errorf("thermistor readings have %d samples, time axis %d", len(r.ThermistorTemps), nTimes)
	}
	for t := 0; t < nTimes; t++ {
		if len(r.PSource[t]) != n || len(r.PLoad[t]) != n || len(r.PLoadNS[t]) != n {
			return fmt.Errorf("time sample %d does not match frequency axis: source=%d load=%d load_ns=%d axis=%d",
				t, len(r.PSource[t]), len(r.PLoad[t]), len(r.PLoadNS[t]), n)
		}
	}
	return nil
}

func averageRows(rows [][]float64) []float64 {
	out := make([]float64, len(rows[0]))
	for _, row := range rows {
		for i, v := range row {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(rows))
	}
	return out
}

// Frequencies returns a copy of the frequency axis in MHz.
func (s *Spectrum) Frequencies() []float64 {
	return append([]float64(nil), s.freqs...)
}

// ThermistorTemp returns the time-averaged physical temperature of the
// source's thermistor, in Kelvin.
func (s *Spectrum) ThermistorTemp() float64 { return s.thermAvg }

// TLoad returns the assumed calibration-load temperature in Kelvin.
func (s *Spectrum) TLoad() float64 { return s.tLoad }

// TLoadNS returns the assumed load-plus-noise-source temperature in Kelvin.
func (s *Spectrum) TLoadNS() float64 { return s.tLoadNS }

// Q returns the per-bin three-position ratio
// (P_source - P_load) / (P_load_ns - P_load). Receiver gain cancels in the
// ratio, so Q is dimensionless and instrument independent.
func (s *Spectrum) Q() []float64 {
	out := make([]float64, len(s.freqs))
	for i := range out {
		out[i] = (s.pSource[i] - s.pLoad[i]) / (s.pLoadNS[i] - s.pLoad[i])
	}
	return out
}

// RawTemperature returns the uncalibrated per-bin antenna temperature
// t_load_ns·Q + t_load, in Kelvin.
func (s *Spectrum) RawTemperature() []float64 {
	out := s.Q()
	for i := range out {
		out[i] = s.tLoadNS*out[i] + s.tLoad
	}
	return out
}
