// Package calibrate assembles one calibration observation and solves it for
// the five frequency-dependent calibration parameters: the gain and offset
// curves C1 and C2 and the receiver noise-wave temperatures Tunc, Tcos and
// Tsin.
package calibrate

import (
	"errors"
	"fmt"

	"github.com/lowband/rxcal/pkg/hotload"
	"github.com/lowband/rxcal/pkg/modeling"
	"github.com/lowband/rxcal/pkg/spectra"
)

// Well-known reference load names. An observation must carry all four.
const (
	LoadAmbient = "ambient"
	LoadHot     = "hot_load"
	LoadOpen    = "open"
	LoadShort   = "short"
)

// RequiredLoads lists the loads the solver cannot run without.
var RequiredLoads = []string{LoadAmbient, LoadHot, LoadOpen, LoadShort}

// LoadConfig describes one physical reference source.
type LoadConfig struct {
	// Spectrum is the source's averaged switched spectrum.
	Spectrum *spectra.Spectrum

	// Reflection is the source's fitted reflection coefficient at the
	// receiver input plane.
	Reflection *modeling.ComplexModel

	// Loss, when set, corrects the source temperature for cable loss between
	// the source and the reference plane. Its frequency axis must match the
	// spectrum's.
	Loss *hotload.Correction

	// Temperature is the source's physical temperature in Kelvin. Zero
	// selects the spectrum's averaged thermistor reading.
	Temperature float64

	// Ambient is the temperature mixed in by a lossy path, in Kelvin.
	// Required when Loss is set.
	Ambient float64
}

// Load is one immutable reference source inside an observation.
type Load struct {
	name  string
	cfg   LoadConfig
	freqs []float64
	temp  float64
}

// NewLoad validates and binds one source.
func NewLoad(name string, cfg LoadConfig) (*Load, error) {
	if name == "" {
		return nil, errors.New("load name cannot be empty")
	}
	if cfg.Spectrum == nil {
		return nil, fmt.Errorf("load %s: spectrum is required", name)
	}
	if cfg.Reflection == nil {
		return nil, fmt.Errorf("load %s: reflection model is required", name)
	}

	freqs := cfg.Spectrum.Frequencies()
	if cfg.Loss != nil {
		if cfg.Ambient <= 0 {
			return nil, fmt.Errorf("load %s: loss correction needs an ambient temperature", name)
		}
		lossFreqs := cfg.Loss.Frequencies()
		if len(lossFreqs) != len(freqs) {
			return nil, fmt.Errorf("load %s: loss correction has %d bins, spectrum %d", name, len(lossFreqs), len(freqs))
		}
		for i := range freqs {
			if lossFreqs[i] != freqs[i] {
				return nil, fmt.Errorf("load %s: loss correction frequency axis diverges at bin %d (%g != %g MHz)",
					name, i, lossFreqs[i], freqs[i])
			}
		}
	}

	temp := cfg.Temperature
	if temp == 0 {
		temp = cfg.Spectrum.ThermistorTemp()
	}
	if temp <= 0 {
		return nil, fmt.Errorf("load %s: physical temperature must be positive, got %g K", name, temp)
	}

	return &Load{name: name, cfg: cfg, freqs: freqs, temp: temp}, nil
}

// Name returns the load identifier.
func (l *Load) Name() string { return l.name }

// Frequencies returns a copy of the spectrum frequency axis in MHz.
func (l *Load) Frequencies() []float64 {
	return append([]float64(nil), l.freqs...)
}

// Reflection returns the fitted reflection-coefficient model.
func (l *Load) Reflection() *modeling.ComplexModel { return l.cfg.Reflection }

// Temperature returns the per-bin assumed source temperature in Kelvin,
// loss-corrected when a loss model is attached.
func (l *Load) Temperature() []float64 {
	if l.cfg.Loss != nil {
		return l.cfg.Loss.EffectiveTemperature(l.temp, l.cfg.Ambient)
	}
	out := make([]float64, len(l.freqs))
	for i := range out {
		out[i] = l.temp
	}
	return out
}

// RawTemperature returns the per-bin uncalibrated temperature from the
// source's spectrum.
func (l *Load) RawTemperature() []float64 {
	return l.cfg.Spectrum.RawTemperature()
}
