package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lowband/rxcal/pkg/s11"
	"github.com/lowband/rxcal/pkg/spectra"
)

// FileAdapter reads observations from a local archive directory.
//
// Expected layout under Root:
//
//	<observation>/
//	  receiver/{open,short,match,device}.s1p
//	  switch/{open,short,match}.s1p
//	  loads/<name>/{open,short,match,device}.s1p
//	  spectra/<name>.json
//
// Loads are discovered by listing loads/; every load directory must have a
// matching spectra JSON file.
type FileAdapter struct {
	// Root is the archive directory holding one subdirectory per observation.
	Root string
}

func (f *FileAdapter) Name() string { return "file" }

// spectrumFile is the JSON schema of one load's switched spectrum series.
type spectrumFile struct {
	FrequenciesMHz   []float64   `json:"frequencies_mhz"`
	PSource          [][]float64 `json:"p_source"`
	PLoad            [][]float64 `json:"p_load"`
	PLoadNS          [][]float64 `json:"p_load_ns"`
	ThermistorTempsK []float64   `json:"thermistor_temps_k"`
}

// Fetch implements Adapter.
func (f *FileAdapter) Fetch(ctx context.Context, observation string) (*ObservationData, error) {
	if f.Root == "" {
		return nil, fmt.Errorf("file adapter: root directory is required")
	}
	if observation == "" {
		return nil, fmt.Errorf("file adapter: observation name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := filepath.Join(f.Root, observation)
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("file adapter: observation directory %s not found", base)
	}

	receiver, err := f.readMeasurementSet(filepath.Join(base, "receiver"), true)
	if err != nil {
		return nil, fmt.Errorf("file adapter: receiver: %w", err)
	}
	sw, err := f.readMeasurementSet(filepath.Join(base, "switch"), false)
	if err != nil {
		return nil, fmt.Errorf("file adapter: switch: %w", err)
	}

	loadsDir := filepath.Join(base, "loads")
	entries, err := os.ReadDir(loadsDir)
	if err != nil {
		return nil, fmt.Errorf("file adapter: list loads: %w", err)
	}

	loads := make(map[string]LoadData, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()

		ms, err := f.readMeasurementSet(filepath.Join(loadsDir, name), true)
		if err != nil {
			return nil, fmt.Errorf("file adapter: load %s: %w", name, err)
		}
		reading, err := f.readSpectrum(filepath.Join(base, "spectra", name+".json"))
		if err != nil {
			return nil, fmt.Errorf("file adapter: load %s: %w", name, err)
		}
		loads[name] = LoadData{S11: ms, Spectrum: reading}
	}
	if len(loads) == 0 {
		return nil, fmt.Errorf("file adapter: observation %s has no loads", observation)
	}

	data := &ObservationData{
		Name:     observation,
		Receiver: receiver,
		Switch:   sw,
		Loads:    loads,
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("file adapter: %w", err)
	}
	return data, nil
}

// readMeasurementSet reads the standards (and optionally the device) from one
// directory of .s1p files and checks they share a frequency axis.
func (f *FileAdapter) readMeasurementSet(dir string, withDevice bool) (s11.MeasurementSet, error) {
	var ms s11.MeasurementSet

	openFreqs, open, err := f.readTouchstone(filepath.Join(dir, "open.s1p"))
	if err != nil {
		return ms, err
	}
	shortFreqs, short, err := f.readTouchstone(filepath.Join(dir, "short.s1p"))
	if err != nil {
		return ms, err
	}
	matchFreqs, match, err := f.readTouchstone(filepath.Join(dir, "match.s1p"))
	if err != nil {
		return ms, err
	}
	if err := sameAxis(openFreqs, shortFreqs); err != nil {
		return ms, fmt.Errorf("short.s1p: %w", err)
	}
	if err := sameAxis(openFreqs, matchFreqs); err != nil {
		return ms, fmt.Errorf("match.s1p: %w", err)
	}

	ms = s11.MeasurementSet{Freqs: openFreqs, Open: open, Short: short, Match: match}
	if withDevice {
		devFreqs, device, err := f.readTouchstone(filepath.Join(dir, "device.s1p"))
		if err != nil {
			return ms, err
		}
		if err := sameAxis(openFreqs, devFreqs); err != nil {
			return ms, fmt.Errorf("device.s1p: %w", err)
		}
		ms.Device = device
	}
	return ms, nil
}

func (f *FileAdapter) readTouchstone(path string) ([]float64, []complex128, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	freqs, gamma, err := ParseTouchstone(file)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return freqs, gamma, nil
}

func (f *FileAdapter) readSpectrum(path string) (spectra.Reading, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spectra.Reading{}, err
	}

	var sf spectrumFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return spectra.Reading{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	return spectra.Reading{
		Freqs:           sf.FrequenciesMHz,
		PSource:         sf.PSource,
		PLoad:           sf.PLoad,
		PLoadNS:         sf.PLoadNS,
		ThermistorTemps: sf.ThermistorTempsK,
	}, nil
}

func sameAxis(want, got []float64) error {
	if len(want) != len(got) {
		return fmt.Errorf("frequency axis has %d points, expected %d", len(got), len(want))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("frequency axis diverges at point %d (%g != %g MHz)", i, got[i], want[i])
		}
	}
	return nil
}
