// Package adapters retrieves raw calibration observations from external
// archives and normalises them into in-memory measurement payloads.
//
// Each adapter implements the Adapter interface and can be plugged into the
// calibration solver service. Available adapters:
//   - FileAdapter — reads an observation directory (Touchstone .s1p files
//     plus JSON spectra)
//   - HTTPAdapter — pulls the same payload from an observation archive API
//
// Adapters are intentionally lightweight. They pull raw arrays, shape them
// into an [ObservationData], and leave all correction and solving logic to
// the core packages; the core never performs I/O.
package adapters

import (
	"context"
	"fmt"

	"github.com/lowband/rxcal/pkg/s11"
	"github.com/lowband/rxcal/pkg/spectra"
)

// LoadData is the raw material for one reference load: its reflection
// measurement session and its switched spectrum time series.
type LoadData struct {
	S11      s11.MeasurementSet
	Spectrum spectra.Reading
}

// ObservationData is one complete raw observation as stored in an archive.
type ObservationData struct {
	Name     string
	Receiver s11.MeasurementSet
	Switch   s11.MeasurementSet
	Loads    map[string]LoadData
}

// Validate checks every measurement set and spectrum reading for internal
// shape consistency. It does not cross-check axes between components; the
// solver does that after windowing.
func (d *ObservationData) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("observation has no name")
	}
	if err := d.Receiver.Validate(); err != nil {
		return fmt.Errorf("observation %s receiver: %w", d.Name, err)
	}
	if d.Receiver.Device == nil {
		return fmt.Errorf("observation %s receiver: missing device reading", d.Name)
	}
	if err := d.Switch.Validate(); err != nil {
		return fmt.Errorf("observation %s switch: %w", d.Name, err)
	}
	for name, load := range d.Loads {
		if err := load.S11.Validate(); err != nil {
			return fmt.Errorf("observation %s load %s: %w", d.Name, name, err)
		}
		if load.S11.Device == nil {
			return fmt.Errorf("observation %s load %s: missing device reading", d.Name, name)
		}
	}
	return nil
}

// Adapter fetches one raw observation by name from an external archive.
// Fetch is synchronous and must respect context cancellation.
type Adapter interface {
	Fetch(ctx context.Context, observation string) (*ObservationData, error)

	// Name returns a short, unique identifier for the adapter, e.g. "file".
	Name() string
}
