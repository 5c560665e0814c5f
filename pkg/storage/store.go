// Package storage persists solved calibration snapshots.
//
// A snapshot is the serialisable form of one observation's solution: the
// coefficient vectors of the five parameter curves plus enough metadata to
// rebuild them as evaluable models. The memory store serves single-instance
// deployments; the Redis store shares solutions between instances.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/lowband/rxcal/pkg/modeling"
)

// Curve is one stored parameter curve.
type Curve struct {
	ModelType string    `json:"model_type"`
	Coeffs    []float64 `json:"coeffs"`
	FMin      float64   `json:"f_min"`
	FMax      float64   `json:"f_max"`
}

// NewCurve captures a fitted model.
func NewCurve(m *modeling.Model) Curve {
	fMin, fMax := m.Window()
	return Curve{
		ModelType: m.Type().String(),
		Coeffs:    m.Coeffs(),
		FMin:      fMin,
		FMax:      fMax,
	}
}

// Model rebuilds the evaluable model from the stored curve.
func (c Curve) Model() (*modeling.Model, error) {
	typ, err := modeling.ParseModelType(c.ModelType)
	if err != nil {
		return nil, fmt.Errorf("stored curve: %w", err)
	}
	m, err := modeling.Restore(typ, c.Coeffs, c.FMin, c.FMax)
	if err != nil {
		return nil, fmt.Errorf("stored curve: %w", err)
	}
	return m, nil
}

// Snapshot is one observation's solved calibration, ready for serving.
type Snapshot struct {
	Observation string    `json:"observation"`
	SolvedAt    time.Time `json:"solved_at"`
	FLowMHz     float64   `json:"f_low_mhz"`
	FHighMHz    float64   `json:"f_high_mhz"`
	CTerms      int       `json:"cterms"`
	WTerms      int       `json:"wterms"`
	LoadNames   []string  `json:"load_names"`
	Iterations  int       `json:"iterations"`
	ResidualK   float64   `json:"residual_k"`

	C1   Curve `json:"c1"`
	C2   Curve `json:"c2"`
	Tunc Curve `json:"tunc"`
	Tcos Curve `json:"tcos"`
	Tsin Curve `json:"tsin"`
}

// Store is the persistence interface for solved calibrations, keyed by
// observation name.
type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, observation string) (Snapshot, bool, error)
}
