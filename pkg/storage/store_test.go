package storage

import (
	"math"
	"testing"

	"github.com/lowband/rxcal/pkg/modeling"
)

func TestCurve_RoundTrip(t *testing.T) {
	freqs := []float64{50, 60, 70, 80, 90, 100}
	values := []float64{5.1, 5.3, 5.2, 5.6, 5.9, 6.4}
	fitted, err := modeling.Fit(freqs, values, 3, modeling.Polynomial)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	restored, err := NewCurve(fitted).Model()
	if err != nil {
		t.Fatalf("Model() failed: %v", err)
	}

	for _, f := range []float64{50, 63.7, 88.2, 100} {
		if got, want := restored.Eval(f), fitted.Eval(f); math.Abs(got-want) > 1e-12 {
			t.Errorf("restored curve at %g MHz: got %g, want %g", f, got, want)
		}
	}
	if restored.Type() != fitted.Type() {
		t.Errorf("restored type %v, want %v", restored.Type(), fitted.Type())
	}
}

func TestCurve_InvalidModelType(t *testing.T) {
	c := Curve{ModelType: "spline", Coeffs: []float64{1}, FMin: 50, FMax: 100}
	if _, err := c.Model(); err == nil {
		t.Error("expected error for unknown model type")
	}
}

func TestCurve_EmptyCoeffs(t *testing.T) {
	c := Curve{ModelType: "polynomial", FMin: 50, FMax: 100}
	if _, err := c.Model(); err == nil {
		t.Error("expected error for empty coefficient vector")
	}
}
