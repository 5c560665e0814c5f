package adapters

import (
	"math"
	"math/cmplx"
	"strings"
	"testing"
)

func TestParseTouchstone_RI(t *testing.T) {
	input := `! receiver input reflection
# MHZ S RI R 50
50.0  0.10  -0.05
75.0  0.12  -0.04  ! mid band
100.0 0.15  -0.02
`
	freqs, gamma, err := ParseTouchstone(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTouchstone failed: %v", err)
	}
	wantFreqs := []float64{50, 75, 100}
	wantGamma := []complex128{complex(0.10, -0.05), complex(0.12, -0.04), complex(0.15, -0.02)}
	if len(freqs) != len(wantFreqs) {
		t.Fatalf("got %d points, want %d", len(freqs), len(wantFreqs))
	}
	for i := range wantFreqs {
		if freqs[i] != wantFreqs[i] {
			t.Errorf("freq[%d] = %g, want %g", i, freqs[i], wantFreqs[i])
		}
		if gamma[i] != wantGamma[i] {
			t.Errorf("gamma[%d] = %v, want %v", i, gamma[i], wantGamma[i])
		}
	}
}

func TestParseTouchstone_MAWithUnitConversion(t *testing.T) {
	input := `# GHZ S MA R 50
0.05  0.9  180.0
0.1   0.5  90.0
`
	freqs, gamma, err := ParseTouchstone(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTouchstone failed: %v", err)
	}
	if freqs[0] != 50 || freqs[1] != 100 {
		t.Errorf("frequencies not converted to MHz: %v", freqs)
	}
	if cmplx.Abs(gamma[0]-complex(-0.9, 0)) > 1e-12 {
		t.Errorf("gamma[0] = %v, want -0.9", gamma[0])
	}
	if cmplx.Abs(gamma[1]-complex(0, 0.5)) > 1e-12 {
		t.Errorf("gamma[1] = %v, want 0.5i", gamma[1])
	}
}

func TestParseTouchstone_DB(t *testing.T) {
	input := `# MHZ S DB R 50
60.0  -6.0206  0.0
`
	_, gamma, err := ParseTouchstone(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTouchstone failed: %v", err)
	}
	// -6.0206 dB is a magnitude of 0.5.
	if math.Abs(cmplx.Abs(gamma[0])-0.5) > 1e-4 {
		t.Errorf("|gamma[0]| = %g, want 0.5", cmplx.Abs(gamma[0]))
	}
}

func TestParseTouchstone_DefaultsToGHzMA(t *testing.T) {
	input := "0.05 1.0 0.0\n"
	freqs, gamma, err := ParseTouchstone(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTouchstone failed: %v", err)
	}
	if freqs[0] != 50 {
		t.Errorf("freq[0] = %g, want 50 MHz from GHz default", freqs[0])
	}
	if cmplx.Abs(gamma[0]-1) > 1e-12 {
		t.Errorf("gamma[0] = %v, want 1", gamma[0])
	}
}

func TestParseTouchstone_Errors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", "! only a comment\n"},
		{"short row", "# MHZ S RI R 50\n50.0 0.1\n"},
		{"bad number", "# MHZ S RI R 50\n50.0 x 0.1\n"},
		{"bad option", "# FURLONGS S RI R 50\n50.0 0.1 0.1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := ParseTouchstone(strings.NewReader(tc.input)); err == nil {
				t.Errorf("expected error for %s input", tc.name)
			}
		})
	}
}
