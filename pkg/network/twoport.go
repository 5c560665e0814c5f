package network

import "fmt"

// TwoPort holds the S-parameters of a reciprocal two-port network on a shared
// frequency axis. S12 and S21 only ever appear as their product in one-port
// corrections, so the product is stored directly.
type TwoPort struct {
	S11    []complex128
	S12S21 []complex128
	S22    []complex128
}

func (t TwoPort) bins() (int, error) {
	n := len(t.S11)
	if len(t.S12S21) != n || len(t.S22) != n {
		return 0, fmt.Errorf("two-port arrays disagree: s11=%d s12s21=%d s22=%d",
			len(t.S11), len(t.S12S21), len(t.S22))
	}
	if n == 0 {
		return 0, fmt.Errorf("two-port is empty")
	}
	return n, nil
}

// EmbedGamma computes the reflection coefficient seen looking into port 1 of
// the two-port when port 2 is terminated with gamma:
//
//	Γ_in = s11 + s12·s21·Γ / (1 - s22·Γ)
func EmbedGamma(s11, s12s21, s22, gamma complex128) complex128 {
	return s11 + s12s21*gamma/(1-s22*gamma)
}

// DeEmbedGamma is the exact inverse of EmbedGamma: given the reflection
// coefficient measured through the two-port, recover the termination behind
// it.
func DeEmbedGamma(s11, s12s21, s22, gammaIn complex128) complex128 {
	return (gammaIn - s11) / (s22*(gammaIn-s11) + s12s21)
}

// Embed applies EmbedGamma per bin over a gamma array.
func (t TwoPort) Embed(gamma []complex128) ([]complex128, error) {
	n, err := t.bins()
	if err != nil {
		return nil, err
	}
	if len(gamma) != n {
		return nil, fmt.Errorf("gamma has %d bins, two-port %d", len(gamma), n)
	}
	out := make([]complex128, n)
	for i := range out {
		out[i] = EmbedGamma(t.S11[i], t.S12S21[i], t.S22[i], gamma[i])
	}
	return out, nil
}

// DeEmbed applies DeEmbedGamma per bin over a measured gamma array.
func (t TwoPort) DeEmbed(gammaIn []complex128) ([]complex128, error) {
	n, err := t.bins()
	if err != nil {
		return nil, err
	}
	if len(gammaIn) != n {
		return nil, fmt.Errorf("gamma has %d bins, two-port %d", len(gammaIn), n)
	}
	out := make([]complex128, n)
	for i := range out {
		out[i] = DeEmbedGamma(t.S11[i], t.S12S21[i], t.S22[i], gammaIn[i])
	}
	return out, nil
}

// GammaFromImpedance converts a termination impedance to a reflection
// coefficient against reference impedance z0.
func GammaFromImpedance(z, z0 complex128) complex128 {
	return (z - z0) / (z + z0)
}

// ImpedanceFromGamma converts a reflection coefficient back to an impedance
// against reference impedance z0.
func ImpedanceFromGamma(gamma, z0 complex128) complex128 {
	return z0 * (1 + gamma) / (1 - gamma)
}
