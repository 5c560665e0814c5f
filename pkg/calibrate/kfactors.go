package calibrate

import (
	"fmt"
	"math"
	"math/cmplx"
)

// KFactors are the per-bin coupling coefficients of the radiometer equation.
// For a source with reflection coefficient Γ seen by a receiver with
// reflection coefficient Γr, the linearised equation reads
//
//	C1·T_raw + C2 = K1·T_source + K2·T_unc + K3·T_cos + K4·T_sin
//
// so K1 scales the source's own temperature and K2..K4 couple in the
// receiver's correlated and uncorrelated noise waves.
type KFactors struct {
	K1, K2, K3, K4 float64
}

// Kfactors evaluates the coupling coefficients for one bin.
// |gammaRec| must be below 1; a reflective receiver has no defined gain.
func Kfactors(gammaSrc, gammaRec complex128) (KFactors, error) {
	den := 1 - absSq(gammaRec)
	if den <= 0 {
		return KFactors{}, fmt.Errorf("receiver reflection magnitude %g is not below 1", cmplx.Abs(gammaRec))
	}

	f := complex(math.Sqrt(den), 0) / (1 - gammaSrc*gammaRec)
	fAbs := cmplx.Abs(f)
	gAbs := cmplx.Abs(gammaSrc)
	alpha := cmplx.Phase(gammaSrc * f)

	return KFactors{
		K1: fAbs * fAbs * (1 - gAbs*gAbs) / den,
		K2: gAbs * gAbs * fAbs * fAbs / den,
		K3: gAbs * fAbs * math.Cos(alpha) / den,
		K4: gAbs * fAbs * math.Sin(alpha) / den,
	}, nil
}

func absSq(z complex128) float64 {
	return real(z)*real(z) + imag(z)*imag(z)
}
