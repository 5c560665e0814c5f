package calibrate

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/lowband/rxcal/pkg/modeling"
	"github.com/lowband/rxcal/pkg/s11"
)

const (
	maxIterations = 50

	// Iteration stops when no parameter curve moves by more than this many
	// Kelvin between sweeps.
	convergenceTol = 1e-9
)

// Solution holds the five solved calibration parameter curves. C1 and C2 are
// the scale and offset of the receiver gain; Tunc, Tcos and Tsin are the
// receiver noise-wave temperatures in Kelvin.
type Solution struct {
	C1, C2           *modeling.Model
	Tunc, Tcos, Tsin *modeling.Model

	// Iterations is the number of solver sweeps taken to converge.
	Iterations int

	// Residual is the worst absolute equation residual across loads and
	// bins, in Kelvin, with the final smoothed parameters.
	Residual float64
}

// Observation is one complete calibration measurement session: the receiver
// and internal switch models plus one Load per reference source. Immutable
// after construction; the solve runs once, lazily, and is memoised.
type Observation struct {
	receiver *s11.Receiver
	sw       *s11.InternalSwitch
	loads    map[string]*Load
	names    []string
	freqs    []float64
	cterms   int
	wterms   int

	once     sync.Once
	sol      *Solution
	solveErr error
}

// NewObservation validates and binds a calibration observation.
//
// loads must contain at least the four reference loads (ambient, hot_load,
// open, short) on identical frequency axes; extra loads join the noise-wave
// stage of the solve. The receiver and switch fit windows must cover the
// load axis. cterms and wterms are the polynomial orders for the gain and
// noise-wave curves.
func NewObservation(receiver *s11.Receiver, sw *s11.InternalSwitch, loads map[string]*Load, cterms, wterms int) (*Observation, error) {
	if cterms <= 0 {
		return nil, fmt.Errorf("cterms: %w (got %d)", modeling.ErrInvalidNTerms, cterms)
	}
	if wterms <= 0 {
		return nil, fmt.Errorf("wterms: %w (got %d)", modeling.ErrInvalidNTerms, wterms)
	}
	if receiver == nil {
		return nil, fmt.Errorf("observation: receiver model is required")
	}
	if sw == nil {
		return nil, fmt.Errorf("observation: internal switch model is required")
	}
	for _, name := range RequiredLoads {
		if loads[name] == nil {
			return nil, fmt.Errorf("observation: required load %q is missing", name)
		}
	}

	freqs := loads[LoadAmbient].Frequencies()
	for name, l := range loads {
		axis := l.Frequencies()
		if len(axis) != len(freqs) {
			return nil, fmt.Errorf("observation: load %q has %d bins, load %q has %d", name, len(axis), LoadAmbient, len(freqs))
		}
		for i := range axis {
			if axis[i] != freqs[i] {
				return nil, fmt.Errorf("observation: load %q frequency axis diverges at bin %d (%g != %g MHz)",
					name, i, axis[i], freqs[i])
			}
		}
	}

	lo, hi := freqs[0], freqs[len(freqs)-1]
	if rLo, rHi := receiver.Model().Window(); rLo > lo || rHi < hi {
		return nil, fmt.Errorf("observation: receiver fit window [%g, %g] does not cover load axis [%g, %g] MHz",
			rLo, rHi, lo, hi)
	}
	if sLo, sHi := sw.S11Model().Window(); sLo > lo || sHi < hi {
		return nil, fmt.Errorf("observation: switch fit window [%g, %g] does not cover load axis [%g, %g] MHz",
			sLo, sHi, lo, hi)
	}

	names := make([]string, 0, len(loads))
	for name := range loads {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Observation{
		receiver: receiver,
		sw:       sw,
		loads:    loads,
		names:    names,
		freqs:    freqs,
		cterms:   cterms,
		wterms:   wterms,
	}, nil
}

// Frequencies returns a copy of the shared load frequency axis in MHz.
func (o *Observation) Frequencies() []float64 {
	return append([]float64(nil), o.freqs...)
}

// LoadNames returns the load names in sorted order.
func (o *Observation) LoadNames() []string {
	return append([]string(nil), o.names...)
}

// Load returns a load by name, or nil.
func (o *Observation) Load(name string) *Load { return o.loads[name] }

// Receiver returns the receiver reflection model.
func (o *Observation) Receiver() *s11.Receiver { return o.receiver }

// Switch returns the internal switch model.
func (o *Observation) Switch() *s11.InternalSwitch { return o.sw }

// CTerms returns the polynomial order of the C1/C2 fits.
func (o *Observation) CTerms() int { return o.cterms }

// WTerms returns the polynomial order of the noise-wave fits.
func (o *Observation) WTerms() int { return o.wterms }

// Solution runs the solve on first call and returns the memoised result.
func (o *Observation) Solution() (*Solution, error) {
	o.once.Do(func() { o.sol, o.solveErr = o.solve() })
	return o.sol, o.solveErr
}

// loadData is the solver's per-load working set, everything evaluated on the
// shared bin grid.
type loadData struct {
	k    []KFactors
	traw []float64
	temp []float64
}

func (o *Observation) solve() (*Solution, error) {
	nf := len(o.freqs)
	gammaRec := o.receiver.Model().EvalAll(o.freqs)

	data := make(map[string]*loadData, len(o.loads))
	for _, name := range o.names {
		l := o.loads[name]
		gamma := l.Reflection().EvalAll(o.freqs)
		d := &loadData{
			k:    make([]KFactors, nf),
			traw: l.RawTemperature(),
			temp: l.Temperature(),
		}
		for i := range o.freqs {
			k, err := Kfactors(gamma[i], gammaRec[i])
			if err != nil {
				return nil, fmt.Errorf("load %s at %g MHz: %w", name, o.freqs[i], err)
			}
			d.k[i] = k
		}
		data[name] = d
	}
	amb, hot := data[LoadAmbient], data[LoadHot]

	c1Bin := make([]float64, nf)
	c2Bin := make([]float64, nf)

	// Precomputed noise-wave basis per bin, shared window with the axis.
	lo, hi := o.freqs[0], o.freqs[len(o.freqs)-1]
	basis := make([][]float64, nf)
	for i, f := range o.freqs {
		basis[i] = modeling.Basis(modeling.Polynomial, f, o.wterms, lo, hi)
	}

	// Smoothed curves carried between sweeps. Noise waves start at zero.
	c1s := make([]float64, nf)
	c2s := make([]float64, nf)
	tu := make([]float64, nf)
	tc := make([]float64, nf)
	ts := make([]float64, nf)

	var (
		c1m, c2m, tum, tcm, tsm *modeling.Model
		iterations              int
		converged               bool
	)

	for iter := 0; iter < maxIterations; iter++ {
		// Gain stage: C1 and C2 follow exactly from the ambient and hot
		// equations once the noise waves are held fixed.
		for i := 0; i < nf; i++ {
			rhsA := amb.k[i].K1*amb.temp[i] + amb.k[i].K2*tu[i] + amb.k[i].K3*tc[i] + amb.k[i].K4*ts[i]
			rhsH := hot.k[i].K1*hot.temp[i] + hot.k[i].K2*tu[i] + hot.k[i].K3*tc[i] + hot.k[i].K4*ts[i]
			d := hot.traw[i] - amb.traw[i]
			if math.Abs(d) < 1e-9 {
				return nil, fmt.Errorf("ambient and hot raw temperatures coincide at %g MHz", o.freqs[i])
			}
			c1Bin[i] = (rhsH - rhsA) / d
			c2Bin[i] = rhsA - c1Bin[i]*amb.traw[i]
		}

		var err error
		if c1m, err = modeling.Fit(o.freqs, c1Bin, o.cterms, modeling.Polynomial); err != nil {
			return nil, fmt.Errorf("C1 fit: %w", err)
		}
		if c2m, err = modeling.Fit(o.freqs, c2Bin, o.cterms, modeling.Polynomial); err != nil {
			return nil, fmt.Errorf("C2 fit: %w", err)
		}
		newC1 := c1m.EvalAll(o.freqs)
		newC2 := c2m.EvalAll(o.freqs)

		// Noise-wave stage: one joint least squares over every load and
		// every bin, equal weights, solving the wterms polynomial
		// coefficients of each noise wave directly. A per-bin solve would
		// be nearly singular when the open and short phases track each
		// other; the frequency sweep breaks that degeneracy.
		nw := o.wterms
		rows := make([][]float64, 0, nf*len(o.names))
		y := make([]float64, 0, nf*len(o.names))
		for _, name := range o.names {
			d := data[name]
			for i := 0; i < nf; i++ {
				row := make([]float64, 3*nw)
				for j := 0; j < nw; j++ {
					row[j] = d.k[i].K2 * basis[i][j]
					row[nw+j] = d.k[i].K3 * basis[i][j]
					row[2*nw+j] = d.k[i].K4 * basis[i][j]
				}
				rows = append(rows, row)
				y = append(y, newC1[i]*d.traw[i]+newC2[i]-d.k[i].K1*d.temp[i])
			}
		}
		w, err := modeling.LeastSquares(rows, y)
		if err != nil {
			return nil, fmt.Errorf("noise-wave solve: %w", err)
		}
		if tum, err = modeling.Restore(modeling.Polynomial, w[:nw], lo, hi); err != nil {
			return nil, fmt.Errorf("Tunc restore: %w", err)
		}
		if tcm, err = modeling.Restore(modeling.Polynomial, w[nw:2*nw], lo, hi); err != nil {
			return nil, fmt.Errorf("Tcos restore: %w", err)
		}
		if tsm, err = modeling.Restore(modeling.Polynomial, w[2*nw:], lo, hi); err != nil {
			return nil, fmt.Errorf("Tsin restore: %w", err)
		}
		newTu := tum.EvalAll(o.freqs)
		newTc := tcm.EvalAll(o.freqs)
		newTs := tsm.EvalAll(o.freqs)

		delta := 0.0
		for i := 0; i < nf; i++ {
			delta = math.Max(delta, math.Abs(newC1[i]-c1s[i]))
			delta = math.Max(delta, math.Abs(newC2[i]-c2s[i]))
			delta = math.Max(delta, math.Abs(newTu[i]-tu[i]))
			delta = math.Max(delta, math.Abs(newTc[i]-tc[i]))
			delta = math.Max(delta, math.Abs(newTs[i]-ts[i]))
		}
		c1s, c2s, tu, tc, ts = newC1, newC2, newTu, newTc, newTs
		iterations = iter + 1

		if delta < convergenceTol {
			converged = true
			break
		}
	}
	if !converged {
		return nil, fmt.Errorf("calibration solve did not converge in %d iterations", maxIterations)
	}

	// Worst equation residual with the final smoothed parameters.
	residual := 0.0
	for _, name := range o.names {
		d := data[name]
		for i := 0; i < nf; i++ {
			lhs := c1s[i]*d.traw[i] + c2s[i]
			rhs := d.k[i].K1*d.temp[i] + d.k[i].K2*tu[i] + d.k[i].K3*tc[i] + d.k[i].K4*ts[i]
			residual = math.Max(residual, math.Abs(lhs-rhs))
		}
	}

	return &Solution{
		C1:         c1m,
		C2:         c2m,
		Tunc:       tum,
		Tcos:       tcm,
		Tsin:       tsm,
		Iterations: iterations,
		Residual:   residual,
	}, nil
}

// C1 returns the solved gain curve, running the solve if needed.
func (o *Observation) C1() (*modeling.Model, error) {
	sol, err := o.Solution()
	if err != nil {
		return nil, err
	}
	return sol.C1, nil
}

// C2 returns the solved offset curve.
func (o *Observation) C2() (*modeling.Model, error) {
	sol, err := o.Solution()
	if err != nil {
		return nil, err
	}
	return sol.C2, nil
}

// Tunc returns the solved uncorrelated noise-wave curve.
func (o *Observation) Tunc() (*modeling.Model, error) {
	sol, err := o.Solution()
	if err != nil {
		return nil, err
	}
	return sol.Tunc, nil
}

// Tcos returns the solved cosine noise-wave curve.
func (o *Observation) Tcos() (*modeling.Model, error) {
	sol, err := o.Solution()
	if err != nil {
		return nil, err
	}
	return sol.Tcos, nil
}

// Tsin returns the solved sine noise-wave curve.
func (o *Observation) Tsin() (*modeling.Model, error) {
	sol, err := o.Solution()
	if err != nil {
		return nil, err
	}
	return sol.Tsin, nil
}

// Calibrate converts a raw antenna temperature at frequency f into a
// calibrated antenna temperature, given the antenna's reflection coefficient
// at f.
func (o *Observation) Calibrate(f float64, gammaAnt complex128, tRaw float64) (float64, error) {
	sol, err := o.Solution()
	if err != nil {
		return 0, err
	}
	k, err := Kfactors(gammaAnt, o.receiver.S11(f))
	if err != nil {
		return 0, err
	}
	if k.K1 == 0 {
		return 0, fmt.Errorf("antenna is fully reflective at %g MHz", f)
	}
	num := sol.C1.Eval(f)*tRaw + sol.C2.Eval(f) -
		k.K2*sol.Tunc.Eval(f) - k.K3*sol.Tcos.Eval(f) - k.K4*sol.Tsin.Eval(f)
	return num / k.K1, nil
}

// Decalibrate is the exact inverse of Calibrate.
func (o *Observation) Decalibrate(f float64, gammaAnt complex128, tAnt float64) (float64, error) {
	sol, err := o.Solution()
	if err != nil {
		return 0, err
	}
	k, err := Kfactors(gammaAnt, o.receiver.S11(f))
	if err != nil {
		return 0, err
	}
	c1 := sol.C1.Eval(f)
	if c1 == 0 {
		return 0, fmt.Errorf("gain curve is zero at %g MHz", f)
	}
	num := k.K1*tAnt + k.K2*sol.Tunc.Eval(f) + k.K3*sol.Tcos.Eval(f) + k.K4*sol.Tsin.Eval(f) -
		sol.C2.Eval(f)
	return num / c1, nil
}
