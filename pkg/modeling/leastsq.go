package modeling

import (
	"errors"
	"fmt"
	"math"
)

// ErrSingular is returned when a linear system is singular or so close to
// singular that its solution would be numerically meaningless.
var ErrSingular = errors.New("singular linear system")

// pivotEps is the relative pivot threshold below which elimination treats a
// system as degenerate rather than dividing through by noise.
const pivotEps = 1e-12

// SolveLinear solves the dense square system A·x = b in place using Gaussian
// elimination with partial pivoting.
//
// A and b are consumed as scratch space; callers that need them afterwards
// must pass copies. Returns ErrSingular (wrapped) if a pivot falls below the
// relative degeneracy threshold.
func SolveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	if n == 0 || len(b) != n {
		return nil, fmt.Errorf("solve: matrix is %dx? with rhs length %d", n, len(b))
	}
	for i, row := range a {
		if len(row) != n {
			return nil, fmt.Errorf("solve: row %d has %d columns, want %d", i, len(row), n)
		}
	}

	// Scale for the relative singularity test.
	scale := 0.0
	for _, row := range a {
		for _, v := range row {
			if av := math.Abs(v); av > scale {
				scale = av
			}
		}
	}
	if scale == 0 {
		return nil, fmt.Errorf("solve: zero matrix: %w", ErrSingular)
	}

	for col := 0; col < n; col++ {
		pivot := col
		maxAbs := math.Abs(a[col][col])
		for r := col + 1; r < n; r++ {
			if av := math.Abs(a[r][col]); av > maxAbs {
				maxAbs = av
				pivot = r
			}
		}
		if maxAbs <= pivotEps*scale {
			return nil, fmt.Errorf("solve: pivot %d is %g relative to scale %g: %w", col, maxAbs, scale, ErrSingular)
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}
		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			if factor == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x, nil
}

// LeastSquares solves the overdetermined system X·c ≈ y in the ordinary
// least-squares sense via the normal equations (Xᵀ X) c = Xᵀ y.
//
// X has one row per observation and one column per unknown; len(y) must equal
// the number of rows and there must be at least as many rows as columns.
func LeastSquares(x [][]float64, y []float64) ([]float64, error) {
	m := len(x)
	if m == 0 {
		return nil, errors.New("least squares: no observations")
	}
	n := len(x[0])
	if n == 0 {
		return nil, errors.New("least squares: no unknowns")
	}
	if len(y) != m {
		return nil, fmt.Errorf("least squares: %d rows but %d observations", m, len(y))
	}
	if m < n {
		return nil, fmt.Errorf("least squares: underdetermined: %d rows for %d unknowns", m, n)
	}
	for i, row := range x {
		if len(row) != n {
			return nil, fmt.Errorf("least squares: row %d has %d columns, want %d", i, len(row), n)
		}
	}

	a := make([][]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = make([]float64, n)
		for j := i; j < n; j++ {
			sum := 0.0
			for k := 0; k < m; k++ {
				sum += x[k][i] * x[k][j]
			}
			a[i][j] = sum
		}
		sum := 0.0
		for k := 0; k < m; k++ {
			sum += x[k][i] * y[k]
		}
		b[i] = sum
	}
	// Normal matrix is symmetric; mirror the upper triangle.
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			a[i][j] = a[j][i]
		}
	}

	return SolveLinear(a, b)
}
