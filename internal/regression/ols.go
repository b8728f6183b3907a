package regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultMaxCondition bounds the condition number of an accepted design matrix.
const DefaultMaxCondition = 1e12

var (
	// ErrUnderdetermined means there are fewer observations than parameters.
	ErrUnderdetermined = errors.New("fewer observations than parameters")
	// ErrSingular means the design matrix is rank deficient.
	ErrSingular = errors.New("design matrix is rank deficient")
	// ErrNonFinite means the inputs or the solution contain NaN or Inf.
	ErrNonFinite = errors.New("non-finite values")
)

// IsNumerical reports whether err is a solver failure rather than a data shortage.
func IsNumerical(err error) bool {
	return errors.Is(err, ErrSingular) || errors.Is(err, ErrNonFinite)
}

// Fit is the result of an ordinary least squares fit with intercept.
type Fit struct {
	Coefficients []float64 // intercept first, then one per regressor
	Observations int
	R2           float64 // NaN when the response has no variance
}

// Intercept returns the constant term.
func (f Fit) Intercept() float64 { return f.Coefficients[0] }

// Slopes returns the regressor coefficients without the intercept.
func (f Fit) Slopes() []float64 { return f.Coefficients[1:] }

// Solver fits y = b0 + b1*x1 + ... + bk*xk by QR least squares.
// MaxCondition bounds the condition number of the unscaled design matrix,
// so regressors on very different scales (percent factors next to decimal
// ones) can be rejected as ErrSingular even when the design has full rank.
type Solver struct {
	MaxCondition float64
}

// NewSolver returns a solver with the default condition limit.
func NewSolver() *Solver {
	return &Solver{MaxCondition: DefaultMaxCondition}
}

// OLS fits with the default solver.
func OLS(y []float64, regressors ...[]float64) (Fit, error) {
	return NewSolver().Fit(y, regressors...)
}

// Fit solves the least squares problem on complete inputs. Rows with missing
// values must be removed first, see CompleteCases.
func (s *Solver) Fit(y []float64, regressors ...[]float64) (Fit, error) {
	n := len(y)
	k := len(regressors) + 1
	for i, x := range regressors {
		if len(x) != n {
			return Fit{}, fmt.Errorf("regressor %d has %d rows, response has %d", i, len(x), n)
		}
	}
	if n < k {
		return Fit{}, fmt.Errorf("%d observations for %d parameters: %w", n, k, ErrUnderdetermined)
	}
	if !allFinite(y) {
		return Fit{}, fmt.Errorf("response: %w", ErrNonFinite)
	}
	for i, x := range regressors {
		if !allFinite(x) {
			return Fit{}, fmt.Errorf("regressor %d: %w", i, ErrNonFinite)
		}
		// a constant column is collinear with the intercept
		if isConstant(x) {
			return Fit{}, fmt.Errorf("regressor %d is constant: %w", i, ErrSingular)
		}
	}

	design := mat.NewDense(n, k, nil)
	for r := 0; r < n; r++ {
		design.Set(r, 0, 1)
		for c, x := range regressors {
			design.Set(r, c+1, x[r])
		}
	}

	var qr mat.QR
	qr.Factorize(design)

	limit := s.MaxCondition
	if limit <= 0 {
		limit = DefaultMaxCondition
	}
	if cond := qr.Cond(); math.IsNaN(cond) || cond > limit {
		return Fit{}, fmt.Errorf("condition number %.3g exceeds %.3g: %w", cond, limit, ErrSingular)
	}

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		return Fit{}, fmt.Errorf("solve least squares: %v: %w", err, ErrSingular)
	}

	coef := make([]float64, k)
	for i := range coef {
		coef[i] = beta.AtVec(i)
	}
	if !allFinite(coef) {
		return Fit{}, fmt.Errorf("coefficients: %w", ErrNonFinite)
	}

	return Fit{
		Coefficients: coef,
		Observations: n,
		R2:           rSquared(design, &beta, y),
	}, nil
}

// CompleteCases drops every row where the response or any regressor is NaN.
func CompleteCases(y []float64, regressors ...[]float64) ([]float64, [][]float64) {
	keep := make([]int, 0, len(y))
rows:
	for r := range y {
		if math.IsNaN(y[r]) {
			continue
		}
		for _, x := range regressors {
			if r >= len(x) || math.IsNaN(x[r]) {
				continue rows
			}
		}
		keep = append(keep, r)
	}

	yy := make([]float64, len(keep))
	xx := make([][]float64, len(regressors))
	for c := range xx {
		xx[c] = make([]float64, len(keep))
	}
	for i, r := range keep {
		yy[i] = y[r]
		for c, x := range regressors {
			xx[c][i] = x[r]
		}
	}
	return yy, xx
}

func rSquared(design *mat.Dense, beta *mat.VecDense, y []float64) float64 {
	n := len(y)
	var fitted mat.VecDense
	fitted.MulVec(design, beta)

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)

	var ssr, sst float64
	for i, v := range y {
		e := v - fitted.AtVec(i)
		ssr += e * e
		d := v - mean
		sst += d * d
	}
	if sst == 0 {
		return math.NaN()
	}
	return 1 - ssr/sst
}

func allFinite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func isConstant(xs []float64) bool {
	for _, v := range xs[1:] {
		if v != xs[0] {
			return false
		}
	}
	return true
}
