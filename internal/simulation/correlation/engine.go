// Package correlation assembles and validates the correlation structure
// across risks and transforms independent standard-normal draws into
// correlated draws that preserve each risk's marginal distribution.
package correlation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Aidin1998/riskfolio/internal/simulation/distribution"
	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

// psdTolerance is the most negative eigenvalue still accepted as a rounding
// artifact of a positive semi-definite matrix.
const psdTolerance = 1e-8

// Engine holds a validated correlation matrix and its Cholesky factor.
type Engine struct {
	ids        []string
	index      map[string]int
	matrix     *mat.SymDense
	factor     *mat.TriDense
	correlated bool
}

// Build assembles the full correlation matrix from per-risk declarations and
// request-level overrides, validates it, and factors it. All failures occur
// before any iteration buffer exists.
func Build(risks []models.Risk, overrides []models.CorrelationPair) (*Engine, error) {
	n := len(risks)
	e := &Engine{
		ids:   make([]string, n),
		index: make(map[string]int, n),
	}
	for i, r := range risks {
		e.ids[i] = r.ID
		e.index[r.ID] = i
	}

	// Identity off declared pairs.
	e.matrix = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		e.matrix.SetSym(i, i, 1)
	}

	declared := map[[2]int]float64{}
	set := func(a, b string, coef float64) error {
		if a == b {
			return errors.Correlation(a, b, "a risk may not correlate with itself")
		}
		i, ok := e.index[a]
		if !ok {
			return errors.Correlation(a, b, fmt.Sprintf("unknown risk %q", a))
		}
		j, ok := e.index[b]
		if !ok {
			return errors.Correlation(a, b, fmt.Sprintf("unknown risk %q", b))
		}
		if math.IsNaN(coef) || coef <= -1 || coef >= 1 {
			return errors.Correlation(a, b, fmt.Sprintf("coefficient %v must be strictly between -1 and 1", coef))
		}
		if i > j {
			i, j = j, i
		}
		if prev, ok := declared[[2]int{i, j}]; ok && prev != coef {
			return errors.Correlation(a, b, fmt.Sprintf("conflicting coefficients %v and %v declared for the pair", prev, coef))
		}
		declared[[2]int{i, j}] = coef
		e.matrix.SetSym(i, j, coef)
		e.correlated = true
		return nil
	}

	for _, r := range risks {
		for _, dep := range r.Correlations {
			if err := set(r.ID, dep.RiskID, dep.Coefficient); err != nil {
				return nil, err
			}
		}
	}
	// Overrides replace declared coefficients rather than conflicting with
	// them.
	for _, o := range overrides {
		i, j := e.index[o.RiskA], e.index[o.RiskB]
		if i > j {
			i, j = j, i
		}
		delete(declared, [2]int{i, j})
		if err := set(o.RiskA, o.RiskB, o.Coefficient); err != nil {
			return nil, err
		}
	}

	if !e.correlated {
		return e, nil
	}

	if err := e.validatePSD(); err != nil {
		return nil, err
	}
	if err := e.factorize(); err != nil {
		return nil, err
	}
	return e, nil
}

// Correlated reports whether any pairwise coefficient was declared. When
// false the driver samples each risk independently.
func (e *Engine) Correlated() bool { return e.correlated }

// Coefficient returns the validated coefficient between two risks.
func (e *Engine) Coefficient(a, b string) float64 {
	return e.matrix.At(e.index[a], e.index[b])
}

// validatePSD rejects matrices with a meaningfully negative eigenvalue.
func (e *Engine) validatePSD() error {
	var eig mat.EigenSym
	if !eig.Factorize(e.matrix, false) {
		return errors.Correlation("", "", "eigendecomposition of the correlation matrix failed")
	}
	values := eig.Values(nil)
	min := values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	if min < -psdTolerance {
		return errors.Correlation("", "", fmt.Sprintf("matrix is not positive semi-definite (minimum eigenvalue %.6g)", min))
	}
	return nil
}

// factorize computes the lower Cholesky factor. Semidefinite boundary cases
// get a tiny diagonal jitter so the factorization succeeds.
func (e *Engine) factorize() error {
	var chol mat.Cholesky
	if chol.Factorize(e.matrix) {
		e.factor = mat.NewTriDense(len(e.ids), mat.Lower, nil)
		chol.LTo(e.factor)
		return nil
	}

	n := len(e.ids)
	jittered := mat.NewSymDense(n, nil)
	jittered.CopySym(e.matrix)
	for i := 0; i < n; i++ {
		jittered.SetSym(i, i, jittered.At(i, i)+1e-10)
	}
	if !chol.Factorize(jittered) {
		return errors.New(errors.KindComputation, "cholesky factorization of the correlation matrix failed")
	}
	e.factor = mat.NewTriDense(n, mat.Lower, nil)
	chol.LTo(e.factor)
	return nil
}

// Transform maps independent standard-normal draws (one row per risk, one
// column per iteration) to correlated draws from each risk's marginal
// distribution via a Gaussian copula. The returned matrix is indexed
// [risk][iteration].
func (e *Engine) Transform(risks []models.Risk, normals [][]float64) ([][]float64, error) {
	n := len(risks)
	if n == 0 || len(normals) != n {
		return nil, errors.New(errors.KindComputation, "draw matrix does not match risk count")
	}
	iters := len(normals[0])

	z := mat.NewDense(n, iters, nil)
	for i, row := range normals {
		z.SetRow(i, row)
	}
	var corr mat.Dense
	corr.Mul(e.factor, z)

	unit := distuv.Normal{Mu: 0, Sigma: 1}
	out := make([][]float64, n)
	for i, r := range risks {
		q, err := distribution.NewQuantiler(r.Distribution)
		if err != nil {
			return nil, err
		}
		row := make([]float64, iters)
		for j := 0; j < iters; j++ {
			u := unit.CDF(corr.At(i, j))
			// Clamp away from the open interval's edges so unbounded
			// marginals stay finite.
			if u < 1e-12 {
				u = 1e-12
			} else if u > 1-1e-12 {
				u = 1 - 1e-12
			}
			row[j] = q.Quantile(u)
		}
		out[i] = row
	}
	return out, nil
}
