// Package distribution draws random variates for a risk's declared
// probability distribution and exposes the inverse CDFs the copula transform
// needs.
package distribution

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

// variate is the subset of distuv behavior the sampler relies on.
type variate interface {
	Rand() float64
	Quantile(p float64) float64
}

// Sampler draws variates from a single seeded pseudo-random source so that a
// fixed seed reproduces identical output across runs.
type Sampler struct {
	rnd *rand.Rand
}

// NewSampler creates a sampler seeded with the given value.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rnd: rand.New(rand.NewSource(uint64(seed)))}
}

// Sample draws n variates from dist. Malformed parameters fail before any
// draw is taken.
func (s *Sampler) Sample(dist models.ProbabilityDistribution, n int) ([]float64, error) {
	v, err := s.variate(dist)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v.Rand()
	}
	return out, nil
}

// SampleNormal draws n standard-normal variates from the shared source. The
// correlation engine consumes these before mapping back through marginals.
func (s *Sampler) SampleNormal(n int) []float64 {
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: s.rnd}
	out := make([]float64, n)
	for i := range out {
		out[i] = norm.Rand()
	}
	return out
}

// Quantiler evaluates a distribution's inverse CDF. The correlation engine
// builds one per risk and reuses it across the whole batch.
type Quantiler interface {
	Quantile(p float64) float64
}

// NewQuantiler validates dist and returns its inverse CDF evaluator.
func NewQuantiler(dist models.ProbabilityDistribution) (Quantiler, error) {
	return build(dist, nil)
}

// Quantile evaluates the inverse CDF of dist at p in (0, 1).
func Quantile(dist models.ProbabilityDistribution, p float64) (float64, error) {
	v, err := build(dist, nil)
	if err != nil {
		return 0, err
	}
	return v.Quantile(p), nil
}

// Mean returns the analytic mean of dist, used for execution estimates and
// validation advisories.
func Mean(dist models.ProbabilityDistribution) (float64, error) {
	if err := Validate(dist); err != nil {
		return 0, err
	}
	p := dist.Parameters
	switch dist.Type {
	case models.DistributionTriangular:
		return (p["min"] + p["mode"] + p["max"]) / 3, nil
	case models.DistributionNormal:
		return p["mean"], nil
	case models.DistributionUniform:
		return (p["min"] + p["max"]) / 2, nil
	case models.DistributionLogNormal:
		return math.Exp(p["mu"] + p["sigma"]*p["sigma"]/2), nil
	case models.DistributionPERT:
		return (p["min"] + 4*p["mode"] + p["max"]) / 6, nil
	case models.DistributionDiscrete:
		var m float64
		for _, o := range dist.Outcomes {
			m += o.Value * o.Probability
		}
		return m, nil
	}
	return 0, errors.Validation("distribution.type", "unknown distribution type")
}

// Validate checks dist's parameters against its type's constraints without
// drawing anything.
func Validate(dist models.ProbabilityDistribution) error {
	if !dist.Type.Valid() {
		return errors.Validation("distribution.type", string(dist.Type)+" is not a supported distribution type")
	}
	p := dist.Parameters
	require := func(keys ...string) error {
		for _, k := range keys {
			val, ok := p[k]
			if !ok {
				return errors.Validation("distribution.parameters."+k, "required parameter missing")
			}
			if math.IsNaN(val) || math.IsInf(val, 0) {
				return errors.Validation("distribution.parameters."+k, "parameter must be finite")
			}
		}
		return nil
	}

	switch dist.Type {
	case models.DistributionTriangular, models.DistributionPERT:
		if err := require("min", "mode", "max"); err != nil {
			return err
		}
		if p["min"] > p["mode"] || p["mode"] > p["max"] {
			return errors.Validation("distribution.parameters", "requires min <= mode <= max")
		}
		if p["min"] >= p["max"] {
			return errors.Validation("distribution.parameters", "requires min < max")
		}
	case models.DistributionNormal:
		if err := require("mean", "std_dev"); err != nil {
			return err
		}
		if p["std_dev"] <= 0 {
			return errors.Validation("distribution.parameters.std_dev", "standard deviation must be positive")
		}
	case models.DistributionUniform:
		if err := require("min", "max"); err != nil {
			return err
		}
		if p["min"] >= p["max"] {
			return errors.Validation("distribution.parameters", "requires min < max")
		}
	case models.DistributionLogNormal:
		if err := require("mu", "sigma"); err != nil {
			return err
		}
		if p["sigma"] <= 0 {
			return errors.Validation("distribution.parameters.sigma", "sigma must be positive")
		}
	case models.DistributionDiscrete:
		if len(dist.Outcomes) == 0 {
			return errors.Validation("distribution.outcomes", "discrete distribution requires at least one outcome")
		}
		var sum float64
		for _, o := range dist.Outcomes {
			if o.Probability <= 0 || o.Probability > 1 {
				return errors.Validation("distribution.outcomes", "outcome probabilities must be in (0, 1]")
			}
			if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
				return errors.Validation("distribution.outcomes", "outcome values must be finite")
			}
			sum += o.Probability
		}
		if math.Abs(sum-1) > 1e-9 {
			return errors.Validation("distribution.outcomes", "outcome probabilities must sum to 1")
		}
	}
	return nil
}

// Support returns the [lo, hi] support of dist. Unbounded sides report
// +-Inf.
func Support(dist models.ProbabilityDistribution) (lo, hi float64) {
	p := dist.Parameters
	switch dist.Type {
	case models.DistributionTriangular, models.DistributionUniform, models.DistributionPERT:
		return p["min"], p["max"]
	case models.DistributionNormal:
		return math.Inf(-1), math.Inf(1)
	case models.DistributionLogNormal:
		return 0, math.Inf(1)
	case models.DistributionDiscrete:
		lo, hi = math.Inf(1), math.Inf(-1)
		for _, o := range dist.Outcomes {
			lo = math.Min(lo, o.Value)
			hi = math.Max(hi, o.Value)
		}
		return lo, hi
	}
	return math.Inf(-1), math.Inf(1)
}

func (s *Sampler) variate(dist models.ProbabilityDistribution) (variate, error) {
	return build(dist, s.rnd)
}

// build validates dist and constructs its distuv counterpart. src may be nil
// when only quantiles are needed.
func build(dist models.ProbabilityDistribution, src rand.Source) (variate, error) {
	if err := Validate(dist); err != nil {
		return nil, err
	}
	p := dist.Parameters
	switch dist.Type {
	case models.DistributionTriangular:
		t := distuv.NewTriangle(p["min"], p["max"], p["mode"], src)
		return t, nil
	case models.DistributionNormal:
		return distuv.Normal{Mu: p["mean"], Sigma: p["std_dev"], Src: src}, nil
	case models.DistributionUniform:
		return distuv.Uniform{Min: p["min"], Max: p["max"], Src: src}, nil
	case models.DistributionLogNormal:
		return distuv.LogNormal{Mu: p["mu"], Sigma: p["sigma"], Src: src}, nil
	case models.DistributionPERT:
		return newPERT(p["min"], p["mode"], p["max"], src), nil
	case models.DistributionDiscrete:
		return newDiscrete(dist.Outcomes, src), nil
	}
	return nil, errors.Validation("distribution.type", "unknown distribution type")
}

// pert is a Beta distribution rescaled onto [min, max] with the standard
// PERT shape parameters.
type pert struct {
	beta     distuv.Beta
	min, max float64
}

func newPERT(min, mode, max float64, src rand.Source) pert {
	span := max - min
	alpha := 1 + 4*(mode-min)/span
	beta := 1 + 4*(max-mode)/span
	return pert{
		beta: distuv.Beta{Alpha: alpha, Beta: beta, Src: src},
		min:  min,
		max:  max,
	}
}

func (p pert) Rand() float64 {
	return p.min + p.beta.Rand()*(p.max-p.min)
}

func (p pert) Quantile(q float64) float64 {
	return p.min + p.beta.Quantile(q)*(p.max-p.min)
}

// discrete draws from a finite outcome set via its cumulative distribution.
type discrete struct {
	values []float64
	cum    []float64
	rnd    *rand.Rand
}

func newDiscrete(outcomes []models.DiscreteOutcome, src rand.Source) discrete {
	sorted := make([]models.DiscreteOutcome, len(outcomes))
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	d := discrete{
		values: make([]float64, len(sorted)),
		cum:    make([]float64, len(sorted)),
	}
	var acc float64
	for i, o := range sorted {
		acc += o.Probability
		d.values[i] = o.Value
		d.cum[i] = acc
	}
	d.cum[len(d.cum)-1] = 1 // guard against rounding drift
	if src != nil {
		d.rnd = rand.New(src)
	}
	return d
}

func (d discrete) Rand() float64 {
	return d.Quantile(d.rnd.Float64())
}

func (d discrete) Quantile(p float64) float64 {
	idx := sort.SearchFloat64s(d.cum, p)
	if idx >= len(d.values) {
		idx = len(d.values) - 1
	}
	return d.values[idx]
}
