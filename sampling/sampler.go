// Package sampling selects audit samples from a transaction population.
// Every method is a pure function of the population, the parameters and the seed.
package sampling

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/rulebook"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownSamplingMethod = errors.New("unknown sampling method")
	ErrInvalidParameters     = errors.New("invalid sampling parameters")
)

var hundred = decimal.NewFromInt(100)

// Randomizer is the random source used by the shuffling methods.
// *rand.Rand from math/rand/v2 satisfies it.
type Randomizer interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// RandomizerFactory builds the random source of one run; seed is nil when none was given.
type RandomizerFactory func(seed *uint64) Randomizer

func defaultRandomizer(seed *uint64) Randomizer {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
}

type Sampler struct {
	bands     []rulebook.AmountBand
	newRand   RandomizerFactory
	validator *validator.Validate
}

type Option func(*Sampler)

func WithRandomizer(f RandomizerFactory) Option {
	return func(s *Sampler) {
		if f != nil {
			s.newRand = f
		}
	}
}

func NewSampler(rb *rulebook.Rulebook, opts ...Option) *Sampler {
	if rb == nil {
		rb = rulebook.Default()
	}
	s := &Sampler{
		bands:     rb.AmountBands,
		newRand:   defaultRandomizer,
		validator: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type method func(s *Sampler, txns []models.Transaction, p models.SamplingParameters, rng Randomizer) []models.Transaction

var methods = map[models.SamplingMethod]method{
	models.SamplingMethodSRS:        (*Sampler).simpleRandom,
	models.SamplingMethodSystematic: (*Sampler).systematic,
	models.SamplingMethodMUS:        (*Sampler).monetaryUnit,
	models.SamplingMethodStratified: (*Sampler).stratified,
	models.SamplingMethodThreshold:  (*Sampler).threshold,
}

func (s *Sampler) validate(p models.SamplingParameters) error {
	if err := s.validator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if p.CoverageTarget.IsNegative() || p.CoverageTarget.GreaterThan(hundred) {
		return fmt.Errorf("%w: coverage target %s outside 0..100", ErrInvalidParameters, p.CoverageTarget)
	}
	if p.ThresholdAmount.IsNegative() || p.MaterialityAmount.IsNegative() {
		return fmt.Errorf("%w: amounts must be non-negative", ErrInvalidParameters)
	}
	return nil
}

// DrawSample selects a sample. An empty population yields (nil, nil).
// The input slice is never reordered.
func (s *Sampler) DrawSample(txns []models.Transaction, p models.SamplingParameters) (*models.SamplingResult, error) {
	m, ok := methods[p.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSamplingMethod, p.Method)
	}
	if err := s.validate(p); err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, nil
	}

	population := append([]models.Transaction(nil), txns...)
	sample := m(s, population, p, s.newRand(p.Seed))

	popStats := Summarize(txns)
	sampleStats := Summarize(sample)
	return &models.SamplingResult{
		Method:              p.Method,
		Sample:              sample,
		RequestedSampleSize: p.SampleSize,
		ActualSampleSize:    len(sample),
		TotalAmount:         popStats.TotalAmount,
		SampledAmount:       sampleStats.TotalAmount,
		CoveragePercentage:  Coverage(sampleStats.TotalAmount, popStats.TotalAmount),
		Population:          popStats,
		SampleSummary:       sampleStats,
		Seed:                p.Seed,
	}, nil
}

// Coverage is sampled/total*100 rounded to 2 places, 0 when total is 0.
func Coverage(sampled, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return sampled.Div(total).Mul(hundred).Round(2)
}

// Summarize computes count, total, mean, min and max of absolute amounts.
func Summarize(txns []models.Transaction) models.SampleStatistics {
	st := models.SampleStatistics{
		Count:       len(txns),
		TotalAmount: decimal.Zero,
		MeanAmount:  decimal.Zero,
		MinAmount:   decimal.Zero,
		MaxAmount:   decimal.Zero,
	}
	for i, t := range txns {
		a := t.AbsAmount()
		st.TotalAmount = st.TotalAmount.Add(a)
		if i == 0 || a.LessThan(st.MinAmount) {
			st.MinAmount = a
		}
		if i == 0 || a.GreaterThan(st.MaxAmount) {
			st.MaxAmount = a
		}
	}
	if len(txns) > 0 {
		st.MeanAmount = st.TotalAmount.Div(decimal.NewFromInt(int64(len(txns)))).Round(2)
	}
	return st
}
