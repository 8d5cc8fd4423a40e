package sampling

import (
	"sort"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/shopspring/decimal"
)

func shuffled(txns []models.Transaction, rng Randomizer) []models.Transaction {
	out := append([]models.Transaction(nil), txns...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func takeFirst(txns []models.Transaction, n int) []models.Transaction {
	if n > len(txns) {
		n = len(txns)
	}
	if n < 0 {
		n = 0
	}
	return txns[:n]
}

func (s *Sampler) simpleRandom(txns []models.Transaction, p models.SamplingParameters, rng Randomizer) []models.Transaction {
	return takeFirst(shuffled(txns, rng), p.SampleSize)
}

// systematic takes every interval-th element from a random start in [0, interval).
func (s *Sampler) systematic(txns []models.Transaction, p models.SamplingParameters, rng Randomizer) []models.Transaction {
	if p.SampleSize <= 0 {
		return []models.Transaction{}
	}
	interval := len(txns) / p.SampleSize
	if interval < 1 {
		interval = 1
	}
	start := rng.IntN(interval)
	out := make([]models.Transaction, 0, p.SampleSize)
	for i := start; i < len(txns) && len(out) < p.SampleSize; i += interval {
		out = append(out, txns[i])
	}
	return out
}

// monetaryUnit walks the population from the largest absolute amount down until the
// cumulative amount reaches the coverage target.
func (s *Sampler) monetaryUnit(txns []models.Transaction, p models.SamplingParameters, _ Randomizer) []models.Transaction {
	sorted := append([]models.Transaction(nil), txns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AbsAmount().GreaterThan(sorted[j].AbsAmount())
	})

	total := decimal.Zero
	for _, t := range sorted {
		total = total.Add(t.AbsAmount())
	}
	target := total.Mul(p.CoverageTarget).Div(hundred)

	out := []models.Transaction{}
	cumulative := decimal.Zero
	for _, t := range sorted {
		if cumulative.GreaterThanOrEqual(target) {
			break
		}
		out = append(out, t)
		cumulative = cumulative.Add(t.AbsAmount())
	}
	return out
}

// stratified takes ceil(sampleSize*weight) random members of every non-empty band.
func (s *Sampler) stratified(txns []models.Transaction, p models.SamplingParameters, rng Randomizer) []models.Transaction {
	strata := make([][]models.Transaction, len(s.bands))
	for _, t := range txns {
		a := t.AbsAmount()
		for i, b := range s.bands {
			if b.Contains(a) {
				strata[i] = append(strata[i], t)
				break
			}
		}
	}

	size := decimal.NewFromInt(int64(p.SampleSize))
	out := []models.Transaction{}
	for i, members := range strata {
		if len(members) == 0 {
			continue
		}
		n := int(size.Mul(s.bands[i].Weight).Ceil().IntPart())
		out = append(out, takeFirst(shuffled(members, rng), n)...)
	}
	return out
}

// threshold always keeps every transaction at or above the threshold and fills up
// to sampleSize from the rest at random.
func (s *Sampler) threshold(txns []models.Transaction, p models.SamplingParameters, rng Randomizer) []models.Transaction {
	var above, below []models.Transaction
	for _, t := range txns {
		if t.AbsAmount().GreaterThanOrEqual(p.ThresholdAmount) {
			above = append(above, t)
		} else {
			below = append(below, t)
		}
	}
	out := append([]models.Transaction{}, above...)
	if remaining := p.SampleSize - len(above); remaining > 0 && len(below) > 0 {
		out = append(out, takeFirst(shuffled(below, rng), remaining)...)
	}
	return out
}
