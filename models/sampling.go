package models

import "github.com/shopspring/decimal"

type SamplingParameters struct {
	Method            SamplingMethod  `json:"method" validate:"required"`
	SampleSize        int             `json:"sample_size" validate:"gte=0"`
	MaterialityAmount decimal.Decimal `json:"materiality_amount"`
	ThresholdAmount   decimal.Decimal `json:"threshold_amount"`
	// CoverageTarget is a percentage in 0..100, used by MUS.
	CoverageTarget decimal.Decimal `json:"coverage_target"`
	Seed           *uint64         `json:"seed,omitempty"`
}

type SampleStatistics struct {
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	MeanAmount  decimal.Decimal `json:"mean_amount"`
	MinAmount   decimal.Decimal `json:"min_amount"`
	MaxAmount   decimal.Decimal `json:"max_amount"`
}

type SamplingResult struct {
	Method              SamplingMethod   `json:"method"`
	Sample              []Transaction    `json:"sample"`
	RequestedSampleSize int              `json:"requested_sample_size"`
	ActualSampleSize    int              `json:"actual_sample_size"`
	TotalAmount         decimal.Decimal  `json:"total_amount"`
	SampledAmount       decimal.Decimal  `json:"sampled_amount"`
	CoveragePercentage  decimal.Decimal  `json:"coverage_percentage"`
	Population          SampleStatistics `json:"population"`
	SampleSummary       SampleStatistics `json:"sample_summary"`
	Seed                *uint64          `json:"seed,omitempty"`
}
