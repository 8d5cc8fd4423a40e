package sampling

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/rulebook"
	"github.com/shopspring/decimal"
)

func population(amounts ...string) []models.Transaction {
	out := make([]models.Transaction, 0, len(amounts))
	for i, a := range amounts {
		out = append(out, models.Transaction{
			ID:              fmt.Sprintf("t%03d", i),
			VoucherNumber:   fmt.Sprintf("V%03d", i),
			TransactionDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			AccountNumber:   "1920",
			Debit:           decimal.RequireFromString(a),
			Credit:          decimal.Zero,
		})
	}
	return out
}

func seed(v uint64) *uint64 { return &v }

func ids(txns []models.Transaction) []string {
	out := make([]string, 0, len(txns))
	for _, t := range txns {
		out = append(out, t.ID)
	}
	return out
}

func uniformPopulation(n int) []models.Transaction {
	amounts := make([]string, n)
	for i := range amounts {
		amounts[i] = fmt.Sprintf("%d", (i+1)*10)
	}
	return population(amounts...)
}

func TestDrawSample_MUSReachesCoverageWithLargestFirst(t *testing.T) {
	txns := population("100000", "50000", "400000", "150000", "300000")
	s := NewSampler(rulebook.Default())
	res, err := s.DrawSample(txns, models.SamplingParameters{
		Method:         models.SamplingMethodMUS,
		CoverageTarget: decimal.NewFromInt(30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.TotalAmount.Equal(decimal.NewFromInt(1000000)) {
		t.Fatalf("expected total 1000000, got %s", res.TotalAmount)
	}
	if res.SampledAmount.LessThan(decimal.NewFromInt(300000)) {
		t.Fatalf("expected sampled amount >= 300000, got %s", res.SampledAmount)
	}
	if got := ids(res.Sample); !reflect.DeepEqual(got, []string{"t002"}) {
		t.Fatalf("expected the single largest transaction, got %v", got)
	}
	if !res.CoveragePercentage.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected coverage 40, got %s", res.CoveragePercentage)
	}
}

func TestDrawSample_MUSIsDescendingPrefix(t *testing.T) {
	txns := population("10", "70", "20", "60", "30", "50", "40")
	res, err := NewSampler(nil).DrawSample(txns, models.SamplingParameters{
		Method:         models.SamplingMethodMUS,
		CoverageTarget: decimal.NewFromInt(60),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// total 280, target 168: 70+60+50 = 180
	if got := ids(res.Sample); !reflect.DeepEqual(got, []string{"t001", "t003", "t005"}) {
		t.Fatalf("unexpected MUS sample %v", got)
	}
}

func TestDrawSample_ThresholdKeepsEverythingAbove(t *testing.T) {
	txns := population("50", "20000", "75", "15000", "10", "10000", "30", "40")
	res, err := NewSampler(nil).DrawSample(txns, models.SamplingParameters{
		Method:          models.SamplingMethodThreshold,
		SampleSize:      5,
		ThresholdAmount: decimal.NewFromInt(10000),
		Seed:            seed(7),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ActualSampleSize != 5 {
		t.Fatalf("expected 5 sampled, got %d", res.ActualSampleSize)
	}
	got := map[string]bool{}
	for _, id := range ids(res.Sample) {
		got[id] = true
	}
	for _, id := range []string{"t001", "t003", "t005"} {
		if !got[id] {
			t.Fatalf("expected %s above threshold in sample %v", id, ids(res.Sample))
		}
	}
}

func TestDrawSample_ThresholdAboveExceedsSampleSize(t *testing.T) {
	txns := population("20000", "15000", "12000", "5")
	res, err := NewSampler(nil).DrawSample(txns, models.SamplingParameters{
		Method:          models.SamplingMethodThreshold,
		SampleSize:      1,
		ThresholdAmount: decimal.NewFromInt(10000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ActualSampleSize != 3 || res.RequestedSampleSize != 1 {
		t.Fatalf("expected all three above threshold, got %d of %d", res.ActualSampleSize, res.RequestedSampleSize)
	}
}

func TestDrawSample_SameSeedSameSample(t *testing.T) {
	txns := uniformPopulation(200)
	s := NewSampler(nil)
	for _, m := range []models.SamplingMethod{
		models.SamplingMethodSRS,
		models.SamplingMethodSystematic,
		models.SamplingMethodStratified,
		models.SamplingMethodThreshold,
	} {
		p := models.SamplingParameters{Method: m, SampleSize: 20, ThresholdAmount: decimal.NewFromInt(1900), Seed: seed(42)}
		a, err := s.DrawSample(txns, p)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", m, err)
		}
		b, err := s.DrawSample(txns, p)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", m, err)
		}
		if !reflect.DeepEqual(ids(a.Sample), ids(b.Sample)) {
			t.Fatalf("%s: same seed produced different samples", m)
		}
	}
}

func TestDrawSample_DoesNotReorderInput(t *testing.T) {
	txns := uniformPopulation(50)
	before := ids(txns)
	if _, err := NewSampler(nil).DrawSample(txns, models.SamplingParameters{Method: models.SamplingMethodSRS, SampleSize: 10, Seed: seed(1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(before, ids(txns)) {
		t.Fatalf("input population was reordered")
	}
}

func TestDrawSample_SRSCapsAtPopulation(t *testing.T) {
	txns := uniformPopulation(5)
	res, err := NewSampler(nil).DrawSample(txns, models.SamplingParameters{Method: models.SamplingMethodSRS, SampleSize: 50, Seed: seed(3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ActualSampleSize != 5 || !res.CoveragePercentage.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected whole population, got %d at %s%%", res.ActualSampleSize, res.CoveragePercentage)
	}
}

type fixedStart struct{ start int }

func (f fixedStart) IntN(int) int                { return f.start }
func (f fixedStart) Shuffle(int, func(i, j int)) {}

func TestDrawSample_SystematicInterval(t *testing.T) {
	txns := uniformPopulation(10)
	s := NewSampler(nil, WithRandomizer(func(*uint64) Randomizer { return fixedStart{start: 1} }))
	res, err := s.DrawSample(txns, models.SamplingParameters{Method: models.SamplingMethodSystematic, SampleSize: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// interval floor(10/3) = 3 from start 1
	if got := ids(res.Sample); !reflect.DeepEqual(got, []string{"t001", "t004", "t007"}) {
		t.Fatalf("unexpected systematic sample %v", got)
	}
}

func TestDrawSample_StratifiedTakesEveryBand(t *testing.T) {
	txns := population("10", "20", "30", "1500", "2500", "12000", "60000", "70000")
	s := NewSampler(rulebook.Default(), WithRandomizer(func(*uint64) Randomizer { return fixedStart{} }))
	res, err := s.DrawSample(txns, models.SamplingParameters{Method: models.SamplingMethodStratified, SampleSize: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// ceil(4*0.2)=1, ceil(4*0.3)=2 capped at 2, ceil(4*0.3)=2 capped at 1, ceil(4*0.2)=1
	if got := ids(res.Sample); !reflect.DeepEqual(got, []string{"t000", "t003", "t004", "t005", "t006"}) {
		t.Fatalf("unexpected stratified sample %v", got)
	}
}

func TestDrawSample_SummaryStatistics(t *testing.T) {
	txns := population("10", "20", "60")
	res, err := NewSampler(nil).DrawSample(txns, models.SamplingParameters{Method: models.SamplingMethodSRS, SampleSize: 3, Seed: seed(9)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := res.SampleSummary
	if st.Count != 3 || !st.TotalAmount.Equal(decimal.NewFromInt(90)) || !st.MeanAmount.Equal(decimal.NewFromInt(30)) ||
		!st.MinAmount.Equal(decimal.NewFromInt(10)) || !st.MaxAmount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected summary %+v", st)
	}
}

func TestDrawSample_Errors(t *testing.T) {
	s := NewSampler(nil)
	if _, err := s.DrawSample(uniformPopulation(3), models.SamplingParameters{Method: "cluster", SampleSize: 1}); !errors.Is(err, ErrUnknownSamplingMethod) {
		t.Fatalf("expected ErrUnknownSamplingMethod, got %v", err)
	}
	if _, err := s.DrawSample(uniformPopulation(3), models.SamplingParameters{Method: models.SamplingMethodSRS, SampleSize: -1}); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters for negative size, got %v", err)
	}
	if _, err := s.DrawSample(uniformPopulation(3), models.SamplingParameters{Method: models.SamplingMethodMUS, CoverageTarget: decimal.NewFromInt(101)}); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters for coverage 101, got %v", err)
	}
}

func TestDrawSample_EmptyPopulation(t *testing.T) {
	res, err := NewSampler(nil).DrawSample(nil, models.SamplingParameters{Method: models.SamplingMethodSRS, SampleSize: 10})
	if err != nil || res != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", res, err)
	}
}
