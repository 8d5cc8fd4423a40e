package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/audit_backend/config"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/utils"
	"github.com/shopspring/decimal"
)

type fakeTransactionSource struct {
	rows  []models.RawTransaction
	err   error
	calls int
}

func (f *fakeTransactionSource) GetTransactions(_ context.Context, _ string, _ string) ([]models.RawTransaction, error) {
	f.calls++
	return f.rows, f.err
}

type fakeClassificationSource struct {
	areas models.AccountAreaMap
}

func (f fakeClassificationSource) GetAccountAreas(_ context.Context, _ string) (models.AccountAreaMap, error) {
	return f.areas, nil
}

type memoryCache struct {
	items map[string]models.AggregatedAnalysis
	ttl   time.Duration
}

func (m *memoryCache) Get(_ context.Context, key string, dest *models.AggregatedAnalysis) (bool, error) {
	v, ok := m.items[key]
	if ok {
		*dest = v
	}
	return ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value *models.AggregatedAnalysis, ttl time.Duration) error {
	m.items[key] = *value
	m.ttl = ttl
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func noLock(context.Context, string, string, time.Duration, string, string) (func(), error) {
	return func() {}, nil
}

func rawRow(id, voucher, date, account string, debit, credit string) models.RawTransaction {
	r := models.RawTransaction{ID: id, VoucherNumber: voucher, TransactionDate: date, AccountNumber: account}
	if debit != "" {
		r.Debit = decimal.NewNullDecimal(decimal.RequireFromString(debit))
	}
	if credit != "" {
		r.Credit = decimal.NewNullDecimal(decimal.RequireFromString(credit))
	}
	return r
}

func newTestService(src *fakeTransactionSource, opts ...ServiceOption) *Service {
	base := []ServiceOption{WithServiceLocation(time.UTC), WithLock(noLock), WithCache(nil, 0), WithEventPublisher(nil)}
	return NewService(newTestAnalyzer(), src, fakeClassificationSource{areas: models.AccountAreaMap{"3000": "sales"}}, append(base, opts...)...)
}

func TestRunClientAnalysis_LoadsAndAnalyzes(t *testing.T) {
	src := &fakeTransactionSource{rows: []models.RawTransaction{
		rawRow("1", "V1", "2024-03-05", "3000", "", "1000"),
		rawRow("2", "V1", "2024-03-05T23:30:00", "1500", "1000", ""),
	}}
	var published []config.AnalysisEvent
	s := newTestService(src, WithEventPublisher(func(_ context.Context, evt config.AnalysisEvent) (string, error) {
		published = append(published, evt)
		return "msg-1", nil
	}))

	res, err := s.RunClientAnalysis(context.Background(), " c1 ", "v2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Population.ClientId != "c1" || res.Population.DataVersion != "v2" || res.Statistics.TransactionCount != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(published) != 1 || published[0].Action != config.AnalysisCompletedAction || published[0].RunId != "run-1" {
		t.Fatalf("expected one completion event, got %+v", published)
	}
	if published[0].CorrelationId == "" {
		t.Fatalf("expected a correlation id on the event")
	}
}

func TestRunClientAnalysis_UsesCache(t *testing.T) {
	src := &fakeTransactionSource{rows: []models.RawTransaction{rawRow("1", "V1", "2024-03-05", "3000", "10", "")}}
	cache := &memoryCache{items: map[string]models.AggregatedAnalysis{}}
	s := newTestService(src, WithCache(cache, time.Minute))

	for i := 0; i < 2; i++ {
		if _, err := s.RunClientAnalysis(context.Background(), "c1", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected the second run to be served from cache, source called %d times", src.calls)
	}
	if _, ok := cache.items["audit:analysis:c1:all"]; !ok || cache.ttl != time.Minute {
		t.Fatalf("unexpected cache state %+v", cache)
	}
}

func TestRunClientAnalysis_LockedClient(t *testing.T) {
	src := &fakeTransactionSource{}
	s := newTestService(src, WithLock(func(context.Context, string, string, time.Duration, string, string) (func(), error) {
		return func() {}, utils.ErrorAnalysisLocked
	}))
	if _, err := s.RunClientAnalysis(context.Background(), "c1", ""); !errors.Is(err, utils.ErrorAnalysisLocked) {
		t.Fatalf("expected ErrorAnalysisLocked, got %v", err)
	}
	if src.calls != 0 {
		t.Fatalf("source must not be read while locked")
	}
}

func TestRunClientAnalysis_LockNotReadyContinues(t *testing.T) {
	src := &fakeTransactionSource{rows: []models.RawTransaction{rawRow("1", "V1", "2024-03-05", "3000", "10", "")}}
	s := newTestService(src, WithLock(func(context.Context, string, string, time.Duration, string, string) (func(), error) {
		return func() {}, utils.ErrorLockNotReady
	}))
	if _, err := s.RunClientAnalysis(context.Background(), "c1", ""); err != nil {
		t.Fatalf("expected run to continue without redis, got %v", err)
	}
}

func TestRunClientAnalysis_Errors(t *testing.T) {
	s := newTestService(&fakeTransactionSource{})
	if _, err := s.RunClientAnalysis(context.Background(), "  ", ""); !errors.Is(err, ErrClientIdRequired) {
		t.Fatalf("expected ErrClientIdRequired, got %v", err)
	}

	failing := newTestService(&fakeTransactionSource{err: errors.New("db down")})
	if _, err := failing.RunClientAnalysis(context.Background(), "c1", ""); err == nil {
		t.Fatalf("expected source error to propagate")
	}
}

func TestRunClientAnalysis_SkipsMalformedRows(t *testing.T) {
	src := &fakeTransactionSource{rows: []models.RawTransaction{
		rawRow("1", "V1", "2024-03-05", "1920", "500", ""),
		rawRow("2", "V1", "2024-03-05", "3000", "", "500"),
		rawRow("3", "V2", "05.03.2024", "1920", "10", ""),
	}}
	res, err := newTestService(src).RunClientAnalysis(context.Background(), "c1", "")
	if err != nil {
		t.Fatalf("malformed rows must not fail the run: %v", err)
	}
	if res.Statistics.TransactionCount != 2 {
		t.Fatalf("expected the two valid rows analyzed, got %d", res.Statistics.TransactionCount)
	}
	if res.RejectedRowCount != 1 || len(res.RejectedRows) != 1 {
		t.Fatalf("expected one rejected row, got %+v", res.RejectedRows)
	}
	if rej := res.RejectedRows[0]; rej.Row != 3 || rej.TransactionId != "3" || !errors.Is(rej, models.ErrInvalidDate) {
		t.Fatalf("unexpected rejected row %+v", rej)
	}
	for _, c := range res.ControlTests {
		if c.TestName == models.ControlTestVoucherBalance && !c.Passed {
			t.Fatalf("valid voucher V1 should balance: %+v", c)
		}
	}
}

func TestInvalidateAnalysis_DropsVersionAndAllEntries(t *testing.T) {
	cache := &memoryCache{items: map[string]models.AggregatedAnalysis{
		"audit:analysis:c1:all": {RunId: "a"},
		"audit:analysis:c1:v1":  {RunId: "b"},
		"audit:analysis:c1:v2":  {RunId: "c"},
	}}
	s := newTestService(&fakeTransactionSource{}, WithCache(cache, time.Minute))
	if err := s.InvalidateAnalysis(context.Background(), "c1", "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.items) != 1 {
		t.Fatalf("expected only v2 to remain, got %v", cache.items)
	}
	if _, ok := cache.items["audit:analysis:c1:v2"]; !ok {
		t.Fatalf("unrelated version must stay cached")
	}
	if err := s.InvalidateAnalysis(context.Background(), " ", ""); !errors.Is(err, ErrClientIdRequired) {
		t.Fatalf("expected ErrClientIdRequired, got %v", err)
	}
}
