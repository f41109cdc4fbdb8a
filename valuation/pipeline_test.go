package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"net-net-screener/models"
)

type fakeSource struct {
	records map[string]*models.TickerRecord
	errs    map[string]error
	calls   atomic.Int32
}

func (f *fakeSource) FetchTickerRecord(ctx context.Context, symbol string) (*models.TickerRecord, error) {
	f.calls.Add(1)
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.records[symbol], nil
}

func record(symbol string, assets, liabilities int64) *models.TickerRecord {
	return &models.TickerRecord{
		Symbol:           symbol,
		MarketCap:        num(10),
		CurrentAssets:    num(assets),
		TotalLiabilities: num(liabilities),
		PERatio:          num(10),
	}
}

func TestPipelineOrdering(t *testing.T) {
	p := NewPipeline(NewCalculator(), zaptest.NewLogger(t))

	report := p.Run([]models.FetchOutcome{
		{Symbol: "LOW", Record: record("LOW", 70, 40)},
		{Symbol: "HIGH", Record: record("HIGH", 90, 40)},
		{Symbol: "BETA", Record: record("BETA", 70, 40)},
		{Symbol: "NONE", Record: &models.TickerRecord{Symbol: "NONE", CurrentAssets: num(5)}},
		{Symbol: "ALPHA", Record: record("ALPHA", 70, 40)},
	})

	want := []string{"HIGH", "ALPHA", "BETA", "LOW", "NONE"}
	if len(report.Results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(report.Results))
	}
	for i, symbol := range want {
		if report.Results[i].Symbol != symbol {
			t.Errorf("position %d: expected %s, got %s", i, symbol, report.Results[i].Symbol)
		}
	}
	if len(report.Skipped) != 0 {
		t.Errorf("expected nothing skipped, got %v", report.Skipped)
	}
}

func TestPipelineSkipsUnusableTickers(t *testing.T) {
	p := NewPipeline(NewCalculator(), zaptest.NewLogger(t))

	report := p.Run([]models.FetchOutcome{
		{Symbol: "GOOD", Record: record("GOOD", 100, 40)},
		{Symbol: "FAIL", Err: errors.New("provider unavailable")},
		{Symbol: "ALSO", Record: record("ALSO", 80, 40)},
		{Symbol: "NIL"},
		{Symbol: "EMPT", Record: &models.TickerRecord{Symbol: "EMPT"}},
	})

	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Results))
	}
	if len(report.Skipped) != 3 {
		t.Fatalf("expected 3 skipped, got %d", len(report.Skipped))
	}
	// skipped list is sorted by symbol
	if report.Skipped[0].Symbol != "EMPT" || report.Skipped[1].Symbol != "FAIL" || report.Skipped[2].Symbol != "NIL" {
		t.Errorf("unexpected skipped order: %v", report.Skipped)
	}
	if report.Skipped[1].Reason != "provider unavailable" {
		t.Errorf("expected provider error as reason, got %q", report.Skipped[1].Reason)
	}
}

func TestPipelineFillsMissingSymbol(t *testing.T) {
	p := NewPipeline(NewCalculator(), nil)
	rec := record("", 100, 40)

	report := p.Run([]models.FetchOutcome{{Symbol: "FILL", Record: rec}})

	if report.Results[0].Symbol != "FILL" {
		t.Errorf("expected symbol FILL, got %q", report.Results[0].Symbol)
	}
	if rec.Symbol != "" {
		t.Error("input record must not be mutated")
	}
}

func TestPipelineIdempotent(t *testing.T) {
	p := NewPipeline(NewCalculator(), zaptest.NewLogger(t))
	outcomes := []models.FetchOutcome{
		{Symbol: "B", Record: record("B", 70, 40)},
		{Symbol: "A", Record: record("A", 70, 40)},
		{Symbol: "C", Err: errors.New("boom")},
		{Symbol: "D", Record: record("D", 20, 40)},
	}

	first, err := json.Marshal(p.Run(outcomes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := json.Marshal(p.Run(outcomes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("expected identical output\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestPipelineScreenPartialFailure(t *testing.T) {
	src := &fakeSource{
		records: map[string]*models.TickerRecord{
			"AAA": record("AAA", 100, 40),
			"CCC": record("CCC", 100, 10),
		},
		errs: map[string]error{
			"BBB": errors.New("provider unavailable"),
		},
	}

	p := NewPipeline(NewCalculator(), zaptest.NewLogger(t))
	p.SetMaxWorkers(2)

	var progressCalls atomic.Int32
	p.SetProgress(func(done, total int, symbol string) {
		progressCalls.Add(1)
		if total != 3 {
			t.Errorf("expected total 3, got %d", total)
		}
	})

	report, err := p.Screen(context.Background(), src, []string{"AAA", "BBB", "CCC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Results))
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Symbol != "BBB" {
		t.Errorf("expected BBB skipped, got %v", report.Skipped)
	}
	if report.Results[0].Symbol != "CCC" || report.Results[1].Symbol != "AAA" {
		t.Errorf("unexpected order: %s, %s", report.Results[0].Symbol, report.Results[1].Symbol)
	}
	if src.calls.Load() != 3 {
		t.Errorf("expected 3 fetches, got %d", src.calls.Load())
	}
	if progressCalls.Load() != 3 {
		t.Errorf("expected 3 progress calls, got %d", progressCalls.Load())
	}
}

func TestPipelineScreenCancelled(t *testing.T) {
	src := &fakeSource{records: map[string]*models.TickerRecord{"AAA": record("AAA", 100, 40)}}
	p := NewPipeline(NewCalculator(), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.Screen(ctx, src, []string{"AAA", "BBB"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report == nil {
		t.Fatal("expected a partial report")
	}
	if len(report.Results)+len(report.Skipped) != 2 {
		t.Errorf("expected every ticker accounted for, got %d results and %d skipped",
			len(report.Results), len(report.Skipped))
	}
}
