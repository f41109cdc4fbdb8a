package valuation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"net-net-screener/models"
	"net-net-screener/utils"
)

// RecordSource returns the raw financial record for a symbol
type RecordSource interface {
	FetchTickerRecord(ctx context.Context, symbol string) (*models.TickerRecord, error)
}

// Report is the ordered output of one pipeline run
type Report struct {
	Results []*models.ValuationResult `json:"results"`
	Skipped []models.SkippedTicker    `json:"skipped"`
}

// ProgressFunc is called after every fetched symbol
type ProgressFunc func(done, total int, symbol string)

// Pipeline turns raw ticker records into an ordered list of valuation results
type Pipeline struct {
	calculator *Calculator
	logger     *zap.Logger
	maxWorkers int
	progress   ProgressFunc
}

// NewPipeline creates a pipeline around the given calculator
func NewPipeline(calculator *Calculator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		calculator: calculator,
		logger:     logger,
		maxWorkers: 8,
	}
}

// SetMaxWorkers sets the number of concurrent fetches used by Screen
func (p *Pipeline) SetMaxWorkers(n int) {
	if n > 0 {
		p.maxWorkers = n
	}
}

// SetProgress installs a progress callback for Screen
func (p *Pipeline) SetProgress(fn ProgressFunc) {
	p.progress = fn
}

// Run evaluates every usable outcome. Outcomes with a provider error or no
// usable data are skipped and reported, never fatal.
func (p *Pipeline) Run(outcomes []models.FetchOutcome) *Report {
	report := &Report{
		Results: make([]*models.ValuationResult, 0, len(outcomes)),
	}

	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			report.skip(o.Symbol, o.Err.Error())
			continue
		case o.Record == nil:
			report.skip(o.Symbol, "no data returned")
			continue
		case o.Record.Empty():
			report.skip(o.Symbol, "no usable financial fields")
			continue
		}

		record := *o.Record
		if record.Symbol == "" {
			record.Symbol = o.Symbol
		}
		result := p.calculator.Evaluate(&record)
		if len(result.Unavailable) > 0 {
			p.logger.Debug("metrics unavailable",
				zap.String("symbol", result.Symbol),
				zap.Strings("metrics", result.Unavailable))
		}
		report.Results = append(report.Results, result)
	}

	SortResults(report.Results)
	sort.SliceStable(report.Skipped, func(i, j int) bool {
		return report.Skipped[i].Symbol < report.Skipped[j].Symbol
	})

	for _, s := range report.Skipped {
		p.logger.Warn("ticker skipped", zap.String("symbol", s.Symbol), zap.String("reason", s.Reason))
	}
	p.logger.Info("valuation complete",
		zap.Int("results", len(report.Results)),
		zap.Int("skipped", len(report.Skipped)))

	return report
}

// Screen fetches every symbol from src in parallel and runs the pipeline over
// the outcomes. Each fetch writes only its own slot, so outcome order follows
// the symbol order regardless of completion order. If ctx ends early the
// partial report is returned together with the context error.
func (p *Pipeline) Screen(ctx context.Context, src RecordSource, symbols []string) (*Report, error) {
	p.logger.Info("fetching ticker records",
		zap.Int("tickers", len(symbols)),
		zap.Int("workers", p.maxWorkers))

	outcomes := make([]models.FetchOutcome, len(symbols))
	for i, symbol := range symbols {
		outcomes[i] = models.FetchOutcome{
			Symbol: symbol,
			Err:    fmt.Errorf("not fetched"),
		}
	}

	workerPool := utils.NewWorkerPool(p.maxWorkers)

	var (
		mu        sync.Mutex
		completed int
	)

	var submitErr error
	for i, symbol := range symbols {
		index, ticker := i, symbol
		err := workerPool.Submit(ctx, func() {
			record, err := src.FetchTickerRecord(ctx, ticker)
			outcomes[index] = models.FetchOutcome{Symbol: ticker, Record: record, Err: err}

			if p.progress != nil {
				mu.Lock()
				completed++
				p.progress(completed, len(symbols), ticker)
				mu.Unlock()
			}
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	workerPool.Close()

	report := p.Run(outcomes)
	if submitErr != nil {
		return report, fmt.Errorf("screening interrupted: %w", submitErr)
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("screening interrupted: %w", err)
	}
	return report, nil
}

func (r *Report) skip(symbol, reason string) {
	r.Skipped = append(r.Skipped, models.SkippedTicker{Symbol: symbol, Reason: reason})
}

// SortResults orders results by descending net net score, then ascending
// symbol. Results without a score go last.
func SortResults(results []*models.ValuationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].NetNetScore, results[j].NetNetScore
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Valid {
			if cmp := a.Decimal.Cmp(b.Decimal); cmp != 0 {
				return cmp > 0
			}
		}
		return results[i].Symbol < results[j].Symbol
	})
}
