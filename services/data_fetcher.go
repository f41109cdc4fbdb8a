package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"net-net-screener/models"
)

// PriceSource returns the latest traded price for a symbol
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error)
}

// DataFetcher assembles TickerRecords from the IEX endpoints
type DataFetcher struct {
	iex    *IEXClient
	prices PriceSource
	strict bool
	logger *zap.Logger
}

// NewDataFetcher creates a new instance of DataFetcher
func NewDataFetcher(iex *IEXClient, logger *zap.Logger) *DataFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataFetcher{
		iex:    iex,
		logger: logger,
	}
}

// SetStrict makes the fetcher pull the cash flow and balance sheet
// statements needed by the strict OBI formula.
func (df *DataFetcher) SetStrict(strict bool) {
	df.strict = strict
}

// SetPriceSource installs a price source that is preferred over IEX
func (df *DataFetcher) SetPriceSource(ps PriceSource) {
	df.prices = ps
}

// FetchTickerRecord fetches everything needed to value one ticker. A ticker
// without financial statements is reported as not found; every other missing
// piece only leaves the corresponding fields unavailable.
func (df *DataFetcher) FetchTickerRecord(ctx context.Context, ticker string) (*models.TickerRecord, error) {
	record := &models.TickerRecord{
		Symbol:    ticker,
		FetchTime: time.Now(),
	}
	logger := df.logger.With(zap.String("symbol", ticker))

	fin, err := df.iex.Financials(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch financials for %s: %w", ticker, err)
	}
	if len(fin.Financials) == 0 {
		return nil, fmt.Errorf("no financials for %s: %w", ticker, ErrNotFound)
	}
	latest := fin.Financials[0]
	record.CurrentAssets = latest.CurrentAssets
	record.TotalLiabilities = latest.TotalLiabilities
	record.CashFlow = latest.CashFlow
	record.Receivables = latest.Receivables
	record.Inventory = latest.Inventory

	stats, err := df.iex.KeyStats(ctx, ticker)
	if err := df.tolerate(ctx, logger, "key stats", err); err != nil {
		return nil, err
	}
	if stats != nil {
		record.MarketCap = stats.MarketCap
		record.PERatio = stats.PERatio
		record.SharesOutstanding = stats.SharesOutstanding
		record.CompanyName = stats.CompanyName
	}

	company, err := df.iex.Company(ctx, ticker)
	if err := df.tolerate(ctx, logger, "company", err); err != nil {
		return nil, err
	}
	if company != nil {
		if company.CompanyName != "" {
			record.CompanyName = company.CompanyName
		}
		record.Exchange = company.Exchange
		record.Country = company.Country
		record.Sector = company.Sector
	}

	price, err := df.latestPrice(ctx, ticker)
	if err := df.tolerate(ctx, logger, "price", err); err != nil {
		return nil, err
	}
	record.CurrentPrice = price

	if df.strict {
		if err := df.fetchStrictFields(ctx, logger, record); err != nil {
			return nil, err
		}
	}

	return record, nil
}

// fetchStrictFields fills cash flow, receivables and inventory from the
// dedicated statements, keeping the financials values as fallback.
func (df *DataFetcher) fetchStrictFields(ctx context.Context, logger *zap.Logger, record *models.TickerRecord) error {
	cf, err := df.iex.CashFlow(ctx, record.Symbol)
	if err := df.tolerate(ctx, logger, "cash flow", err); err != nil {
		return err
	}
	if cf != nil && len(cf.CashFlow) > 0 && cf.CashFlow[0].CashFlow.Valid {
		record.CashFlow = cf.CashFlow[0].CashFlow
	}

	if record.Receivables.Valid && record.Inventory.Valid {
		return nil
	}

	bs, err := df.iex.BalanceSheet(ctx, record.Symbol)
	if err := df.tolerate(ctx, logger, "balance sheet", err); err != nil {
		return err
	}
	if bs != nil && len(bs.BalanceSheet) > 0 {
		if !record.Receivables.Valid {
			record.Receivables = bs.BalanceSheet[0].Receivables
		}
		if !record.Inventory.Valid {
			record.Inventory = bs.BalanceSheet[0].Inventory
		}
	}
	return nil
}

// latestPrice asks the preferred price source first and falls back to IEX
func (df *DataFetcher) latestPrice(ctx context.Context, ticker string) (decimal.NullDecimal, error) {
	if df.prices != nil {
		price, err := df.prices.LatestPrice(ctx, ticker)
		if err == nil && price.Valid {
			return price, nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return decimal.NullDecimal{}, ctxErr
			}
			df.logger.Debug("price source failed, falling back to IEX",
				zap.String("symbol", ticker), zap.Error(err))
		}
	}
	return df.iex.LatestPrice(ctx, ticker)
}

// tolerate turns a failed optional call into a warning. Only cancellation is
// passed back to the caller.
func (df *DataFetcher) tolerate(ctx context.Context, logger *zap.Logger, what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return err
	}
	logger.Warn("optional data unavailable", zap.String("data", what), zap.Error(err))
	return nil
}
