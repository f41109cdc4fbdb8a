package services

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// latestTradeClient is the part of the Alpaca market data client we use
type latestTradeClient interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// AlpacaPriceSource reads the latest trade price from Alpaca market data
type AlpacaPriceSource struct {
	client latestTradeClient
}

// NewAlpacaPriceSource creates a price source backed by Alpaca market data
func NewAlpacaPriceSource(apiKey, apiSecret string) *AlpacaPriceSource {
	return &AlpacaPriceSource{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
	}
}

// LatestPrice returns the last trade price, or an unavailable value if
// Alpaca has no trade for the symbol
func (a *AlpacaPriceSource) LatestPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.NullDecimal{}, err
	}

	trade, err := a.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: alpaca latest trade for %s: %v", ErrProviderUnavailable, symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		return decimal.NullDecimal{}, nil
	}

	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(trade.Price), Valid: true}, nil
}
