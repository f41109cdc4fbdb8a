package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickerRecord represents the raw financial facts fetched for one symbol.
// Amounts that the provider did not return are left invalid rather than zero.
type TickerRecord struct {
	Symbol            string              `json:"symbol"`
	CompanyName       string              `json:"company_name"`
	Exchange          string              `json:"exchange"`
	Country           string              `json:"country"`
	Sector            string              `json:"sector"`
	MarketCap         decimal.NullDecimal `json:"market_cap"`
	CurrentAssets     decimal.NullDecimal `json:"current_assets"`
	TotalLiabilities  decimal.NullDecimal `json:"total_liabilities"`
	CashFlow          decimal.NullDecimal `json:"cash_flow"`
	Receivables       decimal.NullDecimal `json:"receivables"`
	Inventory         decimal.NullDecimal `json:"inventory"`
	PERatio           decimal.NullDecimal `json:"pe_ratio"`
	CurrentPrice      decimal.NullDecimal `json:"current_price"`
	SharesOutstanding decimal.NullDecimal `json:"shares_outstanding"`
	FetchTime         time.Time           `json:"fetch_time"`
}

// Empty reports whether the record carries no usable financial field at all.
func (r *TickerRecord) Empty() bool {
	for _, v := range []decimal.NullDecimal{
		r.MarketCap, r.CurrentAssets, r.TotalLiabilities, r.CashFlow,
		r.Receivables, r.Inventory, r.PERatio, r.CurrentPrice, r.SharesOutstanding,
	} {
		if v.Valid {
			return false
		}
	}
	return true
}

// ValuationResult represents the derived metrics for one TickerRecord
type ValuationResult struct {
	Symbol             string              `json:"symbol"`
	NetNetScore        decimal.NullDecimal `json:"net_net_score"`
	OBIValue           decimal.NullDecimal `json:"obi_value"`
	PotentialGainValue decimal.NullDecimal `json:"potential_gain_value"`
	PERatio            decimal.NullDecimal `json:"pe_ratio"`
	IsUndervalued      bool                `json:"is_undervalued"`

	// Original net-net ratio view: market cap over liquidation value
	NetNetRatio      decimal.NullDecimal `json:"net_net_ratio"`
	DestinationPrice decimal.NullDecimal `json:"destination_price"`
	GainPercent      decimal.NullDecimal `json:"gain_percent"`
	IsNetNetBargain  bool                `json:"is_net_net_bargain"`

	CompanyName      string              `json:"company_name"`
	Exchange         string              `json:"exchange"`
	Country          string              `json:"country"`
	Sector           string              `json:"sector"`
	MarketCap        decimal.NullDecimal `json:"market_cap"`
	CurrentAssets    decimal.NullDecimal `json:"current_assets"`
	TotalLiabilities decimal.NullDecimal `json:"total_liabilities"`
	CurrentPrice     decimal.NullDecimal `json:"current_price"`

	// Names of derived metrics that could not be computed
	Unavailable []string `json:"unavailable,omitempty"`
}

// FilterUndervalued returns only the results classified as undervalued
func FilterUndervalued(results []*ValuationResult) []*ValuationResult {
	var filtered []*ValuationResult
	for _, result := range results {
		if result.IsUndervalued {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

// SkippedTicker records a symbol the pipeline dropped and why
type SkippedTicker struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// FetchOutcome is what the data provider produced for a single symbol.
type FetchOutcome struct {
	Symbol string
	Record *TickerRecord
	Err    error
}

// ScreeningParameters represents parameters for the undervaluation screen
type ScreeningParameters struct {
	StrictOBI         bool    `json:"strict_obi" yaml:"strict_obi"`
	ReceivablesWeight float64 `json:"receivables_weight" yaml:"receivables_weight"`
	InventoryWeight   float64 `json:"inventory_weight" yaml:"inventory_weight"`
	MaxPERatio        float64 `json:"max_pe_ratio" yaml:"max_pe_ratio"`
	MaxNetNetRatio    float64 `json:"max_net_net_ratio" yaml:"max_net_net_ratio"`
}

// Derived metric names reported in ValuationResult.Unavailable
const (
	MetricNetNetScore   = "net_net_score"
	MetricOBI           = "obi_value"
	MetricPotentialGain = "potential_gain_value"
	MetricNetNetRatio   = "net_net_ratio"
	MetricGainPercent   = "gain_percent"
)
