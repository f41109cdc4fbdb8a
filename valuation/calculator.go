package valuation

import (
	"github.com/shopspring/decimal"

	"net-net-screener/models"
)

var hundred = decimal.NewFromInt(100)

// Calculator handles net-net valuation calculations
type Calculator struct {
	params models.ScreeningParameters
}

// NewCalculator creates a new valuation calculator with default parameters
func NewCalculator() *Calculator {
	return &Calculator{params: DefaultParameters()}
}

// DefaultParameters returns the default screening parameters
func DefaultParameters() models.ScreeningParameters {
	return models.ScreeningParameters{
		StrictOBI:         false,
		ReceivablesWeight: 0.75,  // receivables count at 75%
		InventoryWeight:   0.5,   // inventory counts at 50%
		MaxPERatio:        100.0, // exclusive P/E ceiling
		MaxNetNetRatio:    0.7,   // market cap below 70% of liquidation value
	}
}

// ComputeNetNetScore returns current assets minus total liabilities.
func (c *Calculator) ComputeNetNetScore(r *models.TickerRecord) decimal.NullDecimal {
	if !r.CurrentAssets.Valid || !r.TotalLiabilities.Valid {
		return decimal.NullDecimal{}
	}
	return valid(r.CurrentAssets.Decimal.Sub(r.TotalLiabilities.Decimal))
}

// ComputeOBI returns the liquidity weighted asset value. In strict mode it is
// cash flow plus weighted receivables and inventory; otherwise it is the plain
// current assets figure.
func (c *Calculator) ComputeOBI(r *models.TickerRecord, strict bool) decimal.NullDecimal {
	if !strict {
		return r.CurrentAssets
	}
	if !r.CashFlow.Valid || !r.Receivables.Valid || !r.Inventory.Valid {
		return decimal.NullDecimal{}
	}
	receivables := r.Receivables.Decimal.Mul(decimal.NewFromFloat(c.params.ReceivablesWeight))
	inventory := r.Inventory.Decimal.Mul(decimal.NewFromFloat(c.params.InventoryWeight))
	return valid(r.CashFlow.Decimal.Add(receivables).Add(inventory))
}

// MarketValue returns the market capitalisation, falling back to
// price times shares outstanding.
func (c *Calculator) MarketValue(r *models.TickerRecord) decimal.NullDecimal {
	if r.MarketCap.Valid {
		return r.MarketCap
	}
	if r.CurrentPrice.Valid && r.SharesOutstanding.Valid {
		return valid(r.CurrentPrice.Decimal.Mul(r.SharesOutstanding.Decimal))
	}
	return decimal.NullDecimal{}
}

// LiquidationValue returns the value compared against the market: the net net
// score by default, OBI minus total liabilities in strict mode.
func (c *Calculator) LiquidationValue(r *models.TickerRecord, netNetScore, obi decimal.NullDecimal) decimal.NullDecimal {
	if !c.params.StrictOBI {
		return netNetScore
	}
	if !obi.Valid || !r.TotalLiabilities.Valid {
		return decimal.NullDecimal{}
	}
	return valid(obi.Decimal.Sub(r.TotalLiabilities.Decimal))
}

// ComputePotentialGain returns liquidation value minus current market value.
// A positive gain signals undervaluation.
func (c *Calculator) ComputePotentialGain(r *models.TickerRecord, liquidationValue decimal.NullDecimal) decimal.NullDecimal {
	marketValue := c.MarketValue(r)
	if !liquidationValue.Valid || !marketValue.Valid {
		return decimal.NullDecimal{}
	}
	return valid(liquidationValue.Decimal.Sub(marketValue.Decimal))
}

// ClassifyUndervalued reports whether the gain is strictly positive and the
// P/E ratio lies strictly between zero and the configured ceiling.
func (c *Calculator) ClassifyUndervalued(res *models.ValuationResult) bool {
	if !res.PotentialGainValue.Valid || !res.PotentialGainValue.Decimal.IsPositive() {
		return false
	}
	return c.peWithinBounds(res.PERatio)
}

// classifyNetNetBargain applies the ratio screen: 0 < ratio < MaxNetNetRatio
// together with the P/E bounds.
func (c *Calculator) classifyNetNetBargain(res *models.ValuationResult) bool {
	if !res.NetNetRatio.Valid || !res.NetNetRatio.Decimal.IsPositive() {
		return false
	}
	if !res.NetNetRatio.Decimal.LessThan(decimal.NewFromFloat(c.params.MaxNetNetRatio)) {
		return false
	}
	return c.peWithinBounds(res.PERatio)
}

func (c *Calculator) peWithinBounds(pe decimal.NullDecimal) bool {
	if !pe.Valid || !pe.Decimal.IsPositive() {
		return false
	}
	return pe.Decimal.LessThan(decimal.NewFromFloat(c.params.MaxPERatio))
}

// Evaluate derives the full ValuationResult for one record
func (c *Calculator) Evaluate(r *models.TickerRecord) *models.ValuationResult {
	netNet := c.ComputeNetNetScore(r)
	obi := c.ComputeOBI(r, c.params.StrictOBI)
	liquidation := c.LiquidationValue(r, netNet, obi)
	gain := c.ComputePotentialGain(r, liquidation)

	res := &models.ValuationResult{
		Symbol:             r.Symbol,
		NetNetScore:        netNet,
		OBIValue:           obi,
		PotentialGainValue: gain,
		PERatio:            r.PERatio,

		CompanyName:      r.CompanyName,
		Exchange:         r.Exchange,
		Country:          r.Country,
		Sector:           r.Sector,
		MarketCap:        c.MarketValue(r),
		CurrentAssets:    r.CurrentAssets,
		TotalLiabilities: r.TotalLiabilities,
		CurrentPrice:     r.CurrentPrice,
	}

	res.NetNetRatio = ratio(res.MarketCap, liquidation)
	if res.NetNetRatio.Valid && r.CurrentPrice.Valid {
		res.DestinationPrice = ratio(r.CurrentPrice, res.NetNetRatio)
	}
	if res.DestinationPrice.Valid {
		if pct := ratio(res.DestinationPrice, r.CurrentPrice); pct.Valid {
			res.GainPercent = valid(pct.Decimal.Mul(hundred))
		}
	}

	res.IsUndervalued = c.ClassifyUndervalued(res)
	res.IsNetNetBargain = c.classifyNetNetBargain(res)

	for _, m := range []struct {
		name  string
		value decimal.NullDecimal
	}{
		{models.MetricNetNetScore, res.NetNetScore},
		{models.MetricOBI, res.OBIValue},
		{models.MetricPotentialGain, res.PotentialGainValue},
		{models.MetricNetNetRatio, res.NetNetRatio},
		{models.MetricGainPercent, res.GainPercent},
	} {
		if !m.value.Valid {
			res.Unavailable = append(res.Unavailable, m.name)
		}
	}

	return res
}

// SetParameters allows customization of screening parameters
func (c *Calculator) SetParameters(params models.ScreeningParameters) {
	c.params = params
}

// GetParameters returns current screening parameters
func (c *Calculator) GetParameters() models.ScreeningParameters {
	return c.params
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// ratio divides a by b; unavailable when either side is missing or b is zero.
func ratio(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid || b.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return valid(a.Decimal.Div(b.Decimal))
}
