package utils

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/shopspring/decimal"

	"net-net-screener/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// DisplayOptions controls the terminal summary
type DisplayOptions struct {
	ShowColors      bool
	OnlyUndervalued bool
	MaxResults      int
	Now             time.Time
}

// DisplayResults renders the already ordered results as a table followed by
// summary statistics
func DisplayResults(w io.Writer, results []*models.ValuationResult, skipped []models.SkippedTicker, opts DisplayOptions) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	style := func(s lipgloss.Style, text string) string {
		if !opts.ShowColors {
			return text
		}
		return s.Render(text)
	}

	fmt.Fprintln(w, style(titleStyle, fmt.Sprintf("Net Net Screen - %s", opts.Now.Format("2006-01-02 15:04:05"))))

	shown := results
	if opts.OnlyUndervalued {
		shown = models.FilterUndervalued(results)
	}
	if opts.MaxResults > 0 && len(shown) > opts.MaxResults {
		shown = shown[:opts.MaxResults]
	}

	if len(shown) == 0 {
		fmt.Fprintln(w, "No results to display!")
	} else {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Ticker", "Company", "Net Net Score", "OBI", "Potential Gain", "P/E", "Market Cap", "Undervalued")
		for _, r := range shown {
			t.Row(resultCells(r, style)...)
		}
		fmt.Fprintln(w, t.String())
	}

	displaySummary(w, results, skipped, style)
}

func resultCells(r *models.ValuationResult, style func(lipgloss.Style, string) string) []string {
	status := style(badStyle, "no")
	if r.IsUndervalued {
		status = style(goodStyle, "yes")
	}

	companyName := ansi.Truncate(r.CompanyName, 24, "...")

	return []string{
		r.Symbol,
		companyName,
		formatAmount(r.NetNetScore, style),
		formatAmount(r.OBIValue, style),
		formatAmount(r.PotentialGainValue, style),
		formatRatio(r.PERatio, style),
		formatMarketCap(r.MarketCap, style),
		status,
	}
}

func formatAmount(d decimal.NullDecimal, style func(lipgloss.Style, string) string) string {
	if !d.Valid {
		return style(dimStyle, "N/A")
	}
	return formatCompact(d.Decimal)
}

func formatRatio(d decimal.NullDecimal, style func(lipgloss.Style, string) string) string {
	if !d.Valid {
		return style(dimStyle, "N/A")
	}
	return d.Decimal.StringFixed(1)
}

// formatMarketCap formats market cap in human-readable format
func formatMarketCap(d decimal.NullDecimal, style func(lipgloss.Style, string) string) string {
	if !d.Valid || d.Decimal.IsZero() {
		return style(dimStyle, "N/A")
	}
	return formatCompact(d.Decimal)
}

// formatCompact prints an amount with a T/B/M/K suffix
func formatCompact(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	units := []struct {
		suffix string
		size   decimal.Decimal
	}{
		{"T", decimal.New(1, 12)},
		{"B", decimal.New(1, 9)},
		{"M", decimal.New(1, 6)},
		{"K", decimal.New(1, 3)},
	}
	for _, u := range units {
		if d.GreaterThanOrEqual(u.size) {
			return sign + d.Div(u.size).StringFixed(1) + u.suffix
		}
	}
	return sign + d.StringFixed(2)
}

// displaySummary displays summary statistics
func displaySummary(w io.Writer, results []*models.ValuationResult, skipped []models.SkippedTicker, style func(lipgloss.Style, string) string) {
	undervalued := 0
	totalGain := decimal.Zero

	for _, result := range results {
		if result.IsUndervalued {
			undervalued++
			totalGain = totalGain.Add(result.PotentialGainValue.Decimal)
		}
	}

	separator := strings.Repeat("=", 60)
	fmt.Fprintln(w, style(titleStyle, separator))
	fmt.Fprintln(w, style(titleStyle, "Summary:"))
	fmt.Fprintf(w, "Total stocks analyzed: %d\n", len(results))
	fmt.Fprintln(w, style(goodStyle, fmt.Sprintf("Undervalued: %d", undervalued)))
	fmt.Fprintln(w, style(badStyle, fmt.Sprintf("Not undervalued: %d", len(results)-undervalued)))
	fmt.Fprintf(w, "Skipped: %d\n", len(skipped))
	if undervalued > 0 {
		avg := totalGain.Div(decimal.NewFromInt(int64(undervalued)))
		fmt.Fprintln(w, style(goodStyle, fmt.Sprintf("Average potential gain for undervalued stocks: %s", formatCompact(avg))))
	}
	fmt.Fprintln(w, style(titleStyle, separator))
}

// ShowProgress displays a progress indicator
func ShowProgress(w io.Writer, current, total int, ticker string) {
	percentage := float64(current) / float64(total) * 100
	fmt.Fprintf(w, "\rProcessing %-8s (%d/%d - %.1f%%)", ticker, current, total, percentage)

	if current == total {
		fmt.Fprintln(w)
	}
}
