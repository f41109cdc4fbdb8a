package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"net-net-screener/models"
	"net-net-screener/valuation"
)

const (
	resultsSheet = "Stocks"
	skippedSheet = "Skipped"
)

var resultColumns = []string{
	"Ticker", "Company Name", "Stock Market", "Country", "Sector",
	"Market Cap", "Current Assets", "Total Liabilities", "Net Net Score",
	"OBI", "Potential Gain", "PE", "Current Stock Price", "Net Net Ratio",
	"Destination Stock Price", "Gain Value", "Undervalued", "Net Net Bargain",
}

// ExcelExporter writes the report as an .xlsx workbook
type ExcelExporter struct {
	dir      string
	baseName string
	now      func() time.Time
}

// Export writes one row per result on the Stocks sheet and the skipped
// tickers on a second sheet
func (e *ExcelExporter) Export(report *valuation.Report) (string, error) {
	if err := ensureDir(e.dir); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return "", fmt.Errorf("failed to rename sheet: %w", err)
	}

	header := make([]interface{}, len(resultColumns))
	for i, c := range resultColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("failed to create header style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(resultColumns), 1)
	if err := f.SetCellStyle(resultsSheet, "A1", lastHeader, bold); err != nil {
		return "", fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetPanes(resultsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return "", fmt.Errorf("failed to freeze header: %w", err)
	}

	for i, result := range report.Results {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := resultRow(result)
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return "", fmt.Errorf("failed to write row for %s: %w", result.Symbol, err)
		}
	}

	if _, err := f.NewSheet(skippedSheet); err != nil {
		return "", fmt.Errorf("failed to create skipped sheet: %w", err)
	}
	if err := f.SetSheetRow(skippedSheet, "A1", &[]interface{}{"Ticker", "Reason"}); err != nil {
		return "", fmt.Errorf("failed to write skipped header: %w", err)
	}
	for i, s := range report.Skipped {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(skippedSheet, cell, &[]interface{}{s.Symbol, s.Reason}); err != nil {
			return "", fmt.Errorf("failed to write skipped row for %s: %w", s.Symbol, err)
		}
	}

	path := FileName(e.dir, e.baseName, "xlsx", e.now())
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

func resultRow(r *models.ValuationResult) []interface{} {
	return []interface{}{
		r.Symbol,
		r.CompanyName,
		r.Exchange,
		r.Country,
		r.Sector,
		cellValue(r.MarketCap),
		cellValue(r.CurrentAssets),
		cellValue(r.TotalLiabilities),
		cellValue(r.NetNetScore),
		cellValue(r.OBIValue),
		cellValue(r.PotentialGainValue),
		cellValue(r.PERatio),
		cellValue(r.CurrentPrice),
		cellValue(r.NetNetRatio),
		cellValue(r.DestinationPrice),
		cellValue(r.GainPercent),
		r.IsUndervalued,
		r.IsNetNetBargain,
	}
}
