package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/pretty"

	"net-net-screener/models"
	"net-net-screener/valuation"
)

// Document is the JSON export layout
type Document struct {
	Date    string                    `json:"date"`
	Results []*models.ValuationResult `json:"results"`
	Skipped []models.SkippedTicker    `json:"skipped"`
}

// JSONExporter writes the report as prettified JSON
type JSONExporter struct {
	dir      string
	baseName string
	now      func() time.Time
}

// Export writes the report to <base>_<date>.json
func (e *JSONExporter) Export(report *valuation.Report) (string, error) {
	if err := ensureDir(e.dir); err != nil {
		return "", err
	}

	now := e.now()
	doc := Document{
		Date:    now.Format("2006-01-02"),
		Results: report.Results,
		Skipped: report.Skipped,
	}
	if doc.Results == nil {
		doc.Results = []*models.ValuationResult{}
	}
	if doc.Skipped == nil {
		doc.Skipped = []models.SkippedTicker{}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := FileName(e.dir, e.baseName, "json", now)
	if err := os.WriteFile(path, pretty.Pretty(data), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
