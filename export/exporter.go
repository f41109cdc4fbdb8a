package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"net-net-screener/valuation"
)

// NotAvailable is written in place of metrics that could not be computed
const NotAvailable = "N/A"

// Exporter persists a valuation report and returns the written path
type Exporter interface {
	Export(report *valuation.Report) (string, error)
}

// New returns the exporter for the given format ("xlsx" or "json")
func New(format, dir, baseName string, now func() time.Time) (Exporter, error) {
	if now == nil {
		now = time.Now
	}
	switch format {
	case "xlsx":
		return &ExcelExporter{dir: dir, baseName: baseName, now: now}, nil
	case "json":
		return &JSONExporter{dir: dir, baseName: baseName, now: now}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// FileName builds <dir>/<base>_<YYYY_MM_DD>.<ext>
func FileName(dir, baseName, ext string, date time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", baseName, date.Format("2006_01_02"), ext))
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// cellValue turns an amount into a spreadsheet value, or N/A
func cellValue(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return NotAvailable
	}
	return d.Decimal.InexactFloat64()
}
