package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// symbolHeaders are the column titles recognised as holding ticker symbols
var symbolHeaders = map[string]bool{
	"symbol": true,
	"ticker": true,
	"code":   true,
}

// TickerLoader resolves the ticker universe for a run
type TickerLoader struct {
	iex        *IEXClient
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTickerLoader creates a ticker loader. iex may be nil when only file
// sources are used.
func NewTickerLoader(iex *IEXClient, logger *zap.Logger) *TickerLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickerLoader{
		iex:        iex,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Load returns the tickers from source: the IEX reference list when source
// is empty, a CSV file, or an HTML page (file or URL) with a symbol table.
func (l *TickerLoader) Load(ctx context.Context, source string) ([]string, error) {
	var (
		tickers []string
		err     error
	)

	switch {
	case source == "":
		if l.iex == nil {
			return nil, fmt.Errorf("no ticker source configured")
		}
		tickers, err = l.iex.ListSymbols(ctx)
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		tickers, err = l.loadHTMLFromURL(ctx, source)
	case isHTMLFile(source):
		tickers, err = loadHTMLFile(source)
	default:
		tickers, err = LoadTickersFromCSV(source)
	}
	if err != nil {
		return nil, err
	}

	tickers = NormalizeTickers(tickers)
	l.logger.Info("loaded tickers", zap.String("source", sourceName(source)), zap.Int("count", len(tickers)))
	return tickers, nil
}

func sourceName(source string) string {
	if source == "" {
		return "iex:ref-data"
	}
	return source
}

func isHTMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// LoadTickersFromCSV loads ticker symbols from the first column of a CSV
// file, skipping the header row
func LoadTickersFromCSV(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open ticker file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ticker file: %w", err)
	}

	var tickers []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ticker file: %w", err)
		}

		if len(record) > 0 {
			tickers = append(tickers, record[0])
		}
	}

	return tickers, nil
}

func loadHTMLFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ticker page: %w", err)
	}
	defer file.Close()

	return LoadTickersFromHTML(file)
}

func (l *TickerLoader) loadHTMLFromURL(ctx context.Context, rawURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticker page returned status %d", resp.StatusCode)
	}

	return LoadTickersFromHTML(resp.Body)
}

// LoadTickersFromHTML extracts symbols from the first table whose header row
// has a Symbol or Ticker column
func LoadTickersFromHTML(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var tickers []string
	found := false

	doc.Find("table").EachWithBreak(func(i int, table *goquery.Selection) bool {
		column := -1
		table.Find("tr").EachWithBreak(func(j int, row *goquery.Selection) bool {
			row.Find("th").EachWithBreak(func(k int, cell *goquery.Selection) bool {
				if symbolHeaders[strings.ToLower(strings.TrimSpace(cell.Text()))] {
					column = k
					return false
				}
				return true
			})
			return column < 0
		})
		if column < 0 {
			return true
		}

		found = true
		table.Find("tr").Each(func(j int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() <= column {
				return
			}
			tickers = append(tickers, cells.Eq(column).Text())
		})
		return false
	})

	if !found {
		return nil, fmt.Errorf("no table with a symbol column found")
	}
	return tickers, nil
}

// NormalizeTickers trims and upper-cases symbols, dropping blanks and
// duplicates while keeping the first occurrence order
func NormalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ShuffleTickers shuffles tickers in place
func ShuffleTickers(tickers []string, rng *rand.Rand) {
	rng.Shuffle(len(tickers), func(i, j int) {
		tickers[i], tickers[j] = tickers[j], tickers[i]
	})
}
