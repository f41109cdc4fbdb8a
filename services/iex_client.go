package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"net-net-screener/config"
	"net-net-screener/utils"
)

const (
	DefaultIEXBaseURL = "https://cloud.iexapis.com/stable"
	SandboxIEXBaseURL = "https://sandbox.iexapis.com/stable"
)

var (
	// ErrNotFound means the provider has no data for the symbol
	ErrNotFound = errors.New("symbol not found")
	// ErrProviderUnavailable means the provider call failed
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// IEXSymbol is one entry of the IEX reference symbol list
type IEXSymbol struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Exchange  string `json:"exchange"`
	Type      string `json:"type"`
	IsEnabled bool   `json:"isEnabled"`
}

// IEXKeyStats holds the key stats fields used for screening
type IEXKeyStats struct {
	CompanyName       string              `json:"companyName"`
	MarketCap         decimal.NullDecimal `json:"marketcap"`
	PERatio           decimal.NullDecimal `json:"peRatio"`
	SharesOutstanding decimal.NullDecimal `json:"sharesOutstanding"`
}

// IEXFinancials represents the response from the financials endpoint
type IEXFinancials struct {
	Symbol     string `json:"symbol"`
	Financials []struct {
		ReportDate       string              `json:"reportDate"`
		CurrentAssets    decimal.NullDecimal `json:"currentAssets"`
		TotalLiabilities decimal.NullDecimal `json:"totalLiabilities"`
		CashFlow         decimal.NullDecimal `json:"cashFlow"`
		Receivables      decimal.NullDecimal `json:"receivables"`
		Inventory        decimal.NullDecimal `json:"inventory"`
	} `json:"financials"`
}

// IEXBalanceSheet represents the response from the balance-sheet endpoint
type IEXBalanceSheet struct {
	BalanceSheet []struct {
		Receivables decimal.NullDecimal `json:"receivables"`
		Inventory   decimal.NullDecimal `json:"inventory"`
	} `json:"balancesheet"`
}

// IEXCashFlow represents the response from the cash-flow endpoint
type IEXCashFlow struct {
	CashFlow []struct {
		CashFlow decimal.NullDecimal `json:"cashFlow"`
	} `json:"cashflow"`
}

// IEXCompany holds the descriptive company fields
type IEXCompany struct {
	CompanyName string `json:"companyName"`
	Exchange    string `json:"exchange"`
	Country     string `json:"country"`
	Sector      string `json:"sector"`
}

// IEXClient is a thin client for the IEX Cloud REST API
type IEXClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *utils.RateLimiter
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewIEXClient creates a new IEX Cloud client
func NewIEXClient(cfg config.ProviderConfig, logger *zap.Logger) *IEXClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultIEXBaseURL
		if cfg.Sandbox {
			baseURL = SandboxIEXBaseURL
		}
	}

	return &IEXClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		limiter:    utils.NewRateLimiter(cfg.RequestsPerSecond),
		maxRetries: cfg.MaxRetries,
		retryDelay: 500 * time.Millisecond,
		logger:     logger.Named("iex"),
	}
}

// Close releases the client's rate limiter
func (c *IEXClient) Close() {
	c.limiter.Stop()
}

// ListSymbols returns every enabled symbol from the reference data
func (c *IEXClient) ListSymbols(ctx context.Context) ([]string, error) {
	var symbols []IEXSymbol
	if err := c.get(ctx, "/ref-data/symbols", &symbols); err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}

	tickers := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s.IsEnabled && s.Symbol != "" {
			tickers = append(tickers, s.Symbol)
		}
	}
	return tickers, nil
}

// KeyStats fetches market cap, P/E ratio and shares outstanding
func (c *IEXClient) KeyStats(ctx context.Context, symbol string) (*IEXKeyStats, error) {
	var stats IEXKeyStats
	if err := c.get(ctx, stockPath(symbol, "stats"), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Financials fetches the most recent financial statement summary
func (c *IEXClient) Financials(ctx context.Context, symbol string) (*IEXFinancials, error) {
	var fin IEXFinancials
	if err := c.get(ctx, stockPath(symbol, "financials"), &fin); err != nil {
		return nil, err
	}
	return &fin, nil
}

// BalanceSheet fetches the most recent balance sheet
func (c *IEXClient) BalanceSheet(ctx context.Context, symbol string) (*IEXBalanceSheet, error) {
	var bs IEXBalanceSheet
	if err := c.get(ctx, stockPath(symbol, "balance-sheet"), &bs); err != nil {
		return nil, err
	}
	return &bs, nil
}

// CashFlow fetches the most recent cash flow statement
func (c *IEXClient) CashFlow(ctx context.Context, symbol string) (*IEXCashFlow, error) {
	var cf IEXCashFlow
	if err := c.get(ctx, stockPath(symbol, "cash-flow"), &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// Company fetches descriptive company information
func (c *IEXClient) Company(ctx context.Context, symbol string) (*IEXCompany, error) {
	var company IEXCompany
	if err := c.get(ctx, stockPath(symbol, "company"), &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// LatestPrice fetches the latest price for the symbol
func (c *IEXClient) LatestPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	var price decimal.NullDecimal
	if err := c.get(ctx, stockPath(symbol, "price"), &price); err != nil {
		return decimal.NullDecimal{}, err
	}
	return price, nil
}

func stockPath(symbol, endpoint string) string {
	return "/stock/" + url.PathEscape(strings.ToLower(symbol)) + "/" + endpoint
}

// get performs a GET request against the API and decodes the JSON body into
// out. 429 and 5xx responses are retried up to maxRetries times.
func (c *IEXClient) get(ctx context.Context, path string, out interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, retry, err := c.do(ctx, u.String())
		if err == nil {
			return c.decode(path, body, out)
		}
		if !retry {
			return err
		}
		lastErr = err
		c.logger.Debug("retrying request", zap.String("path", path), zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return lastErr
}

// do executes one request and reports whether a failure is worth retrying
func (c *IEXClient) do(ctx context.Context, rawURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		// the request URL carries the token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, true, fmt.Errorf("%w: %s %s: %v", ErrProviderUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: failed to read response body: %v", ErrProviderUnavailable, err)
	}
	return body, false, nil
}

// decode unmarshals body into out, repairing malformed JSON once before
// giving up.
func (c *IEXClient) decode(path string, body []byte, out interface{}) error {
	err := json.Unmarshal(body, out)
	if err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(body))
	if repairErr != nil {
		return fmt.Errorf("%w: failed to parse JSON response: %v", ErrProviderUnavailable, err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("%w: failed to parse repaired JSON response: %v", ErrProviderUnavailable, err)
	}

	c.logger.Warn("repaired malformed JSON response", zap.String("path", path))
	return nil
}
