package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"bare", []string{"-OBI-strict", "-output", "x"}, []string{"-OBI-strict", "-output", "x"}},
		{"space value", []string{"-OBI-strict", "True", "-output", "x"}, []string{"-OBI-strict=True", "-output", "x"}},
		{"double dash", []string{"--OBI-strict", "0"}, []string{"--OBI-strict=0"}},
		{"equals untouched", []string{"-OBI-strict=False"}, []string{"-OBI-strict=False"}},
		{"other flags untouched", []string{"-shuffle", "true"}, []string{"-shuffle", "true"}},
		{"after terminator", []string{"--", "-OBI-strict", "1"}, []string{"--", "-OBI-strict", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeArgs(tt.in)
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestStrictFlagSpellings(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{nil, false},
		{[]string{"-OBI-strict"}, true},
		{[]string{"-OBI-strict=1"}, true},
		{[]string{"-OBI-strict=0"}, false},
		{[]string{"-OBI-strict=True"}, true},
		{[]string{"-OBI-strict=False"}, false},
		{[]string{"-OBI-strict=yes"}, true},
		{[]string{"-OBI-strict", "TRUE"}, true},
		{[]string{"-OBI-strict", "false"}, false},
	}

	for _, tt := range tests {
		opts, err := parseArgs(tt.args, io.Discard)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", tt.args, err)
		}
		if bool(opts.strict) != tt.want {
			t.Errorf("%v: expected strict %v, got %v", tt.args, tt.want, bool(opts.strict))
		}
	}
}

func TestStrictFlagRejectsGarbage(t *testing.T) {
	if _, err := parseArgs([]string{"-OBI-strict=maybe"}, io.Discard); err == nil {
		t.Error("expected error for an invalid boolean")
	}
	if _, err := parseArgs([]string{"-OBI-strict", "maybe"}, io.Discard); err == nil {
		t.Error("expected stray argument to be rejected")
	}
}

func TestBuildConfigPrecedence(t *testing.T) {
	t.Setenv("IEX_TOKEN", "pk_env")
	t.Setenv("ALPACA_API_KEY", "")
	t.Setenv("ALPACA_API_SECRET", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "output:\n  base_name: from_file\n  format: json\nprocessing:\n  max_workers: 3\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := parseArgs([]string{"-config", path, "-workers", "5", "-OBI-strict", "True"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := opts.buildConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Output.BaseName != "from_file" || cfg.Output.Format != "json" {
		t.Errorf("expected file values to survive, got %+v", cfg.Output)
	}
	if cfg.Processing.MaxWorkers != 5 {
		t.Errorf("expected flag to override file, got %d workers", cfg.Processing.MaxWorkers)
	}
	if !cfg.Screening.StrictOBI {
		t.Error("expected strict OBI")
	}
	if cfg.Provider.Token != "pk_env" {
		t.Errorf("expected token from environment, got %q", cfg.Provider.Token)
	}

	opts, _ = parseArgs([]string{"-iex-token", "pk_flag"}, io.Discard)
	cfg, _ = opts.buildConfig()
	if cfg.Provider.Token != "pk_flag" {
		t.Errorf("expected flag token to win, got %q", cfg.Provider.Token)
	}
}

func TestBuildConfigFileOverTestMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("output:\n  base_name: sandbox_run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := parseArgs([]string{"-test", "-config", path}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := opts.buildConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Provider.Sandbox || cfg.Processing.MaxWorkers != 4 || cfg.Output.MaxResults != 10 {
		t.Errorf("expected test defaults to survive the config file, got %+v %+v", cfg.Provider, cfg.Processing)
	}
	if cfg.Output.BaseName != "sandbox_run" {
		t.Errorf("expected base name from file, got %q", cfg.Output.BaseName)
	}
}

func TestRunMissingTokenIsFatal(t *testing.T) {
	t.Setenv("IEX_TOKEN", "")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var stderr bytes.Buffer
	if code := run([]string{"-progress=false"}, io.Discard, &stderr); code != 2 {
		t.Errorf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "IEX Cloud token is required") {
		t.Errorf("unexpected stderr: %s", stderr.String())
	}
}

func TestRunHelp(t *testing.T) {
	var stdout bytes.Buffer
	if code := run([]string{"-help"}, &stdout, io.Discard); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	help := stdout.String()
	for _, want := range []string{
		"-OBI-strict",
		"Net Net Score: current assets minus total liabilities",
		"undervalued when its potential gain is",
		"positive and its P/E is between 0 and 100",
		"Net Net Bargain",
		"below 0.7",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("expected help to contain %q, got %s", want, help)
		}
	}
	if strings.Contains(help, "market cap over current assets") {
		t.Errorf("help describes the score as a ratio: %s", help)
	}
}

func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	bodies := map[string]string{
		"/stock/acme/financials": `{"financials":[{"currentAssets":1000,"totalLiabilities":400,"cashFlow":120}]}`,
		"/stock/acme/stats":      `{"companyName":"Acme Corp","marketcap":500,"peRatio":7.5}`,
		"/stock/beta/financials": `{"financials":[{"currentAssets":100,"totalLiabilities":90}]}`,
		"/stock/beta/stats":      `{"companyName":"Beta Inc","marketcap":500,"peRatio":12}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestApplicationRun(t *testing.T) {
	server := fakeProvider(t)
	dir := t.TempDir()

	tickerFile := filepath.Join(dir, "tickers.csv")
	if err := os.WriteFile(tickerFile, []byte("Symbol\nbeta\nGONE\nACME\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := parseArgs([]string{
		"-iex-token", "pk_test",
		"-tickers", tickerFile,
		"-format", "json",
		"-output", "screen",
		"-output-dir", dir,
		"-colors=false",
	}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := opts.buildConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Provider.BaseURL = server.URL
	cfg.Provider.MaxRetries = 0
	cfg.Alpaca.APIKey = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	app := NewApplication(cfg, zaptest.NewLogger(t))
	defer app.Close()
	app.now = func() time.Time { return time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC) }
	var display, progress bytes.Buffer
	app.displayOut = &display
	app.progressOut = &progress

	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "screen_2026_03_07.json"))
	if err != nil {
		t.Fatalf("expected export file: %v", err)
	}
	var doc struct {
		Results []struct {
			Symbol        string `json:"symbol"`
			NetNetScore   string `json:"net_net_score"`
			IsUndervalued bool   `json:"is_undervalued"`
		} `json:"results"`
		Skipped []struct {
			Symbol string `json:"symbol"`
		} `json:"skipped"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid export: %v", err)
	}

	if len(doc.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", doc.Results)
	}
	if doc.Results[0].Symbol != "ACME" || doc.Results[0].NetNetScore != "600" || !doc.Results[0].IsUndervalued {
		t.Errorf("unexpected first result: %+v", doc.Results[0])
	}
	if doc.Results[1].Symbol != "BETA" || doc.Results[1].IsUndervalued {
		t.Errorf("unexpected second result: %+v", doc.Results[1])
	}
	if len(doc.Skipped) != 1 || doc.Skipped[0].Symbol != "GONE" {
		t.Errorf("expected GONE to be skipped, got %+v", doc.Skipped)
	}

	if !strings.Contains(display.String(), "Undervalued: 1") {
		t.Errorf("unexpected summary: %s", display.String())
	}
	if !strings.Contains(progress.String(), "(3/3") {
		t.Errorf("expected progress output, got %q", progress.String())
	}
}
