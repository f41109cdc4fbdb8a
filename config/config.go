package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"net-net-screener/models"
	"net-net-screener/valuation"
)

// ConfigurationError reports a problem that makes the whole run impossible
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// Config holds application configuration
type Config struct {
	Screening   models.ScreeningParameters `json:"screening" yaml:"screening"`
	Provider    ProviderConfig             `json:"provider" yaml:"provider"`
	Alpaca      AlpacaConfig               `json:"alpaca" yaml:"alpaca"`
	DataSources DataSourcesConfig          `json:"data_sources" yaml:"data_sources"`
	Processing  ProcessingConfig           `json:"processing" yaml:"processing"`
	Output      OutputConfig               `json:"output" yaml:"output"`
}

// ProviderConfig holds configuration for the IEX Cloud client
type ProviderConfig struct {
	Token             string `json:"-" yaml:"token"`
	BaseURL           string `json:"base_url" yaml:"base_url"`
	Sandbox           bool   `json:"sandbox" yaml:"sandbox"`
	RequestTimeout    int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	MaxRetries        int    `json:"max_retries" yaml:"max_retries"`
	RequestsPerSecond int    `json:"requests_per_second" yaml:"requests_per_second"`
}

// AlpacaConfig holds credentials for the optional latest-price source
type AlpacaConfig struct {
	APIKey    string `json:"-" yaml:"api_key"`
	APISecret string `json:"-" yaml:"api_secret"`
}

// Enabled reports whether both Alpaca credentials are present
func (a AlpacaConfig) Enabled() bool {
	return a.APIKey != "" && a.APISecret != ""
}

// DataSourcesConfig holds configuration for the ticker universe
type DataSourcesConfig struct {
	TickerFile string `json:"ticker_file" yaml:"ticker_file"` // empty means IEX reference symbols
	Shuffle    bool   `json:"shuffle" yaml:"shuffle"`
}

// ProcessingConfig holds configuration for processing
type ProcessingConfig struct {
	MaxWorkers     int `json:"max_workers" yaml:"max_workers"`
	TimeoutMinutes int `json:"timeout_minutes" yaml:"timeout_minutes"`
}

// OutputConfig holds configuration for export and terminal output
type OutputConfig struct {
	BaseName        string `json:"base_name" yaml:"base_name"`
	Directory       string `json:"directory" yaml:"directory"`
	Format          string `json:"format" yaml:"format"` // "xlsx", "json"
	ShowColors      bool   `json:"show_colors" yaml:"show_colors"`
	ShowProgress    bool   `json:"show_progress" yaml:"show_progress"`
	OnlyUndervalued bool   `json:"only_undervalued" yaml:"only_undervalued"`
	MaxResults      int    `json:"max_results" yaml:"max_results"`
	LogLevel        string `json:"log_level" yaml:"log_level"`
}

// NewDefaultConfig creates a new configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Screening: valuation.DefaultParameters(),
		Provider: ProviderConfig{
			BaseURL:           "",
			Sandbox:           false,
			RequestTimeout:    10,
			MaxRetries:        3,
			RequestsPerSecond: 50,
		},
		DataSources: DataSourcesConfig{
			TickerFile: "",
			Shuffle:    false,
		},
		Processing: ProcessingConfig{
			MaxWorkers:     8,
			TimeoutMinutes: 60,
		},
		Output: OutputConfig{
			BaseName:        "stocks_info",
			Directory:       ".",
			Format:          "xlsx",
			ShowColors:      true,
			ShowProgress:    true,
			OnlyUndervalued: false,
			MaxResults:      0, // 0 means no limit
			LogLevel:        "info",
		},
	}
}

// GetTestConfig returns a configuration aimed at the IEX sandbox with a
// small worker pool
func GetTestConfig() *Config {
	config := NewDefaultConfig()

	config.Provider.Sandbox = true
	config.Processing.MaxWorkers = 4
	config.Output.MaxResults = 10

	return config
}

// LoadFile reads a YAML configuration file on top of the defaults
func LoadFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile layers a YAML configuration file over c. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ApplyEnv fills credentials that were not set explicitly from the environment
func (c *Config) ApplyEnv() {
	if c.Provider.Token == "" {
		c.Provider.Token = os.Getenv("IEX_TOKEN")
	}
	if c.Alpaca.APIKey == "" {
		c.Alpaca.APIKey = os.Getenv("ALPACA_API_KEY")
	}
	if c.Alpaca.APISecret == "" {
		c.Alpaca.APISecret = os.Getenv("ALPACA_API_SECRET")
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider.Token) == "" {
		return &ConfigurationError{Field: "iex-token", Reason: "is required"}
	}

	// Validate screening parameters
	if c.Screening.ReceivablesWeight < 0 || c.Screening.ReceivablesWeight > 1 {
		return &ConfigurationError{Field: "receivables_weight", Reason: "must be between 0 and 1"}
	}
	if c.Screening.InventoryWeight < 0 || c.Screening.InventoryWeight > 1 {
		return &ConfigurationError{Field: "inventory_weight", Reason: "must be between 0 and 1"}
	}
	if c.Screening.MaxPERatio <= 0 {
		return &ConfigurationError{Field: "max_pe_ratio", Reason: "must be positive"}
	}
	if c.Screening.MaxNetNetRatio <= 0 {
		return &ConfigurationError{Field: "max_net_net_ratio", Reason: "must be positive"}
	}

	// Validate provider parameters
	if c.Provider.RequestTimeout <= 0 {
		return &ConfigurationError{Field: "request_timeout_seconds", Reason: "must be positive"}
	}
	if c.Provider.MaxRetries < 0 {
		return &ConfigurationError{Field: "max_retries", Reason: "cannot be negative"}
	}
	if c.Provider.RequestsPerSecond <= 0 {
		return &ConfigurationError{Field: "requests_per_second", Reason: "must be positive"}
	}

	// Validate processing parameters
	if c.Processing.MaxWorkers <= 0 {
		return &ConfigurationError{Field: "max_workers", Reason: "must be positive"}
	}
	if c.Processing.TimeoutMinutes <= 0 {
		return &ConfigurationError{Field: "timeout_minutes", Reason: "must be positive"}
	}

	// Validate output parameters
	if strings.TrimSpace(c.Output.BaseName) == "" {
		return &ConfigurationError{Field: "output", Reason: "cannot be empty"}
	}
	switch c.Output.Format {
	case "xlsx", "json":
	default:
		return &ConfigurationError{Field: "format", Reason: fmt.Sprintf("must be xlsx or json, got %q", c.Output.Format)}
	}
	if c.Output.MaxResults < 0 {
		return &ConfigurationError{Field: "limit", Reason: "cannot be negative"}
	}

	return nil
}
