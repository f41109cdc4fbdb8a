package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"net-net-screener/config"
)

const strictFlagName = "OBI-strict"

// boolSpelling is a boolean flag that also accepts yes/no and any case of
// true/false. Without a value it means true.
type boolSpelling bool

func (b *boolSpelling) String() string {
	if b == nil {
		return "false"
	}
	return strconv.FormatBool(bool(*b))
}

func (b *boolSpelling) Set(s string) error {
	v, ok := parseBoolSpelling(s)
	if !ok {
		return fmt.Errorf("invalid boolean value %q", s)
	}
	*b = boolSpelling(v)
	return nil
}

func (b *boolSpelling) IsBoolFlag() bool { return true }

func parseBoolSpelling(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return false, false
	}
	return v, true
}

// normalizeArgs folds "-OBI-strict <value>" into "-OBI-strict=<value>" when
// the next argument is a boolean spelling, since the flag package never
// consumes a separate value for boolean flags.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name := strings.TrimLeft(arg, "-")
		if (arg == "-"+name || arg == "--"+name) && name == strictFlagName && i+1 < len(args) {
			if _, ok := parseBoolSpelling(args[i+1]); ok {
				out = append(out, arg+"="+args[i+1])
				i++
				continue
			}
		}
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		out = append(out, arg)
	}
	return out
}

// options holds the parsed command line
type options struct {
	configPath  string
	testMode    bool
	token       string
	output      string
	outputDir   string
	strict      boolSpelling
	tickers     string
	shuffle     bool
	workers     int
	format      string
	sandbox     bool
	underpriced bool
	limit       int
	colors      bool
	progress    bool
	debug       bool
	help        bool

	set map[string]bool
}

// parseArgs parses the command line without touching the global flag set
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: map[string]bool{}}

	fs := flag.NewFlagSet("net-net-screener", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML configuration file")
	fs.BoolVar(&opts.testMode, "test", false, "Use the IEX sandbox with a small worker pool")
	fs.StringVar(&opts.token, "iex-token", "", "IEX Cloud API token (or IEX_TOKEN)")
	fs.StringVar(&opts.output, "output", "stocks_info", "Base name of the exported file")
	fs.StringVar(&opts.outputDir, "output-dir", ".", "Directory for the exported file")
	fs.Var(&opts.strict, strictFlagName, "Use the strict OBI formula (cash + 0.75 receivables + 0.5 inventory)")
	fs.StringVar(&opts.tickers, "tickers", "", "Ticker CSV file, HTML file or URL (default: IEX symbol list)")
	fs.BoolVar(&opts.shuffle, "shuffle", false, "Process tickers in random order")
	fs.IntVar(&opts.workers, "workers", 8, "Maximum number of parallel workers")
	fs.StringVar(&opts.format, "format", "xlsx", "Export format: xlsx or json")
	fs.BoolVar(&opts.sandbox, "sandbox", false, "Use the IEX Cloud sandbox")
	fs.BoolVar(&opts.underpriced, "underpriced", false, "Show and export only undervalued stocks")
	fs.IntVar(&opts.limit, "limit", 0, "Maximum number of results to show (0 = no limit)")
	fs.BoolVar(&opts.colors, "colors", true, "Enable colored output")
	fs.BoolVar(&opts.progress, "progress", true, "Show progress indicators")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&opts.help, "help", false, "Show help message")

	if err := fs.Parse(normalizeArgs(args)); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})

	return opts, nil
}

// buildConfig layers defaults, the config file, explicit flags and the
// environment, in that order of increasing precedence for flags.
func (o *options) buildConfig() (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if o.testMode {
		cfg = config.GetTestConfig()
	}
	if o.configPath != "" {
		if err := cfg.LoadFile(o.configPath); err != nil {
			return nil, err
		}
	}

	if o.set["iex-token"] {
		cfg.Provider.Token = o.token
	}
	if o.set["output"] {
		cfg.Output.BaseName = o.output
	}
	if o.set["output-dir"] {
		cfg.Output.Directory = o.outputDir
	}
	if o.set[strictFlagName] {
		cfg.Screening.StrictOBI = bool(o.strict)
	}
	if o.set["tickers"] {
		cfg.DataSources.TickerFile = o.tickers
	}
	if o.set["shuffle"] {
		cfg.DataSources.Shuffle = o.shuffle
	}
	if o.set["workers"] {
		cfg.Processing.MaxWorkers = o.workers
	}
	if o.set["format"] {
		cfg.Output.Format = o.format
	}
	if o.set["sandbox"] {
		cfg.Provider.Sandbox = o.sandbox
	}
	if o.set["underpriced"] {
		cfg.Output.OnlyUndervalued = o.underpriced
	}
	if o.set["limit"] {
		cfg.Output.MaxResults = o.limit
	}
	if o.set["colors"] {
		cfg.Output.ShowColors = o.colors
	}
	if o.set["progress"] {
		cfg.Output.ShowProgress = o.progress
	}
	if o.debug {
		cfg.Output.LogLevel = "debug"
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// showHelp displays help information
func showHelp(w io.Writer) {
	fmt.Fprintln(w, "Net Net Stock Screener")
	fmt.Fprintln(w, "======================")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Fetches balance-sheet data from IEX Cloud and ranks stocks by their")
	fmt.Fprintln(w, "Net Net Score: current assets minus total liabilities.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Potential gain is the liquidation value minus the market value. The")
	fmt.Fprintln(w, "liquidation value is the Net Net Score, or OBI minus total liabilities")
	fmt.Fprintln(w, "with -OBI-strict. A stock is undervalued when its potential gain is")
	fmt.Fprintln(w, "positive and its P/E is between 0 and 100 (exclusive).")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The Net Net Bargain column applies the classic ratio test: market cap")
	fmt.Fprintln(w, "over net current assets below 0.7, with the same P/E bounds.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  net-net-screener -iex-token TOKEN [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -iex-token string   IEX Cloud API token (or IEX_TOKEN in the environment/.env)")
	fmt.Fprintln(w, "  -output string      Base name of the exported file (default \"stocks_info\")")
	fmt.Fprintln(w, "  -output-dir string  Directory for the exported file (default \".\")")
	fmt.Fprintln(w, "  -OBI-strict [bool]  Strict OBI: cash + 0.75 receivables + 0.5 inventory")
	fmt.Fprintln(w, "  -config string      Path to YAML configuration file")
	fmt.Fprintln(w, "  -test               Use the IEX sandbox with a small worker pool")
	fmt.Fprintln(w, "  -tickers string     Ticker CSV file, HTML file or URL (default: IEX symbols)")
	fmt.Fprintln(w, "  -shuffle            Process tickers in random order")
	fmt.Fprintln(w, "  -workers int        Maximum number of parallel workers (default 8)")
	fmt.Fprintln(w, "  -format string      Export format: xlsx or json (default \"xlsx\")")
	fmt.Fprintln(w, "  -sandbox            Use the IEX Cloud sandbox")
	fmt.Fprintln(w, "  -underpriced        Show and export only undervalued stocks")
	fmt.Fprintln(w, "  -limit int          Maximum number of results to show (0 = no limit)")
	fmt.Fprintln(w, "  -colors             Enable colored output (default true)")
	fmt.Fprintln(w, "  -progress           Show progress indicators (default true)")
	fmt.Fprintln(w, "  -debug              Enable debug logging")
	fmt.Fprintln(w, "  -help               Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  net-net-screener -iex-token pk_xxx")
	fmt.Fprintln(w, "  net-net-screener -OBI-strict=True -output deep_value")
	fmt.Fprintln(w, "  net-net-screener -tickers tickers.csv -underpriced -limit 20")
	fmt.Fprintln(w, "  net-net-screener -format json -shuffle")
}
