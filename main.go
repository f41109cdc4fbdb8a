package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"net-net-screener/config"
	"net-net-screener/export"
	"net-net-screener/models"
	"net-net-screener/services"
	"net-net-screener/utils"
	"net-net-screener/valuation"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, returning the exit code
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			showHelp(stdout)
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if opts.help {
		showHelp(stdout)
		return 0
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "Warning: could not load .env: %v\n", err)
	}

	cfg, err := opts.buildConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	logger, err := utils.NewLogger(cfg.Output.LogLevel, opts.debug)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer logger.Sync()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	if err := cfg.Validate(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) && cfgErr.Field == "iex-token" {
			fmt.Fprintln(stderr, "Error: an IEX Cloud token is required (-iex-token or IEX_TOKEN)")
		}
		logger.Error("configuration validation failed", zap.Error(err))
		return 2
	}

	app := NewApplication(cfg, logger)
	app.progressOut = stderr
	app.displayOut = stdout
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Processing.TimeoutMinutes)*time.Minute)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		logger.Error("application failed", zap.Error(err))
		return 1
	}
	return 0
}

// Application represents the main application
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	iex        *services.IEXClient
	fetcher    *services.DataFetcher
	loader     *services.TickerLoader
	calculator *valuation.Calculator
	pipeline   *valuation.Pipeline
	now        func() time.Time
	rng        *rand.Rand

	progressOut io.Writer
	displayOut  io.Writer
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config, logger *zap.Logger) *Application {
	iex := services.NewIEXClient(cfg.Provider, logger)

	fetcher := services.NewDataFetcher(iex, logger)
	fetcher.SetStrict(cfg.Screening.StrictOBI)
	if cfg.Alpaca.Enabled() {
		fetcher.SetPriceSource(services.NewAlpacaPriceSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret))
		logger.Info("using alpaca for latest prices")
	}

	calculator := valuation.NewCalculator()
	calculator.SetParameters(cfg.Screening)

	pipeline := valuation.NewPipeline(calculator, logger)
	pipeline.SetMaxWorkers(cfg.Processing.MaxWorkers)

	return &Application{
		config:      cfg,
		logger:      logger,
		iex:         iex,
		fetcher:     fetcher,
		loader:      services.NewTickerLoader(iex, logger),
		calculator:  calculator,
		pipeline:    pipeline,
		now:         time.Now,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		progressOut: io.Discard,
		displayOut:  io.Discard,
	}
}

// Close releases the provider client
func (app *Application) Close() {
	app.iex.Close()
}

// Run screens the ticker universe, exports the report and prints a summary.
// A timeout still exports whatever was screened before it.
func (app *Application) Run(ctx context.Context) error {
	tickers, err := app.loader.Load(ctx, app.config.DataSources.TickerFile)
	if err != nil {
		return fmt.Errorf("failed to load tickers: %w", err)
	}
	if len(tickers) == 0 {
		return fmt.Errorf("no tickers to screen")
	}
	if app.config.DataSources.Shuffle {
		services.ShuffleTickers(tickers, app.rng)
	}

	app.logger.Info("starting net net screen",
		zap.Int("tickers", len(tickers)),
		zap.Bool("strict_obi", app.config.Screening.StrictOBI),
		zap.String("format", app.config.Output.Format))

	if app.config.Output.ShowProgress {
		app.pipeline.SetProgress(func(done, total int, symbol string) {
			utils.ShowProgress(app.progressOut, done, total, symbol)
		})
	}

	report, screenErr := app.pipeline.Screen(ctx, app.fetcher, tickers)
	if screenErr != nil {
		app.logger.Warn("screening incomplete, exporting partial results", zap.Error(screenErr))
	}

	exported := report
	if app.config.Output.OnlyUndervalued {
		exported = &valuation.Report{
			Results: models.FilterUndervalued(report.Results),
			Skipped: report.Skipped,
		}
	}

	exporter, err := export.New(app.config.Output.Format, app.config.Output.Directory, app.config.Output.BaseName, app.now)
	if err != nil {
		return err
	}
	path, err := exporter.Export(exported)
	if err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}
	app.logger.Info("results exported", zap.String("path", path), zap.Int("rows", len(exported.Results)))

	utils.DisplayResults(app.displayOut, report.Results, report.Skipped, utils.DisplayOptions{
		ShowColors:      app.config.Output.ShowColors,
		OnlyUndervalued: app.config.Output.OnlyUndervalued,
		MaxResults:      app.config.Output.MaxResults,
		Now:             app.now(),
	})

	return screenErr
}
