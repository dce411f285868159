// tennis-edge compares model win probabilities for tennis matches with
// bookmaker odds, logs the bets of a few simple strategies and settles them
// against completed results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/phenomenon0/tennis-edge/pkg/config"
	"github.com/phenomenon0/tennis-edge/pkg/logging"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/tables"
)

var (
	// General flags
	configFile = flag.String("config", "", "Path to YAML config file")
	dateFlag   = flag.String("date", "", "Day to process, YYYYMMDD (default: latest forecast file, else today)")
	dataDir    = flag.String("data-dir", "", "Directory holding the dated input files (overrides config)")
	outputDir  = flag.String("output-dir", "", "Directory for comparison, bet log and report (overrides config)")
	verbose    = flag.Bool("verbose", false, "Debug logging")

	// parse-results flags
	inFile     = flag.String("in", "", "parse-results: file with one result line per row")
	tournament = flag.String("tournament", "", "parse-results: tournament the lines belong to")
)

const usage = `Usage: tennis-edge [flags] <command>

Commands:
  reconcile      join forecasts with bookmaker odds and write the comparison table
  simulate       evaluate the strategies on the comparison table and log new bets
  settle         settle pending bets against completed results and write the summary
  report         render the HTML report for the day
  parse-results  convert raw result lines (-in, -tournament) into a results file
  run            reconcile, simulate, settle and report

Flags:
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := strings.ToLower(flag.Arg(0))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
		if *outputDir == "" && cfg.OutputDir == "data" {
			cfg.OutputDir = *dataDir
		}
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.Setup(cfg.Logging, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	date, err := resolveDate(cfg)
	if err != nil {
		log.Fatalf("Invalid date: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("Failed to initialize: %v", err)
	}
	logger.Info("starting", "command", command, "date", date.Format(odds.DateLayout), "data_dir", cfg.DataDir)

	err = dispatch(ctx, p, command, date)
	code := shutdown(p, logger, command, err)
	stop()
	os.Exit(code)
}

// shutdown finishes the run, closes the pipeline and returns the exit code.
func shutdown(p *pipeline, logger *slog.Logger, command string, err error) int {
	p.finish()
	if cerr := p.Close(); cerr != nil {
		logger.Warn("failed to close archive", "error", cerr)
	}
	switch {
	case errors.Is(err, tables.ErrNoForecasts):
		logger.Error("no forecast data, nothing to do for this day", "error", err)
		return 1
	case err != nil:
		logger.Error("command failed", "command", command, "error", err)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, p *pipeline, command string, date time.Time) error {
	switch command {
	case "reconcile":
		rows, err := p.Reconcile(ctx, date)
		if err != nil {
			return err
		}
		printComparison(rows)
		return nil
	case "simulate":
		bets, err := p.Simulate(ctx, date, nil)
		if err != nil {
			return err
		}
		printBets(bets)
		return nil
	case "settle":
		summaries, err := p.Settle(ctx)
		if err != nil {
			return err
		}
		printSummary(summaries)
		return nil
	case "report":
		return p.Report(ctx, date)
	case "parse-results":
		if *inFile == "" || *tournament == "" {
			return fmt.Errorf("parse-results needs -in and -tournament")
		}
		return p.ParseResults(*inFile, *tournament, date)
	case "run":
		return p.Run(ctx, date)
	}
	flag.Usage()
	return fmt.Errorf("unknown command %q", command)
}

// resolveDate returns the -date flag, else the date of the latest forecast
// file, else today.
func resolveDate(cfg *config.Config) (time.Time, error) {
	if *dateFlag != "" {
		for _, layout := range []string{odds.FileDateLayout, odds.DateLayout} {
			if d, err := time.Parse(layout, *dateFlag); err == nil {
				return d, nil
			}
		}
		return time.Time{}, fmt.Errorf("expected YYYYMMDD, got %q", *dateFlag)
	}
	if _, d, err := tables.FindLatest(cfg.DataDir, cfg.Sources.Forecast); err == nil {
		return d, nil
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
}
