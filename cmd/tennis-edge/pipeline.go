package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/phenomenon0/tennis-edge/pkg/config"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/archive"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/metrics"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/reconcile"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/report"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/results"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/strategy"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/tables"
)

// pipeline wires the stages of a daily run. Every stage reads its inputs
// from files, so each command can run on its own.
type pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Pipeline
	loader    *tables.Loader
	engine    *reconcile.Engine
	evaluator *strategy.Evaluator
	matcher   *results.Matcher
	archive   *archive.Store // nil when disabled
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	norm := identity.NewNormalizer(cfg.Rules())
	m := metrics.NewPipeline()

	sc := cfg.StrategyConfig()
	sc.Logger = logger.With("component", "strategy")
	sc.Metrics = m
	evaluator, err := strategy.NewEvaluator(sc)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		loader: tables.NewLoader(tables.LoaderConfig{
			Normalizer: norm,
			Logger:     logger.With("component", "loader"),
			Metrics:    m,
		}),
		engine: reconcile.NewEngine(reconcile.Config{
			Normalizer: norm,
			Logger:     logger.With("component", "reconcile"),
			Metrics:    m,
			Source:     cfg.Sources.Bookmaker,
		}),
		evaluator: evaluator,
		matcher: results.NewMatcher(results.MatcherConfig{
			Normalizer:         norm,
			Logger:             logger.With("component", "settle"),
			Metrics:            m,
			WarnPartialMatches: cfg.WarnPartialMatches(),
		}),
	}

	if cfg.ArchiveEnabled() {
		store, err := archive.Open(cfg.Archive.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate archive: %w", err)
		}
		p.archive = store
		logger.Debug("archive enabled", "path", store.Path())
	}
	return p, nil
}

// Close releases the archive. It is safe to call more than once.
func (p *pipeline) Close() error {
	err := p.archive.Close()
	p.archive = nil
	return err
}

// finish stamps the run and exports metrics when a textfile is configured.
func (p *pipeline) finish() {
	p.metrics.MarkRun(time.Now())
	if p.cfg.Metrics.Textfile == "" {
		return
	}
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.Textfile); err != nil {
		p.logger.Warn("failed to write metrics textfile", "path", p.cfg.Metrics.Textfile, "error", err)
	}
}

func (p *pipeline) comparisonPath(date time.Time) string {
	return tables.DatedPath(p.cfg.OutputDir, p.cfg.Outputs.Comparison, date)
}

// Reconcile loads the day's forecasts and bookmaker odds, joins them and
// writes the comparison table. The returned rows carry the stored
// precision, so later stages see the same values whether they get the rows
// from here, the file or the archive.
func (p *pipeline) Reconcile(ctx context.Context, date time.Time) ([]odds.ComparisonRow, error) {
	defer p.metrics.ObserveStage("reconcile", time.Now())

	forecasts, err := p.loader.LoadForecasts(tables.DatedPath(p.cfg.DataDir, p.cfg.Sources.Forecast, date))
	if err != nil {
		return nil, err
	}
	quotes, err := p.loader.LoadBookmaker(tables.DatedPath(p.cfg.DataDir, p.cfg.Sources.Bookmaker, date))
	if err != nil {
		return nil, err
	}

	rows := tables.RoundComparison(p.engine.Reconcile(forecasts, quotes))

	path := p.comparisonPath(date)
	if err := tables.WriteComparison(path, rows); err != nil {
		return nil, err
	}
	p.logger.Info("comparison written", "path", path, "rows", len(rows))

	if p.archive != nil {
		if err := p.archive.SaveComparison(ctx, date, rows); err != nil {
			return nil, fmt.Errorf("archive comparison: %w", err)
		}
	}
	return rows, nil
}

// loadComparison reads the day's comparison table, falling back to the
// archive when the file is gone.
func (p *pipeline) loadComparison(ctx context.Context, date time.Time) ([]odds.ComparisonRow, error) {
	rows, err := tables.ReadComparison(p.comparisonPath(date))
	if err == nil {
		return rows, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || p.archive == nil {
		return nil, err
	}
	rows, aerr := p.archive.LoadComparison(ctx, date)
	if aerr != nil {
		return nil, aerr
	}
	if len(rows) == 0 {
		return nil, err
	}
	p.logger.Info("comparison loaded from archive", "date", date.Format(odds.DateLayout), "rows", len(rows))
	return rows, nil
}

// Simulate evaluates the strategies and appends new bets to the bet log.
// rows may be nil, in which case the day's comparison table is read.
func (p *pipeline) Simulate(ctx context.Context, date time.Time, rows []odds.ComparisonRow) ([]odds.LoggedBet, error) {
	defer p.metrics.ObserveStage("simulate", time.Now())

	if rows == nil {
		var err error
		if rows, err = p.loadComparison(ctx, date); err != nil {
			return nil, err
		}
	}

	bets := p.evaluator.Evaluate(date, rows)
	added, err := tables.AppendBets(p.cfg.BetLogPath(), bets)
	if err != nil {
		return nil, err
	}
	p.logger.Info("bets logged", "path", p.cfg.BetLogPath(), "emitted", len(bets), "new", added)
	return bets, nil
}

// Settle resolves pending bets against every results file on disk, rewrites
// the bet log and the daily summary.
func (p *pipeline) Settle(ctx context.Context) ([]results.DailySummary, error) {
	defer p.metrics.ObserveStage("settle", time.Now())

	bets, err := tables.ReadBetLog(p.cfg.BetLogPath())
	if err != nil {
		return nil, err
	}
	if len(bets) == 0 {
		p.logger.Info("bet log is empty, nothing to settle")
		return nil, nil
	}

	files, err := tables.ListDated(p.cfg.DataDir, p.cfg.Sources.Results)
	if err != nil {
		return nil, err
	}
	var completed []odds.CompletedResult
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := p.loader.LoadResults(f, p.cfg.Sources.Results)
		if err != nil {
			return nil, err
		}
		completed = append(completed, rows...)
	}

	pending := len(results.Pending(bets))
	settled := p.matcher.Settle(bets, completed)
	if err := tables.RewriteBetLog(p.cfg.BetLogPath(), settled); err != nil {
		return nil, err
	}
	for _, c := range results.StatusCounts(settled) {
		p.logger.Info("bet status", "status", c.Status, "count", c.Count)
	}
	p.logger.Info("settlement done", "pending_before", pending, "pending_after", len(results.Pending(settled)), "results", len(completed))

	summaries := results.Summarize(settled)
	if err := tables.WriteSummary(p.cfg.SummaryPath(), summaries); err != nil {
		return nil, err
	}
	for name, pl := range results.Totals(summaries) {
		p.metrics.SetCumulativePL(name, pl)
	}
	return summaries, nil
}

// Report renders the HTML page for the day.
func (p *pipeline) Report(ctx context.Context, date time.Time) error {
	defer p.metrics.ObserveStage("report", time.Now())

	rows, err := p.loadComparison(ctx, date)
	if err != nil {
		return err
	}
	bets, err := tables.ReadBetLog(p.cfg.BetLogPath())
	if err != nil {
		return err
	}

	page := report.Page{
		Date:      date,
		Rows:      rows,
		Bets:      tables.BetsOn(bets, date),
		Summaries: results.Summarize(bets),
	}
	if p.archive != nil {
		if page.Archived, err = p.archive.Dates(ctx); err != nil {
			return fmt.Errorf("listing archive: %w", err)
		}
	}
	if err := report.WriteFile(p.cfg.ReportPath(), page); err != nil {
		return err
	}
	p.logger.Info("report written", "path", p.cfg.ReportPath())
	return nil
}

// ParseResults converts a file of raw result lines into the day's results
// file. Lines that do not parse are skipped with a warning.
func (p *pipeline) ParseResults(in, tournament string, date time.Time) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	var rows []odds.CompletedResult
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parsed, err := results.ParseLine(line)
		if err != nil {
			p.logger.Warn("skipping result line", "line", lineNo, "error", err)
			continue
		}
		rows = append(rows, odds.CompletedResult{
			ResultDate: date,
			Tournament: tournament,
			Round:      parsed.Round,
			Winner:     parsed.Winner,
			Loser:      parsed.Loser,
			Score:      parsed.Score,
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", in, err)
	}

	out := tables.DatedPath(p.cfg.DataDir, p.cfg.Sources.Results, date)
	if err := tables.WriteResults(out, rows); err != nil {
		return err
	}
	p.logger.Info("results written", "path", out, "rows", len(rows), "lines", lineNo)
	return nil
}

// Run executes every stage for the day in order and stops at the first
// error.
func (p *pipeline) Run(ctx context.Context, date time.Time) error {
	rows, err := p.Reconcile(ctx, date)
	if err != nil {
		return err
	}
	printComparison(rows)

	bets, err := p.Simulate(ctx, date, rows)
	if err != nil {
		return err
	}
	printBets(bets)

	summaries, err := p.Settle(ctx)
	if err != nil {
		return err
	}
	printSummary(summaries)

	return p.Report(ctx, date)
}
