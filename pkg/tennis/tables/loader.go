package tables

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/metrics"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/results"
)

// ErrNoForecasts means the day has no usable forecast data. Nothing
// downstream can run without it.
var ErrNoForecasts = errors.New("no valid forecast rows")

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	Normalizer *identity.Normalizer
	Logger     *slog.Logger
	Metrics    *metrics.Pipeline
}

// Loader reads source files into typed rows, dropping rows that fail
// coercion or validation.
type Loader struct {
	norm    *identity.Normalizer
	logger  *slog.Logger
	metrics *metrics.Pipeline
}

// NewLoader creates a loader.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.Normalizer == nil {
		cfg.Normalizer = identity.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{norm: cfg.Normalizer, logger: cfg.Logger, metrics: cfg.Metrics}
}

func (l *Loader) drop(source, path string, line int, err error, attrs ...any) {
	args := append([]any{"error", err, "file", filepath.Base(path), "line", line}, attrs...)
	l.logger.Warn("dropping "+source+" row", args...)
	l.metrics.RecordDropped(source, reason(err))
}

func reason(err error) string {
	switch {
	case errors.Is(err, odds.ErrMissingField):
		return "missing_field"
	case errors.Is(err, odds.ErrProbabilityOutOfRange):
		return "probability"
	case errors.Is(err, odds.ErrInvalidOdds):
		return "invalid_odds"
	case errors.Is(err, odds.ErrQualifier):
		return "qualifier"
	case errors.Is(err, results.ErrUnparseable):
		return "unparseable"
	}
	return "coercion"
}

// LoadForecasts reads a forecast file. Missing forecast odds are derived
// from the probabilities. A missing file or a file without valid rows
// yields ErrNoForecasts.
func (l *Loader) LoadForecasts(path string) ([]odds.ForecastRow, error) {
	records, err := readAll(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrNoForecasts, path)
	}
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s has no data rows", ErrNoForecasts, path)
	}

	h := newHeader(records[0])
	var rows []odds.ForecastRow
	for i, rec := range records[1:] {
		line := i + 2
		row, err := l.forecastRow(h, rec)
		if err != nil {
			l.drop("forecast", path, line, err,
				"tournament", h.get(rec, "TournamentName", "Tournament"),
				"tournament_key", row.Tournament.Key,
				"player1", h.get(rec, "Player1Name", "Player1"),
				"player1_key", row.Player1.Key,
				"player2", h.get(rec, "Player2Name", "Player2"),
				"player2_key", row.Player2.Key)
			continue
		}
		rows = append(rows, row)
	}

	l.metrics.RecordLoaded("forecast", len(rows))
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: every row of %s was dropped", ErrNoForecasts, path)
	}
	l.logger.Info("loaded forecasts", "file", filepath.Base(path), "rows", len(rows), "dropped", len(records)-1-len(rows))
	return rows, nil
}

func (l *Loader) forecastRow(h header, rec []string) (odds.ForecastRow, error) {
	row := odds.ForecastRow{
		Tournament: l.norm.Tournament(h.get(rec, "TournamentName", "Tournament")),
		Round:      odds.ParseRound(h.get(rec, "Round")),
		Player1:    l.norm.Player(h.get(rec, "Player1Name", "Player1")),
		Player2:    l.norm.Player(h.get(rec, "Player2Name", "Player2")),
		SourceURL:  h.get(rec, "TournamentURL", "URL"),
	}
	if l.norm.IsQualifier(row.Player1.Display) || l.norm.IsQualifier(row.Player2.Display) {
		return row, odds.ErrQualifier
	}

	var err error
	if row.Player1WinProb, err = parsePercent(h.get(rec, "Player1_Match_Prob", "Player1_Prob")); err != nil {
		return row, fmt.Errorf("%w: player 1 probability: %v", odds.ErrProbabilityOutOfRange, err)
	}
	if row.Player2WinProb, err = parsePercent(h.get(rec, "Player2_Match_Prob", "Player2_Prob")); err != nil {
		return row, fmt.Errorf("%w: player 2 probability: %v", odds.ErrProbabilityOutOfRange, err)
	}

	row.Player1Odds = oddsOrDerived(h.get(rec, "Player1_Match_Odds", "Player1_Odds"), row.Player1WinProb)
	row.Player2Odds = oddsOrDerived(h.get(rec, "Player2_Match_Odds", "Player2_Odds"), row.Player2WinProb)

	return row, odds.ValidateForecast(row)
}

func oddsOrDerived(raw string, prob float64) float64 {
	if v, err := parseDecimalOdds(raw); err == nil {
		return v
	}
	return odds.OddsFromProb(prob)
}

// LoadBookmaker reads a bookmaker odds file. A missing file is not an error:
// it returns no rows, and the comparison carries null bookmaker columns.
func (l *Loader) LoadBookmaker(path string) ([]odds.BookmakerRow, error) {
	records, err := readAll(path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Info("no bookmaker file, continuing without quotes", "file", filepath.Base(path))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	source := sourceName(path)
	h := newHeader(records[0])
	var rows []odds.BookmakerRow
	for i, rec := range records[1:] {
		row := odds.BookmakerRow{
			Tournament: l.norm.Tournament(h.get(rec, "tournament", "TournamentName")),
			Player1:    l.norm.Player(h.get(rec, "p1_name", "Player1Name", "Player1")),
			Player2:    l.norm.Player(h.get(rec, "p2_name", "Player2Name", "Player2")),
		}
		p1, err1 := parseDecimalOdds(h.get(rec, "p1_odds", "Player1Odds"))
		p2, err2 := parseDecimalOdds(h.get(rec, "p2_odds", "Player2Odds"))
		err := errors.Join(err1, err2)
		if err == nil {
			row.Player1Odds, row.Player2Odds = p1, p2
			err = odds.ValidateBookmaker(row)
		} else {
			err = fmt.Errorf("%w: %v", odds.ErrInvalidOdds, err)
		}
		if err != nil {
			l.drop(source, path, i+2, err,
				"tournament", row.Tournament.Display,
				"tournament_key", row.Tournament.Key,
				"player1", row.Player1.Display,
				"player1_key", row.Player1.Key,
				"player2", row.Player2.Display,
				"player2_key", row.Player2.Key,
				"p1_odds", h.get(rec, "p1_odds", "Player1Odds"),
				"p2_odds", h.get(rec, "p2_odds", "Player2Odds"))
			continue
		}
		rows = append(rows, row)
	}

	l.metrics.RecordLoaded(source, len(rows))
	l.logger.Info("loaded bookmaker odds", "file", filepath.Base(path), "rows", len(rows), "dropped", len(records)-1-len(rows))
	return rows, nil
}

// LoadResults reads a completed-results file. Rows carry either structured
// winner/loser columns or a raw ResultLine. Rows without a ResultDate take
// the date in the file name. A missing file returns no rows.
func (l *Loader) LoadResults(path, source string) ([]odds.CompletedResult, error) {
	records, err := readAll(path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Info("no results file", "file", filepath.Base(path))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	fileDate, _ := DateFromName(path, source)
	h := newHeader(records[0])
	var rows []odds.CompletedResult
	for i, rec := range records[1:] {
		r, err := l.resultRow(h, rec, fileDate)
		if err != nil {
			l.drop("results", path, i+2, err,
				"tournament", h.get(rec, "TournamentName", "Tournament"),
				"winner", h.get(rec, "WinnerName", "Winner"),
				"loser", h.get(rec, "LoserName", "Loser"),
				"line", h.get(rec, "ResultLine"))
			continue
		}
		rows = append(rows, r)
	}

	l.metrics.RecordLoaded("results", len(rows))
	return rows, nil
}

func (l *Loader) resultRow(h header, rec []string, fileDate time.Time) (odds.CompletedResult, error) {
	r := odds.CompletedResult{
		ResultDate: fileDate,
		Tournament: h.get(rec, "TournamentName", "Tournament", "TournamentKey"),
		Round:      odds.ParseRound(h.get(rec, "Round")),
		Winner:     h.get(rec, "WinnerName", "Winner"),
		Loser:      h.get(rec, "LoserName", "Loser"),
		Score:      h.get(rec, "Score"),
	}
	if raw := h.get(rec, "ResultDate", "Date"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			return r, fmt.Errorf("%w: result date %q", odds.ErrMissingField, raw)
		}
		r.ResultDate = d
	}
	if r.Winner == "" && h.has("ResultLine") {
		parsed, err := results.ParseLine(h.get(rec, "ResultLine"))
		if err != nil {
			return r, err
		}
		r.Round, r.Winner, r.Loser, r.Score = parsed.Round, parsed.Winner, parsed.Loser, parsed.Score
	}
	if r.ResultDate.IsZero() || r.Tournament == "" || r.Winner == "" || r.Loser == "" {
		return r, odds.ErrMissingField
	}
	return r, nil
}

// sourceName returns the source part of a dated file name.
func sourceName(path string) string {
	base := filepath.Base(path)
	base = base[:len(base)-len(filepath.Ext(base))]
	if i := len(base) - len(odds.FileDateLayout) - 1; i > 0 && base[i] == '_' {
		return base[:i]
	}
	return base
}
