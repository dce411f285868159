// Package reconcile joins forecast rows with bookmaker quotes and computes
// the derived spread and implied-probability columns.
package reconcile

import (
	"io"
	"log/slog"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/metrics"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

// Config configures an Engine. It is copied at construction.
type Config struct {
	Normalizer *identity.Normalizer // Default: identity.Default()
	Logger     *slog.Logger         // Default: discard
	Metrics    *metrics.Pipeline    // Optional
	Source     string               // bookmaker source name, used in logs
}

// Engine reconciles forecast and bookmaker tables. It holds no state between
// calls.
type Engine struct {
	norm    *identity.Normalizer
	logger  *slog.Logger
	metrics *metrics.Pipeline
	source  string
}

// NewEngine creates an engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Normalizer == nil {
		cfg.Normalizer = identity.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Source == "" {
		cfg.Source = "bookmaker"
	}
	return &Engine{
		norm:    cfg.Normalizer,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		source:  cfg.Source,
	}
}

// joinKey identifies a match regardless of source spelling.
type joinKey struct {
	tournament identity.Key
	player1    identity.Key
	player2    identity.Key
}

func forecastKey(r odds.ForecastRow) joinKey {
	return joinKey{r.Tournament.Key, r.Player1.Key, r.Player2.Key}
}

func bookmakerKey(r odds.BookmakerRow) joinKey {
	return joinKey{r.Tournament.Key, r.Player1.Key, r.Player2.Key}
}

// quote is a bookmaker price already aligned to the forecast row's P1/P2.
type quote struct {
	p1Odds float64
	p2Odds float64
	phase  odds.JoinPhase
}

// Reconcile returns one comparison row per forecast row, in input order.
// A nil or empty bookmaker table yields rows with every bookmaker column nil.
func (e *Engine) Reconcile(forecasts []odds.ForecastRow, bookmaker []odds.BookmakerRow) []odds.ComparisonRow {
	forecasts = e.withForecastKeys(forecasts)
	quotes := make(map[int]quote, len(forecasts))

	if len(bookmaker) > 0 {
		prepared := e.PrepareBookmaker(bookmaker)

		direct, pending := e.directPhase(forecasts, prepared)
		swapped, _ := e.swappedPhase(forecasts, pending, prepared)
		for i, q := range direct {
			quotes[i] = q
		}
		for i, q := range swapped {
			quotes[i] = q
		}
	}

	out := make([]odds.ComparisonRow, len(forecasts))
	for i, f := range forecasts {
		q, ok := quotes[i]
		if !ok {
			q = quote{phase: odds.JoinNone}
		}
		out[i] = buildRow(f, q, ok)
		e.metrics.RecordJoin(string(q.phase))
	}

	e.logger.Info("reconciled forecasts",
		"forecast_rows", len(forecasts),
		"bookmaker_rows", len(bookmaker),
		"matched", len(quotes),
		"source", e.source)
	return out
}

// PrepareBookmaker returns a cleaned copy of the bookmaker table: missing keys
// are derived from display names and rows with unusable odds are dropped.
func (e *Engine) PrepareBookmaker(rows []odds.BookmakerRow) []odds.BookmakerRow {
	out := make([]odds.BookmakerRow, 0, len(rows))
	for _, r := range rows {
		r = e.withBookmakerKeys(r)
		if err := odds.ValidateBookmaker(r); err != nil {
			e.logger.Warn("dropping bookmaker row",
				"error", err,
				"tournament", r.Tournament.Display,
				"tournament_key", r.Tournament.Key,
				"player1", r.Player1.Display,
				"player1_key", r.Player1.Key,
				"player2", r.Player2.Display,
				"player2_key", r.Player2.Key,
				"p1_odds", r.Player1Odds,
				"p2_odds", r.Player2Odds,
				"source", e.source)
			e.metrics.RecordDropped(e.source, dropReason(err))
			continue
		}
		out = append(out, r)
	}
	return out
}

// directPhase joins every forecast row against the bookmaker table in its
// own P1/P2 order. It returns the hits and the indexes still unmatched.
func (e *Engine) directPhase(forecasts []odds.ForecastRow, bookmaker []odds.BookmakerRow) (map[int]quote, []int) {
	all := make([]int, len(forecasts))
	for i := range forecasts {
		all[i] = i
	}
	index := e.indexQuotes(bookmaker, odds.JoinDirect)
	return joinPhase(forecasts, all, index, odds.JoinDirect)
}

// swappedPhase joins only the pending forecast rows against a swapped copy
// of the bookmaker table.
func (e *Engine) swappedPhase(forecasts []odds.ForecastRow, pending []int, bookmaker []odds.BookmakerRow) (map[int]quote, []int) {
	if len(pending) == 0 {
		return map[int]quote{}, nil
	}
	index := e.indexQuotes(Swap(bookmaker), odds.JoinSwapped)
	return joinPhase(forecasts, pending, index, odds.JoinSwapped)
}

func joinPhase(forecasts []odds.ForecastRow, pending []int, index map[joinKey]odds.BookmakerRow, phase odds.JoinPhase) (map[int]quote, []int) {
	hits := make(map[int]quote)
	var miss []int
	for _, i := range pending {
		b, ok := index[forecastKey(forecasts[i])]
		if !ok {
			miss = append(miss, i)
			continue
		}
		hits[i] = quote{p1Odds: b.Player1Odds, p2Odds: b.Player2Odds, phase: phase}
	}
	return hits, miss
}

// indexQuotes keys bookmaker rows by join key. The first row for a key wins.
func (e *Engine) indexQuotes(rows []odds.BookmakerRow, phase odds.JoinPhase) map[joinKey]odds.BookmakerRow {
	index := make(map[joinKey]odds.BookmakerRow, len(rows))
	for _, r := range rows {
		k := bookmakerKey(r)
		if _, exists := index[k]; exists {
			e.logger.Debug("duplicate bookmaker quote ignored",
				"tournament_key", k.tournament,
				"player1_key", k.player1,
				"player2_key", k.player2,
				"phase", phase,
				"source", e.source)
			e.metrics.RecordDuplicate(string(phase))
			continue
		}
		index[k] = r
	}
	return index
}

// Swap returns a copy of rows with players and odds exchanged.
func Swap(rows []odds.BookmakerRow) []odds.BookmakerRow {
	out := make([]odds.BookmakerRow, len(rows))
	for i, r := range rows {
		out[i] = odds.BookmakerRow{
			Tournament:  r.Tournament,
			Player1:     r.Player2,
			Player2:     r.Player1,
			Player1Odds: r.Player2Odds,
			Player2Odds: r.Player1Odds,
		}
	}
	return out
}

func (e *Engine) withForecastKeys(rows []odds.ForecastRow) []odds.ForecastRow {
	out := make([]odds.ForecastRow, len(rows))
	for i, r := range rows {
		if r.Tournament.Key == "" && r.Tournament.Display != "" {
			r.Tournament.Key = e.norm.TournamentKey(r.Tournament.Display)
		}
		if r.Player1.Key == "" && r.Player1.Display != "" {
			r.Player1 = e.norm.Player(r.Player1.Display)
		}
		if r.Player2.Key == "" && r.Player2.Display != "" {
			r.Player2 = e.norm.Player(r.Player2.Display)
		}
		out[i] = r
	}
	return out
}

func (e *Engine) withBookmakerKeys(r odds.BookmakerRow) odds.BookmakerRow {
	if r.Tournament.Key == "" && r.Tournament.Display != "" {
		r.Tournament.Key = e.norm.TournamentKey(r.Tournament.Display)
	}
	if r.Player1.Key == "" && r.Player1.Display != "" {
		r.Player1 = e.norm.Player(r.Player1.Display)
	}
	if r.Player2.Key == "" && r.Player2.Display != "" {
		r.Player2 = e.norm.Player(r.Player2.Display)
	}
	return r
}

func dropReason(err error) string {
	switch err {
	case odds.ErrMissingField:
		return "missing_field"
	case odds.ErrInvalidOdds:
		return "invalid_odds"
	case odds.ErrProbabilityOutOfRange:
		return "probability"
	case odds.ErrQualifier:
		return "qualifier"
	}
	return "other"
}
