package results

import (
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/metrics"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

// MatcherConfig configures a Matcher.
type MatcherConfig struct {
	Normalizer *identity.Normalizer
	Logger     *slog.Logger
	Metrics    *metrics.Pipeline

	// WarnPartialMatches logs a warning when a bet has no result but a
	// result for the same date and tournament names exactly one of its
	// players. The bet stays ResultMissing either way.
	WarnPartialMatches bool
}

// DefaultMatcherConfig returns the default configuration.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Normalizer:         identity.Default(),
		WarnPartialMatches: true,
	}
}

// Matcher settles logged bets against completed results.
type Matcher struct {
	norm         *identity.Normalizer
	logger       *slog.Logger
	metrics      *metrics.Pipeline
	warnPartials bool
}

// NewMatcher creates a matcher.
func NewMatcher(cfg MatcherConfig) *Matcher {
	if cfg.Normalizer == nil {
		cfg.Normalizer = identity.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Matcher{
		norm:         cfg.Normalizer,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		warnPartials: cfg.WarnPartialMatches,
	}
}

// MatchKey identifies a match by day, tournament and the unordered pair of
// player keys.
type MatchKey string

// NewMatchKey builds a match key. The player keys are sorted so the key does
// not depend on which player is listed first.
func NewMatchKey(date string, tournament, a, b identity.Key) MatchKey {
	if b < a {
		a, b = b, a
	}
	return MatchKey(strings.Join([]string{date, string(tournament), string(a), string(b)}, "|"))
}

type outcome struct {
	winner identity.Key
	loser  identity.Key
	score  string
}

type dayTournament struct {
	date       string
	tournament identity.Key
}

// Settle returns a copy of bets with every pending bet (Unknown or
// ResultMissing) resolved against results. Bets already settled or flagged
// for review are returned unchanged. Calling Settle again with the same
// results yields the same output.
func (m *Matcher) Settle(bets []odds.LoggedBet, results []odds.CompletedResult) []odds.LoggedBet {
	index := make(map[MatchKey]outcome, len(results))
	byEvent := make(map[dayTournament][]outcome)

	for _, r := range results {
		date := r.ResultDate.Format(odds.DateLayout)
		tour := m.norm.TournamentKey(r.Tournament)
		o := outcome{
			winner: m.norm.Player(r.Winner).Key,
			loser:  m.norm.Player(r.Loser).Key,
			score:  r.Score,
		}
		key := NewMatchKey(date, tour, o.winner, o.loser)
		if _, exists := index[key]; exists {
			continue
		}
		index[key] = o
		ev := dayTournament{date, tour}
		byEvent[ev] = append(byEvent[ev], o)
	}

	out := make([]odds.LoggedBet, len(bets))
	for i, b := range bets {
		out[i] = b
		if !b.Pending() {
			continue
		}
		out[i] = m.settleOne(b, index, byEvent)
		m.metrics.RecordSettlement(b.Strategy, string(out[i].Result))
	}
	return out
}

func (m *Matcher) settleOne(b odds.LoggedBet, index map[MatchKey]outcome, byEvent map[dayTournament][]outcome) odds.LoggedBet {
	date := b.Date.Format(odds.DateLayout)
	tour := m.norm.TournamentKey(b.Tournament)
	p1 := m.norm.Player(b.Player1).Key
	p2 := m.norm.Player(b.Player2).Key

	b.ProfitLoss = decimal.NullDecimal{}
	b.Score = ""

	o, ok := index[NewMatchKey(date, tour, p1, p2)]
	if !ok {
		if m.warnPartials && partialMatch(byEvent[dayTournament{date, tour}], p1, p2) {
			m.logger.Warn("result names only one player of bet",
				"bet_id", b.ID,
				"date", date,
				"tournament", b.Tournament,
				"tournament_key", tour,
				"player1_key", p1,
				"player2_key", p2)
		}
		b.Result = odds.ResultMissing
		return b
	}

	switch o.winner {
	case p1:
		b.Result = odds.ResultP1Win
	case p2:
		b.Result = odds.ResultP2Win
	default:
		m.logger.Warn("result winner matches neither player of bet",
			"bet_id", b.ID,
			"date", date,
			"tournament_key", tour,
			"winner_key", o.winner,
			"player1_key", p1,
			"player2_key", p2)
		b.Result = odds.ResultNameMismatch
		return b
	}

	winner, _ := b.Result.Winner()
	b.Score = o.score
	b.ProfitLoss = decimal.NewNullDecimal(ProfitLoss(b.Stake, b.DecimalOdds, winner == b.BetOn))
	return b
}

// partialMatch reports whether exactly one of the bet's players appears in
// a result of the same day and tournament.
func partialMatch(outcomes []outcome, p1, p2 identity.Key) bool {
	for _, o := range outcomes {
		has1 := o.winner == p1 || o.loser == p1
		has2 := o.winner == p2 || o.loser == p2
		if has1 != has2 {
			return true
		}
	}
	return false
}

// ProfitLoss is stake*(odds-1) for a winning bet and -stake for a losing one.
func ProfitLoss(stake, decimalOdds decimal.Decimal, won bool) decimal.Decimal {
	if won {
		return stake.Mul(decimalOdds.Sub(decimal.NewFromInt(1)))
	}
	return stake.Neg()
}

// Pending returns the bets still awaiting a result, in log order.
func Pending(bets []odds.LoggedBet) []odds.LoggedBet {
	var out []odds.LoggedBet
	for _, b := range bets {
		if b.Pending() {
			out = append(out, b)
		}
	}
	return out
}

// StatusCounts tallies bets by settlement status, sorted by status name.
func StatusCounts(bets []odds.LoggedBet) []StatusCount {
	counts := make(map[odds.MatchResult]int)
	for _, b := range bets {
		counts[b.Result]++
	}
	out := make([]StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, StatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}

// StatusCount is the number of bets with a given status.
type StatusCount struct {
	Status odds.MatchResult
	Count  int
}
