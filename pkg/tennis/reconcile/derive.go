package reconcile

import (
	"math"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

func buildRow(f odds.ForecastRow, q quote, matched bool) odds.ComparisonRow {
	row := odds.ComparisonRow{
		Tournament:     f.Tournament,
		Round:          f.Round,
		Player1:        f.Player1,
		Player2:        f.Player2,
		Player1WinProb: f.Player1WinProb,
		Player2WinProb: f.Player2WinProb,
		Player1Odds:    f.Player1Odds,
		Player2Odds:    f.Player2Odds,
		SourceURL:      f.SourceURL,
		Phase:          q.phase,
	}
	if !matched {
		return row
	}

	row.BookP1Odds = odds.Float(q.p1Odds)
	row.BookP2Odds = odds.Float(q.p2Odds)

	row.P1Spread, row.P1RelSpread = Spread(q.p1Odds, f.Player1Odds)
	row.P2Spread, row.P2RelSpread = Spread(q.p2Odds, f.Player2Odds)
	row.BookP1Prob, row.BookP2Prob = ImpliedProbabilities(q.p1Odds, q.p2Odds)
	return row
}

// Spread returns bookmakerOdds - forecastOdds and that difference relative to
// the forecast odds. A positive spread means the bookmaker pays more than the
// forecast implies. The relative spread is nil unless forecastOdds > 0.
func Spread(bookmakerOdds, forecastOdds float64) (spread, relative *float64) {
	if math.IsNaN(bookmakerOdds) || math.IsNaN(forecastOdds) {
		return nil, nil
	}
	s := bookmakerOdds - forecastOdds
	spread = &s
	if forecastOdds > 0 {
		r := s / forecastOdds
		relative = &r
	}
	return spread, relative
}

// ImpliedProbabilities removes the bookmaker overround from a two-way price:
// each side's reciprocal odds divided by the sum of both, as a percentage.
// Both results are nil if either odds value is not positive.
func ImpliedProbabilities(o1, o2 float64) (p1, p2 *float64) {
	if !(o1 > 0) || !(o2 > 0) || math.IsInf(o1, 0) || math.IsInf(o2, 0) {
		return nil, nil
	}
	r1, r2 := 1/o1, 1/o2
	total := r1 + r2
	if total == 0 {
		return nil, nil
	}
	return odds.Float(r1 / total * 100), odds.Float(r2 / total * 100)
}

// Overround returns the bookmaker margin of a two-way price as a percentage
// (sum of reciprocal odds minus one, times 100).
func Overround(o1, o2 float64) float64 {
	if !(o1 > 0) || !(o2 > 0) {
		return math.NaN()
	}
	return (1/o1 + 1/o2 - 1) * 100
}
