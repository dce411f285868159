package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

// ProbDivergence backs a side when the forecast probability exceeds the
// bookmaker's normalised probability by more than Threshold points.
type ProbDivergence struct {
	Threshold float64
	Stake     decimal.Decimal
}

func (r *ProbDivergence) Name() string { return "S1_ProbDiff" }

func (r *ProbDivergence) Evaluate(date time.Time, rows []odds.ComparisonRow) []odds.LoggedBet {
	var bets []odds.LoggedBet
	for _, row := range rows {
		for _, side := range sides {
			bookProb := row.BookProb(side)
			if bookProb == nil || row.BookOdds(side) == nil {
				continue
			}
			diff := row.ForecastProb(side) - *bookProb
			if diff > r.Threshold {
				bets = append(bets, newBet(date, r.Name(), "ProbDiff", row, side, diff, r.Stake))
			}
		}
	}
	return bets
}

// MaxSpread backs the single side with the largest positive spread in the
// whole table. Ties keep the first side found (row order, P1 before P2).
type MaxSpread struct {
	Stake decimal.Decimal
}

func (r *MaxSpread) Name() string { return "S2_MaxSpread" }

func (r *MaxSpread) Evaluate(date time.Time, rows []odds.ComparisonRow) []odds.LoggedBet {
	best := 0.0
	bestRow, bestSide := -1, odds.SideP1
	for i, row := range rows {
		for _, side := range sides {
			s := row.Spread(side)
			if s == nil || row.BookOdds(side) == nil {
				continue
			}
			if *s > best {
				best, bestRow, bestSide = *s, i, side
			}
		}
	}
	if bestRow < 0 {
		return nil
	}
	return []odds.LoggedBet{newBet(date, r.Name(), "MaxSpread", rows[bestRow], bestSide, best, r.Stake)}
}

// FractionalKelly backs every side with a positive expected value, staking
// Multiplier times the Kelly fraction of the bankroll.
type FractionalKelly struct {
	Multiplier float64
}

func (r *FractionalKelly) Name() string { return "S3_Kelly" }

func (r *FractionalKelly) Evaluate(date time.Time, rows []odds.ComparisonRow) []odds.LoggedBet {
	var bets []odds.LoggedBet
	for _, row := range rows {
		for _, side := range sides {
			o := row.BookOdds(side)
			if o == nil {
				continue
			}
			kelly, ok := KellyFraction(row.ForecastProb(side), *o)
			if !ok {
				continue
			}
			stake := decimal.NewFromFloat(r.Multiplier * kelly).Round(4)
			bets = append(bets, newBet(date, r.Name(), "Kelly", row, side, kelly, stake))
		}
	}
	return bets
}

// KellyFraction returns edge/(odds-1) for a win probability in percent and
// decimal odds, where edge = p*odds - 1. ok is false when the odds are not
// above 1, the probability is unknown, or the edge is not positive.
func KellyFraction(probPct, decimalOdds float64) (fraction float64, ok bool) {
	if !odds.ValidOdds(decimalOdds) || !odds.ValidProb(probPct) {
		return 0, false
	}
	edge := probPct/100*decimalOdds - 1
	if edge <= 0 {
		return 0, false
	}
	return edge / (decimalOdds - 1), true
}
