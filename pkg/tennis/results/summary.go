package results

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

// DailySummary is the settled profit/loss of one strategy on one day.
type DailySummary struct {
	Date         time.Time
	Strategy     string
	Bets         int
	Wins         int
	Staked       decimal.Decimal
	ProfitLoss   decimal.Decimal
	CumulativePL decimal.Decimal
}

// ROI returns profit/loss over stake for the day, or zero without stake.
func (s DailySummary) ROI() decimal.Decimal {
	if s.Staked.IsZero() {
		return decimal.Zero
	}
	return s.ProfitLoss.Div(s.Staked)
}

type summaryKey struct {
	date     string
	strategy string
}

// Summarize groups settled bets by date and strategy, ordered by date then
// strategy, with a running total per strategy. Unsettled bets are ignored.
func Summarize(bets []odds.LoggedBet) []DailySummary {
	groups := make(map[summaryKey]*DailySummary)
	for _, b := range bets {
		if !b.Result.Settled() || !b.ProfitLoss.Valid {
			continue
		}
		k := summaryKey{b.Date.Format(odds.DateLayout), b.Strategy}
		s, ok := groups[k]
		if !ok {
			s = &DailySummary{Date: b.Date, Strategy: b.Strategy}
			groups[k] = s
		}
		s.Bets++
		if b.ProfitLoss.Decimal.IsPositive() {
			s.Wins++
		}
		s.Staked = s.Staked.Add(b.Stake)
		s.ProfitLoss = s.ProfitLoss.Add(b.ProfitLoss.Decimal)
	}

	out := make([]DailySummary, 0, len(groups))
	for _, s := range groups {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Date.Format(odds.DateLayout), out[j].Date.Format(odds.DateLayout)
		if di != dj {
			return di < dj
		}
		return out[i].Strategy < out[j].Strategy
	})

	running := make(map[string]decimal.Decimal)
	for i := range out {
		total := running[out[i].Strategy].Add(out[i].ProfitLoss)
		running[out[i].Strategy] = total
		out[i].CumulativePL = total
	}
	return out
}

// Totals returns the cumulative profit/loss of each strategy.
func Totals(summaries []DailySummary) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, s := range summaries {
		totals[s.Strategy] = s.CumulativePL
	}
	return totals
}
