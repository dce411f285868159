package results

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

func settledBet(strategy string, daysAfter int, stake, pl string) odds.LoggedBet {
	b := odds.LoggedBet{
		Date:       day.AddDate(0, 0, daysAfter),
		Strategy:   strategy,
		Stake:      decimal.RequireFromString(stake),
		Result:     odds.ResultP1Win,
		ProfitLoss: decimal.NewNullDecimal(decimal.RequireFromString(pl)),
	}
	return b
}

func TestSummarize(t *testing.T) {
	bets := []odds.LoggedBet{
		settledBet("S2_MaxSpread", 1, "1", "-1"),
		settledBet("S1_ProbDiff", 0, "1", "0.65"),
		settledBet("S1_ProbDiff", 0, "1", "-1"),
		settledBet("S1_ProbDiff", 1, "1", "1.2"),
		{Date: day, Strategy: "S1_ProbDiff", Result: odds.ResultMissing},
		{Date: day, Strategy: "S3_Kelly", Result: odds.ResultUnknown},
	}

	got := Summarize(bets)
	want := []struct {
		date       string
		strategy   string
		bets, wins int
		pl, cum    string
	}{
		{"2025-05-14", "S1_ProbDiff", 2, 1, "-0.35", "-0.35"},
		{"2025-05-15", "S1_ProbDiff", 1, 1, "1.2", "0.85"},
		{"2025-05-15", "S2_MaxSpread", 1, 0, "-1", "-1"},
	}

	if len(got) != len(want) {
		t.Fatalf("len(Summarize()) = %d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.Date.Format(odds.DateLayout) != w.date || g.Strategy != w.strategy {
			t.Errorf("row %d = %s %s, want %s %s", i, g.Date.Format(odds.DateLayout), g.Strategy, w.date, w.strategy)
		}
		if g.Bets != w.bets || g.Wins != w.wins {
			t.Errorf("row %d bets/wins = %d/%d, want %d/%d", i, g.Bets, g.Wins, w.bets, w.wins)
		}
		if !g.ProfitLoss.Equal(decimal.RequireFromString(w.pl)) {
			t.Errorf("row %d ProfitLoss = %s, want %s", i, g.ProfitLoss, w.pl)
		}
		if !g.CumulativePL.Equal(decimal.RequireFromString(w.cum)) {
			t.Errorf("row %d CumulativePL = %s, want %s", i, g.CumulativePL, w.cum)
		}
	}

	totals := Totals(got)
	if !totals["S1_ProbDiff"].Equal(decimal.RequireFromString("0.85")) {
		t.Errorf("Totals[S1_ProbDiff] = %s, want 0.85", totals["S1_ProbDiff"])
	}
}

func TestDailySummaryROI(t *testing.T) {
	s := DailySummary{Staked: decimal.NewFromInt(2), ProfitLoss: decimal.RequireFromString("0.5")}
	if !s.ROI().Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("ROI() = %s, want 0.25", s.ROI())
	}
	if !(DailySummary{}).ROI().IsZero() {
		t.Errorf("ROI() without stake should be zero")
	}
}
