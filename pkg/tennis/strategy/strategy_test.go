package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

var day = time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)

// row builds a matched comparison row. Spreads are bookmaker minus forecast
// odds; probabilities are passed in directly.
func row(p1, p2 string, prob1, fc1, fc2, book1, book2, bookProb1 float64) odds.ComparisonRow {
	n := identity.Default()
	s1, s2 := book1-fc1, book2-fc2
	return odds.ComparisonRow{
		Tournament:     n.Tournament("Hamburg"),
		Player1:        n.Player(p1),
		Player2:        n.Player(p2),
		Player1WinProb: prob1,
		Player2WinProb: 100 - prob1,
		Player1Odds:    fc1,
		Player2Odds:    fc2,
		BookP1Odds:     odds.Float(book1),
		BookP2Odds:     odds.Float(book2),
		BookP1Prob:     odds.Float(bookProb1),
		BookP2Prob:     odds.Float(100 - bookProb1),
		P1Spread:       &s1,
		P2Spread:       &s2,
		Phase:          odds.JoinDirect,
	}
}

func unmatched(p1, p2 string, prob1 float64) odds.ComparisonRow {
	n := identity.Default()
	return odds.ComparisonRow{
		Tournament:     n.Tournament("Hamburg"),
		Player1:        n.Player(p1),
		Player2:        n.Player(p2),
		Player1WinProb: prob1,
		Player2WinProb: 100 - prob1,
		Player1Odds:    odds.OddsFromProb(prob1),
		Player2Odds:    odds.OddsFromProb(100 - prob1),
		Phase:          odds.JoinNone,
	}
}

func TestProbDivergence(t *testing.T) {
	rule := &ProbDivergence{Threshold: 5, Stake: decimal.NewFromInt(1)}

	tests := []struct {
		name     string
		rows     []odds.ComparisonRow
		wantSide []odds.Side
	}{
		{
			name:     "player 1 undervalued",
			rows:     []odds.ComparisonRow{row("A A", "B B", 60, 1.67, 2.5, 1.90, 2.0, 52)},
			wantSide: []odds.Side{odds.SideP1},
		},
		{
			name:     "player 2 undervalued",
			rows:     []odds.ComparisonRow{row("A A", "B B", 40, 2.5, 1.67, 1.50, 2.8, 65)},
			wantSide: []odds.Side{odds.SideP2},
		},
		{
			name: "difference equal to threshold",
			rows: []odds.ComparisonRow{row("A A", "B B", 55, 1.82, 2.22, 1.90, 1.90, 50)},
		},
		{
			name: "unmatched row",
			rows: []odds.ComparisonRow{unmatched("A A", "B B", 90)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bets := rule.Evaluate(day, tt.rows)
			if len(bets) != len(tt.wantSide) {
				t.Fatalf("got %d bets, want %d", len(bets), len(tt.wantSide))
			}
			for i, b := range bets {
				if b.BetOn != tt.wantSide[i] {
					t.Errorf("bet %d BetOn = %s, want %s", i, b.BetOn, tt.wantSide[i])
				}
				if b.TriggerValue <= 5 {
					t.Errorf("bet %d TriggerValue = %v, want > 5", i, b.TriggerValue)
				}
			}
		})
	}
}

func TestProbDivergenceBetFields(t *testing.T) {
	rule := &ProbDivergence{Threshold: 5, Stake: decimal.NewFromInt(1)}
	bets := rule.Evaluate(day, []odds.ComparisonRow{row("Jannik Sinner", "Tomas Machac", 60, 1.67, 2.5, 1.90, 2.0, 52)})
	if len(bets) != 1 {
		t.Fatalf("got %d bets, want 1", len(bets))
	}
	b := bets[0]

	if b.Strategy != "S1_ProbDiff" || b.BetType != "ProbDiff" {
		t.Errorf("Strategy/BetType = %s/%s", b.Strategy, b.BetType)
	}
	if b.Tournament != "Hamburg" || b.Player1 != "Jannik Sinner" || b.Player2 != "Tomas Machac" {
		t.Errorf("names = %q %q %q", b.Tournament, b.Player1, b.Player2)
	}
	if !b.DecimalOdds.Equal(decimal.RequireFromString("1.9")) {
		t.Errorf("DecimalOdds = %s, want 1.9", b.DecimalOdds)
	}
	if math.Abs(b.TriggerValue-8) > 1e-9 {
		t.Errorf("TriggerValue = %v, want 8", b.TriggerValue)
	}
	if b.ForecastProb != 60 || b.BookmakerProb == nil || *b.BookmakerProb != 52 {
		t.Errorf("probabilities = %v / %v", b.ForecastProb, b.BookmakerProb)
	}
	if b.Result != odds.ResultUnknown || b.ProfitLoss.Valid {
		t.Errorf("new bet should be unsettled: %s %v", b.Result, b.ProfitLoss)
	}
	if b.ID == "" {
		t.Errorf("bet has no ID")
	}
}

func TestMaxSpread(t *testing.T) {
	rule := &MaxSpread{Stake: decimal.NewFromInt(1)}

	tests := []struct {
		name     string
		rows     []odds.ComparisonRow
		wantRow  string // player 1 of the backed row, empty for no bet
		wantSide odds.Side
		wantVal  float64
	}{
		{
			name: "largest across both sides",
			rows: []odds.ComparisonRow{
				row("A A", "B B", 60, 1.60, 2.30, 1.65, 2.10, 56),
				row("C C", "D D", 50, 2.00, 2.00, 1.80, 2.30, 56),
				unmatched("E E", "F F", 50),
			},
			wantRow:  "C C",
			wantSide: odds.SideP2,
			wantVal:  0.30,
		},
		{
			name: "tie keeps first row",
			rows: []odds.ComparisonRow{
				row("A A", "B B", 50, 2.00, 2.00, 2.25, 1.70, 45),
				row("C C", "D D", 50, 2.00, 2.00, 1.70, 2.25, 55),
			},
			wantRow:  "A A",
			wantSide: odds.SideP1,
			wantVal:  0.25,
		},
		{
			name: "no positive spread",
			rows: []odds.ComparisonRow{
				row("A A", "B B", 50, 2.00, 2.00, 1.90, 1.90, 50),
				unmatched("E E", "F F", 50),
			},
		},
		{
			name: "empty table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bets := rule.Evaluate(day, tt.rows)
			if tt.wantRow == "" {
				if len(bets) != 0 {
					t.Errorf("got %d bets, want none", len(bets))
				}
				return
			}
			if len(bets) != 1 {
				t.Fatalf("got %d bets, want exactly 1", len(bets))
			}
			b := bets[0]
			if b.Player1 != tt.wantRow || b.BetOn != tt.wantSide {
				t.Errorf("backed %s/%s, want %s/%s", b.Player1, b.BetOn, tt.wantRow, tt.wantSide)
			}
			if math.Abs(b.TriggerValue-tt.wantVal) > 1e-9 {
				t.Errorf("TriggerValue = %v, want %v", b.TriggerValue, tt.wantVal)
			}
		})
	}
}

func TestFractionalKelly(t *testing.T) {
	rule := &FractionalKelly{Multiplier: 0.25}
	rows := []odds.ComparisonRow{
		// P1: p=0.60 at 2.00, edge 0.20, kelly 0.20. P2: p=0.40 at 1.90, no edge.
		row("A A", "B B", 60, 1.67, 2.5, 2.00, 1.90, 48.7),
		unmatched("C C", "D D", 70),
	}

	bets := rule.Evaluate(day, rows)
	if len(bets) != 1 {
		t.Fatalf("got %d bets, want 1", len(bets))
	}
	b := bets[0]
	if b.BetOn != odds.SideP1 {
		t.Errorf("BetOn = %s, want P1", b.BetOn)
	}
	if math.Abs(b.TriggerValue-0.2) > 1e-9 {
		t.Errorf("TriggerValue = %v, want 0.2", b.TriggerValue)
	}
	if !b.Stake.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("Stake = %s, want 0.05", b.Stake)
	}
	if b.Strategy != "S3_Kelly" {
		t.Errorf("Strategy = %s", b.Strategy)
	}
}

func TestKellyFraction(t *testing.T) {
	tests := []struct {
		name   string
		prob   float64
		odds   float64
		want   float64
		wantOK bool
	}{
		{"positive edge", 60, 2.0, 0.2, true},
		{"underdog value", 40, 3.0, 0.1, true},
		{"no edge", 50, 2.0, 0, false},
		{"negative edge", 40, 2.3, 0, false},
		{"odds of one", 99, 1.0, 0, false},
		{"unknown probability", math.NaN(), 2.0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := KellyFraction(tt.prob, tt.odds)
			if ok != tt.wantOK {
				t.Fatalf("KellyFraction() ok = %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("KellyFraction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluatorConcatenatesRules(t *testing.T) {
	e, err := NewEvaluator(nil)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	rows := []odds.ComparisonRow{row("A A", "B B", 60, 1.67, 2.5, 2.00, 1.90, 48.7)}

	bets := e.Evaluate(day.Add(15*time.Hour), rows)
	var got []string
	for _, b := range bets {
		got = append(got, b.Strategy)
		if !b.Date.Equal(day) {
			t.Errorf("bet date = %v, want %v", b.Date, day)
		}
	}
	want := []string{"S1_ProbDiff", "S2_MaxSpread", "S3_Kelly"}
	if len(got) != len(want) {
		t.Fatalf("strategies = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("strategies = %v, want %v", got, want)
			break
		}
	}

	again := e.Evaluate(day, rows)
	seen := make(map[string]bool)
	for i, b := range again {
		if b.ID != bets[i].ID {
			t.Errorf("bet %d ID changed between runs", i)
		}
		if seen[b.ID] {
			t.Errorf("duplicate bet ID %s", b.ID)
		}
		seen[b.ID] = true
	}
}

func TestNewEvaluatorRules(t *testing.T) {
	e, err := NewEvaluator(&Config{Rules: []string{"kelly", "MAX_SPREAD"}})
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	names := e.Rules()
	if len(names) != 2 || names[0] != "S3_Kelly" || names[1] != "S2_MaxSpread" {
		t.Errorf("Rules() = %v", names)
	}

	if _, err := NewEvaluator(&Config{Rules: []string{"martingale"}}); err == nil {
		t.Errorf("NewEvaluator accepted an unknown rule")
	}
}
