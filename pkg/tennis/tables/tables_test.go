package tables

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/results"
)

var day = time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDatedPath(t *testing.T) {
	assert.Equal(t, "sackmann_matchups_20250514.csv", DatedName("sackmann_matchups", day))
	assert.Equal(t, filepath.Join("data", "betcenter_odds_20250514.csv"), DatedPath("data", "betcenter_odds", day))

	d, ok := DateFromName("/x/match_results_20250513.csv", "match_results")
	require.True(t, ok)
	assert.True(t, d.Equal(day.AddDate(0, 0, -1)))

	_, ok = DateFromName("match_results_latest.csv", "match_results")
	assert.False(t, ok)
	_, ok = DateFromName("betcenter_odds_20250513.csv", "match_results")
	assert.False(t, ok)
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"sackmann_matchups_20250512.csv",
		"sackmann_matchups_20250514.csv",
		"sackmann_matchups_20250513.csv",
		"betcenter_odds_20250520.csv",
		"sackmann_matchups_notes.csv",
	} {
		writeFile(t, dir, name, "")
	}

	path, d, err := FindLatest(dir, "sackmann_matchups")
	require.NoError(t, err)
	assert.Equal(t, "sackmann_matchups_20250514.csv", filepath.Base(path))
	assert.True(t, d.Equal(day))

	_, _, err = FindLatest(dir, "match_results")
	assert.ErrorIs(t, err, ErrNoDatedFile)
}

const forecastCSV = `TournamentName,Round,Player1Name,Player2Name,Player1_Match_Prob,Player2_Match_Prob,Player1_Match_Odds,Player2_Match_Odds,TournamentURL
Hamburg,R32,Jannik Sinner,Tomas Machac,60.0,40.0,1.67,2.50,https://example.org/hamburg
Hamburg,R32,Qualifier,Tomas Machac,50.0,50.0,2.00,2.00,
Hamburg,R32,"Alcaraz, Carlos",Casper Ruud,abc,40.0,1.67,2.50,
Hamburg,R16,Alexander Zverev,Holger Rune,65%,35%,,,
Hamburg,R16,Daniil Medvedev,Taylor Fritz,0,100,,,
`

func TestLoadForecasts(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sackmann_matchups_20250514.csv", "\ufeff"+forecastCSV)

	rows, err := NewLoader(LoaderConfig{}).LoadForecasts(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, identity.Key("hamburg"), first.Tournament.Key)
	assert.Equal(t, odds.RoundR32, first.Round)
	assert.Equal(t, "Jannik Sinner", first.Player1.Display)
	assert.Equal(t, identity.Key("janniksinner"), first.Player1.Key)
	assert.Equal(t, 1.67, first.Player1Odds)
	assert.Equal(t, "https://example.org/hamburg", first.SourceURL)

	derived := rows[1]
	assert.Equal(t, "Alexander Zverev", derived.Player1.Display)
	assert.Equal(t, 65.0, derived.Player1WinProb)
	assert.Equal(t, 1.54, derived.Player1Odds)
	assert.Equal(t, 2.86, derived.Player2Odds)
}

func TestLoadForecastsNoData(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(LoaderConfig{})

	_, err := loader.LoadForecasts(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, ErrNoForecasts)

	headerOnly := writeFile(t, dir, "header.csv", "TournamentName,Player1Name,Player2Name\n")
	_, err = loader.LoadForecasts(headerOnly)
	assert.ErrorIs(t, err, ErrNoForecasts)

	allBad := writeFile(t, dir, "bad.csv", "TournamentName,Player1Name,Player2Name,Player1_Match_Prob,Player2_Match_Prob\nHamburg,A,B,0,100\n")
	_, err = loader.LoadForecasts(allBad)
	assert.ErrorIs(t, err, ErrNoForecasts)
}

func TestLoadBookmaker(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(LoaderConfig{})

	rows, err := loader.LoadBookmaker(filepath.Join(dir, "betcenter_odds_20250514.csv"))
	require.NoError(t, err)
	assert.Nil(t, rows)

	path := writeFile(t, dir, "betcenter_odds_20250514.csv", `tournament,p1_name,p2_name,p1_odds,p2_odds
"Tennis - Hambourg, Germany",Tomas Machac,Jannik Sinner,"2,10",1.65
Hamburg,Casper Ruud,Holger Rune,1.00,3.00
Hamburg,Casper Ruud,,1.80,2.00
Hamburg,Alexander Zverev,Holger Rune,n/a,2.00
`)
	rows, err = loader.LoadBookmaker(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, identity.Key("hamburg"), rows[0].Tournament.Key)
	assert.Equal(t, identity.Key("tomasmachac"), rows[0].Player1.Key)
	assert.Equal(t, 2.10, rows[0].Player1Odds)
	assert.Equal(t, 1.65, rows[0].Player2Odds)
}

func TestLoadResults(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(LoaderConfig{})

	rows, err := loader.LoadResults(filepath.Join(dir, "match_results_20250514.csv"), "match_results")
	require.NoError(t, err)
	assert.Nil(t, rows)

	path := writeFile(t, dir, "match_results_20250514.csv", `ResultDate,TournamentName,Round,WinnerName,LoserName,Score,ResultLine
2025-05-13,Hamburg,R32,Jannik Sinner,Tomas Machac,6-4 6-3,
,Hamburg,,,,,"R16: (1) Alexander Zverev (GER) d. Holger Rune (DEN) 7-6(4) 6-2"
,Hamburg,,,,,garbage line
20250514x,Hamburg,R32,Casper Ruud,Taylor Fritz,6-1 6-1,
`)
	rows, err = loader.LoadResults(path, "match_results")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.True(t, rows[0].ResultDate.Equal(day.AddDate(0, 0, -1)))
	assert.Equal(t, "Jannik Sinner", rows[0].Winner)
	assert.Equal(t, "6-4 6-3", rows[0].Score)

	assert.True(t, rows[1].ResultDate.Equal(day), "date should come from the file name")
	assert.Equal(t, odds.RoundR16, rows[1].Round)
	assert.Equal(t, "Alexander Zverev", rows[1].Winner)
	assert.Equal(t, "Holger Rune", rows[1].Loser)
	assert.Equal(t, "7-6(4) 6-2", rows[1].Score)
}

func TestComparisonRoundTrip(t *testing.T) {
	n := identity.Default()
	rows := []odds.ComparisonRow{
		{
			Tournament:     n.Tournament("Hamburg"),
			Round:          odds.RoundR32,
			Player1:        n.Player("Jannik Sinner"),
			Player2:        n.Player("Tomas Machac"),
			Player1WinProb: 60,
			Player2WinProb: 40,
			Player1Odds:    1.6,
			Player2Odds:    2.5,
			BookP1Odds:     odds.Float(1.65),
			BookP2Odds:     odds.Float(2.1),
			BookP1Prob:     odds.Float(56),
			BookP2Prob:     odds.Float(44),
			P1Spread:       odds.Float(0.05),
			P2Spread:       odds.Float(-0.4),
			P1RelSpread:    odds.Float(0.0313),
			P2RelSpread:    odds.Float(-0.16),
			Phase:          odds.JoinSwapped,
			SourceURL:      "https://example.org/hamburg",
		},
		{
			Tournament:     n.Tournament("Hamburg"),
			Player1:        n.Player("Casper Ruud"),
			Player2:        n.Player("Holger Rune"),
			Player1WinProb: 50,
			Player2WinProb: 50,
			Player1Odds:    2,
			Player2Odds:    2,
			Phase:          odds.JoinNone,
		},
	}

	path := filepath.Join(t.TempDir(), "out", "processed_comparison_20250514.csv")
	require.NoError(t, WriteComparison(path, rows))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "TournamentName,TournamentKey,Round,"))
	assert.Contains(t, lines[1], ",0.05,-0.40,0.0313,-0.1600,swapped,")
	assert.Contains(t, lines[2], ",2.00,2.00,,,,,,,,,none,")

	got, err := ReadComparison(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestRoundComparison(t *testing.T) {
	rows := []odds.ComparisonRow{{
		Player1WinProb: 61.004,
		Player2WinProb: 38.996,
		Player1Odds:    1.64,
		Player2Odds:    2.56,
		BookP1Prob:     odds.Float(55.99999999999999),
		P1Spread:       odds.Float(0.005000001),
		P1RelSpread:    odds.Float(0.0030487),
		Phase:          odds.JoinDirect,
	}}

	got := RoundComparison(rows)
	assert.Equal(t, 61.0, got[0].Player1WinProb)
	assert.Equal(t, 39.0, got[0].Player2WinProb)
	assert.Equal(t, 56.0, *got[0].BookP1Prob)
	assert.Equal(t, 0.01, *got[0].P1Spread)
	assert.Equal(t, 0.003, *got[0].P1RelSpread)
	assert.Nil(t, got[0].BookP2Prob)
	assert.Equal(t, 61.004, rows[0].Player1WinProb, "input left untouched")

	path := filepath.Join(t.TempDir(), "processed_comparison_20250514.csv")
	require.NoError(t, WriteComparison(path, rows))
	back, err := ReadComparison(path)
	require.NoError(t, err)
	assert.Equal(t, back, got)
}

func TestComparisonDeterministic(t *testing.T) {
	n := identity.Default()
	rows := []odds.ComparisonRow{{
		Tournament: n.Tournament("Hamburg"), Player1: n.Player("A B"), Player2: n.Player("C D"),
		Player1WinProb: 50, Player2WinProb: 50, Player1Odds: 2, Player2Odds: 2, Phase: odds.JoinNone,
	}}
	assert.Equal(t, ComparisonRecords(rows), ComparisonRecords(rows))
}

func bet(id, strategy string, side odds.Side) odds.LoggedBet {
	return odds.LoggedBet{
		ID:            id,
		Date:          day,
		Strategy:      strategy,
		BetType:       "ProbDiff",
		Tournament:    "Hamburg",
		Player1:       "Jannik Sinner",
		Player2:       "Tomas Machac",
		BetOn:         side,
		TriggerValue:  8,
		Stake:         decimal.NewFromInt(1),
		DecimalOdds:   decimal.RequireFromString("1.9"),
		ForecastProb:  60,
		BookmakerProb: odds.Float(52),
		Result:        odds.ResultUnknown,
	}
}

func TestBetLogAppendSkipsKnownIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy_log.csv")

	existing, err := ReadBetLog(path)
	require.NoError(t, err)
	assert.Empty(t, existing)

	added, err := AppendBets(path, []odds.LoggedBet{
		bet("a", "S1_ProbDiff", odds.SideP1),
		bet("b", "S2_MaxSpread", odds.SideP2),
		bet("a", "S1_ProbDiff", odds.SideP1),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = AppendBets(path, []odds.LoggedBet{
		bet("b", "S2_MaxSpread", odds.SideP2),
		bet("c", "S3_Kelly", odds.SideP1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "BetID,"), "header written once")

	bets, err := ReadBetLog(path)
	require.NoError(t, err)
	require.Len(t, bets, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{bets[0].ID, bets[1].ID, bets[2].ID})

	b := bets[1]
	assert.True(t, b.Date.Equal(day))
	assert.Equal(t, odds.SideP2, b.BetOn)
	assert.Equal(t, "1.9", b.DecimalOdds.String())
	assert.Equal(t, "1", b.Stake.String())
	assert.Equal(t, 8.0, b.TriggerValue)
	require.NotNil(t, b.BookmakerProb)
	assert.Equal(t, 52.0, *b.BookmakerProb)
	assert.Equal(t, odds.ResultUnknown, b.Result)
	assert.False(t, b.ProfitLoss.Valid)
}

func TestRewriteBetLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy_log.csv")
	_, err := AppendBets(path, []odds.LoggedBet{bet("a", "S1_ProbDiff", odds.SideP1)})
	require.NoError(t, err)

	bets, err := ReadBetLog(path)
	require.NoError(t, err)
	bets[0].Result = odds.ResultP1Win
	bets[0].Score = "6-4 6-3"
	bets[0].ProfitLoss = decimal.NewNullDecimal(decimal.RequireFromString("0.9"))
	require.NoError(t, RewriteBetLog(path, bets))

	got, err := ReadBetLog(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, odds.ResultP1Win, got[0].Result)
	assert.Equal(t, "6-4 6-3", got[0].Score)
	require.True(t, got[0].ProfitLoss.Valid)
	assert.Equal(t, "0.9", got[0].ProfitLoss.Decimal.String())
}

func TestReadBetLogMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "strategy_log.csv",
		"BetID,BetDate,Strategy,BetOnPlayer,Stake,BetOdds,MatchResult\n"+
			"a,2025-05-14,S1_ProbDiff,P1,1,1.9,Unknown\n"+
			"b,2025-05-14,S1_ProbDiff,P3,1,1.9,Unknown\n")

	_, err := ReadBetLog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestReadBetLogLegacyStatus(t *testing.T) {
	path := writeFile(t, t.TempDir(), "strategy_log.csv",
		"BetID,BetDate,Strategy,BetOnPlayer,BetAmount,BetOdds,MatchResult\n"+
			"a,20250514,S1_ProbDiff,p2,1.0,2.5,Pending\n"+
			"b,2025-05-14,S1_ProbDiff,P1,1.0,2.5,Result Missing\n")

	bets, err := ReadBetLog(path)
	require.NoError(t, err)
	require.Len(t, bets, 2)
	assert.Equal(t, odds.ResultUnknown, bets[0].Result)
	assert.Equal(t, odds.SideP2, bets[0].BetOn)
	assert.Equal(t, odds.ResultMissing, bets[1].Result)
	assert.True(t, bets[1].Pending())
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_results_summary.csv")
	err := WriteSummary(path, []results.DailySummary{{
		Date:         day,
		Strategy:     "S1_ProbDiff",
		Bets:         2,
		Wins:         1,
		Staked:       decimal.NewFromInt(2),
		ProfitLoss:   decimal.RequireFromString("-0.35"),
		CumulativePL: decimal.RequireFromString("-0.35"),
	}})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Date,Strategy,NumBets,Wins,Staked,DailyPL,CumulativePL,ROI\n"+
			"2025-05-14,S1_ProbDiff,2,1,2.0000,-0.3500,-0.3500,-0.1750\n",
		string(raw))
}

func TestBetsOn(t *testing.T) {
	a := bet("a", "S1_ProbDiff", odds.SideP1)
	b := bet("b", "S1_ProbDiff", odds.SideP1)
	b.Date = day.AddDate(0, 0, 1)

	got := BetsOn([]odds.LoggedBet{a, b}, day.Add(20*time.Hour))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestListDated(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"match_results_20250514.csv",
		"match_results_20250512.csv",
		"betcenter_odds_20250513.csv",
	} {
		writeFile(t, dir, name, "")
	}

	paths, err := ListDated(dir, "match_results")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "match_results_20250512.csv", filepath.Base(paths[0]))
	assert.Equal(t, "match_results_20250514.csv", filepath.Base(paths[1]))

	_, err = ListDated(filepath.Join(dir, "missing"), "match_results")
	assert.Error(t, err)
}

func TestWriteResultsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match_results_20250514.csv")
	in := []odds.CompletedResult{{
		ResultDate: day,
		Tournament: "Hamburg",
		Round:      odds.RoundSF,
		Winner:     "Jannik Sinner",
		Loser:      "Tomas Machac",
		Score:      "6-4 3-6 7-6(5)",
	}}
	require.NoError(t, WriteResults(path, in))

	got, err := NewLoader(LoaderConfig{}).LoadResults(path, "match_results")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].ResultDate.Equal(day))
	assert.Equal(t, in[0].Tournament, got[0].Tournament)
	assert.Equal(t, in[0].Round, got[0].Round)
	assert.Equal(t, in[0].Winner, got[0].Winner)
	assert.Equal(t, in[0].Loser, got[0].Loser)
	assert.Equal(t, in[0].Score, got[0].Score)
}
