package tables

import (
	"fmt"
	"strconv"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

var comparisonColumns = []string{
	"TournamentName", "TournamentKey", "Round",
	"Player1Name", "Player1Key", "Player2Name", "Player2Key",
	"Player1_Match_Prob", "Player2_Match_Prob",
	"Player1_Match_Odds", "Player2_Match_Odds",
	"Book_P1_Odds", "Book_P2_Odds",
	"Book_P1_Prob", "Book_P2_Prob",
	"P1_Spread", "P2_Spread",
	"P1_Rel_Spread", "P2_Rel_Spread",
	"JoinPhase", "TournamentURL",
}

// ComparisonRecords renders comparison rows as CSV records, header first.
// Nil values become empty cells; the output depends only on the rows.
func ComparisonRecords(rows []odds.ComparisonRow) [][]string {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, comparisonColumns)
	for _, r := range rows {
		records = append(records, []string{
			r.Tournament.Display, string(r.Tournament.Key), string(r.Round),
			r.Player1.Display, string(r.Player1.Key), r.Player2.Display, string(r.Player2.Key),
			formatFloat(&r.Player1WinProb, 2), formatFloat(&r.Player2WinProb, 2),
			formatFloat(&r.Player1Odds, 2), formatFloat(&r.Player2Odds, 2),
			formatFloat(r.BookP1Odds, 2), formatFloat(r.BookP2Odds, 2),
			formatFloat(r.BookP1Prob, 2), formatFloat(r.BookP2Prob, 2),
			formatFloat(r.P1Spread, 2), formatFloat(r.P2Spread, 2),
			formatFloat(r.P1RelSpread, 4), formatFloat(r.P2RelSpread, 4),
			string(r.Phase), r.SourceURL,
		})
	}
	return records
}

// RoundComparison returns copies of rows at the precision the comparison
// file stores them, so rows kept in memory evaluate exactly like rows read
// back with ReadComparison.
func RoundComparison(rows []odds.ComparisonRow) []odds.ComparisonRow {
	out := make([]odds.ComparisonRow, len(rows))
	for i, r := range rows {
		r.Player1WinProb, r.Player2WinProb = roundTo(r.Player1WinProb, 2), roundTo(r.Player2WinProb, 2)
		r.Player1Odds, r.Player2Odds = roundTo(r.Player1Odds, 2), roundTo(r.Player2Odds, 2)
		r.BookP1Odds, r.BookP2Odds = roundPtr(r.BookP1Odds, 2), roundPtr(r.BookP2Odds, 2)
		r.BookP1Prob, r.BookP2Prob = roundPtr(r.BookP1Prob, 2), roundPtr(r.BookP2Prob, 2)
		r.P1Spread, r.P2Spread = roundPtr(r.P1Spread, 2), roundPtr(r.P2Spread, 2)
		r.P1RelSpread, r.P2RelSpread = roundPtr(r.P1RelSpread, 4), roundPtr(r.P2RelSpread, 4)
		out[i] = r
	}
	return out
}

// roundTo goes through the same text form formatFloat writes.
func roundTo(v float64, prec int) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', prec, 64), 64)
	return f
}

func roundPtr(p *float64, prec int) *float64 {
	if p == nil {
		return nil
	}
	return odds.Float(roundTo(*p, prec))
}

// WriteComparison writes the day's comparison table.
func WriteComparison(path string, rows []odds.ComparisonRow) error {
	return writeAtomic(path, ComparisonRecords(rows))
}

// ReadComparison reads a comparison table written by WriteComparison.
func ReadComparison(path string) ([]odds.ComparisonRow, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	h := newHeader(records[0])
	rows := make([]odds.ComparisonRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		r := odds.ComparisonRow{
			Tournament: identity.Tournament{Display: h.get(rec, "TournamentName"), Key: identity.Key(h.get(rec, "TournamentKey"))},
			Round:      odds.Round(h.get(rec, "Round")),
			Player1:    identity.Player{Display: h.get(rec, "Player1Name"), Key: identity.Key(h.get(rec, "Player1Key"))},
			Player2:    identity.Player{Display: h.get(rec, "Player2Name"), Key: identity.Key(h.get(rec, "Player2Key"))},
			Phase:      odds.JoinPhase(h.get(rec, "JoinPhase")),
			SourceURL:  h.get(rec, "TournamentURL"),
		}

		required := []struct {
			col string
			dst *float64
		}{
			{"Player1_Match_Prob", &r.Player1WinProb},
			{"Player2_Match_Prob", &r.Player2WinProb},
			{"Player1_Match_Odds", &r.Player1Odds},
			{"Player2_Match_Odds", &r.Player2Odds},
		}
		for _, f := range required {
			v, err := strconv.ParseFloat(h.get(rec, f.col), 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %s: %w", path, i+2, f.col, err)
			}
			*f.dst = v
		}

		optional := []struct {
			col string
			dst **float64
		}{
			{"Book_P1_Odds", &r.BookP1Odds},
			{"Book_P2_Odds", &r.BookP2Odds},
			{"Book_P1_Prob", &r.BookP1Prob},
			{"Book_P2_Prob", &r.BookP2Prob},
			{"P1_Spread", &r.P1Spread},
			{"P2_Spread", &r.P2Spread},
			{"P1_Rel_Spread", &r.P1RelSpread},
			{"P2_Rel_Spread", &r.P2RelSpread},
		}
		for _, f := range optional {
			raw := h.get(rec, f.col)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %s: %w", path, i+2, f.col, err)
			}
			*f.dst = odds.Float(v)
		}

		if r.Phase == "" {
			r.Phase = odds.JoinNone
		}
		rows = append(rows, r)
	}
	return rows, nil
}
