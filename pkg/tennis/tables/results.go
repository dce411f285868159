package tables

import (
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

var resultColumns = []string{"ResultDate", "TournamentName", "Round", "WinnerName", "LoserName", "Score"}

// WriteResults writes completed results in the layout LoadResults reads.
func WriteResults(path string, rows []odds.CompletedResult) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, resultColumns)
	for _, r := range rows {
		records = append(records, []string{
			r.ResultDate.Format(odds.DateLayout),
			r.Tournament,
			string(r.Round),
			r.Winner,
			r.Loser,
			r.Score,
		})
	}
	return writeAtomic(path, records)
}
