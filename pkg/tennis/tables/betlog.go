package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/results"
)

var betLogColumns = []string{
	"BetID", "BetDate", "Strategy", "BetType",
	"TournamentName", "Player1Name", "Player2Name", "BetOnPlayer",
	"TriggerValue", "Stake", "BetOdds",
	"ForecastProb", "BookmakerProb",
	"MatchResult", "Score", "ProfitLoss",
}

func betRecord(b odds.LoggedBet) []string {
	pl := ""
	if b.ProfitLoss.Valid {
		pl = b.ProfitLoss.Decimal.String()
	}
	return []string{
		b.ID, b.Date.Format(odds.DateLayout), b.Strategy, b.BetType,
		b.Tournament, b.Player1, b.Player2, string(b.BetOn),
		strconv.FormatFloat(b.TriggerValue, 'f', 4, 64), b.Stake.String(), b.DecimalOdds.String(),
		strconv.FormatFloat(b.ForecastProb, 'f', 2, 64), formatFloat(b.BookmakerProb, 2),
		string(b.Result), b.Score, pl,
	}
}

// ReadBetLog reads the bet log. A missing log is empty. Unlike the source
// loaders, a malformed row is an error: the log is rewritten in full during
// settlement and must never lose rows.
func ReadBetLog(path string) ([]odds.LoggedBet, error) {
	records, err := readAll(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	h := newHeader(records[0])
	bets := make([]odds.LoggedBet, 0, len(records)-1)
	for i, rec := range records[1:] {
		b, err := parseBet(h, rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		bets = append(bets, b)
	}
	return bets, nil
}

func parseBet(h header, rec []string) (odds.LoggedBet, error) {
	b := odds.LoggedBet{
		ID:         h.get(rec, "BetID"),
		Strategy:   h.get(rec, "Strategy"),
		BetType:    h.get(rec, "BetType"),
		Tournament: h.get(rec, "TournamentName", "Tournament"),
		Player1:    h.get(rec, "Player1Name", "Player1"),
		Player2:    h.get(rec, "Player2Name", "Player2"),
		Score:      h.get(rec, "Score"),
	}

	var err error
	if b.Date, err = parseDate(h.get(rec, "BetDate")); err != nil {
		return b, fmt.Errorf("bet date: %w", err)
	}
	if b.BetOn, err = odds.ParseSide(h.get(rec, "BetOnPlayer")); err != nil {
		return b, err
	}
	if b.Result, err = odds.ParseMatchResult(h.get(rec, "MatchResult")); err != nil {
		return b, err
	}
	if b.Stake, err = decimal.NewFromString(h.get(rec, "Stake", "BetAmount")); err != nil {
		return b, fmt.Errorf("stake: %w", err)
	}
	if b.DecimalOdds, err = decimal.NewFromString(h.get(rec, "BetOdds")); err != nil {
		return b, fmt.Errorf("bet odds: %w", err)
	}
	if raw := h.get(rec, "TriggerValue"); raw != "" {
		if b.TriggerValue, err = strconv.ParseFloat(raw, 64); err != nil {
			return b, fmt.Errorf("trigger value: %w", err)
		}
	}
	if raw := h.get(rec, "ForecastProb"); raw != "" {
		if b.ForecastProb, err = strconv.ParseFloat(raw, 64); err != nil {
			return b, fmt.Errorf("forecast probability: %w", err)
		}
	}
	if raw := h.get(rec, "BookmakerProb"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return b, fmt.Errorf("bookmaker probability: %w", err)
		}
		b.BookmakerProb = odds.Float(v)
	}
	if raw := h.get(rec, "ProfitLoss"); raw != "" {
		pl, err := decimal.NewFromString(raw)
		if err != nil {
			return b, fmt.Errorf("profit/loss: %w", err)
		}
		b.ProfitLoss = decimal.NewNullDecimal(pl)
	}
	if b.ID == "" {
		return b, fmt.Errorf("%w: BetID", odds.ErrMissingField)
	}
	return b, nil
}

// AppendBets appends bets whose IDs are not yet logged and returns how many
// were written. The file and its header are created on first use.
func AppendBets(path string, bets []odds.LoggedBet) (int, error) {
	existing, err := ReadBetLog(path)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing)+len(bets))
	for _, b := range existing {
		seen[b.ID] = struct{}{}
	}

	var fresh [][]string
	for _, b := range bets {
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		fresh = append(fresh, betRecord(b))
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening bet log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat bet log: %w", err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(betLogColumns); err != nil {
			return 0, fmt.Errorf("writing header: %w", err)
		}
	}
	if err := w.WriteAll(fresh); err != nil {
		return 0, fmt.Errorf("appending bets: %w", err)
	}
	return len(fresh), f.Close()
}

// RewriteBetLog replaces the whole log with bets.
func RewriteBetLog(path string, bets []odds.LoggedBet) error {
	records := make([][]string, 0, len(bets)+1)
	records = append(records, betLogColumns)
	for _, b := range bets {
		records = append(records, betRecord(b))
	}
	return writeAtomic(path, records)
}

var summaryColumns = []string{"Date", "Strategy", "NumBets", "Wins", "Staked", "DailyPL", "CumulativePL", "ROI"}

// WriteSummary writes the daily profit/loss summary.
func WriteSummary(path string, summaries []results.DailySummary) error {
	records := make([][]string, 0, len(summaries)+1)
	records = append(records, summaryColumns)
	for _, s := range summaries {
		records = append(records, []string{
			s.Date.Format(odds.DateLayout),
			s.Strategy,
			strconv.Itoa(s.Bets),
			strconv.Itoa(s.Wins),
			s.Staked.StringFixed(4),
			s.ProfitLoss.StringFixed(4),
			s.CumulativePL.StringFixed(4),
			s.ROI().StringFixed(4),
		})
	}
	return writeAtomic(path, records)
}

// BetsOn returns the bets placed on a given day.
func BetsOn(bets []odds.LoggedBet, date time.Time) []odds.LoggedBet {
	day := date.Format(odds.DateLayout)
	var out []odds.LoggedBet
	for _, b := range bets {
		if b.Date.Format(odds.DateLayout) == day {
			out = append(out, b)
		}
	}
	return out
}
