// Package odds defines the rows exchanged between the loaders, the
// reconciliation engine, the strategy evaluator and the settlement step.
package odds

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
)

// DateLayout is the date format used in the bet log and for match keys.
const DateLayout = "2006-01-02"

// FileDateLayout is the date format embedded in dated data file names.
const FileDateLayout = "20060102"

// Round is a tournament round.
type Round string

const (
	RoundUnknown Round = ""
	RoundR128    Round = "R128"
	RoundR64     Round = "R64"
	RoundR32     Round = "R32"
	RoundR16     Round = "R16"
	RoundQF      Round = "QF"
	RoundSF      Round = "SF"
	RoundF       Round = "F"
	RoundW       Round = "W"
)

var roundOrder = []Round{RoundR128, RoundR64, RoundR32, RoundR16, RoundQF, RoundSF, RoundF, RoundW}

// ParseRound maps round labels to a Round. Unrecognised labels yield
// RoundUnknown.
func ParseRound(s string) Round {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "QUARTERFINAL", "QUARTERFINALS", "QUARTER-FINAL", "QUARTER-FINALS":
		return RoundQF
	case "SEMIFINAL", "SEMIFINALS", "SEMI-FINAL", "SEMI-FINALS":
		return RoundSF
	case "FINAL", "FINALS":
		return RoundF
	case "WINNER", "CHAMPION":
		return RoundW
	}
	for _, r := range roundOrder {
		if string(r) == s {
			return r
		}
	}
	return RoundUnknown
}

// Side identifies one of the two players of a match row.
type Side string

const (
	SideP1 Side = "P1"
	SideP2 Side = "P2"
)

// ParseSide parses "P1"/"P2" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "P1":
		return SideP1, nil
	case "P2":
		return SideP2, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// MatchResult is the settlement status of a logged bet.
type MatchResult string

const (
	ResultUnknown      MatchResult = "Unknown"
	ResultP1Win        MatchResult = "P1_Win"
	ResultP2Win        MatchResult = "P2_Win"
	ResultMissing      MatchResult = "ResultMissing"
	ResultNameMismatch MatchResult = "ResultNameMismatch"
)

// ParseMatchResult parses a stored status. Empty and legacy "Pending"
// values map to ResultUnknown.
func ParseMatchResult(s string) (MatchResult, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "Pending", string(ResultUnknown):
		return ResultUnknown, nil
	case string(ResultP1Win), string(ResultP2Win), string(ResultMissing), string(ResultNameMismatch):
		return MatchResult(s), nil
	case "Result Missing":
		return ResultMissing, nil
	case "Result Name Mismatch":
		return ResultNameMismatch, nil
	}
	return "", fmt.Errorf("unknown match result %q", s)
}

// Settled reports whether the bet has a win/loss outcome.
func (m MatchResult) Settled() bool {
	return m == ResultP1Win || m == ResultP2Win
}

// Winner returns the winning side for settled results.
func (m MatchResult) Winner() (Side, bool) {
	switch m {
	case ResultP1Win:
		return SideP1, true
	case ResultP2Win:
		return SideP2, true
	}
	return "", false
}

// ForecastRow is one match from the statistical forecast source.
// Probabilities are percentages in (0, 100); odds are decimal odds > 1.
type ForecastRow struct {
	Tournament     identity.Tournament
	Round          Round
	Player1        identity.Player
	Player2        identity.Player
	Player1WinProb float64
	Player2WinProb float64
	Player1Odds    float64
	Player2Odds    float64
	SourceURL      string
}

// BookmakerRow is one match quoted by a bookmaker. Player order is not
// guaranteed to match the forecast source.
type BookmakerRow struct {
	Tournament  identity.Tournament
	Player1     identity.Player
	Player2     identity.Player
	Player1Odds float64
	Player2Odds float64
}

// JoinPhase records how a comparison row found its bookmaker quote.
type JoinPhase string

const (
	JoinNone    JoinPhase = "none"
	JoinDirect  JoinPhase = "direct"
	JoinSwapped JoinPhase = "swapped"
)

// ComparisonRow is a forecast row enriched with the bookmaker quote and the
// derived signals. Bookmaker fields are nil when no quote was found.
type ComparisonRow struct {
	Tournament     identity.Tournament
	Round          Round
	Player1        identity.Player
	Player2        identity.Player
	Player1WinProb float64
	Player2WinProb float64
	Player1Odds    float64
	Player2Odds    float64
	SourceURL      string

	BookP1Odds  *float64
	BookP2Odds  *float64
	BookP1Prob  *float64
	BookP2Prob  *float64
	P1Spread    *float64
	P2Spread    *float64
	P1RelSpread *float64
	P2RelSpread *float64
	Phase       JoinPhase
}

// ForecastProb returns the forecast win probability for a side.
func (r ComparisonRow) ForecastProb(s Side) float64 {
	if s == SideP1 {
		return r.Player1WinProb
	}
	return r.Player2WinProb
}

// ForecastOdds returns the forecast decimal odds for a side.
func (r ComparisonRow) ForecastOdds(s Side) float64 {
	if s == SideP1 {
		return r.Player1Odds
	}
	return r.Player2Odds
}

// BookOdds returns the bookmaker odds for a side, or nil.
func (r ComparisonRow) BookOdds(s Side) *float64 {
	if s == SideP1 {
		return r.BookP1Odds
	}
	return r.BookP2Odds
}

// BookProb returns the normalised bookmaker probability for a side, or nil.
func (r ComparisonRow) BookProb(s Side) *float64 {
	if s == SideP1 {
		return r.BookP1Prob
	}
	return r.BookP2Prob
}

// Spread returns bookmaker minus forecast odds for a side, or nil.
func (r ComparisonRow) Spread(s Side) *float64 {
	if s == SideP1 {
		return r.P1Spread
	}
	return r.P2Spread
}

// Player returns the player on a side.
func (r ComparisonRow) Player(s Side) identity.Player {
	if s == SideP1 {
		return r.Player1
	}
	return r.Player2
}

// Matched reports whether a bookmaker quote was found.
func (r ComparisonRow) Matched() bool {
	return r.Phase == JoinDirect || r.Phase == JoinSwapped
}

// LoggedBet is one entry of the append-only bet log. Names are stored as
// display strings; keys are derived again when the bet is settled.
type LoggedBet struct {
	ID            string
	Date          time.Time
	Strategy      string
	BetType       string
	Tournament    string
	Player1       string
	Player2       string
	BetOn         Side
	TriggerValue  float64
	Stake         decimal.Decimal
	DecimalOdds   decimal.Decimal
	ForecastProb  float64
	BookmakerProb *float64
	Result        MatchResult
	Score         string
	ProfitLoss    decimal.NullDecimal
}

// Pending reports whether the bet still awaits a result.
func (b LoggedBet) Pending() bool {
	return b.Result == ResultUnknown || b.Result == ResultMissing
}

// CompletedResult is a finished match.
type CompletedResult struct {
	ResultDate time.Time
	Tournament string
	Round      Round
	Winner     string
	Loser      string
	Score      string
}

// Float returns a pointer to v, for building nullable fields.
func Float(v float64) *float64 {
	return &v
}
