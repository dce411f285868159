package odds

import (
	"errors"
	"math"
)

// Row-level validation errors. Rows failing validation are dropped by the
// loaders and logged; they never abort a run.
var (
	ErrMissingField          = errors.New("missing required field")
	ErrProbabilityOutOfRange = errors.New("win probability outside (0, 100)")
	ErrInvalidOdds           = errors.New("decimal odds must be finite and greater than 1")
	ErrQualifier             = errors.New("qualifier placeholder instead of a player")
)

// ValidOdds reports whether v is usable decimal odds.
func ValidOdds(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 1
}

// ValidProb reports whether p is a percentage strictly between 0 and 100.
func ValidProb(p float64) bool {
	return !math.IsNaN(p) && p > 0 && p < 100
}

// ValidateForecast checks the invariants of a forecast row.
func ValidateForecast(r ForecastRow) error {
	if r.Tournament.Key == "" || r.Player1.Key == "" || r.Player2.Key == "" {
		return ErrMissingField
	}
	if !ValidProb(r.Player1WinProb) || !ValidProb(r.Player2WinProb) {
		return ErrProbabilityOutOfRange
	}
	if !ValidOdds(r.Player1Odds) || !ValidOdds(r.Player2Odds) {
		return ErrInvalidOdds
	}
	return nil
}

// ValidateBookmaker checks the invariants of a bookmaker row.
func ValidateBookmaker(r BookmakerRow) error {
	if r.Tournament.Key == "" || r.Player1.Key == "" || r.Player2.Key == "" {
		return ErrMissingField
	}
	if !ValidOdds(r.Player1Odds) || !ValidOdds(r.Player2Odds) {
		return ErrInvalidOdds
	}
	return nil
}

// OddsFromProb converts a win probability percentage to decimal odds,
// rounded to two places. It returns 0 for probabilities outside (0, 100).
func OddsFromProb(p float64) float64 {
	if !ValidProb(p) {
		return 0
	}
	return math.Round(100/p*100) / 100
}
