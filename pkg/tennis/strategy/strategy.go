// Package strategy turns comparison rows into candidate bets.
package strategy

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/metrics"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

// Rule names accepted in Config.Rules.
const (
	RuleProbDivergence  = "prob_diff"
	RuleMaxSpread       = "max_spread"
	RuleFractionalKelly = "kelly"
)

// Rule scans a full comparison table and emits zero or more bets.
type Rule interface {
	Name() string
	Evaluate(date time.Time, rows []odds.ComparisonRow) []odds.LoggedBet
}

// Config configures an Evaluator.
type Config struct {
	ProbDiffThreshold float64  // Default: 5.0 percentage points
	KellyMultiplier   float64  // Default: 0.25 (quarter Kelly)
	FlatStake         float64  // Default: 1.0 unit
	Rules             []string // Default: all rules, in the order above

	Logger  *slog.Logger
	Metrics *metrics.Pipeline
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		ProbDiffThreshold: 5.0,
		KellyMultiplier:   0.25,
		FlatStake:         1.0,
		Rules:             []string{RuleProbDivergence, RuleMaxSpread, RuleFractionalKelly},
	}
}

// Evaluator runs a fixed list of rules and concatenates their bets.
type Evaluator struct {
	rules   []Rule
	logger  *slog.Logger
	metrics *metrics.Pipeline
}

// NewEvaluator creates an evaluator. Unknown rule names are an error.
func NewEvaluator(config *Config) (*Evaluator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	// Apply defaults for unset values
	defaults := DefaultConfig()
	if cfg.ProbDiffThreshold == 0 {
		cfg.ProbDiffThreshold = defaults.ProbDiffThreshold
	}
	if cfg.KellyMultiplier == 0 {
		cfg.KellyMultiplier = defaults.KellyMultiplier
	}
	if cfg.FlatStake == 0 {
		cfg.FlatStake = defaults.FlatStake
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = defaults.Rules
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	stake := decimal.NewFromFloat(cfg.FlatStake)
	e := &Evaluator{logger: cfg.Logger, metrics: cfg.Metrics}
	for _, name := range cfg.Rules {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case RuleProbDivergence:
			e.rules = append(e.rules, &ProbDivergence{Threshold: cfg.ProbDiffThreshold, Stake: stake})
		case RuleMaxSpread:
			e.rules = append(e.rules, &MaxSpread{Stake: stake})
		case RuleFractionalKelly:
			e.rules = append(e.rules, &FractionalKelly{Multiplier: cfg.KellyMultiplier})
		default:
			return nil, fmt.Errorf("unknown strategy rule %q", name)
		}
	}
	return e, nil
}

// Evaluate returns the bets of every rule for the given day, in rule order.
// It does not modify rows.
func (e *Evaluator) Evaluate(date time.Time, rows []odds.ComparisonRow) []odds.LoggedBet {
	date = civilDate(date)
	var bets []odds.LoggedBet
	for _, r := range e.rules {
		emitted := r.Evaluate(date, rows)
		for _, b := range emitted {
			e.metrics.RecordBet(b.Strategy, b.Stake)
		}
		e.logger.Info("strategy evaluated", "rule", r.Name(), "bets", len(emitted), "rows", len(rows))
		bets = append(bets, emitted...)
	}
	return bets
}

// Rules returns the configured rule names in evaluation order.
func (e *Evaluator) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

var betNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/phenomenon0/tennis-edge/bets"))

// BetID derives a stable identifier for a strategy's bet on one side of a
// match on a given day, so re-running a day yields the same IDs.
func BetID(date time.Time, strategy string, row odds.ComparisonRow, side odds.Side) string {
	name := strings.Join([]string{
		date.Format(odds.DateLayout),
		strategy,
		string(row.Tournament.Key),
		string(row.Player1.Key),
		string(row.Player2.Key),
		string(side),
	}, "|")
	return uuid.NewSHA1(betNamespace, []byte(name)).String()
}

func newBet(date time.Time, strategy, betType string, row odds.ComparisonRow, side odds.Side, trigger float64, stake decimal.Decimal) odds.LoggedBet {
	var price decimal.Decimal
	if o := row.BookOdds(side); o != nil {
		price = decimal.NewFromFloat(*o)
	}
	var bookProb *float64
	if p := row.BookProb(side); p != nil {
		bookProb = odds.Float(*p)
	}
	return odds.LoggedBet{
		ID:            BetID(date, strategy, row, side),
		Date:          date,
		Strategy:      strategy,
		BetType:       betType,
		Tournament:    row.Tournament.Display,
		Player1:       row.Player1.Display,
		Player2:       row.Player2.Display,
		BetOn:         side,
		TriggerValue:  trigger,
		Stake:         stake,
		DecimalOdds:   price,
		ForecastProb:  row.ForecastProb(side),
		BookmakerProb: bookProb,
		Result:        odds.ResultUnknown,
	}
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var sides = [2]odds.Side{odds.SideP1, odds.SideP2}
