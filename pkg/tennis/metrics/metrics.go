// Package metrics provides Prometheus metrics for the odds pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Pipeline collects metrics for one batch run. All Record methods are safe on
// a nil *Pipeline, so callers may leave metrics unset.
type Pipeline struct {
	registry *prometheus.Registry

	// Ingest metrics
	RowsLoaded  *prometheus.CounterVec
	RowsDropped *prometheus.CounterVec

	// Reconciliation metrics
	JoinOutcomes    *prometheus.CounterVec
	DuplicateQuotes *prometheus.CounterVec

	// Strategy metrics
	BetsEmitted *prometheus.CounterVec
	BetStake    *prometheus.HistogramVec

	// Settlement metrics
	Settlements  *prometheus.CounterVec
	CumulativePL *prometheus.GaugeVec

	// Run metrics
	StageDuration *prometheus.HistogramVec
	LastRun       prometheus.Gauge
}

// NewPipeline creates a metrics collector with its own registry.
func NewPipeline() *Pipeline {
	registry := prometheus.NewRegistry()

	p := &Pipeline{
		registry: registry,

		RowsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tennisedge_rows_loaded_total",
				Help: "Rows accepted from a source file",
			},
			[]string{"source"},
		),
		RowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tennisedge_rows_dropped_total",
				Help: "Rows rejected from a source file",
			},
			[]string{"source", "reason"},
		),

		JoinOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tennisedge_join_outcomes_total",
				Help: "Forecast rows by the join phase that found a bookmaker quote",
			},
			[]string{"phase"},
		),
		DuplicateQuotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tennisedge_duplicate_quotes_total",
				Help: "Bookmaker rows ignored because an earlier row had the same key",
			},
			[]string{"phase"},
		),

		BetsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tennisedge_bets_emitted_total",
				Help: "Candidate bets emitted by strategy",
			},
			[]string{"strategy"},
		),
		BetStake: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tennisedge_bet_stake",
				Help:    "Stake of emitted bets (units or bankroll fraction)",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"strategy"},
		),

		Settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tennisedge_settlements_total",
				Help: "Settlement attempts by outcome",
			},
			[]string{"strategy", "status"},
		),
		CumulativePL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tennisedge_cumulative_profit_loss",
				Help: "Cumulative profit/loss of settled bets",
			},
			[]string{"strategy"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tennisedge_stage_duration_seconds",
				Help:    "Duration of pipeline stages",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"stage"},
		),
		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tennisedge_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run",
			},
		),
	}

	p.registry.MustRegister(
		p.RowsLoaded,
		p.RowsDropped,
		p.JoinOutcomes,
		p.DuplicateQuotes,
		p.BetsEmitted,
		p.BetStake,
		p.Settlements,
		p.CumulativePL,
		p.StageDuration,
		p.LastRun,
	)

	return p
}

// --- Helper methods for recording metrics ---

// RecordLoaded records rows accepted from a source.
func (p *Pipeline) RecordLoaded(source string, n int) {
	if p == nil {
		return
	}
	p.RowsLoaded.WithLabelValues(source).Add(float64(n))
}

// RecordDropped records one rejected row.
func (p *Pipeline) RecordDropped(source, reason string) {
	if p == nil {
		return
	}
	p.RowsDropped.WithLabelValues(source, reason).Inc()
}

// RecordJoin records the join outcome of one forecast row.
func (p *Pipeline) RecordJoin(phase string) {
	if p == nil {
		return
	}
	p.JoinOutcomes.WithLabelValues(phase).Inc()
}

// RecordDuplicate records a bookmaker row shadowed by an earlier one.
func (p *Pipeline) RecordDuplicate(phase string) {
	if p == nil {
		return
	}
	p.DuplicateQuotes.WithLabelValues(phase).Inc()
}

// RecordBet records an emitted candidate bet.
func (p *Pipeline) RecordBet(strategy string, stake decimal.Decimal) {
	if p == nil {
		return
	}
	p.BetsEmitted.WithLabelValues(strategy).Inc()
	p.BetStake.WithLabelValues(strategy).Observe(DecimalToFloat64(stake))
}

// RecordSettlement records a settlement outcome.
func (p *Pipeline) RecordSettlement(strategy, status string) {
	if p == nil {
		return
	}
	p.Settlements.WithLabelValues(strategy, status).Inc()
}

// SetCumulativePL sets the cumulative profit/loss of a strategy.
func (p *Pipeline) SetCumulativePL(strategy string, pl decimal.Decimal) {
	if p == nil {
		return
	}
	p.CumulativePL.WithLabelValues(strategy).Set(DecimalToFloat64(pl))
}

// ObserveStage records the duration of a pipeline stage started at start.
func (p *Pipeline) ObserveStage(stage string, start time.Time) {
	if p == nil {
		return
	}
	p.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// MarkRun stamps the completion time of a run.
func (p *Pipeline) MarkRun(at time.Time) {
	if p == nil {
		return
	}
	p.LastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes the current metrics in the text exposition format,
// for pickup by a node_exporter textfile collector.
func (p *Pipeline) WriteTextfile(path string) error {
	if p == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, p.registry)
}

// --- Decimal helpers ---

// DecimalToFloat64 safely converts decimal.Decimal to float64 for metrics.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
