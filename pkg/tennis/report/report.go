// Package report renders the daily HTML page: the comparison table, the
// bets placed that day and the running profit/loss per strategy.
package report

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/reconcile"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/results"
)

// Page is everything shown on one report.
type Page struct {
	Date        time.Time
	GeneratedAt time.Time
	Rows        []odds.ComparisonRow
	Bets        []odds.LoggedBet
	Summaries   []results.DailySummary
	Archived    []time.Time // snapshot dates held in the archive, oldest first
}

// StrategyTotal is the all-time profit/loss of one strategy.
type StrategyTotal struct {
	Strategy   string
	ProfitLoss decimal.Decimal
}

// Totals returns the cumulative profit/loss per strategy, sorted by name.
func (p Page) Totals() []StrategyTotal {
	totals := results.Totals(p.Summaries)
	out := make([]StrategyTotal, 0, len(totals))
	for name, pl := range totals {
		out = append(out, StrategyTotal{Strategy: name, ProfitLoss: pl})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

// Matched counts rows with a bookmaker quote.
func (p Page) Matched() int {
	n := 0
	for _, r := range p.Rows {
		if r.Matched() {
			n++
		}
	}
	return n
}

var funcs = template.FuncMap{
	"opt":    optional,
	"optRel": optionalPercent,
	"margin": margin,
	"date":   func(t time.Time) string { return t.Format(odds.DateLayout) },
	"money":  func(d decimal.Decimal) string { return d.StringFixed(2) },
	"pl": func(d decimal.NullDecimal) string {
		if !d.Valid {
			return "-"
		}
		return d.Decimal.StringFixed(2)
	},
	"signClass": func(p *float64) string {
		switch {
		case p == nil:
			return ""
		case *p > 0:
			return "pos"
		case *p < 0:
			return "neg"
		}
		return ""
	},
	"decClass": func(d decimal.Decimal) string {
		switch d.Sign() {
		case 1:
			return "pos"
		case -1:
			return "neg"
		}
		return ""
	},
}

func optional(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func optionalPercent(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *p*100)
}

// margin is the bookmaker's overround on a matched row, in percent.
func margin(r odds.ComparisonRow) string {
	if r.BookP1Odds == nil || r.BookP2Odds == nil {
		return "-"
	}
	m := reconcile.Overround(*r.BookP1Odds, *r.BookP2Odds)
	if math.IsNaN(m) {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", m)
}

var pageTemplate = template.Must(template.New("page").Funcs(funcs).Parse(pageHTML))

// Render writes the page as HTML.
func Render(w io.Writer, p Page) error {
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = time.Now().UTC()
	}
	return pageTemplate.Execute(w, p)
}

// WriteFile renders the page into path, creating its directory.
func WriteFile(path string, p Page) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := Render(f, p); err != nil {
		f.Close()
		return fmt.Errorf("rendering report: %w", err)
	}
	return f.Close()
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Tennis odds comparison {{date .Date}}</title>
<style>
body { font-family: sans-serif; margin: 1.5em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 0.25em 0.5em; text-align: right; }
th { background: #f0f0f0; }
td.name { text-align: left; }
.pos { color: #186a18; }
.neg { color: #a01818; }
tr.unmatched td { color: #888; }
</style>
</head>
<body>
<h1>Tennis odds comparison {{date .Date}}</h1>
<p>{{len .Rows}} matches, {{.Matched}} with bookmaker odds. Generated {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}.</p>

<h2>Comparison</h2>
{{- if .Rows}}
<table>
<tr><th>Tournament</th><th>Round</th><th>Player 1</th><th>Player 2</th>
<th>P1 %</th><th>P2 %</th><th>Fcst P1</th><th>Fcst P2</th>
<th>Book P1</th><th>Book P2</th><th>Book P1 %</th><th>Book P2 %</th>
<th>P1 spread</th><th>P2 spread</th><th>P1 rel</th><th>P2 rel</th><th>Margin</th></tr>
{{- range .Rows}}
<tr{{if not .Matched}} class="unmatched"{{end}}>
<td class="name">{{.Tournament.Display}}</td><td>{{.Round}}</td>
<td class="name">{{.Player1.Display}}</td><td class="name">{{.Player2.Display}}</td>
<td>{{printf "%.1f" .Player1WinProb}}</td><td>{{printf "%.1f" .Player2WinProb}}</td>
<td>{{printf "%.2f" .Player1Odds}}</td><td>{{printf "%.2f" .Player2Odds}}</td>
<td>{{opt .BookP1Odds}}</td><td>{{opt .BookP2Odds}}</td>
<td>{{opt .BookP1Prob}}</td><td>{{opt .BookP2Prob}}</td>
<td class="{{signClass .P1Spread}}">{{opt .P1Spread}}</td><td class="{{signClass .P2Spread}}">{{opt .P2Spread}}</td>
<td>{{optRel .P1RelSpread}}</td><td>{{optRel .P2RelSpread}}</td>
<td>{{margin .}}</td>
</tr>
{{- end}}
</table>
{{- else}}
<p>No comparison rows.</p>
{{- end}}

<h2>Bets</h2>
{{- if .Bets}}
<table>
<tr><th>Strategy</th><th>Match</th><th>Bet on</th><th>Trigger</th><th>Stake</th><th>Odds</th><th>Result</th><th>Score</th><th>P/L</th></tr>
{{- range .Bets}}
<tr>
<td class="name">{{.Strategy}}</td>
<td class="name">{{.Tournament}}: {{.Player1}} v {{.Player2}}</td>
<td>{{.BetOn}}</td><td>{{printf "%.4f" .TriggerValue}}</td>
<td>{{.Stake}}</td><td>{{.DecimalOdds}}</td>
<td>{{.Result}}</td><td>{{.Score}}</td><td>{{pl .ProfitLoss}}</td>
</tr>
{{- end}}
</table>
{{- else}}
<p>No bets placed.</p>
{{- end}}

<h2>Profit and loss</h2>
{{- if .Summaries}}
<table>
<tr><th>Date</th><th>Strategy</th><th>Bets</th><th>Wins</th><th>Staked</th><th>Day P/L</th><th>Cumulative</th></tr>
{{- range .Summaries}}
<tr>
<td>{{date .Date}}</td><td class="name">{{.Strategy}}</td><td>{{.Bets}}</td><td>{{.Wins}}</td>
<td>{{money .Staked}}</td><td class="{{decClass .ProfitLoss}}">{{money .ProfitLoss}}</td>
<td class="{{decClass .CumulativePL}}">{{money .CumulativePL}}</td>
</tr>
{{- end}}
</table>
<table>
<tr><th>Strategy</th><th>Total P/L</th></tr>
{{- range .Totals}}
<tr><td class="name">{{.Strategy}}</td><td class="{{decClass .ProfitLoss}}">{{money .ProfitLoss}}</td></tr>
{{- end}}
</table>
{{- else}}
<p>No settled bets yet.</p>
{{- end}}
{{- with .Archived}}

<h2>Archive</h2>
<p>{{len .}} archived days: {{range $i, $d := .}}{{if $i}}, {{end}}{{date $d}}{{end}}.</p>
{{- end}}
</body>
</html>
`
