package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "data", cfg.OutputDir)
	assert.Equal(t, "sackmann_matchups", cfg.Sources.Forecast)
	assert.Equal(t, "betcenter_odds", cfg.Sources.Bookmaker)
	assert.Equal(t, "match_results", cfg.Sources.Results)
	assert.Equal(t, "processed_comparison", cfg.Outputs.Comparison)
	assert.Equal(t, filepath.Join("data", "strategy_log.csv"), cfg.BetLogPath())
	assert.Equal(t, filepath.Join("data", "daily_results_summary.csv"), cfg.SummaryPath())
	assert.Equal(t, filepath.Join("data", "index.html"), cfg.ReportPath())
	assert.Equal(t, 5.0, cfg.Strategy.ProbDiffThreshold)
	assert.Equal(t, 0.25, cfg.Strategy.KellyMultiplier)
	assert.Equal(t, 1.0, cfg.Strategy.FlatStake)
	assert.Equal(t, []string{"prob_diff", "max_spread", "kelly"}, cfg.Strategy.Rules)
	assert.True(t, cfg.WarnPartialMatches())
	assert.False(t, cfg.ArchiveEnabled())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/tennis/in
output_dir: /srv/tennis/out
sources:
  bookmaker: pinnacle_odds
strategy:
  prob_diff_threshold: 7.5
  rules: [max_spread]
matching:
  warn_partial_matches: false
identity:
  locale_spellings:
    s-hertogenbosch: rosmalen
archive:
  sqlite_path: /srv/tennis/archive.db
logging:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/tennis/in", cfg.DataDir)
	assert.Equal(t, filepath.Join("/srv/tennis/out", "strategy_log.csv"), cfg.BetLogPath())
	assert.Equal(t, "pinnacle_odds", cfg.Sources.Bookmaker)
	assert.Equal(t, "sackmann_matchups", cfg.Sources.Forecast)
	assert.Equal(t, 7.5, cfg.Strategy.ProbDiffThreshold)
	assert.Equal(t, 0.25, cfg.Strategy.KellyMultiplier)
	assert.Equal(t, []string{"max_spread"}, cfg.Strategy.Rules)
	assert.False(t, cfg.WarnPartialMatches())
	assert.True(t, cfg.ArchiveEnabled())
	assert.Equal(t, "json", cfg.Logging.Format)

	rules := cfg.Rules()
	assert.Equal(t, "rosmalen", rules.LocaleSpellings["s-hertogenbosch"])
	assert.Equal(t, "hamburg", rules.LocaleSpellings["hambourg"], "defaults are kept")
	assert.Equal(t, identity.Key("libemaopenrosmalen"),
		identity.NewNormalizer(rules).TournamentKey("Libema Open 's-Hertogenbosch"))
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "data_dir: from-file\nstrategy:\n  kelly_multiplier: 0.5\n")
	t.Setenv("TENNIS_EDGE_DATA_DIR", "from-env")
	t.Setenv("TENNIS_EDGE_KELLY_MULTIPLIER", "0.1")
	t.Setenv("TENNIS_EDGE_RULES", "kelly, prob_diff")
	t.Setenv("TENNIS_EDGE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DataDir)
	assert.Equal(t, 0.1, cfg.Strategy.KellyMultiplier)
	assert.Equal(t, []string{"kelly", "prob_diff"}, cfg.Strategy.Rules)
	assert.Equal(t, "debug", cfg.Logging.Level)

	sc := cfg.StrategyConfig()
	assert.Equal(t, 0.1, sc.KellyMultiplier)
	assert.Equal(t, []string{"kelly", "prob_diff"}, sc.Rules)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "bad yaml", body: "strategy: [unclosed"},
		{name: "kelly multiplier above one", body: "strategy:\n  kelly_multiplier: 1.5\n"},
		{name: "negative stake", body: "strategy:\n  flat_stake: -1\n"},
		{name: "unknown log format", body: "logging:\n  format: xml\n"},
		{name: "bad env float", body: "", env: map[string]string{"TENNIS_EDGE_FLAT_STAKE": "one"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
