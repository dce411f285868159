// Package config loads the tennis-edge YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/results"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/strategy"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TENNIS_EDGE_"

type Config struct {
	DataDir   string         `yaml:"data_dir"`
	OutputDir string         `yaml:"output_dir"`
	Sources   SourcesConfig  `yaml:"sources"`
	Outputs   OutputsConfig  `yaml:"outputs"`
	Strategy  StrategyConfig `yaml:"strategy"`
	Matching  MatchingConfig `yaml:"matching"`
	Identity  identity.Rules `yaml:"identity"`
	Archive   ArchiveConfig  `yaml:"archive"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// SourcesConfig names the dated input files: {source}_{YYYYMMDD}.csv.
type SourcesConfig struct {
	Forecast  string `yaml:"forecast"`
	Bookmaker string `yaml:"bookmaker"`
	Results   string `yaml:"results"`
}

type OutputsConfig struct {
	Comparison string `yaml:"comparison"` // dated, like the sources
	BetLog     string `yaml:"bet_log"`
	Summary    string `yaml:"summary"`
	Report     string `yaml:"report"`
}

type StrategyConfig struct {
	ProbDiffThreshold float64  `yaml:"prob_diff_threshold"`
	KellyMultiplier   float64  `yaml:"kelly_multiplier"`
	FlatStake         float64  `yaml:"flat_stake"`
	Rules             []string `yaml:"rules"`
}

type MatchingConfig struct {
	WarnPartialMatches *bool `yaml:"warn_partial_matches"`
}

type ArchiveConfig struct {
	SQLitePath string `yaml:"sqlite_path"` // empty disables the archive
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // empty disables the export
}

type LoggingConfig struct {
	Level   string `yaml:"level"`  // debug, info, warn, error
	Format  string `yaml:"format"` // text or json
	Service string `yaml:"service"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path, applies environment overrides and fills
// every unset value with its default. An empty path loads defaults only.
// Variables from a .env file next to the working directory are loaded first
// without overriding the real environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"DATA_DIR":         &c.DataDir,
		"OUTPUT_DIR":       &c.OutputDir,
		"ARCHIVE_PATH":     &c.Archive.SQLitePath,
		"METRICS_TEXTFILE": &c.Metrics.Textfile,
		"LOG_LEVEL":        &c.Logging.Level,
		"LOG_FORMAT":       &c.Logging.Format,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"PROB_DIFF_THRESHOLD": &c.Strategy.ProbDiffThreshold,
		"KELLY_MULTIPLIER":    &c.Strategy.KellyMultiplier,
		"FLAT_STAKE":          &c.Strategy.FlatStake,
	}
	for name, dst := range floats {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, name, v, err)
		}
		*dst = f
	}

	if v, ok := os.LookupEnv(EnvPrefix + "RULES"); ok {
		c.Strategy.Rules = nil
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				c.Strategy.Rules = append(c.Strategy.Rules, r)
			}
		}
	}
	return nil
}

// Apply defaults for unset values
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.OutputDir == "" {
		c.OutputDir = c.DataDir
	}
	if c.Sources.Forecast == "" {
		c.Sources.Forecast = "sackmann_matchups"
	}
	if c.Sources.Bookmaker == "" {
		c.Sources.Bookmaker = "betcenter_odds"
	}
	if c.Sources.Results == "" {
		c.Sources.Results = "match_results"
	}
	if c.Outputs.Comparison == "" {
		c.Outputs.Comparison = "processed_comparison"
	}
	if c.Outputs.BetLog == "" {
		c.Outputs.BetLog = "strategy_log.csv"
	}
	if c.Outputs.Summary == "" {
		c.Outputs.Summary = "daily_results_summary.csv"
	}
	if c.Outputs.Report == "" {
		c.Outputs.Report = "index.html"
	}

	def := strategy.DefaultConfig()
	if c.Strategy.ProbDiffThreshold == 0 {
		c.Strategy.ProbDiffThreshold = def.ProbDiffThreshold
	}
	if c.Strategy.KellyMultiplier == 0 {
		c.Strategy.KellyMultiplier = def.KellyMultiplier
	}
	if c.Strategy.FlatStake == 0 {
		c.Strategy.FlatStake = def.FlatStake
	}
	if len(c.Strategy.Rules) == 0 {
		c.Strategy.Rules = def.Rules
	}

	if c.Matching.WarnPartialMatches == nil {
		flag := results.DefaultMatcherConfig().WarnPartialMatches
		c.Matching.WarnPartialMatches = &flag
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "tennis-edge"
	}
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Strategy.ProbDiffThreshold < 0 {
		errs = append(errs, fmt.Errorf("strategy.prob_diff_threshold must not be negative"))
	}
	if c.Strategy.KellyMultiplier < 0 || c.Strategy.KellyMultiplier > 1 {
		errs = append(errs, fmt.Errorf("strategy.kelly_multiplier must be in [0, 1]"))
	}
	if c.Strategy.FlatStake < 0 {
		errs = append(errs, fmt.Errorf("strategy.flat_stake must not be negative"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Rules returns the normalization rules: the built-in defaults extended by
// the configured ones.
func (c *Config) Rules() identity.Rules {
	return identity.DefaultRules().Merge(c.Identity)
}

// StrategyConfig returns the evaluator settings.
func (c *Config) StrategyConfig() *strategy.Config {
	return &strategy.Config{
		ProbDiffThreshold: c.Strategy.ProbDiffThreshold,
		KellyMultiplier:   c.Strategy.KellyMultiplier,
		FlatStake:         c.Strategy.FlatStake,
		Rules:             append([]string(nil), c.Strategy.Rules...),
	}
}

// WarnPartialMatches reports whether results naming only one player of a
// pending bet are logged for review.
func (c *Config) WarnPartialMatches() bool {
	return c.Matching.WarnPartialMatches != nil && *c.Matching.WarnPartialMatches
}

// ArchiveEnabled reports whether comparison snapshots are archived.
func (c *Config) ArchiveEnabled() bool {
	return c.Archive.SQLitePath != ""
}

// BetLogPath returns the bet log location.
func (c *Config) BetLogPath() string {
	return filepath.Join(c.OutputDir, c.Outputs.BetLog)
}

// SummaryPath returns the daily summary location.
func (c *Config) SummaryPath() string {
	return filepath.Join(c.OutputDir, c.Outputs.Summary)
}

// ReportPath returns the HTML report location.
func (c *Config) ReportPath() string {
	return filepath.Join(c.OutputDir, c.Outputs.Report)
}
