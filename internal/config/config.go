package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	yaml "go.yaml.in/yaml/v3"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/trigger"
)

// Environment variables that override file values.
const (
	EnvConfigPath = "DUECYCLE_CONFIG"
	EnvDBPath     = "DUECYCLE_DB"
	EnvLogLevel   = "DUECYCLE_LOG_LEVEL"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	Driver      DriverConfig      `yaml:"driver"`
	HTTP        HTTPConfig        `yaml:"http"`
	Accumulator AccumulatorConfig `yaml:"accumulator"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "json", "console", or "auto" (console when stderr is a TTY).
	Format string `yaml:"format"`
}

// EvaluationConfig tunes batch rule evaluation.
//
// Durations are Go duration strings ("500ms", "5s").
type EvaluationConfig struct {
	Concurrency      int    `yaml:"concurrency"`
	ConditionTimeout string `yaml:"condition_timeout"`
}

// DriverConfig holds the cron specs for the periodic driver. Specs use the
// standard five-field syntax or descriptors such as "@daily".
type DriverConfig struct {
	EvaluateSpec string `yaml:"evaluate_spec"`
	SweepSpec    string `yaml:"sweep_spec"`
	Timezone     string `yaml:"timezone"`
}

type HTTPConfig struct {
	Addr           string `yaml:"addr"`
	RequestTimeout string `yaml:"request_timeout"`
}

// AccumulatorConfig maps subject ids (e.g. a generator) to their rolling
// limits.
type AccumulatorConfig struct {
	Subjects map[string]SubjectLimits `yaml:"subjects"`
}

type SubjectLimits struct {
	AnniversaryDate string  `yaml:"anniversary_date"`
	AnnualLimit     float64 `yaml:"annual_limit"`
	MonthlyLimit    float64 `yaml:"monthly_limit"`
}

const (
	defaultConcurrency      = 4
	defaultConditionTimeout = 5 * time.Second
	defaultRequestTimeout   = 30 * time.Second
)

// Default returns a config with every field populated.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: defaultDBPath()},
		Log:      LogConfig{Level: "info", Format: "auto"},
		Evaluation: EvaluationConfig{
			Concurrency:      defaultConcurrency,
			ConditionTimeout: defaultConditionTimeout.String(),
		},
		Driver: DriverConfig{
			EvaluateSpec: "@hourly",
			SweepSpec:    "@daily",
			Timezone:     "UTC",
		},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			RequestTimeout: defaultRequestTimeout.String(),
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "duecycle.db"
	}
	return filepath.Join(home, ".duecycle", "duecycle.db")
}

// Load reads the config file at path (or $DUECYCLE_CONFIG when path is
// empty), fills defaults and applies environment overrides. A missing file
// is only an error when a path was given explicitly.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := Decode(data, cfg); err != nil {
				return nil, fmt.Errorf("loading config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode strictly decodes YAML into cfg; unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("yaml decode: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Evaluation.Concurrency <= 0 {
		c.Evaluation.Concurrency = def.Evaluation.Concurrency
	}
	if c.Driver.EvaluateSpec == "" {
		c.Driver.EvaluateSpec = def.Driver.EvaluateSpec
	}
	if c.Driver.SweepSpec == "" {
		c.Driver.SweepSpec = def.Driver.SweepSpec
	}
	if c.Driver.Timezone == "" {
		c.Driver.Timezone = def.Driver.Timezone
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "auto", "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if _, err := c.ConditionTimeout(); err != nil {
		return err
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := cronParser.Parse(c.Driver.EvaluateSpec); err != nil {
		return fmt.Errorf("driver.evaluate_spec: %w", err)
	}
	if _, err := cronParser.Parse(c.Driver.SweepSpec); err != nil {
		return fmt.Errorf("driver.sweep_spec: %w", err)
	}
	ids := make([]string, 0, len(c.Accumulator.Subjects))
	for id, lim := range c.Accumulator.Subjects {
		if _, err := domain.ParseDate(lim.AnniversaryDate); err != nil {
			return fmt.Errorf("accumulator.subjects.%s.anniversary_date: %w", id, err)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	keys := make(map[string]string, len(ids))
	for _, id := range ids {
		key := trigger.IdentKey(id)
		if other, ok := keys[key]; ok {
			return fmt.Errorf("accumulator.subjects: %q and %q both read as subjects.%s in expressions", other, id, key)
		}
		keys[key] = id
	}
	return nil
}

func (c *Config) ConditionTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("evaluation.condition_timeout", c.Evaluation.ConditionTimeout, defaultConditionTimeout)
}

func (c *Config) RequestTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("http.request_timeout", c.HTTP.RequestTimeout, defaultRequestTimeout)
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Driver.Timezone)
	if err != nil {
		return nil, fmt.Errorf("driver.timezone: %w", err)
	}
	return loc, nil
}

// Limits returns the configured limits for a subject, if any.
func (c *Config) Limits(subjectID string) (SubjectLimits, bool) {
	lim, ok := c.Accumulator.Subjects[subjectID]
	return lim, ok
}
