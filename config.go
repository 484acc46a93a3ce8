package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every constant of one analysis run: which columns to read,
// the rainfall-coverage window, sampler settings, and the priors of each
// model variant, so nothing is hard-coded in the pipeline itself.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Window  WindowConfig  `yaml:"window"`
	Sampler SamplerConfig `yaml:"sampler"`
	Runs    RunConfig     `yaml:"runs"`
	Priors  PriorsConfig  `yaml:"priors"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// InputConfig names the CSV file and its columns.
type InputConfig struct {
	Path       string `yaml:"path"`
	DateColumn string `yaml:"dateColumn"`
	FlowColumn string `yaml:"flowColumn"`
	RainColumn string `yaml:"rainColumn"`
	DateFormat string `yaml:"dateFormat"`
}

// WindowConfig bounds the calibration period. RainStart is the day rainfall
// instrumentation began; Cutoff starts the holdout.
type WindowConfig struct {
	RainStart string `yaml:"rainStart"`
	Cutoff    string `yaml:"cutoff"`
}

// RunConfig sets the two sampling phases and summarization constants.
type RunConfig struct {
	DiagnosticIters int       `yaml:"diagnosticIters"`
	ForecastIters   int       `yaml:"forecastIters"`
	BurnIn          int       `yaml:"burnIn"`
	Quantiles       []float64 `yaml:"quantiles"`
}

// PriorsConfig keeps one independent prior block per model variant.
type PriorsConfig struct {
	RandomWalk    VariantPriors `yaml:"randomWalk"`
	RainfallWalk  VariantPriors `yaml:"rainfallWalk"`
	MeanReverting VariantPriors `yaml:"meanReverting"`
}

// VariantPriors lists the hyperparameters one variant may use; variants
// ignore the blocks they do not declare.
type VariantPriors struct {
	ObsPrecision  GammaPrior  `yaml:"obsPrecision"`
	ProcPrecision GammaPrior  `yaml:"procPrecision"`
	InitState     NormalPrior `yaml:"initState"`
	RainCoef      NormalPrior `yaml:"rainCoef"`
	Level         NormalPrior `yaml:"level"`
	SeasonCoef    NormalPrior `yaml:"seasonCoef"`
	MissingRain   NormalPrior `yaml:"missingRain"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// LoadConfig initialises Config from defaults overlaid with a YAML file.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	diffuse := NormalPrior{Mean: 0, Precision: 1e-4}
	weak := GammaPrior{Shape: 0.01, Rate: 0.01}
	base := VariantPriors{
		ObsPrecision:  weak,
		ProcPrecision: weak,
		InitState:     NormalPrior{Mean: 0, Precision: 1e-4},
		RainCoef:      diffuse,
		Level:         diffuse,
		SeasonCoef:    diffuse,
		MissingRain:   NormalPrior{Mean: 2, Precision: 0.1},
	}
	return Config{
		Input: InputConfig{
			Path:       "data/streamflow_daily.csv",
			DateColumn: "date",
			FlowColumn: "flow",
			RainColumn: "rain",
			DateFormat: "2006-01-02",
		},
		Window: WindowConfig{
			RainStart: "1987-07-01",
			Cutoff:    "1988-03-01",
		},
		Sampler: SamplerConfig{Chains: 3, Seed: 1},
		Runs: RunConfig{
			DiagnosticIters: 2000,
			ForecastIters:   5000,
			BurnIn:          1000,
			Quantiles:       []float64{0.025, 0.5, 0.975},
		},
		Priors: PriorsConfig{
			RandomWalk:    base,
			RainfallWalk:  base,
			MeanReverting: base,
		},
		Output:  OutputConfig{Dir: "output"},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func (c *Config) validate() error {
	if c.Sampler.Chains < 1 {
		return fmt.Errorf("config: chains must be >= 1, got %d", c.Sampler.Chains)
	}
	if c.Runs.BurnIn < 0 || c.Runs.BurnIn >= c.Runs.ForecastIters {
		return fmt.Errorf("config: burn-in %d must be in [0, forecastIters)", c.Runs.BurnIn)
	}
	if len(c.Runs.Quantiles) != 3 {
		return fmt.Errorf("config: need lower/median/upper quantiles, got %d values", len(c.Runs.Quantiles))
	}
	for _, q := range c.Runs.Quantiles {
		if q <= 0 || q >= 1 {
			return fmt.Errorf("config: quantile %v outside (0,1)", q)
		}
	}
	if _, err := c.RainStartDate(); err != nil {
		return err
	}
	if _, err := c.CutoffDate(); err != nil {
		return err
	}
	return nil
}

// RainStartDate parses the rainfall-availability start date.
func (c *Config) RainStartDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Window.RainStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: rainStart: %w", err)
	}
	return t, nil
}

// CutoffDate parses the holdout cutoff date.
func (c *Config) CutoffDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Window.Cutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: cutoff: %w", err)
	}
	return t, nil
}
