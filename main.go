package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

func main() {
	// expect at most 1 argument: path to the analysis config
	configPath := ""
	if len(os.Args) > 2 {
		fmt.Println("Usage: go run . [config.yaml]")
		return
	}
	if len(os.Args) == 2 {
		configPath = os.Args[1]
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatalw("analysis failed", "error", err)
	}
}

func run(cfg *Config, log *zap.SugaredLogger) error {
	rainStart, err := cfg.RainStartDate()
	if err != nil {
		return err
	}
	cutoff, err := cfg.CutoffDate()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return err
	}

	// 1. Load the daily series
	raw, err := LoadCSVToDailySeries(cfg.Input)
	if err != nil {
		return err
	}
	log.Infow("loaded series", "path", cfg.Input.Path, "rows", raw.Len())

	// 2. Restrict to the period with rainfall coverage
	series, err := FilterFromDate(raw, rainStart)
	if err != nil {
		return err
	}
	log.Infow("calibration window",
		"from", series.Date(0).Format("2006-01-02"),
		"to", series.Date(series.Len()-1).Format("2006-01-02"),
		"rows", series.Len(),
		"missingFlow", series.Len()-CountObserved(series.Flow),
		"missingRain", series.Len()-CountObserved(series.Rain))

	// 3. Mask the holdout and derive covariates from the fitting series
	split := MaskHoldout(series, cutoff)
	data := DeriveCovariates(split.Fit)
	log.Infow("holdout masked", "cutoff", cutoff.Format("2006-01-02"),
		"fittedObs", CountObserved(data.LogFlow))

	// 4. Fit the three model variants in order of increasing structure
	specs := []ModelSpec{
		NewRandomWalkSpec(cfg.Priors.RandomWalk),
		NewRainfallWalkSpec(cfg.Priors.RainfallWalk),
		NewMeanRevertingSpec(cfg.Priors.MeanReverting),
	}

	var summary []ParameterSummary
	for _, spec := range specs {
		rows, err := fitAndReport(cfg, log, spec, data, split)
		if err != nil {
			return err
		}
		summary = append(summary, rows...)
	}

	// 5. Write the pooled parameter table
	summaryPath := filepath.Join(cfg.Output.Dir, "posterior_summary.csv")
	if err := OutputSummariesToCSV(summaryPath, summary); err != nil {
		return err
	}
	log.Infow("posterior summary written", "path", summaryPath)
	return nil
}

// fitAndReport runs both sampling phases for one variant: a short run for
// the convergence look at the global parameters, then a longer run on the
// same compiled model monitoring the latent state for the forecast band.
func fitAndReport(cfg *Config, log *zap.SugaredLogger, spec ModelSpec, data *ModelData, split *HoldoutSplit) ([]ParameterSummary, error) {
	name := spec.Variant.String()
	log.Infow("compiling model", "model", name, "chains", cfg.Sampler.Chains)

	model, err := Compile(spec, data, cfg.Sampler)
	if err != nil {
		return nil, err
	}

	// Phase 1: global parameters only
	scalars := spec.scalarMonitors()
	diag, err := model.Sample(RunOptions{Iterations: cfg.Runs.DiagnosticIters, Monitors: scalars})
	if err != nil {
		return nil, err
	}
	diagPath := filepath.Join(cfg.Output.Dir, name+"_diagnostics.png")
	if err := SaveDiagnostics(diag, scalars, diagPath); err != nil {
		return nil, err
	}
	log.Infow("diagnostics written", "model", name, "path", diagPath)

	// Phase 2: continue the chains, now monitoring the state vector
	monitors := append(append([]string(nil), scalars...), MonState)
	if spec.Variant == MeanReverting {
		monitors = append(monitors, MonMissingRain)
	}
	full, err := model.Sample(RunOptions{Iterations: cfg.Runs.ForecastIters, Monitors: monitors})
	if err != nil {
		return nil, err
	}

	retained := full.Discard(cfg.Runs.BurnIn)

	// Mixing check on the retained draws; divergence is reported, not fatal
	rhats, convErr := CheckConvergence(retained, scalars, 1.1)
	var div *SamplerDivergenceError
	if errors.As(convErr, &div) {
		log.Warnw("possible divergence, inspect the trace plots",
			"model", name, "params", div.Params)
	} else if convErr != nil {
		return nil, convErr
	}

	band, err := NaturalScaleBand(retained, data.Dates, cfg.Runs.Quantiles)
	if err != nil {
		return nil, err
	}
	plotPath := filepath.Join(cfg.Output.Dir, name+"_forecast.png")
	if err := SaveForecastPlot(band, split, name, plotPath); err != nil {
		return nil, err
	}
	log.Infow("forecast band written", "model", name, "path", plotPath)

	var rows []ParameterSummary
	for _, param := range scalars {
		mean, qs, err := retained.SummarizeScalar(param, cfg.Runs.Quantiles)
		if err != nil {
			return nil, err
		}
		rows = append(rows, ParameterSummary{
			Model: name, Param: param,
			Mean: mean, Lower: qs[0], Median: qs[1], Upper: qs[2],
			Rhat: rhats[param],
		})
	}
	return rows, nil
}
