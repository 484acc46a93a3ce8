package main

import (
	"fmt"
	"strings"
)

// DataFormatError reports a malformed input file (missing columns, bad cells).
type DataFormatError struct {
	Path string
	Msg  string
	Err  error
}

func (e *DataFormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("data format: %s: %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("data format: %s: %s: %v", e.Path, e.Msg, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// EmptySeriesError reports too few usable rows after filtering.
type EmptySeriesError struct {
	Rows int
}

func (e *EmptySeriesError) Error() string {
	return fmt.Sprintf("empty series: %d usable rows after filtering, need at least 2", e.Rows)
}

// ModelSpecError reports a structurally invalid model declaration.
type ModelSpecError struct {
	Variant ModelVariant
	Msg     string
}

func (e *ModelSpecError) Error() string {
	return fmt.Sprintf("model spec %s: %s", e.Variant, e.Msg)
}

// SamplerDivergenceError flags parameters whose chains do not appear to have
// mixed. It is advisory: the pipeline logs it and keeps going, leaving the
// call on the trace plots to the analyst.
type SamplerDivergenceError struct {
	Params []string // parameter names with split-Rhat above threshold
}

func (e *SamplerDivergenceError) Error() string {
	return fmt.Sprintf("chains may not have converged for: %s", strings.Join(e.Params, ", "))
}
