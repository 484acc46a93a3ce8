package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"time"
)

// LoadCSVToDailySeries reads a daily observation CSV:
//
//   - The first row is a header naming at least the date, flow, and rain
//     columns given in cfg (extra columns are ignored)
//   - Dates use cfg.DateFormat; one row per date
//   - Empty cells, "NA" and "NaN" are missing values
//
// Returns a chronologically sorted DailySeries with NaN placeholders where a
// field is missing, so Flow and Rain stay index-aligned with Dates.
func LoadCSVToDailySeries(cfg InputConfig) (*DailySeries, error) {
	// 1. Open file
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	defer f.Close()

	// 2. Make CSV reader
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	// 3. Read header row and locate the named columns
	header, err := r.Read()
	if err != nil {
		return nil, &DataFormatError{Path: cfg.Path, Msg: "read header", Err: err}
	}

	dateIdx, flowIdx, rainIdx := -1, -1, -1
	for j, name := range header {
		switch name {
		case cfg.DateColumn:
			dateIdx = j
		case cfg.FlowColumn:
			flowIdx = j
		case cfg.RainColumn:
			rainIdx = j
		}
	}
	if dateIdx < 0 || flowIdx < 0 || rainIdx < 0 {
		return nil, &DataFormatError{
			Path: cfg.Path,
			Msg: fmt.Sprintf("header %v missing required columns %q, %q, %q",
				header, cfg.DateColumn, cfg.FlowColumn, cfg.RainColumn),
		}
	}

	type obsRow struct {
		date       time.Time
		flow, rain float64
	}

	var (
		rows []obsRow
		row  int
	)

	// 4. Read each data row
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DataFormatError{Path: cfg.Path, Msg: fmt.Sprintf("read row %d", row+2), Err: err}
		}

		// Skip completely empty lines
		if len(record) == 1 && record[0] == "" {
			continue
		}

		if len(record) != len(header) {
			return nil, &DataFormatError{
				Path: cfg.Path,
				Msg:  fmt.Sprintf("row %d: expected %d columns, got %d", row+2, len(header), len(record)),
			}
		}

		date, err := time.Parse(cfg.DateFormat, record[dateIdx])
		if err != nil {
			return nil, &DataFormatError{Path: cfg.Path, Msg: fmt.Sprintf("row %d: parse date %q", row+2, record[dateIdx]), Err: err}
		}

		flow, err := parseCell(record[flowIdx])
		if err != nil {
			return nil, &DataFormatError{Path: cfg.Path, Msg: fmt.Sprintf("row %d: parse flow %q", row+2, record[flowIdx]), Err: err}
		}
		rain, err := parseCell(record[rainIdx])
		if err != nil {
			return nil, &DataFormatError{Path: cfg.Path, Msg: fmt.Sprintf("row %d: parse rain %q", row+2, record[rainIdx]), Err: err}
		}

		rows = append(rows, obsRow{date: date.UTC(), flow: flow, rain: rain})
		row++
	}

	// 5. Sort chronologically and reject duplicate dates
	sort.Slice(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })
	for i := 1; i < len(rows); i++ {
		if rows[i].date.Equal(rows[i-1].date) {
			return nil, &DataFormatError{
				Path: cfg.Path,
				Msg:  fmt.Sprintf("duplicate date %s", rows[i].date.Format("2006-01-02")),
			}
		}
	}

	// 6. Build the series
	s := &DailySeries{
		Dates: make([]float64, len(rows)),
		Flow:  make([]float64, len(rows)),
		Rain:  make([]float64, len(rows)),
	}
	for i, r := range rows {
		s.Dates[i] = float64(r.date.Unix())
		s.Flow[i] = r.flow
		s.Rain[i] = r.rain
	}

	return s, nil
}

// parseCell reads one numeric cell, mapping the recognized missing-value
// spellings to NaN.
func parseCell(s string) (float64, error) {
	switch s {
	case "", "NA", "NaN", "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// FilterFromDate drops rows before the rainfall-availability start date.
// Returns EmptySeriesError if fewer than 2 rows remain.
func FilterFromDate(s *DailySeries, start time.Time) (*DailySeries, error) {
	cut := float64(start.UTC().Unix())
	i := sort.SearchFloat64s(s.Dates, cut)

	out := &DailySeries{
		Dates: append([]float64(nil), s.Dates[i:]...),
		Flow:  append([]float64(nil), s.Flow[i:]...),
		Rain:  append([]float64(nil), s.Rain[i:]...),
	}
	if out.Len() < 2 {
		return nil, &EmptySeriesError{Rows: out.Len()}
	}
	return out, nil
}

// ParameterSummary is one row of the posterior summary table.
type ParameterSummary struct {
	Model  string
	Param  string
	Mean   float64
	Lower  float64
	Median float64
	Upper  float64
	Rhat   float64
}

// OutputSummariesToCSV writes the per-model parameter posterior table.
func OutputSummariesToCSV(path string, rows []ParameterSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write([]string{"model", "parameter", "mean", "lower", "median", "upper", "rhat"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Model,
			r.Param,
			strconv.FormatFloat(r.Mean, 'g', 6, 64),
			strconv.FormatFloat(r.Lower, 'g', 6, 64),
			strconv.FormatFloat(r.Median, 'g', 6, 64),
			strconv.FormatFloat(r.Upper, 'g', 6, 64),
			strconv.FormatFloat(r.Rhat, 'g', 6, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
