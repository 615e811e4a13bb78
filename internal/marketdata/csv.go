package marketdata

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadCSV reads a daily dataset from a CSV file with a header row. Required
// columns are "date" (YYYY-MM-DD) and "close"; "vol_index" is optional and may
// be empty on any row. The result is feature-enriched via BuildFrame.
func LoadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset %s has no data rows", path)
	}

	cols := map[string]int{}
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("dataset %s missing required column %q", path, "date")
	}
	closeCol, ok := cols["close"]
	if !ok {
		return nil, fmt.Errorf("dataset %s missing required column %q", path, "close")
	}
	volCol, hasVol := cols["vol_index"]

	series := Series{}
	if hasVol {
		series.VolIndex = make([]float64, 0, len(records)-1)
	}

	for i, row := range records[1:] {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date %q: %w", i+2, row[dateCol], err)
		}
		closePrice, err := strconv.ParseFloat(strings.TrimSpace(row[closeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid close %q: %w", i+2, row[closeCol], err)
		}

		series.Dates = append(series.Dates, date)
		series.Closes = append(series.Closes, closePrice)

		if hasVol {
			raw := strings.TrimSpace(row[volCol])
			if raw == "" {
				series.VolIndex = append(series.VolIndex, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid vol_index %q: %w", i+2, raw, err)
			}
			series.VolIndex = append(series.VolIndex, v)
		}
	}

	return BuildFrame(series)
}
