// Package regimes runs the same strategy configuration across named market
// windows and consolidates the per-window results into one comparable table.
package regimes

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Regime is a named historical window with descriptive metadata. Names must
// be unique within a sweep; results key on them.
type Regime struct {
	Name            string   `toml:"name" json:"name"`
	StartDate       string   `toml:"start_date" json:"start_date"`
	EndDate         string   `toml:"end_date" json:"end_date"`
	Description     string   `toml:"description" json:"description"`
	Characteristics []string `toml:"characteristics" json:"characteristics"`
}

// Start parses the start date.
func (r Regime) Start() (time.Time, error) {
	return time.Parse("2006-01-02", r.StartDate)
}

// End parses the end date.
func (r Regime) End() (time.Time, error) {
	return time.Parse("2006-01-02", r.EndDate)
}

// Validate checks the window is well-formed.
func (r Regime) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("regime has no name")
	}
	start, err := r.Start()
	if err != nil {
		return fmt.Errorf("regime %s: bad start date: %w", r.Name, err)
	}
	end, err := r.End()
	if err != nil {
		return fmt.Errorf("regime %s: bad end date: %w", r.Name, err)
	}
	if !start.Before(end) {
		return fmt.Errorf("regime %s: start %s is not before end %s", r.Name, r.StartDate, r.EndDate)
	}
	return nil
}

type regimeFile struct {
	Regimes []Regime `toml:"regimes"`
}

// LoadRegimes reads a regime list from a TOML file and validates it,
// including name uniqueness.
func LoadRegimes(path string) ([]Regime, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("regimes file not found: %s", path)
	}

	var file regimeFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to parse regimes file: %w", err)
	}
	if len(file.Regimes) == 0 {
		return nil, fmt.Errorf("regimes file %s defines no regimes", path)
	}

	seen := map[string]bool{}
	for _, r := range file.Regimes {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate regime name %q", r.Name)
		}
		seen[r.Name] = true
	}

	return file.Regimes, nil
}
