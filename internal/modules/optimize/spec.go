package optimize

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Spec describes one sweep: which objective to maximize and either a grid or
// a bounded continuous search.
type Spec struct {
	Objective string               `toml:"objective"`
	Mode      string               `toml:"mode"` // grid or continuous
	Budget    int                  `toml:"budget"`
	Grid      map[string][]float64 `toml:"grid"`
	Bounds    map[string][]float64 `toml:"bounds"` // [low, high] pairs
}

// Validate checks the sweep definition is runnable.
func (s Spec) Validate() error {
	switch s.Mode {
	case "grid":
		if len(s.Grid) == 0 {
			return fmt.Errorf("grid mode needs a [grid] table")
		}
	case "continuous":
		if len(s.Bounds) == 0 {
			return fmt.Errorf("continuous mode needs a [bounds] table")
		}
		if s.Budget <= 0 {
			return fmt.Errorf("continuous mode needs a positive budget")
		}
		for name, pair := range s.Bounds {
			if len(pair) != 2 {
				return fmt.Errorf("bounds for %s must be a [low, high] pair", name)
			}
		}
	default:
		return fmt.Errorf("unknown sweep mode %q", s.Mode)
	}
	if s.Objective == "" {
		return fmt.Errorf("sweep needs an objective")
	}
	return nil
}

// BoundsMap converts the TOML pairs into typed bounds.
func (s Spec) BoundsMap() map[string]Bounds {
	bounds := make(map[string]Bounds, len(s.Bounds))
	for name, pair := range s.Bounds {
		bounds[name] = Bounds{Low: pair[0], High: pair[1]}
	}
	return bounds
}

// LoadSpec reads a sweep spec from a TOML file.
func LoadSpec(path string) (Spec, error) {
	var spec Spec
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return spec, fmt.Errorf("sweep spec not found: %s", path)
	}
	if _, err := toml.DecodeFile(path, &spec); err != nil {
		return spec, fmt.Errorf("failed to parse sweep spec: %w", err)
	}
	if spec.Objective == "" {
		spec.Objective = "sharpe_ratio"
	}
	if spec.Mode == "" {
		spec.Mode = "grid"
	}
	if err := spec.Validate(); err != nil {
		return spec, err
	}
	return spec, nil
}
