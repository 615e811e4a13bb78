package optimize

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
)

// Bounds is an inclusive search interval for one parameter.
type Bounds struct {
	Low  float64
	High float64
}

// Surrogate proposes parameter combinations inside bounds. Implementations
// may be model-driven; the optimizer only needs the proposals.
type Surrogate interface {
	Name() string
	Propose(bounds map[string]Bounds, budget int) []map[string]float64
}

// randomSearch is the fallback Surrogate: uniform samples from a fixed seed,
// so repeated runs propose identical points.
type randomSearch struct {
	seed int64
}

func (randomSearch) Name() string { return "random_search" }

func (s randomSearch) Propose(bounds map[string]Bounds, budget int) []map[string]float64 {
	names := make([]string, 0, len(bounds))
	for name := range bounds {
		names = append(names, name)
	}
	sort.Strings(names)

	rng := rand.New(rand.NewSource(s.seed))
	proposals := make([]map[string]float64, budget)
	for i := range proposals {
		point := make(map[string]float64, len(names))
		for _, name := range names {
			b := bounds[name]
			point[name] = b.Low + rng.Float64()*(b.High-b.Low)
		}
		proposals[i] = point
	}
	return proposals
}

// Continuous searches the bounded parameter space with the given surrogate,
// spending at most budget evaluations. A nil surrogate falls back to seeded
// random search. The report has the same shape as a grid sweep.
func (o *Optimizer) Continuous(ctx context.Context, bounds map[string]Bounds, budget int, surrogate Surrogate) (*Report, error) {
	if len(bounds) == 0 {
		return nil, fmt.Errorf("empty parameter bounds")
	}
	if budget <= 0 {
		return nil, fmt.Errorf("evaluation budget must be positive, got %d", budget)
	}
	for name, b := range bounds {
		if b.Low > b.High {
			return nil, fmt.Errorf("parameter %s has inverted bounds [%v, %v]", name, b.Low, b.High)
		}
	}

	if surrogate == nil {
		o.fallbackOnce.Do(func() {
			o.log.Warn().Msg("no surrogate configured, falling back to seeded random search")
		})
		surrogate = randomSearch{seed: 1}
	}

	proposals := surrogate.Propose(bounds, budget)
	if len(proposals) > budget {
		proposals = proposals[:budget]
	}

	o.log.Info().
		Str("surrogate", surrogate.Name()).
		Int("proposals", len(proposals)).
		Str("objective", o.objective).
		Msg("starting continuous sweep")

	evals := o.evaluateAll(ctx, proposals)
	return o.report(evals), nil
}
