// Package optimize sweeps strategy parameters: exhaustive grids and
// budget-bounded continuous search. Evaluations are memoized so repeated
// parameter combinations never re-run a backtest.
package optimize

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/modules/backtest"
)

// EvaluateFunc runs one backtest for a parameter combination and returns its
// metrics. Errors and panics are contained per combination.
type EvaluateFunc func(ctx context.Context, params map[string]float64) (backtest.Metrics, error)

// Evaluation is one scored parameter combination. Failed combinations carry
// a negative-infinity value so they sort last but stay visible.
type Evaluation struct {
	Params map[string]float64 `json:"params"`
	Value  float64            `json:"value"`
	Failed bool               `json:"failed"`
	Error  string             `json:"error,omitempty"`
}

// MarshalJSON emits null for the negative-infinity value of a failed
// combination, which encoding/json otherwise rejects.
func (e Evaluation) MarshalJSON() ([]byte, error) {
	type alias Evaluation
	return json.Marshal(struct {
		alias
		Value interface{} `json:"value"`
	}{alias(e), finiteOrNil(e.Value)})
}

// Report is the result of a sweep, identical in shape for grid and
// continuous modes.
type Report struct {
	Objective   string             `json:"objective"`
	BestParams  map[string]float64 `json:"best_params"`
	BestValue   float64            `json:"best_value"`
	Evaluations []Evaluation       `json:"evaluations"` // sorted best first
}

// MarshalJSON emits null for a best value no combination produced.
func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(struct {
		alias
		BestValue interface{} `json:"best_value"`
	}{alias(r), finiteOrNil(r.BestValue)})
}

func finiteOrNil(v float64) interface{} {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

// Optimizer evaluates parameter combinations against a named objective.
type Optimizer struct {
	objective string
	evaluate  EvaluateFunc
	workers   int
	cache     sync.Map // canonical key -> Evaluation
	log       zerolog.Logger

	fallbackOnce sync.Once
}

// NewOptimizer creates an Optimizer. The objective name must be one that
// backtest.Metrics can extract.
func NewOptimizer(log zerolog.Logger, objective string, workers int, evaluate EvaluateFunc) (*Optimizer, error) {
	if _, ok := (backtest.Metrics{}).Objective(objective); !ok {
		return nil, fmt.Errorf("unknown objective %q", objective)
	}
	if workers <= 0 {
		workers = 4
	}
	return &Optimizer{
		objective: objective,
		evaluate:  evaluate,
		workers:   workers,
		log:       log.With().Str("component", "optimizer").Logger(),
	}, nil
}

// CanonicalKey builds the cache key for a parameter combination: sorted
// key=value pairs, so insertion order never matters.
func CanonicalKey(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(params[k], 'g', -1, 64)
	}
	return strings.Join(parts, "&")
}

// Grid exhaustively evaluates the cartesian product of the parameter lists
// and returns all evaluations sorted by objective, best first.
func (o *Optimizer) Grid(ctx context.Context, grid map[string][]float64) (*Report, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty parameter grid")
	}
	for name, values := range grid {
		if len(values) == 0 {
			return nil, fmt.Errorf("parameter %s has no values", name)
		}
	}

	combos := expandGrid(grid)
	o.log.Info().
		Int("combinations", len(combos)).
		Str("objective", o.objective).
		Msg("starting grid sweep")

	evals := o.evaluateAll(ctx, combos)
	return o.report(evals), nil
}

// expandGrid produces the cartesian product in deterministic order (sorted
// parameter names, values in listed order).
func expandGrid(grid map[string][]float64) []map[string]float64 {
	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []map[string]float64{{}}
	for _, name := range names {
		next := make([]map[string]float64, 0, len(combos)*len(grid[name]))
		for _, combo := range combos {
			for _, value := range grid[name] {
				expanded := make(map[string]float64, len(combo)+1)
				for k, v := range combo {
					expanded[k] = v
				}
				expanded[name] = value
				next = append(next, expanded)
			}
		}
		combos = next
	}
	return combos
}

// evaluateAll fans combinations over a worker pool, deduplicating through the
// memo cache.
func (o *Optimizer) evaluateAll(ctx context.Context, combos []map[string]float64) []Evaluation {
	type job struct {
		index int
		combo map[string]float64
	}

	jobs := make(chan job)
	results := make([]Evaluation, len(combos))
	var wg sync.WaitGroup

	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = o.evaluateOne(ctx, j.combo)
			}
		}()
	}

	for i, combo := range combos {
		jobs <- job{index: i, combo: combo}
	}
	close(jobs)
	wg.Wait()

	return results
}

// evaluateOne runs a single combination, consulting the cache first. A panic
// or error inside the evaluation marks the combination failed and the sweep
// continues.
func (o *Optimizer) evaluateOne(ctx context.Context, params map[string]float64) Evaluation {
	key := CanonicalKey(params)
	if cached, ok := o.cache.Load(key); ok {
		return cached.(Evaluation)
	}

	eval := o.run(ctx, params)
	actual, _ := o.cache.LoadOrStore(key, eval)
	return actual.(Evaluation)
}

func (o *Optimizer) run(ctx context.Context, params map[string]float64) (eval Evaluation) {
	eval = Evaluation{Params: params}

	defer func() {
		if r := recover(); r != nil {
			eval.Value = math.Inf(-1)
			eval.Failed = true
			eval.Error = fmt.Sprintf("panic: %v", r)
			o.log.Warn().Str("params", CanonicalKey(params)).Str("error", eval.Error).Msg("combination panicked")
		}
	}()

	metrics, err := o.evaluate(ctx, params)
	if err != nil {
		eval.Value = math.Inf(-1)
		eval.Failed = true
		eval.Error = err.Error()
		o.log.Warn().Str("params", CanonicalKey(params)).Err(err).Msg("combination failed")
		return eval
	}

	value, _ := metrics.Objective(o.objective)
	if math.IsNaN(value) {
		value = math.Inf(-1)
		eval.Failed = true
		eval.Error = "objective is NaN"
	}
	eval.Value = value
	return eval
}

// report sorts evaluations best-first (ties broken by canonical key, so the
// ordering is reproducible) and extracts the winner.
func (o *Optimizer) report(evals []Evaluation) *Report {
	sort.SliceStable(evals, func(a, b int) bool {
		if evals[a].Value != evals[b].Value {
			return evals[a].Value > evals[b].Value
		}
		return CanonicalKey(evals[a].Params) < CanonicalKey(evals[b].Params)
	})

	report := &Report{
		Objective:   o.objective,
		Evaluations: evals,
		BestValue:   math.Inf(-1),
	}
	if len(evals) > 0 && !evals[0].Failed {
		report.BestParams = evals[0].Params
		report.BestValue = evals[0].Value
	}
	return report
}
