// Package collector fills the dataset. Each collector probes one topic,
// writes rows and annotates them with diagnostic messages. Collectors declare
// the collectors whose rows they read; Order turns those declarations into a
// run order and Runner executes it.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
)

// Options are the user-selectable behaviours collectors honour
type Options struct {
	// ConnectTest opens a test connection to every running local instance
	ConnectTest bool
	// Disabled names collectors to skip for this run
	Disabled []string
}

// Env is everything a collector may touch
type Env struct {
	DS       *dataset.Dataset
	Log      diag.Sink
	Probes   *probe.Set
	Options  Options
	Now      func() time.Time
	Progress func(format string, args ...any)
}

// NewEnv builds an Env logging into ds's Message table
func NewEnv(ds *dataset.Dataset, probes *probe.Set, opts Options) *Env {
	return &Env{
		DS:      ds,
		Log:     diag.NewLog(ds),
		Probes:  probes,
		Options: opts,
		Now:     time.Now,
	}
}

func (e *Env) progress(format string, args ...any) {
	if e.Progress != nil {
		e.Progress(format, args...)
	}
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// computer returns the Computer row, nil before the Computer collector ran
func (e *Env) computer() *dataset.Row {
	return e.DS.Table(dataset.TableComputer).First()
}

// Collector is one topic of the audit
type Collector struct {
	Name      string
	DependsOn []string
	// Disabled, when non-empty, retires the collector and says why
	Disabled string
	Collect  func(ctx context.Context, env *Env)
}

// Order sorts collectors so that each runs after all of its dependencies.
// Collectors are taken first-come first-served: those without dependencies in
// input order, the rest in the order their last dependency was placed.
// Unknown dependencies and cycles are errors.
func Order(collectors []Collector) ([]Collector, error) {
	index := make(map[string]int, len(collectors))
	for n, c := range collectors {
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate collector %q", c.Name)
		}
		index[c.Name] = n
	}

	indegree := make([]int, len(collectors))
	dependents := make([][]int, len(collectors))
	for n, c := range collectors {
		for _, dep := range c.DependsOn {
			d, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("collector %q depends on unknown collector %q", c.Name, dep)
			}
			indegree[n]++
			dependents[d] = append(dependents[d], n)
		}
	}

	var ready []int
	for n := range collectors {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	ordered := make([]Collector, 0, len(collectors))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		ordered = append(ordered, collectors[n])
		for _, m := range dependents[n] {
			indegree[m]--
			if indegree[m] == 0 {
				ready = append(ready, m)
			}
		}
	}

	if len(ordered) != len(collectors) {
		var stuck []string
		for n, c := range collectors {
			if indegree[n] > 0 {
				stuck = append(stuck, c.Name)
			}
		}
		return nil, fmt.Errorf("collector dependency cycle among: %s", strings.Join(stuck, ", "))
	}
	return ordered, nil
}

// RunResult is the outcome of a single collector
type RunResult struct {
	Collector string        `json:"collector"`
	Duration  time.Duration `json:"duration"`
	Skipped   string        `json:"skipped,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Runner executes collectors in dependency order
type Runner struct {
	collectors []Collector
}

// NewRunner orders collectors, failing on an invalid dependency graph
func NewRunner(collectors []Collector) (*Runner, error) {
	ordered, err := Order(collectors)
	if err != nil {
		return nil, err
	}
	return &Runner{collectors: ordered}, nil
}

// Collectors returns the run order
func (r *Runner) Collectors() []Collector {
	out := make([]Collector, len(r.collectors))
	copy(out, r.collectors)
	return out
}

// Run executes each collector sequentially. A panicking collector is logged
// as an Exception on the Computer table and the run continues.
func (r *Runner) Run(ctx context.Context, env *Env) []RunResult {
	disabled := make(map[string]bool, len(env.Options.Disabled))
	for _, name := range env.Options.Disabled {
		disabled[strings.ToLower(name)] = true
	}

	results := make([]RunResult, 0, len(r.collectors))
	for _, c := range r.collectors {
		res := RunResult{Collector: c.Name}
		switch {
		case c.Disabled != "":
			res.Skipped = c.Disabled
		case c.Collect == nil:
			res.Skipped = "no collect function"
		case disabled[strings.ToLower(c.Name)]:
			res.Skipped = "disabled by configuration"
		case ctx.Err() != nil:
			res.Skipped = ctx.Err().Error()
		}
		if res.Skipped != "" {
			env.progress("Skipping %s: %s", c.Name, res.Skipped)
			results = append(results, res)
			continue
		}

		env.progress("Collecting %s", c.Name)
		start := time.Now()
		if err := runOne(ctx, env, c); err != nil {
			res.Error = err.Error()
		}
		res.Duration = time.Since(start)
		results = append(results, res)
	}
	return results
}

func runOne(ctx context.Context, env *Env, c Collector) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("collector %s panicked: %v", c.Name, rec)
			diag.LogException(env.Log, env.DS.Table(dataset.TableComputer), err, "Collector %s stopped early", c.Name)
		}
	}()
	c.Collect(ctx, env)
	return nil
}
