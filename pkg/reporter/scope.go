package reporter

import "errors"

// Guard force-finishes a set of stages when it is closed. Build one with
// Reporter.Scope or Reporter.ScopeAll and close it with defer, or hand it a
// function via Run.
type Guard[K comparable] struct {
	r      *Reporter[K]
	keys   []K
	all    bool
	closed bool
}

// Scope returns a Guard over exactly the given stages. An empty selection
// finalizes nothing.
func (r *Reporter[K]) Scope(stages ...K) *Guard[K] {
	g := &Guard[K]{r: r}
	seen := make(map[K]struct{}, len(stages))
	for _, k := range stages {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		g.keys = append(g.keys, k)
	}
	return g
}

// ScopeAll returns a Guard over every stage registered at the time it is
// closed, including stages registered after ScopeAll was called.
func (r *Reporter[K]) ScopeAll() *Guard[K] {
	return &Guard[K]{r: r, all: true}
}

// Close force-finishes every selected stage that is still registered. Stages
// that were already finished are skipped. Only the first call has an effect.
// Errors from individual stages are joined; one failing stage does not stop
// the others from being finalized.
func (g *Guard[K]) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true

	targets := g.keys
	if g.all {
		targets = g.r.RegisteredStages()
	}
	var errs []error
	for _, key := range targets {
		if _, ok := g.r.stages[key]; !ok {
			continue
		}
		if err := g.r.ForceFinish(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run calls fn and closes the Guard on every exit path. The error from fn is
// returned joined with any finalization error. A panic in fn propagates after
// the stages have been finalized.
func (g *Guard[K]) Run(fn func() error) (err error) {
	defer func() {
		if cerr := g.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn()
}
