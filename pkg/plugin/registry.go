package plugin

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type entry[S any] struct {
	declared bool
	main     Mutator[S]
	pre      []Mutator[S]
	post     []Mutator[S]
}

// Registry maps stage names to their pre mutators, main transformation and
// post mutators. It is immutable once built.
type Registry[S any] struct {
	order  []string
	stages map[string]entry[S]
	logger *zap.Logger
}

// Stages returns the declared stage names in declaration order
func (r *Registry[S]) Stages() []string {
	return append([]string(nil), r.order...)
}

// Has reports whether a stage was declared
func (r *Registry[S]) Has(name string) bool {
	e, ok := r.stages[name]
	return ok && e.declared
}

// Count returns how many mutators run at the given timing of a stage
func (r *Registry[S]) Count(name string, timing Timing) int {
	e, ok := r.stages[name]
	if !ok {
		return 0
	}
	switch timing {
	case Pre:
		return len(e.pre)
	case Post:
		return len(e.post)
	case Main:
		if e.declared {
			return 1
		}
	}
	return 0
}

// Run executes a stage on state: pre mutators, then main, then post mutators
func (r *Registry[S]) Run(name string, state S) (S, error) {
	e, ok := r.stages[name]
	if !ok || !e.declared {
		return state, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}

	r.logger.Debug("running stage",
		zap.String("stage", name),
		zap.Int("pre", len(e.pre)),
		zap.Int("post", len(e.post)),
	)

	state, err := runSequence(name, Pre, state, e.pre)
	if err != nil {
		return state, err
	}
	state, err = runSequence(name, Main, state, []Mutator[S]{e.main})
	if err != nil {
		return state, err
	}
	return runSequence(name, Post, state, e.post)
}

// Stage returns the named stage bound to this registry
func (r *Registry[S]) Stage(name string) StageRun[S] {
	return func(state S) (S, error) {
		return r.Run(name, state)
	}
}

// All returns every declared stage, in declaration order, bound to this
// registry
func (r *Registry[S]) All() []StageRun[S] {
	runs := make([]StageRun[S], 0, len(r.order))
	for _, name := range r.order {
		runs = append(runs, r.Stage(name))
	}
	return runs
}

func runSequence[S any](stage string, timing Timing, state S, mutators []Mutator[S]) (S, error) {
	for i, m := range mutators {
		next, err := m(state)
		if errors.Is(err, Keep) {
			continue
		}
		if err != nil {
			return state, fmt.Errorf("stage %s: %s mutator %d failed: %w", stage, timing, i, err)
		}
		state = next
	}
	return state, nil
}
