package plugin

import (
	"errors"
	"fmt"
)

// Timing says when a mutator runs relative to its stage's main transformation
type Timing int

const (
	// Pre mutators run before the main transformation
	Pre Timing = iota
	// Main is the stage's own transformation
	Main
	// Post mutators run after the main transformation
	Post
)

// String returns the timing name
func (t Timing) String() string {
	switch t {
	case Pre:
		return "pre"
	case Main:
		return "main"
	case Post:
		return "post"
	default:
		return fmt.Sprintf("Timing(%d)", int(t))
	}
}

// ParseTiming converts "pre", "main" or "post" into a Timing
func ParseTiming(s string) (Timing, error) {
	switch s {
	case "pre":
		return Pre, nil
	case "main":
		return Main, nil
	case "post":
		return Post, nil
	}
	return 0, fmt.Errorf("plugin: unknown timing %q", s)
}

// Keep is returned by a mutator that leaves the state unchanged. The state
// value returned alongside it is ignored.
var Keep = errors.New("plugin: keep current state")

var (
	// ErrUnknownStage is returned when running a stage that was never declared
	ErrUnknownStage = errors.New("plugin: unknown stage")
	// ErrDuplicateStage is returned when a stage name is declared twice
	ErrDuplicateStage = errors.New("plugin: stage already declared")
	// ErrMainTiming is returned when appending a mutator with Main timing;
	// main transformations only come from stage declarations
	ErrMainTiming = errors.New("plugin: main transformations must be declared as stages")
	// ErrNoTemplate is returned when a bare mutator is registered without a
	// template to place it
	ErrNoTemplate = errors.New("plugin: no default template for bare mutator")
)

// Mutator transforms an application state
type Mutator[S any] func(state S) (S, error)

// StageRun is a stage bound to a registry, ready to be called on a state
type StageRun[S any] func(state S) (S, error)

// MutatorMethod is a mutator that also receives the plugin instance owning it
type MutatorMethod[P, S any] func(p P, state S) (S, error)

// Stage is a named unit of work with its main transformation
type Stage[S any] struct {
	Name string
	Main Mutator[S]
}

// AnnotatedMutator places a mutator on a stage with a timing
type AnnotatedMutator[S any] struct {
	Stage   string
	Timing  Timing
	Mutator Mutator[S]
}

// Annotate builds an AnnotatedMutator
func Annotate[S any](stage string, timing Timing, m Mutator[S]) AnnotatedMutator[S] {
	return AnnotatedMutator[S]{Stage: stage, Timing: timing, Mutator: m}
}

// Plugin is a bundle of mutators contributed to a host's stages. The returned
// mutators are already bound to the plugin instance.
type Plugin[S any] interface {
	Mutators() []AnnotatedMutator[S]
}

// UnacceptablePluginError is returned when a registered value is neither a
// Plugin nor a mutator function
type UnacceptablePluginError struct {
	Value any
}

func (e *UnacceptablePluginError) Error() string {
	return fmt.Sprintf("unacceptable plugin format: %T (%v)", e.Value, e.Value)
}
