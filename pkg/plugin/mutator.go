package plugin

// BoundMutator is a named pre or post mutator declared by a plugin type. It
// is turned into a plain Mutator by binding it to a plugin instance, which
// gives the mutator access to that instance's configuration.
type BoundMutator[P, S any] struct {
	Name   string
	Stage  string
	Timing Timing
	Method MutatorMethod[P, S]
}

// PreMutator declares a mutator running before the given stage
func PreMutator[P, S any](stage, name string, method MutatorMethod[P, S]) BoundMutator[P, S] {
	return BoundMutator[P, S]{Name: name, Stage: stage, Timing: Pre, Method: method}
}

// PostMutator declares a mutator running after the given stage
func PostMutator[P, S any](stage, name string, method MutatorMethod[P, S]) BoundMutator[P, S] {
	return BoundMutator[P, S]{Name: name, Stage: stage, Timing: Post, Method: method}
}

// Bind closes the mutator over a plugin instance
func (b BoundMutator[P, S]) Bind(p P) Mutator[S] {
	method := b.Method
	return func(state S) (S, error) {
		return method(p, state)
	}
}

// Call invokes the mutator directly with an explicit plugin instance
func (b BoundMutator[P, S]) Call(p P, state S) (S, error) {
	return b.Method(p, state)
}

// Annotate binds the mutator to p and places it on its stage
func (b BoundMutator[P, S]) Annotate(p P) AnnotatedMutator[S] {
	return Annotate(b.Stage, b.Timing, b.Bind(p))
}

// BindAll binds every mutator to p. Plugin types use it to implement
// Plugin.Mutators.
func BindAll[P, S any](p P, mutators ...BoundMutator[P, S]) []AnnotatedMutator[S] {
	out := make([]AnnotatedMutator[S], 0, len(mutators))
	for _, m := range mutators {
		out = append(out, m.Annotate(p))
	}
	return out
}
