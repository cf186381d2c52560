package plugin

import (
	"fmt"

	"go.uber.org/zap"
)

// Option configures a Builder
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for assembly diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type bucket[S any] struct {
	main     Mutator[S]
	declared bool
	pre      []Mutator[S]
	post     []Mutator[S]
}

// Builder collects stages and mutators during application assembly. It is
// not safe for concurrent use; call Build once assembly is done.
type Builder[S any] struct {
	order   []string
	buckets map[string]*bucket[S]
	logger  *zap.Logger
}

// NewBuilder creates an empty builder
func NewBuilder[S any](opts ...Option) *Builder[S] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Builder[S]{
		buckets: make(map[string]*bucket[S]),
		logger:  o.logger,
	}
}

func (b *Builder[S]) bucket(name string) *bucket[S] {
	bk, ok := b.buckets[name]
	if !ok {
		bk = &bucket[S]{}
		b.buckets[name] = bk
	}
	return bk
}

// Declare registers each stage's main transformation under its name
func (b *Builder[S]) Declare(stages ...Stage[S]) error {
	for _, st := range stages {
		if st.Name == "" {
			return fmt.Errorf("plugin: stage name is required")
		}
		if st.Main == nil {
			return fmt.Errorf("plugin: stage %s has no main transformation", st.Name)
		}
		bk := b.bucket(st.Name)
		if bk.declared {
			return fmt.Errorf("%w: %s", ErrDuplicateStage, st.Name)
		}
		bk.main = st.Main
		bk.declared = true
		b.order = append(b.order, st.Name)
	}
	return nil
}

// Stage declares a single stage
func (b *Builder[S]) Stage(name string, main Mutator[S]) error {
	return b.Declare(Stage[S]{Name: name, Main: main})
}

// MustStage panics if the stage cannot be declared
func (b *Builder[S]) MustStage(name string, main Mutator[S]) {
	if err := b.Stage(name, main); err != nil {
		panic(err)
	}
}

// Append adds a pre or post mutator to a stage's bucket. The stage does not
// need to be declared yet.
func (b *Builder[S]) Append(stage string, timing Timing, m Mutator[S]) error {
	if m == nil {
		return fmt.Errorf("plugin: nil mutator for stage %s", stage)
	}
	bk := b.bucket(stage)
	switch timing {
	case Pre:
		bk.pre = append(bk.pre, m)
	case Post:
		bk.post = append(bk.post, m)
	case Main:
		return fmt.Errorf("%w: %s", ErrMainTiming, stage)
	default:
		return fmt.Errorf("plugin: invalid timing %s for stage %s", timing, stage)
	}
	return nil
}

// AppendAnnotated adds an annotated mutator to its bucket
func (b *Builder[S]) AppendAnnotated(m AnnotatedMutator[S]) error {
	return b.Append(m.Stage, m.Timing, m.Mutator)
}

// Build freezes the collected stages into a Registry. Mutators attached to
// stages that were never declared are kept but can never run.
func (b *Builder[S]) Build() *Registry[S] {
	stages := make(map[string]entry[S], len(b.buckets))
	for name, bk := range b.buckets {
		if !bk.declared {
			b.logger.Warn("mutators attached to undeclared stage",
				zap.String("stage", name),
				zap.Int("pre", len(bk.pre)),
				zap.Int("post", len(bk.post)),
			)
		}
		stages[name] = entry[S]{
			declared: bk.declared,
			main:     bk.main,
			pre:      append([]Mutator[S](nil), bk.pre...),
			post:     append([]Mutator[S](nil), bk.post...),
		}
	}
	return &Registry[S]{
		order:  append([]string(nil), b.order...),
		stages: stages,
		logger: b.logger,
	}
}
