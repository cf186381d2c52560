package plugin

import (
	"fmt"

	"go.uber.org/zap"
)

// Template places a bare mutator on a stage with a timing
type Template[S any] func(m Mutator[S]) AnnotatedMutator[S]

// RegisterPlugins appends the mutators of each plugin to the builder.
//
// A Plugin contributes all of its bound mutators. A bare callable (a Mutator,
// a StageRun or a plain func(S) (S, error)) is placed by template. Any other value fails with an
// *UnacceptablePluginError and stops registration.
func RegisterPlugins[S any](b *Builder[S], plugins []any, template Template[S]) error {
	for i, p := range plugins {
		switch v := p.(type) {
		case Plugin[S]:
			mutators := v.Mutators()
			for _, m := range mutators {
				if err := b.AppendAnnotated(m); err != nil {
					return fmt.Errorf("plugin %d (%T): %w", i, p, err)
				}
			}
			b.logger.Debug("registered plugin",
				zap.String("plugin", fmt.Sprintf("%T", p)),
				zap.Int("mutators", len(mutators)),
			)
		case Mutator[S]:
			if err := registerBare(b, v, template); err != nil {
				return fmt.Errorf("plugin %d: %w", i, err)
			}
		case StageRun[S]:
			if err := registerBare(b, Mutator[S](v), template); err != nil {
				return fmt.Errorf("plugin %d: %w", i, err)
			}
		case func(S) (S, error):
			if err := registerBare(b, Mutator[S](v), template); err != nil {
				return fmt.Errorf("plugin %d: %w", i, err)
			}
		default:
			return &UnacceptablePluginError{Value: p}
		}
	}
	return nil
}

func registerBare[S any](b *Builder[S], m Mutator[S], template Template[S]) error {
	if m == nil {
		return &UnacceptablePluginError{Value: m}
	}
	if template == nil {
		return ErrNoTemplate
	}
	return b.AppendAnnotated(template(m))
}
