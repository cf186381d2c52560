// Package plugin provides named processing stages whose behaviour can be
// extended by independently written plugins.
//
// An application declares its stages on a Builder. Each stage has a main
// transformation over the application state. Plugins contribute mutators that
// run immediately before (Pre) or after (Post) a named stage:
//
//	b := plugin.NewBuilder[*App]()
//	b.MustStage("add_arguments", (*App).addArguments)
//	if err := plugin.RegisterPlugins(b, plugins, defaultTemplate); err != nil {
//		return err
//	}
//	reg := b.Build()
//	app, err := reg.Run("add_arguments", app)
//
// A stage runs its pre mutators in registration order, then the main
// transformation, then its post mutators in registration order. A mutator
// returns the replacement state, or Keep to leave the state as it was.
//
// The registry returned by Build is read-only and safe to share once assembly
// is finished.
package plugin
