package plugin

// Pipe composes stages left to right into a single stage. The state returned
// by each stage is passed to the next; the first error stops the pipeline.
// Pipe with no stages returns its input unchanged.
func Pipe[S any](stages ...StageRun[S]) StageRun[S] {
	return func(state S) (S, error) {
		var err error
		for _, stage := range stages {
			state, err = stage(state)
			if err != nil {
				return state, err
			}
		}
		return state, nil
	}
}
