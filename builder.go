package goldenpath

func NewBuilder[Type any](name string) *Builder[Type] {
	if name == "" {
		panic("pipeline name must not be empty")
	}

	return &Builder[Type]{
		pipeline: &Pipeline[Type]{
			name: name,
		},
	}
}

type Builder[Type any] struct {
	pipeline *Pipeline[Type]
}

// AddStep appends a named step to the pipeline. Steps execute strictly in the
// order they were added. Step names key the shared breaker registry and so
// need to be unique within the pipeline.
func (b *Builder[Type]) AddStep(name string, fn StepFunc[Type]) {
	if name == "" {
		panic("step name must not be empty")
	}

	for _, s := range b.pipeline.steps {
		if s.name == name {
			panic("step names need to be unique")
		}
	}

	b.pipeline.steps = append(b.pipeline.steps, step[Type]{
		name: name,
		fn:   fn,
	})
}

// WithFallback attaches a best-effort fallback executed when a step fails
// terminally. The fallback receives the run as left by the failed step along
// with the terminal error.
func (b *Builder[Type]) WithFallback(fn FallbackFunc[Type]) {
	b.pipeline.fallback = fn
}

func (b *Builder[Type]) Build(opts ...BuildOption) *Pipeline[Type] {
	if len(b.pipeline.steps) == 0 {
		panic("pipeline needs at least one step")
	}

	o := defaultBuildOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.correlationPrefix == "" {
		o.correlationPrefix = b.pipeline.name
	}

	b.pipeline.opts = o
	b.pipeline.logger = &logger{inner: o.log, debugMode: o.debugMode}

	return b.pipeline
}
