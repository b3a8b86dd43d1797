package pipeline

import "context"

// Payload should be implemented by values that can travel through a
// pipeline instance.
type Payload interface {
	// Clone returns a deep-copy of the original payload.
	Clone() Payload

	// MarkAsProcessed is invoked exactly once, either when the payload
	// reaches the pipeline sink or when it gets discarded by one of the
	// pipeline stages.
	MarkAsProcessed()
}

// Source should be implemented by types that generate the payload instances
// fed into the first stage of a pipeline.
type Source interface {
	// Next advances the source to its next payload. It returns false when
	// no more payloads are available or an error occurs.
	Next(context.Context) bool

	// Payload returns the payload at the current source position.
	Payload() Payload

	// Error returns the last error observed by the source.
	Error() error
}

// Sink should be implemented by types that consume the payloads emitted by
// the last stage of a pipeline.
type Sink interface {
	// Consume processes a payload emitted out of the pipeline.
	Consume(context.Context, Payload) error
}

// Processor is implemented by types that transform payloads as part of a
// pipeline stage.
type Processor interface {
	// Process operates on the input payload and returns a payload to be
	// forwarded to the next stage. Returning a nil payload discards the
	// input without it ever reaching the sink.
	//
	// Errors returned by Process are treated as payload-scoped: they are
	// reported through the stage error channel but do not stop the stage.
	// Processors that need to halt the whole run should instead signal the
	// run owner through their own side channel (see scraper's stats sink).
	Process(context.Context, Payload) (Payload, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(context.Context, Payload) (Payload, error)

// Process calls f(ctx, p).
func (f ProcessorFunc) Process(ctx context.Context, p Payload) (Payload, error) {
	return f(ctx, p)
}

// StageParams carries the channel plumbing a stage runner needs in order to
// execute. A new instance is handed to each stage by the pipeline.
type StageParams interface {
	// StageIndex returns the position of this stage in the pipeline.
	StageIndex() int

	// Input returns the stage's read-only payload input channel.
	Input() <-chan Payload

	// Output returns the stage's write-only payload output channel.
	Output() chan<- Payload

	// Error returns a write-only channel for reporting processing errors.
	Error() chan<- error
}

// StageRunner is implemented by types that can be strung together to form a
// multi-stage pipeline.
type StageRunner interface {
	// Run executes the stage's processing loop. Calls to Run block until
	// the stage input channel is closed or the provided context expires.
	Run(context.Context, StageParams)
}
