/*
pipeline provides an asynchronous multi-stage processing abstraction with a
synchronous entry point. A pipeline is assembled from an input source, zero
or more processing stages and an output sink.

Processing errors raised by individual stage processors are payload-scoped:
they are surfaced to the caller of Execute once the run drains, but they do
not interrupt the run. Only source and sink failures abort a pipeline early.
*/
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Pipeline executes payloads from a source through an ordered set of stage
// runners and into a sink.
type Pipeline struct {
	stages []StageRunner
}

// New returns a pipeline instance assembled from the provided stages.
func New(stages ...StageRunner) *Pipeline {
	return &Pipeline{stages: stages}
}

// Execute reads the contents of the specified source, sends them through the
// stages of the pipeline and directs the results to the specified sink.
//
// Calls to Execute block until:
//   - all data from the source has been processed or discarded, or
//   - the sink reports an error, or
//   - the supplied context is cancelled.
//
// It is safe to call Execute concurrently with different sources and sinks.
func (p *Pipeline) Execute(ctx context.Context, src Source, sink Sink) error {
	var wg sync.WaitGroup
	executionCtx, cancelFn := context.WithCancel(ctx)

	// The output of the i_th stage feeds the i+1_th stage. One extra channel
	// connects the source directly to the sink when no stages are configured.
	stageChans := make([]chan Payload, len(p.stages)+1)
	for i := 0; i < len(stageChans); i++ {
		stageChans[i] = make(chan Payload)
	}

	// Buffered so that every pipeline component can report at least one
	// error without blocking.
	errChan := make(chan error, len(p.stages)+2)

	for i := 0; i < len(p.stages); i++ {
		wg.Add(1)

		go func(index int) {
			defer wg.Done()

			p.stages[index].Run(executionCtx, &stageParams{
				stage:   index,
				inChan:  stageChans[index],
				outChan: stageChans[index+1],
				errChan: errChan,
			})

			// A returning stage signals the next one that no more data is
			// available by closing its output channel.
			close(stageChans[index+1])
		}(i)
	}

	wg.Add(2)

	go func() {
		sourceWorker(executionCtx, src, stageChans[0], errChan)

		// Once the source runs dry, closing the first stage channel starts a
		// cascade of channel closures that drains the whole pipeline.
		close(stageChans[0])
		wg.Done()
	}()

	go func() {
		if err := sinkWorker(executionCtx, sink, stageChans[len(stageChans)-1]); err != nil {
			mayEmitError(err, errChan)

			// A sink failure is systemic: stop the run.
			cancelFn()
		}
		wg.Done()
	}()

	go func() {
		wg.Wait()

		close(errChan)
		cancelFn()
	}()

	// Accumulate payload-scoped stage errors and any source/sink failure.
	// The loop only finishes once every worker has exited.
	var err error
	for stageErr := range errChan {
		err = multierror.Append(err, stageErr)
	}

	return err
}

// sourceWorker feeds payload instances from the source into the channel
// serving the first pipeline stage.
func sourceWorker(
	ctx context.Context, src Source,
	outChan chan<- Payload, errChan chan<- error,
) {
	for src.Next(ctx) {
		p := src.Payload()

		select {
		case <-ctx.Done():
			return
		case outChan <- p:
		}
	}

	if err := src.Error(); err != nil {
		mayEmitError(fmt.Errorf("pipeline source: %w", err), errChan)
	}
}

// sinkWorker drains the final stage channel into the sink. The first sink
// error is returned to the caller and aborts the run.
func sinkWorker(ctx context.Context, sink Sink, inChan <-chan Payload) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-inChan:
			if !ok {
				return nil
			}

			if err := sink.Consume(ctx, payload); err != nil {
				return fmt.Errorf("pipeline sink: %w", err)
			}

			payload.MarkAsProcessed()
		}
	}
}

func mayEmitError(err error, errChan chan<- error) {
	select {
	case errChan <- err:
	default: // Channel already full: drop the error.
	}
}
