package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// Static and compile-time check to ensure fifo implements the StageRunner
// interface.
var _ StageRunner = (*fifo)(nil)

type fifo struct {
	proc Processor
}

// NewFIFO returns a StageRunner that processes incoming payloads one at a
// time in arrival order, forwarding each processor output to the next stage.
func NewFIFO(proc Processor) StageRunner {
	return &fifo{proc: proc}
}

// Run implements the payload processing loop for a single pipeline stage.
//
// Unlike a conventional fail-fast stage, a processor error here does not
// terminate the stage: the error is reported through the stage error channel,
// the offending payload is discarded and the loop moves on to the next
// payload. Scrape runs are expected to survive individual bad candidates.
func (r *fifo) Run(ctx context.Context, params StageParams) {
	for {
		select {
		case <-ctx.Done():
			return
		case payloadIn, ok := <-params.Input():
			if !ok {
				return // Input channel closed: no more data.
			}

			payloadOut, err := r.proc.Process(ctx, payloadIn)
			if err != nil {
				mayEmitError(
					fmt.Errorf("pipeline stage %d: %w", params.StageIndex(), err),
					params.Error(),
				)
				payloadIn.MarkAsProcessed()

				continue
			}

			// A nil output means the processor chose to discard the payload.
			if payloadOut == nil {
				payloadIn.MarkAsProcessed()

				continue
			}

			select {
			case params.Output() <- payloadOut:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Static and compile-time check to ensure fixedWorkerPool implements the
// StageRunner interface.
var _ StageRunner = (*fixedWorkerPool)(nil)

// fixedWorkerPool distributes incoming payloads across a preconfigured
// number of concurrently running fifo workers.
type fixedWorkerPool struct {
	fifos []StageRunner
}

// NewFixedWorkerPool returns a StageRunner that spins up numOfWorkers
// workers to process incoming payloads in parallel, emitting their outputs
// to the next stage in completion order.
func NewFixedWorkerPool(proc Processor, numOfWorkers int) StageRunner {
	if numOfWorkers <= 0 {
		panic("NewFixedWorkerPool: numOfWorkers must be > 0")
	}

	fifos := make([]StageRunner, numOfWorkers)
	for i := 0; i < numOfWorkers; i++ {
		fifos[i] = NewFIFO(proc)
	}

	return &fixedWorkerPool{fifos: fifos}
}

// Run spins up each worker in the pool and blocks until all of them have
// returned.
func (r *fixedWorkerPool) Run(ctx context.Context, params StageParams) {
	var wg sync.WaitGroup

	for i := 0; i < len(r.fifos); i++ {
		wg.Add(1)

		go func(fifoIndex int) {
			r.fifos[fifoIndex].Run(ctx, params)

			wg.Done()
		}(i)
	}

	wg.Wait()
}
