package strata

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskRunner fans tasks out to a bounded set of goroutines. The cold tier's
// batched uploads use it to cap in-flight requests per batch.
type TaskRunner struct {
	maxThreadCount int
	eg             *errgroup.Group
	limiterChan    chan bool
	context        context.Context
}

// NewTaskRunner returns a runner allowing up to maxThreadCount concurrent tasks.
func NewTaskRunner(ctx context.Context, maxThreadCount int) *TaskRunner {
	eg, ctx2 := errgroup.WithContext(ctx)
	return &TaskRunner{
		maxThreadCount: maxThreadCount,
		limiterChan:    make(chan bool, maxThreadCount),
		eg:             eg,
		context:        ctx2,
	}
}

// GetContext returns the errgroup-derived context; tasks should honor its cancellation.
func (tr *TaskRunner) GetContext() context.Context {
	return tr.context
}

// Go schedules task, blocking while maxThreadCount tasks are already in flight.
func (tr *TaskRunner) Go(task func() error) {
	t := func() error {
		err := task()
		if err != nil {
			return err
		}
		// Release the slot.
		<-tr.limiterChan
		return nil
	}
	tr.eg.Go(t)
	// Take a slot, blocking at the cap.
	tr.limiterChan <- true
}

// Wait blocks until every scheduled task returned and reports the first error.
func (tr *TaskRunner) Wait() error {
	defer close(tr.limiterChan)
	return tr.eg.Wait()
}
