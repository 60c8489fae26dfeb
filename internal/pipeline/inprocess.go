package pipeline

import (
	"context"
	"fmt"
	"sync"

	"BlockProver/internal/logger"
	"BlockProver/internal/proof"
	"BlockProver/internal/reduce"
)

// InProcess is a Runtime executing directives on local goroutines.
type InProcess struct {
	alg    proof.Algebra  // alg proves leaves, combines and wraps
	engine *reduce.Engine // engine runs map and fold stages

	mu   sync.Mutex     // mu protects next and jobs
	next JobID          // next is the ID of the next submitted job
	jobs map[JobID]*job // jobs tracks submitted jobs until awaited
}

// job is one running directive.
type job struct {
	cancel context.CancelFunc // cancel stops the job
	done   chan struct{}      // done is closed when result is set
	result Result             // result is the job outcome
}

// NewInProcess creates an in-process runtime admitting limit concurrent leaf proofs.
func NewInProcess(alg proof.Algebra, limit int, opts ...reduce.Option) (*InProcess, error) {
	engine, err := reduce.New(alg, limit, opts...)
	if err != nil {
		return nil, err
	}

	return &InProcess{
		alg:    alg,
		engine: engine,
		next:   1,
		jobs:   make(map[JobID]*job),
	}, nil
}

// Submit decodes the directive and starts it in the background.
func (r *InProcess) Submit(ctx context.Context, directive []byte) (JobID, error) {
	d, err := DecodeDirective(directive)
	if err != nil {
		return 0, err
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	id := r.next
	r.next++
	r.jobs[id] = j
	r.mu.Unlock()

	go func() {
		defer cancel()
		defer close(j.done)

		payload, err := Execute(jobCtx, d, r)
		if err != nil {
			if jobCtx.Err() != nil {
				err = ErrJobCancelled
			}

			logger.Debug("job failed", "job", id, "error", err)
			j.result = Result{Err: err.Error()}

			return
		}

		j.result = Result{Payload: payload}
	}()

	return id, nil
}

// Await waits for the job and forgets it once finished.
func (r *InProcess) Await(ctx context.Context, id JobID) (Result, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()

	if !ok {
		return Result{}, fmt.Errorf("await job %s: %w", id, ErrUnknownJob)
	}

	select {
	case <-j.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()

	return j.result, nil
}

// Cancel stops the job and forgets it. An Await already waiting on the job
// still receives its cancelled result; later calls report ErrUnknownJob.
func (r *InProcess) Cancel(_ context.Context, id JobID) error {
	r.mu.Lock()
	j, ok := r.jobs[id]
	delete(r.jobs, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("cancel job %s: %w", id, ErrUnknownJob)
	}

	j.cancel()

	return nil
}

// pending returns the number of tracked jobs.
func (r *InProcess) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.jobs)
}

// Map runs the map stage on the engine.
func (r *InProcess) Map(_ context.Context, inputs []proof.TxProofInput) ([]proof.Aggregate, error) {
	return r.engine.Map(inputs)
}

// Fold runs the fold stage on the engine.
func (r *InProcess) Fold(_ context.Context, items []proof.Aggregate) (proof.Aggregate, error) {
	return r.engine.Fold(items)
}

// Wrap wraps agg with the algebra.
func (r *InProcess) Wrap(_ context.Context, agg proof.AggProof, lineage proof.Lineage) ([]byte, error) {
	data, err := r.alg.WrapBlock(agg, lineage)
	if err != nil {
		return nil, &proof.WrapError{Err: err}
	}

	return data, nil
}
