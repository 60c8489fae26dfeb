package cluster

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"BlockProver/internal/gate"
	"BlockProver/internal/logger"
	"BlockProver/internal/network"
	"BlockProver/internal/pipeline"
	"BlockProver/internal/proof"
	"BlockProver/internal/types"
)

// cancelTTL is how long a cancelled job ID is remembered.
const cancelTTL = 10 * time.Minute

// Worker executes proving tasks for a coordinator.
type Worker struct {
	alg  proof.Algebra // alg proves leaves, combines and wraps
	gate *gate.Gate    // gate bounds concurrently executing tasks

	mu        sync.Mutex           // mu protects cancelled
	cancelled map[uint64]time.Time // cancelled maps job IDs to cancellation time

	served atomic.Int64 // served counts completed tasks
	failed atomic.Int64 // failed counts failed tasks
}

// NewWorker creates a worker running at most slots tasks at once.
func NewWorker(alg proof.Algebra, slots int) (*Worker, error) {
	g, err := gate.New(slots)
	if err != nil {
		return nil, fmt.Errorf("worker slots:\n%w", err)
	}

	return &Worker{
		alg:       alg,
		gate:      g,
		cancelled: make(map[uint64]time.Time),
	}, nil
}

// Handlers returns the transport callbacks serving this worker.
func (w *Worker) Handlers() network.Handlers {
	return network.Handlers{
		Request: w.HandleRequest,
		Notice:  w.HandleNotice,
	}
}

// Slots returns the number of tasks the worker runs at once.
func (w *Worker) Slots() int {
	return w.gate.Limit()
}

// HandleRequest executes one task and returns its encoded result.
// Task failures are reported inside the result, so the coordinator can tell
// them apart from transport failures.
func (w *Worker) HandleRequest(_ *network.Peer, data []byte) ([]byte, error) {
	task, err := DecodeTask(data)
	if err != nil {
		return EncodeResult(&TaskResult{Err: err.Error()}), nil
	}

	res := &TaskResult{Job: task.Job}

	if w.isCancelled(task.Job) {
		res.Err = pipeline.ErrJobCancelled.Error()
		return EncodeResult(res), nil
	}

	err = w.gate.Do(func() error {
		if w.isCancelled(task.Job) {
			return pipeline.ErrJobCancelled
		}

		var err error
		res.Payload, err = w.execute(task)

		return err
	})

	if err != nil {
		w.failed.Add(1)
		logger.Debug("task failed", "job", task.Job, "kind", task.Kind, "error", err)
		res.Err = err.Error()
		res.Payload = nil
	} else {
		w.served.Add(1)
	}

	return EncodeResult(res), nil
}

// HandleNotice processes notices from the leader. Only cancellations are
// defined, and repeating one is harmless.
func (w *Worker) HandleNotice(_ *network.Peer, data []byte) {
	task, err := DecodeTask(data)
	if err != nil {
		logger.Debug("drop malformed notice", "error", err)
		return
	}

	if task.Kind != types.TaskKindCancel {
		return
	}

	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	for job, at := range w.cancelled {
		if now.Sub(at) > cancelTTL {
			delete(w.cancelled, job)
		}
	}

	w.cancelled[task.Job] = now

	logger.Info("job cancelled", "job", task.Job)
}

// Served returns the number of completed tasks.
func (w *Worker) Served() int64 {
	return w.served.Load()
}

// Failed returns the number of failed tasks.
func (w *Worker) Failed() int64 {
	return w.failed.Load()
}

// InFlight returns the number of tasks currently executing.
func (w *Worker) InFlight() int {
	return w.gate.InFlight()
}

// isCancelled reports whether job was cancelled.
func (w *Worker) isCancelled(job uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, ok := w.cancelled[job]

	return ok
}

// execute runs a task on the algebra.
// A panicking prover is reported as a failure of the task.
func (w *Worker) execute(t *Task) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("prover panic: %v", r)
		}
	}()

	switch t.Kind {
	case types.TaskKindLeaf:
		return w.leaf(t)
	case types.TaskKindCombine:
		return w.combine(t)
	case types.TaskKindWrap:
		return w.wrap(t)
	default:
		return nil, fmt.Errorf("unsupported task kind %s", t.Kind)
	}
}

// leaf proves one input and lifts it into an aggregate.
func (w *Worker) leaf(t *Task) ([]byte, error) {
	in, err := proof.DecodeInput(t.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode input:\n%w", err)
	}

	agg, err := proof.LeafAggregate(w.alg, in)
	if err != nil {
		return nil, err
	}

	return proof.EncodeAggregate(agg), nil
}

// combine merges two aggregates.
func (w *Worker) combine(t *Task) ([]byte, error) {
	a, err := proof.DecodeAggregate(t.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode left operand:\n%w", err)
	}

	b, err := proof.DecodeAggregate(t.Operand)
	if err != nil {
		return nil, fmt.Errorf("decode right operand:\n%w", err)
	}

	agg, err := proof.Combine(w.alg, a, b)
	if err != nil {
		return nil, err
	}

	return proof.EncodeAggregate(agg), nil
}

// wrap produces block proof bytes.
func (w *Worker) wrap(t *Task) ([]byte, error) {
	agg, err := proof.DecodeAggregate(t.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode aggregate:\n%w", err)
	}

	p, ok := agg.Proof()
	if !ok {
		return nil, &proof.EmptyAggregateError{}
	}

	data, err := w.alg.WrapBlock(p, t.Lineage)
	if err != nil {
		return nil, &proof.WrapError{Err: err}
	}

	return data, nil
}
