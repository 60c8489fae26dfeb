package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"BlockProver/internal/logger"
	"BlockProver/internal/network"
	"BlockProver/internal/pipeline"
	"BlockProver/internal/proof"
	"BlockProver/internal/types"
)

const (
	// defaultMaxAttempts is the number of workers tried per task.
	defaultMaxAttempts = 3

	// defaultFanOut bounds concurrently dispatched tasks per stage.
	defaultFanOut = 64

	// defaultTaskTimeout bounds one task request.
	defaultTaskTimeout = 2 * time.Minute

	// workerPollInterval is the polling period of WaitForWorkers.
	workerPollInterval = 20 * time.Millisecond
)

var (
	// ErrNoWorkers is returned when no worker is connected.
	ErrNoWorkers = errors.New("no workers connected")

	// ErrAttemptsExhausted is returned when every attempted worker failed to answer.
	ErrAttemptsExhausted = errors.New("task attempts exhausted")
)

// CoordinatorConfig holds coordinator settings.
// Zero values select the defaults.
type CoordinatorConfig struct {
	MaxAttempts int           // MaxAttempts is the number of workers tried per task
	FanOut      int           // FanOut caps concurrently dispatched tasks per stage
	TaskTimeout time.Duration // TaskTimeout bounds one task request
}

// Coordinator is a pipeline.Runtime executing directives on connected workers.
//
// Every task is routed to the worker ranked first by rendezvous hashing on
// (job, task key). A transport failure moves the task to the next ranked
// worker; a failure reported by the worker fails the job.
type Coordinator struct {
	node *network.Node     // node is the transport to the workers
	cfg  CoordinatorConfig // cfg holds the effective settings

	mu   sync.Mutex              // mu protects next and jobs
	next pipeline.JobID          // next is the ID of the next submitted job
	jobs map[pipeline.JobID]*job // jobs tracks submitted jobs until awaited
}

// job is one running directive.
type job struct {
	cancel context.CancelFunc // cancel stops the job
	done   chan struct{}      // done is closed when result is set
	result pipeline.Result    // result is the job outcome
}

// NewCoordinator creates a coordinator dispatching over node.
func NewCoordinator(node *network.Node, cfg CoordinatorConfig) *Coordinator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	if cfg.FanOut < 1 {
		cfg.FanOut = defaultFanOut
	}

	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}

	// Job IDs start from the clock so a restarted coordinator does not reuse
	// IDs that workers still remember as cancelled.
	return &Coordinator{
		node: node,
		cfg:  cfg,
		next: pipeline.JobID(time.Now().UnixNano()),
		jobs: make(map[pipeline.JobID]*job),
	}
}

// fanOut bounds concurrently dispatched tasks by the slots the connected
// workers announced, within the configured cap.
func (c *Coordinator) fanOut() int {
	return max(1, min(c.cfg.FanOut, c.node.Slots()))
}

// Workers returns the connected workers.
func (c *Coordinator) Workers() []*network.Peer {
	return c.node.Peers()
}

// WaitForWorkers blocks until at least n workers are connected or ctx ends.
func (c *Coordinator) WaitForWorkers(ctx context.Context, n int) error {
	ticker := time.NewTicker(workerPollInterval)
	defer ticker.Stop()

	for len(c.node.Peers()) < n {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d workers, have %d:\n%w", n, len(c.node.Peers()), ctx.Err())
		case <-ticker.C:
		}
	}

	return nil
}

// Submit decodes the directive and starts it on the fleet.
func (c *Coordinator) Submit(ctx context.Context, directive []byte) (pipeline.JobID, error) {
	d, err := pipeline.DecodeDirective(directive)
	if err != nil {
		return 0, err
	}

	if err := d.Validate(); err != nil {
		return 0, err
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	id := c.next
	c.next++
	c.jobs[id] = j
	c.mu.Unlock()

	go func() {
		defer cancel()
		defer close(j.done)

		ex := &executor{c: c, job: uint64(id)}

		payload, err := pipeline.Execute(jobCtx, d, ex)
		if err != nil {
			if jobCtx.Err() != nil {
				err = pipeline.ErrJobCancelled
			}

			logger.Warn("job failed", "job", id, "error", err)
			j.result = pipeline.Result{Err: err.Error()}

			return
		}

		j.result = pipeline.Result{Payload: payload}
	}()

	return id, nil
}

// Await waits for the job and forgets it once finished.
func (c *Coordinator) Await(ctx context.Context, id pipeline.JobID) (pipeline.Result, error) {
	c.mu.Lock()
	j, ok := c.jobs[id]
	c.mu.Unlock()

	if !ok {
		return pipeline.Result{}, fmt.Errorf("await job %s: %w", id, pipeline.ErrUnknownJob)
	}

	select {
	case <-j.done:
	case <-ctx.Done():
		return pipeline.Result{}, ctx.Err()
	}

	c.mu.Lock()
	delete(c.jobs, id)
	c.mu.Unlock()

	return j.result, nil
}

// Cancel stops the job locally, forgets it, and tells every worker to refuse
// its tasks. An Await already waiting on the job still receives its result.
func (c *Coordinator) Cancel(ctx context.Context, id pipeline.JobID) error {
	c.mu.Lock()
	j, ok := c.jobs[id]
	delete(c.jobs, id)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("cancel job %s: %w", id, pipeline.ErrUnknownJob)
	}

	j.cancel()

	notice := EncodeTask(&Task{Job: uint64(id), Kind: types.TaskKindCancel})
	if err := c.node.Notify(ctx, notice); err != nil {
		logger.Warn("notify cancel", "job", id, "error", err)
	}

	return nil
}

// executor runs the stages of one job on the fleet.
type executor struct {
	c   *Coordinator // c is the owning coordinator
	job uint64       // job is the job ID sent with every task
}

// Map sends one leaf task per input.
func (e *executor) Map(ctx context.Context, inputs []proof.TxProofInput) ([]proof.Aggregate, error) {
	done := logger.Stage("remote map", "job", e.job, "txs", len(inputs))

	results := make([]proof.Aggregate, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.c.fanOut())

	for i, in := range inputs {
		g.Go(func() error {
			task := &Task{Job: e.job, Kind: types.TaskKindLeaf, Payload: proof.EncodeInput(in)}

			agg, err := e.aggregate(gctx, task, fmt.Sprintf("leaf/%d", in.Index))
			if err != nil {
				return err
			}

			results[i] = agg

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	done()

	return results, nil
}

// Fold combines adjacent pairs layer by layer on the fleet.
// Pairs with an Identity side are resolved locally.
func (e *executor) Fold(ctx context.Context, items []proof.Aggregate) (proof.Aggregate, error) {
	if len(items) == 0 {
		return proof.Identity(), nil
	}

	done := logger.Stage("remote fold", "job", e.job, "items", len(items))

	layer := items

	for depth := 0; len(layer) > 1; depth++ {
		next := make([]proof.Aggregate, (len(layer)+1)/2)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.c.fanOut())

		for i := 0; i+1 < len(layer); i += 2 {
			slot, a, b := i/2, layer[i], layer[i+1]

			if a.IsIdentity() || b.IsIdentity() {
				next[slot], _ = proof.Combine(nil, a, b)
				continue
			}

			g.Go(func() error {
				task := &Task{
					Job:     e.job,
					Kind:    types.TaskKindCombine,
					Payload: proof.EncodeAggregate(a),
					Operand: proof.EncodeAggregate(b),
				}

				agg, err := e.aggregate(gctx, task, fmt.Sprintf("combine/%d/%d", depth, slot))
				if err != nil {
					return err
				}

				next[slot] = agg

				return nil
			})
		}

		if len(layer)%2 == 1 {
			next[len(next)-1] = layer[len(layer)-1]
		}

		if err := g.Wait(); err != nil {
			return proof.Aggregate{}, err
		}

		logger.Debug("remote fold layer done", "job", e.job, "layer", depth, "width", len(next))

		layer = next
	}

	done()

	return layer[0], nil
}

// Wrap sends the wrap task.
func (e *executor) Wrap(ctx context.Context, agg proof.AggProof, lineage proof.Lineage) ([]byte, error) {
	task := &Task{
		Job:     e.job,
		Kind:    types.TaskKindWrap,
		Payload: proof.EncodeAggregate(proof.Of(agg)),
		Lineage: lineage,
	}

	return e.c.dispatch(ctx, task, fmt.Sprintf("wrap/%d", lineage.Height))
}

// aggregate dispatches a task whose output is an encoded aggregate.
func (e *executor) aggregate(ctx context.Context, t *Task, key string) (proof.Aggregate, error) {
	payload, err := e.c.dispatch(ctx, t, key)
	if err != nil {
		return proof.Aggregate{}, err
	}

	agg, err := proof.DecodeAggregate(payload)
	if err != nil {
		return proof.Aggregate{}, fmt.Errorf("task %s returned malformed aggregate:\n%w", key, err)
	}

	return agg, nil
}

// dispatch sends a task to its ranked workers until one answers.
func (c *Coordinator) dispatch(ctx context.Context, t *Task, key string) ([]byte, error) {
	peers := c.node.Peers()
	if len(peers) == 0 {
		return nil, fmt.Errorf("task %s: %w", key, ErrNoWorkers)
	}

	ranked := rank(peers, t.Job, key)
	attempts := min(c.cfg.MaxAttempts, len(ranked))
	data := EncodeTask(t)

	var lastErr error

	for _, p := range ranked[:attempts] {
		res, err := c.request(ctx, p, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			logger.Debug("task attempt failed", "task", key, "worker", p.ID(), "error", err)
			lastErr = err

			continue
		}

		if res.Err != "" {
			return nil, fmt.Errorf("task %s on worker %s:\n%w", key, p.ID(), errors.New(res.Err))
		}

		return res.Payload, nil
	}

	logger.Warn("task failed on every attempted worker", "task", key, "attempts", attempts)

	return nil, fmt.Errorf("task %s after %d attempts: %w\n%w", key, attempts, ErrAttemptsExhausted, lastErr)
}

// request performs one task request against a worker.
func (c *Coordinator) request(ctx context.Context, p *network.Peer, data []byte) (*TaskResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.TaskTimeout)
	defer cancel()

	resp, err := p.Request(reqCtx, data)
	if err != nil {
		return nil, err
	}

	return DecodeResult(resp)
}
