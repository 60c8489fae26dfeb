package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"BlockProver/internal/proof"
	"BlockProver/internal/proof/prooftest"
	"BlockProver/internal/reduce"
)

// newInProcess creates an in-process runtime or fails the test.
func newInProcess(t *testing.T, alg proof.Algebra, limit int) *InProcess {
	t.Helper()

	rt, err := NewInProcess(alg, limit)
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}

	return rt
}

// TestLocalAndDistributedAgree tests that both strategies produce equal aggregates.
func TestLocalAndDistributedAgree(t *testing.T) {
	for _, n := range []int{0, 1, 4, 9, 32} {
		in := proof.Inputs(prooftest.Payloads(n))

		engine, err := reduce.New(prooftest.New(), 3)
		if err != nil {
			t.Fatalf("engine: %v", err)
		}

		local, err := engine.Run(in)
		if err != nil {
			t.Fatalf("n=%d: local: %v", n, err)
		}

		d := NewDriver(newInProcess(t, prooftest.New(), 3))

		distributed, err := d.Aggregate(context.Background(), in)
		if err != nil {
			t.Fatalf("n=%d: distributed: %v", n, err)
		}

		if !proof.Equal(local, distributed) {
			t.Errorf("n=%d: local %v != distributed %v", n, local, distributed)
		}
	}
}

// TestInProcessWrap tests that a distributed wrap matches the algebra.
func TestInProcessWrap(t *testing.T) {
	alg := prooftest.New()
	d := NewDriver(newInProcess(t, alg, 2))

	agg := proof.AggProof{Leaves: 2, Data: []byte("ab")}
	lineage := proof.Lineage{Height: 5, Parent: [32]byte{8}, HasParent: true}

	block, err := d.Wrap(context.Background(), agg, lineage)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	want, _ := prooftest.New().WrapBlock(agg, lineage)
	if !bytes.Equal(block.Data, want) {
		t.Error("block data differs from local wrap")
	}

	if block.Height != 5 || !block.HasParent || block.Parent != lineage.Parent || block.Leaves != 2 {
		t.Errorf("block header: got %+v", block)
	}
}

// TestInProcessLeafFailure tests that a failing leaf fails the job.
func TestInProcessLeafFailure(t *testing.T) {
	alg := prooftest.New()
	alg.FailLeaf = 1

	_, err := NewDriver(newInProcess(t, alg, 2)).Aggregate(context.Background(), proof.Inputs(prooftest.Payloads(4)))

	var re *proof.RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("expected RuntimeError, got %v", err)
	}

	if !strings.Contains(err.Error(), "leaf proof 1") {
		t.Errorf("error does not name the failing leaf: %v", err)
	}
}

// TestInProcessUnknownJob tests Await and Cancel on an unknown ID.
func TestInProcessUnknownJob(t *testing.T) {
	rt := newInProcess(t, prooftest.New(), 1)

	if _, err := rt.Await(context.Background(), 99); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Await: expected ErrUnknownJob, got %v", err)
	}

	if err := rt.Cancel(context.Background(), 99); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Cancel: expected ErrUnknownJob, got %v", err)
	}

	if _, err := rt.Submit(context.Background(), []byte("junk")); !errors.Is(err, ErrInvalidDirective) {
		t.Errorf("Submit: expected ErrInvalidDirective, got %v", err)
	}
}

// TestInProcessCancel tests that a cancelled job reports cancellation and is forgotten.
func TestInProcessCancel(t *testing.T) {
	alg := prooftest.New()
	alg.LeafDelay = 20 * time.Millisecond

	rt := newInProcess(t, alg, 1)
	ctx := context.Background()

	id, err := rt.Submit(ctx, MapFold(proof.Inputs(prooftest.Payloads(2))).Encode())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	rt.mu.Lock()
	j := rt.jobs[id]
	rt.mu.Unlock()

	if err := rt.Cancel(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	select {
	case <-j.done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled job never finished")
	}

	if j.result.Err != ErrJobCancelled.Error() {
		t.Errorf("result: got %+v, want cancellation", j.result)
	}

	if _, err := rt.Await(ctx, id); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("await after cancel: expected ErrUnknownJob, got %v", err)
	}

	if n := rt.pending(); n != 0 {
		t.Errorf("runtime retains %d jobs", n)
	}
}

// TestDriverForgetsAbandonedJobs tests that runs abandoned by their caller
// leave no job behind.
func TestDriverForgetsAbandonedJobs(t *testing.T) {
	alg := prooftest.New()
	alg.LeafDelay = 5 * time.Millisecond

	rt := newInProcess(t, alg, 1)
	driver := NewDriver(rt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		_, err := driver.Aggregate(ctx, proof.Inputs(prooftest.Payloads(4)))

		var re *proof.RuntimeError
		if !errors.As(err, &re) {
			t.Fatalf("run %d: expected RuntimeError, got %v", i, err)
		}
	}

	if n := rt.pending(); n != 0 {
		t.Errorf("runtime retains %d jobs after abandoned runs", n)
	}
}

// TestNewInProcessRejectsZeroLimit tests limit validation.
func TestNewInProcessRejectsZeroLimit(t *testing.T) {
	if _, err := NewInProcess(prooftest.New(), 0); !errors.Is(err, proof.ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}
