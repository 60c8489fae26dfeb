package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"BlockProver/internal/proof"
)

// fakeRuntime returns a canned outcome for every job.
type fakeRuntime struct {
	submitErr error        // submitErr fails Submit
	result    Result       // result is returned by Await
	awaitErr  error        // awaitErr fails Await
	block     bool         // block makes Await wait for ctx
	cancels   atomic.Int32 // cancels counts Cancel calls
	submitted atomic.Int32 // submitted counts Submit calls
	last      chan []byte  // last receives submitted directives when set
}

func (f *fakeRuntime) Submit(_ context.Context, directive []byte) (JobID, error) {
	if f.submitErr != nil {
		return 0, f.submitErr
	}

	f.submitted.Add(1)

	if f.last != nil {
		f.last <- directive
	}

	return 42, nil
}

func (f *fakeRuntime) Await(ctx context.Context, _ JobID) (Result, error) {
	if f.block {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}

	return f.result, f.awaitErr
}

func (f *fakeRuntime) Cancel(_ context.Context, _ JobID) error {
	f.cancels.Add(1)
	return nil
}

// payloadOf encodes an aggregate as a runtime result.
func payloadOf(a proof.Aggregate) Result {
	return Result{Payload: proof.EncodeAggregate(a)}
}

// inputs returns n placeholder inputs.
func inputs(n int) []proof.TxProofInput {
	out := make([]proof.TxProofInput, n)
	for i := range out {
		out[i] = proof.TxProofInput{Index: i, Payload: []byte{byte(i)}}
	}

	return out
}

// TestAggregateShapeChecks tests rejection of wrong-variant and wrong-size results.
func TestAggregateShapeChecks(t *testing.T) {
	three := proof.Of(proof.AggProof{Leaves: 3, Data: []byte{1}})

	tests := []struct {
		name   string
		n      int
		result Result
		ok     bool
	}{
		{"matching proof", 3, payloadOf(three), true},
		{"empty batch identity", 0, payloadOf(proof.Identity()), true},
		{"identity for non-empty batch", 3, payloadOf(proof.Identity()), false},
		{"leaf count mismatch", 4, payloadOf(three), false},
		{"proof for empty batch", 0, payloadOf(three), false},
		{"malformed payload", 3, Result{Payload: []byte{0xde, 0xad}}, false},
		{"missing payload", 3, Result{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDriver(&fakeRuntime{result: tt.result})

			agg, err := d.Aggregate(context.Background(), inputs(tt.n))

			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				if agg.Leaves() != uint32(tt.n) {
					t.Errorf("leaves: got %d, want %d", agg.Leaves(), tt.n)
				}

				return
			}

			var sm *proof.ShapeMismatchError
			if !errors.As(err, &sm) {
				t.Fatalf("expected ShapeMismatchError, got %v", err)
			}
		})
	}
}

// TestAggregateRuntimeFailures tests that runtime failures are RuntimeErrors.
func TestAggregateRuntimeFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		rt   *fakeRuntime
		op   string
	}{
		{"submit", &fakeRuntime{submitErr: boom}, "submit"},
		{"await", &fakeRuntime{awaitErr: boom}, "await"},
		{"execute", &fakeRuntime{result: Result{Err: "worker lost"}}, "execute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDriver(tt.rt).Aggregate(context.Background(), inputs(2))

			var re *proof.RuntimeError
			if !errors.As(err, &re) {
				t.Fatalf("expected RuntimeError, got %v", err)
			}

			if re.Op != tt.op {
				t.Errorf("op: got %q, want %q", re.Op, tt.op)
			}
		})
	}
}

// TestAggregateCancelsOnContextEnd tests that an abandoned job is cancelled.
func TestAggregateCancelsOnContextEnd(t *testing.T) {
	rt := &fakeRuntime{block: true}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewDriver(rt).Aggregate(ctx, inputs(2))

	var re *proof.RuntimeError
	if !errors.As(err, &re) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected RuntimeError wrapping deadline, got %v", err)
	}

	if rt.cancels.Load() != 1 {
		t.Errorf("cancel calls: got %d, want 1", rt.cancels.Load())
	}
}

// TestDriverSubmitsMapFold tests the directive the driver ships.
func TestDriverSubmitsMapFold(t *testing.T) {
	rt := &fakeRuntime{result: payloadOf(proof.Of(proof.AggProof{Leaves: 2, Data: []byte{1}})), last: make(chan []byte, 1)}

	if _, err := NewDriver(rt).Aggregate(context.Background(), inputs(2)); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	d, err := DecodeDirective(<-rt.last)
	if err != nil {
		t.Fatalf("decode submitted directive: %v", err)
	}

	if len(d.Stages) != 2 || d.Stages[0].Kind != StageMap || d.Stages[1].Kind != StageFold {
		t.Errorf("unexpected stages %+v", d.Stages)
	}

	if len(d.Inputs) != 2 {
		t.Errorf("inputs: got %d, want 2", len(d.Inputs))
	}
}

// TestWrapRejectsEmptyPayload tests the block shape check.
func TestWrapRejectsEmptyPayload(t *testing.T) {
	d := NewDriver(&fakeRuntime{result: Result{}})

	_, err := d.Wrap(context.Background(), proof.AggProof{Leaves: 1, Data: []byte{1}}, proof.Lineage{})

	var sm *proof.ShapeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
}
