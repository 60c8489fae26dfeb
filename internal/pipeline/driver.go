package pipeline

import (
	"context"
	"errors"
	"fmt"

	"BlockProver/internal/logger"
	"BlockProver/internal/proof"
)

// Driver submits proving runs to a Runtime and checks what comes back.
type Driver struct {
	rt Runtime // rt executes the directives
}

// NewDriver creates a driver over rt.
func NewDriver(rt Runtime) *Driver {
	return &Driver{rt: rt}
}

// Aggregate proves inputs on the runtime and returns their aggregate.
//
// A non-empty batch must come back as Proof covering exactly len(inputs)
// leaves; an empty batch must come back as Identity. Anything else is a
// ShapeMismatchError.
func (d *Driver) Aggregate(ctx context.Context, inputs []proof.TxProofInput) (proof.Aggregate, error) {
	done := logger.Stage("distributed aggregation", "txs", len(inputs))

	payload, err := d.run(ctx, MapFold(inputs))
	if err != nil {
		return proof.Aggregate{}, err
	}

	agg, err := proof.DecodeAggregate(payload)
	if err != nil {
		return proof.Aggregate{}, &proof.ShapeMismatchError{
			Want: "encoded aggregate",
			Got:  fmt.Sprintf("malformed payload of %d bytes", len(payload)),
		}
	}

	if err := checkShape(agg, len(inputs)); err != nil {
		return proof.Aggregate{}, err
	}

	done()

	return agg, nil
}

// Wrap turns agg into a block proof on the runtime.
func (d *Driver) Wrap(ctx context.Context, agg proof.AggProof, lineage proof.Lineage) (proof.BlockProof, error) {
	done := logger.Stage("distributed wrap", "height", lineage.Height, "leaves", agg.Leaves)

	payload, err := d.run(ctx, WrapLiteral(agg, lineage))
	if err != nil {
		return proof.BlockProof{}, err
	}

	if len(payload) == 0 {
		return proof.BlockProof{}, &proof.ShapeMismatchError{Want: "block proof", Got: "empty payload"}
	}

	done()

	return proof.BlockProof{
		Height:    lineage.Height,
		Leaves:    agg.Leaves,
		Parent:    lineage.Parent,
		HasParent: lineage.HasParent,
		Data:      payload,
	}, nil
}

// run submits a directive and awaits its payload.
// If ctx ends while waiting, the job is cancelled on the runtime.
func (d *Driver) run(ctx context.Context, dir *Directive) ([]byte, error) {
	id, err := d.rt.Submit(ctx, dir.Encode())
	if err != nil {
		return nil, &proof.RuntimeError{Op: "submit", Err: err}
	}

	logger.Debug("job submitted", "job", id, "stages", len(dir.Stages))

	res, err := d.rt.Await(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			if cerr := d.rt.Cancel(context.WithoutCancel(ctx), id); cerr != nil {
				logger.Warn("cancel job", "job", id, "error", cerr)
			}
		}

		return nil, &proof.RuntimeError{Op: "await", Err: err}
	}

	if res.Err != "" {
		return nil, &proof.RuntimeError{Op: "execute", Err: errors.New(res.Err)}
	}

	return res.Payload, nil
}

// checkShape verifies agg against the batch size it was computed from.
func checkShape(agg proof.Aggregate, n int) error {
	if n == 0 {
		if !agg.IsIdentity() {
			return &proof.ShapeMismatchError{Want: "Identity", Got: agg.String()}
		}

		return nil
	}

	if agg.IsIdentity() {
		return &proof.ShapeMismatchError{Want: fmt.Sprintf("Proof over %d leaves", n), Got: "Identity"}
	}

	if agg.Leaves() != uint32(n) {
		return &proof.ShapeMismatchError{
			Want: fmt.Sprintf("Proof over %d leaves", n),
			Got:  fmt.Sprintf("Proof over %d leaves", agg.Leaves()),
		}
	}

	return nil
}
