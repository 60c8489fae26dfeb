// Package cluster runs proving tasks on a fleet of QUIC workers.
package cluster

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"

	"BlockProver/internal/pipeline"
	"BlockProver/internal/proof"
	"BlockProver/internal/types"
)

const (
	// compressThreshold is the payload size above which tasks are zstd-compressed.
	compressThreshold = 1024

	// maxDecodedSize bounds a decompressed payload.
	maxDecodedSize = 16 << 20
)

// ErrMalformedMessage is returned for undecodable tasks and results.
var ErrMalformedMessage = errors.New("malformed message")

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
)

// Task is one unit of work sent to a worker.
type Task struct {
	Job     uint64         // Job is the coordinator job the task belongs to
	Kind    types.TaskKind // Kind selects the operation
	Payload []byte         // Payload is the encoded input or left aggregate
	Operand []byte         // Operand is the encoded right aggregate of a combine
	Lineage proof.Lineage  // Lineage is used by wrap tasks
}

// TaskResult is a worker's answer to a Task.
type TaskResult struct {
	Job     uint64 // Job echoes the task's job
	Payload []byte // Payload is the encoded output
	Err     string // Err is set when the task failed
}

// EncodeTask serializes a task, compressing large payloads.
func EncodeTask(t *Task) []byte {
	payload, operand := t.Payload, t.Operand

	compressed := len(payload)+len(operand) > compressThreshold
	if compressed {
		payload = encoder.EncodeAll(payload, nil)
		operand = encoder.EncodeAll(operand, nil)
	}

	builder := flatbuffers.NewBuilder(256 + len(payload) + len(operand))

	payloadVec := builder.CreateByteVector(payload)
	operandVec := builder.CreateByteVector(operand)
	lineage := pipeline.BuildLineage(builder, t.Lineage)

	types.TaskStart(builder)
	types.TaskAddJob(builder, t.Job)
	types.TaskAddKind(builder, t.Kind)
	types.TaskAddCompressed(builder, compressed)
	types.TaskAddPayload(builder, payloadVec)
	types.TaskAddOperand(builder, operandVec)
	types.TaskAddLineage(builder, lineage)
	types.FinishTaskBuffer(builder, types.TaskEnd(builder))

	return builder.FinishedBytes()
}

// DecodeTask parses a task encoded by EncodeTask.
func DecodeTask(data []byte) (t *Task, err error) {
	// FlatBuffers panics on malformed data
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("task: %w", ErrMalformedMessage)
		}
	}()

	if len(data) < 8 {
		return nil, fmt.Errorf("task too short: %w", ErrMalformedMessage)
	}

	fb := types.GetRootAsTask(data, 0)

	t = &Task{Job: fb.Job(), Kind: fb.Kind()}

	if _, ok := types.EnumNamesTaskKind[t.Kind]; !ok {
		return nil, fmt.Errorf("unknown task kind %d: %w", t.Kind, ErrMalformedMessage)
	}

	if t.Payload, err = inflate(fb.PayloadBytes(), fb.Compressed()); err != nil {
		return nil, err
	}

	if t.Operand, err = inflate(fb.OperandBytes(), fb.Compressed()); err != nil {
		return nil, err
	}

	if t.Lineage, err = pipeline.ReadLineage(fb.Lineage(nil)); err != nil {
		return nil, fmt.Errorf("task lineage:\n%w", err)
	}

	return t, nil
}

// EncodeResult serializes a task result, compressing large payloads.
func EncodeResult(r *TaskResult) []byte {
	payload := r.Payload

	compressed := len(payload) > compressThreshold
	if compressed {
		payload = encoder.EncodeAll(payload, nil)
	}

	builder := flatbuffers.NewBuilder(128 + len(payload))

	payloadVec := builder.CreateByteVector(payload)

	var errStr flatbuffers.UOffsetT
	if r.Err != "" {
		errStr = builder.CreateString(r.Err)
	}

	types.TaskResultStart(builder)
	types.TaskResultAddJob(builder, r.Job)
	types.TaskResultAddCompressed(builder, compressed)
	types.TaskResultAddPayload(builder, payloadVec)

	if r.Err != "" {
		types.TaskResultAddError(builder, errStr)
	}

	types.FinishTaskResultBuffer(builder, types.TaskResultEnd(builder))

	return builder.FinishedBytes()
}

// DecodeResult parses a result encoded by EncodeResult.
func DecodeResult(data []byte) (r *TaskResult, err error) {
	// FlatBuffers panics on malformed data
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("task result: %w", ErrMalformedMessage)
		}
	}()

	if len(data) < 8 {
		return nil, fmt.Errorf("task result too short: %w", ErrMalformedMessage)
	}

	fb := types.GetRootAsTaskResult(data, 0)

	r = &TaskResult{Job: fb.Job(), Err: string(fb.Error())}

	if r.Payload, err = inflate(fb.PayloadBytes(), fb.Compressed()); err != nil {
		return nil, err
	}

	return r, nil
}

// inflate copies data out of the buffer, decompressing it when flagged.
func inflate(data []byte, compressed bool) ([]byte, error) {
	if !compressed {
		if len(data) == 0 {
			return nil, nil
		}

		return append([]byte(nil), data...), nil
	}

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", ErrMalformedMessage)
	}

	return out, nil
}
