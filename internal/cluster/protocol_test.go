package cluster

import (
	"bytes"
	"errors"
	"testing"

	"BlockProver/internal/proof"
	"BlockProver/internal/types"
)

// TestTaskRoundtrip tests small and compressed tasks.
func TestTaskRoundtrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		operand []byte
	}{
		{"empty", nil, nil},
		{"small", []byte("left"), []byte("right")},
		{"compressed", bytes.Repeat([]byte("a"), 4*compressThreshold), bytes.Repeat([]byte("b"), 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &Task{
				Job:     42,
				Kind:    types.TaskKindCombine,
				Payload: tt.payload,
				Operand: tt.operand,
				Lineage: proof.Lineage{Height: 7, Parent: [32]byte{1, 2}, HasParent: true},
			}

			data := EncodeTask(in)

			compressed := types.GetRootAsTask(data, 0).Compressed()
			if want := len(tt.payload)+len(tt.operand) > compressThreshold; compressed != want {
				t.Errorf("compressed flag: got %v, want %v", compressed, want)
			}

			out, err := DecodeTask(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			if out.Job != in.Job || out.Kind != in.Kind || out.Lineage != in.Lineage {
				t.Errorf("header mismatch: got %+v", out)
			}

			if !bytes.Equal(out.Payload, in.Payload) || !bytes.Equal(out.Operand, in.Operand) {
				t.Error("payload mismatch")
			}
		})
	}
}

// TestCompressionShrinksPayload tests that redundant payloads travel compressed.
func TestCompressionShrinksPayload(t *testing.T) {
	payload := bytes.Repeat([]byte("proof"), 2000)

	data := EncodeResult(&TaskResult{Job: 1, Payload: payload})
	if len(data) >= len(payload) {
		t.Errorf("encoded %d bytes for a %d byte payload", len(data), len(payload))
	}

	out, err := DecodeResult(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !bytes.Equal(out.Payload, payload) {
		t.Error("payload mismatch")
	}
}

// TestResultError tests that task errors travel in the result.
func TestResultError(t *testing.T) {
	out, err := DecodeResult(EncodeResult(&TaskResult{Job: 9, Err: "leaf 3: boom"}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.Job != 9 || out.Err != "leaf 3: boom" || out.Payload != nil {
		t.Errorf("got %+v", out)
	}
}

// TestDecodeGarbage tests that malformed messages are rejected without panicking.
func TestDecodeGarbage(t *testing.T) {
	inputs := [][]byte{
		nil,
		{1, 2, 3},
		bytes.Repeat([]byte{0xff}, 64),
	}

	for _, in := range inputs {
		if _, err := DecodeTask(in); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("DecodeTask(%x): expected ErrMalformedMessage, got %v", in, err)
		}

		if _, err := DecodeResult(in); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("DecodeResult(%x): expected ErrMalformedMessage, got %v", in, err)
		}
	}
}
