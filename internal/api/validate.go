package api

import (
	"errors"
	"fmt"
	"net/http"

	"BlockProver/internal/proof"
)

const (
	// maxBatchSize is the maximum number of transactions per block.
	maxBatchSize = 1 << 16

	// maxPayloadSize is the maximum size of one proof-generation IR element.
	maxPayloadSize = 4 << 20 // 4 MB
)

var (
	// errEmptyBatch is returned for a document without transactions.
	errEmptyBatch = errors.New("empty batch: a block needs at least one transaction")

	// errBatchTooLarge is returned when a document exceeds maxBatchSize.
	errBatchTooLarge = errors.New("batch too large")

	// errPayloadTooLarge is returned when one element exceeds maxPayloadSize.
	errPayloadTooLarge = errors.New("payload too large")
)

// validateInputs checks batch and element sizes before proving.
func validateInputs(inputs []proof.TxProofInput) error {
	if len(inputs) == 0 {
		return errEmptyBatch
	}

	if len(inputs) > maxBatchSize {
		return fmt.Errorf("%w: %d > %d", errBatchTooLarge, len(inputs), maxBatchSize)
	}

	for _, in := range inputs {
		if len(in.Payload) > maxPayloadSize {
			return fmt.Errorf("%w: element %d has %d bytes", errPayloadTooLarge, in.Index, len(in.Payload))
		}
	}

	return nil
}

// statusFor maps a validation or proving failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errEmptyBatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBatchTooLarge), errors.Is(err, errPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	}

	stage, ok := proof.StageOf(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch stage {
	case proof.StageFinalize:
		return http.StatusUnprocessableEntity
	case proof.StageRuntime, proof.StageDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
