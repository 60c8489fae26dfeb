package leader

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"BlockProver/internal/proof"
)

// ErrInvalidInput is returned for an undecodable input document.
var ErrInvalidInput = errors.New("invalid input document")

// Input is the JSON document describing one block's proof-generation IR.
//
// Each element of proof_gen_ir is either a hex string (optionally 0x-prefixed),
// taken as the raw payload, or any other JSON value, whose compacted encoding
// is the payload.
type Input struct {
	ProofGenIR []json.RawMessage `json:"proof_gen_ir"` // ProofGenIR holds one element per transaction
}

// ParseInput decodes an input document into indexed proof inputs.
func ParseInput(data []byte) ([]proof.TxProofInput, error) {
	var doc Input
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrInvalidInput, err)
	}

	inputs := make([]proof.TxProofInput, len(doc.ProofGenIR))

	for i, raw := range doc.ProofGenIR {
		payload, err := decodeElement(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d:\n%w", ErrInvalidInput, i, err)
		}

		inputs[i] = proof.TxProofInput{Index: i, Payload: payload}
	}

	return inputs, nil
}

// EncodeInput builds an input document with hex-encoded payloads.
func EncodeInput(payloads [][]byte) ([]byte, error) {
	doc := Input{ProofGenIR: make([]json.RawMessage, len(payloads))}

	for i, p := range payloads {
		s, err := json.Marshal("0x" + hex.EncodeToString(p))
		if err != nil {
			return nil, err
		}

		doc.ProofGenIR[i] = s
	}

	return json.Marshal(doc)
}

// decodeElement returns the payload of one proof_gen_ir element.
func decodeElement(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)

	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("empty element")
	}

	if raw[0] != '"' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}

		return buf.Bytes(), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}

	payload, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode hex:\n%w", err)
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	return payload, nil
}
