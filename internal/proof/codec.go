package proof

import (
	"encoding/binary"
	"fmt"
)

// Encoding tags.
const (
	tagIdentity = 0x10 // Aggregate, Identity variant
	tagProof    = 0x11 // Aggregate, Proof variant
	tagLeaf     = 0x20 // LeafProof
	tagBlock    = 0x30 // BlockProof
	tagInput    = 0x40 // TxProofInput
)

// EncodeAggregate encodes an aggregate.
// Format: [1B tag] or [1B tag] [4B leaves] [4B len] [data]
func EncodeAggregate(a Aggregate) []byte {
	if a.kind != KindProof {
		return []byte{tagIdentity}
	}

	buf := make([]byte, 1+4+4+len(a.proof.Data))
	buf[0] = tagProof
	binary.BigEndian.PutUint32(buf[1:5], a.proof.Leaves)
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(a.proof.Data)))
	copy(buf[9:], a.proof.Data)

	return buf
}

// DecodeAggregate decodes an aggregate encoded by EncodeAggregate.
func DecodeAggregate(data []byte) (Aggregate, error) {
	if len(data) == 0 {
		return Aggregate{}, fmt.Errorf("empty aggregate encoding")
	}

	switch data[0] {
	case tagIdentity:
		if len(data) != 1 {
			return Aggregate{}, fmt.Errorf("identity aggregate has %d trailing bytes", len(data)-1)
		}
		return Identity(), nil

	case tagProof:
		if len(data) < 9 {
			return Aggregate{}, fmt.Errorf("aggregate too short: %d < 9", len(data))
		}

		leaves := binary.BigEndian.Uint32(data[1:5])

		payload, err := readExact(data[5:])
		if err != nil {
			return Aggregate{}, fmt.Errorf("aggregate data:\n%w", err)
		}

		return Of(AggProof{Leaves: leaves, Data: payload}), nil

	default:
		return Aggregate{}, fmt.Errorf("invalid aggregate tag: 0x%02x", data[0])
	}
}

// EncodeLeaf encodes a leaf proof.
// Format: [1B tag] [8B index] [4B len] [data]
func EncodeLeaf(l LeafProof) []byte {
	buf := make([]byte, 1+8+4+len(l.Data))
	buf[0] = tagLeaf
	binary.BigEndian.PutUint64(buf[1:9], uint64(l.Index))
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(l.Data)))
	copy(buf[13:], l.Data)

	return buf
}

// DecodeLeaf decodes a leaf proof encoded by EncodeLeaf.
func DecodeLeaf(data []byte) (LeafProof, error) {
	if len(data) < 13 {
		return LeafProof{}, fmt.Errorf("leaf too short: %d < 13", len(data))
	}

	if data[0] != tagLeaf {
		return LeafProof{}, fmt.Errorf("invalid leaf tag: 0x%02x", data[0])
	}

	payload, err := readExact(data[9:])
	if err != nil {
		return LeafProof{}, fmt.Errorf("leaf data:\n%w", err)
	}

	return LeafProof{Index: int(binary.BigEndian.Uint64(data[1:9])), Data: payload}, nil
}

// EncodeInput encodes a transaction proof input.
// Format: [1B tag] [8B index] [4B len] [payload]
func EncodeInput(in TxProofInput) []byte {
	buf := make([]byte, 1+8+4+len(in.Payload))
	buf[0] = tagInput
	binary.BigEndian.PutUint64(buf[1:9], uint64(in.Index))
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(in.Payload)))
	copy(buf[13:], in.Payload)

	return buf
}

// DecodeInput decodes a transaction proof input encoded by EncodeInput.
func DecodeInput(data []byte) (TxProofInput, error) {
	if len(data) < 13 {
		return TxProofInput{}, fmt.Errorf("input too short: %d < 13", len(data))
	}

	if data[0] != tagInput {
		return TxProofInput{}, fmt.Errorf("invalid input tag: 0x%02x", data[0])
	}

	payload, err := readExact(data[9:])
	if err != nil {
		return TxProofInput{}, fmt.Errorf("input payload:\n%w", err)
	}

	return TxProofInput{Index: int(binary.BigEndian.Uint64(data[1:9])), Payload: payload}, nil
}

// EncodeBlock encodes a block proof. The encoding is canonical and is what Hash covers.
// Format: [1B tag] [8B height] [4B leaves] [1B hasParent] [32B parent] [4B len] [data]
func EncodeBlock(b *BlockProof) []byte {
	buf := make([]byte, 1+8+4+1+HashSize+4+len(b.Data))
	buf[0] = tagBlock
	binary.BigEndian.PutUint64(buf[1:9], b.Height)
	binary.BigEndian.PutUint32(buf[9:13], b.Leaves)

	if b.HasParent {
		buf[13] = 1
		copy(buf[14:46], b.Parent[:])
	}

	binary.BigEndian.PutUint32(buf[46:50], uint32(len(b.Data)))
	copy(buf[50:], b.Data)

	return buf
}

// DecodeBlock decodes a block proof encoded by EncodeBlock.
func DecodeBlock(data []byte) (*BlockProof, error) {
	if len(data) < 50 {
		return nil, fmt.Errorf("block proof too short: %d < 50", len(data))
	}

	if data[0] != tagBlock {
		return nil, fmt.Errorf("invalid block proof tag: 0x%02x", data[0])
	}

	if data[13] > 1 {
		return nil, fmt.Errorf("invalid parent flag: 0x%02x", data[13])
	}

	payload, err := readExact(data[46:])
	if err != nil {
		return nil, fmt.Errorf("block proof data:\n%w", err)
	}

	b := &BlockProof{
		Height:    binary.BigEndian.Uint64(data[1:9]),
		Leaves:    binary.BigEndian.Uint32(data[9:13]),
		HasParent: data[13] == 1,
		Data:      payload,
	}
	copy(b.Parent[:], data[14:46])

	return b, nil
}

// readExact reads a [4B len][data] frame that must span the whole slice.
func readExact(data []byte) ([]byte, error) {
	n := binary.BigEndian.Uint32(data[:4])
	if uint64(len(data)-4) != uint64(n) {
		return nil, fmt.Errorf("length mismatch: header %d, have %d", n, len(data)-4)
	}

	out := make([]byte, n)
	copy(out, data[4:])

	return out, nil
}
