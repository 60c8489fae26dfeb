package cluster

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/zeebo/blake3"

	"BlockProver/internal/network"
)

// scoredPeer pairs a worker with its rendezvous score.
type scoredPeer struct {
	peer  *network.Peer // peer is the worker connection
	score [32]byte      // score is the rendezvous score
}

// rank orders workers for a task by rendezvous score, highest first.
// The first worker is the task's primary; the rest are its fallbacks.
// Every coordinator ranks the same task identically, and removing a worker
// only moves the tasks that worker was primary for.
func rank(peers []*network.Peer, job uint64, key string) []*network.Peer {
	scored := make([]scoredPeer, len(peers))

	for i, p := range peers {
		scored[i] = scoredPeer{peer: p, score: score(job, key, p.PublicKey())}
	}

	sort.Slice(scored, func(i, j int) bool {
		return bytes.Compare(scored[i].score[:], scored[j].score[:]) > 0
	})

	out := make([]*network.Peer, len(scored))
	for i, s := range scored {
		out[i] = s.peer
	}

	return out
}

// score computes BLAKE3(job || key || workerPubkey).
func score(job uint64, key string, worker []byte) [32]byte {
	var jobBuf [8]byte
	binary.BigEndian.PutUint64(jobBuf[:], job)

	h := blake3.New()
	h.Write(jobBuf[:])
	h.Write([]byte(key))
	h.Write(worker)

	var out [32]byte
	h.Sum(out[:0])

	return out
}
