package userstate

import (
	"context"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/noteprim"
	"github.com/tos-network/rollupsync/proofs"
)

// decryptBatch accumulates every viewing-key ciphertext seen across a whole
// handleBlocks call, per spec.md §4.C, so a single BatchDecrypt call
// amortizes setup cost across the entire batch rather than per proof.
type decryptBatch struct {
	ciphertexts [][]byte
	commitments []common.Hash32
}

func (b *decryptBatch) add(c proofs.DecryptCandidate) {
	if len(c.Ciphertext) == 0 {
		return
	}
	b.ciphertexts = append(b.ciphertexts, c.Ciphertext)
	b.commitments = append(b.commitments, c.Commitment)
}

// run performs the batched trial-decrypt and discards any candidate whose
// recomputed commitment does not match the on-chain commitment it claims
// (spec.md §4.C, §8 round-trip property). The result is keyed by
// commitment rather than batch position since every downstream handler
// looks a candidate up by the commitment it already has in hand.
func (b *decryptBatch) run(ctx context.Context, algo noteprim.NoteAlgorithms, privateKey common.Key32) map[common.Hash32]*noteprim.TreeNote {
	results := algo.BatchDecrypt(ctx, privateKey, b.ciphertexts)
	out := make(map[common.Hash32]*noteprim.TreeNote, len(results))
	for i, candidate := range results {
		if candidate == nil {
			continue
		}
		if algo.NoteCommitment(candidate) != b.commitments[i] {
			continue
		}
		out[b.commitments[i]] = candidate
	}
	return out
}
