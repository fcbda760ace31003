// Package proofs decodes a raw inner proof and its matching off-chain
// payload into a tagged structure the per-kind handlers dispatch on,
// mirroring the teacher's closed-enum dispatch over core/types.Receipt
// status/log topics rather than an open class hierarchy (spec.md §9).
package proofs

import (
	"fmt"
	"math/big"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/types"
)

// DecryptCandidate is one viewing-key ciphertext queued for the batch
// decryptor, paired with the commitment and input-nullifier it claims to
// correspond to.
type DecryptCandidate struct {
	Commitment     common.Hash32
	InputNullifier common.Hash32
	Ciphertext     []byte
}

// Classified is the Proof Classifier's output for one inner proof: common
// fields every kind carries plus kind-specific side data.
type Classified struct {
	Kind        types.ProofKind
	Proof       types.InnerProof
	Commitment1 common.Hash32
	Commitment2 common.Hash32
	Nullifier1  common.Hash32
	Nullifier2  common.Hash32

	// Populated only for DEPOSIT/WITHDRAW/SEND.
	JoinSplitDecrypt []DecryptCandidate

	// Populated only for ACCOUNT.
	Account *types.AccountOffchainPayload

	// Populated only for DEFI_DEPOSIT.
	DefiDeposit         *types.DefiDepositOffchainPayload
	DefiDepositDecrypt  *DecryptCandidate
}

// Classify decodes proof (already routed to its inner-proof kind) and its
// matching off-chain payload bytes. Padding proofs and DEFI_CLAIM (which
// carries no off-chain payload, per spec.md §4.B) return a Classified value
// with no decrypt candidates and no kind-specific payload; the caller
// dispatches DEFI_CLAIM entirely from proof.Nullifier1.
func Classify(proof types.InnerProof, offchainPayload []byte) (*Classified, error) {
	c := &Classified{
		Kind:        proof.ProofId,
		Proof:       proof,
		Commitment1: proof.NoteCommitment1,
		Commitment2: proof.NoteCommitment2,
		Nullifier1:  proof.Nullifier1,
		Nullifier2:  proof.Nullifier2,
	}

	switch proof.ProofId {
	case types.ProofDeposit, types.ProofWithdraw, types.ProofSend:
		payload, err := types.DecodeJoinSplitPayload(offchainPayload)
		if err != nil {
			return nil, fmt.Errorf("proofs: classify join-split: %w", err)
		}
		c.JoinSplitDecrypt = []DecryptCandidate{
			{Commitment: proof.NoteCommitment1, InputNullifier: proof.Nullifier1, Ciphertext: payload.ViewingKey1},
			{Commitment: proof.NoteCommitment2, InputNullifier: proof.Nullifier2, Ciphertext: payload.ViewingKey2},
		}
	case types.ProofAccount:
		payload, err := types.DecodeAccountPayload(offchainPayload)
		if err != nil {
			return nil, fmt.Errorf("proofs: classify account: %w", err)
		}
		c.Account = payload
	case types.ProofDefiDeposit:
		payload, err := types.DecodeDefiDepositPayload(offchainPayload)
		if err != nil {
			return nil, fmt.Errorf("proofs: classify defi-deposit: %w", err)
		}
		c.DefiDeposit = payload
		c.DefiDepositDecrypt = &DecryptCandidate{
			Commitment:     proof.NoteCommitment2,
			InputNullifier: proof.Nullifier2,
			Ciphertext:     payload.ViewingKey,
		}
	case types.ProofDefiClaim, types.ProofPadding:
		// No off-chain payload to consume.
	default:
		return nil, fmt.Errorf("proofs: unknown proof kind %d", proof.ProofId)
	}
	return c, nil
}

// PublicValue is a convenience accessor matching the recovery formulas in
// spec.md §4.D, tolerating a nil PublicValue on synthetic/test proofs.
func PublicValue(proof types.InnerProof) *big.Int {
	if proof.PublicValue == nil {
		return new(big.Int)
	}
	return proof.PublicValue
}
