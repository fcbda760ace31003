// Package noteprim implements the note-algorithms primitives that spec.md
// §6 specifies only at the interface level: viewing-key encryption/
// decryption, commitment/nullifier hashing, and the batched trial-decrypt
// entry point the Batch Decryptor drives.
//
// The curve and AEAD primitives are the same family the teacher's own
// crypto package reaches for (golang.org/x/crypto, a direct teacher
// dependency) rather than a hand-rolled construction: NaCl box
// (Curve25519 + XSalsa20-Poly1305) for the viewing-key envelope, and
// blake2b for the nullifier/commitment hash, both from golang.org/x/crypto.
package noteprim

import (
	"math/big"

	"github.com/tos-network/rollupsync/common"
)

// TreeNote is the plaintext note material recovered by (or supplied to,
// for locally-constructed proofs) trial decryption.
type TreeNote struct {
	Value          *big.Int
	AssetId        uint32
	OwnerPubKey    common.Key32
	OwnerNonce     uint32
	Secret         common.Hash32
	Creator        common.Key32
	InputNullifier common.Hash32
	AllowChain     bool
}

func (n *TreeNote) valueOrZero() *big.Int {
	if n == nil || n.Value == nil {
		return new(big.Int)
	}
	return n.Value
}
