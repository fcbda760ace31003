package types

import (
	"math/big"

	"github.com/tos-network/rollupsync/common"
)

// Note is a locally decrypted, owned UTXO-style value record. A note whose
// Value is zero is never persisted (see the processNewNote contract in
// package userstate).
type Note struct {
	AssetId        uint32
	Value          *big.Int
	Commitment     common.Hash32
	Secret         common.Hash32
	Nullifier      common.Hash32
	Nullified      bool
	Owner          AccountId
	CreatorPubKey  common.Key32
	InputNullifier common.Hash32
	Index          uint32
	AllowChain     bool
	Pending        bool
}

// Clone returns a deep-enough copy safe to hand to a caller that may mutate
// the returned value's Value or Nullified fields without racing the
// database's own copy.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Value != nil {
		cp.Value = new(big.Int).Set(n.Value)
	}
	return &cp
}

// Claim is the intermediate record created by a DEFI_DEPOSIT and consumed by
// the matching DEFI_CLAIM.
type Claim struct {
	TxHash    common.Hash32
	Secret    common.Hash32
	Nullifier common.Hash32
	Owner     AccountId
}
