// Package provider defines the transport boundary between the synchronizer
// core and the rollup node: fetching blocks and the node's pending-tx/
// pending-nullifier view. This is one of the out-of-scope collaborators
// named in spec.md §6, specified here as an interface plus a reference
// in-memory double and an HTTP client, the way the teacher specifies
// consensus.Engine as an interface with several concrete backends.
package provider

import (
	"context"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/types"
)

// PendingTx is the provider's mempool-like view of a not-yet-settled
// transaction, keyed by the two output-note commitments it will produce.
type PendingTx struct {
	TxId            common.Hash32
	NoteCommitment1 common.Hash32
	NoteCommitment2 common.Hash32
}

// RollupProvider is the read-only source of on-chain rollup state.
type RollupProvider interface {
	// GetBlocks returns every block with RollupId >= fromRollupId, in
	// ascending RollupId order.
	GetBlocks(ctx context.Context, fromRollupId uint32) ([]*types.Block, error)
	// GetPendingTxs returns the node's current pending-tx set, used by the
	// Pending Reconciler to drop abandoned local records.
	GetPendingTxs(ctx context.Context) ([]PendingTx, error)
	// GetPendingNoteNullifiers returns nullifiers of notes already claimed
	// by an in-flight pending tx, excluded from note selection.
	GetPendingNoteNullifiers(ctx context.Context) ([]common.Hash32, error)
}
