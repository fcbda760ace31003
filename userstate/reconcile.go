package userstate

import (
	"context"
	"fmt"

	"github.com/tos-network/rollupsync/common"
)

// resetData reconciles locally stored pending state against the provider's
// authoritative pending-tx view at startup (spec.md §4.E). Local pending
// records from a prior session may have been abandoned or have timed out
// upstream; anything the provider no longer reports pending is dropped.
func (us *UserState) resetData(ctx context.Context) error {
	pendingTxs, err := us.provider.GetPendingTxs(ctx)
	if err != nil {
		return fmt.Errorf("userstate: reconcile: fetch pending txs: %w", err)
	}
	livePending := make(map[common.Hash32]struct{}, len(pendingTxs))
	liveCommitments := make(map[common.Hash32]struct{}, len(pendingTxs)*2)
	for _, tx := range pendingTxs {
		livePending[tx.TxId] = struct{}{}
		if !tx.NoteCommitment1.IsZero() {
			liveCommitments[tx.NoteCommitment1] = struct{}{}
		}
		if !tx.NoteCommitment2.IsZero() {
			liveCommitments[tx.NoteCommitment2] = struct{}{}
		}
	}

	unsettled, err := us.db.GetUnsettledUserTxs(us.id)
	if err != nil {
		return fmt.Errorf("userstate: reconcile: fetch unsettled txs: %w", err)
	}
	for _, tx := range unsettled {
		if _, ok := livePending[tx.TxHash]; ok {
			continue
		}
		if err := us.db.RemoveUserTx(tx.TxHash, us.id); err != nil {
			return fmt.Errorf("userstate: reconcile: remove abandoned tx %s: %w", tx.TxHash.Hex(), err)
		}
	}

	pendingNotes, err := us.db.GetUserPendingNotes(us.id)
	if err != nil {
		return fmt.Errorf("userstate: reconcile: fetch pending notes: %w", err)
	}
	touched := make(map[uint32]struct{})
	for _, n := range pendingNotes {
		if _, ok := liveCommitments[n.Commitment]; ok {
			continue
		}
		if err := us.db.RemoveNote(n.Nullifier); err != nil {
			return fmt.Errorf("userstate: reconcile: remove orphaned note %s: %w", n.Nullifier.Hex(), err)
		}
		touched[n.AssetId] = struct{}{}
	}
	for assetId := range touched {
		if err := us.refreshPicker(assetId); err != nil {
			return fmt.Errorf("userstate: reconcile: refresh picker for asset %d: %w", assetId, err)
		}
	}
	return nil
}
