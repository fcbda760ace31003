package userstate

import (
	"math/big"

	"github.com/tos-network/rollupsync/event"
	"github.com/tos-network/rollupsync/types"
)

// UpdateEvent is emitted by the Balance Emitter (spec.md §4.H) around every
// handleBlocks call: one event per asset whose balance changed, followed by
// one trailing event with no asset payload.
type UpdateEvent struct {
	UserID   types.AccountId
	Balance  *big.Int
	Diff     *big.Int
	AssetID  uint32
	HasAsset bool
}

// SubscribeUpdates registers ch to receive future balance-update events.
// Per spec.md §9, listeners must not block the block loop — Send is
// non-blocking and drops the event for any subscriber whose channel is
// full.
func (us *UserState) SubscribeUpdates(ch chan<- UpdateEvent) event.Subscription {
	return us.updates.Subscribe(ch)
}

func (us *UserState) balanceSnapshot() map[uint32]*big.Int {
	us.pickersMu.RLock()
	defer us.pickersMu.RUnlock()
	out := make(map[uint32]*big.Int, len(us.pickers))
	for assetId, p := range us.pickers {
		out[assetId] = p.GetSum()
	}
	return out
}

func (us *UserState) emitBalanceDiffs(before map[uint32]*big.Int) {
	after := us.balanceSnapshot()
	for assetId, afterVal := range after {
		beforeVal, ok := before[assetId]
		if !ok {
			beforeVal = new(big.Int)
		}
		if beforeVal.Cmp(afterVal) == 0 {
			continue
		}
		diff := new(big.Int).Sub(afterVal, beforeVal)
		us.updates.Send(UpdateEvent{
			UserID: us.id, Balance: afterVal, Diff: diff, AssetID: assetId, HasAsset: true,
		})
	}
	us.updates.Send(UpdateEvent{UserID: us.id})
}
