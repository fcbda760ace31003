package userstate

import (
	"context"
	"fmt"
	"time"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/noteprim"
	"github.com/tos-network/rollupsync/proofs"
	"github.com/tos-network/rollupsync/types"
)

// StartSync moves the state machine OFF -> SYNCHING -> MONITORING
// (spec.md §4.F): a no-op if already synching or monitoring, otherwise it
// catches up on every block since syncedToRollup, then begins draining the
// live block queue in its own goroutine.
func (us *UserState) StartSync(ctx context.Context) error {
	us.stateMu.Lock()
	if us.state != types.SyncOff {
		us.stateMu.Unlock()
		return nil
	}
	us.state = types.SyncSynching
	us.syncDone = make(chan struct{})
	us.stateMu.Unlock()

	from := uint32(0)
	if us.user.SyncedToRollup >= 0 {
		from = uint32(us.user.SyncedToRollup + 1)
	}
	blocks, err := us.provider.GetBlocks(ctx, from)
	if err != nil {
		us.setState(types.SyncOff)
		return fmt.Errorf("userstate: start sync: fetch blocks: %w", err)
	}
	if err := us.handleBlocks(ctx, blocks); err != nil {
		us.setState(types.SyncOff)
		return fmt.Errorf("userstate: start sync: apply blocks: %w", err)
	}

	drainCtx, cancel := context.WithCancel(context.Background())
	us.cancel = cancel
	us.drained = make(chan struct{})
	go func() {
		defer close(us.drained)
		if err := us.queue.Drain(drainCtx, func(b *types.Block) error {
			return us.handleBlocks(drainCtx, []*types.Block{b})
		}); err != nil {
			us.log.Error("block queue drain stopped", "err", err)
		}
	}()

	us.setState(types.SyncMonitoring)
	return nil
}

// ProcessBlock enqueues b for the drain loop; a no-op once stopped.
func (us *UserState) ProcessBlock(b *types.Block) {
	us.queue.Push(b)
}

// StopSync closes the queue (flush=true drains what is already enqueued,
// flush=false discards it), waits for the drain goroutine to exit, and
// returns the state machine to OFF. With flush=false the drain context is
// cancelled as well; this never aborts a block already being applied:
// handleBlocks only checks for cancellation between blocks, so the in-flight
// call (if any) finishes its current block before the drain loop observes
// the cancellation and exits. With flush=true the drain context stays live
// until the drain loop has applied every queued block.
func (us *UserState) StopSync(flush bool) error {
	us.stateMu.Lock()
	if us.state == types.SyncOff {
		us.stateMu.Unlock()
		return nil
	}
	us.stateMu.Unlock()

	if !flush && us.cancel != nil {
		us.cancel()
	}
	us.queue.Close(flush)
	if us.drained != nil {
		<-us.drained
	}
	if us.cancel != nil {
		us.cancel()
	}
	us.setState(types.SyncOff)
	return nil
}

// AwaitSynchronised blocks until the state machine leaves SYNCHING, or ctx
// is cancelled first.
func (us *UserState) AwaitSynchronised(ctx context.Context) error {
	us.stateMu.Lock()
	if us.state != types.SyncSynching {
		us.stateMu.Unlock()
		return nil
	}
	done := us.syncDone
	us.stateMu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (us *UserState) setState(s types.SyncState) {
	us.stateMu.Lock()
	defer us.stateMu.Unlock()
	us.state = s
	if s != types.SyncSynching && us.syncDone != nil {
		close(us.syncDone)
		us.syncDone = nil
	}
}

type proofWork struct {
	block      *types.Block
	proofData  *types.RollupProofData
	index      int
	proof      types.InnerProof
	classified *proofs.Classified
}

// handleBlocks is the two-pass core described in spec.md §4.C: classify
// every proof and collect its decrypt candidates first, run one batched
// trial-decrypt across the whole call, then apply per-kind handlers in
// block/proof order. Blocks with RollupId <= syncedToRollup are dropped
// before processing, giving the idempotence property required by §8.
//
// Cancellation is observed only between whole blocks, never between the
// proofs of a single block (spec.md §5: "in-flight block application
// completes, not interrupted mid-block, to preserve invariants"). Progress
// already made on fully-applied blocks is persisted even when ctx is
// cancelled partway through a multi-block catch-up call.
func (us *UserState) handleBlocks(ctx context.Context, blocks []*types.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	before := us.balanceSnapshot()

	var work []proofWork
	batch := &decryptBatch{}

	for _, b := range blocks {
		if int64(b.RollupId) <= us.user.SyncedToRollup {
			continue
		}
		rpd, err := types.DecodeRollupProofData(b.RollupProofData)
		if err != nil {
			return fmt.Errorf("userstate: decode rollup %d proof data: %w", b.RollupId, err)
		}
		for i, proof := range rpd.InnerProofData {
			var offchain []byte
			if i < len(b.OffchainTxData) {
				offchain = b.OffchainTxData[i]
			}
			classified, err := proofs.Classify(proof, offchain)
			if err != nil {
				return fmt.Errorf("userstate: classify rollup %d proof %d: %w", b.RollupId, i, err)
			}
			for _, c := range classified.JoinSplitDecrypt {
				batch.add(c)
			}
			if classified.DefiDepositDecrypt != nil {
				batch.add(*classified.DefiDepositDecrypt)
			}
			work = append(work, proofWork{block: b, proofData: rpd, index: i, proof: proof, classified: classified})
		}
	}

	decryptStart := time.Now()
	decrypted := batch.run(ctx, us.algo, us.user.PrivateKey)
	us.decryptTimer.Update(time.Since(decryptStart))

	maxRollup := us.user.SyncedToRollup
	var blocksApplied int64
	var cancelled bool

	for i := 0; i < len(work); {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		block := work[i].block
		j := i
		for j < len(work) && work[j].block == block {
			w := work[j]
			startIndex := types.NoteStartIndex(w.proofData.DataStartIndex, w.index)
			if err := us.applyProof(w, startIndex, decrypted); err != nil {
				return err
			}
			j++
		}
		if int64(block.RollupId) > maxRollup {
			maxRollup = int64(block.RollupId)
		}
		blocksApplied++
		i = j
	}

	if maxRollup != us.user.SyncedToRollup {
		us.user.SyncedToRollup = maxRollup
		if err := us.db.UpdateUser(us.user); err != nil {
			return fmt.Errorf("userstate: persist synced-to-rollup: %w", err)
		}
	}
	if blocksApplied > 0 {
		us.blocksApplied.Inc(blocksApplied)
	}
	us.emitBalanceDiffs(before)

	if cancelled {
		return ctx.Err()
	}
	return nil
}

func (us *UserState) applyProof(w proofWork, startIndex uint32, decrypted map[common.Hash32]*noteprim.TreeNote) error {
	switch w.proof.ProofId {
	case types.ProofDeposit, types.ProofWithdraw, types.ProofSend:
		return us.handleJoinSplit(w.block, w.proof, startIndex, decrypted)
	case types.ProofAccount:
		return us.handleAccount(w.block, w.proof, startIndex, w.classified.Account)
	case types.ProofDefiDeposit:
		return us.handleDefiDeposit(w.block, w.proof, startIndex, w.classified.DefiDeposit, decrypted)
	case types.ProofDefiClaim:
		return us.handleDefiClaim(w.block, w.proof, startIndex)
	case types.ProofPadding:
		return nil
	default:
		return fmt.Errorf("userstate: unhandled proof kind %s", w.proof.ProofId)
	}
}
