package provider

import (
	"context"
	"sort"
	"sync"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/types"
)

// MemoryProvider is an in-process RollupProvider test double: blocks and
// pending state are pushed in directly rather than fetched over the wire.
type MemoryProvider struct {
	mu                     sync.Mutex
	blocks                 []*types.Block
	pendingTxs             []PendingTx
	pendingNoteNullifiers  []common.Hash32
}

func NewMemoryProvider() *MemoryProvider { return &MemoryProvider{} }

func (p *MemoryProvider) AddBlock(b *types.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocks = append(p.blocks, b)
}

func (p *MemoryProvider) SetPendingTxs(txs []PendingTx) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingTxs = txs
}

func (p *MemoryProvider) SetPendingNoteNullifiers(nullifiers []common.Hash32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingNoteNullifiers = nullifiers
}

func (p *MemoryProvider) GetBlocks(_ context.Context, fromRollupId uint32) ([]*types.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.Block, 0, len(p.blocks))
	for _, b := range p.blocks {
		if b.RollupId >= fromRollupId {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RollupId < out[j].RollupId })
	return out, nil
}

func (p *MemoryProvider) GetPendingTxs(_ context.Context) ([]PendingTx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingTx, len(p.pendingTxs))
	copy(out, p.pendingTxs)
	return out, nil
}

func (p *MemoryProvider) GetPendingNoteNullifiers(_ context.Context) ([]common.Hash32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]common.Hash32, len(p.pendingNoteNullifiers))
	copy(out, p.pendingNoteNullifiers)
	return out, nil
}
