// Package notes implements per-asset spendable-note selection, grounded on
// the teacher's sorted-value-set statistics in tos/gasprice (a sorted list
// of recent gas prices queried for percentile/threshold values) and the
// smallest-fit selection style of core/tx_pool's price-sorted transaction
// lists.
package notes

import (
	"math/big"
	"sort"
	"sync"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/types"
)

// NullifierSet is an exclusion set consulted by every selection call, e.g.
// the provider's pending-nullifier view (spec.md §9 "pending-note
// exclusion").
type NullifierSet map[common.Hash32]struct{}

func NewNullifierSet(nullifiers ...common.Hash32) NullifierSet {
	s := make(NullifierSet, len(nullifiers))
	for _, n := range nullifiers {
		s[n] = struct{}{}
	}
	return s
}

func (s NullifierSet) Contains(n common.Hash32) bool {
	if s == nil {
		return false
	}
	_, ok := s[n]
	return ok
}

// Picker holds the confirmed, non-nullified notes for one asset belonging
// to one user.
type Picker struct {
	mu    sync.RWMutex
	notes map[common.Hash32]*types.Note // by nullifier
}

func NewPicker() *Picker {
	return &Picker{notes: make(map[common.Hash32]*types.Note)}
}

// Load replaces the picker's contents, used by the factory at startup and
// by handlers after mutating storage (spec.md §4.D "refresh the NotePicker").
func (p *Picker) Load(notes []*types.Note) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = make(map[common.Hash32]*types.Note, len(notes))
	for _, n := range notes {
		if n.Nullified || n.Pending {
			continue
		}
		p.notes[n.Nullifier] = n
	}
}

func (p *Picker) spendable(excluded NullifierSet) []*types.Note {
	out := make([]*types.Note, 0, len(p.notes))
	for _, n := range p.notes {
		if excluded.Contains(n.Nullifier) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value.Cmp(out[j].Value) < 0 })
	return out
}

// PickOne returns the smallest single spendable note with value >= target,
// or nil if none qualifies.
func (p *Picker) PickOne(target *big.Int, excluded NullifierSet) *types.Note {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, n := range p.spendable(excluded) {
		if n.Value.Cmp(target) >= 0 {
			return n
		}
	}
	return nil
}

// Pick chooses up to two notes whose sum is >= target, preferring the
// combination that minimizes the note count, then the excess over target.
func (p *Picker) Pick(target *big.Int, excluded NullifierSet) []*types.Note {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if single := p.pickOneLocked(target, excluded); single != nil {
		return []*types.Note{single}
	}

	spendable := p.spendable(excluded)
	var best []*types.Note
	var bestExcess *big.Int
	for i := 0; i < len(spendable); i++ {
		for j := i + 1; j < len(spendable); j++ {
			sum := new(big.Int).Add(spendable[i].Value, spendable[j].Value)
			if sum.Cmp(target) < 0 {
				continue
			}
			excess := new(big.Int).Sub(sum, target)
			if bestExcess == nil || excess.Cmp(bestExcess) < 0 {
				bestExcess = excess
				best = []*types.Note{spendable[i], spendable[j]}
			}
		}
	}
	return best
}

func (p *Picker) pickOneLocked(target *big.Int, excluded NullifierSet) *types.Note {
	for _, n := range p.spendable(excluded) {
		if n.Value.Cmp(target) >= 0 {
			return n
		}
	}
	return nil
}

// GetSpendableNotes returns every non-excluded note and their sum.
func (p *Picker) GetSpendableNotes(excluded NullifierSet) ([]*types.Note, *big.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	spendable := p.spendable(excluded)
	sum := new(big.Int)
	for _, n := range spendable {
		sum.Add(sum, n.Value)
	}
	return spendable, sum
}

func (p *Picker) GetSpendableSum(excluded NullifierSet) *big.Int {
	_, sum := p.GetSpendableNotes(excluded)
	return sum
}

// GetMaxSpendableValue returns the largest sum achievable under the
// two-note selection rule: either the single largest note, or the sum of
// the two largest notes, whichever is larger.
func (p *Picker) GetMaxSpendableValue(excluded NullifierSet) *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	spendable := p.spendable(excluded)
	if len(spendable) == 0 {
		return new(big.Int)
	}
	largest := spendable[len(spendable)-1].Value
	if len(spendable) == 1 {
		return new(big.Int).Set(largest)
	}
	secondLargest := spendable[len(spendable)-2].Value
	twoSum := new(big.Int).Add(largest, secondLargest)
	if twoSum.Cmp(largest) > 0 {
		return twoSum
	}
	return new(big.Int).Set(largest)
}

// GetSum returns the local balance: the sum of every non-nullified note,
// ignoring any exclusion set.
func (p *Picker) GetSum() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sum := new(big.Int)
	for _, n := range p.notes {
		sum.Add(sum, n.Value)
	}
	return sum
}
