package notes

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/types"
)

func note(value int64, nullifier byte) *types.Note {
	var n common.Hash32
	n[31] = nullifier
	return &types.Note{Value: big.NewInt(value), Nullifier: n}
}

func TestPickOnePrefersSmallestFit(t *testing.T) {
	p := NewPicker()
	p.Load([]*types.Note{note(100, 1), note(50, 2), note(200, 3)})

	got := p.PickOne(big.NewInt(60), nil)
	require.NotNil(t, got)
	require.Equal(t, int64(100), got.Value.Int64())
}

func TestPickOneExcludesPending(t *testing.T) {
	p := NewPicker()
	pending := note(1000, 9)
	pending.Pending = true
	p.Load([]*types.Note{note(10, 1), pending})

	got := p.PickOne(big.NewInt(500), nil)
	require.Nil(t, got)
}

func TestPickOneRespectsExclusionSet(t *testing.T) {
	p := NewPicker()
	small := note(50, 1)
	p.Load([]*types.Note{small, note(100, 2)})

	excluded := NewNullifierSet(small.Nullifier)
	got := p.PickOne(big.NewInt(50), excluded)
	require.NotNil(t, got)
	require.Equal(t, int64(100), got.Value.Int64())
}

func TestPickPrefersSingleNoteOverTwo(t *testing.T) {
	p := NewPicker()
	p.Load([]*types.Note{note(30, 1), note(40, 2), note(80, 3)})

	picked := p.Pick(big.NewInt(70), nil)
	require.Len(t, picked, 1)
	require.Equal(t, int64(80), picked[0].Value.Int64())
}

func TestPickCombinesTwoNotesMinimizingExcess(t *testing.T) {
	p := NewPicker()
	p.Load([]*types.Note{note(10, 1), note(20, 2), note(35, 3)})

	picked := p.Pick(big.NewInt(40), nil)
	require.Len(t, picked, 2)
	sum := new(big.Int).Add(picked[0].Value, picked[1].Value)
	require.Equal(t, int64(45), sum.Int64())
}

func TestGetMaxSpendableValueSumsTwoLargest(t *testing.T) {
	p := NewPicker()
	p.Load([]*types.Note{note(5, 1), note(20, 2), note(30, 3)})

	require.Equal(t, int64(50), p.GetMaxSpendableValue(nil).Int64())
}

func TestGetSumIgnoresExclusions(t *testing.T) {
	p := NewPicker()
	a := note(10, 1)
	b := note(20, 2)
	p.Load([]*types.Note{a, b})

	sum := p.GetSum()
	require.Equal(t, int64(30), sum.Int64())

	excluded := NewNullifierSet(a.Nullifier)
	require.Equal(t, int64(20), p.GetSpendableSum(excluded).Int64())
}
