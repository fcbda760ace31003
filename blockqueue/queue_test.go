package blockqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/rollupsync/types"
)

func TestDrainConsumesInFIFOOrder(t *testing.T) {
	q := New()
	for i := uint32(0); i < 5; i++ {
		q.Push(&types.Block{RollupId: i})
	}

	var got []uint32
	done := make(chan struct{})
	go func() {
		_ = q.Drain(context.Background(), func(b *types.Block) error {
			got = append(got, b.RollupId)
			if len(got) == 5 {
				q.Close(true)
			}
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not finish")
	}
	require.Equal(t, []uint32{0, 1, 2, 3, 4}, got)
}

func TestCloseWithoutFlushDiscardsQueued(t *testing.T) {
	q := New()
	q.Push(&types.Block{RollupId: 1})
	q.Push(&types.Block{RollupId: 2})
	q.Close(false)

	var got []uint32
	err := q.Drain(context.Background(), func(b *types.Block) error {
		got = append(got, b.RollupId)
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDrainStopsOnContextCancel(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- q.Drain(ctx, func(*types.Block) error { return nil }) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("drain did not observe cancellation")
	}
}
