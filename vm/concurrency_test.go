package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelFIFOOrdering(t *testing.T) {
	t.Parallel()
	ch := NewChannel(0)
	require.NoError(t, ch.Send(NewUnsignedBitsU64(8, 1)))
	require.NoError(t, ch.Send(NewUnsignedBitsU64(8, 2)))
	require.NoError(t, ch.Send(NewUnsignedBitsU64(8, 3)))

	first, err := ch.Recv()
	require.NoError(t, err)
	require.Equal(t, int64(1), mustUnsigned(t, first).Int64())

	second, err := ch.Recv()
	require.NoError(t, err)
	require.Equal(t, int64(2), mustUnsigned(t, second).Int64())

	third, err := ch.Recv()
	require.NoError(t, err)
	require.Equal(t, int64(3), mustUnsigned(t, third).Int64())
}

func TestChannelRecvOnEmptyIsUnavailable(t *testing.T) {
	t.Parallel()
	ch := NewChannel(0)
	_, err := ch.Recv()
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, Unavailable, kind)
}

func TestChannelSendNeverBlocksEvenWhenFull(t *testing.T) {
	t.Parallel()
	ch := NewChannel(1)
	for i := 0; i < 100; i++ {
		require.NoError(t, ch.Send(NewUnsignedBitsU64(8, uint64(i))))
	}
	require.Equal(t, 100, ch.Len())
}

func TestChannelSendAfterCloseFails(t *testing.T) {
	t.Parallel()
	ch := NewChannel(0)
	ch.Close()
	err := ch.Send(NewUnsignedBitsU64(8, 1))
	require.Error(t, err)
}

func TestChannelRegistryAllocateAndGet(t *testing.T) {
	t.Parallel()
	reg := NewChannelRegistry()
	id, ch := reg.Allocate(4)
	got, ok := reg.Get(id)
	require.True(t, ok)
	require.Same(t, ch, got)

	_, ok = reg.Get(id + 1)
	require.False(t, ok)
}
