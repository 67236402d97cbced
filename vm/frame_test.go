package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestUntouchedSlotReadsAsToken guards the invariant that a frame slot no
// instruction has written yet reads as the token value, not Go's zero
// Value{} (which would carry a nil *big.Int magnitude and panic the moment
// any bits op, Eq, or String touched it).
func TestUntouchedSlotReadsAsToken(t *testing.T) {
	t.Parallel()
	bf := NewBytecodeFunction(FunctionID{Module: "test", Name: "f"}, 0, 3, nil)
	f := NewFrame(bf, []Value{u32(1)}, nil, nil)

	v0, err := f.slot(0)
	require.NoError(t, err)
	require.True(t, v0.Eq(u32(1)))

	v1, err := f.slot(1)
	require.NoError(t, err)
	require.True(t, v1.IsToken())

	v2, err := f.slot(2)
	require.NoError(t, err)
	require.True(t, v2.IsToken())
}

// TestSetSlotGrowPathFillsGapWithToken exercises setSlot's lazy-grow path:
// writing past the current end must not leave the newly grown, not-yet-set
// slots as a zero Value{}.
func TestSetSlotGrowPathFillsGapWithToken(t *testing.T) {
	t.Parallel()
	bf := NewBytecodeFunction(FunctionID{Module: "test", Name: "f"}, 0, 1, nil)
	f := NewFrame(bf, nil, nil, nil)

	require.NoError(t, f.setSlot(3, u32(7)))

	gap, err := f.slot(1)
	require.NoError(t, err)
	require.True(t, gap.IsToken())

	written, err := f.slot(3)
	require.NoError(t, err)
	require.True(t, written.Eq(u32(7)))
}
