package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFrame(slotCount int) *Frame {
	bf := NewBytecodeFunction(FunctionID{Module: "test", Name: "f"}, 0, slotCount, nil)
	return NewFrame(bf, nil, nil, nil)
}

func TestMatchLiteralPattern(t *testing.T) {
	t.Parallel()
	f := newTestFrame(1)
	matched, err := matchPattern(LiteralPattern(NewUnsignedBitsU64(4, 3)), NewUnsignedBitsU64(4, 3), f)
	require.NoError(t, err)
	require.True(t, matched)

	matched, err = matchPattern(LiteralPattern(NewUnsignedBitsU64(4, 3)), NewUnsignedBitsU64(4, 4), f)
	require.NoError(t, err)
	require.False(t, matched)
}

func TestMatchTuplePatternStoresOnSuccess(t *testing.T) {
	t.Parallel()
	f := newTestFrame(2)
	p := TuplePattern(StorePattern(0), StorePattern(1))
	scrutinee := NewTuple([]Value{NewUnsignedBitsU64(4, 1), NewUnsignedBitsU64(4, 2)})
	matched, err := matchPattern(p, scrutinee, f)
	require.NoError(t, err)
	require.True(t, matched)
	v0, _ := f.slot(0)
	v1, _ := f.slot(1)
	require.True(t, v0.Eq(NewUnsignedBitsU64(4, 1)))
	require.True(t, v1.Eq(NewUnsignedBitsU64(4, 2)))
}

// TestMatchTuplePatternStoresEvenOnFailure exercises the documented
// carry-over behavior: a Store sub-pattern writes its slot unconditionally,
// even when a sibling sub-pattern causes the overall tuple match to fail.
func TestMatchTuplePatternStoresEvenOnFailure(t *testing.T) {
	t.Parallel()
	f := newTestFrame(1)
	p := TuplePattern(StorePattern(0), LiteralPattern(NewUnsignedBitsU64(4, 9)))
	scrutinee := NewTuple([]Value{NewUnsignedBitsU64(4, 7), NewUnsignedBitsU64(4, 1)})
	matched, err := matchPattern(p, scrutinee, f)
	require.NoError(t, err)
	require.False(t, matched)
	v0, err := f.slot(0)
	require.NoError(t, err)
	require.True(t, v0.Eq(NewUnsignedBitsU64(4, 7)))
}

// TestMatchTupleArityMismatchIsFatal exercises the upstream invariant that a
// tuple pattern is only ever emitted with an arity matching its scrutinee's
// static shape: a mismatch indicates a bytecode producer bug, not an
// ordinary failed match, so it surfaces as an Internal error rather than a
// plain (false, nil).
func TestMatchTupleArityMismatchIsFatal(t *testing.T) {
	t.Parallel()
	f := newTestFrame(2)
	p := TuplePattern(StorePattern(0), StorePattern(1))
	scrutinee := NewTuple([]Value{NewUnsignedBitsU64(4, 1)})
	_, err := matchPattern(p, scrutinee, f)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, Internal, kind)
}

func TestMatchLoadPatternComparesBoundValue(t *testing.T) {
	t.Parallel()
	f := newTestFrame(1)
	require.NoError(t, f.setSlot(0, NewUnsignedBitsU64(4, 5)))
	matched, err := matchPattern(LoadPattern(0), NewUnsignedBitsU64(4, 5), f)
	require.NoError(t, err)
	require.True(t, matched)

	matched, err = matchPattern(LoadPattern(0), NewUnsignedBitsU64(4, 6), f)
	require.NoError(t, err)
	require.False(t, matched)
}

func TestMatchWildcardAlwaysMatches(t *testing.T) {
	t.Parallel()
	f := newTestFrame(0)
	matched, err := matchPattern(WildcardPattern(), NewArray(nil), f)
	require.NoError(t, err)
	require.True(t, matched)
}
