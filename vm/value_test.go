package vm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqAcrossBitsTags(t *testing.T) {
	t.Parallel()
	u := NewUnsignedBitsU64(8, 200)
	s := NewSignedBits(8, u.mag)
	e := NewEnumBits(8, u.mag, "MyEnum")
	require.True(t, u.Eq(s))
	require.True(t, u.Eq(e))
	require.True(t, s.Eq(e))
}

func TestEqTuplesAndArraysElementwise(t *testing.T) {
	t.Parallel()
	a := NewTuple([]Value{NewUnsignedBitsU64(4, 1), NewUnsignedBitsU64(4, 2)})
	b := NewTuple([]Value{NewUnsignedBitsU64(4, 1), NewUnsignedBitsU64(4, 2)})
	c := NewTuple([]Value{NewUnsignedBitsU64(4, 1), NewUnsignedBitsU64(4, 3)})
	require.True(t, a.Eq(b))
	require.False(t, a.Eq(c))
}

func TestTokensAlwaysEqual(t *testing.T) {
	t.Parallel()
	require.True(t, MakeToken().Eq(MakeToken()))
}

func TestZeroValueLikePreservesShape(t *testing.T) {
	t.Parallel()
	v := NewTuple([]Value{NewSignedBitsI64(4, -1), NewArray([]Value{NewUnsignedBitsU64(2, 3)})})
	z, err := zeroValueLike(v)
	require.NoError(t, err)
	elems, err := z.Elements()
	require.NoError(t, err)
	require.Equal(t, int64(0), mustSigned(t, elems[0]).Int64())
	arrElems, err := elems[1].Elements()
	require.NoError(t, err)
	require.Equal(t, int64(0), mustUnsigned(t, arrElems[0]).Int64())
}

func mustSigned(t *testing.T, v Value) *big.Int {
	t.Helper()
	n, err := v.Signed()
	require.NoError(t, err)
	return n
}

func TestStringRendering(t *testing.T) {
	t.Parallel()
	require.Equal(t, "u4:5", NewUnsignedBitsU64(4, 5).String())
	require.Equal(t, "s4:-1", NewSignedBitsI64(4, -1).String())
	require.Equal(t, "token", MakeToken().String())
}
