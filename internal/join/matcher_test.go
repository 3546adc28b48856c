package join

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWildcardAlwaysMatches(t *testing.T) {
	bound, ok := Wildcard{}.Match(MolVal{Value: 42})
	require.True(t, ok)
	require.Nil(t, bound)
	require.True(t, Wildcard{}.infallible())
}

func TestSimpleVarBindsValue(t *testing.T) {
	bound, ok := SimpleVar{}.Match(MolVal{Value: "hi"})
	require.True(t, ok)
	require.Equal(t, "hi", bound)
}

func TestConstantMatchesExactValue(t *testing.T) {
	c := Constant{Value: 7}
	_, ok := c.Match(MolVal{Value: 7})
	require.True(t, ok)
	_, ok = c.Match(MolVal{Value: 8})
	require.False(t, ok)
}

func TestArbitraryRunsPredicate(t *testing.T) {
	even := Arbitrary{Name: "even", Pred: func(v any) (any, bool) {
		n, ok := v.(int)
		return n, ok && n%2 == 0
	}}
	_, ok := even.Match(MolVal{Value: 4})
	require.True(t, ok)
	_, ok = even.Match(MolVal{Value: 3})
	require.False(t, ok)
}

func TestWeakerOrEqualOrdering(t *testing.T) {
	require.True(t, Wildcard{}.weakerOrEqual(SimpleVar{}))
	require.True(t, SimpleVar{}.weakerOrEqual(Wildcard{}))
	require.True(t, SimpleVar{}.weakerOrEqual(Constant{Value: 1}))
	require.True(t, Constant{Value: 1}.weakerOrEqual(Constant{Value: 1}))
	require.False(t, Constant{Value: 1}.weakerOrEqual(Constant{Value: 2}))

	a1 := Arbitrary{Name: "even"}
	a2 := Arbitrary{Name: "even"}
	a3 := Arbitrary{Name: "odd"}
	require.True(t, a1.weakerOrEqual(a2))
	require.False(t, a1.weakerOrEqual(a3))
}

func TestReplyBinderRequiresLiveSlot(t *testing.T) {
	_, ok := ReplyBinder{}.Match(MolVal{Value: 1})
	require.False(t, ok)

	slot := NewReplySlot()
	bound, ok := ReplyBinder{}.Match(MolVal{Value: 1, Reply: slot})
	require.True(t, ok)
	_, isHandle := bound.(*ReplyHandle)
	require.True(t, isHandle)
}
