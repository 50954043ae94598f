package microscheme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	cfg := NewConfig()
	cfg.SetInt("heap.cons_words", 256)
	cfg.SetInt("heap.storage_words", 256)
	cfg.SetInt("stack.value_depth", 256)
	cfg.SetInt("stack.label_depth", 256)
	h := NewHeap(cfg)
	h.internReserved()
	return h
}

func TestConsBasics(t *testing.T) {
	h := newTestHeap(t)
	a := h.MakeInt(1)
	b := h.MakeInt(2)
	p := h.Cons(a, b)
	assert.True(t, p.IsCons())
	assert.Equal(t, a, h.Car(p))
	assert.Equal(t, b, h.Cdr(p))

	h.SetCar(p, h.MakeInt(9))
	assert.Equal(t, int64(9), h.IntOf(h.Car(p)))
}

func TestMakeIntImmediateVsBoxed(t *testing.T) {
	h := newTestHeap(t)
	small := h.MakeInt(42)
	assert.True(t, isShort(small))
	assert.Equal(t, int64(42), h.IntOf(small))

	big := h.MakeInt(1 << 20)
	assert.True(t, big.IsStorage())
	assert.Equal(t, int64(1<<20), h.IntOf(big))

	neg := h.MakeInt(-(1 << 20))
	assert.Equal(t, int64(-(1<<20)), h.IntOf(neg))
}

func TestMakeStringImmediateVsBoxed(t *testing.T) {
	h := newTestHeap(t)
	short := h.MakeString("ab")
	assert.True(t, short.IsImmediate())
	assert.Equal(t, "ab", h.StringOf(short))

	long := h.MakeString("a string long enough to need storage")
	assert.True(t, long.IsStorage())
	assert.Equal(t, "a string long enough to need storage", h.StringOf(long))
}

func TestMakeSymbolInterning(t *testing.T) {
	h := newTestHeap(t)
	car1 := h.MakeSymbol("car")
	car2 := h.MakeSymbol("car")
	assert.Equal(t, car1, car2, "reserved symbols intern to the same value")

	user1 := h.MakeSymbol("my-long-name")
	user2 := h.MakeSymbol("my-long-name")
	assert.NotEqual(t, user1, user2, "non-reserved long symbols are fresh allocations")
	assert.True(t, h.Eq(user1, user2), "boxed symbols compare structurally, never by identity")
	assert.Equal(t, h.SymbolOf(user1), h.SymbolOf(user2))
}

func TestEqStructuralOnBoxedEqualPayload(t *testing.T) {
	h := newTestHeap(t)
	a := h.MakeInt(1 << 20)
	b := h.MakeInt(1 << 20)
	assert.NotEqual(t, a, b)
	assert.True(t, h.Eq(a, b))

	s1 := h.MakeString("a long enough string to box")
	s2 := h.MakeString("a long enough string to box")
	assert.True(t, h.Eq(s1, s2))
}

func TestFirstFitReturnsTailToFreeList(t *testing.T) {
	h := newTestHeap(t)
	before := h.storageFree
	require.NotZero(t, before)
	v := h.MakeString("xyz1") // 4 bytes -> boxed, small block
	assert.True(t, v.IsStorage())
	assert.NotZero(t, h.storageFree, "remaining tail of the split block returns to the free list")
}

func TestOutOfConsSpaceOnExhaustion(t *testing.T) {
	cfg := NewConfig()
	cfg.SetInt("heap.cons_words", 4)
	cfg.SetInt("heap.storage_words", 64)
	cfg.SetInt("stack.value_depth", 64)
	cfg.SetInt("stack.label_depth", 64)
	h := NewHeap(cfg)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		rerr, ok := isRuntimeError(r)
		require.True(t, ok)
		assert.Equal(t, OutOfConsSpace, rerr.Kind)
	}()
	// Every cell stays reachable by chaining onto a rooted list, so
	// collection can never reclaim anything and exhaustion is genuine.
	list := NIL
	h.Pin(list)
	for i := 0; i < 1000; i++ {
		h.PushValue(list)
		list = h.Cons(NIL, list)
		h.PopValue()
		h.rootStack[0] = list
	}
}
