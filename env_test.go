package microscheme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineAndLookupVariable(t *testing.T) {
	h := newTestHeap(t)
	env := h.newGlobalEnvironment()

	x := h.MakeSymbol("x")
	h.DefineVariable(x, h.MakeInt(10), env)

	b := h.bindingInEnv(x, env)
	require.NotEqual(t, NIL, b)
	assert.Equal(t, int64(10), h.IntOf(h.bindingValue(b)))
}

func TestSetVariableUnboundFails(t *testing.T) {
	h := newTestHeap(t)
	env := h.newGlobalEnvironment()

	defer func() {
		r := recover()
		require.NotNil(t, r)
		rerr, ok := isRuntimeError(r)
		require.True(t, ok)
		assert.Equal(t, UnboundVariable, rerr.Kind)
	}()
	h.SetVariable(h.MakeSymbol("nope"), h.MakeInt(1), env)
}

func TestSetVariableMutatesBindingInPlace(t *testing.T) {
	h := newTestHeap(t)
	env := h.newGlobalEnvironment()
	x := h.MakeSymbol("x")
	h.DefineVariable(x, h.MakeInt(1), env)

	h.SetVariable(x, h.MakeInt(2), env)

	b := h.bindingInEnv(x, env)
	assert.Equal(t, int64(2), h.IntOf(h.bindingValue(b)))
}

func TestExtendEnvironmentBindsPositionalArgs(t *testing.T) {
	h := newTestHeap(t)
	base := h.newGlobalEnvironment()

	a, b := h.MakeSymbol("a"), h.MakeSymbol("b")
	vars := h.Cons(a, h.Cons(b, NIL))
	vals := h.Cons(h.MakeInt(1), h.Cons(h.MakeInt(2), NIL))

	env := h.ExtendEnvironment(vars, vals, base)
	assert.True(t, h.HintEnvironmentP(env))
	assert.Equal(t, int64(1), h.IntOf(h.bindingValue(h.bindingInEnv(a, env))))
	assert.Equal(t, int64(2), h.IntOf(h.bindingValue(h.bindingInEnv(b, env))))
	assert.Equal(t, base, h.parentEnv(env))
}

func TestExtendEnvironmentRestParameter(t *testing.T) {
	h := newTestHeap(t)
	base := h.newGlobalEnvironment()

	a, rest := h.MakeSymbol("a"), h.MakeSymbol("rest")
	vars := h.Cons(a, rest) // dotted: (a . rest)
	vals := h.Cons(h.MakeInt(1), h.Cons(h.MakeInt(2), h.Cons(h.MakeInt(3), NIL)))

	env := h.ExtendEnvironment(vars, vals, base)
	assert.Equal(t, int64(1), h.IntOf(h.bindingValue(h.bindingInEnv(a, env))))

	restVal := h.bindingValue(h.bindingInEnv(rest, env))
	assert.Equal(t, int64(2), h.IntOf(h.Car(restVal)))
	assert.Equal(t, int64(3), h.IntOf(h.Car(h.Cdr(restVal))))
}

func TestExtendEnvironmentArityMismatch(t *testing.T) {
	h := newTestHeap(t)
	base := h.newGlobalEnvironment()
	vars := h.Cons(h.MakeSymbol("a"), h.Cons(h.MakeSymbol("b"), NIL))
	vals := h.Cons(h.MakeInt(1), NIL)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		rerr, ok := isRuntimeError(r)
		require.True(t, ok)
		assert.Equal(t, ArgumentArity, rerr.Kind)
	}()
	h.ExtendEnvironment(vars, vals, base)
}

func TestExtendEnvironmentEmptyReturnsBaseUnchanged(t *testing.T) {
	h := newTestHeap(t)
	base := h.newGlobalEnvironment()
	env := h.ExtendEnvironment(NIL, NIL, base)
	assert.Equal(t, base, env)
}

func TestMakeProcedureAccessors(t *testing.T) {
	h := newTestHeap(t)
	env := h.newGlobalEnvironment()
	params := h.Cons(h.MakeSymbol("x"), NIL)
	body := h.Cons(h.MakeSymbol("x"), NIL)

	proc := h.makeProcedure(params, body, env)
	assert.True(t, h.HintProcedureP(proc))
	assert.Equal(t, params, h.procParams(proc))
	assert.Equal(t, body, h.procBody(proc))
	assert.Equal(t, env, h.procEnv(proc))
}

func TestSymbolEqualComparesShortAndBoxedSymbols(t *testing.T) {
	h := newTestHeap(t)
	short := h.MakeSymbol("xy")
	boxedA := h.MakeSymbol("a-long-symbol-name")
	boxedB := h.MakeSymbol("a-long-symbol-name")
	assert.True(t, h.symbolEqual(boxedA, boxedB))
	assert.False(t, h.symbolEqual(short, boxedA))
}
