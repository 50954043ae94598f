package microscheme

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalAll reads every top-level form out of src in turn and evaluates
// each in env, returning the value of the last one.
func evalAll(t *testing.T, h *Heap, env Value, src string) Value {
	t.Helper()
	rd := NewReader(bufio.NewReader(strings.NewReader(src)), h)
	var result Value
	for {
		v, status, err := rd.Read()
		require.NoError(t, err)
		if status == StatusTerm {
			return result
		}
		result = h.Eval(v, env)
		if status == StatusStop {
			return result
		}
	}
}

func newEvalHeap(t *testing.T) (*Heap, Value) {
	t.Helper()
	cfg := NewConfig()
	cfg.SetInt("heap.cons_words", 200000)
	cfg.SetInt("heap.storage_words", 8192)
	cfg.SetInt("stack.value_depth", 2000000)
	cfg.SetInt("stack.label_depth", 2000000)
	h := NewHeap(cfg)
	h.internReserved()
	return h, h.newGlobalEnvironment()
}

func TestEvalArithmetic(t *testing.T) {
	h, env := newEvalHeap(t)
	result := evalAll(t, h, env, "(+ 1 2 3)")
	assert.Equal(t, int64(6), h.IntOf(result))
}

func TestEvalFactorial(t *testing.T) {
	h, env := newEvalHeap(t)
	result := evalAll(t, h, env, `
		(define (fact n)
		  (if (= n 0) 1 (* n (fact (- n 1)))))
		(fact 6)
	`)
	assert.Equal(t, int64(720), h.IntOf(result))
}

func TestEvalLet(t *testing.T) {
	h, env := newEvalHeap(t)
	result := evalAll(t, h, env, "(let ((a 10) (b 20)) (+ a b))")
	assert.Equal(t, int64(30), h.IntOf(result))
}

func TestEvalCond(t *testing.T) {
	h, env := newEvalHeap(t)
	result := evalAll(t, h, env, "(cond ((= 1 2) 'a) ((= 2 2) 'b) (else 'c))")
	assert.Equal(t, "b", h.SymbolOf(result))
}

func TestEvalSetBang(t *testing.T) {
	h, env := newEvalHeap(t)
	result := evalAll(t, h, env, "(define x 1) (set! x (+ x 41)) x")
	assert.Equal(t, int64(42), h.IntOf(result))
}

func TestEvalAndOrShortCircuit(t *testing.T) {
	h, env := newEvalHeap(t)
	assert.False(t, BoolOf(evalAll(t, h, env, "(and 1 2 #F (error-should-not-run))")))
	assert.Equal(t, int64(3), h.IntOf(evalAll(t, h, env, "(and 1 2 3)")))
	assert.True(t, BoolOf(evalAll(t, h, env, "(or #F #F #T)")))
	assert.Equal(t, int64(5), h.IntOf(evalAll(t, h, env, "(or 5 (error-should-not-run))")))
}

func TestEvalLambdaClosureAndRestParams(t *testing.T) {
	h, env := newEvalHeap(t)
	result := evalAll(t, h, env, `
		(define (make-adder n) (lambda (x) (+ x n)))
		(define add5 (make-adder 5))
		(add5 10)
	`)
	assert.Equal(t, int64(15), h.IntOf(result))

	result = evalAll(t, h, env, `
		(define (total . xs)
		  (define (go l) (if (null? l) 0 (+ (car l) (go (cdr l)))))
		  (go xs))
		(total 1 2 3 4)
	`)
	assert.Equal(t, int64(10), h.IntOf(result))
}

func TestEvalDefineRedefinitionWarnsThenOverwrites(t *testing.T) {
	h, env := newEvalHeap(t)
	result := evalAll(t, h, env, "(define y 1) (define y 2) y")
	assert.Equal(t, int64(2), h.IntOf(result))
}

func TestEvalSetUnboundVariableRecoverable(t *testing.T) {
	h, env := newEvalHeap(t)
	defer func() {
		r := recover()
		require.NotNil(t, r)
		rerr, ok := isRuntimeError(r)
		require.True(t, ok)
		assert.Equal(t, UnboundVariable, rerr.Kind)
		assert.True(t, rerr.Kind.Recoverable())
	}()
	evalAll(t, h, env, "(set! never-defined 1)")
}

func TestEvalReservedMutationFails(t *testing.T) {
	h, env := newEvalHeap(t)
	defer func() {
		r := recover()
		require.NotNil(t, r)
		rerr, ok := isRuntimeError(r)
		require.True(t, ok)
		assert.Equal(t, ReservedMutation, rerr.Kind)
	}()
	evalAll(t, h, env, "(define if 1)")
}

// TestEvalSurvivesGarbageCollectionMidLoop allocates a long chain of
// conses into a cons arena sized above the peak live set (the
// 20000-cell list plus one procedure cell per pending `len` frame) but
// far below the total allocated, so the churn of transient argument
// lists built along the way forces at least one collection before the
// loop completes, and confirms the final result is still correct.
func TestEvalSurvivesGarbageCollectionMidLoop(t *testing.T) {
	cfg := NewConfig()
	cfg.SetInt("heap.cons_words", 100000)
	cfg.SetInt("heap.storage_words", 8192)
	cfg.SetInt("stack.value_depth", 2000000)
	cfg.SetInt("stack.label_depth", 2000000)
	h := NewHeap(cfg)
	h.internReserved()
	env := h.newGlobalEnvironment()

	result := evalAll(t, h, env, `
		(define (build n acc)
		  (if (= n 0) acc (build (- n 1) (cons n acc))))
		(define lst (build 20000 '()))
		(define (len l) (if (null? l) 0 (+ 1 (len (cdr l)))))
		(len lst)
	`)
	assert.Equal(t, int64(20000), h.IntOf(result))

	h.Collect()
	stable := h.consFreeCount()
	h.Collect()
	assert.Equal(t, stable, h.consFreeCount(),
		"a second collection reclaims nothing further once all garbage is already swept")
}

func TestEvalFloorDivision(t *testing.T) {
	h, env := newEvalHeap(t)
	assert.Equal(t, int64(0), h.IntOf(evalAll(t, h, env, "(/ 2)")))
	assert.Equal(t, int64(-3), h.IntOf(evalAll(t, h, env, "(/ 7 -3)")))
}
