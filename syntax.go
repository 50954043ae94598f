package microscheme

// Accessors over raw S-expression shape, named after the originals in
// HELP.C: operator/operands/first_arg/second_arg/third_arg give the
// trampoline's START label a uniform way to pick apart any special
// form before it has decided what the form even is.

func (h *Heap) operator(expr Value) Value { return h.Car(expr) }
func (h *Heap) operands(expr Value) Value { return h.Cdr(expr) }

func (h *Heap) firstArg(expr Value) Value  { return h.Car(h.Cdr(expr)) }
func (h *Heap) secondArg(expr Value) Value { return h.Car(h.Cdr(h.Cdr(expr))) }
func (h *Heap) thirdArg(expr Value) Value  { return h.Car(h.Cdr(h.Cdr(h.Cdr(expr)))) }

// listLength returns the length of a proper list, or -1 if cur is not
// one.
func (h *Heap) listLength(cur Value) int {
	n := 0
	for cur != NIL {
		if !cur.IsCons() {
			return -1
		}
		n++
		cur = h.Cdr(cur)
	}
	return n
}

func (h *Heap) isProperList(cur Value) bool { return h.listLength(cur) >= 0 }

// isSymbolChain reports whether cur is a (possibly empty) proper list
// of symbols, optionally terminated by a bare symbol (a rest
// parameter) instead of NIL.
func (h *Heap) isSymbolChain(cur Value) bool {
	for cur != NIL {
		if cur.IsCons() {
			if !h.Car(cur).IsSymbol(h) {
				return false
			}
			cur = h.Cdr(cur)
		} else {
			return cur.IsSymbol(h)
		}
	}
	return true
}

// hasDuplicateVars reports whether a parameter chain repeats a symbol.
func (h *Heap) hasDuplicateVars(vars Value) bool {
	for vars.IsCons() {
		x := h.Car(vars)
		rest := h.Cdr(vars)
		for rest.IsCons() {
			if h.symbolEqual(x, h.Car(rest)) {
				return true
			}
			rest = h.Cdr(rest)
		}
		if rest.IsSymbol(h) && h.symbolEqual(x, rest) {
			return true
		}
		vars = h.Cdr(vars)
	}
	return false
}

// clauses lowers an `if` expression into cond-clause form (§4.6):
//
//	(if p c)   -> ((p c))
//	(if p c a) -> ((p c) (else a))
//
// Any other expression is assumed to already be a well-formed cond
// and its operand list is returned unchanged.
func (h *Heap) clauses(expr Value) Value {
	if !h.symbolEqual(h.operator(expr), h.keywords.ifSym) {
		return h.operands(expr)
	}
	pred, conseq := h.firstArg(expr), h.secondArg(expr)
	n := h.listLength(expr)

	h.PushValue(pred)
	thenBody := h.Cons(conseq, NIL)
	pred = h.PopValue()
	h.PushValue(thenBody)
	thenClause := h.Cons(pred, thenBody)
	h.PopValue()

	h.PushValue(thenClause)
	if n != 4 {
		result := h.Cons(thenClause, NIL)
		h.PopValue()
		return result
	}

	alt := h.thirdArg(expr)
	elseBody := h.Cons(alt, NIL)
	h.PushValue(elseBody)
	elseClause := h.Cons(h.keywords.elseSym, elseBody)
	h.PopValue()
	h.PushValue(elseClause)
	elseList := h.Cons(elseClause, NIL)
	h.PopValue()
	h.PushValue(elseList)
	result := h.Cons(thenClause, elseList)
	h.PopValue()
	h.PopValue()
	return result
}

// rewriteDefine expands `(define (f x...) body...)` into
// `(define f (lambda (x...) body...))`. Forms already in
// `(define sym val)` shape are returned unchanged.
func (h *Heap) rewriteDefine(expr Value) (sym, valueExpr Value) {
	target := h.firstArg(expr)
	if target.IsCons() {
		name := h.Car(target)
		params := h.Cdr(target)
		body := h.Cdr(h.Cdr(expr))
		h.PushValue(name)
		lambda := h.Cons(params, body)
		h.PopValue()
		h.PushValue(lambda)
		lambda = h.Cons(h.keywords.lambdaSym, lambda)
		h.PopValue()
		return name, lambda
	}
	return target, h.secondArg(expr)
}

// rewriteLet expands `(let ((v e)...) body...)` into
// `((lambda (v...) body...) e...)`.
func (h *Heap) rewriteLet(expr Value) Value {
	bindings := h.firstArg(expr)
	body := h.Cdr(h.Cdr(expr))

	h.PushValue(body)
	vars, vals := h.separateAssoc(bindings)
	body = h.PopValue()

	h.PushValue(vars)
	h.PushValue(vals)
	lambdaBody := h.Cons(vars, body)
	h.PopValue()
	h.PopValue()
	h.PushValue(vals)
	h.PushValue(lambdaBody)
	lambda := h.Cons(h.keywords.lambdaSym, lambdaBody)
	h.PopValue()

	h.PushValue(lambda)
	call := h.Cons(lambda, NIL)
	h.PopValue()
	vals = h.PopValue()
	return h.appendList(call, vals)
}

// separateAssoc splits a `((v e)...)` association list into parallel
// var and value lists.
func (h *Heap) separateAssoc(assoc Value) (vars, vals Value) {
	if assoc == NIL {
		return NIL, NIL
	}
	var varItems, valItems []Value
	for assoc != NIL {
		pair := h.Car(assoc)
		varItems = append(varItems, h.Car(pair))
		valItems = append(valItems, h.Car(h.Cdr(pair)))
		assoc = h.Cdr(assoc)
	}
	vars = h.listFromSlice(varItems)
	h.PushValue(vars)
	vals = h.listFromSlice(valItems)
	vars = h.PopValue()
	return vars, vals
}

func (h *Heap) listFromSlice(items []Value) Value {
	result := NIL
	for i := len(items) - 1; i >= 0; i-- {
		h.PushValue(result)
		h.PushValue(items[i])
		item := items[i]
		result = h.Cons(item, result)
		h.PopValue()
		h.PopValue()
	}
	return result
}

// appendList destructively appends rest onto the end of the proper
// list head (head must be non-NIL).
func (h *Heap) appendList(head, rest Value) Value {
	end := head
	for h.Cdr(end) != NIL {
		end = h.Cdr(end)
	}
	h.SetCdr(end, rest)
	return head
}
