package microscheme

// Eval runs the register-based trampoline to evaluate exp in env and
// returns the result (§4.6). The label stack is expected to be empty
// on entry; Eval pushes the END sentinel itself and drives the
// dispatch loop until it pops back off.
func (h *Heap) Eval(exp, env Value) Value {
	h.regs.Exp = exp
	h.regs.Env = env
	h.PushLabel(LabelEnd)
	h.regs.Cont = LabelStart

	for {
		switch h.regs.Cont {
		case LabelStart:
			h.stepStart()
		case LabelApplication:
			h.stepApplication()
		case LabelListOfValues:
			h.stepListOfValues()
		case LabelListOfValuesCont:
			h.stepListOfValuesCont()
		case LabelCollect:
			h.stepCollect()
		case LabelMicroApply:
			h.stepMicroApply()
		case LabelEvalSequence:
			h.stepEvalSequence()
		case LabelDefinitionCont:
			h.stepDefinitionCont()
		case LabelAssignmentCont:
			h.stepAssignmentCont()
		case LabelAndCont:
			h.stepAndCont()
		case LabelOrCont:
			h.stepOrCont()
		case LabelConditionalCont:
			h.stepConditionalCont()
		case LabelEnd:
			return h.regs.Val
		default:
			throw(SyntaxError, "unreachable dispatch label %s", h.regs.Cont)
		}
	}
}

// stepStart dispatches on the shape of exp: self-evaluating atoms,
// variable references, and every special form (§4.6's START row).
func (h *Heap) stepStart() {
	exp := h.regs.Exp

	switch {
	case exp.IsNil() || exp.IsImmediate():
		h.regs.Val = exp
		h.retreat()
		return
	case exp.IsSymbol(h):
		h.evalVariable(exp)
		return
	case !exp.IsCons():
		h.regs.Val = exp
		h.retreat()
		return
	}

	op := h.operator(exp)
	if op.IsSymbol(h) {
		switch {
		case h.symbolEqual(op, h.keywords.quoteSym):
			h.checkSyntax(h.listLength(exp) == 2, "quote expects exactly one argument")
			h.regs.Val = h.firstArg(exp)
			h.retreat()
			return
		case h.symbolEqual(op, h.keywords.defineSym):
			h.evalDefine(exp)
			return
		case h.symbolEqual(op, h.keywords.letSym):
			h.checkSyntax(h.assocListP(h.firstArg(exp)), "malformed let bindings")
			h.regs.Exp = h.rewriteLet(exp)
			h.regs.Cont = LabelStart
			return
		case h.symbolEqual(op, h.keywords.andSym):
			h.evalAnd(h.operands(exp))
			return
		case h.symbolEqual(op, h.keywords.orSym):
			h.evalOr(h.operands(exp))
			return
		case h.symbolEqual(op, h.keywords.setSym):
			h.evalAssignment(exp)
			return
		case h.symbolEqual(op, h.keywords.ifSym) || h.symbolEqual(op, h.keywords.condSym):
			h.checkSyntax(h.listOfClausesP(h.clauses(exp)), "malformed cond clauses")
			h.evalCond(h.clauses(exp))
			return
		case h.symbolEqual(op, h.keywords.lambdaSym):
			h.checkSyntax(h.listLength(exp) >= 3 && h.isSymbolChain(h.firstArg(exp)) &&
				!h.hasDuplicateVars(h.firstArg(exp)), "malformed lambda")
			h.regs.Val = h.makeProcedure(h.firstArg(exp), h.Cdr(h.Cdr(exp)), h.regs.Env)
			h.retreat()
			return
		}
	}

	// application
	h.PushValue(h.regs.Env)
	h.PushValue(h.operands(exp))
	h.regs.Exp = op
	h.pushReturn(LabelApplication)
	h.regs.Cont = LabelStart
}

// retreat pops a return label into cont, the trampoline's equivalent
// of a subroutine return.
func (h *Heap) retreat() { h.regs.Cont = h.PopLabel() }

func (h *Heap) pushReturn(l Label) { h.PushLabel(l) }

func (h *Heap) checkSyntax(ok bool, format string, args ...any) {
	if !h.cfg.GetBool("eval.syntaxcheck") {
		return
	}
	if !ok {
		throw(SyntaxError, format, args...)
	}
}

func (h *Heap) assocListP(cur Value) bool {
	for cur != NIL {
		if !cur.IsCons() {
			return false
		}
		pair := h.Car(cur)
		if !pair.IsCons() || !h.Car(pair).IsSymbol(h) || !h.Cdr(pair).IsCons() || h.Cdr(h.Cdr(pair)) != NIL {
			return false
		}
		cur = h.Cdr(cur)
	}
	return true
}

func (h *Heap) listOfClausesP(cur Value) bool {
	length := 0
	for cur != NIL {
		if !cur.IsCons() {
			return false
		}
		clause := h.Car(cur)
		if clause == NIL || !h.isProperList(clause) {
			return false
		}
		isElse := h.symbolEqual(h.Car(clause), h.keywords.elseSym)
		if isElse && !(h.Cdr(cur) == NIL && length != 0 && h.listLength(clause) >= 2) {
			return false
		}
		cur = h.Cdr(cur)
		length++
	}
	return true
}

// evalVariable resolves a symbol reference: reserved symbols name
// built-in procedures; others, and the REPL's `!!` result binding,
// are looked up in env.
func (h *Heap) evalVariable(sym Value) {
	if h.Reserved(sym) && h.SymbolOf(sym) != "!!" {
		proc := h.Cons(sym, NIL)
		h.SetHintProcedure(proc)
		h.regs.Val = proc
		h.retreat()
		return
	}
	b := h.bindingInEnv(sym, h.regs.Env)
	if b == NIL {
		throw(UnboundVariable, "unbound variable: %s", h.SymbolOf(sym))
	}
	h.regs.Val = h.bindingValue(b)
	h.retreat()
}

// stepApplication evaluates the already-resolved operator (now in
// val) and begins evaluating its operand list left to right. The
// operand count is parked on the side-channel count stack so COLLECT
// knows how many evaluated values to gather without disturbing the
// value stack's strict LIFO discipline.
func (h *Heap) stepApplication() {
	h.regs.Fun = h.regs.Val
	operands := h.PopValue()
	h.regs.Env = h.PopValue()
	h.regs.Unev = operands
	h.PushValue(h.regs.Fun)
	h.argCounts = append(h.argCounts, h.listLength(operands))
	h.regs.Cont = LabelListOfValues
}

func (h *Heap) popArgCount() int {
	n := h.argCounts[len(h.argCounts)-1]
	h.argCounts = h.argCounts[:len(h.argCounts)-1]
	return n
}

func (h *Heap) stepListOfValues() {
	if h.regs.Unev == NIL {
		h.popArgCount()
		h.regs.Argl = NIL
		h.regs.Fun = h.PopValue()
		h.regs.Cont = LabelMicroApply
		return
	}
	h.PushValue(h.regs.Unev)
	h.regs.Exp = h.Car(h.regs.Unev)
	h.pushReturn(LabelListOfValuesCont)
	h.regs.Cont = LabelStart
}

func (h *Heap) stepListOfValuesCont() {
	unev := h.PopValue()
	h.PushValue(h.regs.Val)
	unev = h.Cdr(unev)
	h.regs.Unev = unev
	if unev == NIL {
		h.regs.Cont = LabelCollect
		return
	}
	h.PushValue(unev)
	h.regs.Exp = h.Car(unev)
	h.pushReturn(LabelListOfValuesCont)
	h.regs.Cont = LabelStart
}

// stepCollect pops the n evaluated argument values (pushed one per
// operand, in left-to-right order) and conses them back together,
// restoring that same order in argl.
func (h *Heap) stepCollect() {
	n := h.popArgCount()
	argl := NIL
	for i := 0; i < n; i++ {
		v := h.PopValue()
		h.PushValue(argl)
		h.PushValue(v)
		cell := h.Cons(v, argl)
		h.PopValue()
		h.PopValue()
		argl = cell
	}
	h.regs.Argl = argl
	h.regs.Fun = h.PopValue()
	h.regs.Cont = LabelMicroApply
}

func (h *Heap) stepMicroApply() {
	fun := h.regs.Fun
	if !h.HintProcedureP(fun) {
		throw(ArgumentType, "attempt to apply a non-procedure value")
	}
	text := h.Car(fun)
	if text.IsSymbol(h) {
		h.regs.Val = h.Apply(text, h.regs.Argl)
		h.retreat()
		return
	}
	params := h.procParams(fun)
	body := h.procBody(fun)
	closEnv := h.procEnv(fun)
	h.PushValue(body)
	env := h.ExtendEnvironment(params, h.regs.Argl, closEnv)
	body = h.PopValue()
	h.regs.Env = env
	h.beginSequence(body)
}

// beginSequence is the single entry point into EVAL_SEQUENCE: push
// the list of remaining body expressions, then dispatch. Every
// transition into EVAL_SEQUENCE, first call or resumption alike,
// follows this same push-then-pop convention (see stepEvalSequence),
// so the label can be safely reused as its own continuation.
func (h *Heap) beginSequence(body Value) {
	h.PushValue(body)
	h.regs.Cont = LabelEvalSequence
}

// stepEvalSequence evaluates each element of a body in order; the
// value of the last is the value of the whole sequence. It always
// begins by popping the remaining-expressions list pushed by
// beginSequence (or by its own tail-recursive continuation below).
func (h *Heap) stepEvalSequence() {
	unev := h.PopValue()
	if unev == NIL {
		h.retreat()
		return
	}
	rest := h.Cdr(unev)
	if rest == NIL {
		h.regs.Exp = h.Car(unev)
		h.regs.Cont = LabelStart
		return
	}
	h.PushValue(rest)
	h.regs.Exp = h.Car(unev)
	h.pushReturn(LabelEvalSequence)
	h.regs.Cont = LabelStart
}

// evalDefine handles `(define sym val)` and the
// `(define (f x...) body...)` procedure shorthand, with the §4.9
// Design Note behavior: redefining an already-bound variable in the
// same frame warns and overwrites via set_variable!, it does not
// prepend a shadowing binding.
func (h *Heap) evalDefine(exp Value) {
	h.checkSyntax(h.listLength(exp) >= 3, "malformed define")
	sym, valueExpr := h.rewriteDefine(exp)
	h.checkSyntax(sym.IsSymbol(h), "define target must be a symbol")
	if h.Reserved(sym) {
		throw(ReservedMutation, "cannot define reserved symbol: %s", h.SymbolOf(sym))
	}
	existing := h.bindingInFrame(sym, h.firstFrame(h.regs.Env))
	h.regs.Unev = sym
	if existing != NIL {
		h.regs.Val = existing
	} else {
		h.regs.Val = NIL
	}
	h.PushValue(sym)
	h.PushValue(h.regs.Env)
	h.regs.Exp = valueExpr
	h.pushReturn(LabelDefinitionCont)
	h.regs.Cont = LabelStart
}

func (h *Heap) stepDefinitionCont() {
	env := h.PopValue()
	sym := h.PopValue()
	already := h.bindingInFrame(sym, h.firstFrame(env))
	if already != NIL {
		warnRedefine(h, sym)
		h.SetCdr(already, h.regs.Val)
	} else {
		h.DefineVariable(sym, h.regs.Val, env)
	}
	h.regs.Val = sym
	h.retreat()
}

func warnRedefine(h *Heap, sym Value) {
	// A genuine diagnostic, not an error: the binding is kept and
	// simply overwritten (§4.9's Design Note).
	Write(h.out, sym, h)
	h.out.Write([]byte(" redefined\n"))
}

// evalAssignment handles `(set! sym val)`. The binding is located
// before the right-hand side is evaluated and re-checked afterwards;
// if the RHS evaluation itself rebound sym, that is a BindingRaced
// failure (§4.6).
func (h *Heap) evalAssignment(exp Value) {
	h.checkSyntax(h.listLength(exp) == 3, "set! expects exactly two arguments")
	sym := h.firstArg(exp)
	h.checkSyntax(sym.IsSymbol(h), "set! target must be a symbol")
	if h.Reserved(sym) {
		throw(ReservedMutation, "cannot set! reserved symbol: %s", h.SymbolOf(sym))
	}
	before := h.bindingInEnv(sym, h.regs.Env)
	if before == NIL {
		throw(UnboundVariable, "unbound variable: %s", h.SymbolOf(sym))
	}
	h.PushValue(sym)
	h.PushValue(before)
	h.PushValue(h.regs.Env)
	h.regs.Exp = h.secondArg(exp)
	h.pushReturn(LabelAssignmentCont)
	h.regs.Cont = LabelStart
}

func (h *Heap) stepAssignmentCont() {
	env := h.PopValue()
	before := h.PopValue()
	sym := h.PopValue()
	after := h.bindingInEnv(sym, env)
	if after != before {
		throw(BindingRaced, "binding for %s changed during assignment evaluation", h.SymbolOf(sym))
	}
	h.SetCdr(before, h.regs.Val)
	h.regs.Val = sym
	h.retreat()
}

// evalAnd implements short-circuiting and (§4.6): empty and is true.
func (h *Heap) evalAnd(operands Value) {
	if operands == NIL {
		h.regs.Val = MakeBool(true)
		h.retreat()
		return
	}
	h.PushValue(h.Cdr(operands))
	h.PushValue(h.regs.Env)
	h.regs.Exp = h.Car(operands)
	h.pushReturn(LabelAndCont)
	h.regs.Cont = LabelStart
}

func (h *Heap) stepAndCont() {
	env := h.PopValue()
	rest := h.PopValue()
	h.regs.Env = env
	if !Truthy(h.regs.Val) || rest == NIL {
		h.retreat()
		return
	}
	h.evalAnd(rest)
}

// evalOr implements short-circuiting or (§4.6): empty or is false.
func (h *Heap) evalOr(operands Value) {
	if operands == NIL {
		h.regs.Val = MakeBool(false)
		h.retreat()
		return
	}
	h.PushValue(h.Cdr(operands))
	h.PushValue(h.regs.Env)
	h.regs.Exp = h.Car(operands)
	h.pushReturn(LabelOrCont)
	h.regs.Cont = LabelStart
}

func (h *Heap) stepOrCont() {
	env := h.PopValue()
	rest := h.PopValue()
	h.regs.Env = env
	if Truthy(h.regs.Val) || rest == NIL {
		h.retreat()
		return
	}
	h.evalOr(rest)
}

// evalCond drives `cond`/lowered-`if` clause evaluation. An `else`
// clause (checked to be the last, by listOfClausesP) always matches.
func (h *Heap) evalCond(clausesList Value) {
	if clausesList == NIL {
		h.regs.Val = MakeBool(false)
		h.retreat()
		return
	}
	clause := h.Car(clausesList)
	pred := h.Car(clause)
	if h.symbolEqual(pred, h.keywords.elseSym) {
		h.beginSequence(h.Cdr(clause))
		return
	}
	h.PushValue(h.Cdr(clausesList))
	h.PushValue(h.Cdr(clause))
	h.PushValue(h.regs.Env)
	h.regs.Exp = pred
	h.pushReturn(LabelConditionalCont)
	h.regs.Cont = LabelStart
}

func (h *Heap) stepConditionalCont() {
	env := h.PopValue()
	consequents := h.PopValue()
	rest := h.PopValue()
	h.regs.Env = env
	if Truthy(h.regs.Val) {
		h.beginSequence(consequents)
		return
	}
	h.evalCond(rest)
}
