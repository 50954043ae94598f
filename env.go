package microscheme

// An environment is a cons cell whose cdr carries the HintEnvHeader
// hint: car is the parent environment (NIL at the root), cdr is the
// current frame -- a list of (symbol . value) bindings (§4.5).

// firstFrame returns the current frame of env.
func (h *Heap) firstFrame(env Value) Value { return h.Cdr(env) }

// parentEnv returns the enclosing environment of env, or NIL at the
// root.
func (h *Heap) parentEnv(env Value) Value { return h.Car(env) }

func (h *Heap) setFirstFrame(env, frame Value) { h.SetCdr(env, frame) }

func (h *Heap) bindingVariable(binding Value) Value { return h.Car(binding) }
func (h *Heap) bindingValue(binding Value) Value    { return h.Cdr(binding) }

// adjoinBinding prepends binding onto frame.
func (h *Heap) adjoinBinding(binding, frame Value) Value {
	return h.Cons(binding, frame)
}

// bindingInFrame linearly searches frame for a binding of var.
// Returns NIL if none is found.
func (h *Heap) bindingInFrame(v, frame Value) Value {
	for frame != NIL {
		binding := h.Car(frame)
		if h.symbolEqual(v, h.bindingVariable(binding)) {
			return binding
		}
		frame = h.Cdr(frame)
	}
	return NIL
}

// bindingInEnv searches env and every ancestor environment for a
// binding of var. Returns NIL if none is found.
func (h *Heap) bindingInEnv(v, env Value) Value {
	for env != NIL {
		if b := h.bindingInFrame(v, h.firstFrame(env)); b != NIL {
			return b
		}
		env = h.parentEnv(env)
	}
	return NIL
}

func (h *Heap) symbolEqual(a, b Value) bool {
	return h.Eq(a, b) || (a.IsSymbol(h) && b.IsSymbol(h) && h.SymbolOf(a) == h.SymbolOf(b))
}

// DefineVariable inserts var with value val into the topmost frame of
// env. No check is made as to whether var is already bound there --
// the caller (eval.go's define handling) decides whether a rebind
// should warn (§4.5, §4.9's Design Note on redefinition).
func (h *Heap) DefineVariable(v, val, env Value) {
	h.PushValue(env)
	h.PushValue(v)
	h.PushValue(val)
	p := h.Cons(v, val)
	h.PopValue() // val
	h.PopValue() // v
	h.PushValue(p)
	frame := h.adjoinBinding(p, h.firstFrame(env))
	h.PopValue() // p
	env = h.PopValue()
	h.setFirstFrame(env, frame)
}

// SetVariable destructively updates the value of an already-bound
// variable anywhere in env's ancestor chain. Fails with
// UnboundVariable if var is not bound (§4.5).
func (h *Heap) SetVariable(v, val, env Value) {
	b := h.bindingInEnv(v, env)
	if b == NIL {
		throw(UnboundVariable, "unbound variable: %s", h.SymbolOf(v))
	}
	h.SetCdr(b, val)
}

// makeFrame pairs vars against vals one binding per element. vars may
// be a proper list of symbols, NIL, or end in a bare symbol that
// absorbs the remaining values as a list (a rest parameter). Fails
// with ArgumentArity if vars is a proper list and its length does not
// match vals' (§4.5).
func (h *Heap) makeFrame(vars, vals Value) Value {
	if vars.IsSymbol(h) {
		binding := h.Cons(vars, vals)
		h.PushValue(binding)
		frame := h.adjoinBinding(binding, NIL)
		h.PopValue()
		return frame
	}
	if vars == NIL {
		if vals != NIL {
			throw(ArgumentArity, "too many arguments supplied")
		}
		return NIL
	}
	if !vars.IsCons() || !vals.IsCons() {
		throw(ArgumentArity, "wrong number of arguments supplied")
	}

	h.PushValue(vars)
	h.PushValue(vals)
	head := h.Cons(h.Car(vars), h.Car(vals))
	h.PopValue()
	h.PopValue()
	vars = h.Cdr(vars)
	vals = h.Cdr(vals)

	h.PushValue(head)
	frame := h.Cons(head, NIL)
	end := frame
	h.PopValue()
	h.PushValue(frame)

	for vars.IsCons() && vals.IsCons() {
		binding := h.Cons(h.Car(vars), h.Car(vals))
		h.PushValue(binding)
		newTail := h.Cons(binding, NIL)
		h.PopValue()
		h.SetCdr(end, newTail)
		end = newTail
		vars = h.Cdr(vars)
		vals = h.Cdr(vals)
	}

	switch {
	case vars.IsSymbol(h):
		binding := h.Cons(vars, vals)
		h.PushValue(binding)
		h.SetCdr(end, h.Cons(binding, NIL))
		h.PopValue()
	case vars != NIL || vals != NIL:
		throw(ArgumentArity, "wrong number of arguments supplied")
	}
	h.PopValue()
	return frame
}

// ExtendEnvironment pushes a new frame built from vars/vals onto
// baseEnv and returns it. If both vars and vals are NIL, baseEnv
// itself is returned unchanged (no empty frame is created) (§4.5).
func (h *Heap) ExtendEnvironment(vars, vals, baseEnv Value) Value {
	if vars == NIL && vals == NIL {
		return baseEnv
	}
	h.PushValue(baseEnv)
	frame := h.makeFrame(vars, vals)
	h.PopValue()
	h.PushValue(frame)
	env := h.Cons(baseEnv, frame)
	h.PopValue()
	h.SetHintEnvironment(env)
	return env
}

// newGlobalEnvironment creates the single-frame root environment with
// the "!!" binding that holds the most recent REPL result (§4.8).
func (h *Heap) newGlobalEnvironment() Value {
	bang := h.MakeSymbol("!!")
	h.PushValue(bang)
	binding := h.Cons(bang, MakeBool(false))
	h.PopValue()
	h.PushValue(binding)
	frame := h.Cons(binding, NIL)
	h.PopValue()
	h.PushValue(frame)
	env := h.Cons(NIL, frame)
	h.PopValue()
	h.SetHintEnvironment(env)
	return env
}

// --- procedures ---------------------------------------------------------

// A compound procedure is a cons cell with the HintProcedure hint:
// car is its text -- (params . body) -- cdr is its closure
// environment (§4.5).

func (h *Heap) makeProcedure(params, body, env Value) Value {
	h.PushValue(params)
	h.PushValue(body)
	h.PushValue(env)
	text := h.Cons(params, body)
	h.PopValue()
	h.PopValue()
	h.PopValue()
	h.PushValue(text)
	proc := h.Cons(text, env)
	h.PopValue()
	h.SetHintProcedure(proc)
	return proc
}

func (h *Heap) procText(p Value) Value   { return h.Car(p) }
func (h *Heap) procEnv(p Value) Value    { return h.Cdr(p) }
func (h *Heap) procParams(p Value) Value { return h.Car(h.procText(p)) }
func (h *Heap) procBody(p Value) Value   { return h.Cdr(h.procText(p)) }
