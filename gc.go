package microscheme

// Collect runs one non-recursive mark-and-sweep cycle (§4.3). Roots
// are: every slot of the value stack, the root stack (which pins the
// global environment and the reserved-symbol list), and the seven
// machine registers.
func (h *Heap) Collect() {
	h.gcRuns++

	for _, v := range h.valueStack {
		h.markFrom(v)
	}
	for _, v := range h.rootStack {
		h.markFrom(v)
	}
	h.markFrom(h.regs.Val)
	h.markFrom(h.regs.Env)
	h.markFrom(h.regs.Fun)
	h.markFrom(h.regs.Argl)
	h.markFrom(h.regs.Exp)
	h.markFrom(h.regs.Unev)

	h.sweepCons()
	h.sweepStorage()
}

func (h *Heap) markStorage(idx uint32) {
	h.storage[idx] = headerWithMark(h.storage[idx], true)
}

// markFrom marks everything reachable from root. Cons cells are
// visited with a non-recursive, Deutsch-Schorr-Waite style traversal:
// the link just followed is temporarily overwritten with a
// back-pointer to the cell we came from, and restored on retreat.
// Storage blocks are terminal: mark and stop (§4.3).
func (h *Heap) markFrom(root Value) {
	if root.IsNil() || root.IsImmediate() {
		return
	}
	if root.IsStorage() {
		h.markStorage(root.index())
		return
	}
	if !root.IsCons() {
		return
	}

	cur := root.index()
	var prev uint32 // 0 == NIL == "no parent"

	for {
		cell := &h.cons[cur]

		switch {
		case !cell.CarMark:
			cell.CarMark = true
			child := cell.Car
			if child.IsCons() {
				next := child.index()
				if !h.cons[next].CarMark {
					tmp := cur
					cur = next
					cell.Car = consPtr(prev)
					prev = tmp
				}
			} else if child.IsStorage() {
				h.markStorage(child.index())
			}

		case !cell.CdrMark:
			cell.CdrMark = true
			child := cell.Cdr
			if child.IsCons() {
				next := child.index()
				if !h.cons[next].CarMark {
					tmp := cur
					cur = next
					cell.Cdr = consPtr(prev)
					prev = tmp
				}
			} else if child.IsStorage() {
				h.markStorage(child.index())
			}

		case prev == 0:
			return

		default:
			prevCell := &h.cons[prev]
			if !prevCell.CdrMark {
				// retreat over the reversed car link
				tmp := prev
				prev = prevCell.Car.index()
				prevCell.Car = consPtr(cur)
				cur = tmp
			} else {
				// retreat over the reversed cdr link
				tmp := prev
				prev = prevCell.Cdr.index()
				prevCell.Cdr = consPtr(cur)
				cur = tmp
			}
		}
	}
}

// sweepCons relinks every unmarked cell into the free list and clears
// the marks of every marked cell (§4.3).
func (h *Heap) sweepCons() {
	h.consFree = 0
	for i := len(h.cons) - 1; i >= 1; i-- {
		cell := &h.cons[i]
		if !cell.CarMark {
			*cell = ConsCell{Car: NIL, Cdr: consPtr(h.consFree)}
			h.consFree = uint32(i)
		} else {
			cell.CarMark = false
			cell.CdrMark = false
		}
	}
}

// sweepStorage walks the storage arena once in place, relinking
// unmarked (or already-free) blocks into the free list and coalescing
// adjacent unmarked runs, splitting any run that exceeds the
// 65536-word maximum (§4.3). This never moves a live block: each
// surviving block keeps the exact word index it had before the sweep,
// so every storagePtr held anywhere in the heap remains valid.
func (h *Heap) sweepStorage() {
	h.storageFree = 0
	i := uint32(1)
	for int(i) < len(h.storage) {
		w := h.storage[i]
		if headerMarked(w) {
			h.storage[i] = headerWithMark(w, false)
			i += uint32(headerSize(w))
			continue
		}
		runStart := i
		runWords := 0
		for int(i) < len(h.storage) && !headerMarked(h.storage[i]) {
			runWords += headerSize(h.storage[i])
			i += uint32(headerSize(h.storage[i]))
		}
		h.coalesceRun(runStart, runWords)
	}
}

// coalesceRun rewrites the dead/free run starting at word index start
// (exactly words words long) into as few free blocks as possible,
// each capped at 65536 words, and threads them onto the free list.
// Only header words inside [start, start+words) are touched.
func (h *Heap) coalesceRun(start uint32, words int) {
	idx := start
	for words > 0 {
		size := words
		if size > 65536 {
			size = 65536
		}
		if size%2 != 0 {
			size--
		}
		h.storage[idx] = makeHeader(false, 0, size)
		h.storage[idx+1] = uint64(h.storageFree)
		h.storageFree = idx
		idx += uint32(size)
		words -= size
	}
}
