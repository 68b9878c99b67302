package binderalloc

// NewBuf is the allocation path (spec.md §4.2): sanitise the requested
// size, first-fit scan the free list, optionally split the chosen hole,
// materialise the pages the carved buffer newly spans, and hand back a
// live Buffer.
//
// Unlike the C original, which pre-allocates a spare buffer record outside
// the lock so a blocking kmalloc never runs while holding alloc_lock, this
// implementation allocates the (cheap, non-blocking) split record under the
// lock: growing a Go slice is not a scheduling hazard the way kernel
// kmalloc under a spinlock is, so the extra outside-the-lock step buys
// nothing here.
func (r *Region) NewBuf(dataSize, offsetsSize, secctxSize uint64, isAsync bool) (*Buffer, error) {
	size, ok := sanitizeSize(dataSize, offsetsSize, secctxSize)
	if !ok {
		r.logger.Debugf("new_buf: invalid size %d-%d-%d", dataSize, offsetsSize, secctxSize)
		return nil, opErr("NewBuf", ErrInvalidArgument, nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.mapped {
		panic("binderalloc: NewBuf called on an unmapped region")
	}

	if size > uint64(r.regionSize) {
		r.logger.Errorf("alloc pid=%d: new_buf size %d failed, no address space", r.pid, size)
		return nil, opErr("NewBuf", ErrNoSpace, nil)
	}
	want := int(size)

	chosen, holeSize := r.firstFit(want)
	if chosen.isNil() {
		r.logger.Errorf("alloc pid=%d: new_buf size %d failed, no address space", r.pid, want)
		return nil, opErr("NewBuf", ErrNoSpace, nil)
	}

	splitting := holeSize != want
	var remainder handleRef
	if splitting {
		remainder = r.arena.alloc() // may grow the arena; fetch chosenRec only after this
	}

	chosenRec := r.arena.get(chosen)
	chosenStart := chosenRec.userData

	if splitting {
		remRec := r.arena.get(remainder)
		remRec.userData = chosenStart + want
		r.insertAddrAfter(chosen, remainder)
		r.insertFree(remainder)
	}

	pageSize := r.pageAlloc.PageSize()
	startPage := pageFloor(chosenStart, pageSize)
	endPage := pageAlignUp(chosenStart+want, pageSize)
	hasPage := pageFloor(chosenStart+holeSize, pageSize)
	if endPage > hasPage {
		endPage = hasPage
	}
	if endPage < startPage {
		endPage = startPage
	}

	if err := r.pages.materialize(startPage, endPage, r.pageAlloc); err != nil {
		r.rollbackSplit(chosen, remainder, splitting)
		r.logger.Errorf("alloc pid=%d: failed to materialise pages for new_buf: %v", r.pid, err)
		return nil, opErr("NewBuf", ErrOutOfMemory, err)
	}

	r.removeFree(chosen)
	chosenRec.free = false
	chosenRec.allowUserFree = false
	chosenRec.asyncTransaction = isAsync
	chosenRec.dataSize = dataSize
	chosenRec.offsetsSize = offsetsSize
	r.allocated[chosenStart] = chosen

	r.logger.Debugf("alloc pid=%d buffer %d data %d size %d success", r.pid, chosen.idx, chosenStart, want)

	return &Buffer{region: r, ref: chosen}, nil
}

// rollbackSplit undoes the bookkeeping half of a failed NewBuf: if a split
// remainder was inserted, remove and destroy it so the region is left
// exactly as it was before the call (spec.md §4.9: "failures leave the
// region unchanged").
func (r *Region) rollbackSplit(chosen, remainder handleRef, splitting bool) {
	if !splitting {
		return
	}
	r.removeAddr(remainder)
	r.removeFree(remainder)
	r.arena.destroy(remainder)
}
