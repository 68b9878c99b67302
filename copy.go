package binderalloc

// checkBuffer is check_buffer() (spec.md §4.6 step 1): the buffer must be
// live, the requested range must fit inside its derived size, the offset
// must be 4-byte aligned, and the buffer must be in one of the two
// kernel-private windows: mid-construction (free==0 && allow_user_free==0)
// or mid-teardown (free==0 && transaction==nil).
func (r *Region) checkBuffer(h handleRef, offset, bytes int) bool {
	if offset < 0 || bytes < 0 {
		return false
	}
	rec := r.arena.get(h)
	if rec.free {
		return false
	}
	size := r.bufferSizeLocked(h)
	if size < bytes || offset > size-bytes {
		return false
	}
	if offset%4 != 0 {
		return false
	}
	midConstruction := !rec.allowUserFree
	midTeardown := !rec.hasTransaction
	return midConstruction || midTeardown
}

// copyBuffer is binder_alloc_do_buffer_copy: walk the requested range page
// by page, copying at most one page's worth at a time. It deliberately
// takes no lock (spec.md §5): correctness relies entirely on the caller
// only invoking it during the kernel-private window checkBuffer verifies,
// during which no concurrent FreeBuf or NewBuf can touch this buffer's
// page-map entries (I6+I7).
func (r *Region) copyBuffer(op string, toBuffer bool, h handleRef, offset int, ptr []byte) error {
	bytes := len(ptr)
	if !r.checkBuffer(h, offset, bytes) {
		return opErr(op, ErrInvalidArgument, nil)
	}

	rec := r.arena.get(h)
	pageSize := r.pageAlloc.PageSize()
	remaining := bytes
	cur := offset
	done := 0
	for remaining > 0 {
		page, pgoff := r.pages.at(rec.userData + cur)
		if page == nil {
			panic("binderalloc: copy touched an unmaterialised page")
		}
		chunk := pageSize - pgoff
		if chunk > remaining {
			chunk = remaining
		}
		if toBuffer {
			copy(page[pgoff:pgoff+chunk], ptr[done:done+chunk])
		} else {
			copy(ptr[done:done+chunk], page[pgoff:pgoff+chunk])
		}
		remaining -= chunk
		cur += chunk
		done += chunk
	}
	return nil
}

// CopyToBuffer copies src into buf starting at offset. offset must be a
// multiple of 4; src may be any length that fits within buf's derived size.
func (r *Region) CopyToBuffer(buf *Buffer, offset int, src []byte) error {
	return r.copyBuffer("CopyToBuffer", true, buf.ref, offset, src)
}

// CopyFromBuffer copies len(dst) bytes out of buf starting at offset into
// dst.
func (r *Region) CopyFromBuffer(dst []byte, buf *Buffer, offset int) error {
	return r.copyBuffer("CopyFromBuffer", false, buf.ref, offset, dst)
}

// zeroBufferLocked zeroes a buffer's bytes in place for clear_on_free. It
// runs under alloc_lock (unlike the public copy path) because it is only
// ever called from FreeBuf/DeferredRelease while the lock is already held.
func (r *Region) zeroBufferLocked(h handleRef) {
	rec := r.arena.get(h)
	size := r.bufferSizeLocked(h)
	pageSize := r.pageAlloc.PageSize()
	off := 0
	for off < size {
		page, pgoff := r.pages.at(rec.userData + off)
		if page == nil {
			return
		}
		chunk := pageSize - pgoff
		if chunk > size-off {
			chunk = size - off
		}
		for i := pgoff; i < pgoff+chunk; i++ {
			page[i] = 0
		}
		off += chunk
	}
}
