package binderalloc

// sanitizeSize computes the aligned total size of a transaction's three
// logical components, exactly as binder_alloc.c's sanitized_size() does:
// round each component up to PointerWidth, detect overflow at each addition,
// and clamp the result up to PointerWidth so a zero-length request still
// claims a unique byte of address space (spec.md §4.1).
//
// Sizes are uint64 (mirroring the C side's size_t) so the overflow case in
// spec.md §8 ("data_size = SIZE_MAX - 4, offsets_size = 8") is expressible.
// ok is false on overflow, which the caller surfaces as ErrInvalidArgument.
func sanitizeSize(dataSize, offsetsSize, secctxSize uint64) (size uint64, ok bool) {
	w := uint64(PointerWidth)

	a, ok := roundUpChecked(dataSize, w)
	if !ok {
		return 0, false
	}
	b, ok := roundUpChecked(offsetsSize, w)
	if !ok {
		return 0, false
	}
	tmp := a + b
	if tmp < a || tmp < b {
		return 0, false
	}

	c, ok := roundUpChecked(secctxSize, w)
	if !ok {
		return 0, false
	}
	total := tmp + c
	if total < tmp || total < c {
		return 0, false
	}

	if total < w {
		total = w
	}
	return total, true
}

// roundUpChecked is roundUp with overflow detection: if n is close enough
// to the uint64 range limit that rounding up wraps around, the result comes
// back smaller than n and ok is false.
func roundUpChecked(n, m uint64) (uint64, bool) {
	r := roundUp(n, m)
	if r < n {
		return 0, false
	}
	return r, true
}
