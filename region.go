// Package binderalloc implements the per-process shared-memory buffer
// allocator underlying a Binder-style IPC subsystem: a first-fit free-list
// allocator over one contiguous address range, a lazily-materialised page
// map tied to buffer boundaries, free-neighbour coalescing with a
// page-sharing rule, and cross-page-boundary kernel-side copies.
//
// A Region is the allocator instance for one process; regions are
// independent of one another and each serialises its own operations behind
// a single mutex (spec.md §5).
package binderalloc

import (
	"sync"

	"github.com/cznic/mathutil"
)

// MaxRegionSize is the hard cap on a region's backing size (spec.md §3: "R
// is bounded above by 4 MiB").
const MaxRegionSize = 4 << 20

// Region is one allocator instance, bound to a single owning process id.
type Region struct {
	mu sync.Mutex

	pid       int
	logger    Logger
	pageAlloc PageAllocator

	mapped     bool
	regionSize int
	pages      pageMap

	arena arena

	addrHead, addrTail handleRef
	freeHead, freeTail handleRef

	// allocated maps a live buffer's user_data offset to its handle, the
	// lookup binder_alloc_prepare_to_free and the CLI's by-address
	// operations need (spec.md's "allocated set").
	allocated map[int]handleRef
}

// NewRegion constructs an uninitialised Region. Init must be called before
// any other operation (spec.md §4.7).
func NewRegion(pageAlloc PageAllocator, logger Logger) *Region {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Region{pageAlloc: pageAlloc, logger: logger}
}

// Init is binder_alloc_init: per-process setup of an otherwise-zero Region.
// It does not map any backing memory; call Mmap for that.
func (r *Region) Init(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pid = pid
	r.mapped = false
	r.regionSize = 0
	r.pages = pageMap{}
	r.arena.reset()
	r.addrHead, r.addrTail = nilRef, nilRef
	r.freeHead, r.freeTail = nilRef, nilRef
	r.allocated = make(map[int]handleRef)

	r.logger.Debugf("alloc pid=%d init", pid)
}

// AreaRequest describes the address-space area passed to Mmap, mirroring
// struct binder_mmap_area in the original driver. Start is accepted for API
// symmetry with the C signature but is not otherwise meaningful here: a
// Region's addresses are logical offsets private to the allocator, not real
// process virtual addresses shared with a second process.
type AreaRequest struct {
	Start uintptr
	Size  int
}

// Mmap assigns backing storage to the region (spec.md §4.7). It fails with
// ErrAlreadyMapped if the region already has one.
func (r *Region) Mmap(area AreaRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mapped {
		r.logger.Errorf("alloc pid=%d: already mapped", r.pid)
		return opErr("Mmap", ErrAlreadyMapped, nil)
	}

	size := area.Size
	if size > MaxRegionSize {
		size = MaxRegionSize
	}
	if r.pageAlloc.PageSize() <= 0 {
		return opErr("Mmap", ErrOutOfMemory, nil)
	}
	size = roundUpInt(size, r.pageAlloc.PageSize())
	if size > MaxRegionSize {
		size = (MaxRegionSize / r.pageAlloc.PageSize()) * r.pageAlloc.PageSize()
	}
	if size <= 0 {
		return opErr("Mmap", ErrOutOfMemory, nil)
	}

	r.arena.reset()
	r.allocated = make(map[int]handleRef)
	r.pages = newPageMap(size/r.pageAlloc.PageSize(), r.pageAlloc.PageSize())

	// Install the single whole-region hole (spec.md's initial free buffer).
	h := r.arena.alloc()
	rec := r.arena.get(h)
	rec.userData = 0
	rec.free = true
	r.addrHead, r.addrTail = h, h
	rec.addrPrev, rec.addrNext = nilRef, nilRef
	r.insertFree(h)

	r.regionSize = size
	r.mapped = true

	pageCount := len(r.pages.pages)
	r.logger.Infof("alloc pid=%d map area size=%d (requested %d) pages=%d index_bits=%d success",
		r.pid, size, area.Size, pageCount, mathutil.BitLen(pageCount-1))
	return nil
}

// Unmap releases the area-level backing associated with the mapping
// (spec.md §4.7). It deliberately does not touch buffer records or the
// page map — that's DeferredRelease's job. In this implementation there is
// no separate eager area-level allocation to release (every materialised
// page already came from its own PageAllocator call, reclaimed individually
// by the free path and by DeferredRelease), so Unmap is a logging no-op
// kept for API symmetry with spec.md §6.
func (r *Region) Unmap(area AreaRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Debugf("alloc pid=%d unmap area size=%d", r.pid, area.Size)
	return nil
}

// ReleaseStats reports what DeferredRelease reclaimed, the same two
// counters binder_alloc_deferred_release logs ad hoc.
type ReleaseStats struct {
	BuffersFreed  int
	PagesReleased int
}

// DeferredRelease tears a region all the way down (spec.md §4.7): every
// live buffer is freed through the normal free path (so it still
// coalesces), then the address-ordered list is drained, then every
// materialised page is released.
func (r *Region) DeferredRelease() ReleaseStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.mapped {
		return ReleaseStats{}
	}

	// Every page still materialised here is reclaimed below, either by the
	// free path or by the final sweep of the page map.
	pagesReleased := r.pages.liveCount()

	live := make([]handleRef, 0, len(r.allocated))
	for _, h := range r.allocated {
		live = append(live, h)
	}

	buffersFreed := 0
	for _, h := range live {
		rec := r.arena.get(h)
		// A transaction layer is expected to have already released every
		// transaction by the time a process tears down; unlike ordinary
		// FreeBuf this path does not trap on a live transaction; at this
		// point nothing could access the buffer anyway.
		rec.hasTransaction = false
		if rec.clearOnFree {
			r.zeroBufferLocked(h)
			rec.clearOnFree = false
		}
		r.freeBufferLocked(h)
		buffersFreed++
	}

	// Drain whatever remains of the address-ordered list (holes only, by
	// construction once every live buffer above has been freed).
	for h := r.addrHead; !h.isNil(); {
		next := r.arena.get(h).addrNext
		r.arena.destroy(h)
		h = next
	}

	r.pages.release(0, r.regionSize, r.pageAlloc)

	r.logger.Infof("alloc pid=%d buffers %d, pages %d", r.pid, buffersFreed, pagesReleased)

	r.pages = pageMap{}
	r.arena.reset()
	r.allocated = make(map[int]handleRef)
	r.addrHead, r.addrTail = nilRef, nilRef
	r.freeHead, r.freeTail = nilRef, nilRef
	r.regionSize = 0
	r.mapped = false

	return ReleaseStats{BuffersFreed: buffersFreed, PagesReleased: pagesReleased}
}

// Stats is a read-only snapshot used by the CLI's `stats` script operation
// and --watch inspector, and by tests asserting on region-wide shape.
type Stats struct {
	Mapped            bool
	RegionSize        int
	PageSize          int
	LiveBuffers       int
	FreeBuffers       int
	BytesAllocated    int
	BytesFree         int
	MaterialisedPages int
	// PageIndexBits is the bit width needed to index every page in the
	// region, the same mathutil.BitLen bucketing the teacher's slab
	// allocator runs on a size class to pick its log2 bucket.
	PageIndexBits int
}

func (r *Region) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statsLocked()
}

// BufferInfo is one row of an address-ordered walk over the region, used by
// the CLI's --watch inspector and by tests asserting on region shape.
type BufferInfo struct {
	UserData int
	Size     int
	Free     bool
}

// Buffers snapshots every record in address order, live and free alike.
func (r *Region) Buffers() []BufferInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []BufferInfo
	for h := r.addrHead; !h.isNil(); {
		rec := r.arena.get(h)
		out = append(out, BufferInfo{
			UserData: rec.userData,
			Size:     r.bufferSizeLocked(h),
			Free:     rec.free,
		})
		h = rec.addrNext
	}
	return out
}

func (r *Region) statsLocked() Stats {
	s := Stats{Mapped: r.mapped, RegionSize: r.regionSize}
	if r.pageAlloc != nil {
		s.PageSize = r.pageAlloc.PageSize()
	}
	if !r.mapped {
		return s
	}
	s.MaterialisedPages = r.pages.liveCount()
	if pageCount := len(r.pages.pages); pageCount > 0 {
		s.PageIndexBits = mathutil.BitLen(pageCount - 1)
	}
	for h := r.addrHead; !h.isNil(); {
		rec := r.arena.get(h)
		sz := r.bufferSizeLocked(h)
		if rec.free {
			s.FreeBuffers++
			s.BytesFree += sz
		} else {
			s.LiveBuffers++
			s.BytesAllocated += sz
		}
		h = rec.addrNext
	}
	return s
}
