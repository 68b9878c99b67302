package binderalloc

// pageMap mirrors spec.md §3's "array indexed by page number" — entry i is
// nil until materialised, at which point it holds the []byte backing page
// i's bytes ([region_start + i*P, region_start + (i+1)*P)).
type pageMap struct {
	pages    [][]byte
	pageSize int
}

func newPageMap(pageCount, pageSize int) pageMap {
	return pageMap{pages: make([][]byte, pageCount), pageSize: pageSize}
}

func (m *pageMap) index(offset int) int { return offset / m.pageSize }

// materialize ensures every page touching [start, end) is backed, skipping
// pages already materialised (spec.md §4.2 step 6).
func (m *pageMap) materialize(start, end int, alloc PageAllocator) error {
	if end <= start {
		return nil
	}
	lo := m.index(start)
	hi := m.index(end-1) + 1
	var fresh []int
	for i := lo; i < hi; i++ {
		if m.pages[i] != nil {
			continue
		}
		p, err := alloc.AllocPage()
		if err != nil {
			// Roll back whatever this call materialised before failing.
			for _, j := range fresh {
				alloc.FreePage(m.pages[j])
				m.pages[j] = nil
			}
			return err
		}
		m.pages[i] = p
		fresh = append(fresh, i)
	}
	return nil
}

// release frees every wholly-contained page in [start, end), i.e. the
// "release pages wholly contained within the buffer" step of spec.md §4.4.
// Returns the count released, for diagnostics.
func (m *pageMap) release(start, end int, alloc PageAllocator) int {
	if end <= start {
		return 0
	}
	lo := m.index(start)
	hi := m.index(end-1) + 1
	n := 0
	for i := lo; i < hi; i++ {
		if m.pages[i] == nil {
			continue
		}
		alloc.FreePage(m.pages[i])
		m.pages[i] = nil
		n++
	}
	return n
}

// releaseOne frees a single page by offset, used by the coalesce-time
// shared-page rule (spec.md §4.5), which releases at most one page per
// merged hole.
func (m *pageMap) releaseOne(offset int, alloc PageAllocator) bool {
	i := m.index(offset)
	if m.pages[i] == nil {
		return false
	}
	alloc.FreePage(m.pages[i])
	m.pages[i] = nil
	return true
}

func (m *pageMap) at(offset int) ([]byte, int) {
	i := m.index(offset)
	pgoff := offset - i*m.pageSize
	return m.pages[i], pgoff
}

// liveCount reports how many entries are currently materialised, for the
// DeferredRelease diagnostic counter binder_alloc_deferred_release logs.
func (m *pageMap) liveCount() int {
	n := 0
	for _, p := range m.pages {
		if p != nil {
			n++
		}
	}
	return n
}
