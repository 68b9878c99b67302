package binderalloc

// fakePageAllocator backs pages with plain Go byte slices instead of real
// OS mmap, so tests are deterministic and don't need root/mmap permissions.
// It also counts outstanding pages, the way the teacher's own tests poke at
// mmap call counts to assert on materialisation behaviour.
type fakePageAllocator struct {
	pageSize int
	live     int
}

func newFakePageAllocator(pageSize int) *fakePageAllocator {
	return &fakePageAllocator{pageSize: pageSize}
}

func (f *fakePageAllocator) PageSize() int { return f.pageSize }

func (f *fakePageAllocator) AllocPage() ([]byte, error) {
	f.live++
	return make([]byte, f.pageSize), nil
}

func (f *fakePageAllocator) FreePage(page []byte) error {
	f.live--
	return nil
}

// newTestRegion builds a Region mapped with R bytes over a P-sized fake
// page backend, matching spec.md §8's "Assume P = 4096, R = 16384, W = 8".
func newTestRegion(pageSize, regionSize int) (*Region, *fakePageAllocator) {
	fp := newFakePageAllocator(pageSize)
	r := NewRegion(fp, NopLogger{})
	r.Init(1)
	if err := r.Mmap(AreaRequest{Size: regionSize}); err != nil {
		panic(err)
	}
	return r, fp
}
