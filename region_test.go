package binderalloc

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPageSize   = 4096
	testRegionSize = 16384
)

// Scenario 1: fresh region, single 100-byte allocation.
func TestNewBufFreshRegion(t *testing.T) {
	r, fp := newTestRegion(testPageSize, testRegionSize)

	buf, err := r.NewBuf(100, 0, 0, false)
	require.NoError(t, err)
	require.NotNil(t, buf)

	assert.Equal(t, 0, buf.UserData())
	assert.Equal(t, 104, buf.Size())

	stats := r.Stats()
	assert.Equal(t, 1, stats.LiveBuffers)
	assert.Equal(t, 1, stats.FreeBuffers)
	assert.Equal(t, 1, stats.MaterialisedPages)
	assert.Equal(t, 1, fp.live)
}

// Scenario 2: 100 + 200, free the first; page 0 must stay materialised
// because the live second buffer still starts inside it.
func TestFreeFirstOfTwoKeepsSharedPage(t *testing.T) {
	r, fp := newTestRegion(testPageSize, testRegionSize)

	a, err := r.NewBuf(100, 0, 0, false)
	require.NoError(t, err)
	b, err := r.NewBuf(200, 0, 0, false)
	require.NoError(t, err)
	require.Equal(t, 104, b.UserData())

	a.SetAllowUserFree(true)
	r.PrepareToFree(0)
	r.FreeBuf(a)

	assert.Equal(t, 1, fp.live, "page 0 must remain materialised, shared with live B")

	stats := r.Stats()
	assert.Equal(t, 1, stats.LiveBuffers)
	assert.Equal(t, 2, stats.FreeBuffers)
}

// Scenario 3: free both, expect full coalesce back to one hole and every
// materialised page released.
func TestFreeBothCoalescesToWholeRegion(t *testing.T) {
	r, fp := newTestRegion(testPageSize, testRegionSize)

	a, err := r.NewBuf(100, 0, 0, false)
	require.NoError(t, err)
	b, err := r.NewBuf(200, 0, 0, false)
	require.NoError(t, err)

	a.SetAllowUserFree(true)
	r.PrepareToFree(0)
	r.FreeBuf(a)

	b.SetAllowUserFree(true)
	r.PrepareToFree(104)
	r.FreeBuf(b)

	stats := r.Stats()
	assert.Equal(t, 0, stats.LiveBuffers)
	assert.Equal(t, 1, stats.FreeBuffers, "must coalesce into a single whole-region hole")
	assert.Equal(t, testRegionSize, stats.BytesFree)
	assert.Equal(t, 0, fp.live, "no live buffer remains, every page must be released")
}

// Scenario 4: shared-page policy. A = 4000 (entirely inside page 0), B =
// 200 straddling pages 0-1. Freeing A must not release page 0.
func TestSharedPagePolicy(t *testing.T) {
	r, fp := newTestRegion(testPageSize, testRegionSize)

	a, err := r.NewBuf(4000, 0, 0, false)
	require.NoError(t, err)
	require.Equal(t, 4000, a.Size())

	b, err := r.NewBuf(200, 0, 0, false)
	require.NoError(t, err)
	require.Equal(t, 4000, b.UserData())
	require.Equal(t, 200, b.Size())

	assert.Equal(t, 2, fp.live, "B straddles pages 0 and 1")

	a.SetAllowUserFree(true)
	r.PrepareToFree(0)
	r.FreeBuf(a)

	assert.Equal(t, 2, fp.live, "page 0 must not be released, B still shares it")
}

// Scenario 5: unaligned copy offset is rejected.
func TestUnalignedCopyRejected(t *testing.T) {
	r, _ := newTestRegion(testPageSize, testRegionSize)

	buf, err := r.NewBuf(100, 0, 0, false)
	require.NoError(t, err)

	err = r.CopyToBuffer(buf, 3, []byte{1, 2, 3, 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// Scenario 6: release after partial use. Map, allocate three 500-byte
// buffers, free the middle one, then tear the whole region down.
func TestDeferredReleaseAfterPartialUse(t *testing.T) {
	r, fp := newTestRegion(testPageSize, testRegionSize)

	a, err := r.NewBuf(500, 0, 0, false)
	require.NoError(t, err)
	b, err := r.NewBuf(500, 0, 0, false)
	require.NoError(t, err)
	_, err = r.NewBuf(500, 0, 0, false)
	require.NoError(t, err)

	b.SetAllowUserFree(true)
	r.PrepareToFree(a.Size())
	r.FreeBuf(b)

	before := fp.live
	assert.Greater(t, before, 0)

	stats := r.DeferredRelease()
	assert.Equal(t, 2, stats.BuffersFreed)
	assert.Greater(t, stats.PagesReleased, 0)
	assert.Equal(t, 0, fp.live)

	final := r.Stats()
	assert.False(t, final.Mapped)
}

func TestNewBufRequestLargerThanRegionReturnsNoSpace(t *testing.T) {
	r, _ := newTestRegion(testPageSize, testRegionSize)

	_, err := r.NewBuf(testRegionSize+1, 0, 0, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestSanitizeSizeOverflowReturnsInvalidArgument(t *testing.T) {
	_, ok := sanitizeSize(math.MaxUint64-4, 8, 0)
	assert.False(t, ok)

	r, _ := newTestRegion(testPageSize, testRegionSize)
	_, err := r.NewBuf(math.MaxUint64-4, 8, 0, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestZeroSizeBufferOccupiesExactlyPointerWidth(t *testing.T) {
	r, _ := newTestRegion(testPageSize, testRegionSize)

	buf, err := r.NewBuf(0, 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, PointerWidth, buf.Size())
}

func TestMmapAlreadyMapped(t *testing.T) {
	r, _ := newTestRegion(testPageSize, testRegionSize)

	err := r.Mmap(AreaRequest{Size: testRegionSize})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyMapped)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "Mmap", opErr.Op)
}

// new_buf immediately followed by free_buf restores a single whole-region
// hole, spec.md §8's general coalesce law.
func TestAllocThenFreeRestoresWholeRegionHole(t *testing.T) {
	r, fp := newTestRegion(testPageSize, testRegionSize)

	buf, err := r.NewBuf(1000, 0, 0, false)
	require.NoError(t, err)

	buf.SetAllowUserFree(true)
	r.PrepareToFree(0)
	r.FreeBuf(buf)

	stats := r.Stats()
	assert.Equal(t, 1, stats.FreeBuffers)
	assert.Equal(t, 0, stats.LiveBuffers)
	assert.Equal(t, testRegionSize, stats.BytesFree)
	assert.Equal(t, 0, fp.live)
}

func TestCopyRoundTrip(t *testing.T) {
	r, _ := newTestRegion(testPageSize, testRegionSize)

	buf, err := r.NewBuf(4100, 0, 0, false) // spans two pages
	require.NoError(t, err)

	payload := make([]byte, 4100)
	for i := range payload {
		payload[i] = byte(i)
	}

	require.NoError(t, r.CopyToBuffer(buf, 0, payload))

	out := make([]byte, len(payload))
	require.NoError(t, r.CopyFromBuffer(out, buf, 0))
	assert.Equal(t, payload, out)
}

func TestPrepareToFreeUnknownOffsetPanics(t *testing.T) {
	r, _ := newTestRegion(testPageSize, testRegionSize)
	assert.Panics(t, func() {
		r.PrepareToFree(9999)
	})
}

// Left-coalesce must unlink the surviving predecessor from the free list,
// not the just-freed buffer (which was never in it). A, B, C, D are four
// live 100-byte buffers followed by a trailing hole T; free(A) and free(C)
// leave the free list as {A, C, T} with no coalescing (B and D are live on
// both sides of each). Freeing B then right-coalesces C into B and
// left-coalesces the result into A. A buggy removeFree(h) call (splicing
// the not-yet-listed B handle instead of A) clobbers freeHead/freeTail and
// silently drops every other free hole, including T, from the free list.
func TestFreeMiddleLeftCoalesceKeepsUnrelatedFreeHole(t *testing.T) {
	r, _ := newTestRegion(testPageSize, testRegionSize)

	a, err := r.NewBuf(100, 0, 0, false)
	require.NoError(t, err)
	b, err := r.NewBuf(100, 0, 0, false)
	require.NoError(t, err)
	c, err := r.NewBuf(100, 0, 0, false)
	require.NoError(t, err)
	_, err = r.NewBuf(100, 0, 0, false)
	require.NoError(t, err)

	a.SetAllowUserFree(true)
	r.PrepareToFree(a.UserData())
	r.FreeBuf(a)

	c.SetAllowUserFree(true)
	r.PrepareToFree(c.UserData())
	r.FreeBuf(c)

	stats := r.Stats()
	require.Equal(t, 3, stats.FreeBuffers, "A, C and the trailing hole must all be free and unmerged")

	b.SetAllowUserFree(true)
	r.PrepareToFree(b.UserData())
	r.FreeBuf(b)

	stats = r.Stats()
	assert.Equal(t, 2, stats.FreeBuffers, "A+B+C merge into one hole, the trailing hole T survives separately")
	assert.Equal(t, 1, stats.LiveBuffers)

	// The merged A+B+C hole is only 312 bytes; only the still-tracked
	// trailing hole T can satisfy a request this size. If T was dropped
	// from the free list by the left-coalesce bug, first-fit finds
	// nothing big enough and this spuriously fails with ErrNoSpace.
	big, err := r.NewBuf(10000, 0, 0, false)
	require.NoError(t, err, "trailing hole T must still be reachable by first-fit")
	assert.NotNil(t, big)
}

func TestFreeBufDoubleFreePanics(t *testing.T) {
	r, _ := newTestRegion(testPageSize, testRegionSize)
	buf, err := r.NewBuf(100, 0, 0, false)
	require.NoError(t, err)

	buf.SetAllowUserFree(true)
	r.PrepareToFree(0)
	r.FreeBuf(buf)

	assert.Panics(t, func() {
		r.FreeBuf(buf)
	})
}
