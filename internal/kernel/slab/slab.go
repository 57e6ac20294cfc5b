// Package slab implements kmalloc/kfree backed by power-of-two
// size classes from 16 B to 1024 B, with allocations above 1024 B served
// directly as whole pages. It sits at L2, over the kernel virtual allocator
// in pmm.
//
// Real MINIX-style kfree(p) locates p's arena by masking the pointer to its
// page base. A Go slice carries no such addressable identity without
// unsafe.Pointer arithmetic, so kfree here takes the opaque *Block handle
// that kmalloc returned instead of a bare pointer — the same "find my
// arena" operation, expressed as a lookup through the handle rather than
// through pointer masking.
package slab

import (
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/pmm"
)

const (
	minClass   = 16
	maxClass   = 1024
	numClasses = 7 // 16, 32, 64, 128, 256, 512, 1024
)

func classSize(i int) int { return minClass << i }

func classFor(n int) (int, bool) {
	for i := 0; i < numClasses; i++ {
		if n <= classSize(i) {
			return i, true
		}
	}
	return 0, false
}

// Bitmap is the subset of pmm.KernelBitmap the allocator depends on, kept
// narrow so tests can fake it without a full frame table.
type Bitmap interface {
	AllocKPages(n int) (pmm.KVAddr, error)
	FreeKPages(base pmm.KVAddr, n int)
	Bytes(v pmm.KVAddr) []byte
}

// arena is one page-backed region carved into fixed-size blocks for a
// single size class, a "page header + free list" layout. A
// large (>1024B) allocation is also represented as a one-block arena so
// Free has a single code path.
type arena struct {
	base     pmm.KVAddr
	npages   int
	class    int // -1 for a large allocation
	blockSz  int
	inUse    int
	freeList []int // byte offsets, relative to arena start, of free blocks
	canary   uint32
}

const arenaCanary = 0xA11A5AB

// Block is the opaque handle kmalloc returns; kfree takes it back.
type Block struct {
	Bytes []byte

	arena *arena
	page  int // page index within the arena
	off   int // byte offset within that page
}

// Allocator is the kmalloc/kfree front end. One Allocator owns its own set
// of arenas; a kernel normally has exactly one, but tests may create more
// to check isolation.
type Allocator struct {
	bitmap Bitmap
	arenas map[int][]*arena // class -> arenas with free blocks
	pageSz int
}

// New creates a slab allocator carving arenas out of bitmap, whose pages
// are pageSz bytes (pmm.PageSize in production, overridable in tests).
func New(bitmap Bitmap, pageSz int) *Allocator {
	return &Allocator{
		bitmap: bitmap,
		arenas: make(map[int][]*arena),
		pageSz: pageSz,
	}
}

// Alloc implements kmalloc(n). For n > 1024 it allocates whole pages
// directly; otherwise it carves (or reuses) a fixed-size block from the
// matching size class's free list.
func (a *Allocator) Alloc(n int) (*Block, error) {
	if n <= 0 {
		return nil, fmt.Errorf("slab: Alloc requires n > 0")
	}
	if n > maxClass {
		return a.allocLarge(n)
	}

	class, ok := classFor(n)
	if !ok {
		return nil, fmt.Errorf("slab: no size class for %d bytes", n)
	}

	ar := a.arenaWithFreeBlock(class)
	if ar == nil {
		var err error
		ar, err = a.newArena(class)
		if err != nil {
			return nil, err
		}
	}

	off := ar.freeList[len(ar.freeList)-1]
	ar.freeList = ar.freeList[:len(ar.freeList)-1]
	ar.inUse++

	page := off / a.pageSz
	pageOff := off % a.pageSz
	buf := a.bitmap.Bytes(ar.base + pmm.KVAddr(page))[pageOff : pageOff+ar.blockSz]
	return &Block{Bytes: buf, arena: ar, page: page, off: pageOff}, nil
}

// Free implements kfree(p): returns the block to its arena's free list;
// when the arena's in-use count returns to zero it is disassembled and its
// pages returned to the kernel bitmap.
func (a *Allocator) Free(b *Block) {
	if b == nil || b.arena == nil {
		panic("slab: Free of a nil or already-freed block")
	}
	ar := b.arena
	ar.freeList = append(ar.freeList, b.page*a.pageSz+b.off)
	ar.inUse--
	b.arena = nil
	b.Bytes = nil

	if ar.inUse == 0 {
		a.destroyArena(ar)
	}
}

func (a *Allocator) arenaWithFreeBlock(class int) *arena {
	list := a.arenas[class]
	for _, ar := range list {
		if len(ar.freeList) > 0 {
			return ar
		}
	}
	return nil
}

func (a *Allocator) newArena(class int) (*arena, error) {
	blockSz := classSize(class)
	base, err := a.bitmap.AllocKPages(1)
	if err != nil {
		return nil, err
	}

	blocksPerPage := a.pageSz / blockSz
	ar := &arena{
		base:    base,
		npages:  1,
		class:   class,
		blockSz: blockSz,
		canary:  arenaCanary,
	}
	for j := 0; j < blocksPerPage; j++ {
		ar.freeList = append(ar.freeList, j*blockSz)
	}

	a.arenas[class] = append(a.arenas[class], ar)
	return ar, nil
}

func (a *Allocator) destroyArena(ar *arena) {
	if ar.canary != arenaCanary {
		panic("slab: arena canary corrupted")
	}
	if ar.class >= 0 {
		list := a.arenas[ar.class]
		for i, c := range list {
			if c == ar {
				a.arenas[ar.class] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	a.bitmap.FreeKPages(ar.base, ar.npages)
}

// allocLarge serves n > 1024 directly from whole pages, bypassing the
// size-class machinery entirely.
func (a *Allocator) allocLarge(n int) (*Block, error) {
	npages := (n + a.pageSz - 1) / a.pageSz
	base, err := a.bitmap.AllocKPages(npages)
	if err != nil {
		return nil, err
	}
	ar := &arena{base: base, npages: npages, class: -1, blockSz: npages * a.pageSz, inUse: 1, canary: arenaCanary}

	// A large arena's "backing buffer" is the concatenation of its pages;
	// since AllocKPages already guarantees contiguity in the virtual bitmap
	// but each page is independently allocated storage, we stitch a flat
	// view by copying into one owned buffer. kfree still returns all pages.
	flat := make([]byte, npages*a.pageSz)
	for i := 0; i < npages; i++ {
		copy(flat[i*a.pageSz:], a.bitmap.Bytes(base+pmm.KVAddr(i)))
	}
	return &Block{Bytes: flat[:n], arena: ar, page: 0, off: 0}, nil
}
