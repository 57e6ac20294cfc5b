// Package buffercache implements the content-addressed block buffer cache:
// a fixed pool of 1 KiB buffers hashed by (device, block), LRU-reused once
// the pool is exhausted, with dirty buffers written back through the
// blockdev elevator before they can be reused.
package buffercache

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hjw1766/XJOS/internal/kernel/blockdev"
	"github.com/hjw1766/XJOS/internal/kernel/kernsync"
	"github.com/hjw1766/XJOS/internal/klog"
)

// BlockSize is the cache's unit of storage: 1 KiB, two 512-byte sectors.
const BlockSize = 1024

const blockSectors = BlockSize / blockdev.SectorSize

// Buffer is one cached block. Identity is (Device, Block); at most one
// Buffer with a given identity exists in a Cache at a time.
type Buffer struct {
	Device uint32
	Block  int
	Data   [BlockSize]byte

	mu      sync.Mutex
	count   int
	dirty   bool
	valid   bool
	lruElem *list.Element // nil unless count == 0 and on the LRU list
	dirtyElem *list.Element
}

type key struct {
	dev   uint32
	block int
}

// Cache is the buffer cache described above: a hash table of live buffers,
// an LRU list of free (zero-refcount) buffers, a dirty list for writeback,
// and a bump allocator for buffers not yet carved out of the reserved
// region.
type Cache struct {
	table *blockdev.Table
	log   *slog.Logger

	mu       sync.Mutex
	buffers  map[key]*Buffer
	lru      *list.List // front = least recently released
	dirty    *list.List
	capacity int
	created  int
	waiters  kernsync.FIFO
}

// New creates a cache backed by table, holding at most capacity buffers
// before it must reuse via LRU.
func New(table *blockdev.Table, capacity int) *Cache {
	return &Cache{
		table:    table,
		log:      klog.ForComponent("buffercache"),
		buffers:  make(map[key]*Buffer),
		lru:      list.New(),
		dirty:    list.New(),
		capacity: capacity,
	}
}

// Get returns the buffer for (dev, block), creating it with valid=false if
// it was not already cached. The returned buffer's refcount has been
// incremented; callers must call Release exactly once.
func (c *Cache) Get(ctx context.Context, dev uint32, block int) (*Buffer, error) {
	k := key{dev, block}
	for {
		c.mu.Lock()
		if b, ok := c.buffers[k]; ok {
			b.mu.Lock()
			if b.count == 0 {
				c.lru.Remove(b.lruElem)
				b.lruElem = nil
			}
			b.count++
			b.mu.Unlock()
			c.mu.Unlock()
			return b, nil
		}

		b, err := c.acquireFreeBuffer(ctx)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		if b == nil {
			// acquireFreeBuffer released and reacquired c.mu while
			// blocking on a free buffer; release it here and retry the
			// hash lookup in case someone else filled this identity.
			c.mu.Unlock()
			continue
		}

		b.Device = dev
		b.Block = block
		b.count = 1
		b.valid = false
		b.dirty = false
		c.buffers[k] = b
		c.mu.Unlock()
		return b, nil
	}
}

// acquireFreeBuffer implements the free-buffer acquisition protocol: bump
// allocate, then LRU reuse with writeback, then block and retry. Must be
// called with c.mu held; it may release and reacquire c.mu while blocking,
// in which case it returns (nil, nil) to tell the caller to retry the hash
// lookup from scratch.
func (c *Cache) acquireFreeBuffer(ctx context.Context) (*Buffer, error) {
	if c.created < c.capacity {
		c.created++
		return &Buffer{}, nil
	}

	if elem := c.lru.Front(); elem != nil {
		b := elem.Value.(*Buffer)
		c.lru.Remove(elem)
		b.lruElem = nil
		oldKey := key{b.Device, b.Block}
		// Remove from the identity table before releasing c.mu for the
		// writeback below, so a concurrent Get for this same identity
		// cannot observe a buffer that is mid-eviction.
		delete(c.buffers, oldKey)

		if b.dirty {
			c.mu.Unlock()
			err := c.writeBack(ctx, b)
			c.mu.Lock()
			if err != nil {
				// Restore its old identity and put it back on the LRU
				// rather than lose track of it.
				c.buffers[oldKey] = b
				b.lruElem = c.lru.PushFront(b)
				return nil, err
			}
			b.mu.Lock()
			b.dirty = false
			b.mu.Unlock()
			c.unlinkDirtyLocked(b)
		}

		return b, nil
	}

	gate := kernsync.NewGate()
	c.waiters.Enqueue(gate)
	c.mu.Unlock()
	gate.Wait()
	c.mu.Lock()
	return nil, nil
}

// Read returns the buffer for (dev, block) with valid contents, issuing a
// read request through the device table if it was not already valid.
func (c *Cache) Read(ctx context.Context, dev uint32, block int) (*Buffer, error) {
	b, err := c.Get(ctx, dev, block)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	alreadyValid := b.valid
	b.mu.Unlock()
	if alreadyValid {
		return b, nil
	}

	buf := make([]byte, BlockSize)
	if err := c.table.Submit(ctx, dev, block, 1, buf, blockdev.Read); err != nil {
		c.Release(b)
		return nil, fmt.Errorf("buffercache: read %d/%d: %w", dev, block, err)
	}

	b.mu.Lock()
	copy(b.Data[:], buf)
	b.valid = true
	b.mu.Unlock()
	return b, nil
}

// Zero returns the buffer for (dev, block) with its contents cleared and
// marked valid, without reading the block from disk first. Callers use
// this for a block being allocated fresh (an indirect block, a newly
// extended file's data block) that has no prior contents worth fetching.
func (c *Cache) Zero(ctx context.Context, dev uint32, block int) (*Buffer, error) {
	b, err := c.Get(ctx, dev, block)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	for i := range b.Data {
		b.Data[i] = 0
	}
	b.valid = true
	b.mu.Unlock()
	return b, nil
}

// Write submits b's contents for writeback if dirty, then clears dirty.
// A no-op if b is not dirty.
func (c *Cache) Write(ctx context.Context, b *Buffer) error {
	b.mu.Lock()
	if !b.dirty {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := c.writeBack(ctx, b); err != nil {
		return err
	}

	b.mu.Lock()
	b.dirty = false
	b.valid = true
	b.mu.Unlock()
	c.unlinkDirty(b)
	return nil
}

func (c *Cache) writeBack(ctx context.Context, b *Buffer) error {
	b.mu.Lock()
	buf := make([]byte, BlockSize)
	copy(buf, b.Data[:])
	dev, block := b.Device, b.Block
	b.mu.Unlock()

	if err := c.table.Submit(ctx, dev, block, 1, buf, blockdev.Write); err != nil {
		return fmt.Errorf("buffercache: writeback %d/%d: %w", dev, block, err)
	}
	return nil
}

// MarkDirty sets or clears b's dirty flag and maintains its membership on
// the dirty list. Idempotent.
func (c *Cache) MarkDirty(b *Buffer, dirty bool) {
	b.mu.Lock()
	wasDirty := b.dirty
	b.dirty = dirty
	b.mu.Unlock()

	if dirty && !wasDirty {
		c.mu.Lock()
		b.dirtyElem = c.dirty.PushBack(b)
		c.mu.Unlock()
	} else if !dirty && wasDirty {
		c.unlinkDirty(b)
	}
}

func (c *Cache) unlinkDirty(b *Buffer) {
	c.mu.Lock()
	c.unlinkDirtyLocked(b)
	c.mu.Unlock()
}

// unlinkDirtyLocked requires c.mu to already be held.
func (c *Cache) unlinkDirtyLocked(b *Buffer) {
	if b.dirtyElem != nil {
		c.dirty.Remove(b.dirtyElem)
		b.dirtyElem = nil
	}
}

// Release decrements b's refcount. At zero, b is pushed onto the LRU list
// and one task waiting for a free buffer (if any) is woken.
func (c *Cache) Release(b *Buffer) {
	c.mu.Lock()
	b.mu.Lock()
	b.count--
	if b.count < 0 {
		b.mu.Unlock()
		c.mu.Unlock()
		panic("buffercache: release of buffer with zero refcount")
	}
	if b.count == 0 {
		b.lruElem = c.lru.PushBack(b)
	}
	b.mu.Unlock()
	c.waiters.ReleaseOne()
	c.mu.Unlock()
}

// Sync walks the dirty list, writing back every dirty buffer. Iteration
// saves the next element before each writeback since Write unlinks the
// buffer it just cleaned.
func (c *Cache) Sync(ctx context.Context) error {
	c.mu.Lock()
	elem := c.dirty.Front()
	c.mu.Unlock()

	for elem != nil {
		b := elem.Value.(*Buffer)

		c.mu.Lock()
		next := elem.Next()
		c.mu.Unlock()

		if err := c.Write(ctx, b); err != nil {
			c.log.Warn("sync failed", "device", b.Device, "block", b.Block, "error", err)
			return err
		}
		elem = next
	}
	return nil
}
