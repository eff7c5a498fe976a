// Copyright 2024 The Vanadium Authors
// This file is part of Vanadium.
//
// Vanadium is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Vanadium is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Vanadium. If not, see <http://www.gnu.org/licenses/>.

package pagedmem

import (
	"encoding/binary"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/vanadium-vm/vanadium/vm"
	"github.com/vanadium-vm/vanadium/wire"
)

// residentPage is one entry in the cache: the plaintext content, the last
// leaf bytes authenticated (or committed) for it, and whether it has been
// written since it entered the cache.
type residentPage struct {
	plaintext [wire.PageSize]byte
	leaf      []byte
	dirty     bool
}

// Cache implements vm.Segment over a PageStore, keeping a small resident
// set of pages via golang-lru with an eviction callback that commits a
// dirty page before it is dropped. Invariant I3
// ("at most one page per section is held mutably") is enforced by
// committing the currently-dirty page, if any, before a different page is
// marked dirty.
type Cache struct {
	store *PageStore
	base  uint32
	pages uint32 // number of real (unpadded) pages in this section

	writable bool

	mu         sync.Mutex
	lru        *lru.Cache
	dirtyIndex *uint32

	// fault, if non-nil, is the first unrecoverable error the cache hit;
	// once set, every subsequent Segment call fails fast with it.
	fault error
}

// New constructs a page cache for one section. size is the resident cache
// capacity (1 + extra cache pages); store performs the authenticated
// fetch/commit protocol.
func New(store *PageStore, base uint32, pageCount int, writable bool, size int) (*Cache, error) {
	if size < 1 {
		size = 1
	}
	c := &Cache{
		store:    store,
		base:     base,
		pages:    uint32(pageCount),
		writable: writable,
	}
	evictCache, err := lru.NewWithEvict(size, func(key, value interface{}) {
		c.onEvict(key.(uint32), value.(*residentPage))
	})
	if err != nil {
		return nil, fmt.Errorf("pagedmem: building LRU cache: %w", err)
	}
	c.lru = evictCache
	return c, nil
}

// Base implements vm.Segment.
func (c *Cache) Base() uint32 { return c.base }

// End implements vm.Segment.
func (c *Cache) End() uint32 { return c.base + c.pages*wire.PageSize }

// Writable implements vm.Segment.
func (c *Cache) Writable() bool { return c.writable }

func (c *Cache) locate(addr uint32) (index uint32, offset uint32) {
	rel := addr - c.base
	return rel / wire.PageSize, rel % wire.PageSize
}

// inRange reports whether [addr, addr+size) lies within this segment's
// [Base, End) range, guarding against addr+size overflowing uint32.
func (c *Cache) inRange(addr, size uint32) bool {
	if addr < c.Base() || addr > c.End() {
		return false
	}
	return c.End()-addr >= size
}

// onEvict runs synchronously inside lru.Add when a page is dropped to make
// room. A dirty page is committed before being dropped; a commit failure is recorded as
// a fault, since the VM has no way to undo the eviction or recover the
// uncommitted write.
func (c *Cache) onEvict(index uint32, p *residentPage) {
	if !p.dirty || c.fault != nil {
		return
	}
	newLeaf, err := c.store.CommitPage(index, p.plaintext, p.leaf)
	if err != nil {
		c.fault = fmt.Errorf("pagedmem: commit on eviction of page %d: %w", index, err)
		return
	}
	p.leaf = newLeaf
	p.dirty = false
	if c.dirtyIndex != nil && *c.dirtyIndex == index {
		c.dirtyIndex = nil
	}
}

// getPage returns the resident page at index, fetching it from the store on
// a cache miss.
func (c *Cache) getPage(index uint32) (*residentPage, error) {
	if c.fault != nil {
		return nil, c.fault
	}
	if v, ok := c.lru.Get(index); ok {
		return v.(*residentPage), nil
	}
	fetched, err := c.store.FetchPage(index)
	if err != nil {
		c.fault = err
		return nil, err
	}
	p := &residentPage{plaintext: fetched.Plaintext, leaf: fetched.Leaf}
	c.lru.Add(index, p)
	return p, nil
}

// markDirty records that p (at index) has been written. Invariant I3: if a
// different page in this section is currently the one held mutably, commit
// it first so at most one page is ever dirty at a time.
func (c *Cache) markDirty(index uint32, p *residentPage) error {
	if c.dirtyIndex != nil && *c.dirtyIndex != index {
		prevIdx := *c.dirtyIndex
		if v, ok := c.lru.Get(prevIdx); ok {
			prev := v.(*residentPage)
			newLeaf, err := c.store.CommitPage(prevIdx, prev.plaintext, prev.leaf)
			if err != nil {
				c.fault = fmt.Errorf("pagedmem: commit page %d before switching mutable page: %w", prevIdx, err)
				return c.fault
			}
			prev.leaf = newLeaf
			prev.dirty = false
		}
	}
	p.dirty = true
	idx := index
	c.dirtyIndex = &idx
	return nil
}

// ReadByte implements vm.Segment.
func (c *Cache) ReadByte(addr uint32) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inRange(addr, 1) {
		return 0, vm.ErrOutOfRange
	}
	idx, off := c.locate(addr)
	p, err := c.getPage(idx)
	if err != nil {
		return 0, err
	}
	return p.plaintext[off], nil
}

// Read16 implements vm.Segment.
func (c *Cache) Read16(addr uint32) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inRange(addr, 2) {
		return 0, vm.ErrOutOfRange
	}
	idx, off := c.locate(addr)
	p, err := c.getPage(idx)
	if err != nil {
		return 0, err
	}
	if off+2 > wire.PageSize {
		return 0, fmt.Errorf("pagedmem: 16-bit access crosses a page boundary at %#x", addr)
	}
	return binary.LittleEndian.Uint16(p.plaintext[off : off+2]), nil
}

// Read32 implements vm.Segment.
func (c *Cache) Read32(addr uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inRange(addr, 4) {
		return 0, vm.ErrOutOfRange
	}
	idx, off := c.locate(addr)
	p, err := c.getPage(idx)
	if err != nil {
		return 0, err
	}
	if off+4 > wire.PageSize {
		return 0, fmt.Errorf("pagedmem: 32-bit access crosses a page boundary at %#x", addr)
	}
	return binary.LittleEndian.Uint32(p.plaintext[off : off+4]), nil
}

// WriteByte implements vm.Segment.
func (c *Cache) WriteByte(addr uint32, v byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.writable {
		return vm.ErrWriteToReadOnly
	}
	if !c.inRange(addr, 1) {
		return vm.ErrOutOfRange
	}
	idx, off := c.locate(addr)
	p, err := c.getPage(idx)
	if err != nil {
		return err
	}
	p.plaintext[off] = v
	return c.markDirty(idx, p)
}

// Write16 implements vm.Segment.
func (c *Cache) Write16(addr uint32, v uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.writable {
		return vm.ErrWriteToReadOnly
	}
	if !c.inRange(addr, 2) {
		return vm.ErrOutOfRange
	}
	idx, off := c.locate(addr)
	p, err := c.getPage(idx)
	if err != nil {
		return err
	}
	if off+2 > wire.PageSize {
		return fmt.Errorf("pagedmem: 16-bit access crosses a page boundary at %#x", addr)
	}
	binary.LittleEndian.PutUint16(p.plaintext[off:off+2], v)
	return c.markDirty(idx, p)
}

// Write32 implements vm.Segment.
func (c *Cache) Write32(addr uint32, v uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.writable {
		return vm.ErrWriteToReadOnly
	}
	if !c.inRange(addr, 4) {
		return vm.ErrOutOfRange
	}
	idx, off := c.locate(addr)
	p, err := c.getPage(idx)
	if err != nil {
		return err
	}
	if off+4 > wire.PageSize {
		return fmt.Errorf("pagedmem: 32-bit access crosses a page boundary at %#x", addr)
	}
	binary.LittleEndian.PutUint32(p.plaintext[off:off+4], v)
	return c.markDirty(idx, p)
}

// Flush commits every dirty page currently resident, used at run teardown
// (guest exit) so no write is lost without a final eviction.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault != nil {
		return c.fault
	}
	for _, key := range c.lru.Keys() {
		idx := key.(uint32)
		v, ok := c.lru.Peek(idx)
		if !ok {
			continue
		}
		p := v.(*residentPage)
		if !p.dirty {
			continue
		}
		newLeaf, err := c.store.CommitPage(idx, p.plaintext, p.leaf)
		if err != nil {
			c.fault = fmt.Errorf("pagedmem: flush commit of page %d: %w", idx, err)
			return c.fault
		}
		p.leaf = newLeaf
		p.dirty = false
	}
	c.dirtyIndex = nil
	return nil
}

// Root returns the section's current Merkle root as last observed by the
// underlying PageStore.
func (c *Cache) Root() [32]byte { return c.store.Root() }
