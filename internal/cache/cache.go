// Copyright 2013 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache provides a sharded, size-bounded block cache, per spec
// section 4.5's table-and-block-cache component.
package cache

import (
	"container/list"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const numShards = 16

// Key identifies a cached block: the file it came from and its offset
// within that file. Two different tables may reuse the same offset, so
// FileNum disambiguates them.
type Key struct {
	FileNum uint64
	Offset  uint64
}

func (k Key) hash() uint64 {
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(k.FileNum >> (8 * i))
		buf[8+i] = byte(k.Offset >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

// Cache is a sharded LRU of decoded, uncompressed blocks, bounded by total
// byte size rather than entry count, per spec section 4.5's "Table & Block
// Caches" component.
//
// Grounded on the reference-counted LRU shape the table cache (see
// table_cache.go) already uses for open readers; a block cache has no
// readers to keep alive, so it drops the refcount/close machinery and adds
// size-based eviction and xxhash-sharded locking instead, since individual
// block lookups are far more frequent than table opens and benefit from
// spreading lock contention across shards.
type Cache struct {
	shards [numShards]shard
}

type shard struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	ll       *list.List
	elems    map[Key]*list.Element
}

type entry struct {
	key   Key
	value []byte
}

// New returns a cache that holds up to capacity bytes of blocks total,
// split evenly across its shards.
func New(capacity int64) *Cache {
	c := &Cache{}
	perShard := capacity / numShards
	for i := range c.shards {
		c.shards[i] = shard{
			capacity: perShard,
			ll:       list.New(),
			elems:    make(map[Key]*list.Element),
		}
	}
	return c
}

func (c *Cache) shardFor(k Key) *shard {
	return &c.shards[k.hash()%numShards]
}

// Get returns the cached block for k, if present.
func (c *Cache) Get(k Key) ([]byte, bool) {
	s := c.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elems[k]
	if !ok {
		return nil, false
	}
	s.ll.MoveToFront(e)
	return e.Value.(*entry).value, true
}

// Set inserts or replaces the cached block for k.
func (c *Cache) Set(k Key, value []byte) {
	s := c.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.elems[k]; ok {
		s.size += int64(len(value)) - int64(len(e.Value.(*entry).value))
		e.Value.(*entry).value = value
		s.ll.MoveToFront(e)
	} else {
		e := s.ll.PushFront(&entry{key: k, value: value})
		s.elems[k] = e
		s.size += int64(len(value))
	}

	for s.size > s.capacity && s.ll.Len() > 0 {
		back := s.ll.Back()
		ev := back.Value.(*entry)
		s.size -= int64(len(ev.value))
		s.ll.Remove(back)
		delete(s.elems, ev.key)
	}
}

// EvictFile drops every cached block belonging to fileNum, used when a
// table is deleted by compaction so stale blocks cannot resurface if the
// file number is ever reused.
func (c *Cache) EvictFile(fileNum uint64) {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for k, e := range s.elems {
			if k.FileNum == fileNum {
				s.size -= int64(len(e.Value.(*entry).value))
				s.ll.Remove(e)
				delete(s.elems, k)
			}
		}
		s.mu.Unlock()
	}
}
