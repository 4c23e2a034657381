// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memtable

import "github.com/FrankFSM/ldb/base"

// Iterator walks a Memtable's entries in internal-key order. It is safe to
// use concurrently with writes to the memtable it was created from, and
// sees a consistent snapshot of every entry published before each step.
type Iterator struct {
	s  *skiplist
	nd *node
}

// First positions the iterator at the smallest key.
func (it *Iterator) First() bool {
	it.nd = it.s.first()
	return it.nd != nil
}

// Last positions the iterator at the largest key. The list has no back
// pointers, so this walks forward once to find it.
func (it *Iterator) Last() bool {
	pred := it.s.head
	var last *node
	for level := it.s.floorHeight() - 1; level >= 0; level-- {
		for {
			next := pred.loadNext(level)
			if next == nil {
				break
			}
			pred = next
			last = next
		}
	}
	it.nd = last
	return it.nd != nil
}

// SeekGE positions the iterator at the first entry whose key is >= key.
func (it *Iterator) SeekGE(key base.InternalKey) bool {
	it.nd = it.s.seek(key)
	return it.nd != nil
}

// Next advances to the next entry.
func (it *Iterator) Next() bool {
	if it.nd == nil {
		return false
	}
	it.nd = it.nd.loadNext(0)
	return it.nd != nil
}

// Prev moves to the preceding entry, re-walking from the head since the
// list keeps only forward pointers.
func (it *Iterator) Prev() bool {
	if it.nd == nil {
		return false
	}
	cur := it.nd.key
	pred := it.s.head
	var prevNode *node
	for level := it.s.floorHeight() - 1; level >= 0; level-- {
		for {
			next := pred.loadNext(level)
			if next == nil || it.s.keyCompare(cur, next.key) <= 0 {
				break
			}
			pred = next
			prevNode = next
		}
	}
	it.nd = prevNode
	return it.nd != nil
}

func (it *Iterator) Key() base.InternalKey { return it.nd.key }
func (it *Iterator) Value() []byte         { return it.nd.value }
func (it *Iterator) Valid() bool           { return it.nd != nil }
func (it *Iterator) Close() error          { return nil }
