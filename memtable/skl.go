// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memtable

import (
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/FrankFSM/ldb/base"
)

const pValue = 1 / math.E

var probabilities [maxHeight]uint32

func init() {
	p := float64(1.0)
	for i := 0; i < maxHeight; i++ {
		probabilities[i] = uint32(float64(math.MaxUint32) * p)
		p *= pValue
	}
}

// skiplist is a single-writer, multiple-concurrent-reader sorted list of
// internal keys, per spec section 4.3. Every level's forward pointer is
// published with an atomic store, and readers load it with an atomic load,
// so a reader walking the list while a write is in progress either sees
// the node or doesn't -- it never observes a half-linked node.
type skiplist struct {
	arena  *arena
	cmp    base.Compare // user-key comparator
	head   *node
	height atomic.Uint32
}

func newSkiplist(a *arena, cmp base.Compare) *skiplist {
	head := &node{height: maxHeight}
	s := &skiplist{arena: a, cmp: cmp, head: head}
	s.height.Store(1)
	return s
}

func (s *skiplist) keyCompare(a, b base.InternalKey) int {
	return base.InternalCompare(s.cmp, a, b)
}

func (s *skiplist) randomHeight() int {
	rnd := rand.Uint32()
	h := 1
	for h < maxHeight && rnd <= probabilities[h] {
		h++
	}
	return h
}

// add inserts key/value into the list. Only one goroutine may call add at a
// time (enforced by the DB's write mutex); concurrent Get/iterator callers
// need no additional synchronization.
func (s *skiplist) add(key base.InternalKey, value []byte) error {
	var preds [maxHeight]*node

	height := int(s.height.Load())
	pred := s.head
	for level := height - 1; level >= 0; level-- {
		for {
			next := pred.loadNext(level)
			if next == nil || s.keyCompare(key, next.key) < 0 {
				break
			}
			pred = next
		}
		preds[level] = pred
	}

	newHeight := s.randomHeight()
	if newHeight > height {
		for level := height; level < newHeight; level++ {
			preds[level] = s.head
		}
		s.height.Store(uint32(newHeight))
	}

	nd, err := newNode(s.arena, key, value, newHeight)
	if err != nil {
		return err
	}

	for level := 0; level < newHeight; level++ {
		nd.storeNext(level, preds[level].loadNext(level))
		preds[level].storeNext(level, nd)
	}
	return nil
}

// floorHeight returns the list's current height as an int, snapshotted
// once so a reader's per-level walk is internally consistent even if a
// concurrent add raises the height mid-walk (the added levels are simply
// not visible to that walk, which is correct: the walk started before they
// existed).
func (s *skiplist) floorHeight() int {
	return int(s.height.Load())
}

// seek returns the first node whose key is >= target, walking from the
// head at the list's current height.
func (s *skiplist) seek(target base.InternalKey) *node {
	pred := s.head
	for level := s.floorHeight() - 1; level >= 0; level-- {
		for {
			next := pred.loadNext(level)
			if next == nil || s.keyCompare(target, next.key) <= 0 {
				break
			}
			pred = next
		}
	}
	return pred.loadNext(0)
}

func (s *skiplist) first() *node {
	return s.head.loadNext(0)
}
