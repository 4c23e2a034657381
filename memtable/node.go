// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memtable

import (
	"sync/atomic"

	"github.com/FrankFSM/ldb/base"
)

const maxHeight = 20

// node is one entry in the skip list. next is the forward-pointer tower;
// only tower[:height] is meaningful. Every field other than next is
// immutable once published, so readers need no lock to access key/value --
// they only need an acquire load of the preceding node's next pointer to
// see a fully-initialized node.
type node struct {
	key    base.InternalKey
	value  []byte
	height int
	next   [maxHeight]atomic.Pointer[node]
}

func newNode(a *arena, key base.InternalKey, value []byte, height int) (*node, error) {
	keyBuf, err := a.alloc(uint32(key.EncodedLen()))
	if err != nil {
		return nil, err
	}
	key.Encode(keyBuf)

	var valBuf []byte
	if len(value) > 0 {
		valBuf, err = a.alloc(uint32(len(value)))
		if err != nil {
			return nil, err
		}
		copy(valBuf, value)
	}

	return &node{
		key:    base.DecodeInternalKey(keyBuf),
		value:  valBuf,
		height: height,
	}, nil
}

func (n *node) loadNext(h int) *node {
	return n.next[h].Load()
}

func (n *node) storeNext(h int, v *node) {
	n.next[h].Store(v)
}
