// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sstable

import (
	"encoding/binary"
	"sort"

	"github.com/FrankFSM/ldb/base"
)

// blockWriter accumulates entries for a single data or index block, applying
// restart-point prefix compression per spec section 4.4: every
// restartInterval entries, the key is written in full (shared=0) and its
// offset recorded as a restart point; the rest share a computed prefix with
// the previous key.
type blockWriter struct {
	restartInterval int
	nEntries        int
	buf             []byte
	restarts        []uint32
	curKey          []byte
	prevKey         []byte
	tmp             [binary.MaxVarintLen64 * 3]byte
}

func newBlockWriter(restartInterval int) *blockWriter {
	return &blockWriter{restartInterval: restartInterval}
}

func (w *blockWriter) add(key base.InternalKey, value []byte) {
	w.curKey, w.prevKey = w.prevKey, w.curKey

	size := key.EncodedLen()
	if cap(w.curKey) < size {
		w.curKey = make([]byte, size)
	}
	w.curKey = w.curKey[:size]
	key.Encode(w.curKey)

	shared := 0
	if w.nEntries%w.restartInterval == 0 {
		w.restarts = append(w.restarts, uint32(len(w.buf)))
	} else {
		shared = base.SharedPrefixLen(w.curKey, w.prevKey)
	}

	n := binary.PutUvarint(w.tmp[0:], uint64(shared))
	n += binary.PutUvarint(w.tmp[n:], uint64(size-shared))
	n += binary.PutUvarint(w.tmp[n:], uint64(len(value)))
	w.buf = append(w.buf, w.tmp[:n]...)
	w.buf = append(w.buf, w.curKey[shared:]...)
	w.buf = append(w.buf, value...)
	w.nEntries++
}

// finish appends the restart-point table and returns the finished block
// body (without trailer/checksum -- those are added by the table writer).
func (w *blockWriter) finish() []byte {
	if w.nEntries == 0 {
		w.restarts = append(w.restarts[:0], 0)
	}
	var tmp4 [4]byte
	for _, x := range w.restarts {
		binary.LittleEndian.PutUint32(tmp4[:], x)
		w.buf = append(w.buf, tmp4[:]...)
	}
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(w.restarts)))
	w.buf = append(w.buf, tmp4[:]...)
	return w.buf
}

func (w *blockWriter) estimatedSize() int {
	return len(w.buf) + 4*(len(w.restarts)+1)
}

func (w *blockWriter) reset() {
	w.nEntries = 0
	w.buf = w.buf[:0]
	w.restarts = w.restarts[:0]
	w.curKey = w.curKey[:0]
	w.prevKey = w.prevKey[:0]
}

// blockEntry caches a decoded entry visited during a Last/Prev scan so
// reverse iteration does not have to re-scan from the preceding restart
// point on every step.
type blockEntry struct {
	offset int
	key    []byte
	val    []byte
}

// blockIter iterates over the entries of a single decoded block.
type blockIter struct {
	cmp         base.Compare
	offset      int
	nextOffset  int
	restarts    int
	numRestarts int
	data        []byte
	key, val    []byte
	ikey        base.InternalKey
	cached      []blockEntry
	cachedBuf   []byte
}

func newBlockIter(cmp base.Compare, block []byte) (*blockIter, error) {
	i := &blockIter{}
	return i, i.init(cmp, block)
}

func (i *blockIter) init(cmp base.Compare, block []byte) error {
	if len(block) < 4 {
		return errCorruptBlock
	}
	numRestarts := int(binary.LittleEndian.Uint32(block[len(block)-4:]))
	if numRestarts == 0 {
		return errCorruptBlock
	}
	*i = blockIter{
		cmp:         cmp,
		restarts:    len(block) - 4*(1+numRestarts),
		numRestarts: numRestarts,
		data:        block,
		key:         make([]byte, 0, 256),
	}
	if i.restarts < 0 {
		return errCorruptBlock
	}
	return nil
}

func decodeVarint(src []byte) (uint32, int) {
	v, n := binary.Uvarint(src)
	return uint32(v), n
}

func (i *blockIter) readEntry() {
	shared, n := decodeVarint(i.data[i.offset:])
	p := i.offset + n
	unshared, n := decodeVarint(i.data[p:])
	p += n
	valLen, n := decodeVarint(i.data[p:])
	p += n
	i.key = append(i.key[:shared], i.data[p:p+int(unshared)]...)
	i.key = i.key[:len(i.key):len(i.key)]
	p += int(unshared)
	i.val = i.data[p : p+int(valLen) : p+int(valLen)]
	i.nextOffset = p + int(valLen)
}

func (i *blockIter) loadEntry() {
	i.readEntry()
	i.ikey = base.DecodeInternalKey(i.key)
}

func (i *blockIter) clearCache() {
	i.cached = i.cached[:0]
	i.cachedBuf = i.cachedBuf[:0]
}

func (i *blockIter) cacheEntry() {
	i.cachedBuf = append(i.cachedBuf, i.key...)
	i.cached = append(i.cached, blockEntry{
		offset: i.offset,
		key:    i.cachedBuf[len(i.cachedBuf)-len(i.key):],
		val:    i.val,
	})
}

// SeekGE positions the iterator at the first entry whose key is >= key.
func (i *blockIter) SeekGE(key base.InternalKey) {
	index := sort.Search(i.numRestarts, func(j int) bool {
		offset := int(binary.LittleEndian.Uint32(i.data[i.restarts+4*j:]))
		offset++ // restart entries share nothing; skip the 1-byte shared=0 varint.
		v1, n1 := decodeVarint(i.data[offset:])
		_, n2 := decodeVarint(i.data[offset+n1:])
		m := offset + n1 + n2
		return base.InternalCompare(i.cmp, key, base.DecodeInternalKey(i.data[m:m+int(v1)])) < 0
	})

	i.offset = 0
	if index > 0 {
		i.offset = int(binary.LittleEndian.Uint32(i.data[i.restarts+4*(index-1):]))
	}
	i.loadEntry()
	for ; i.Valid(); i.Next() {
		if base.InternalCompare(i.cmp, key, i.ikey) <= 0 {
			break
		}
	}
}

func (i *blockIter) First() {
	i.offset = 0
	i.loadEntry()
}

func (i *blockIter) Last() {
	i.offset = int(binary.LittleEndian.Uint32(i.data[i.restarts+4*(i.numRestarts-1):]))
	i.readEntry()
	i.clearCache()
	i.cacheEntry()
	for i.nextOffset < i.restarts {
		i.offset = i.nextOffset
		i.readEntry()
		i.cacheEntry()
	}
	i.ikey = base.DecodeInternalKey(i.key)
}

func (i *blockIter) Next() bool {
	i.offset = i.nextOffset
	if !i.Valid() {
		return false
	}
	i.loadEntry()
	return true
}

func (i *blockIter) Prev() bool {
	if n := len(i.cached) - 1; n > 0 && i.cached[n].offset == i.offset {
		i.nextOffset = i.offset
		e := &i.cached[n-1]
		i.offset = e.offset
		i.val = e.val
		i.ikey = base.DecodeInternalKey(e.key)
		i.cached = i.cached[:n]
		return true
	}
	if i.offset == 0 {
		i.offset = -1
		i.nextOffset = 0
		return false
	}
	target := i.offset
	index := sort.Search(i.numRestarts, func(j int) bool {
		offset := int(binary.LittleEndian.Uint32(i.data[i.restarts+4*j:]))
		return offset >= target
	})
	i.offset = 0
	if index > 0 {
		i.offset = int(binary.LittleEndian.Uint32(i.data[i.restarts+4*(index-1):]))
	}
	i.readEntry()
	i.clearCache()
	i.cacheEntry()
	for i.nextOffset < target {
		i.offset = i.nextOffset
		i.readEntry()
		i.cacheEntry()
	}
	i.ikey = base.DecodeInternalKey(i.key)
	return true
}

func (i *blockIter) Key() base.InternalKey { return i.ikey }
func (i *blockIter) Value() []byte         { return i.val }
func (i *blockIter) Valid() bool           { return i.offset >= 0 && i.offset < i.restarts }
func (i *blockIter) Close() error          { i.val = nil; return nil }
