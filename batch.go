// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"encoding/binary"

	"github.com/FrankFSM/ldb/base"
)

const batchHeaderLen = 12

// Batch is a sequence of Sets and/or Deletes that are applied atomically,
// per spec section 4.9. Its wire format is also its WAL record format:
//
//   - 8 bytes: sequence number of the batch's first element
//   - 4 bytes: count, the number of elements in the batch
//   - count elements, each:
//   - 1 byte: kind (Delete=0, Set=1)
//   - varint-length-prefixed key
//   - varint-length-prefixed value (present only if kind == Set)
type Batch struct {
	data []byte
}

// NewBatch returns an empty batch ready for Set/Delete calls.
func NewBatch() *Batch {
	b := &Batch{data: make([]byte, batchHeaderLen)}
	return b
}

// Set appends a Set(key, value) operation.
func (b *Batch) Set(key, value []byte) {
	b.grow(1, len(key), len(value))
	b.data = append(b.data, byte(base.InternalKeyKindSet))
	b.data = appendVarstr(b.data, key)
	b.data = appendVarstr(b.data, value)
	b.incCount()
}

// Delete appends a Delete(key) operation.
func (b *Batch) Delete(key []byte) {
	b.grow(1, len(key), 0)
	b.data = append(b.data, byte(base.InternalKeyKindDelete))
	b.data = appendVarstr(b.data, key)
	b.incCount()
}

// grow is a hint only; append already grows data as needed, but reserving
// up front avoids repeated reallocation for multi-entry batches.
func (b *Batch) grow(entries, keyLen, valueLen int) {
	need := len(b.data) + entries*(1+binary.MaxVarintLen64*2) + keyLen + valueLen
	if cap(b.data) < need {
		buf := make([]byte, len(b.data), need)
		copy(buf, b.data)
		b.data = buf
	}
}

func (b *Batch) incCount() {
	n := binary.LittleEndian.Uint32(b.data[8:12])
	binary.LittleEndian.PutUint32(b.data[8:12], n+1)
}

func appendVarstr(dst []byte, s []byte) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(s)))
	dst = append(dst, tmp[:n]...)
	dst = append(dst, s...)
	return dst
}

func (b *Batch) setSeqNum(seq base.SeqNum) {
	binary.LittleEndian.PutUint64(b.data[:8], uint64(seq))
}

func (b *Batch) seqNum() base.SeqNum {
	return base.SeqNum(binary.LittleEndian.Uint64(b.data[:8]))
}

// append merges other's operations into b, incrementing b's count by
// other's. Used to coalesce several queued writers into one WAL record and
// memtable application, mirroring BuildBatchGroup.
func (b *Batch) append(other *Batch) {
	n := binary.LittleEndian.Uint32(b.data[8:12]) + binary.LittleEndian.Uint32(other.data[8:12])
	b.data = append(b.data, other.data[batchHeaderLen:]...)
	binary.LittleEndian.PutUint32(b.data[8:12], n)
}

// Count returns the number of operations in the batch.
func (b *Batch) Count() int {
	return int(binary.LittleEndian.Uint32(b.data[8:12]))
}

// Empty reports whether the batch has no operations.
func (b *Batch) Empty() bool {
	return len(b.data) <= batchHeaderLen
}

// Len returns the length of the batch's wire encoding.
func (b *Batch) Len() int { return len(b.data) }

// Repr returns the batch's wire encoding, usable as a WAL record body.
func (b *Batch) Repr() []byte { return b.data }

// batchFromRepr wraps an already-encoded batch, as read back from the WAL.
func batchFromRepr(data []byte) *Batch {
	return &Batch{data: data}
}

func (b *Batch) iter() batchIter {
	return b.data[batchHeaderLen:]
}

type batchIter []byte

// next returns the next operation in this batch. The final return value is
// false if the batch is corrupt.
func (t *batchIter) next() (kind base.InternalKeyKind, key []byte, value []byte, ok bool) {
	p := *t
	if len(p) == 0 {
		return 0, nil, nil, false
	}
	kind, *t = base.InternalKeyKind(p[0]), p[1:]
	if kind > base.InternalKeyKindMax {
		return 0, nil, nil, false
	}
	key, ok = t.nextStr()
	if !ok {
		return 0, nil, nil, false
	}
	if kind != base.InternalKeyKindDelete {
		value, ok = t.nextStr()
		if !ok {
			return 0, nil, nil, false
		}
	}
	return kind, key, value, true
}

func (t *batchIter) nextStr() (s []byte, ok bool) {
	p := *t
	u, numBytes := binary.Uvarint(p)
	if numBytes <= 0 {
		return nil, false
	}
	p = p[numBytes:]
	if u > uint64(len(p)) {
		return nil, false
	}
	s, *t = p[:u], p[u:]
	return s, true
}
