// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sstable

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/FrankFSM/ldb/base"
	"github.com/FrankFSM/ldb/internal/cache"
	"github.com/FrankFSM/ldb/internal/metrics"
)

// ReaderOptions configures how a table is opened. Comparer and FilterPolicy
// must match what the table was written with. Cache, if non-nil, is
// consulted and populated for every data/index/filter block this reader
// loads, keyed by FileNum so multiple readers can safely share it.
type ReaderOptions struct {
	Comparer     *base.Comparer
	FilterPolicy FilterPolicy
	Cache        *cache.Cache
	FileNum      uint64
	Metrics      *metrics.Metrics
}

// Reader provides point lookups and iteration over an already-written
// table, per spec section 4.4/4.5.
type Reader struct {
	r    io.ReaderAt
	size int64
	opts ReaderOptions
	cmp  base.Compare

	index  []byte
	filter *filterReader
}

// NewReader opens a table for reading. size is the total length of the
// underlying file.
func NewReader(r io.ReaderAt, size int64, opts ReaderOptions) (*Reader, error) {
	if opts.Comparer == nil {
		opts.Comparer = base.DefaultComparer
	}
	if size < footerLen {
		return nil, errBadMagic
	}
	footerBuf := make([]byte, footerLen)
	if _, err := r.ReadAt(footerBuf, size-footerLen); err != nil {
		return nil, base.WrapIOError(err, "sstable: read footer")
	}
	ft, err := decodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}

	reader := &Reader{r: r, size: size, opts: opts, cmp: opts.Comparer.Compare}

	index, err := reader.readBlock(ft.index)
	if err != nil {
		return nil, err
	}
	reader.index = index

	metaindex, err := reader.readBlock(ft.metaindex)
	if err != nil {
		return nil, err
	}
	if opts.FilterPolicy != nil {
		if fh, ok := findMetaBlock(metaindex, "filter."+opts.FilterPolicy.Name()); ok {
			filterBlock, err := reader.readBlock(fh)
			if err != nil {
				return nil, err
			}
			reader.filter = newFilterReader(opts.FilterPolicy, filterBlock, reader.dataBlockOffsets())
		}
	}
	return reader, nil
}

// dataBlockOffsets walks the index block once to recover the start offset
// of every data block, in order, so a filterReader can be matched up with
// the data block it guards without the table format needing to persist a
// redundant offset list of its own.
func (r *Reader) dataBlockOffsets() []uint64 {
	iter, err := newBlockIter(r.cmp, r.index)
	if err != nil {
		return nil
	}
	var offs []uint64
	for iter.First(); iter.Valid(); iter.Next() {
		bh, n := decodeBlockHandle(iter.Value())
		if n == 0 {
			break
		}
		offs = append(offs, bh.offset)
	}
	return offs
}

// findMetaBlock looks up name in a decoded meta-index block.
func findMetaBlock(metaindex []byte, name string) (blockHandle, bool) {
	iter, err := newBlockIter(base.DefaultCompare, metaindex)
	if err != nil {
		return blockHandle{}, false
	}
	target := base.MakeInternalKey([]byte(name), 0, base.InternalKeyKindSet)
	for iter.SeekGE(target); iter.Valid(); iter.Next() {
		if string(iter.Key().UserKey) != name {
			break
		}
		bh, n := decodeBlockHandle(iter.Value())
		if n == 0 {
			return blockHandle{}, false
		}
		return bh, true
	}
	return blockHandle{}, false
}

// readBlock reads, checksums, and decompresses the block at h, consulting
// r.opts.Cache first and populating it on a miss.
func (r *Reader) readBlock(h blockHandle) ([]byte, error) {
	var key cache.Key
	if r.opts.Cache != nil {
		key = cache.Key{FileNum: r.opts.FileNum, Offset: h.offset}
		if block, ok := r.opts.Cache.Get(key); ok {
			if r.opts.Metrics != nil {
				r.opts.Metrics.BlockCacheHits.Inc()
			}
			return block, nil
		}
		if r.opts.Metrics != nil {
			r.opts.Metrics.BlockCacheMisses.Inc()
		}
	}

	n := h.length + blockTrailerLen
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, int64(h.offset)); err != nil {
		return nil, base.WrapIOError(err, "sstable: read block")
	}
	body := buf[:h.length]
	trailer := buf[h.length:]

	checksum := crc32.Update(0, crc32cTable, body)
	checksum = crc32.Update(checksum, crc32cTable, trailer[:1])
	if binary.LittleEndian.Uint32(trailer[1:]) != checksum {
		return nil, errBadChecksum
	}

	block, err := decompressBlock(Compression(trailer[0]), body)
	if err != nil {
		return nil, err
	}
	if r.opts.Cache != nil {
		r.opts.Cache.Set(key, block)
	}
	return block, nil
}

// Get looks up key (an internal key built for seeking, per
// base.MakeSearchKey) and returns the value and internal key of the first
// entry at or after it, restricted to the matching user key.
func (r *Reader) Get(key base.InternalKey) (base.InternalKey, []byte, error) {
	iter, err := newBlockIter(r.cmp, r.index)
	if err != nil {
		return base.InternalKey{}, nil, err
	}
	iter.SeekGE(key)
	if !iter.Valid() {
		return base.InternalKey{}, nil, base.ErrNotFound
	}
	bh, n := decodeBlockHandle(iter.Value())
	if n == 0 {
		return base.InternalKey{}, nil, errCorruptBlock
	}
	if r.filter != nil && !r.filter.mayContain(bh.offset, key.UserKey) {
		return base.InternalKey{}, nil, base.ErrNotFound
	}

	block, err := r.readBlock(bh)
	if err != nil {
		return base.InternalKey{}, nil, err
	}
	dataIter, err := newBlockIter(r.cmp, block)
	if err != nil {
		return base.InternalKey{}, nil, err
	}
	dataIter.SeekGE(key)
	if !dataIter.Valid() {
		return base.InternalKey{}, nil, base.ErrNotFound
	}
	if r.cmp(dataIter.Key().UserKey, key.UserKey) != 0 {
		return base.InternalKey{}, nil, base.ErrNotFound
	}
	return dataIter.Key(), dataIter.Value(), nil
}

// NewIter returns an iterator over the table's entries in internal-key
// order, used by merging iterators during reads and compaction.
func (r *Reader) NewIter() (*Iterator, error) {
	indexIter, err := newBlockIter(r.cmp, r.index)
	if err != nil {
		return nil, err
	}
	return &Iterator{r: r, indexIter: indexIter}, nil
}

// Iterator walks a table's entries block by block, loading each data block
// lazily as the index iterator advances past it.
type Iterator struct {
	r         *Reader
	indexIter *blockIter
	dataIter  *blockIter
	err       error
}

func (it *Iterator) loadData(forward bool) bool {
	if !it.indexIter.Valid() {
		it.dataIter = nil
		return false
	}
	bh, n := decodeBlockHandle(it.indexIter.Value())
	if n == 0 {
		it.err = errCorruptBlock
		return false
	}
	block, err := it.r.readBlock(bh)
	if err != nil {
		it.err = err
		return false
	}
	di, err := newBlockIter(it.r.cmp, block)
	if err != nil {
		it.err = err
		return false
	}
	it.dataIter = di
	if forward {
		di.First()
	} else {
		di.Last()
	}
	return di.Valid()
}

// First positions the iterator at the table's first entry.
func (it *Iterator) First() bool {
	it.indexIter.First()
	for {
		if it.loadData(true) {
			return true
		}
		if it.err != nil || !it.indexIter.Valid() {
			return false
		}
		if !it.indexIter.Next() {
			return false
		}
	}
}

// SeekGE positions the iterator at the first entry whose key is >= key.
func (it *Iterator) SeekGE(key base.InternalKey) bool {
	it.indexIter.SeekGE(key)
	for {
		if !it.loadData(true) {
			if it.err != nil || !it.indexIter.Valid() {
				return false
			}
			if !it.indexIter.Next() {
				return false
			}
			continue
		}
		it.dataIter.SeekGE(key)
		if it.dataIter.Valid() {
			return true
		}
		if !it.indexIter.Next() {
			return false
		}
	}
}

// Next advances the iterator. It reports whether a subsequent entry exists.
func (it *Iterator) Next() bool {
	if it.dataIter != nil && it.dataIter.Next() {
		return true
	}
	for it.indexIter.Next() {
		if it.loadData(true) {
			return true
		}
		if it.err != nil {
			return false
		}
	}
	return false
}

func (it *Iterator) Key() base.InternalKey { return it.dataIter.Key() }
func (it *Iterator) Value() []byte         { return it.dataIter.Value() }
func (it *Iterator) Valid() bool           { return it.dataIter != nil && it.dataIter.Valid() }
func (it *Iterator) Error() error          { return it.err }
func (it *Iterator) Close() error          { return nil }
