// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sstable

import (
	"hash/crc32"
	"io"

	"github.com/FrankFSM/ldb/base"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// WriterOptions configures how a table is built. The zero value is usable
// and matches spec section 6's defaults.
type WriterOptions struct {
	BlockSize       int
	RestartInterval int
	Compression     Compression
	FilterPolicy    FilterPolicy
	Comparer        *base.Comparer
}

func (o WriterOptions) withDefaults() WriterOptions {
	if o.BlockSize <= 0 {
		o.BlockSize = 4096
	}
	if o.RestartInterval <= 0 {
		o.RestartInterval = 16
	}
	if o.Comparer == nil {
		o.Comparer = base.DefaultComparer
	}
	return o
}

// Writer builds a table file, per spec section 4.4: entries must be added
// in strictly increasing internal-key order. Callers pick a memtable or
// merging iterator as the source of that order.
type Writer struct {
	w    io.Writer
	opts WriterOptions
	cmp  base.Compare

	dataBlock  *blockWriter
	indexBlock *blockWriter
	filter     *filterWriter

	offset uint64
	err    error

	// havePendingBH and pendingBH hold the most recently flushed data block's
	// handle, deferred until the next Add (or Finish) supplies the key
	// needed to compute a short separator for the index entry.
	havePendingBH bool
	pendingBH     blockHandle
	lastKey       []byte

	smallest, largest base.InternalKey
	haveSmallest      bool
	numEntries        int
	tmp               []byte
}

// NewWriter returns a Writer that writes a table to w.
func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	opts = opts.withDefaults()
	tw := &Writer{
		w:          w,
		opts:       opts,
		cmp:        opts.Comparer.Compare,
		dataBlock:  newBlockWriter(opts.RestartInterval),
		indexBlock: newBlockWriter(1),
		filter:     newFilterWriter(opts.FilterPolicy),
	}
	tw.filter.startBlock(0)
	return tw
}

// Add appends a new entry. Keys must be added in increasing base.InternalCompare order.
func (w *Writer) Add(key base.InternalKey, value []byte) error {
	if w.err != nil {
		return w.err
	}
	if w.havePendingBH {
		w.flushIndexEntry(key.UserKey)
	}

	w.dataBlock.add(key, value)
	w.filter.addKey(key.UserKey)
	w.numEntries++

	if !w.haveSmallest {
		w.smallest = key.Clone()
		w.haveSmallest = true
	}
	w.largest = key.Clone()

	size := key.EncodedLen()
	if cap(w.lastKey) < size {
		w.lastKey = make([]byte, size)
	}
	w.lastKey = w.lastKey[:size]
	key.Encode(w.lastKey)

	if w.dataBlock.estimatedSize() >= w.opts.BlockSize {
		w.finishDataBlock()
	}
	return w.err
}

// flushIndexEntry adds an index entry for the most recently flushed data
// block, using the shortest separator between its last key and the next
// block's first key so index blocks stay small.
func (w *Writer) flushIndexEntry(nextUserKey []byte) {
	last := base.DecodeInternalKey(w.lastKey)
	sep := w.opts.Comparer.Separator(nil, last.UserKey, nextUserKey)
	n := blockHandleMaxLen
	buf := make([]byte, n)
	m := w.pendingBH.encode(buf)
	w.indexBlock.add(base.MakeInternalKey(sep, last.SeqNum(), last.Kind()), buf[:m])
	w.havePendingBH = false
}

func (w *Writer) finishDataBlock() {
	if w.err != nil {
		return
	}
	blockStart := w.offset
	body := w.dataBlock.finish()
	if err := w.writeBlock(body); err != nil {
		w.err = err
		return
	}
	w.pendingBH = blockHandle{offset: blockStart, length: w.offset - blockStart}
	w.havePendingBH = true

	w.dataBlock.reset()
	w.filter.finishBlock()
	w.filter.startBlock(w.offset)
}

// writeBlock compresses body, appends the trailer, writes it to the
// underlying writer, and advances w.offset.
func (w *Writer) writeBlock(body []byte) error {
	compressed, err := compressBlock(w.opts.Compression, body)
	if err != nil {
		return err
	}
	trailer := make([]byte, blockTrailerLen)
	trailer[0] = byte(w.opts.Compression)
	checksum := crc32.Update(0, crc32cTable, compressed)
	checksum = crc32.Update(checksum, crc32cTable, trailer[:1])
	putFixed32(trailer[1:], checksum)

	if _, err := w.w.Write(compressed); err != nil {
		return base.WrapIOError(err, "sstable: write block")
	}
	if _, err := w.w.Write(trailer); err != nil {
		return base.WrapIOError(err, "sstable: write block trailer")
	}
	w.offset += uint64(len(compressed)) + uint64(len(trailer))
	return nil
}

func putFixed32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// blockHandleMaxLen bounds the encoded size of a blockHandle (two uvarint64
// values).
const blockHandleMaxLen = 20

// writeRawBlock writes an already-finished (uncompressed) block body with no
// trailer checksum validation dependency on dataBlock/indexBlock state, used
// for the filter, meta-index, and index blocks which are each finished only
// once.
func (w *Writer) writeRawBlock(body []byte) (blockHandle, error) {
	start := w.offset
	if err := w.writeBlock(body); err != nil {
		return blockHandle{}, err
	}
	return blockHandle{offset: start, length: w.offset - start}, nil
}

// Finish flushes any buffered data, writes the filter, meta-index, and index
// blocks, and writes the footer.
func (w *Writer) Finish() error {
	if w.err != nil {
		return w.err
	}
	if w.dataBlock.nEntries > 0 {
		w.finishDataBlock()
	}
	if w.havePendingBH {
		sep := w.opts.Comparer.Successor(nil, base.DecodeInternalKey(w.lastKey).UserKey)
		buf := make([]byte, blockHandleMaxLen)
		m := w.pendingBH.encode(buf)
		last := base.DecodeInternalKey(w.lastKey)
		w.indexBlock.add(base.MakeInternalKey(sep, last.SeqNum(), last.Kind()), buf[:m])
		w.havePendingBH = false
	}

	metaindex := newBlockWriter(1)
	if w.opts.FilterPolicy != nil {
		filterBlock := w.filter.finish()
		fh, err := w.writeRawBlock(filterBlock)
		if err != nil {
			w.err = err
			return err
		}
		buf := make([]byte, blockHandleMaxLen)
		n := fh.encode(buf)
		metaindex.add(base.MakeInternalKey([]byte("filter."+w.opts.FilterPolicy.Name()), 0, base.InternalKeyKindSet), buf[:n])
	}
	metaindexBody := metaindex.finish()
	metaindexHandle, err := w.writeRawBlock(metaindexBody)
	if err != nil {
		w.err = err
		return err
	}

	indexBody := w.indexBlock.finish()
	indexHandle, err := w.writeRawBlock(indexBody)
	if err != nil {
		w.err = err
		return err
	}

	ft := footer{metaindex: metaindexHandle, index: indexHandle}
	if _, err := w.w.Write(ft.encode()); err != nil {
		w.err = base.WrapIOError(err, "sstable: write footer")
		return w.err
	}
	// Unlike this package's closest analogue in the teacher repo, Finish does
	// not close w.w: the caller created it and still needs to Sync and Stat
	// it afterwards, so closing here would force a needless reopen.
	w.err = errWriterClosed
	return nil
}

var errWriterClosed = base.Errorf(base.KindInvalidArgument, "sstable: writer closed")

// EstimatedSize returns the table's current on-disk size estimate,
// including data already flushed and the data block still being built.
func (w *Writer) EstimatedSize() uint64 {
	return w.offset + uint64(w.dataBlock.estimatedSize())
}

// Smallest and Largest return the smallest and largest internal keys added
// so far, valid once at least one entry has been added.
func (w *Writer) Smallest() base.InternalKey { return w.smallest }
func (w *Writer) Largest() base.InternalKey  { return w.largest }
func (w *Writer) NumEntries() int            { return w.numEntries }
