// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sstable implements the immutable, sorted on-disk table format
// described in spec section 4.4: data blocks with restart-point prefix
// compression, an optional filter block, a meta-index block, an index
// block, and a fixed-length footer carrying a magic number.
package sstable

import (
	"encoding/binary"

	"github.com/FrankFSM/ldb/base"
)

// tableMagic is the 8-byte magic written at the end of every table file.
const tableMagic uint64 = 0xdb4775248b80fb57

// footerLen is the fixed length of the trailing footer.
const footerLen = 48

// Compression identifies the codec used for a block's payload.
type Compression uint8

const (
	NoCompression     Compression = 0
	SnappyCompression Compression = 1
	ZstdCompression   Compression = 2
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	case ZstdCompression:
		return "zstd"
	default:
		return "unknown"
	}
}

var (
	errCorruptBlock  = base.Errorf(base.KindCorruption, "sstable: corrupt block")
	errBadMagic      = base.Errorf(base.KindCorruption, "sstable: invalid table (bad magic number)")
	errBadChecksum   = base.Errorf(base.KindCorruption, "sstable: invalid table (checksum mismatch)")
	errUnknownCompr  = base.Errorf(base.KindCorruption, "sstable: invalid table (unknown block compression)")
)

// blockHandle locates a block within a table file.
type blockHandle struct {
	offset, length uint64
}

func (h blockHandle) encode(dst []byte) int {
	n := binary.PutUvarint(dst, h.offset)
	n += binary.PutUvarint(dst[n:], h.length)
	return n
}

func decodeBlockHandle(src []byte) (blockHandle, int) {
	offset, n := binary.Uvarint(src)
	length, m := binary.Uvarint(src[n:])
	if n == 0 || m == 0 {
		return blockHandle{}, 0
	}
	return blockHandle{offset, length}, n + m
}

// footer is the fixed-length trailer of a table file.
type footer struct {
	metaindex blockHandle
	index     blockHandle
}

func (f footer) encode() []byte {
	buf := make([]byte, footerLen)
	n := f.metaindex.encode(buf)
	n += f.index.encode(buf[n:])
	binary.LittleEndian.PutUint64(buf[footerLen-8:], tableMagic)
	return buf
}

func decodeFooter(buf []byte) (footer, error) {
	if len(buf) != footerLen {
		return footer{}, errBadMagic
	}
	if binary.LittleEndian.Uint64(buf[footerLen-8:]) != tableMagic {
		return footer{}, errBadMagic
	}
	var f footer
	n := 0
	var m int
	f.metaindex, m = decodeBlockHandle(buf[n:])
	if m == 0 {
		return footer{}, errBadMagic
	}
	n += m
	f.index, m = decodeBlockHandle(buf[n:])
	if m == 0 {
		return footer{}, errBadMagic
	}
	return f, nil
}

// blockTrailerLen is the length of the per-block trailer written after the
// block's (possibly compressed) body: a 1-byte compression type and a
// 4-byte CRC32C over body+compression-type.
const blockTrailerLen = 5
