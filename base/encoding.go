// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package base

import "encoding/binary"

func encodeFixed32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func decodeFixed32(src []byte) uint32    { return binary.LittleEndian.Uint32(src) }

func encodeFixed64(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func decodeFixed64(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }

// putUvarint32 appends v as a varint and returns the extended slice.
func putUvarint32(dst []byte, v uint32) []byte {
	var buf [5]byte
	n := binary.PutUvarint(buf[:], uint64(v))
	return append(dst, buf[:n]...)
}

func putUvarint64(dst []byte, v uint64) []byte {
	var buf [10]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// putLengthPrefixedBytes appends a varint32 length followed by b.
func putLengthPrefixedBytes(dst, b []byte) []byte {
	dst = putUvarint32(dst, uint32(len(b)))
	return append(dst, b...)
}

// getLengthPrefixedBytes decodes a length-prefixed slice from the front of
// src, returning the slice (aliasing src) and the remainder.
func getLengthPrefixedBytes(src []byte) (b, rest []byte, ok bool) {
	v, n := binary.Uvarint(src)
	if n <= 0 || uint64(n)+v > uint64(len(src)) {
		return nil, src, false
	}
	return src[n : n+int(v)], src[n+int(v):], true
}
