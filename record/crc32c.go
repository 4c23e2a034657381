// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import "hash/crc32"

// crc32cTable is the Castagnoli polynomial table used by every checksum in
// the on-disk format (chunk headers here, block trailers in sstable). The
// standard library's hash/crc32 already wraps the hardware-accelerated
// Castagnoli implementation on amd64/arm64, so there is no ecosystem
// package worth reaching for in its place.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// crc32cUpdate extends a running CRC32C checksum over b.
func crc32cUpdate(crc uint32, b []byte) uint32 {
	return crc32.Update(crc, crc32cTable, b)
}
