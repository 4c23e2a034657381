// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package base

import (
	"bytes"
	"encoding/binary"
)

// SeqNum is a 56-bit monotonically increasing write identifier. Zero is
// reserved to mean "no snapshot", i.e. "read the latest value".
type SeqNum uint64

// SeqNumMax is the largest representable sequence number: a lookup key
// built with this seq matches any write, however recent.
const SeqNumMax SeqNum = (1 << 56) - 1

// InternalKeyKind is the operation an internal key's trailer records.
type InternalKeyKind uint8

const (
	// InternalKeyKindDelete marks a user key as deleted (a tombstone).
	InternalKeyKindDelete InternalKeyKind = 0
	// InternalKeyKindSet records a value for a user key.
	InternalKeyKindSet InternalKeyKind = 1

	// InternalKeyKindMax is the largest defined kind, used as the kind of a
	// synthetic key built only for seeking: it sorts before every real
	// internal key sharing the same user key, since seeking wants to land
	// on the newest entry for that key regardless of kind.
	InternalKeyKindMax InternalKeyKind = 1

	// InternalKeyKindInvalid marks an internal key as carrying no value,
	// used as the zero value of InternalKey.
	InternalKeyKindInvalid InternalKeyKind = 255
)

func (k InternalKeyKind) String() string {
	switch k {
	case InternalKeyKindDelete:
		return "DEL"
	case InternalKeyKindSet:
		return "SET"
	case InternalKeyKindInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// InternalKeyTrailer packs a sequence number and a kind into a single
// 64-bit word: seq<<8 | kind.
type InternalKeyTrailer uint64

// MakeTrailer builds a trailer from a sequence number and kind.
func MakeTrailer(seq SeqNum, kind InternalKeyKind) InternalKeyTrailer {
	return InternalKeyTrailer(seq)<<8 | InternalKeyTrailer(kind)
}

// SeqNum extracts the sequence number from a trailer.
func (t InternalKeyTrailer) SeqNum() SeqNum { return SeqNum(t >> 8) }

// Kind extracts the kind from a trailer.
func (t InternalKeyTrailer) Kind() InternalKeyKind { return InternalKeyKind(t) }

// InternalKey is the unit of ordering and storage inside the engine: a user
// key plus a trailer recording the sequence number and kind of the write
// that produced it.
type InternalKey struct {
	UserKey []byte
	Trailer InternalKeyTrailer
}

// MakeInternalKey builds an InternalKey from its parts.
func MakeInternalKey(userKey []byte, seq SeqNum, kind InternalKeyKind) InternalKey {
	return InternalKey{UserKey: userKey, Trailer: MakeTrailer(seq, kind)}
}

// MakeSearchKey builds an internal key suitable for seeking: given a user
// key and a sequence number, it sorts just before any internal key for that
// exact user key with a sequence number <= seq, since the trailer's kind
// field is maxed out and ties on equal user key break on a larger trailer
// sorting first.
func MakeSearchKey(userKey []byte, seq SeqNum) InternalKey {
	return InternalKey{UserKey: userKey, Trailer: MakeTrailer(seq, InternalKeyKindMax)}
}

// SeqNum returns the key's sequence number.
func (k InternalKey) SeqNum() SeqNum { return k.Trailer.SeqNum() }

// Kind returns the key's kind.
func (k InternalKey) Kind() InternalKeyKind { return k.Trailer.Kind() }

// Valid reports whether k carries a defined kind.
func (k InternalKey) Valid() bool {
	return k.Kind() <= InternalKeyKindMax
}

// Clone returns a deep copy of k.
func (k InternalKey) Clone() InternalKey {
	if len(k.UserKey) == 0 {
		return InternalKey{Trailer: k.Trailer}
	}
	u := make([]byte, len(k.UserKey))
	copy(u, k.UserKey)
	return InternalKey{UserKey: u, Trailer: k.Trailer}
}

// EncodedLen returns the length of k's wire encoding.
func (k InternalKey) EncodedLen() int {
	return len(k.UserKey) + 8
}

// Encode writes k's wire encoding (user_key || fixed64(trailer)) to buf,
// which must be at least EncodedLen() bytes.
func (k InternalKey) Encode(buf []byte) {
	i := copy(buf, k.UserKey)
	binary.LittleEndian.PutUint64(buf[i:], uint64(k.Trailer))
}

// EncodeAppend appends k's wire encoding to dst and returns the result.
func (k InternalKey) EncodeAppend(dst []byte) []byte {
	dst = append(dst, k.UserKey...)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(k.Trailer))
	return append(dst, buf[:]...)
}

// DecodeInternalKey decodes the wire encoding produced by Encode. The
// returned key aliases b.
func DecodeInternalKey(b []byte) InternalKey {
	n := len(b) - 8
	if n < 0 {
		return InternalKey{Trailer: InternalKeyTrailer(InternalKeyKindInvalid)}
	}
	return InternalKey{
		UserKey: b[:n],
		Trailer: InternalKeyTrailer(binary.LittleEndian.Uint64(b[n:])),
	}
}

func (k InternalKey) String() string {
	return string(k.UserKey) + "#" + k.Kind().String()
}

// Compare is a total ordering over user keys.
type Compare func(a, b []byte) int

// DefaultCompare orders keys lexicographically by byte value, as bytes.Compare.
func DefaultCompare(a, b []byte) int { return bytes.Compare(a, b) }

// Comparer bundles the operations the engine needs over user keys: a total
// order, plus the two key-shortening operations table building uses to keep
// index and separator keys small.
type Comparer struct {
	// Name identifies the comparer; it is persisted in the manifest and
	// checked on reopen so a mismatched comparer is caught as Corruption
	// rather than silently reordering the database.
	Name string
	Compare Compare
	// Separator returns a key in [a, b) that is <= len(a) bytes, used when
	// building a table's index block.
	Separator func(dst, a, b []byte) []byte
	// Successor returns a key >= a that is as short as possible.
	Successor func(dst, a []byte) []byte
}

// DefaultComparer orders keys lexicographically.
var DefaultComparer = &Comparer{
	Name:    "leveldb.BytewiseComparator",
	Compare: DefaultCompare,
	Separator: func(dst, a, b []byte) []byte {
		if len(a) == 0 {
			return append(dst, a...)
		}
		n := SharedPrefixLen(a, b)
		if n < len(a) && n < len(b) && a[n] < 0xff && a[n]+1 < b[n] {
			short := append(append(dst, a[:n+1]...))
			short[len(short)-1]++
			return short
		}
		return append(dst, a...)
	},
	Successor: func(dst, a []byte) []byte {
		for i := 0; i < len(a); i++ {
			if c := a[i]; c != 0xff {
				dst = append(dst, a[:i+1]...)
				dst[len(dst)-1]++
				return dst
			}
		}
		return append(dst, a...)
	},
}

// SharedPrefixLen returns the length of the common prefix of a and b.
func SharedPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// InternalCompare orders internal keys: ascending by user key, then
// descending by trailer (so a larger trailer -- a higher sequence number,
// or the same sequence number with a kind that sorts first -- comes before
// a smaller one for equal user keys). This is spec.md section 4.1 exactly:
// for equal user keys, later writes (higher seq) come first.
func InternalCompare(userCmp Compare, a, b InternalKey) int {
	if c := userCmp(a.UserKey, b.UserKey); c != 0 {
		return c
	}
	if a.Trailer > b.Trailer {
		return -1
	}
	if a.Trailer < b.Trailer {
		return +1
	}
	return 0
}
