// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/FrankFSM/ldb/base"
)

// fileMetadata holds the metadata for an on-disk table, per spec section 3's
// Table-file row.
type fileMetadata struct {
	fileNum           uint64
	size              uint64
	smallest, largest base.InternalKey

	// allowedSeeks is the number of misses this file may absorb during a
	// multi-file Get before it is nominated for a seek-triggered
	// compaction, per spec section 4.9. It is mutated in place by
	// recordReadSample via a pointer into the owning version's files
	// slice, even though versions are otherwise treated as immutable.
	allowedSeeks int32
}

// seeksAllowed returns the number of misses a newly-written table of size
// bytes may absorb: one seek per 16KiB, at least 100, mirroring the
// original compaction-triggering heuristic referenced in spec section 4.9.
func seeksAllowed(size uint64) int32 {
	n := int32(size / (16 * 1024))
	if n < 100 {
		n = 100
	}
	return n
}

func totalSize(f []fileMetadata) (size uint64) {
	for _, x := range f {
		size += x.size
	}
	return size
}

// ikeyRange returns the minimum smallest and maximum largest internal key
// spanned by f0 and f1 together.
func ikeyRange(ucmp base.Compare, f0, f1 []fileMetadata) (smallest, largest base.InternalKey) {
	first := true
	for _, f := range [2][]fileMetadata{f0, f1} {
		for _, meta := range f {
			if first {
				first = false
				smallest, largest = meta.smallest, meta.largest
				continue
			}
			if base.InternalCompare(ucmp, meta.smallest, smallest) < 0 {
				smallest = meta.smallest
			}
			if base.InternalCompare(ucmp, meta.largest, largest) > 0 {
				largest = meta.largest
			}
		}
	}
	return smallest, largest
}

type byFileNum []fileMetadata

func (b byFileNum) Len() int           { return len(b) }
func (b byFileNum) Less(i, j int) bool { return b[i].fileNum < b[j].fileNum }
func (b byFileNum) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

type bySmallest struct {
	dat []fileMetadata
	cmp base.Compare
}

func (b bySmallest) Len() int { return len(b.dat) }
func (b bySmallest) Less(i, j int) bool {
	return base.InternalCompare(b.cmp, b.dat[i].smallest, b.dat[j].smallest) < 0
}
func (b bySmallest) Swap(i, j int) { b.dat[i], b.dat[j] = b.dat[j], b.dat[i] }

const numLevels = 7

// l0CompactionTrigger is the number of level-0 files that triggers a
// compaction, per spec section 4.8.
const l0CompactionTrigger = 4

// version is a collection of file metadata for on-disk tables at various
// levels, per spec section 3/4.6. Tables at level 0 are sorted by increasing
// fileNum (equivalently, increasing sequence-number range) and may overlap
// in user key range. Tables at any level >= 1 are sorted by key range and do
// not overlap with each other at that level.
type version struct {
	files [numLevels][]fileMetadata
	// Every version is part of a circular doubly-linked list of versions
	// rooted at the versionSet's dummyVersion, so live versions can be
	// enumerated when deciding which files are still referenced.
	prev, next *version
	refs       int

	compactionScore float64
	compactionLevel int

	// fileToCompact and fileToCompactLevel record the seek-triggered
	// compaction hint: the first file nominated by recordReadSample once
	// its allowedSeeks budget is exhausted, per spec section 4.9.
	fileToCompact      *fileMetadata
	fileToCompactLevel int
}

func (v *version) updateCompactionScore() {
	// Level 0 is scored by file count rather than bytes: a low
	// write_buffer_size or highly compressible data can produce many small
	// L0 files well before their combined size would otherwise trigger a
	// compaction, and L0 files are all consulted on every read.
	v.compactionScore = float64(len(v.files[0])) / l0CompactionTrigger
	v.compactionLevel = 0

	maxBytes := float64(10 * 1024 * 1024)
	for level := 1; level < numLevels-1; level++ {
		score := float64(totalSize(v.files[level])) / maxBytes
		if score > v.compactionScore {
			v.compactionScore = score
			v.compactionLevel = level
		}
		maxBytes *= 10
	}
}

// overlaps returns every file at level whose user-key range intersects
// [ukey0, ukey1]. For level 0, the range is expanded to the union of
// matches found so far and the search restarts, since level-0 ranges may
// themselves overlap.
func (v *version) overlaps(level int, ucmp base.Compare, ukey0, ukey1 []byte) (ret []fileMetadata) {
	for {
		ret = ret[:0]
		restarted := false
		for _, meta := range v.files[level] {
			m0 := meta.smallest.UserKey
			m1 := meta.largest.UserKey
			if ucmp(m1, ukey0) < 0 {
				continue
			}
			if ucmp(m0, ukey1) > 0 {
				continue
			}
			ret = append(ret, meta)
			if level != 0 {
				continue
			}
			if ucmp(m0, ukey0) < 0 {
				ukey0 = m0
				restarted = true
			}
			if ucmp(m1, ukey1) > 0 {
				ukey1 = m1
				restarted = true
			}
		}
		if !restarted {
			return ret
		}
	}
}

// checkOrdering verifies the invariants documented on version: increasing
// fileNum at level 0, increasing non-overlapping key ranges elsewhere.
func (v *version) checkOrdering(ucmp base.Compare) error {
	for level, ff := range v.files {
		if level == 0 {
			prevFileNum := uint64(0)
			for i, f := range ff {
				if i != 0 && prevFileNum >= f.fileNum {
					return fmt.Errorf("ldb: level 0 files are not in increasing fileNum order: %d, %d", prevFileNum, f.fileNum)
				}
				prevFileNum = f.fileNum
			}
		} else {
			var prevLargest base.InternalKey
			for i, f := range ff {
				if i != 0 && base.InternalCompare(ucmp, prevLargest, f.smallest) >= 0 {
					return fmt.Errorf("ldb: level non-0 files are not in increasing key order: %q, %q", prevLargest.UserKey, f.smallest.UserKey)
				}
				if base.InternalCompare(ucmp, f.smallest, f.largest) > 0 {
					return fmt.Errorf("ldb: level non-0 file has inconsistent bounds: %q, %q", f.smallest.UserKey, f.largest.UserKey)
				}
				prevLargest = f.largest
			}
		}
	}
	return nil
}

// tableFinder looks up a key within a specific table file, consulting the
// table cache so repeated lookups against the same file reuse an open
// reader and its block cache, per spec section 6's table-cache contract.
type tableFinder interface {
	get(fileNum uint64, key base.InternalKey) (value []byte, ikey base.InternalKey, found bool, err error)
}

// getStats reports the seek-accounting outcome of a version.get call: the
// first file consulted, if a second file then had to be consulted too,
// per spec section 4.9. seekFile is nil when the key was resolved (or
// conclusively absent) without reading more than one file.
type getStats struct {
	seekFile      *fileMetadata
	seekFileLevel int
}

// get looks up ikey's user key across v's tables, newest data first: level 0
// in decreasing fileNum order (equivalently decreasing recency), then levels
// 1..N in ascending order using each level's non-overlapping key ranges to
// binary search for the one file that could hold the key.
func (v *version) get(ikey base.InternalKey, tf tableFinder, ucmp base.Compare) ([]byte, getStats, error) {
	ukey := ikey.UserKey

	var stats getStats
	var lastFileRead *fileMetadata
	lastFileReadLevel := -1

	chargeSeek := func(f *fileMetadata, level int) {
		if lastFileRead != nil && stats.seekFile == nil {
			stats.seekFile = lastFileRead
			stats.seekFileLevel = lastFileReadLevel
		}
		lastFileRead = f
		lastFileReadLevel = level
	}

	for i := len(v.files[0]) - 1; i >= 0; i-- {
		f := &v.files[0][i]
		if ucmp(ukey, f.smallest.UserKey) < 0 {
			continue
		}
		if base.InternalCompare(ucmp, ikey, f.largest) > 0 {
			continue
		}
		chargeSeek(f, 0)
		value, found, conclusive, err := tableGet(tf, f.fileNum, ikey, ucmp, ukey)
		if conclusive {
			return value, stats, firstErr(err, boolErr(found))
		}
	}

	for level := 1; level < len(v.files); level++ {
		ff := v.files[level]
		n := len(ff)
		if n == 0 {
			continue
		}
		index := sort.Search(n, func(i int) bool {
			return base.InternalCompare(ucmp, ff[i].largest, ikey) >= 0
		})
		if index == n {
			continue
		}
		f := &ff[index]
		if ucmp(ukey, f.smallest.UserKey) < 0 {
			continue
		}
		chargeSeek(f, level)
		value, found, conclusive, err := tableGet(tf, f.fileNum, ikey, ucmp, ukey)
		if conclusive {
			return value, stats, firstErr(err, boolErr(found))
		}
	}
	return nil, stats, base.ErrNotFound
}

// recordReadSample charges stats' seek file, if any, one fewer allowed seek
// and, once that file's budget is exhausted, nominates it for a
// seek-triggered compaction unless one is already pending. It reports
// whether a new compaction should be scheduled as a result, per spec
// section 4.9.
func (v *version) recordReadSample(stats getStats) bool {
	f := stats.seekFile
	if f == nil {
		return false
	}
	if atomic.AddInt32(&f.allowedSeeks, -1) > 0 {
		return false
	}
	if v.fileToCompact != nil {
		return false
	}
	v.fileToCompact = f
	v.fileToCompactLevel = stats.seekFileLevel
	return true
}

// tableGet consults one table file and classifies the result: conclusive is
// true once a same-user-key entry (Set or Delete) is found, or the table
// lookup itself failed, since either case ends the search across levels.
func tableGet(tf tableFinder, fileNum uint64, ikey base.InternalKey, ucmp base.Compare, ukey []byte) (value []byte, found, conclusive bool, err error) {
	value, foundKey, ok, err := tf.get(fileNum, ikey)
	if err != nil && !base.IsNotFound(err) {
		return nil, false, true, fmt.Errorf("ldb: could not read table %d: %v", fileNum, err)
	}
	if !ok {
		return nil, false, false, nil
	}
	if ucmp(foundKey.UserKey, ukey) != 0 {
		return nil, false, false, nil
	}
	if foundKey.Kind() == base.InternalKeyKindDelete {
		return nil, false, true, nil
	}
	return value, true, true, nil
}

func firstErr(err error, boolErr error) error {
	if err != nil {
		return err
	}
	return boolErr
}

func boolErr(found bool) error {
	if found {
		return nil
	}
	return base.ErrNotFound
}
