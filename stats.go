// Copyright 2013 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import "github.com/FrankFSM/ldb/base"

// LevelMetrics summarizes one level's on-disk state.
type LevelMetrics struct {
	NumFiles int
	Size     uint64
}

// Metrics is a point-in-time snapshot of a database's on-disk state,
// supplementing the Prometheus counters in Options.Metrics with the kind of
// structured summary a CLI or admin endpoint wants to print directly.
type Metrics struct {
	Levels [numLevels]LevelMetrics
}

// Metrics returns a snapshot of the current version's per-level file counts
// and sizes.
func (d *DB) Metrics() Metrics {
	d.mu.Lock()
	defer d.mu.Unlock()

	var m Metrics
	cur := d.versions.currentVersion()
	for level := 0; level < numLevels; level++ {
		m.Levels[level] = LevelMetrics{
			NumFiles: len(cur.files[level]),
			Size:     totalSize(cur.files[level]),
		}
	}
	return m
}

// TableInfo describes one on-disk table file as recorded in the current
// version, enough for a manifest-dump tool to print without reaching into
// package internals.
type TableInfo struct {
	Level    int
	FileNum  uint64
	Size     uint64
	Smallest []byte
	Largest  []byte
}

// Tables returns every table file in the current version, per level then
// by file number.
func (d *DB) Tables() []TableInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.versions.currentVersion()
	var out []TableInfo
	for level := 0; level < numLevels; level++ {
		for _, f := range cur.files[level] {
			out = append(out, TableInfo{
				Level:    level,
				FileNum:  f.fileNum,
				Size:     f.size,
				Smallest: append([]byte(nil), f.smallest.UserKey...),
				Largest:  append([]byte(nil), f.largest.UserKey...),
			})
		}
	}
	return out
}

// GetApproximateSizes returns, for each consecutive pair of keys in the
// supplied list, the approximate number of bytes of on-disk table data
// whose keys fall within [ranges[i], ranges[i+1]), across every level.
// Because it only examines file-level smallest/largest bounds rather than
// decoding any block, the estimate can overshoot when a key range covers
// only part of a file.
func (d *DB) GetApproximateSizes(ranges [][]byte) ([]uint64, error) {
	if len(ranges) < 2 {
		return nil, nil
	}
	d.mu.Lock()
	cur := d.versions.currentVersion()
	ucmp := d.cmp
	d.mu.Unlock()

	sizes := make([]uint64, len(ranges)-1)
	for i := 0; i+1 < len(ranges); i++ {
		start, end := ranges[i], ranges[i+1]
		for level := 0; level < numLevels; level++ {
			for _, f := range filesOverlapping(cur.files[level], ucmp, start, end) {
				sizes[i] += f.size
			}
		}
	}
	return sizes, nil
}

// filesOverlapping returns every file in files whose user-key range
// intersects [begin, end]; a nil begin or end is unbounded on that side.
// Unlike version.overlaps, it never expands the range to chase level-0's
// own internal overlaps, since manual/admin callers pass an already
// concrete range.
func filesOverlapping(files []fileMetadata, ucmp base.Compare, begin, end []byte) []fileMetadata {
	var ret []fileMetadata
	for _, f := range files {
		if begin != nil && ucmp(f.largest.UserKey, begin) < 0 {
			continue
		}
		if end != nil && ucmp(f.smallest.UserKey, end) > 0 {
			continue
		}
		ret = append(ret, f)
	}
	return ret
}

// CompactRange forces manual compactions of every table overlapping
// [begin, end], one level at a time, until no level above the last still
// holds such a table, per spec section 4.8's compaction
// scheduling (normally score-driven, but exposed here for repair/admin
// tooling and tests that need a deterministic level shape). A nil begin or
// end means "from the first/to the last key".
func (d *DB) CompactRange(begin, end []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		if d.closed {
			return errorf(KindInvalidArgument, "ldb: database closed")
		}
		for d.compacting {
			d.compactionCond.Wait()
		}

		level, inputs, ok := d.pickManualCompaction(begin, end)
		if !ok {
			return nil
		}
		c := &compaction{version: d.versions.currentVersion(), level: level}
		c.inputs[0] = inputs
		c.setupOtherInputs(&d.versions)

		d.compacting = true
		err := d.runCompaction(c)
		d.compacting = false
		d.compactionCond.Broadcast()
		if err != nil {
			return err
		}
	}
}

// pickManualCompaction finds the lowest level with a file overlapping
// [begin, end], so CompactRange's loop drains the range all the way down
// the level hierarchy one level at a time.
func (d *DB) pickManualCompaction(begin, end []byte) (level int, inputs []fileMetadata, ok bool) {
	cur := d.versions.currentVersion()
	for level := 0; level < numLevels-1; level++ {
		if f := filesOverlapping(cur.files[level], d.cmp, begin, end); len(f) > 0 {
			return level, f, true
		}
	}
	return 0, nil, false
}
