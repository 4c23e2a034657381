// Copyright 2013 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"github.com/FrankFSM/ldb/base"
	"github.com/FrankFSM/ldb/sstable"
	"github.com/FrankFSM/ldb/vfs"
)

const (
	targetFileSize = 2 * 1024 * 1024

	// expandedCompactionByteSizeLimit is the maximum number of bytes in all
	// compacted files. We avoid expanding the lower level file set of a
	// compaction if it would make the total compaction cover more than this
	// many bytes.
	expandedCompactionByteSizeLimit = 25 * targetFileSize
)

// compaction is a table compaction from one level to the next, starting
// from a given version, per spec section 4.8.
type compaction struct {
	version *version

	// level is the level being compacted. Inputs from level and level+1 are
	// merged to produce a set of level+1 files.
	level int

	// inputs are the tables to be compacted: [0] from level, [1] from
	// level+1 (the files actually merged), [2] from level+2 (the grandparent
	// overlap, consulted only by isTrivialMove).
	inputs [3][]fileMetadata
}

// pickCompaction picks the best compaction, if any, for vs' current version.
// A size-based compaction (some level's compactionScore >= 1) takes
// priority; absent one, a pending seek-triggered hint (fileToCompact, set
// by recordReadSample) is used instead, per spec section 4.9.
func pickCompaction(vs *versionSet) (c *compaction) {
	cur := vs.currentVersion()

	sizeCompaction := cur.compactionScore >= 1
	seekCompaction := cur.fileToCompact != nil
	if !sizeCompaction && !seekCompaction {
		return nil
	}

	c = &compaction{version: cur}
	if sizeCompaction {
		c.level = cur.compactionLevel
		// TODO: pick the first file that comes after the compaction
		// pointer for c.level, rather than always starting from files[0].
		c.inputs[0] = []fileMetadata{cur.files[c.level][0]}
	} else {
		c.level = cur.fileToCompactLevel
		c.inputs[0] = []fileMetadata{*cur.fileToCompact}
	}

	// Files in level 0 may overlap each other, so pick up all overlapping
	// ones.
	if c.level == 0 {
		smallest, largest := ikeyRange(vs.ucmp, c.inputs[0], nil)
		c.inputs[0] = cur.overlaps(0, vs.ucmp, smallest.UserKey, largest.UserKey)
		if len(c.inputs[0]) == 0 {
			panic("ldb: empty compaction")
		}
	}

	c.setupOtherInputs(vs)
	return c
}

// setupOtherInputs fills in the rest of the compaction inputs.
func (c *compaction) setupOtherInputs(vs *versionSet) {
	smallest0, largest0 := ikeyRange(vs.ucmp, c.inputs[0], nil)
	c.inputs[1] = c.version.overlaps(c.level+1, vs.ucmp, smallest0.UserKey, largest0.UserKey)
	smallest01, largest01 := ikeyRange(vs.ucmp, c.inputs[0], c.inputs[1])

	if c.grow(vs, smallest01, largest01) {
		smallest01, largest01 = ikeyRange(vs.ucmp, c.inputs[0], c.inputs[1])
	}

	if c.level+2 < numLevels {
		c.inputs[2] = c.version.overlaps(c.level+2, vs.ucmp, smallest01.UserKey, largest01.UserKey)
	}

	// TODO: update the compaction pointer for c.level.
}

// grow grows the number of inputs at c.level without changing the number of
// c.level+1 files in the compaction, and returns whether the inputs grew.
func (c *compaction) grow(vs *versionSet, sm, la base.InternalKey) bool {
	if len(c.inputs[1]) == 0 {
		return false
	}
	grow0 := c.version.overlaps(c.level, vs.ucmp, sm.UserKey, la.UserKey)
	if len(grow0) <= len(c.inputs[0]) {
		return false
	}
	if totalSize(grow0)+totalSize(c.inputs[1]) >= expandedCompactionByteSizeLimit {
		return false
	}
	sm1, la1 := ikeyRange(vs.ucmp, grow0, nil)
	grow1 := c.version.overlaps(c.level+1, vs.ucmp, sm1.UserKey, la1.UserKey)
	if len(grow1) != len(c.inputs[1]) {
		return false
	}
	c.inputs[0] = grow0
	c.inputs[1] = grow1
	return true
}

// isBaseLevelForUkey reports whether it is guaranteed that there is no
// key/value pair at c.level+2 or higher with the user key ukey -- and so a
// Delete tombstone for ukey found during this compaction has nothing left
// to shadow and can be dropped outright.
func (c *compaction) isBaseLevelForUkey(ucmp base.Compare, ukey []byte) bool {
	for level := c.level + 2; level < numLevels; level++ {
		for _, f := range c.version.files[level] {
			if ucmp(ukey, f.largest.UserKey) <= 0 {
				if ucmp(ukey, f.smallest.UserKey) >= 0 {
					return false
				}
				break
			}
		}
	}
	return true
}

// closingIter pairs an internalIterator with the cache-release function
// that must run when the iterator is done with its underlying table.
type closingIter struct {
	internalIterator
	closeFn func()
}

func (c *closingIter) Close() error {
	err := c.internalIterator.Close()
	c.closeFn()
	return err
}

// tableCacheNewIter adapts (*tableCache).newIter to the function shape
// levelIter and runCompaction expect: *sstable.Iterator already satisfies
// internalIterator, but Go does not implicitly convert a concrete return
// type to an interface return type across a func value assignment.
func (d *DB) tableCacheNewIter(fileNum uint64) (internalIterator, func(), error) {
	it, closeFn, err := d.tableCache.newIter(fileNum)
	if err != nil {
		return nil, func() {}, err
	}
	return it, closeFn, nil
}

// maybeScheduleCompaction starts a background compaction if one is not
// already running and one is needed, per spec section 4.8.
//
// d.mu must be held when calling this.
func (d *DB) maybeScheduleCompaction() {
	if d.compacting || d.closed {
		return
	}
	if d.imm == nil && pickCompaction(&d.versions) == nil {
		return
	}
	d.compacting = true
	d.bg.Go(func() error {
		d.backgroundCompaction()
		return nil
	})
}

// backgroundCompaction runs memtable flushes and disk compactions until
// there is no more work to do or the database is closing.
func (d *DB) backgroundCompaction() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		if d.closed {
			d.compacting = false
			d.compactionCond.Broadcast()
			return
		}
		var err error
		switch {
		case d.imm != nil:
			err = d.compactMemTable()
		default:
			c := pickCompaction(&d.versions)
			if c == nil {
				d.compacting = false
				d.compactionCond.Broadcast()
				return
			}
			err = d.runCompaction(c)
		}
		if err != nil {
			d.opts.Logger.Errorf("ldb: background compaction failed: %v", err)
			d.compacting = false
			d.compactionCond.Broadcast()
			return
		}
	}
}

// compactMemTable flushes the immutable memtable to a level-0 table, per
// spec section 4.3's MinorCompaction.
//
// d.mu must be held when calling this; it is dropped and reacquired around
// the I/O, as writeLevel0Table does.
func (d *DB) compactMemTable() error {
	imm := d.imm
	meta, err := d.writeLevel0Table(d.opts.FileSystem, imm)
	if err != nil {
		return err
	}
	ve := versionEdit{newFiles: []newFileEntry{{level: 0, meta: meta}}}
	if err := d.versions.logAndApply(d.dirname, &ve); err != nil {
		return err
	}
	delete(d.pendingOutputs, meta.fileNum)
	d.imm = nil
	d.deleteObsoleteFiles()
	d.compactionCond.Broadcast()
	d.opts.Metrics.FlushesTotal.Inc()
	d.opts.Metrics.CompactionBytesWritten.Add(float64(meta.size))
	return nil
}

// isTrivialMove reports whether c can be carried out as a metadata-only
// move of its single level-L input straight to level L+1, per spec section
// 4.11's boundary behavior: exactly one level-L file, no level-(L+1) file it
// overlaps, and a grandparent overlap cheap enough that the file won't need
// to be rewritten again by the next compaction soon after.
func (c *compaction) isTrivialMove() bool {
	return len(c.inputs[0]) == 1 && len(c.inputs[1]) == 0 &&
		totalSize(c.inputs[2]) <= expandedCompactionByteSizeLimit
}

// runCompaction merges a compaction's level and level+1 inputs and installs
// the resulting level+1 files, per spec section 4.8.
//
// TODO: drop d.mu during the merge/write phase, as writeLevel0Table does;
// holding it for the whole compaction blocks reads longer than necessary.
func (d *DB) runCompaction(c *compaction) error {
	ucmp := d.cmp

	d.opts.Metrics.CompactionsTotal.Inc()
	d.opts.Metrics.CompactionsActive.Inc()
	defer d.opts.Metrics.CompactionsActive.Dec()

	if c.isTrivialMove() {
		f := c.inputs[0][0]
		ve := versionEdit{
			deletedFiles: map[deletedFileEntry]bool{
				{c.level, f.fileNum}: true,
			},
			newFiles: []newFileEntry{{level: c.level + 1, meta: f}},
		}
		if err := d.versions.logAndApply(d.dirname, &ve); err != nil {
			return err
		}
		d.deleteObsoleteFiles()
		return nil
	}

	d.opts.Metrics.CompactionBytesRead.Add(float64(totalSize(c.inputs[0]) + totalSize(c.inputs[1])))

	smallestSnapshot := d.snapshots.minSeqNum(d.versions.lastSequence)

	var iters []internalIterator
	for _, f := range c.inputs[0] {
		it, closeFn, err := d.tableCache.newIter(f.fileNum)
		if err != nil {
			return err
		}
		iters = append(iters, &closingIter{it, closeFn})
	}
	if len(c.inputs[1]) > 0 {
		iters = append(iters, newLevelIter(ucmp, c.inputs[1], d.tableCacheNewIter))
	}
	mi := newMergingIter(ucmp, iters...)

	var (
		newFiles         []fileMetadata
		tw               *sstable.Writer
		file             vfs.File
		fileNum          uint64
		lastUserKey      []byte
		haveLastUserKey  bool
		lastSeqNumForKey = base.SeqNumMax
	)

	closeOutput := func() error {
		if err := tw.Finish(); err != nil {
			return err
		}
		meta := fileMetadata{fileNum: fileNum, smallest: tw.Smallest(), largest: tw.Largest()}
		if err := file.Sync(); err != nil {
			return err
		}
		stat, err := file.Stat()
		if err != nil {
			return err
		}
		meta.size = uint64(stat.Size())
		meta.allowedSeeks = seeksAllowed(meta.size)
		if err := file.Close(); err != nil {
			return err
		}
		newFiles = append(newFiles, meta)
		tw, file = nil, nil
		return nil
	}

	for valid := mi.First(); valid; valid = mi.Next() {
		key := mi.Key()
		if !haveLastUserKey || ucmp(key.UserKey, lastUserKey) != 0 {
			haveLastUserKey = true
			lastUserKey = append(lastUserKey[:0], key.UserKey...)
			lastSeqNumForKey = base.SeqNumMax
		}

		drop := false
		if lastSeqNumForKey <= smallestSnapshot {
			// The newer version of this key seen just before it in this
			// compaction is at or before the smallest live snapshot, so
			// no snapshot can ever observe this older version: drop it.
			drop = true
		} else if key.Kind() == base.InternalKeyKindDelete &&
			key.SeqNum() <= smallestSnapshot &&
			c.isBaseLevelForUkey(ucmp, key.UserKey) {
			// No snapshot needs this tombstone's seq, and nothing below this
			// compaction's output level can still have this key, so it has
			// nothing left to shadow.
			drop = true
		}
		lastSeqNumForKey = key.SeqNum()
		if drop {
			continue
		}

		if tw == nil {
			fileNum = d.versions.nextFileNum()
			d.pendingOutputs[fileNum] = struct{}{}
			var err error
			file, err = d.opts.FileSystem.Create(dbFilename(d.dirname, fileTypeTable, fileNum))
			if err != nil {
				return err
			}
			tw = sstable.NewWriter(file, d.opts.writerOptions())
		}
		if err := tw.Add(key, mi.Value()); err != nil {
			return err
		}
		if tw.EstimatedSize() >= uint64(targetFileSize) {
			if err := closeOutput(); err != nil {
				return err
			}
		}
	}
	if tw != nil {
		if err := closeOutput(); err != nil {
			return err
		}
	}
	if err := mi.Close(); err != nil {
		return err
	}

	ve := versionEdit{deletedFiles: make(map[deletedFileEntry]bool)}
	for _, f := range c.inputs[0] {
		ve.deletedFiles[deletedFileEntry{c.level, f.fileNum}] = true
	}
	for _, f := range c.inputs[1] {
		ve.deletedFiles[deletedFileEntry{c.level + 1, f.fileNum}] = true
	}
	for _, meta := range newFiles {
		ve.newFiles = append(ve.newFiles, newFileEntry{level: c.level + 1, meta: meta})
		d.opts.Metrics.CompactionBytesWritten.Add(float64(meta.size))
	}

	if err := d.versions.logAndApply(d.dirname, &ve); err != nil {
		return err
	}

	for _, f := range c.inputs[0] {
		d.tableCache.evict(f.fileNum)
	}
	for _, f := range c.inputs[1] {
		d.tableCache.evict(f.fileNum)
	}
	for _, meta := range newFiles {
		delete(d.pendingOutputs, meta.fileNum)
	}

	d.deleteObsoleteFiles()
	return nil
}
