// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ldb provides an embedded, ordered key/value store built on a
// log-structured merge tree.
package ldb

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/FrankFSM/ldb/base"
	"github.com/FrankFSM/ldb/memtable"
	"github.com/FrankFSM/ldb/record"
	"github.com/FrankFSM/ldb/sstable"
	"github.com/FrankFSM/ldb/vfs"
	"golang.org/x/sync/errgroup"
)

const (
	// l0SlowdownWritesTrigger is the soft limit on the number of level-0
	// files. Writes are slowed down once this is exceeded.
	l0SlowdownWritesTrigger = 8

	// l0StopWritesTrigger is the hard limit on the number of level-0 files.
	// Writes block until compaction catches up once this is exceeded.
	l0StopWritesTrigger = 12

	// minTableCacheSize is the smallest table cache size Open will use,
	// regardless of Options.MaxOpenFiles.
	minTableCacheSize = 64

	// numNonTableCacheFiles approximates how many of MaxOpenFiles are spent
	// on things other than table-cache entries (the log file, the manifest,
	// the LOCK file, ...).
	numNonTableCacheFiles = 10
)

// DB is an embedded key/value store, per spec section 4.
type DB struct {
	dirname string
	opts    *Options
	cmp     base.Compare

	tableCache tableCache

	// mu guards every field below, plus the versionSet and the tableCache's
	// own accounting is further guarded internally.
	mu sync.Mutex

	fileLock  io.Closer
	logNumber uint64
	logFile   vfs.File
	log       *record.Writer

	versions versionSet

	// mem is the current mutable memtable. imm, if non-nil, is an older
	// memtable that has been switched out and is pending (or undergoing) a
	// flush to a level-0 table; all of mem's sequence numbers are higher
	// than imm's.
	mem, imm *memtable.Memtable

	snapshots snapshotList

	// writers is the FIFO queue of pending Apply calls. The writer at the
	// front of the queue is the leader for the next round of group commit:
	// it calls makeRoomForWrite and BuildBatchGroup on behalf of itself and
	// every writer it coalesces, then pops them all off the queue once the
	// round's outcome is known. Mirrors the teacher's own writers_ deque.
	writers    []*writer
	writerCond sync.Cond

	compactionCond sync.Cond
	compacting     bool

	// bg runs every background-compaction goroutine Open starts; Close waits
	// on it so no compaction is still touching the database's files after
	// Close returns.
	bg *errgroup.Group

	pendingOutputs map[uint64]struct{}

	closed bool
}

// Get returns the value for key, per spec section 4.1, or ErrNotFound (see
// base.IsNotFound) if it does not exist.
func (d *DB) Get(key []byte, opts *ReadOptions) ([]byte, error) {
	d.mu.Lock()
	snapshot := d.versions.lastSequence
	if opts != nil && opts.Snapshot != nil {
		snapshot = opts.Snapshot.seqNum
	}
	current := d.versions.currentVersion()
	current.ref()
	mem, imm := d.mem, d.imm
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		current.unref()
		d.mu.Unlock()
	}()

	for _, m := range [2]*memtable.Memtable{mem, imm} {
		if m == nil {
			continue
		}
		value, found, isTombstone := m.Get(key, snapshot)
		if found {
			if isTombstone {
				return nil, base.ErrNotFound
			}
			return value, nil
		}
	}

	ikey := base.MakeSearchKey(key, snapshot)
	value, stats, err := current.get(ikey, &d.tableCache, d.cmp)
	if stats.seekFile != nil {
		d.mu.Lock()
		if current.recordReadSample(stats) {
			d.maybeScheduleCompaction()
		}
		d.mu.Unlock()
	}
	return value, err
}

// Set writes key=value, per spec section 4.1.
func (d *DB) Set(key, value []byte, opts *WriteOptions) error {
	b := NewBatch()
	b.Set(key, value)
	return d.Apply(b, opts)
}

// Delete removes key, per spec section 4.1. Deleting an absent key is not
// an error.
func (d *DB) Delete(key []byte, opts *WriteOptions) error {
	b := NewBatch()
	b.Delete(key)
	return d.Apply(b, opts)
}

// writer is one Apply call's place in d.writers, the FIFO commit queue.
// applied and err are set once, by whichever call leads the round of group
// commit this writer ends up folded into.
type writer struct {
	batch   *Batch
	sync    bool
	applied bool
	err     error
}

// Apply writes b's operations atomically, per spec section 4.9.
//
// Concurrent callers queue in FIFO order; the writer at the front of the
// queue leads a round of group commit, coalescing itself with as many
// immediately-following queued writers as fit within a byte budget into one
// WAL record and one fsync, per spec section 5's write-path concurrency
// rule: the WAL is written only by the leader, and Sync is called without
// d.mu held.
func (d *DB) Apply(b *Batch, opts *WriteOptions) error {
	if b.Empty() {
		return nil
	}

	w := &writer{batch: b, sync: opts != nil && opts.Sync}

	d.mu.Lock()
	d.writers = append(d.writers, w)
	for d.writers[0] != w && !w.applied {
		d.writerCond.Wait()
	}
	if w.applied {
		d.mu.Unlock()
		return w.err
	}

	// w leads this round: d.writers[0] == w and no other writer has taken
	// this round's outcome yet.
	if err := d.makeRoomForWrite(false); err != nil {
		d.writers = d.writers[1:]
		d.writerCond.Broadcast()
		d.mu.Unlock()
		return err
	}

	group, last, syncGroup := d.buildBatchGroup()

	seqNum := d.versions.lastSequence + 1
	group.setSeqNum(seqNum)
	n := base.SeqNum(group.Count())

	// Writing (and, if requested, syncing) the WAL record is the slow part
	// of a write: do it with d.mu released so other writers can keep
	// queuing and the background compaction goroutine can keep running.
	d.mu.Unlock()
	walErr := d.writeToLog(group, syncGroup)
	d.mu.Lock()

	if walErr == nil {
		seq := seqNum
		it := group.iter()
		for {
			kind, ukey, value, ok := it.next()
			if !ok {
				break
			}
			if err := d.mem.Add(seq, kind, ukey, value); err != nil {
				walErr = err
				break
			}
			seq++
		}
	}
	d.versions.lastSequence = seqNum + n - 1

	for {
		front := d.writers[0]
		d.writers = d.writers[1:]
		front.err = walErr
		front.applied = true
		if front == last {
			break
		}
	}
	d.writerCond.Broadcast()

	err := w.err
	d.mu.Unlock()
	return err
}

// buildBatchGroup coalesces d.writers[0] (the leader) with as many
// immediately-following queued writers as fit under a byte budget into a
// single batch, mirroring BuildBatchGroup: small writes ride along on one
// log write and fsync instead of each paying for their own. d.mu must be
// held when calling this.
func (d *DB) buildBatchGroup() (group *Batch, last *writer, syncGroup bool) {
	first := d.writers[0]
	last = first
	syncGroup = first.sync

	if len(d.writers) == 1 {
		return first.batch, first, syncGroup
	}

	maxSize := 1 << 20
	if first.batch.Len() <= 128<<10 {
		maxSize = first.batch.Len() + 128<<10
	}

	group = NewBatch()
	group.data = append(group.data[:0], first.batch.data...)
	for i := 1; i < len(d.writers); i++ {
		next := d.writers[i]
		if group.Len()+next.batch.Len()-batchHeaderLen > maxSize {
			break
		}
		group.append(next.batch)
		syncGroup = syncGroup || next.sync
		last = next
	}
	return group, last, syncGroup
}

// writeToLog appends group's wire encoding as one WAL record, flushing and
// syncing it if sync is set. Called without d.mu held; safe because only
// the current group-commit leader ever touches d.log/d.logFile.
func (d *DB) writeToLog(group *Batch, sync bool) error {
	w, err := d.log.Next()
	if err != nil {
		return wrapIOError(err, "ldb: could not create log entry")
	}
	repr := group.Repr()
	if _, err := w.Write(repr); err != nil {
		return wrapIOError(err, "ldb: could not write log entry")
	}
	d.opts.Metrics.WALBytesWritten.Add(float64(len(repr)))
	if sync {
		if err := d.log.Flush(); err != nil {
			return wrapIOError(err, "ldb: could not flush log entry")
		}
		if err := d.logFile.Sync(); err != nil {
			return wrapIOError(err, "ldb: could not sync log entry")
		}
		d.opts.Metrics.WALSyncsTotal.Inc()
	}
	return nil
}

// NewSnapshot pins the database at its current sequence number, per spec
// section 4's snapshot semantics.
func (d *DB) NewSnapshot() *Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Snapshot{seqNum: d.versions.lastSequence, db: d}
	d.snapshots.pushBack(s)
	return s
}

func (d *DB) releaseSnapshot(s *Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshots.remove(s)
}

// NewIter returns an iterator over the database's entries, per spec section
// 4.10. It merges the memtables and every level's tables, suppressing
// shadowed older versions and tombstones, and respects opts.Snapshot if
// set.
func (d *DB) NewIter(opts *ReadOptions) (*Iterator, error) {
	d.mu.Lock()
	snapshot := d.versions.lastSequence
	if opts != nil && opts.Snapshot != nil {
		snapshot = opts.Snapshot.seqNum
	}
	current := d.versions.currentVersion()
	current.ref()
	mem, imm := d.mem, d.imm
	d.mu.Unlock()

	var iters []internalIterator
	iters = append(iters, mem.NewIter())
	if imm != nil {
		iters = append(iters, imm.NewIter())
	}
	var closeFns []func()
	for _, f := range current.files[0] {
		it, closeFn, err := d.tableCache.newIter(f.fileNum)
		if err != nil {
			d.releaseIterRefs(current, closeFns)
			return nil, err
		}
		iters = append(iters, it)
		closeFns = append(closeFns, closeFn)
	}
	for level := 1; level < numLevels; level++ {
		if len(current.files[level]) == 0 {
			continue
		}
		iters = append(iters, newLevelIter(d.cmp, current.files[level], d.tableCacheNewIter))
	}

	return &Iterator{
		db:       d,
		mi:       newMergingIter(d.cmp, iters...),
		cmp:      d.cmp,
		snapshot: snapshot,
		version:  current,
		closeFns: closeFns,
	}, nil
}

func (d *DB) releaseIterRefs(v *version, closeFns []func()) {
	for _, fn := range closeFns {
		fn()
	}
	d.mu.Lock()
	v.unref()
	d.mu.Unlock()
}

// Close releases every resource held by the database, waiting for any
// in-flight background compaction to finish first.
func (d *DB) Close() error {
	d.mu.Lock()
	d.closed = true
	d.compactionCond.Broadcast()
	d.mu.Unlock()

	err := d.bg.Wait()

	if e := d.tableCache.Close(); e != nil && err == nil {
		err = e
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fileLock == nil {
		return err
	}
	if e := d.fileLock.Close(); e != nil && err == nil {
		err = e
	}
	d.fileLock = nil
	return err
}

type fileNumAndName struct {
	num  uint64
	name string
}

type fileNumAndNameSlice []fileNumAndName

func (p fileNumAndNameSlice) Len() int           { return len(p) }
func (p fileNumAndNameSlice) Less(i, j int) bool { return p[i].num < p[j].num }
func (p fileNumAndNameSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// createDB initializes an empty database's on-disk layout: a first
// manifest naming the comparer and reserving file number 1 for itself, and
// a CURRENT file pointing at it.
func createDB(dirname string, opts *Options) (retErr error) {
	const manifestFileNum = 1
	ve := versionEdit{
		comparatorName: opts.Comparer.Name,
		nextFileNumber: manifestFileNum + 1,
	}
	fs := opts.FileSystem
	manifestFilename := dbFilename(dirname, fileTypeManifest, manifestFileNum)
	f, err := fs.Create(manifestFilename)
	if err != nil {
		return wrapIOError(err, "ldb: could not create %q", manifestFilename)
	}
	defer func() {
		if retErr != nil {
			fs.Remove(manifestFilename)
		}
	}()
	defer f.Close()

	rw := record.NewWriter(f)
	w, err := rw.Next()
	if err != nil {
		return err
	}
	if err := ve.encode(w); err != nil {
		return err
	}
	if err := rw.Close(); err != nil {
		return err
	}
	return setCurrentFile(dirname, fs, manifestFileNum)
}

// Open opens (or creates) a database whose files live in dirname, per spec
// section 4.6's Recover procedure.
func Open(dirname string, opts *Options) (*DB, error) {
	opts = opts.EnsureDefaults()
	fs := opts.FileSystem

	d := &DB{
		dirname:        dirname,
		opts:           opts,
		cmp:            opts.Comparer.Compare,
		pendingOutputs: make(map[uint64]struct{}),
	}
	d.snapshots.init()
	d.versions.init(opts)
	d.bg = &errgroup.Group{}
	tableCacheSize := opts.MaxOpenFiles - numNonTableCacheFiles
	if tableCacheSize < minTableCacheSize {
		tableCacheSize = minTableCacheSize
	}
	d.compactionCond = sync.Cond{L: &d.mu}
	d.writerCond = sync.Cond{L: &d.mu}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := fs.MkdirAll(dirname, 0755); err != nil {
		return nil, err
	}
	if _, ok := opts.Logger.(discardLogger); ok {
		if fl, err := newFileLogger(fs, dirname); err == nil {
			opts.Logger = fl
		}
	}
	d.tableCache.init(dirname, fs, opts, tableCacheSize)
	d.mem = memtable.New(uint32(opts.WriteBufferSize), d.cmp)

	fileLock, err := fs.Lock(dbFilename(dirname, fileTypeLock, 0))
	if err != nil {
		return nil, err
	}
	defer func() {
		if fileLock != nil {
			fileLock.Close()
		}
	}()

	if _, err := fs.Stat(dbFilename(dirname, fileTypeCurrent, 0)); os.IsNotExist(err) {
		if !opts.CreateIfMissing {
			return nil, errorf(KindNotFound, "ldb: database %q does not exist", dirname)
		}
		if err := createDB(dirname, opts); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, wrapIOError(err, "ldb: database %q", dirname)
	} else if opts.ErrorIfExists {
		return nil, errorf(KindInvalidArgument, "ldb: database %q already exists", dirname)
	}

	if err := d.versions.load(dirname, opts); err != nil {
		return nil, err
	}

	// Replay any log files newer than the ones already applied in the
	// manifest.
	var ve versionEdit
	ls, err := fs.List(dirname)
	if err != nil {
		return nil, err
	}
	var logFiles fileNumAndNameSlice
	for _, filename := range ls {
		ft, fn, ok := parseDBFilename(filename)
		if ok && ft == fileTypeLog && (fn >= d.versions.logNumber || fn == d.versions.prevLogNumber) {
			logFiles = append(logFiles, fileNumAndName{fn, filename})
		}
	}
	sort.Sort(logFiles)
	for _, lf := range logFiles {
		maxSeqNum, err := d.replayLogFile(&ve, fs, filepath.Join(dirname, lf.name))
		if err != nil {
			return nil, err
		}
		d.versions.markFileNumUsed(lf.num)
		if d.versions.lastSequence < maxSeqNum {
			d.versions.lastSequence = maxSeqNum
		}
	}

	// Start a fresh, empty WAL.
	ve.logNumber = d.versions.nextFileNum()
	d.logNumber = ve.logNumber
	logFile, err := fs.Create(dbFilename(dirname, fileTypeLog, ve.logNumber))
	if err != nil {
		return nil, err
	}
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()
	d.log = record.NewWriter(logFile)

	if err := d.versions.logAndApply(dirname, &ve); err != nil {
		return nil, err
	}

	d.deleteObsoleteFiles()
	d.maybeScheduleCompaction()

	d.logFile, logFile = logFile, nil
	d.fileLock, fileLock = fileLock, nil
	return d, nil
}

// replayLogFile replays the batches recorded in a WAL file into a fresh
// memtable and, if that memtable ends up non-empty, flushes it to a
// level-0 table, per spec section 4.7's Recover rule 2.
//
// d.mu must be held when calling this, but it is dropped and reacquired by
// writeLevel0Table during the table write.
func (d *DB) replayLogFile(ve *versionEdit, fs vfs.FS, filename string) (maxSeqNum base.SeqNum, err error) {
	file, err := fs.Open(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var (
		mem      *memtable.Memtable
		batchBuf = new(bytes.Buffer)
		rr       = record.NewReader(file)
	)
	for {
		if err := rr.Next(); err == io.EOF {
			break
		} else if err != nil {
			return 0, err
		}
		batchBuf.Reset()
		if _, err := io.Copy(batchBuf, rr); err != nil {
			return 0, err
		}
		if batchBuf.Len() < batchHeaderLen {
			return 0, errorf(KindCorruption, "ldb: corrupt log file %q", filename)
		}
		b := batchFromRepr(append([]byte(nil), batchBuf.Bytes()...))
		seqNum := b.seqNum()
		seqNum1 := seqNum + base.SeqNum(b.Count())
		if maxSeqNum < seqNum1 {
			maxSeqNum = seqNum1
		}

		if mem == nil {
			mem = memtable.New(uint32(d.opts.WriteBufferSize), d.cmp)
		}

		it := b.iter()
		for s := seqNum; s != seqNum1; s++ {
			kind, ukey, value, ok := it.next()
			if !ok {
				return 0, errorf(KindCorruption, "ldb: corrupt log file %q", filename)
			}
			if err := mem.Add(s, kind, ukey, value); err != nil {
				return 0, err
			}
		}
	}

	if mem != nil {
		meta, err := d.writeLevel0Table(fs, mem)
		if err != nil {
			return 0, err
		}
		ve.newFiles = append(ve.newFiles, newFileEntry{level: 0, meta: meta})
		// It's too early to otherwise remove meta.fileNum from
		// d.pendingOutputs, but replay happens before Open returns, so
		// deleteObsoleteFiles cannot run concurrently here.
		delete(d.pendingOutputs, meta.fileNum)
	}

	return maxSeqNum, nil
}

// writeLevel0Table writes mem's entries to a new level-0 table file.
//
// On success it adds the file's number to d.pendingOutputs; the caller must
// remove it once the file has been applied to d.versions.
//
// d.mu must be held when calling this; it is dropped and reacquired around
// the I/O.
func (d *DB) writeLevel0Table(fs vfs.FS, mem *memtable.Memtable) (meta fileMetadata, err error) {
	meta.fileNum = d.versions.nextFileNum()
	filename := dbFilename(d.dirname, fileTypeTable, meta.fileNum)
	d.pendingOutputs[meta.fileNum] = struct{}{}
	defer func(fileNum uint64) {
		if err != nil {
			delete(d.pendingOutputs, fileNum)
		}
	}(meta.fileNum)

	d.mu.Unlock()
	defer d.mu.Lock()

	var file vfs.File
	defer func() {
		if err != nil {
			if file != nil {
				file.Close()
			}
			fs.Remove(filename)
			meta = fileMetadata{}
		}
	}()

	file, err = fs.Create(filename)
	if err != nil {
		return fileMetadata{}, err
	}
	tw := sstable.NewWriter(file, d.opts.writerOptions())

	it := mem.NewIter()
	defer it.Close()
	if !it.First() {
		return fileMetadata{}, errorf(KindInvalidArgument, "ldb: flush of an empty memtable")
	}
	for ; it.Valid(); it.Next() {
		if err := tw.Add(it.Key(), it.Value()); err != nil {
			return fileMetadata{}, err
		}
	}
	if err := tw.Finish(); err != nil {
		return fileMetadata{}, err
	}
	meta.smallest, meta.largest = tw.Smallest(), tw.Largest()

	if err := file.Sync(); err != nil {
		return fileMetadata{}, err
	}
	stat, err := file.Stat()
	if err != nil {
		return fileMetadata{}, err
	}
	meta.size = uint64(stat.Size())
	meta.allowedSeeks = seeksAllowed(meta.size)

	if err := file.Close(); err != nil {
		return fileMetadata{}, err
	}
	file = nil
	return meta, nil
}

// makeRoomForWrite ensures there is room in d.mem for the next write, per
// spec section 4.3's MakeRoomForWrite.
//
// d.mu must be held when calling this, but it is dropped and reacquired
// during the delay wait.
func (d *DB) makeRoomForWrite(force bool) error {
	allowDelay := !force
	for {
		if allowDelay && len(d.versions.currentVersion().files[0]) > l0SlowdownWritesTrigger {
			d.mu.Unlock()
			time.Sleep(time.Millisecond)
			d.mu.Lock()
			allowDelay = false
			continue
		}

		if !force && d.mem.ApproximateMemoryUsage() <= uint32(d.opts.WriteBufferSize) {
			break
		}

		if d.imm != nil {
			d.compactionCond.Wait()
			continue
		}

		if len(d.versions.currentVersion().files[0]) > l0StopWritesTrigger {
			d.compactionCond.Wait()
			continue
		}

		newLogNumber := d.versions.nextFileNum()
		newLogFile, err := d.opts.FileSystem.Create(dbFilename(d.dirname, fileTypeLog, newLogNumber))
		if err != nil {
			return err
		}
		newLog := record.NewWriter(newLogFile)
		if err := d.log.Close(); err != nil {
			newLogFile.Close()
			return err
		}
		if err := d.logFile.Close(); err != nil {
			newLog.Close()
			newLogFile.Close()
			return err
		}
		d.logNumber, d.logFile, d.log = newLogNumber, newLogFile, newLog
		d.imm, d.mem = d.mem, memtable.New(uint32(d.opts.WriteBufferSize), d.cmp)
		force = false
		d.maybeScheduleCompaction()
	}
	return nil
}

// deleteObsoleteFiles removes files no version or pending output still
// references, per spec section 4.8's obsolete-file cleanup.
//
// d.mu must be held when calling this; it is dropped and reacquired around
// the directory listing and removal.
func (d *DB) deleteObsoleteFiles() {
	liveFileNums := map[uint64]struct{}{}
	for fileNum := range d.pendingOutputs {
		liveFileNums[fileNum] = struct{}{}
	}
	d.versions.addLiveFileNums(liveFileNums)
	logNumber := d.versions.logNumber
	manifestFileNumber := d.versions.manifestFileNumber

	d.mu.Unlock()
	defer d.mu.Lock()

	fs := d.opts.FileSystem
	list, err := fs.List(d.dirname)
	if err != nil {
		return
	}
	for _, filename := range list {
		fileType, fileNum, ok := parseDBFilename(filename)
		if !ok {
			continue
		}
		keep := true
		switch fileType {
		case fileTypeLog:
			keep = fileNum >= logNumber
		case fileTypeManifest:
			keep = fileNum >= manifestFileNumber
		case fileTypeTable, fileTypeOldFashionedTable:
			_, keep = liveFileNums[fileNum]
		}
		if keep {
			continue
		}
		if fileType == fileTypeTable || fileType == fileTypeOldFashionedTable {
			d.tableCache.evict(fileNum)
		}
		fs.Remove(filepath.Join(d.dirname, filename))
	}
}
