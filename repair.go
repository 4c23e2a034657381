// Copyright 2013 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"bytes"
	"io"

	"github.com/FrankFSM/ldb/base"
	"github.com/FrankFSM/ldb/memtable"
	"github.com/FrankFSM/ldb/record"
	"github.com/FrankFSM/ldb/sstable"
	"github.com/FrankFSM/ldb/vfs"
)

// RepairDB rebuilds a database's manifest from scratch by re-deriving each
// table file's key range from a walk over its entries, and replaying any log
// files into fresh level-0 tables, per spec section 9's best-effort repair
// sketch. It does not consult (or require) the existing manifest or
// CURRENT file, so it recovers from a missing or corrupt manifest as long
// as the table and log files themselves are intact. A table that fails to
// open is skipped, and the entries it held are not recovered.
func RepairDB(dirname string, opts *Options) error {
	opts = opts.EnsureDefaults()
	fs := opts.FileSystem
	cmp := opts.Comparer.Compare

	list, err := fs.List(dirname)
	if err != nil {
		return err
	}

	var (
		tables         []fileMetadata
		logNums        []uint64
		nextFileNumber uint64 = 1
	)
	for _, name := range list {
		ft, num, ok := parseDBFilename(name)
		if !ok {
			continue
		}
		if num >= nextFileNumber {
			nextFileNumber = num + 1
		}
		switch ft {
		case fileTypeTable, fileTypeOldFashionedTable:
			meta, err := repairTableMeta(fs, dirname, num, opts)
			if err != nil {
				opts.Logger.Errorf("ldb: repair: skipping unreadable table %d: %v", num, err)
				continue
			}
			tables = append(tables, meta)
		case fileTypeLog:
			logNums = append(logNums, num)
		}
	}

	mem := memtable.New(uint32(opts.WriteBufferSize), cmp)
	var maxSeq base.SeqNum
	for _, num := range logNums {
		seq, err := repairReplayLog(fs, dbFilename(dirname, fileTypeLog, num), mem, cmp)
		if err != nil {
			opts.Logger.Errorf("ldb: repair: log %d replayed with errors: %v", num, err)
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	if !mem.Empty() {
		meta, err := repairFlushMemtable(fs, dirname, &nextFileNumber, mem, opts)
		if err != nil {
			return err
		}
		tables = append(tables, meta)
	}

	manifestFileNum := nextFileNumber
	nextFileNumber++
	ve := versionEdit{
		comparatorName: opts.Comparer.Name,
		nextFileNumber: nextFileNumber,
		lastSequence:   maxSeq,
	}
	for _, meta := range tables {
		ve.newFiles = append(ve.newFiles, newFileEntry{level: 0, meta: meta})
	}

	manifestFilename := dbFilename(dirname, fileTypeManifest, manifestFileNum)
	f, err := fs.Create(manifestFilename)
	if err != nil {
		return err
	}
	rw := record.NewWriter(f)
	w, err := rw.Next()
	if err != nil {
		f.Close()
		return err
	}
	if err := ve.encode(w); err != nil {
		f.Close()
		return err
	}
	if err := rw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return setCurrentFile(dirname, fs, manifestFileNum)
}

// repairTableMeta opens a table just long enough to walk every entry and
// recover its size, smallest key and largest key, none of which a bare
// table file otherwise records outside the manifest this function exists
// to replace.
func repairTableMeta(fs vfs.FS, dirname string, fileNum uint64, opts *Options) (fileMetadata, error) {
	filename := dbFilename(dirname, fileTypeTable, fileNum)
	f, err := fs.Open(filename)
	if err != nil {
		filename = dbFilename(dirname, fileTypeOldFashionedTable, fileNum)
		f, err = fs.Open(filename)
		if err != nil {
			return fileMetadata{}, err
		}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fileMetadata{}, err
	}
	reader, err := sstable.NewReader(f, stat.Size(), opts.readerOptions(fileNum))
	if err != nil {
		return fileMetadata{}, err
	}
	it, err := reader.NewIter()
	if err != nil {
		return fileMetadata{}, err
	}
	defer it.Close()

	meta := fileMetadata{fileNum: fileNum, size: uint64(stat.Size()), allowedSeeks: seeksAllowed(uint64(stat.Size()))}
	if !it.First() {
		return fileMetadata{}, errorf(KindCorruption, "ldb: repair: table %d has no entries", fileNum)
	}
	meta.smallest = it.Key()
	for ; it.Valid(); it.Next() {
		meta.largest = it.Key()
	}
	return meta, nil
}

// repairReplayLog replays a single log file's batches into mem, tolerating
// (and reporting, rather than failing the whole repair on) a corrupt
// trailing record, since a crash mid-write is exactly the scenario repair
// exists for.
func repairReplayLog(fs vfs.FS, filename string, mem *memtable.Memtable, cmp base.Compare) (maxSeq base.SeqNum, err error) {
	file, err := fs.Open(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	batchBuf := new(bytes.Buffer)
	rr := record.NewReader(file)
	for {
		if err := rr.Next(); err == io.EOF {
			break
		} else if err != nil {
			return maxSeq, err
		}
		batchBuf.Reset()
		if _, err := io.Copy(batchBuf, rr); err != nil {
			return maxSeq, err
		}
		if batchBuf.Len() < batchHeaderLen {
			return maxSeq, errorf(KindCorruption, "ldb: repair: corrupt log file %q", filename)
		}
		b := batchFromRepr(append([]byte(nil), batchBuf.Bytes()...))
		seqNum := b.seqNum()
		seqNum1 := seqNum + base.SeqNum(b.Count())
		if seqNum1 > maxSeq {
			maxSeq = seqNum1
		}

		it := b.iter()
		for s := seqNum; s != seqNum1; s++ {
			kind, ukey, value, ok := it.next()
			if !ok {
				return maxSeq, errorf(KindCorruption, "ldb: repair: corrupt log file %q", filename)
			}
			if err := mem.Add(s, kind, ukey, value); err != nil {
				return maxSeq, err
			}
		}
	}
	return maxSeq, nil
}

// repairFlushMemtable writes the entries recovered from the log files to a
// fresh level-0 table, mirroring (*DB).writeLevel0Table for the
// standalone, no-DB-instance context a repair runs in.
func repairFlushMemtable(
	fs vfs.FS, dirname string, nextFileNumber *uint64, mem *memtable.Memtable, opts *Options,
) (fileMetadata, error) {
	fileNum := *nextFileNumber
	*nextFileNumber++

	filename := dbFilename(dirname, fileTypeTable, fileNum)
	file, err := fs.Create(filename)
	if err != nil {
		return fileMetadata{}, err
	}
	tw := sstable.NewWriter(file, opts.writerOptions())

	it := mem.NewIter()
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		if err := tw.Add(it.Key(), it.Value()); err != nil {
			file.Close()
			return fileMetadata{}, err
		}
	}
	if err := tw.Finish(); err != nil {
		file.Close()
		return fileMetadata{}, err
	}
	meta := fileMetadata{fileNum: fileNum, smallest: tw.Smallest(), largest: tw.Largest()}
	if err := file.Sync(); err != nil {
		file.Close()
		return fileMetadata{}, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fileMetadata{}, err
	}
	meta.size = uint64(stat.Size())
	meta.allowedSeeks = seeksAllowed(meta.size)
	if err := file.Close(); err != nil {
		return fileMetadata{}, err
	}
	return meta, nil
}
