// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"io"
	"path/filepath"
	"sort"

	"github.com/FrankFSM/ldb/base"
	"github.com/FrankFSM/ldb/record"
	"github.com/FrankFSM/ldb/vfs"
)

// versionSet tracks the sequence of versions (each a set of live table
// files) the database has gone through, per spec section 4.6: it owns file
// number and sequence number allocation, and is the only thing that may
// install a new current version.
//
// Every version this process has ever installed is kept in a circular
// doubly-linked list rooted at dummyVersion for as long as something still
// references it (ref()/unref()), so a long-running iterator or snapshot can
// keep reading from a version after a newer one has become current.
type versionSet struct {
	fs   vfs.FS
	ucmp base.Compare

	dummyVersion version
	currentVer   *version

	comparatorName string

	nextFileNumber     uint64
	manifestFileNumber uint64
	logNumber          uint64
	prevLogNumber      uint64
	lastSequence       base.SeqNum
}

func (vs *versionSet) init(opts *Options) {
	vs.fs = opts.FileSystem
	vs.ucmp = opts.Comparer.Compare
	vs.comparatorName = opts.Comparer.Name
	vs.dummyVersion.next = &vs.dummyVersion
	vs.dummyVersion.prev = &vs.dummyVersion
}

func (vs *versionSet) currentVersion() *version {
	return vs.currentVer
}

// nextFileNum allocates and returns a previously-unused file number.
func (vs *versionSet) nextFileNum() uint64 {
	n := vs.nextFileNumber
	vs.nextFileNumber++
	return n
}

// markFileNumUsed records that fileNum is in use, so a later nextFileNum
// call will not reissue it. Used when replaying log files discovered on
// disk whose numbers were never recorded in the manifest's nextFileNumber.
func (vs *versionSet) markFileNumUsed(fileNum uint64) {
	if vs.nextFileNumber <= fileNum {
		vs.nextFileNumber = fileNum + 1
	}
}

// append links v into the circular list of live versions.
func (vs *versionSet) append(v *version) {
	v.prev = vs.dummyVersion.prev
	v.next = &vs.dummyVersion
	v.prev.next = v
	v.next.prev = v
}

func (v *version) ref() { v.refs++ }

// unref drops a reference to v, unlinking it from the versionSet's list once
// the last reference (including the "is current" reference) is gone.
func (v *version) unref() {
	v.refs--
	if v.refs == 0 {
		v.prev.next = v.next
		v.next.prev = v.prev
		v.prev, v.next = nil, nil
	}
}

// addLiveFileNums adds the file number of every table referenced by any
// version still in the live list -- not just the current one -- since an
// old version may still be in use by an open iterator or snapshot.
func (vs *versionSet) addLiveFileNums(m map[uint64]struct{}) {
	for v := vs.dummyVersion.next; v != &vs.dummyVersion; v = v.next {
		for _, files := range v.files {
			for _, f := range files {
				m[f.fileNum] = struct{}{}
			}
		}
	}
}

// load reads the CURRENT file and replays its manifest's versionEdits into
// the database's initial current version, per spec section 4.6's Recover
// steps 3-4.
func (vs *versionSet) load(dirname string, opts *Options) error {
	fs := opts.FileSystem

	current, err := fs.OpenForReading(dbFilename(dirname, fileTypeCurrent, 0))
	if err != nil {
		return wrapIOError(err, "ldb: could not open CURRENT file for %q", dirname)
	}
	defer current.Close()
	stat, err := current.Stat()
	if err != nil {
		return err
	}
	n := stat.Size()
	if n == 0 {
		return errorf(KindCorruption, "ldb: CURRENT file for %q is empty", dirname)
	}
	if n > 4096 {
		return errorf(KindCorruption, "ldb: CURRENT file for %q is too large", dirname)
	}
	b := make([]byte, n)
	if _, err := current.ReadAt(b, 0); err != nil {
		return err
	}
	if b[n-1] != '\n' {
		return errorf(KindCorruption, "ldb: CURRENT file for %q is malformed", dirname)
	}
	b = b[:n-1]

	_, manifestFileNum, ok := parseDBFilename(string(b))
	if !ok {
		return errorf(KindCorruption, "ldb: CURRENT file for %q names an unparseable manifest %q", dirname, b)
	}

	manifest, err := fs.OpenForReading(filepath.Join(dirname, string(b)))
	if err != nil {
		return wrapIOError(err, "ldb: could not open manifest file %q for %q", b, dirname)
	}
	defer manifest.Close()

	var adds [numLevels]map[uint64]fileMetadata
	for i := range adds {
		adds[i] = make(map[uint64]fileMetadata)
	}

	rr := record.NewReader(manifest)
	for {
		if err := rr.Next(); err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		var ve versionEdit
		if err := ve.decode(rr); err != nil {
			return err
		}
		if ve.comparatorName != "" {
			if s, t := ve.comparatorName, opts.Comparer.Name; s != t {
				return errorf(KindCorruption, "ldb: comparer name from manifest %q != comparer name from options %q", s, t)
			}
			vs.comparatorName = ve.comparatorName
		}
		if ve.logNumber != 0 {
			vs.logNumber = ve.logNumber
		}
		if ve.prevLogNumber != 0 {
			vs.prevLogNumber = ve.prevLogNumber
		}
		if ve.nextFileNumber != 0 {
			vs.markFileNumUsed(ve.nextFileNumber - 1)
		}
		if ve.lastSequence != 0 {
			vs.lastSequence = ve.lastSequence
		}
		for del := range ve.deletedFiles {
			delete(adds[del.level], del.fileNum)
		}
		for _, nf := range ve.newFiles {
			adds[nf.level][nf.meta.fileNum] = nf.meta
			vs.markFileNumUsed(nf.meta.fileNum)
		}
	}

	v := &version{}
	for level := 0; level < numLevels; level++ {
		files := make([]fileMetadata, 0, len(adds[level]))
		for _, f := range adds[level] {
			files = append(files, f)
		}
		if level == 0 {
			sort.Sort(byFileNum(files))
		} else {
			sort.Sort(bySmallest{files, vs.ucmp})
		}
		v.files[level] = files
	}
	v.updateCompactionScore()

	vs.manifestFileNumber = manifestFileNum
	vs.markFileNumUsed(manifestFileNum)
	vs.append(v)
	v.ref()
	vs.currentVer = v
	return nil
}

// logAndApply builds a new version from the current one plus ve's deltas,
// writes a manifest describing it, atomically swaps CURRENT to point at
// that manifest, and installs the new version, per spec section 4.6.
func (vs *versionSet) logAndApply(dirname string, ve *versionEdit) error {
	cur := vs.currentVer
	nv := &version{}
	for level := 0; level < numLevels; level++ {
		files := make([]fileMetadata, 0, len(cur.files[level]))
		for _, f := range cur.files[level] {
			if ve.deletedFiles[deletedFileEntry{level, f.fileNum}] {
				continue
			}
			files = append(files, f)
		}
		for _, nf := range ve.newFiles {
			if nf.level == level {
				files = append(files, nf.meta)
			}
		}
		if level == 0 {
			sort.Sort(byFileNum(files))
		} else {
			sort.Sort(bySmallest{files, vs.ucmp})
		}
		nv.files[level] = files
	}
	nv.updateCompactionScore()

	logNumber := vs.logNumber
	if ve.logNumber != 0 {
		logNumber = ve.logNumber
	}
	prevLogNumber := vs.prevLogNumber
	if ve.prevLogNumber != 0 {
		prevLogNumber = ve.prevLogNumber
	}
	lastSequence := vs.lastSequence
	if ve.lastSequence != 0 {
		lastSequence = ve.lastSequence
	}
	comparatorName := vs.comparatorName
	if ve.comparatorName != "" {
		comparatorName = ve.comparatorName
	}

	manifestFileNum := vs.nextFileNum()
	snapshot := versionEdit{
		comparatorName: comparatorName,
		logNumber:      logNumber,
		prevLogNumber:  prevLogNumber,
		nextFileNumber: vs.nextFileNumber,
		lastSequence:   lastSequence,
	}
	for level := 0; level < numLevels; level++ {
		for _, f := range nv.files[level] {
			snapshot.newFiles = append(snapshot.newFiles, newFileEntry{level, f})
		}
	}

	if err := vs.writeManifest(dirname, manifestFileNum, &snapshot); err != nil {
		return err
	}

	oldManifestNum := vs.manifestFileNumber
	vs.manifestFileNumber = manifestFileNum
	vs.logNumber = logNumber
	vs.prevLogNumber = prevLogNumber
	vs.lastSequence = lastSequence
	vs.comparatorName = comparatorName

	vs.append(nv)
	nv.ref()
	oldCur := vs.currentVer
	vs.currentVer = nv
	if oldCur != nil {
		oldCur.unref()
	}

	if oldManifestNum != 0 && oldManifestNum != manifestFileNum {
		vs.fs.Remove(dbFilename(dirname, fileTypeManifest, oldManifestNum))
	}
	return nil
}

// writeManifest writes a self-contained manifest file (one edit describing
// the entire new version) and atomically repoints CURRENT at it.
func (vs *versionSet) writeManifest(dirname string, manifestFileNum uint64, ve *versionEdit) (retErr error) {
	manifestFilename := dbFilename(dirname, fileTypeManifest, manifestFileNum)
	f, err := vs.fs.Create(manifestFilename)
	if err != nil {
		return wrapIOError(err, "ldb: could not create %q", manifestFilename)
	}
	defer func() {
		if retErr != nil {
			vs.fs.Remove(manifestFilename)
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
	if err := f.Sync(); err != nil {
		return err
	}
	return setCurrentFile(dirname, vs.fs, manifestFileNum)
}
