// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FrankFSM/ldb/vfs"
)

type fileType int

const (
	fileTypeLog fileType = iota
	fileTypeLock
	fileTypeTable
	fileTypeOldFashionedTable
	fileTypeManifest
	fileTypeCurrent
	fileTypeTemp
	fileTypeInfoLog
	fileTypeInfoLogOld
)

// dbFilename returns the path of the named file inside dirname. fileTypeTable
// names ".ldb" files -- the primary table suffix per spec section 6;
// fileTypeOldFashionedTable names the accepted ".sst" fallback, tried by
// the table cache when the ".ldb" name is not found.
func dbFilename(dirname string, ft fileType, fileNum uint64) string {
	dirname = strings.TrimRight(dirname, "/")
	switch ft {
	case fileTypeLog:
		return fmt.Sprintf("%s/%06d.log", dirname, fileNum)
	case fileTypeLock:
		return fmt.Sprintf("%s/LOCK", dirname)
	case fileTypeTable:
		return fmt.Sprintf("%s/%06d.ldb", dirname, fileNum)
	case fileTypeOldFashionedTable:
		return fmt.Sprintf("%s/%06d.sst", dirname, fileNum)
	case fileTypeManifest:
		return fmt.Sprintf("%s/MANIFEST-%06d", dirname, fileNum)
	case fileTypeCurrent:
		return fmt.Sprintf("%s/CURRENT", dirname)
	case fileTypeTemp:
		return fmt.Sprintf("%s/%06d.dbtmp", dirname, fileNum)
	case fileTypeInfoLog:
		return fmt.Sprintf("%s/LOG", dirname)
	case fileTypeInfoLogOld:
		return fmt.Sprintf("%s/LOG.old", dirname)
	}
	panic("ldb: unknown file type")
}

// parseDBFilename classifies name (a directory entry, not a full path),
// returning its type and file number. Unrecognized names return ok == false.
func parseDBFilename(name string) (ft fileType, fileNum uint64, ok bool) {
	switch {
	case name == "CURRENT":
		return fileTypeCurrent, 0, true
	case name == "LOCK":
		return fileTypeLock, 0, true
	case name == "LOG":
		return fileTypeInfoLog, 0, true
	case name == "LOG.old":
		return fileTypeInfoLogOld, 0, true
	case strings.HasPrefix(name, "MANIFEST-"):
		u, err := strconv.ParseUint(name[len("MANIFEST-"):], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeManifest, u, true
	case strings.HasSuffix(name, ".log"):
		u, err := strconv.ParseUint(name[:len(name)-len(".log")], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeLog, u, true
	case strings.HasSuffix(name, ".ldb"):
		u, err := strconv.ParseUint(name[:len(name)-len(".ldb")], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeTable, u, true
	case strings.HasSuffix(name, ".sst"):
		u, err := strconv.ParseUint(name[:len(name)-len(".sst")], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeOldFashionedTable, u, true
	}
	return 0, 0, false
}

// setCurrentFile atomically points dirname/CURRENT at the manifest with the
// given file number, per spec section 4.6: write a temp file holding the
// manifest's basename, fsync it, then rename over CURRENT.
func setCurrentFile(dirname string, fs vfs.FS, fileNum uint64) error {
	newFilename := dbFilename(dirname, fileTypeCurrent, 0)
	tmpFilename := dbFilename(dirname, fileTypeTemp, fileNum)
	fs.Remove(tmpFilename)
	f, err := fs.Create(tmpFilename)
	if err != nil {
		return wrapIOError(err, "ldb: creating CURRENT temp file")
	}
	manifestLine := fmt.Sprintf("MANIFEST-%06d\n", fileNum)
	if _, err := f.Write([]byte(manifestLine)); err != nil {
		f.Close()
		return wrapIOError(err, "ldb: writing CURRENT temp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return wrapIOError(err, "ldb: syncing CURRENT temp file")
	}
	if err := f.Close(); err != nil {
		return wrapIOError(err, "ldb: closing CURRENT temp file")
	}
	if err := fs.Rename(tmpFilename, newFilename); err != nil {
		return wrapIOError(err, "ldb: renaming CURRENT temp file")
	}
	return nil
}
