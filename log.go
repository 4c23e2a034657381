package ldb

import (
	"fmt"
	"time"

	"github.com/FrankFSM/ldb/vfs"
)

// Logger is the narrow capability interface the engine writes its
// human-readable info log through. The default implementation appends
// timestamped lines to the dbname/LOG file; a caller may supply its own
// through Options.Logger. The engine writes only errors to it (background
// compaction failures, and tables or logs RepairDB could not use).
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// fileLogger writes timestamped lines to an underlying vfs.File.
type fileLogger struct {
	f vfs.File
}

// newFileLogger rotates any existing LOG to LOG.old and opens a fresh LOG,
// matching the directory layout in spec section 6.
func newFileLogger(fs vfs.FS, dirname string) (*fileLogger, error) {
	logName := dbFilename(dirname, fileTypeInfoLog, 0)
	oldName := dbFilename(dirname, fileTypeInfoLogOld, 0)
	fs.Rename(logName, oldName) // best effort; absent on first open.
	f, err := fs.Create(logName)
	if err != nil {
		return nil, err
	}
	return &fileLogger{f: f}, nil
}

func (l *fileLogger) write(level, format string, args ...interface{}) {
	if l == nil || l.f == nil {
		return
	}
	ts := time.Now().Format("2006/01/02 15:04:05.000000")
	fmt.Fprintf(l.f, "%s %s %s\n", ts, level, fmt.Sprintf(format, args...))
}

func (l *fileLogger) Infof(format string, args ...interface{})  { l.write("INFO", format, args...) }
func (l *fileLogger) Errorf(format string, args ...interface{}) { l.write("ERROR", format, args...) }

// discardLogger drops everything. EnsureDefaults installs it when
// Options.Logger is nil; Open replaces it with a LOG-file logger, while
// RepairDB keeps it.
type discardLogger struct{}

func (discardLogger) Infof(string, ...interface{})  {}
func (discardLogger) Errorf(string, ...interface{}) {}
