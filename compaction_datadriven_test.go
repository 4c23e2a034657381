// Copyright 2013 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/FrankFSM/ldb/base"
	"github.com/cockroachdb/datadriven"
)

// parseCompactionVersion builds a version from lines of the form:
//
//	L<level>
//	  <fileNum> <smallest>-<largest> [size=<n>]
//
// where <smallest> and <largest> are internal keys in makeIkey's
// "key.KIND.seq" notation. A file's size defaults to 1 byte.
func parseCompactionVersion(t *testing.T, input string) *version {
	v := &version{}
	level := -1
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "L") {
			n, err := strconv.Atoi(line[1:])
			if err != nil {
				t.Fatalf("bad level line %q: %v", line, err)
			}
			level = n
			continue
		}
		if level < 0 {
			t.Fatalf("file line %q before any level line", line)
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			t.Fatalf("bad file line %q", line)
		}
		fileNum, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			t.Fatalf("bad file number %q: %v", fields[0], err)
		}
		bounds := strings.SplitN(fields[1], "-", 2)
		if len(bounds) != 2 {
			t.Fatalf("bad key range %q", fields[1])
		}
		size := uint64(1)
		if len(fields) == 3 {
			n, err := strconv.ParseUint(strings.TrimPrefix(fields[2], "size="), 10, 64)
			if err != nil {
				t.Fatalf("bad size %q: %v", fields[2], err)
			}
			size = n
		}
		v.files[level] = append(v.files[level], fileMetadata{
			fileNum:  fileNum,
			size:     size,
			smallest: makeIkey(bounds[0]),
			largest:  makeIkey(bounds[1]),
		})
	}
	return v
}

// TestPickCompactionDataDriven exercises pickCompaction's input selection
// through testdata/compaction_pick, using the datadriven harness the rest of
// this compaction picker's ancestry uses for this concern.
func TestPickCompactionDataDriven(t *testing.T) {
	var vs *versionSet

	fileNums := func(f []fileMetadata) string {
		ss := make([]string, 0, len(f))
		for _, meta := range f {
			ss = append(ss, strconv.Itoa(int(meta.fileNum)))
		}
		sort.Strings(ss)
		return strings.Join(ss, ",")
	}

	datadriven.RunTest(t, "testdata/compaction_pick", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "define":
			v := parseCompactionVersion(t, td.Input)
			if td.HasArg("level") {
				var level int
				td.ScanArgs(t, "level", &level)
				v.compactionScore = 99
				v.compactionLevel = level
			}
			vs = &versionSet{ucmp: base.DefaultCompare}
			vs.dummyVersion.prev = &vs.dummyVersion
			vs.dummyVersion.next = &vs.dummyVersion
			vs.append(v)
			v.ref()
			vs.currentVer = v
			return "ok\n"

		case "pick-compaction":
			c := pickCompaction(vs)
			if c == nil {
				return "(none)\n"
			}
			return fmt.Sprintf("L%d: [%s] [%s] [%s]\n",
				c.level, fileNums(c.inputs[0]), fileNums(c.inputs[1]), fileNums(c.inputs[2]))

		default:
			t.Fatalf("unknown command %q", td.Cmd)
			return ""
		}
	})
}
