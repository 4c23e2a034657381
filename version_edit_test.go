// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/FrankFSM/ldb/base"
)

func TestVersionEditDecode(t *testing.T) {
	testCases := []struct {
		desc         string
		encodedEdits []string
		edits        []versionEdit
	}{
		// These two records are the manifest produced by opening a brand
		// new database: a comparator-name record, followed by the initial
		// log/file-number bookkeeping record.
		{
			desc: "fresh database, no table files yet",
			encodedEdits: []string{
				"\x01\x1aleveldb.BytewiseComparator",
				"\x02\x03\x09\x00\x03\x04\x04\x00",
			},
			edits: []versionEdit{
				{
					comparatorName: "leveldb.BytewiseComparator",
				},
				{
					logNumber:      3,
					prevLogNumber:  0,
					nextFileNumber: 4,
					lastSequence:   0,
				},
			},
		},
		// This one adds a single level-0 table spanning "bar" to "foo".
		{
			desc: "one level-0 table",
			encodedEdits: []string{
				"\x01\x1aleveldb.BytewiseComparator",
				"\x02\x06\x09\x00\x03\x07\x04\x05\x07\x00\x05\xa5\x01" +
					"\x0bbar\x00\x05\x00\x00\x00\x00\x00\x00" +
					"\x0bfoo\x01\x01\x00\x00\x00\x00\x00\x00",
			},
			edits: []versionEdit{
				{
					comparatorName: "leveldb.BytewiseComparator",
				},
				{
					logNumber:      6,
					prevLogNumber:  0,
					nextFileNumber: 7,
					lastSequence:   5,
					newFiles: []newFileEntry{
						{
							level: 0,
							meta: fileMetadata{
								fileNum:      5,
								size:         165,
								smallest:     base.DecodeInternalKey([]byte("bar\x00\x05\x00\x00\x00\x00\x00\x00")),
								largest:      base.DecodeInternalKey([]byte("foo\x01\x01\x00\x00\x00\x00\x00\x00")),
								allowedSeeks: seeksAllowed(165),
							},
						},
					},
				},
			},
		},
	}

	for _, tc := range testCases {
		for i, encoded := range tc.encodedEdits {
			var edit versionEdit
			if err := edit.decode(bytes.NewReader([]byte(encoded))); err != nil {
				t.Errorf("desc=%q i=%d: decode error: %v", tc.desc, i, err)
				continue
			}
			if !reflect.DeepEqual(edit, tc.edits[i]) {
				t.Errorf("desc=%q i=%d:\n\tgot  %#v\n\twant %#v", tc.desc, i, edit, tc.edits[i])
			}
		}
	}
}
