// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import "github.com/FrankFSM/ldb/base"

// Iterator walks a database's key/value pairs in ascending key order, per
// spec section 4.10. It is built on top of a mergingIter over every
// memtable and table source live at the time NewIter was called, adding
// the three things a mergingIter deliberately leaves to its caller:
// hiding all but the newest version of each user key, dropping tombstones,
// and restricting visibility to entries at or before a snapshot sequence
// number.
//
// An Iterator must be closed; until it is, the version (and thus the table
// files) it was opened against stays pinned even if compaction has since
// rewritten them away.
type Iterator struct {
	cmp      base.Compare
	mi       *mergingIter
	snapshot base.SeqNum

	db       *DB
	version  *version
	closeFns []func()

	valid        bool
	haveLast     bool
	groupDecided bool
	lastUserKey  []byte
	key          []byte
	value        []byte
}

// First positions the iterator at the smallest visible key.
func (it *Iterator) First() bool {
	it.haveLast = false
	if !it.mi.First() {
		it.valid = false
		return false
	}
	return it.findNextVisible()
}

// Next advances the iterator to the next visible key.
func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	return it.findNextVisible()
}

// findNextVisible scans forward from the merging iterator's current
// position to the next user key with a visible, non-tombstone entry.
// Entries for a given user key arrive from the merging iterator newest
// sequence number first, so the first entry of a freshly-seen group that
// is at or before the snapshot is exactly the version that group should
// expose; everything else in the group, older or newer, is shadowed.
func (it *Iterator) findNextVisible() bool {
	for it.mi.Valid() {
		key := it.mi.Key()
		sameGroup := it.haveLast && it.cmp(key.UserKey, it.lastUserKey) == 0
		if !sameGroup {
			it.haveLast = true
			it.lastUserKey = append(it.lastUserKey[:0], key.UserKey...)
			it.groupDecided = false
		}
		if sameGroup && it.groupDecided {
			it.mi.Next()
			continue
		}
		if key.SeqNum() > it.snapshot {
			it.mi.Next()
			continue
		}
		it.groupDecided = true
		if key.Kind() == base.InternalKeyKindDelete {
			it.mi.Next()
			continue
		}
		it.valid = true
		it.key = append(it.key[:0], key.UserKey...)
		it.value = append(it.value[:0], it.mi.Value()...)
		it.mi.Next()
		return true
	}
	it.valid = false
	return false
}

// Key returns the current entry's user key. The returned slice is only
// valid until the next call to Next or Close.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the current entry's value. The returned slice is only
// valid until the next call to Next or Close.
func (it *Iterator) Value() []byte { return it.value }

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.valid }

// Close releases every resource the iterator holds, including its pin on
// the version it was opened against.
func (it *Iterator) Close() error {
	err := it.mi.Close()
	for _, fn := range it.closeFns {
		fn()
	}
	if it.db != nil && it.version != nil {
		it.db.mu.Lock()
		it.version.unref()
		it.db.mu.Unlock()
	}
	return err
}
