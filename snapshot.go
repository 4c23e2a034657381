// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import "github.com/FrankFSM/ldb/base"

// Snapshot pins the database at a sequence number, per spec section 4:
// reads made through a ReadOptions naming this snapshot see the database
// exactly as it was when the snapshot was taken, regardless of writes (or
// compactions) that happen afterwards.
type Snapshot struct {
	seqNum base.SeqNum
	db     *DB
	prev, next *Snapshot
}

// SeqNum returns the sequence number the snapshot is pinned to.
func (s *Snapshot) SeqNum() base.SeqNum { return s.seqNum }

// Close releases the snapshot. Until every outstanding snapshot below a
// given sequence number is closed, compaction must keep every version of a
// key visible at or before that sequence number, per spec section 4's
// ref-counting discipline.
func (s *Snapshot) Close() error {
	s.db.releaseSnapshot(s)
	return nil
}

// snapshotList is a circular doubly-linked list of live snapshots, ordered
// by nothing in particular -- minSeqNum below is a linear scan, since the
// list is expected to stay small.
type snapshotList struct {
	dummy Snapshot
}

func (l *snapshotList) init() {
	l.dummy.next = &l.dummy
	l.dummy.prev = &l.dummy
}

func (l *snapshotList) pushBack(s *Snapshot) {
	s.prev = l.dummy.prev
	s.next = &l.dummy
	s.prev.next = s
	s.next.prev = s
}

func (l *snapshotList) remove(s *Snapshot) {
	s.prev.next = s.next
	s.next.prev = s.prev
	s.prev, s.next = nil, nil
}

// minSeqNum returns the smallest pinned sequence number, or upper if there
// are no live snapshots: a compaction may safely drop any version of a key
// older than whichever is smaller, since nothing will ever ask for it.
func (l *snapshotList) minSeqNum(upper base.SeqNum) base.SeqNum {
	min := upper
	for s := l.dummy.next; s != &l.dummy; s = s.next {
		if s.seqNum < min {
			min = s.seqNum
		}
	}
	return min
}
