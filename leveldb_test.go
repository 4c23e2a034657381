// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"testing"

	"github.com/FrankFSM/ldb/base"
	"github.com/FrankFSM/ldb/vfs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, opts *Options) *DB {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	if opts.FileSystem == nil {
		opts.FileSystem = vfs.NewMem()
	}
	opts.CreateIfMissing = true
	d, err := Open("", opts)
	require.NoError(t, err)
	return d
}

func TestGetSetDelete(t *testing.T) {
	d := openTestDB(t, nil)
	defer func() { require.NoError(t, d.Close()) }()

	_, err := d.Get([]byte("missing"), nil)
	require.True(t, base.IsNotFound(err))

	require.NoError(t, d.Set([]byte("foo"), []byte("bar"), nil))
	v, err := d.Get([]byte("foo"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), v)

	require.NoError(t, d.Set([]byte("foo"), []byte("baz"), nil))
	v, err = d.Get([]byte("foo"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("baz"), v)

	require.NoError(t, d.Delete([]byte("foo"), nil))
	_, err = d.Get([]byte("foo"), nil)
	require.True(t, base.IsNotFound(err))
}

func TestApplyBatchIsAtomic(t *testing.T) {
	d := openTestDB(t, nil)
	defer func() { require.NoError(t, d.Close()) }()

	b := NewBatch()
	b.Set([]byte("a"), []byte("1"))
	b.Set([]byte("b"), []byte("2"))
	b.Delete([]byte("c"))
	require.NoError(t, d.Apply(b, &WriteOptions{Sync: true}))

	for _, kv := range [][2]string{{"a", "1"}, {"b", "2"}} {
		v, err := d.Get([]byte(kv[0]), nil)
		require.NoError(t, err)
		require.Equal(t, kv[1], string(v))
	}
	_, err := d.Get([]byte("c"), nil)
	require.True(t, base.IsNotFound(err))
}

func TestConcurrentApply(t *testing.T) {
	d := openTestDB(t, nil)
	defer func() { require.NoError(t, d.Close()) }()

	const n = 64
	errc := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			b := NewBatch()
			b.Set([]byte{byte(i)}, []byte{byte(i)})
			errc <- d.Apply(b, nil)
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errc)
	}
	for i := 0; i < n; i++ {
		v, err := d.Get([]byte{byte(i)}, nil)
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i)}, v)
	}
}

// TestSnapshotSurvivesCompaction reproduces the scenario from spec section
// 8's snapshot-isolation example: a snapshot taken before a key is
// overwritten must still see the old value after a compaction has run,
// because a compaction may never drop a key version some live snapshot can
// still observe.
func TestSnapshotSurvivesCompaction(t *testing.T) {
	d := openTestDB(t, nil)
	defer func() { require.NoError(t, d.Close()) }()

	require.NoError(t, d.Set([]byte("k"), []byte("v1"), &WriteOptions{Sync: true}))
	flushMemtableForTest(t, d)

	snap := d.NewSnapshot()
	defer func() { require.NoError(t, snap.Close()) }()

	require.NoError(t, d.Set([]byte("k"), []byte("v2"), &WriteOptions{Sync: true}))
	flushMemtableForTest(t, d)

	// Two level-0 files now both cover "k". Compacting them down to level 1
	// forces the merge/dedup path in runCompaction to choose whether the
	// older version survives.
	require.NoError(t, d.CompactRange(nil, nil))

	v, err := d.Get([]byte("k"), nil)
	require.NoError(t, err)
	require.Equal(t, "v2", string(v))

	v, err = d.Get([]byte("k"), &ReadOptions{Snapshot: snap})
	require.NoError(t, err)
	require.Equal(t, "v1", string(v))
}

// TestDeleteTombstoneDroppedAtBaseLevel verifies that a Delete tombstone is
// eventually compacted away once nothing below it can still be shadowing a
// live snapshot's view of the key, per spec section 4.11.
func TestDeleteTombstoneDroppedAtBaseLevel(t *testing.T) {
	d := openTestDB(t, nil)
	defer func() { require.NoError(t, d.Close()) }()

	require.NoError(t, d.Set([]byte("k"), []byte("v1"), &WriteOptions{Sync: true}))
	flushMemtableForTest(t, d)
	require.NoError(t, d.CompactRange(nil, nil))

	require.NoError(t, d.Delete([]byte("k"), &WriteOptions{Sync: true}))
	flushMemtableForTest(t, d)
	require.NoError(t, d.CompactRange(nil, nil))

	_, err := d.Get([]byte("k"), nil)
	require.True(t, base.IsNotFound(err))

	m := d.Metrics()
	for level := range m.Levels {
		require.Zero(t, m.Levels[level].NumFiles, "level %d", level)
	}
}

// TestRecover checks that a reopened database sees every write applied
// before the previous handle was closed, exercising both the WAL-replay and
// manifest-load halves of Open's Recover procedure.
func TestRecover(t *testing.T) {
	fs := vfs.NewMem()

	d := openTestDB(t, &Options{FileSystem: fs})
	require.NoError(t, d.Set([]byte("a"), []byte("1"), &WriteOptions{Sync: true}))
	flushMemtableForTest(t, d)
	require.NoError(t, d.Set([]byte("b"), []byte("2"), &WriteOptions{Sync: true}))
	require.NoError(t, d.Close())

	d2, err := Open("", &Options{FileSystem: fs})
	require.NoError(t, err)
	defer func() { require.NoError(t, d2.Close()) }()

	v, err := d2.Get([]byte("a"), nil)
	require.NoError(t, err)
	require.Equal(t, "1", string(v))

	v, err = d2.Get([]byte("b"), nil)
	require.NoError(t, err)
	require.Equal(t, "2", string(v))
}

// flushMemtableForTest forces whatever is in d.mem to a level-0 table,
// synchronously, so tests can build a deterministic on-disk level shape
// without waiting on the background compaction goroutine.
func flushMemtableForTest(t *testing.T, d *DB) {
	t.Helper()
	d.mu.Lock()
	for d.imm != nil {
		d.compactionCond.Wait()
	}
	if d.mem.Empty() {
		d.mu.Unlock()
		return
	}
	require.NoError(t, d.makeRoomForWrite(true))
	for d.imm != nil {
		d.compactionCond.Wait()
	}
	d.mu.Unlock()
}
