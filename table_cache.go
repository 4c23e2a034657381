// Copyright 2013 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"context"
	"os"
	"sync"

	"github.com/FrankFSM/ldb/base"
	"github.com/FrankFSM/ldb/sstable"
	"github.com/FrankFSM/ldb/vfs"
	"golang.org/x/sync/semaphore"
)

// tableCache bounds the number of open table files and cached sstable
// readers, per spec section 6's "table cache implementation... specified
// only by its contract": a single reference-counted LRU list over
// fileNum -> *sstable.Reader. openFiles additionally bounds the number of
// fds open at once to MaxOpenFiles, independent of how many cache nodes
// the LRU itself is willing to retain.
type tableCache struct {
	dirname   string
	fs        vfs.FS
	opts      *Options
	size      int
	openFiles *semaphore.Weighted

	mu    sync.Mutex
	nodes map[uint64]*tableCacheNode
	dummy tableCacheNode
}

func (c *tableCache) init(dirname string, fs vfs.FS, opts *Options, size int) {
	c.dirname = dirname
	c.fs = fs
	c.opts = opts
	c.size = size
	c.openFiles = semaphore.NewWeighted(int64(opts.MaxOpenFiles))
	c.nodes = make(map[uint64]*tableCacheNode)
	c.dummy.next = &c.dummy
	c.dummy.prev = &c.dummy
}

// get implements tableFinder: a point lookup within a single table file.
func (c *tableCache) get(fileNum uint64, key base.InternalKey) ([]byte, base.InternalKey, bool, error) {
	n := c.findNode(fileNum)
	x := <-n.result
	if x.err != nil {
		c.mu.Lock()
		n.refCount--
		if n.refCount == 0 {
			go n.release(c)
		}
		c.mu.Unlock()

		// The error may be transient (e.g. the table was briefly unavailable
		// mid-compaction rename); retry on the next lookup.
		go n.load(c)
		return nil, base.InternalKey{}, false, x.err
	}
	n.result <- x

	foundKey, value, err := x.reader.Get(key)
	c.mu.Lock()
	n.refCount--
	if n.refCount == 0 {
		go n.release(c)
	}
	c.mu.Unlock()

	if err != nil {
		if base.IsNotFound(err) {
			return nil, base.InternalKey{}, false, nil
		}
		return nil, base.InternalKey{}, false, err
	}
	return value, foundKey, true, nil
}

// newIter opens an iterator over fileNum's table, pinning its cache node
// open until the returned closeFn is called. Used by levelIter and by
// compaction, which need the underlying reader to stay valid for the
// iterator's whole lifetime rather than just for a single Get.
func (c *tableCache) newIter(fileNum uint64) (*sstable.Iterator, func(), error) {
	n := c.findNode(fileNum)
	release := func() {
		c.mu.Lock()
		n.refCount--
		if n.refCount == 0 {
			go n.release(c)
		}
		c.mu.Unlock()
	}

	x := <-n.result
	n.result <- x
	if x.err != nil {
		release()
		return nil, func() {}, x.err
	}
	it, err := x.reader.NewIter()
	if err != nil {
		release()
		return nil, func() {}, err
	}
	return it, release, nil
}

func (c *tableCache) releaseNode(n *tableCacheNode) {
	delete(c.nodes, n.fileNum)
	n.next.prev = n.prev
	n.prev.next = n.next
	n.refCount--
	if n.refCount == 0 {
		go n.release(c)
	}
}

func (c *tableCache) findNode(fileNum uint64) *tableCacheNode {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.nodes[fileNum]
	if n == nil {
		n = &tableCacheNode{
			fileNum:  fileNum,
			refCount: 1,
			result:   make(chan tableReaderOrError, 1),
		}
		c.nodes[fileNum] = n
		if len(c.nodes) > c.size {
			c.releaseNode(c.dummy.prev)
		}
		go n.load(c)
	} else {
		n.next.prev = n.prev
		n.prev.next = n.next
	}
	n.next = c.dummy.next
	n.prev = &c.dummy
	n.next.prev = n
	n.prev.next = n
	n.refCount++
	return n
}

// evict drops fileNum's cache node and any blocks of it held in the shared
// block cache, called once a file has been deleted so a later reuse of the
// same file number can't observe stale cached blocks.
func (c *tableCache) evict(fileNum uint64) {
	c.mu.Lock()
	if n := c.nodes[fileNum]; n != nil {
		c.releaseNode(n)
	}
	c.mu.Unlock()

	if c.opts.Cache != nil {
		c.opts.Cache.EvictFile(fileNum)
	}
}

func (c *tableCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n := c.dummy.next; n != &c.dummy; n = n.next {
		n.refCount--
		if n.refCount == 0 {
			go n.release(c)
		}
	}
	c.nodes = nil
	c.dummy.next = nil
	c.dummy.prev = nil
	return nil
}

type tableReaderOrError struct {
	reader *sstable.Reader
	file   vfs.File
	err    error
}

type tableCacheNode struct {
	fileNum uint64
	result  chan tableReaderOrError

	// The remaining fields are protected by the tableCache mutex.
	next, prev *tableCacheNode
	refCount   int
}

func (n *tableCacheNode) load(c *tableCache) {
	if err := c.openFiles.Acquire(context.Background(), 1); err != nil {
		n.result <- tableReaderOrError{err: err}
		return
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.TableCacheOpens.Inc()
	}

	// Try the primary .ldb extension first, falling back to .sst, per
	// spec section 6's directory layout.
	f, err := c.fs.Open(dbFilename(c.dirname, fileTypeTable, n.fileNum))
	if os.IsNotExist(err) {
		f, err = c.fs.Open(dbFilename(c.dirname, fileTypeOldFashionedTable, n.fileNum))
	}
	if err != nil {
		c.openFiles.Release(1)
		n.result <- tableReaderOrError{err: err}
		return
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		c.openFiles.Release(1)
		n.result <- tableReaderOrError{err: err}
		return
	}
	reader, err := sstable.NewReader(f, stat.Size(), c.opts.readerOptions(n.fileNum))
	if err != nil {
		f.Close()
		c.openFiles.Release(1)
		n.result <- tableReaderOrError{err: err}
		return
	}
	n.result <- tableReaderOrError{reader: reader, file: f}
}

func (n *tableCacheNode) release(c *tableCache) {
	x := <-n.result
	if x.err != nil {
		return
	}
	if x.file != nil {
		x.file.Close()
		c.openFiles.Release(1)
	}
}
