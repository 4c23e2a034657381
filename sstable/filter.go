package sstable

import (
	"sort"

	"github.com/FrankFSM/ldb/bloom"
)

// FilterPolicy builds and probes a per-block filter keyed by the data
// block's user keys, per spec section 4.4/4.5.
type FilterPolicy interface {
	Name() string
	MayContain(filter, key []byte) bool
	NewFilter(keys [][]byte) []byte
}

// BloomFilterPolicy is the bloom-style policy named by spec section 4.4; it
// wraps the teacher's own hand-rolled filter (bloom.Filter), which needs no
// third-party dependency since it is already the reference bloom filter
// this spec calls for.
type BloomFilterPolicy struct {
	BitsPerKey int
}

func (p *BloomFilterPolicy) Name() string { return "leveldb.BuiltinBloomFilter" }

func (p *BloomFilterPolicy) NewFilter(keys [][]byte) []byte {
	return bloom.NewFilter(nil, keys, p.BitsPerKey)
}

func (p *BloomFilterPolicy) MayContain(filter, key []byte) bool {
	return bloom.Filter(filter).MayContain(key)
}

// filterWriter accumulates one filter per data block as a table is built,
// recording each data block's starting offset so a reader holding only a
// block's offset (from the index block) can find its filter without
// re-deriving block boundaries.
type filterWriter struct {
	policy       FilterPolicy
	pendingKeys  [][]byte
	blockOffsets []uint64
	filters      [][]byte
}

func newFilterWriter(policy FilterPolicy) *filterWriter {
	if policy == nil {
		return nil
	}
	return &filterWriter{policy: policy}
}

func (f *filterWriter) startBlock(offset uint64) {
	if f == nil {
		return
	}
	f.blockOffsets = append(f.blockOffsets, offset)
}

func (f *filterWriter) addKey(key []byte) {
	if f == nil {
		return
	}
	k := make([]byte, len(key))
	copy(k, key)
	f.pendingKeys = append(f.pendingKeys, k)
}

// finishBlock seals the filter for the data block most recently started.
func (f *filterWriter) finishBlock() {
	if f == nil {
		return
	}
	f.filters = append(f.filters, f.policy.NewFilter(f.pendingKeys))
	f.pendingKeys = f.pendingKeys[:0]
}

// finish returns the encoded filter block: the concatenated filter bytes,
// followed by one fixed32 length per filter, followed by a trailing
// fixed32 count of filters.
func (f *filterWriter) finish() []byte {
	if f == nil {
		return nil
	}
	var buf []byte
	var lens []byte
	for _, filt := range f.filters {
		buf = append(buf, filt...)
		lens = appendFixed32(lens, uint32(len(filt)))
	}
	buf = append(buf, lens...)
	buf = appendFixed32(buf, uint32(len(f.filters)))
	return buf
}

func appendFixed32(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// blockStartOffsets returns the recorded data-block start offsets. The
// table writer does not persist them: the meta-index value holds only the
// filter block's handle, and a reader recovers the same offsets from the
// index block (Reader.dataBlockOffsets).
func (f *filterWriter) blockStartOffsets() []uint64 {
	if f == nil {
		return nil
	}
	return f.blockOffsets
}

// filterReader probes the filter block built by filterWriter, given the
// parallel list of data-block start offsets recovered from the table's
// index block.
type filterReader struct {
	policy      FilterPolicy
	filters     [][]byte
	blockOffset []uint64
}

func newFilterReader(policy FilterPolicy, block []byte, blockOffsets []uint64) *filterReader {
	if len(block) < 4 {
		return nil
	}
	count := int(readFixed32(block[len(block)-4:]))
	block = block[:len(block)-4]
	if len(block) < count*4 {
		return nil
	}
	lensBuf := block[len(block)-count*4:]
	data := block[:len(block)-count*4]

	filters := make([][]byte, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		l := int(readFixed32(lensBuf[i*4:]))
		if off+l > len(data) {
			return nil
		}
		filters = append(filters, data[off:off+l])
		off += l
	}
	return &filterReader{policy: policy, filters: filters, blockOffset: blockOffsets}
}

func readFixed32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// mayContain reports whether the filter for the data block starting at
// blockOffset may contain key.
func (r *filterReader) mayContain(blockOffset uint64, key []byte) bool {
	if r == nil {
		return true
	}
	i := sort.Search(len(r.blockOffset), func(i int) bool { return r.blockOffset[i] >= blockOffset })
	if i >= len(r.blockOffset) || r.blockOffset[i] != blockOffset || i >= len(r.filters) {
		return true
	}
	return r.policy.MayContain(r.filters[i], key)
}

