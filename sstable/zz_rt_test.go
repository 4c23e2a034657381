package sstable

import (
	"bytes"
	"testing"

	"github.com/FrankFSM/ldb/base"
)

type byteReaderAt struct{ b []byte }

func (r byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.b)) {
		return 0, errEOFx
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, errEOFx
	}
	return n, nil
}

type errStrX string

func (e errStrX) Error() string { return string(e) }

var errEOFx = errStrX("EOF")

func TestRoundTripX(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewWriter(buf, WriterOptions{})
	for i := 0; i < 2000; i++ {
		k := base.MakeInternalKey([]byte{byte(i >> 8), byte(i)}, base.SeqNum(i), base.InternalKeyKindSet)
		if err := w.Add(k, []byte("valuevaluevalue")); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	r, err := NewReader(byteReaderAt{data}, int64(len(data)), ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	it, err := r.NewIter()
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for ok := it.First(); ok; ok = it.Next() {
		count++
	}
	if count != 2000 {
		t.Fatalf("got %d want 2000", count)
	}
}
