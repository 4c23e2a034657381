package sstable

import (
	"bytes"
	"testing"

	"github.com/FrankFSM/ldb/base"
)

func TestRoundTripSmall(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewWriter(buf, WriterOptions{})
	if err := w.Add(base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	t.Logf("len=%d", len(data))
	r, err := NewReader(byteReaderAt{data}, int64(len(data)), ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	_ = r
}
