package sstable

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/FrankFSM/ldb/base"
)

func TestRoundTripDump(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewWriter(buf, WriterOptions{})
	if err := w.Add(base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	fmt.Printf("total=%d\n", len(data))
	footerBuf := data[len(data)-footerLen:]
	ft, err := decodeFooter(footerBuf)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Printf("metaindex=%+v index=%+v\n", ft.metaindex, ft.index)
	fmt.Printf("data=%x\n", data)
}

func TestRoundTripDump2(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewWriter(buf, WriterOptions{})
	if err := w.Add(base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	r := &Reader{r: byteReaderAt{data}, size: int64(len(data)), opts: ReaderOptions{Comparer: base.DefaultComparer}, cmp: base.DefaultCompare}
	blk, err := r.readBlock(blockHandle{offset: 0, length: 21})
	fmt.Printf("data block err=%v len=%d\n", err, len(blk))
}
