// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record reads and writes sequences of records. Each record is a
// variable-length byte string, fragmented into 7-byte-header chunks that
// are packed into fixed-size physical blocks, per spec section 4.2. A
// record's fragments are typed Full, First, Middle or Last; a fragment
// never crosses a block boundary, and the reader reassembles fragments
// while tolerating a corrupt or truncated trailing record during crash
// recovery.
package record

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// Per-block layout, mirroring LevelDB's log_format.txt.
const (
	blockSize  = 32768
	headerSize = 7
)

type recordType byte

const (
	fullChunkType   recordType = 1
	firstChunkType  recordType = 2
	middleChunkType recordType = 3
	lastChunkType   recordType = 4
)

// ErrCorrupt is returned by a Reader in paranoid mode when a chunk fails
// its checksum or is otherwise malformed.
var ErrCorrupt = errors.New("record: corrupt log file")

// Writer writes a sequence of records, each fragmented into 7-byte-header
// chunks packed into 32 KiB blocks.
type Writer struct {
	w   io.Writer
	err error

	block [blockSize]byte
	n     int // bytes of block currently in use

	started bool
	pending []byte
}

// NewWriter returns a new Writer that writes records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Next returns a writer for the next record. It must be fully written
// before Next is called again or the Writer is closed.
func (w *Writer) Next() (io.Writer, error) {
	if err := w.finishPending(); err != nil {
		return nil, err
	}
	w.pending = w.pending[:0]
	w.started = true
	return recordWriter{w}, nil
}

type recordWriter struct{ w *Writer }

func (rw recordWriter) Write(p []byte) (int, error) {
	rw.w.pending = append(rw.w.pending, p...)
	return len(p), nil
}

// WriteRecord writes a complete record in one call.
func (w *Writer) WriteRecord(p []byte) error {
	if _, err := w.Next(); err != nil {
		return err
	}
	w.pending = append(w.pending[:0], p...)
	return w.finishPending()
}

func (w *Writer) finishPending() error {
	if !w.started {
		return w.err
	}
	w.started = false
	return w.emit(w.pending)
}

// emit fragments p into the block buffer, flushing full blocks as it goes.
func (w *Writer) emit(p []byte) error {
	first := true
	for {
		if w.err != nil {
			return w.err
		}
		leftover := blockSize - w.n
		if leftover < headerSize {
			if err := w.flush(true /* pad */); err != nil {
				return err
			}
			leftover = blockSize
		}
		avail := leftover - headerSize
		n := len(p)
		last := true
		if n > avail {
			n, last = avail, false
		}

		var typ recordType
		switch {
		case first && last:
			typ = fullChunkType
		case first:
			typ = firstChunkType
		case last:
			typ = lastChunkType
		default:
			typ = middleChunkType
		}

		payload := p[:n]
		checksum := crc32cUpdate(crc32cUpdate(0, []byte{byte(typ)}), payload)
		h := w.block[w.n : w.n+headerSize]
		binary.LittleEndian.PutUint32(h[0:4], checksum)
		binary.LittleEndian.PutUint16(h[4:6], uint16(n))
		h[6] = byte(typ)
		copy(w.block[w.n+headerSize:w.n+headerSize+n], payload)
		w.n += headerSize + n
		p = p[n:]
		first = false

		if last {
			if w.n == blockSize {
				return w.flush(false)
			}
			return nil
		}
		if err := w.flush(false); err != nil {
			return err
		}
	}
}

// flush writes the buffered block to the underlying writer. If pad is true
// the remainder of the block is zero-filled first, matching spec section
// 4.2's rule that a fragment header never crosses a block boundary.
func (w *Writer) flush(pad bool) error {
	if w.err != nil {
		return w.err
	}
	n := w.n
	if pad {
		for i := n; i < blockSize; i++ {
			w.block[i] = 0
		}
		n = blockSize
	}
	if n > 0 {
		_, w.err = w.w.Write(w.block[:n])
	}
	w.n = 0
	return w.err
}

// Close flushes any buffered data.
func (w *Writer) Close() error {
	if err := w.finishPending(); err != nil {
		return err
	}
	return w.flush(false)
}

// Flush writes any buffered data to the underlying writer without closing
// it, so a caller can fsync the file afterwards and keep writing more
// records.
func (w *Writer) Flush() error {
	if err := w.finishPending(); err != nil {
		return err
	}
	return w.flush(false)
}

// Reader reads a sequence of records from an underlying io.Reader.
type Reader struct {
	r        io.Reader
	paranoid bool

	buf  [blockSize]byte
	i, j int
	n    int
	last bool
	err  error
	eof  bool
}

// NewReader returns a new Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// NewParanoidReader is like NewReader but fails (ErrCorrupt) rather than
// silently truncating on trailing corruption, per spec section 4.7's
// paranoid_checks knob.
func NewParanoidReader(r io.Reader) *Reader {
	return &Reader{r: r, paranoid: true}
}

func (r *Reader) readBlock() bool {
	if r.eof {
		return false
	}
	n, err := io.ReadFull(r.r, r.buf[:])
	switch err {
	case nil:
	case io.ErrUnexpectedEOF:
		r.eof = true
	case io.EOF:
		r.eof = true
		return false
	default:
		r.err = err
		return false
	}
	r.i, r.j, r.n = 0, 0, n
	return true
}

// Next prepares the Reader to read the next record's bytes via Read.
func (r *Reader) Next() error {
	r.i = r.j
	r.last = false
	for {
		if r.j+headerSize > r.n {
			if !r.readBlock() {
				if r.err != nil {
					return r.err
				}
				return io.EOF
			}
			continue
		}
		checksum := binary.LittleEndian.Uint32(r.buf[r.j+0 : r.j+4])
		length := int(binary.LittleEndian.Uint16(r.buf[r.j+4 : r.j+6]))
		typ := recordType(r.buf[r.j+6])
		start := r.j + headerSize
		end := start + length
		if end > r.n {
			return r.corrupt("chunk length overflows block")
		}
		got := crc32cUpdate(crc32cUpdate(0, []byte{byte(typ)}), r.buf[start:end])
		if got != checksum {
			return r.corrupt("checksum mismatch")
		}
		switch typ {
		case fullChunkType:
			r.i, r.j = start, end
			r.last = true
			return nil
		case firstChunkType:
			r.i, r.j = start, end
			return nil
		default:
			return r.corrupt("missing first chunk")
		}
	}
}

func (r *Reader) corrupt(reason string) error {
	if r.paranoid {
		r.err = errors.Mark(errors.Newf("record: corrupt record (%s)", reason), ErrCorrupt)
		return r.err
	}
	r.eof = true
	return io.EOF
}

// Read implements io.Reader, returning the bytes of the current record,
// transparently advancing across Middle/Last continuation chunks.
func (r *Reader) Read(p []byte) (int, error) {
	for r.i == r.j {
		if r.last || r.err != nil {
			return 0, io.EOF
		}
		if err := r.nextChunk(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.buf[r.i:r.j])
	r.i += n
	return n, nil
}

func (r *Reader) nextChunk() error {
	for {
		if r.j+headerSize > r.n {
			if !r.readBlock() {
				if r.err != nil {
					return r.err
				}
				return r.corrupt("missing continuation chunk")
			}
			continue
		}
		checksum := binary.LittleEndian.Uint32(r.buf[r.j+0 : r.j+4])
		length := int(binary.LittleEndian.Uint16(r.buf[r.j+4 : r.j+6]))
		typ := recordType(r.buf[r.j+6])
		start := r.j + headerSize
		end := start + length
		if end > r.n {
			return r.corrupt("chunk length overflows block")
		}
		got := crc32cUpdate(crc32cUpdate(0, []byte{byte(typ)}), r.buf[start:end])
		if got != checksum {
			return r.corrupt("checksum mismatch")
		}
		switch typ {
		case middleChunkType:
			r.i, r.j = start, end
			return nil
		case lastChunkType:
			r.i, r.j = start, end
			r.last = true
			return nil
		default:
			return r.corrupt("unexpected chunk type in continuation")
		}
	}
}
