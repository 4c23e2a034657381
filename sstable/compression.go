package sstable

import (
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// compressBlock compresses b per c, the compression named in spec section
// 4.4: none, snappy-family, zstd-family.
func compressBlock(c Compression, b []byte) ([]byte, error) {
	switch c {
	case NoCompression:
		return b, nil
	case SnappyCompression:
		return snappy.Encode(nil, b), nil
	case ZstdCompression:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(b, nil), nil
	default:
		return nil, errUnknownCompr
	}
}

// decompressBlock reverses compressBlock. Readers must refuse unknown
// compression types as Corruption, per spec section 4.4.
func decompressBlock(c Compression, b []byte) ([]byte, error) {
	switch c {
	case NoCompression:
		return b, nil
	case SnappyCompression:
		n, err := snappy.DecodedLen(b)
		if err != nil {
			return nil, errBadChecksum
		}
		buf := make([]byte, n)
		decoded, err := snappy.Decode(buf, b)
		if err != nil {
			return nil, errBadChecksum
		}
		return decoded, nil
	case ZstdCompression:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(b, nil)
	default:
		return nil, errUnknownCompr
	}
}

var (
	zstdEncoderOnce   sync.Once
	sharedZstdEncoder *zstd.Encoder
	zstdEncoderErr    error

	zstdDecoderOnce   sync.Once
	sharedZstdDecoder *zstd.Decoder
	zstdDecoderErr    error
)

// zstdEncoder lazily builds a package-wide encoder, safe to call
// concurrently from readers and the background compaction goroutine alike.
// The zstd package recommends reusing encoders/decoders across calls rather
// than constructing one per block.
func zstdEncoder() (*zstd.Encoder, error) {
	zstdEncoderOnce.Do(func() {
		sharedZstdEncoder, zstdEncoderErr = zstd.NewWriter(nil)
	})
	return sharedZstdEncoder, zstdEncoderErr
}

func zstdDecoder() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		sharedZstdDecoder, zstdDecoderErr = zstd.NewReader(nil)
	})
	return sharedZstdDecoder, zstdDecoderErr
}
