// Package compress implements the blob payload codecs the OSM PBF format can
// declare: the required DEFLATE path and the optional LZ4/Zstandard paths.
//
// Every Decompressor writes into a caller-supplied destination slice sized
// to exactly the blob's declared uncompressed length, rather than returning
// a newly allocated slice. The framer's decompression pool pre-grows one
// arena shared by all its workers and hands out sub-slices of it so a multi-GB file
// decodes through a handful of long-lived allocations.
package compress

import "github.com/osmpbf/streamreader/errs"

// Decompressor decompresses a single blob payload into dst, which callers
// size to exactly the blob's declared raw (uncompressed) length. Returns
// errs.ErrDecompressFailed if src is corrupt, or if the decompressed output
// is not exactly len(dst) bytes.
type Decompressor interface {
	Decompress(dst, src []byte) error
}

// MaxCompressionRatio bounds how much larger a blob's declared raw_size may
// be than its compressed payload before it is rejected as a probable
// zip-bomb rather than decompressed.
const MaxCompressionRatio = 100

// CheckRatio rejects a blob whose declared uncompressed size is
// disproportionate to its compressed size. compressedLen is the number of
// bytes actually present on the wire; declaredSize is the raw_size field the
// producer claims it will expand to.
func CheckRatio(compressedLen, declaredSize int) error {
	if compressedLen <= 0 {
		if declaredSize > 0 {
			return errs.ErrCompressedRatioTooHigh
		}
		return nil
	}
	if declaredSize > compressedLen*MaxCompressionRatio {
		return errs.ErrCompressedRatioTooHigh
	}
	return nil
}

// ForType returns the Decompressor registered for the given blob field
// number (3=zlib, 6=lz4, 7=zstd), or nil if the field number does not name a
// supported codec.
func ForType(fieldNumber uint32) Decompressor {
	switch fieldNumber {
	case 3:
		return zlibCodec
	case 6:
		return lz4Codec
	case 7:
		return zstdCodec
	default:
		return nil
	}
}
