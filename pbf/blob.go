// Package pbf implements the binary OSM PBF reader: the blob framing
// envelope, the parallel decompression pool, and the primitive-block decoder
// (string table, dense nodes, ways, relations).
package pbf

import (
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/varint"
	"github.com/osmpbf/streamreader/internal/wire"
)

// MaxBlobHeaderSize bounds a BlobHeader message's encoded length. Real OSM
// PBF files never exceed a few dozen bytes here; the cap exists purely to
// reject corrupt or hostile input before trusting a length as an allocation
// size.
const MaxBlobHeaderSize = 64 * 1024

// MaxBlobPayloadSize bounds a Blob message's encoded length (the compressed
// or raw bytes on the wire, not the decompressed size).
const MaxBlobPayloadSize = 64 * 1024 * 1024

// BlobHeader names and sizes the Blob message that immediately follows it on
// the wire.
type BlobHeader struct {
	Type      string
	IndexData []byte
	DataSize  int32
}

// DecodeBlobHeader parses a BlobHeader message.
//
//	message BlobHeader {
//	  required string type = 1;
//	  optional bytes indexdata = 2;
//	  required int32 datasize = 3;
//	}
func DecodeBlobHeader(buf []byte) (BlobHeader, error) {
	var h BlobHeader
	c := varint.NewCursor(buf)
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return BlobHeader{}, err
		}
		switch fieldNum {
		case 1:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return BlobHeader{}, err
			}
			h.Type = string(sub.Buf()[sub.Pos:sub.Limit])
		case 2:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return BlobHeader{}, err
			}
			h.IndexData = sub.Buf()[sub.Pos:sub.Limit]
		case 3:
			v, err := varint.ReadVarSInt32(c)
			if err != nil {
				return BlobHeader{}, err
			}
			h.DataSize = v
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return BlobHeader{}, err
			}
		}
	}
	if h.Type == "" {
		return BlobHeader{}, errs.ErrMissingRequiredField
	}
	return h, nil
}

// blobFieldRaw and friends are the field numbers of the Blob message's
// oneof-like data payload. Only one is ever set by a conformant producer.
const (
	blobFieldRaw      = 1
	blobFieldRawSize  = 2
	blobFieldZlib     = 3
	blobFieldLZMA     = 4
	blobFieldBzip2    = 5 // OBSOLETE, rejected
	blobFieldLZ4      = 6
	blobFieldZstd     = 7
)

// Blob is the parsed (but not yet decompressed) payload envelope.
//
//	message Blob {
//	  optional bytes raw = 1;
//	  optional int32 raw_size = 2;
//	  optional bytes zlib_data = 3;
//	  optional bytes lzma_data = 4;
//	  optional bytes OBSOLETE_bzip2_data = 5;
//	  optional bytes lz4_data = 6;
//	  optional bytes zstd_data = 7;
//	}
type Blob struct {
	// CodecField is 0 for Raw, otherwise one of blobFieldZlib/LZ4/Zstd
	// (DecodeBlob rejects LZMA and bzip2 payloads).
	CodecField uint32
	RawSize    int32
	// Data is the payload bytes for whichever field was set: the
	// already-decompressed bytes when CodecField is 0 (Raw), otherwise the
	// still-compressed bytes for the pool to decompress.
	Data []byte
}

// DecodeBlob parses a Blob message.
func DecodeBlob(buf []byte) (Blob, error) {
	var b Blob
	haveRaw := false
	c := varint.NewCursor(buf)
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return Blob{}, err
		}
		switch fieldNum {
		case blobFieldRaw:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return Blob{}, err
			}
			b.Data = sub.Buf()[sub.Pos:sub.Limit]
			b.CodecField = 0
			haveRaw = true
		case blobFieldRawSize:
			v, err := varint.ReadVarSInt32(c)
			if err != nil {
				return Blob{}, err
			}
			b.RawSize = v
		case blobFieldZlib, blobFieldLZ4, blobFieldZstd:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return Blob{}, err
			}
			b.Data = sub.Buf()[sub.Pos:sub.Limit]
			b.CodecField = fieldNum
		case blobFieldLZMA, blobFieldBzip2:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return Blob{}, err
			}
			_ = sub
			return Blob{}, errs.ErrUnsupportedFeature
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return Blob{}, err
			}
		}
	}
	if b.Data == nil {
		return Blob{}, errs.ErrUnknownBlobType
	}
	if !haveRaw && b.RawSize <= 0 {
		return Blob{}, errs.ErrUnknownBlobType
	}
	return b, nil
}
