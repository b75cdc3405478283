package pbf

import (
	"fmt"
	"io"

	"github.com/osmpbf/streamreader/endian"
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/pool"
)

// Framer reads the length-delimited blob envelope (4-byte big-endian header
// length, BlobHeader, Blob) off an io.Reader one frame at a time.
//
// The state machine is always at one of three points: about to read the
// 4-byte length prefix, about to read a BlobHeader of known length, or about
// to read a Blob payload of known length. NextFrame walks through all three
// and returns the decoded header plus the still-possibly-compressed blob.
type Framer struct {
	r      io.Reader
	engine endian.EndianEngine
	scratch *pool.ByteBuffer
}

// NewFramer wraps r. r is read sequentially and never seeked.
func NewFramer(r io.Reader) *Framer {
	return &Framer{
		r:       r,
		engine:  endian.GetBigEndianEngine(),
		scratch: pool.GetScratchBuffer(),
	}
}

// Close returns the framer's scratch buffer to its pool. Safe to call more
// than once.
func (f *Framer) Close() {
	if f.scratch != nil {
		pool.PutScratchBuffer(f.scratch)
		f.scratch = nil
	}
}

// Frame is one decoded (header, blob) pair read off the wire.
type Frame struct {
	Header BlobHeader
	Blob   Blob
}

// NextFrame reads and decodes the next (BlobHeader, Blob) pair. Returns
// io.EOF (unwrapped) once the stream ends cleanly at a frame boundary.
// ErrHeaderTooLarge and ErrPayloadTooLarge are returned bare; every other
// error, including a clean EOF in the middle of a frame, is returned wrapped
// with the stage of the frame that failed.
func (f *Framer) NextFrame() (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(f.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("osmpbf: reading blob header length: %w: %w", errs.ErrShortHeader, err)
	}
	headerLen := f.engine.Uint32(lenBuf[:])
	if headerLen == 0 || headerLen > MaxBlobHeaderSize {
		return Frame{}, errs.ErrHeaderTooLarge
	}

	f.scratch.Reset()
	f.scratch.ExtendOrGrow(int(headerLen))
	if _, err := io.ReadFull(f.r, f.scratch.Bytes()); err != nil {
		return Frame{}, fmt.Errorf("osmpbf: reading blob header: %w: %w", errs.ErrShortHeader, err)
	}
	header, err := DecodeBlobHeader(f.scratch.Bytes())
	if err != nil {
		return Frame{}, fmt.Errorf("osmpbf: decoding blob header: %w", err)
	}

	if header.DataSize <= 0 || int(header.DataSize) > MaxBlobPayloadSize {
		return Frame{}, errs.ErrPayloadTooLarge
	}

	payload := make([]byte, header.DataSize)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return Frame{}, fmt.Errorf("osmpbf: reading blob payload: %w", err)
	}
	blob, err := DecodeBlob(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("osmpbf: decoding blob: %w", err)
	}

	return Frame{Header: header, Blob: blob}, nil
}
