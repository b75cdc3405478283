// Package varint implements the zero-copy, bounds-safe primitive decoders the
// OSM PBF wire format is built from: unsigned/zig-zag varints and
// little-endian fixed-width integers, each reading against an explicit
// cursor and limit rather than trusting the end of the backing slice.
//
// A Cursor never panics on malformed input. Every read either advances Pos
// and returns a value, or returns errs.ErrTruncated and leaves Pos in an
// unspecified position past the point of failure — callers must treat a
// Truncated error as fatal to the whole decode, exactly as spec'd.
package varint

import "github.com/osmpbf/streamreader/errs"

// Cursor is a read-only view over buf, bounded by [Pos, Limit).
//
// Limit is almost always len(buf) for a top-level message, but is set to a
// sub-message's end offset when decoding a length-delimited field so that
// over-reads into the parent message are caught as Truncated rather than
// silently succeeding.
type Cursor struct {
	buf   []byte
	Pos   int
	Limit int
}

// NewCursor returns a Cursor over the whole of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf, Pos: 0, Limit: len(buf)}
}

// Remaining reports how many bytes are left before Limit.
func (c *Cursor) Remaining() int {
	return c.Limit - c.Pos
}

// Done reports whether the cursor has reached its limit.
func (c *Cursor) Done() bool {
	return c.Pos >= c.Limit
}

// Bytes returns the n bytes starting at Pos and advances past them, or
// ErrTruncated if fewer than n bytes remain before Limit.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || c.Pos+n > c.Limit {
		return nil, errs.ErrTruncated
	}
	b := c.buf[c.Pos : c.Pos+n]
	c.Pos += n
	return b, nil
}

// Sub carves out a child Cursor over the next n bytes and advances past
// them in the parent, or ErrTruncated if n exceeds what remains.
func (c *Cursor) Sub(n int) (*Cursor, error) {
	if n < 0 || c.Pos+n > c.Limit {
		return nil, errs.ErrTruncated
	}
	sub := &Cursor{buf: c.buf, Pos: c.Pos, Limit: c.Pos + n}
	c.Pos += n
	return sub, nil
}

// Buf returns the full backing array the cursor was built over. Used by
// decoders that need to borrow a slice relative to the block buffer rather
// than relative to the current sub-cursor (e.g. the string table).
func (c *Cursor) Buf() []byte {
	return c.buf
}
