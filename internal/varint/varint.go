package varint

import "github.com/osmpbf/streamreader/errs"

// ReadVarUint32 reads a LEB128 varint of up to 10 bytes through
// ReadVarUint64 and returns the low 32 bits of the decoded value.
//
// For a 5-byte encoding only the low 4 bits of the 5th byte survive the
// truncation; any higher bits are dropped. This lets a negative 32-bit value
// that a producer sign-extended to a 10-byte 64-bit encoding (as protobuf
// does for negative int32 fields) decode to its original low 32 bits.
func ReadVarUint32(c *Cursor) (uint32, error) {
	v, err := ReadVarUint64(c)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// ReadVarUint64 reads up to 10 bytes of a LEB128 varint. The 10th byte
// contributes only its lowest bit; any other set bits in it are ignored.
func ReadVarUint64(c *Cursor) (uint64, error) {
	var result uint64
	for shift := uint(0); shift < 70; shift += 7 {
		if c.Pos >= c.Limit {
			return 0, errs.ErrTruncated
		}
		b := c.buf[c.Pos]
		c.Pos++

		if shift == 63 {
			// 10th byte: only the lowest bit is significant.
			result |= uint64(b&0x01) << shift
		} else {
			result |= uint64(b&0x7f) << shift
		}

		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, errs.ErrTruncated
}

// zigZagDecode32 applies the standard zig-zag mapping for 32-bit values.
func zigZagDecode32(n uint32) int32 {
	return int32(n>>1) ^ -int32(n&1)
}

// zigZagDecode64 applies the standard zig-zag mapping for 64-bit values.
func zigZagDecode64(n uint64) int64 {
	return int64(n>>1) ^ -int64(n&1)
}

// ReadVarSInt32 reads an unsigned varint and applies zig-zag decoding.
func ReadVarSInt32(c *Cursor) (int32, error) {
	u, err := ReadVarUint32(c)
	if err != nil {
		return 0, err
	}
	return zigZagDecode32(u), nil
}

// ReadVarSInt64 reads an unsigned varint and applies zig-zag decoding.
func ReadVarSInt64(c *Cursor) (int64, error) {
	u, err := ReadVarUint64(c)
	if err != nil {
		return 0, err
	}
	return zigZagDecode64(u), nil
}

// ReadPlainVarInt64 reads a varint and interprets it as a plain (non
// zig-zag) signed 64-bit integer, i.e. two's-complement truncation of the
// unsigned value — the encoding protobuf uses for its "int64" (as opposed
// to "sint64") field type.
func ReadPlainVarInt64(c *Cursor) (int64, error) {
	u, err := ReadVarUint64(c)
	if err != nil {
		return 0, err
	}
	return int64(u), nil
}

// SkipVarint advances past a varint without decoding its numeric value.
func SkipVarint(c *Cursor) error {
	for i := 0; i < 10; i++ {
		if c.Pos >= c.Limit {
			return errs.ErrTruncated
		}
		b := c.buf[c.Pos]
		c.Pos++
		if b&0x80 == 0 {
			return nil
		}
	}
	return errs.ErrTruncated
}
