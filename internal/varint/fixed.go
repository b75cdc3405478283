package varint

import "github.com/osmpbf/streamreader/endian"

// ReadFixed32LE reads an exact little-endian 4-byte integer. OSM PBF itself
// has no wire-type-5 (I32) fields in practice, but the wire scanner must be
// able to skip or decode one if a future or non-conformant producer emits
// it, so the primitive is implemented here rather than assumed unreachable.
func ReadFixed32LE(c *Cursor) (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return endian.GetLittleEndianEngine().Uint32(b), nil
}

// ReadFixed64LE reads an exact little-endian 8-byte integer (wire-type-1,
// I64).
func ReadFixed64LE(c *Cursor) (uint64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	return endian.GetLittleEndianEngine().Uint64(b), nil
}
