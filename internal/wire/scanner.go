// Package wire implements the minimal protobuf-wire-format scanner the OSM
// PBF decoder needs: reading a field's (number, wire type) tag, skipping a
// field of unknown semantics, and carving out the sub-cursor for a
// length-delimited field.
package wire

import (
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/varint"
)

// Type is a protobuf wire type.
type Type uint8

const (
	Varint          Type = 0
	Fixed64         Type = 1
	LengthDelimited Type = 2
	Fixed32         Type = 5
)

// ReadTag reads a field tag and splits it into field number and wire type.
func ReadTag(c *varint.Cursor) (fieldNumber uint32, wireType Type, err error) {
	tag, err := varint.ReadVarUint64(c)
	if err != nil {
		return 0, 0, err
	}
	return uint32(tag >> 3), Type(tag & 0x7), nil
}

// SkipUnknown consumes exactly one field of the given wire type without
// interpreting its value. Any wire type other than the four known ones is
// fatal.
func SkipUnknown(c *varint.Cursor, wireType Type) error {
	switch wireType {
	case Varint:
		return varint.SkipVarint(c)
	case Fixed64:
		_, err := c.Bytes(8)
		return err
	case Fixed32:
		_, err := c.Bytes(4)
		return err
	case LengthDelimited:
		sub, err := ReadLengthDelimited(c)
		if err != nil {
			return err
		}
		c.Pos = sub.Limit
		return nil
	default:
		return errs.ErrBadWireType
	}
}

// ReadLengthDelimited reads a varuint length prefix and returns a child
// cursor spanning exactly that many following bytes, advancing the parent
// cursor past them. Fails Truncated if the declared length exceeds what
// remains before the parent's own limit.
func ReadLengthDelimited(c *varint.Cursor) (*varint.Cursor, error) {
	n, err := varint.ReadVarUint64(c)
	if err != nil {
		return nil, err
	}
	if n > uint64(c.Remaining()) {
		return nil, errs.ErrTruncated
	}
	return c.Sub(int(n))
}
