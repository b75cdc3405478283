package pbf

import (
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/varint"
	"github.com/osmpbf/streamreader/internal/wire"
)

// blockParams are the PrimitiveBlock-wide scaling constants every
// coordinate and timestamp in the block is reconstructed against.
//
// These live on fields 17-20 of PrimitiveBlock, which can appear after the
// primitivegroup entries that need them, so a block is scanned once for
// parameters before its groups are decoded for real.
type blockParams struct {
	granularity     int32
	latOffset       int64
	lonOffset       int64
	dateGranularity int32
}

func defaultBlockParams() blockParams {
	return blockParams{
		granularity:     100,
		dateGranularity: 1000,
	}
}

// Block is one decoded PrimitiveBlock: its shared string table, scaling
// parameters, and the still-undecoded bytes of each primitivegroup.
//
//	message PrimitiveBlock {
//	  required StringTable stringtable = 1;
//	  repeated PrimitiveGroup primitivegroup = 2;
//	  optional int32 granularity = 17 [default=100];
//	  optional int64 lat_offset = 19 [default=0];
//	  optional int64 lon_offset = 20 [default=0];
//	  optional int32 date_granularity = 18 [default=1000];
//	}
type Block struct {
	Strings StringTable
	Params  blockParams
	groups  [][]byte
}

// DecodeBlock parses a PrimitiveBlock's top-level framing: the string table,
// the scaling parameters, and the raw bytes of each primitivegroup (left
// undecoded and exposed through GroupBytes).
func DecodeBlock(buf []byte) (Block, error) {
	params := defaultBlockParams()
	var st StringTable
	haveStrings := false
	var groups [][]byte

	c := varint.NewCursor(buf)
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return Block{}, err
		}
		switch fieldNum {
		case 1:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return Block{}, err
			}
			st, err = DecodeStringTable(sub.Buf()[sub.Pos:sub.Limit])
			if err != nil {
				return Block{}, err
			}
			haveStrings = true
		case 2:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return Block{}, err
			}
			groups = append(groups, sub.Buf()[sub.Pos:sub.Limit])
		case 17:
			v, err := varint.ReadVarSInt32(c)
			if err != nil {
				return Block{}, err
			}
			params.granularity = v
		case 18:
			v, err := varint.ReadVarSInt32(c)
			if err != nil {
				return Block{}, err
			}
			params.dateGranularity = v
		case 19:
			v, err := varint.ReadPlainVarInt64(c)
			if err != nil {
				return Block{}, err
			}
			params.latOffset = v
		case 20:
			v, err := varint.ReadPlainVarInt64(c)
			if err != nil {
				return Block{}, err
			}
			params.lonOffset = v
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return Block{}, err
			}
		}
	}
	if !haveStrings {
		return Block{}, errs.ErrTruncated
	}
	if params.granularity <= 0 {
		return Block{}, errs.ErrInvalidGranularity
	}
	return Block{Strings: st, Params: params, groups: groups}, nil
}

// Coordinate converts a raw delta-accumulated nano-degree value (as stored
// in DenseNodes or a Node message) to a real-world degree value using the
// block's granularity and axis offset.
func (p blockParams) Coordinate(raw, offset int64) float64 {
	return 1e-9 * float64(offset+int64(p.granularity)*raw)
}

// Timestamp converts a raw delta-accumulated timestamp value to Unix
// milliseconds using the block's date_granularity.
func (p blockParams) Timestamp(raw int64) int64 {
	return raw * int64(p.dateGranularity)
}

// GroupBytes returns the raw bytes of the i'th primitivegroup.
func (b Block) GroupBytes(i int) []byte {
	return b.groups[i]
}

// NumGroups reports how many primitivegroup entries the block carries.
func (b Block) NumGroups() int {
	return len(b.groups)
}
