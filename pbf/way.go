package pbf

import (
	"github.com/osmpbf/streamreader/internal/varint"
	"github.com/osmpbf/streamreader/internal/wire"
	"github.com/osmpbf/streamreader/primitive"
)

// DecodeWays decodes every repeated Way message (field 3) of a
// primitivegroup.
//
//	message Way {
//	  required int64 id = 1;
//	  repeated uint32 keys = 2 [packed = true];
//	  repeated uint32 vals = 3 [packed = true];
//	  optional Info info = 4;
//	  repeated sint64 refs = 8 [packed = true];
//	}
func DecodeWays(buf []byte, st StringTable, params blockParams) ([]primitive.Way, error) {
	var ways []primitive.Way
	c := varint.NewCursor(buf)
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return nil, err
		}
		if fieldNum != 3 {
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return nil, err
			}
			continue
		}
		sub, err := wire.ReadLengthDelimited(c)
		if err != nil {
			return nil, err
		}
		w, err := decodeWay(sub, st, params)
		if err != nil {
			return nil, err
		}
		ways = append(ways, w)
	}
	return ways, nil
}

func decodeWay(c *varint.Cursor, st StringTable, params blockParams) (primitive.Way, error) {
	var w primitive.Way
	var keys, vals []uint32

	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return primitive.Way{}, err
		}
		switch fieldNum {
		case 1:
			v, err := varint.ReadPlainVarInt64(c)
			if err != nil {
				return primitive.Way{}, err
			}
			w.ID = v
		case 2:
			v, cleanup, err := readPackedUint32(c, wireType)
			if err != nil {
				return primitive.Way{}, err
			}
			defer cleanup()
			keys = v
		case 3:
			v, cleanup, err := readPackedUint32(c, wireType)
			if err != nil {
				return primitive.Way{}, err
			}
			defer cleanup()
			vals = v
		case 4:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return primitive.Way{}, err
			}
			info, err := decodeInfo(sub, st, params)
			if err != nil {
				return primitive.Way{}, err
			}
			w.Info = info
		case 8:
			// w.NodeRefs is returned directly to the caller and outlives
			// this function, so the scratch slice must not be pool-released.
			v, _, err := readPackedInt64Delta(c, wireType)
			if err != nil {
				return primitive.Way{}, err
			}
			w.NodeRefs = v
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return primitive.Way{}, err
			}
		}
	}

	tags, err := zipTags(keys, vals, st)
	if err != nil {
		return primitive.Way{}, err
	}
	w.Tags = tags
	return w, nil
}
