package pbf

import (
	"github.com/osmpbf/streamreader/internal/varint"
	"github.com/osmpbf/streamreader/internal/wire"
	"github.com/osmpbf/streamreader/primitive"
)

// decodeInfo parses an Info message (the optional per-primitive metadata
// attached to a plain Node, Way, or Relation).
//
//	message Info {
//	  optional int32 version = 1 [default = -1];
//	  optional int64 timestamp = 2;
//	  optional int64 changeset = 3;
//	  optional int32 uid = 4;
//	  optional uint32 user_sid = 5;
//	  optional bool visible = 6;
//	}
func decodeInfo(c *varint.Cursor, st StringTable, params blockParams) (primitive.Info, error) {
	info := primitive.Info{Present: true, Version: -1}
	var rawTimestamp int64
	haveTimestamp := false

	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return primitive.Info{}, err
		}
		switch fieldNum {
		case 1:
			v, err := varint.ReadVarSInt32(c)
			if err != nil {
				return primitive.Info{}, err
			}
			info.Version = v
		case 2:
			v, err := varint.ReadPlainVarInt64(c)
			if err != nil {
				return primitive.Info{}, err
			}
			rawTimestamp = v
			haveTimestamp = true
		case 3:
			v, err := varint.ReadPlainVarInt64(c)
			if err != nil {
				return primitive.Info{}, err
			}
			info.Changeset = v
		case 4:
			v, err := varint.ReadVarSInt32(c)
			if err != nil {
				return primitive.Info{}, err
			}
			info.UID = v
		case 5:
			v, err := varint.ReadVarUint32(c)
			if err != nil {
				return primitive.Info{}, err
			}
			s, err := st.Get(v)
			if err != nil {
				return primitive.Info{}, err
			}
			info.UserSID = s
		case 6:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return primitive.Info{}, err
			}
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return primitive.Info{}, err
			}
		}
	}

	if haveTimestamp {
		info.Timestamp = primitive.Timestamp{
			Kind: primitive.TimestampUnix,
			Unix: params.Timestamp(rawTimestamp) / 1000,
		}
	}
	return info, nil
}
