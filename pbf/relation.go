package pbf

import (
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/varint"
	"github.com/osmpbf/streamreader/internal/wire"
	"github.com/osmpbf/streamreader/primitive"
)

// DecodeRelations decodes every repeated Relation message (field 4) of a
// primitivegroup.
//
//	message Relation {
//	  required int64 id = 1;
//	  repeated uint32 keys = 2 [packed = true];
//	  repeated uint32 vals = 3 [packed = true];
//	  optional Info info = 4;
//	  repeated int32 roles_sid = 8 [packed = true];
//	  repeated sint64 memids = 9 [packed = true];
//	  repeated MemberType types = 10 [packed = true];
//	}
func DecodeRelations(buf []byte, st StringTable, params blockParams) ([]primitive.Relation, error) {
	var relations []primitive.Relation
	c := varint.NewCursor(buf)
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return nil, err
		}
		if fieldNum != 4 {
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return nil, err
			}
			continue
		}
		sub, err := wire.ReadLengthDelimited(c)
		if err != nil {
			return nil, err
		}
		r, err := decodeRelation(sub, st, params)
		if err != nil {
			return nil, err
		}
		relations = append(relations, r)
	}
	return relations, nil
}

func decodeRelation(c *varint.Cursor, st StringTable, params blockParams) (primitive.Relation, error) {
	var r primitive.Relation
	var keys, vals []uint32
	var rolesSID []int32
	var memIDs []int64
	var types []uint32

	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return primitive.Relation{}, err
		}
		switch fieldNum {
		case 1:
			v, err := varint.ReadPlainVarInt64(c)
			if err != nil {
				return primitive.Relation{}, err
			}
			r.ID = v
		case 2:
			v, cleanup, err := readPackedUint32(c, wireType)
			if err != nil {
				return primitive.Relation{}, err
			}
			defer cleanup()
			keys = v
		case 3:
			v, cleanup, err := readPackedUint32(c, wireType)
			if err != nil {
				return primitive.Relation{}, err
			}
			defer cleanup()
			vals = v
		case 4:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return primitive.Relation{}, err
			}
			info, err := decodeInfo(sub, st, params)
			if err != nil {
				return primitive.Relation{}, err
			}
			r.Info = info
		case 8:
			v, err := readPackedVarInt32(c, wireType)
			if err != nil {
				return primitive.Relation{}, err
			}
			rolesSID = v
		case 9:
			v, cleanup, err := readPackedInt64Delta(c, wireType)
			if err != nil {
				return primitive.Relation{}, err
			}
			defer cleanup()
			memIDs = v
		case 10:
			v, cleanup, err := readPackedUint32(c, wireType)
			if err != nil {
				return primitive.Relation{}, err
			}
			defer cleanup()
			types = v
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return primitive.Relation{}, err
			}
		}
	}

	if len(rolesSID) != len(memIDs) || len(memIDs) != len(types) {
		return primitive.Relation{}, errs.ErrMalformedRelation
	}

	members := make([]primitive.Member, len(memIDs))
	for i := range memIDs {
		role, err := st.Get(uint32(rolesSID[i]))
		if err != nil {
			return primitive.Relation{}, err
		}
		memberType, err := toMemberType(types[i])
		if err != nil {
			return primitive.Relation{}, err
		}
		members[i] = primitive.Member{
			RefID: memIDs[i],
			Role:  role,
			Type:  memberType,
		}
	}
	r.Members = members

	tags, err := zipTags(keys, vals, st)
	if err != nil {
		return primitive.Relation{}, err
	}
	r.Tags = tags
	return r, nil
}

func toMemberType(v uint32) (primitive.MemberType, error) {
	switch v {
	case 0:
		return primitive.MemberNode, nil
	case 1:
		return primitive.MemberWay, nil
	case 2:
		return primitive.MemberRelation, nil
	default:
		return 0, errs.ErrInvalidMemberType
	}
}
