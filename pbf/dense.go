package pbf

import (
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/varint"
	"github.com/osmpbf/streamreader/internal/wire"
	"github.com/osmpbf/streamreader/primitive"
)

// DecodeDense decodes a DenseNodes message: the id/lat/lon columns are
// delta-accumulated across the whole group, as is every DenseInfo column
// except version, which is stored as plain per-node values.
// keys_vals packs each node's tags back to back, terminated by a 0 entry,
// so it cannot be decoded as a simple parallel array like Node.keys/vals.
//
//	message DenseNodes {
//	  repeated sint64 id = 1 [packed = true];
//	  optional DenseInfo denseinfo = 5;
//	  repeated sint64 lat = 8 [packed = true];
//	  repeated sint64 lon = 9 [packed = true];
//	  repeated int32 keys_vals = 10 [packed = true];
//	}
func DecodeDense(buf []byte, st StringTable, params blockParams) ([]primitive.Node, error) {
	var ids, lats, lons []int64
	var keysVals []uint32
	var info denseInfo
	haveInfo := false

	c := varint.NewCursor(buf)
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return nil, err
		}
		switch fieldNum {
		case 1:
			v, cleanup, err := readPackedInt64Delta(c, wireType)
			if err != nil {
				return nil, err
			}
			defer cleanup()
			ids = v
		case 5:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return nil, err
			}
			info, err = decodeDenseInfo(sub, st, params, len(ids))
			if err != nil {
				return nil, err
			}
			haveInfo = true
		case 8:
			v, cleanup, err := readPackedInt64Delta(c, wireType)
			if err != nil {
				return nil, err
			}
			defer cleanup()
			lats = v
		case 9:
			v, cleanup, err := readPackedInt64Delta(c, wireType)
			if err != nil {
				return nil, err
			}
			defer cleanup()
			lons = v
		case 10:
			v, cleanup, err := readPackedUint32(c, wireType)
			if err != nil {
				return nil, err
			}
			defer cleanup()
			keysVals = v
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return nil, err
			}
		}
	}

	if len(ids) != len(lats) || len(ids) != len(lons) {
		return nil, errs.ErrTruncated
	}
	if haveInfo && len(info.version) != len(ids) {
		return nil, errs.ErrTruncated
	}

	tagGroups, err := splitKeysVals(keysVals, len(ids), st)
	if err != nil {
		return nil, err
	}

	nodes := make([]primitive.Node, len(ids))
	for i := range ids {
		lat := params.Coordinate(lats[i], params.latOffset)
		lon := params.Coordinate(lons[i], params.lonOffset)
		if !primitive.ValidCoordinate(lat, lon) {
			return nil, errs.ErrOutOfRangeCoordinate
		}
		nodes[i] = primitive.Node{
			ID:   ids[i],
			Lat:  lat,
			Lon:  lon,
			Tags: tagGroups[i],
		}
		if haveInfo {
			nodes[i].Info = info.at(i)
		}
	}
	return nodes, nil
}

// splitKeysVals splits the flat, 0-terminated keys_vals array into one
// []Tag slice per node, in id order.
func splitKeysVals(keysVals []uint32, n int, st StringTable) ([][]primitive.Tag, error) {
	groups := make([][]primitive.Tag, n)
	if len(keysVals) == 0 {
		return groups, nil
	}
	idx := 0
	for i := 0; i < n; i++ {
		var tags []primitive.Tag
		for idx < len(keysVals) && keysVals[idx] != 0 {
			if idx+1 >= len(keysVals) {
				return nil, errs.ErrTruncated
			}
			k, err := st.Get(keysVals[idx])
			if err != nil {
				return nil, err
			}
			v, err := st.Get(keysVals[idx+1])
			if err != nil {
				return nil, err
			}
			tags = append(tags, primitive.Tag{Key: k, Value: v})
			idx += 2
		}
		// skip the terminating 0, if present (the final node's may be
		// omitted by some producers when it has no tags at all)
		if idx < len(keysVals) {
			idx++
		}
		groups[i] = tags
	}
	return groups, nil
}

// denseInfo holds DenseInfo's columns pre-decoded (delta-accumulated where
// applicable) so the per-node Info can be assembled without re-walking the
// wire.
//
//	message DenseInfo {
//	  repeated int32 version = 1 [packed = true];
//	  repeated sint64 timestamp = 2 [packed = true];
//	  repeated sint64 changeset = 3 [packed = true];
//	  repeated sint32 uid = 4 [packed = true];
//	  repeated sint32 user_sid = 5 [packed = true];
//	}
type denseInfo struct {
	version   []int32
	timestamp []int64
	changeset []int64
	uid       []int32
	userSID   []string
}

func (d denseInfo) at(i int) primitive.Info {
	info := primitive.Info{Present: true}
	if i < len(d.version) {
		info.Version = d.version[i]
	}
	if i < len(d.changeset) {
		info.Changeset = d.changeset[i]
	}
	if i < len(d.uid) {
		info.UID = d.uid[i]
	}
	if i < len(d.userSID) {
		info.UserSID = d.userSID[i]
	}
	if i < len(d.timestamp) {
		info.Timestamp = primitive.Timestamp{Kind: primitive.TimestampUnix, Unix: d.timestamp[i]}
	}
	return info
}

func decodeDenseInfo(c *varint.Cursor, st StringTable, params blockParams, n int) (denseInfo, error) {
	var d denseInfo
	var rawTimestamps []int64
	var userSIDRaw []int32

	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return denseInfo{}, err
		}
		switch fieldNum {
		case 1:
			v, err := readPackedVarInt32(c, wireType)
			if err != nil {
				return denseInfo{}, err
			}
			d.version = v
		case 2:
			v, cleanup, err := readPackedInt64Delta(c, wireType)
			if err != nil {
				return denseInfo{}, err
			}
			defer cleanup()
			rawTimestamps = v
		case 3:
			// d.changeset is stored directly on denseInfo and read back by
			// DecodeDense's assembly loop after this function returns, so
			// it must not be pool-released here.
			v, _, err := readPackedInt64Delta(c, wireType)
			if err != nil {
				return denseInfo{}, err
			}
			d.changeset = v
		case 4:
			v, err := readPackedSInt32Delta(c, wireType)
			if err != nil {
				return denseInfo{}, err
			}
			d.uid = v
		case 5:
			v, err := readPackedSInt32Delta(c, wireType)
			if err != nil {
				return denseInfo{}, err
			}
			userSIDRaw = v
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return denseInfo{}, err
			}
		}
	}

	d.timestamp = make([]int64, len(rawTimestamps))
	for i, raw := range rawTimestamps {
		d.timestamp[i] = params.Timestamp(raw) / 1000
	}

	if len(userSIDRaw) > 0 {
		d.userSID = make([]string, len(userSIDRaw))
		for i, sid := range userSIDRaw {
			s, err := st.Get(uint32(sid))
			if err != nil {
				return denseInfo{}, err
			}
			d.userSID[i] = s
		}
	}
	return d, nil
}

// readPackedVarInt32 reads a packed repeated plain int32 field (no zig-zag,
// no delta accumulation) — DenseInfo.version.
func readPackedVarInt32(c *varint.Cursor, wireType wire.Type) ([]int32, error) {
	if wireType == wire.Varint {
		v, err := varint.ReadVarUint32(c)
		if err != nil {
			return nil, err
		}
		return []int32{int32(v)}, nil
	}
	sub, err := wire.ReadLengthDelimited(c)
	if err != nil {
		return nil, err
	}
	var out []int32
	for !sub.Done() {
		v, err := varint.ReadVarUint32(sub)
		if err != nil {
			return nil, err
		}
		out = append(out, int32(v))
	}
	return out, nil
}

// readPackedSInt32Delta reads a packed repeated sint32 field and returns the
// cumulative (delta-decoded) values — DenseInfo.uid and DenseInfo.user_sid.
func readPackedSInt32Delta(c *varint.Cursor, wireType wire.Type) ([]int32, error) {
	var out []int32
	if wireType == wire.Varint {
		v, err := varint.ReadVarSInt32(c)
		if err != nil {
			return nil, err
		}
		out = []int32{v}
	} else {
		sub, err := wire.ReadLengthDelimited(c)
		if err != nil {
			return nil, err
		}
		for !sub.Done() {
			v, err := varint.ReadVarSInt32(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	var running int32
	for i, v := range out {
		running += v
		out[i] = running
	}
	return out, nil
}
