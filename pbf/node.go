package pbf

import (
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/pool"
	"github.com/osmpbf/streamreader/internal/varint"
	"github.com/osmpbf/streamreader/internal/wire"
	"github.com/osmpbf/streamreader/primitive"
)

// GroupKind identifies which oneof-like variant a PrimitiveGroup carries.
type GroupKind uint8

const (
	GroupEmpty GroupKind = iota
	GroupNodes
	GroupDense
	GroupWays
	GroupRelations
)

// ProbeGroup inspects a primitivegroup's top-level field numbers without
// fully decoding it, so the caller can dispatch to the right decoder.
//
//	message PrimitiveGroup {
//	  repeated Node nodes = 1;
//	  optional DenseNodes dense = 2;
//	  repeated Way ways = 3;
//	  repeated Relation relations = 4;
//	}
func ProbeGroup(buf []byte) (GroupKind, error) {
	c := varint.NewCursor(buf)
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return GroupEmpty, err
		}
		switch fieldNum {
		case 1:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return GroupEmpty, err
			}
			return GroupNodes, nil
		case 2:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return GroupEmpty, err
			}
			return GroupDense, nil
		case 3:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return GroupEmpty, err
			}
			return GroupWays, nil
		case 4:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return GroupEmpty, err
			}
			return GroupRelations, nil
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return GroupEmpty, err
			}
		}
	}
	return GroupEmpty, nil
}

// DecodeNodes decodes every repeated Node message (field 1) of a
// primitivegroup. Plain (non-dense) nodes are rare in real extracts but
// remain part of the format.
//
//	message Node {
//	  required sint64 id = 1;
//	  repeated uint32 keys = 2 [packed = true];
//	  repeated uint32 vals = 3 [packed = true];
//	  optional Info info = 4;
//	  required sint64 lat = 8;
//	  required sint64 lon = 9;
//	}
func DecodeNodes(buf []byte, st StringTable, params blockParams) ([]primitive.Node, error) {
	var nodes []primitive.Node
	c := varint.NewCursor(buf)
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return nil, err
		}
		if fieldNum != 1 {
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return nil, err
			}
			continue
		}
		sub, err := wire.ReadLengthDelimited(c)
		if err != nil {
			return nil, err
		}
		n, err := decodeNode(sub, st, params)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeNode(c *varint.Cursor, st StringTable, params blockParams) (primitive.Node, error) {
	var n primitive.Node
	var keys, vals []uint32
	var rawLat, rawLon int64
	var haveLat, haveLon bool

	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return primitive.Node{}, err
		}
		switch fieldNum {
		case 1:
			v, err := varint.ReadVarSInt64(c)
			if err != nil {
				return primitive.Node{}, err
			}
			n.ID = v
		case 2:
			ks, cleanup, err := readPackedUint32(c, wireType)
			if err != nil {
				return primitive.Node{}, err
			}
			defer cleanup()
			keys = ks
		case 3:
			vs, cleanup, err := readPackedUint32(c, wireType)
			if err != nil {
				return primitive.Node{}, err
			}
			defer cleanup()
			vals = vs
		case 4:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return primitive.Node{}, err
			}
			info, err := decodeInfo(sub, st, params)
			if err != nil {
				return primitive.Node{}, err
			}
			n.Info = info
		case 8:
			v, err := varint.ReadVarSInt64(c)
			if err != nil {
				return primitive.Node{}, err
			}
			rawLat = v
			haveLat = true
		case 9:
			v, err := varint.ReadVarSInt64(c)
			if err != nil {
				return primitive.Node{}, err
			}
			rawLon = v
			haveLon = true
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return primitive.Node{}, err
			}
		}
	}

	if haveLat {
		n.Lat = params.Coordinate(rawLat, params.latOffset)
	}
	if haveLon {
		n.Lon = params.Coordinate(rawLon, params.lonOffset)
	}
	if !primitive.ValidCoordinate(n.Lat, n.Lon) {
		return primitive.Node{}, errs.ErrOutOfRangeCoordinate
	}
	tags, err := zipTags(keys, vals, st)
	if err != nil {
		return primitive.Node{}, err
	}
	n.Tags = tags
	return n, nil
}

// noopCleanup is returned alongside results that aren't backed by a pooled
// slice, so every call site can unconditionally defer the cleanup func.
func noopCleanup() {}

// countVarints reports how many varints are packed into b, by counting the
// terminal bytes (high bit clear) — every varint has exactly one.
func countVarints(b []byte) int {
	n := 0
	for _, x := range b {
		if x&0x80 == 0 {
			n++
		}
	}
	return n
}

// readPackedUint32 reads a "packed repeated uint32" field: either the
// length-delimited packed encoding (wire type LEN) real producers always
// use, or a bare repeated varint (wire type VARINT) for producers that
// don't pack, per protobuf's backward-compatible packed-field rule.
//
// The returned slice is scratch, borrowed from internal/pool's uint32 slice
// pool when it comes from the packed path: every caller in this package
// only reads it while assembling its immediate result (a Tag list, a
// MemberType list) and never retains it, so callers must defer the returned
// cleanup func.
func readPackedUint32(c *varint.Cursor, wireType wire.Type) ([]uint32, func(), error) {
	if wireType == wire.Varint {
		v, err := varint.ReadVarUint32(c)
		if err != nil {
			return nil, noopCleanup, err
		}
		return []uint32{v}, noopCleanup, nil
	}
	sub, err := wire.ReadLengthDelimited(c)
	if err != nil {
		return nil, noopCleanup, err
	}
	n := countVarints(sub.Buf()[sub.Pos:sub.Limit])
	out, cleanup := pool.GetUint32Slice(n)
	for i := 0; !sub.Done(); i++ {
		v, err := varint.ReadVarUint32(sub)
		if err != nil {
			cleanup()
			return nil, noopCleanup, err
		}
		out[i] = v
	}
	return out, cleanup, nil
}

// readPackedInt64Delta reads a packed repeated sint64 field and returns the
// cumulative (delta-decoded) values alongside a cleanup func for the
// returned slice (see readPackedSInt64).
func readPackedInt64Delta(c *varint.Cursor, wireType wire.Type) ([]int64, func(), error) {
	raw, cleanup, err := readPackedSInt64(c, wireType)
	if err != nil {
		return nil, noopCleanup, err
	}
	var running int64
	for i, v := range raw {
		running += v
		raw[i] = running
	}
	return raw, cleanup, nil
}

// readPackedSInt64 reads a packed repeated sint64 field. The returned slice
// is pool-backed scratch when it comes from the packed path; callers that
// consume it entirely within their own stack frame (DenseNodes id/lat/lon,
// Relation.memids) should defer the cleanup func. Callers whose result
// outlives the decode call that produced it (Way.refs, which is stored
// directly on the returned Way; DenseInfo's changeset column, read back by
// DecodeDense's assembly loop after decodeDenseInfo returns) must not defer
// cleanup in their own frame; they discard the cleanup func and let the
// slice stay a plain allocation. DenseInfo's timestamp column is copied
// into a fresh slice first, so decodeDenseInfo defers its cleanup.
func readPackedSInt64(c *varint.Cursor, wireType wire.Type) ([]int64, func(), error) {
	if wireType == wire.Varint {
		v, err := varint.ReadVarSInt64(c)
		if err != nil {
			return nil, noopCleanup, err
		}
		return []int64{v}, noopCleanup, nil
	}
	sub, err := wire.ReadLengthDelimited(c)
	if err != nil {
		return nil, noopCleanup, err
	}
	n := countVarints(sub.Buf()[sub.Pos:sub.Limit])
	out, cleanup := pool.GetInt64Slice(n)
	for i := 0; !sub.Done(); i++ {
		v, err := varint.ReadVarSInt64(sub)
		if err != nil {
			cleanup()
			return nil, noopCleanup, err
		}
		out[i] = v
	}
	return out, cleanup, nil
}

func zipTags(keys, vals []uint32, st StringTable) ([]primitive.Tag, error) {
	if len(keys) != len(vals) {
		return nil, errs.ErrMismatchedTagArrays
	}
	if len(keys) == 0 {
		return nil, nil
	}
	tags := make([]primitive.Tag, len(keys))
	for i := range keys {
		k, err := st.Get(keys[i])
		if err != nil {
			return nil, err
		}
		v, err := st.Get(vals[i])
		if err != nil {
			return nil, err
		}
		tags[i] = primitive.Tag{Key: k, Value: v}
	}
	return tags, nil
}
