package osmpbf

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/primitive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal hand-rolled protobuf wire encoders, mirroring pbf's own test
// helpers, used only to build whole-file fixtures for these end-to-end
// tests.

func appendVarUint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func zigZag32(n int32) uint32 { return uint32((n << 1) ^ (n >> 31)) }
func zigZag64(n int64) uint64 { return uint64((n << 1) ^ (n >> 63)) }

func appendTag(buf []byte, fieldNumber uint32, wireType byte) []byte {
	return appendVarUint(buf, uint64(fieldNumber)<<3|uint64(wireType))
}

func appendSInt64Field(buf []byte, fieldNumber uint32, v int64) []byte {
	buf = appendTag(buf, fieldNumber, 0)
	return appendVarUint(buf, zigZag64(v))
}

func appendSInt32Field(buf []byte, fieldNumber uint32, v int32) []byte {
	buf = appendTag(buf, fieldNumber, 0)
	return appendVarUint(buf, uint64(zigZag32(v)))
}

func appendPlainInt64Field(buf []byte, fieldNumber uint32, v int64) []byte {
	buf = appendTag(buf, fieldNumber, 0)
	return appendVarUint(buf, uint64(v))
}

func appendBytesField(buf []byte, fieldNumber uint32, data []byte) []byte {
	buf = appendTag(buf, fieldNumber, 2)
	buf = appendVarUint(buf, uint64(len(data)))
	return append(buf, data...)
}

func appendStringField(buf []byte, fieldNumber uint32, s string) []byte {
	return appendBytesField(buf, fieldNumber, []byte(s))
}

func appendPackedUint32(buf []byte, fieldNumber uint32, vals []uint32) []byte {
	var packed []byte
	for _, v := range vals {
		packed = appendVarUint(packed, uint64(v))
	}
	return appendBytesField(buf, fieldNumber, packed)
}

func appendPackedSInt64Delta(buf []byte, fieldNumber uint32, cumulative []int64) []byte {
	var packed []byte
	var prev int64
	for _, v := range cumulative {
		packed = appendVarUint(packed, zigZag64(v-prev))
		prev = v
	}
	return appendBytesField(buf, fieldNumber, packed)
}

func appendPackedInt32(buf []byte, fieldNumber uint32, vals []int32) []byte {
	var packed []byte
	for _, v := range vals {
		packed = appendVarUint(packed, uint64(uint32(v)))
	}
	return appendBytesField(buf, fieldNumber, packed)
}

func buildStringTable(entries ...string) []byte {
	var buf []byte
	for _, e := range entries {
		buf = appendBytesField(buf, 1, []byte(e))
	}
	return buf
}

// writeFrame appends one (length-prefix, BlobHeader, Blob-raw-payload) frame
// to stream, where payload is already the fully encoded message the blob
// carries (PrimitiveBlock or HeaderBlock bytes), stored uncompressed via the
// Blob.raw field.
func writeFrame(stream []byte, blobType string, payload []byte) []byte {
	var blob []byte
	blob = appendBytesField(blob, 1, payload) // Blob.raw

	var header []byte
	header = appendStringField(header, 1, blobType)
	header = appendSInt32Field(header, 3, int32(len(blob)))

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(header)))

	stream = append(stream, lenPrefix[:]...)
	stream = append(stream, header...)
	stream = append(stream, blob...)
	return stream
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.osm.pbf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpen_HeaderOnlyWithBounds(t *testing.T) {
	var headerPayload []byte
	bbox := appendSInt64Field(nil, 1, -1_800_000_000)
	bbox = appendSInt64Field(bbox, 2, 1_800_000_000)
	bbox = appendSInt64Field(bbox, 3, 900_000_000)
	bbox = appendSInt64Field(bbox, 4, -900_000_000)
	headerPayload = appendBytesField(headerPayload, 1, bbox)

	var stream []byte
	stream = writeFrame(stream, "OSMHeader", headerPayload)

	path := writeTempFile(t, stream)

	var bounds primitive.Bounds
	var boundsSeen bool
	r, err := Open(path, Callbacks{
		OnBounds: func(b primitive.Bounds) { bounds = b; boundsSeen = true },
	})
	require.NoError(t, err)
	defer r.Close()

	status, err := r.ProcessNextBlock()
	require.NoError(t, err)
	assert.True(t, boundsSeen)
	assert.InDelta(t, -1.8, bounds.MinLon, 1e-9)
	assert.InDelta(t, 1.8, bounds.MaxLon, 1e-9)
	assert.InDelta(t, 0.9, bounds.MaxLat, 1e-9)
	assert.InDelta(t, -0.9, bounds.MinLat, 1e-9)

	status, err = r.ProcessNextBlock()
	require.NoError(t, err)
	assert.Equal(t, Eof, status)
}

func TestOpen_DenseNodesGranularity(t *testing.T) {
	var block []byte
	block = appendBytesField(block, 1, buildStringTable())
	group := appendPackedSInt64Delta(nil, 1, []int64{1, 2, 3})
	group = appendPackedSInt64Delta(group, 8, []int64{100_000_000, 100_000_000, 100_000_000})
	group = appendPackedSInt64Delta(group, 9, []int64{100_000_000, 100_000_000, 100_000_000})
	block = appendBytesField(block, 2, group)

	var stream []byte
	stream = writeFrame(stream, "OSMData", block)
	path := writeTempFile(t, stream)

	var nodes []primitive.Node
	r, err := Open(path, Callbacks{
		OnNodes: func(n []primitive.Node) { nodes = append(nodes, n...) },
	})
	require.NoError(t, err)
	defer r.Close()

	status, err := r.ProcessNextBlock()
	require.NoError(t, err)
	assert.Equal(t, Ok, status)
	require.Len(t, nodes, 3)
	for i, id := range []int64{1, 2, 3} {
		assert.Equal(t, id, nodes[i].ID)
		assert.InDelta(t, 10.0, nodes[i].Lat, 1e-6)
		assert.InDelta(t, 10.0, nodes[i].Lon, 1e-6)
		assert.Empty(t, nodes[i].Tags)
	}

	status, err = r.ProcessNextBlock()
	require.NoError(t, err)
	assert.Equal(t, Eof, status)
}

func TestOpen_WayWithRefsAndTags(t *testing.T) {
	st := buildStringTable("highway", "primary", "name", "Main")
	var way []byte
	way = appendPlainInt64Field(way, 1, 42)
	way = appendPackedUint32(way, 2, []uint32{1, 3})
	way = appendPackedUint32(way, 3, []uint32{2, 4})
	way = appendPackedSInt64Delta(way, 8, []int64{1, 2, 3, 0})

	var group []byte
	group = appendBytesField(group, 3, way)

	var block []byte
	block = appendBytesField(block, 1, st)
	block = appendBytesField(block, 2, group)

	var stream []byte
	stream = writeFrame(stream, "OSMData", block)
	path := writeTempFile(t, stream)

	var got primitive.Way
	r, err := Open(path, Callbacks{
		OnWay: func(w primitive.Way) { got = w },
	})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ProcessNextBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, []int64{1, 2, 3, 0}, got.NodeRefs)
	require.Len(t, got.Tags, 2)
	assert.Equal(t, "highway", got.Tags[0].Key)
	assert.Equal(t, "primary", got.Tags[0].Value)
	assert.Equal(t, "name", got.Tags[1].Key)
	assert.Equal(t, "Main", got.Tags[1].Value)
}

func TestOpen_RelationWithRoles(t *testing.T) {
	st := buildStringTable("outer", "inner")
	var rel []byte
	rel = appendPlainInt64Field(rel, 1, 7)
	rel = appendPackedInt32(rel, 8, []int32{1, 2})
	rel = appendPackedSInt64Delta(rel, 9, []int64{10, 15})
	rel = appendPackedUint32(rel, 10, []uint32{1, 1})

	var group []byte
	group = appendBytesField(group, 4, rel)

	var block []byte
	block = appendBytesField(block, 1, st)
	block = appendBytesField(block, 2, group)

	var stream []byte
	stream = writeFrame(stream, "OSMData", block)
	path := writeTempFile(t, stream)

	var got primitive.Relation
	r, err := Open(path, Callbacks{
		OnRelation: func(rel primitive.Relation) { got = rel },
	})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ProcessNextBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	require.Len(t, got.Members, 2)
	assert.Equal(t, int64(10), got.Members[0].RefID)
	assert.Equal(t, "outer", got.Members[0].Role)
	assert.Equal(t, primitive.MemberWay, got.Members[0].Type)
	assert.Equal(t, int64(15), got.Members[1].RefID)
	assert.Equal(t, "inner", got.Members[1].Role)
}

func TestOpen_TruncatedHeader(t *testing.T) {
	// A length prefix claiming far more than the file actually holds.
	var stream []byte
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], 40)
	stream = append(stream, lenPrefix[:]...)
	stream = append(stream, []byte("OSMHeadertoo short")...)
	// Make sure the "OSMHeader" magic the format probe looks for is
	// present so it's dispatched to the binary driver, then fails there.
	path := writeTempFile(t, stream)

	r, err := Open(path, Callbacks{})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ProcessNextBlock()
	assert.ErrorIs(t, err, errs.ErrShortHeader)
}

func TestOpen_TextualInput(t *testing.T) {
	doc := `<osm><bounds minlon="0" minlat="0" maxlon="1" maxlat="1"/>` +
		`<node id="9" lat="0.5" lon="0.5"><tag k="a" v="b"/></node></osm>`
	path := writeTempFile(t, []byte(doc))

	var boundsSeen bool
	var nodes []primitive.Node
	r, err := Open(path, Callbacks{
		OnBounds: func(b primitive.Bounds) { boundsSeen = true },
		OnNodes:  func(n []primitive.Node) { nodes = append(nodes, n...) },
	})
	require.NoError(t, err)
	defer r.Close()

	status, err := r.ProcessNextBlock()
	require.NoError(t, err)
	assert.Equal(t, Eof, status)
	assert.True(t, boundsSeen)
	require.Len(t, nodes, 1)
	assert.Equal(t, int64(9), nodes[0].ID)
}

// TestOpen_AccumulatedCompressedBytesCapSplitsBatch writes three OSMData
// frames, each holding one node, and caps MaxAccumulatedCompressedBytes so
// small that only one frame fits per batch. Every node must still surface
// exactly once across however many ProcessNextBlock calls that takes, proving
// the pendingFrame pushback neither drops nor duplicates a frame that didn't
// fit in the batch being assembled.
func TestOpen_AccumulatedCompressedBytesCapSplitsBatch(t *testing.T) {
	var stream []byte
	for _, id := range []int64{1, 2, 3} {
		var block []byte
		block = appendBytesField(block, 1, buildStringTable())
		group := appendPackedSInt64Delta(nil, 1, []int64{id})
		group = appendPackedSInt64Delta(group, 8, []int64{0})
		group = appendPackedSInt64Delta(group, 9, []int64{0})
		block = appendBytesField(block, 2, group)
		stream = writeFrame(stream, "OSMData", block)
	}
	path := writeTempFile(t, stream)

	var nodes []primitive.Node
	r, err := Open(path, Callbacks{
		OnNodes: func(n []primitive.Node) { nodes = append(nodes, n...) },
	}, WithMaxAccumulatedCompressedBytes(1))
	require.NoError(t, err)
	defer r.Close()

	for {
		status, err := r.ProcessNextBlock()
		require.NoError(t, err)
		if status == Eof {
			break
		}
	}

	require.Len(t, nodes, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{nodes[0].ID, nodes[1].ID, nodes[2].ID})
}

func TestOpen_UnknownFormat(t *testing.T) {
	path := writeTempFile(t, []byte("not an osm file at all, just text"))
	_, err := Open(path, Callbacks{})
	assert.Error(t, err)
}

func TestReader_FailedStateLatches(t *testing.T) {
	var stream []byte
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], 40)
	stream = append(stream, lenPrefix[:]...)
	stream = append(stream, []byte("OSMHeadertoo short")...)
	path := writeTempFile(t, stream)

	r, err := Open(path, Callbacks{})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ProcessNextBlock()
	require.Error(t, err)

	_, err = r.ProcessNextBlock()
	require.Error(t, err)
}
