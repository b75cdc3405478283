package wire

import (
	"testing"

	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tag(fieldNumber uint32, wireType Type) byte {
	return byte(fieldNumber<<3) | byte(wireType)
}

func TestReadTag(t *testing.T) {
	c := varint.NewCursor([]byte{tag(1, LengthDelimited)})
	num, wt, err := ReadTag(c)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), num)
	assert.Equal(t, LengthDelimited, wt)
}

func TestReadTag_LargeFieldNumber(t *testing.T) {
	// field 16, varint: (16<<3)|0 = 128, which itself needs 2 bytes encoded.
	buf := []byte{0x80, 0x01}
	c := varint.NewCursor(buf)
	num, wt, err := ReadTag(c)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), num)
	assert.Equal(t, Varint, wt)
}

func TestSkipUnknown_Varint(t *testing.T) {
	c := varint.NewCursor([]byte{0xAC, 0x02, 0x99})
	err := SkipUnknown(c, Varint)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Pos)
}

func TestSkipUnknown_Fixed64(t *testing.T) {
	c := varint.NewCursor(make([]byte, 8))
	err := SkipUnknown(c, Fixed64)
	require.NoError(t, err)
	assert.True(t, c.Done())
}

func TestSkipUnknown_Fixed32(t *testing.T) {
	c := varint.NewCursor(make([]byte, 4))
	err := SkipUnknown(c, Fixed32)
	require.NoError(t, err)
	assert.True(t, c.Done())
}

func TestSkipUnknown_LengthDelimited(t *testing.T) {
	buf := []byte{0x03, 'a', 'b', 'c', 0x42}
	c := varint.NewCursor(buf)
	err := SkipUnknown(c, LengthDelimited)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Pos)
}

func TestSkipUnknown_BadWireType(t *testing.T) {
	c := varint.NewCursor([]byte{0x00})
	err := SkipUnknown(c, Type(6))
	assert.ErrorIs(t, err, errs.ErrBadWireType)
}

func TestReadLengthDelimited(t *testing.T) {
	buf := []byte{0x05, 'h', 'e', 'l', 'l', 'o', 0xFF}
	c := varint.NewCursor(buf)
	sub, err := ReadLengthDelimited(c)
	require.NoError(t, err)
	assert.Equal(t, 5, sub.Remaining())
	b, err := sub.Bytes(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	assert.Equal(t, 6, c.Pos)
}

func TestReadLengthDelimited_Truncated(t *testing.T) {
	buf := []byte{0x05, 'h', 'i'}
	c := varint.NewCursor(buf)
	_, err := ReadLengthDelimited(c)
	assert.ErrorIs(t, err, errs.ErrTruncated)
}

func TestReadLengthDelimited_RespectsParentLimit(t *testing.T) {
	buf := []byte{0x05, 'h', 'e', 'l', 'l', 'o', 'X', 'X'}
	c := varint.NewCursor(buf)
	c.Limit = 4
	_, err := ReadLengthDelimited(c)
	assert.ErrorIs(t, err, errs.ErrTruncated)
}
