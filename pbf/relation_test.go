package pbf

import (
	"testing"

	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/primitive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRelations_RolesAndTypes(t *testing.T) {
	st, err := DecodeStringTable(buildStringTable("outer", "inner"))
	require.NoError(t, err)
	params := blockParams{granularity: 100}

	var relBuf []byte
	relBuf = appendPlainIntField64(relBuf, 1, 55)
	relBuf = appendPackedInt32(relBuf, 8, []int32{1, 2})
	relBuf = appendPackedSInt64Delta(relBuf, 9, []int64{100, 200})
	relBuf = appendPackedVarUint32(relBuf, 10, []uint32{1, 1})

	var groupBuf []byte
	groupBuf = appendBytesField(groupBuf, 4, relBuf)

	relations, err := DecodeRelations(groupBuf, st, params)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	r := relations[0]
	assert.Equal(t, int64(55), r.ID)
	require.Len(t, r.Members, 2)
	assert.Equal(t, "outer", r.Members[0].Role)
	assert.Equal(t, "inner", r.Members[1].Role)
	assert.Equal(t, primitive.MemberWay, r.Members[0].Type)
	assert.Equal(t, int64(100), r.Members[0].RefID)
	assert.Equal(t, int64(200), r.Members[1].RefID)
}

func TestDecodeRelations_MismatchedArrays(t *testing.T) {
	st, err := DecodeStringTable(nil)
	require.NoError(t, err)

	var relBuf []byte
	relBuf = appendPlainIntField64(relBuf, 1, 1)
	relBuf = appendPackedInt32(relBuf, 8, []int32{0})
	relBuf = appendPackedSInt64Delta(relBuf, 9, []int64{1, 2})
	relBuf = appendPackedVarUint32(relBuf, 10, []uint32{0, 0})

	var groupBuf []byte
	groupBuf = appendBytesField(groupBuf, 4, relBuf)

	_, err = DecodeRelations(groupBuf, st, blockParams{granularity: 100})
	assert.ErrorIs(t, err, errs.ErrMalformedRelation)
}

func TestDecodeRelations_InvalidMemberType(t *testing.T) {
	st, err := DecodeStringTable(nil)
	require.NoError(t, err)

	var relBuf []byte
	relBuf = appendPlainIntField64(relBuf, 1, 1)
	relBuf = appendPackedInt32(relBuf, 8, []int32{0})
	relBuf = appendPackedSInt64Delta(relBuf, 9, []int64{1})
	relBuf = appendPackedVarUint32(relBuf, 10, []uint32{9})

	var groupBuf []byte
	groupBuf = appendBytesField(groupBuf, 4, relBuf)

	_, err = DecodeRelations(groupBuf, st, blockParams{granularity: 100})
	assert.ErrorIs(t, err, errs.ErrInvalidMemberType)
}
