package pbf

import (
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/varint"
	"github.com/osmpbf/streamreader/internal/wire"
)

// StringTable resolves string-table indices into strings copied out of a
// single PrimitiveBlock's decompressed buffer.
//
//	message StringTable {
//	  repeated bytes s = 1;
//	}
//
// Index 0 always resolves to the empty string (the PBF spec reserves it and
// some producers never emit a first entry at all), so offsets[0] is left as
// a zero-length entry rather than decoded from the wire.
type StringTable struct {
	buf     []byte
	offsets []int32
	lengths []int32
}

// DecodeStringTable parses a StringTable message. The returned table borrows
// from buf, so buf must outlive the table; strings produced by Get are
// copies and do not depend on buf.
func DecodeStringTable(buf []byte) (StringTable, error) {
	c := varint.NewCursor(buf)
	st := StringTable{
		buf:     buf,
		offsets: []int32{0},
		lengths: []int32{0},
	}
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return StringTable{}, err
		}
		if fieldNum != 1 {
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return StringTable{}, err
			}
			continue
		}
		sub, err := wire.ReadLengthDelimited(c)
		if err != nil {
			return StringTable{}, err
		}
		st.offsets = append(st.offsets, int32(sub.Pos))
		st.lengths = append(st.lengths, int32(sub.Remaining()))
	}
	return st, nil
}

// Len reports the number of entries, including the synthetic empty entry at
// index 0.
func (st StringTable) Len() int {
	return len(st.offsets)
}

// Get resolves index idx to a copy of its string.
func (st StringTable) Get(idx uint32) (string, error) {
	if int(idx) >= len(st.offsets) {
		return "", errs.ErrStringIndexOutOfRange
	}
	if st.lengths[idx] == 0 {
		return "", nil
	}
	off := st.offsets[idx]
	return string(st.buf[off : off+st.lengths[idx]]), nil
}
