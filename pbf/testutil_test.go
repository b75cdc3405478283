package pbf

// Minimal hand-rolled protobuf wire encoders used only to build byte
// fixtures for these tests. Mirrors the decode side exactly so each test
// constructs real wire bytes rather than asserting against golden files.

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

func appendVarintField(buf []byte, fieldNumber uint32, v uint64) []byte {
	buf = appendTag(buf, fieldNumber, 0)
	return appendVarUint(buf, v)
}

func appendSIntField32(buf []byte, fieldNumber uint32, v int32) []byte {
	return appendVarintField(buf, fieldNumber, uint64(zigZag32(v)))
}

func appendSIntField64(buf []byte, fieldNumber uint32, v int64) []byte {
	return appendVarintField(buf, fieldNumber, zigZag64(v))
}

func appendPlainIntField64(buf []byte, fieldNumber uint32, v int64) []byte {
	return appendVarintField(buf, fieldNumber, uint64(v))
}

func appendBytesField(buf []byte, fieldNumber uint32, data []byte) []byte {
	buf = appendTag(buf, fieldNumber, 2)
	buf = appendVarUint(buf, uint64(len(data)))
	return append(buf, data...)
}

func appendStringField(buf []byte, fieldNumber uint32, s string) []byte {
	return appendBytesField(buf, fieldNumber, []byte(s))
}

// appendPackedVarUint32 packs a repeated uint32 field using wire type 2.
func appendPackedVarUint32(buf []byte, fieldNumber uint32, vals []uint32) []byte {
	var packed []byte
	for _, v := range vals {
		packed = appendVarUint(packed, uint64(v))
	}
	return appendBytesField(buf, fieldNumber, packed)
}

// appendPackedSInt32 packs a repeated sint32 field using wire type 2.
func appendPackedSInt32(buf []byte, fieldNumber uint32, vals []int32) []byte {
	var packed []byte
	for _, v := range vals {
		packed = appendVarUint(packed, uint64(zigZag32(v)))
	}
	return appendBytesField(buf, fieldNumber, packed)
}

// appendPackedSInt64Delta packs a repeated sint64 field as deltas between
// successive cumulative values, matching DenseNodes/Way/Relation encoding.
func appendPackedSInt64Delta(buf []byte, fieldNumber uint32, cumulative []int64) []byte {
	var packed []byte
	var prev int64
	for _, v := range cumulative {
		packed = appendVarUint(packed, zigZag64(v-prev))
		prev = v
	}
	return appendBytesField(buf, fieldNumber, packed)
}

// appendPackedInt32 packs a repeated plain (non-zigzag) int32 field.
func appendPackedInt32(buf []byte, fieldNumber uint32, vals []int32) []byte {
	var packed []byte
	for _, v := range vals {
		packed = appendVarUint(packed, uint64(uint32(v)))
	}
	return appendBytesField(buf, fieldNumber, packed)
}
