package pool

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewByteBuffer(t *testing.T) {
	capacity := 1024
	bb := NewByteBuffer(capacity)

	require.NotNil(t, bb)
	require.NotNil(t, bb.B)
	assert.Equal(t, 0, len(bb.B), "new buffer should have zero length")
	assert.Equal(t, capacity, cap(bb.B), "new buffer should have specified capacity")
}

func TestByteBuffer_Bytes(t *testing.T) {
	bb := NewByteBuffer(ScratchBufferDefaultSize)
	bb.B = append(bb.B, []byte("hello")...)

	bs := bb.Bytes()

	assert.Equal(t, []byte("hello"), bs)
	assert.True(t, &bb.B[0] == &bs[0], "Bytes() should return the same underlying slice")
}

func TestByteBuffer_Reset(t *testing.T) {
	bb := NewByteBuffer(ScratchBufferDefaultSize)
	bb.B = append(bb.B, []byte("some data")...)
	originalCap := cap(bb.B)

	bb.Reset()

	assert.Equal(t, 0, len(bb.B))
	assert.Equal(t, originalCap, cap(bb.B))
}

func TestByteBuffer_MustWrite(t *testing.T) {
	bb := NewByteBuffer(ScratchBufferDefaultSize)

	bb.MustWrite([]byte("hello"))
	assert.Equal(t, []byte("hello"), bb.B)

	bb.MustWrite([]byte(" world"))
	assert.Equal(t, []byte("hello world"), bb.B)
}

func TestByteBuffer_Write(t *testing.T) {
	bb := NewByteBuffer(ScratchBufferDefaultSize)

	n, err := bb.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), bb.B)
}

func TestByteBuffer_WriteTo(t *testing.T) {
	bb := NewByteBuffer(ScratchBufferDefaultSize)
	bb.B = append(bb.B, []byte("test data")...)

	var buf bytes.Buffer
	n, err := bb.WriteTo(&buf)

	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, "test data", buf.String())
}

func TestByteBuffer_WriteTo_ErrorPropagation(t *testing.T) {
	bb := NewByteBuffer(ScratchBufferDefaultSize)
	bb.B = append(bb.B, []byte("test")...)

	errorWriter := &errorWriter{err: io.ErrShortWrite}
	n, err := bb.WriteTo(errorWriter)

	assert.Error(t, err)
	assert.Equal(t, io.ErrShortWrite, err)
	assert.Equal(t, int64(0), n)
}

func TestByteBuffer_Slice_SetLength_Extend(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.SetLength(8)
	assert.Equal(t, 8, bb.Len())

	s := bb.Slice(0, 4)
	assert.Len(t, s, 4)

	assert.True(t, bb.Extend(4))
	assert.Equal(t, 12, bb.Len())
	assert.False(t, bb.Extend(1000))
}

func TestByteBuffer_ExtendOrGrow(t *testing.T) {
	bb := NewByteBuffer(4)
	bb.ExtendOrGrow(100)
	assert.Equal(t, 100, bb.Len())
	assert.GreaterOrEqual(t, bb.Cap(), 100)
}

func TestByteBuffer_Grow_SufficientCapacity(t *testing.T) {
	bb := NewByteBuffer(ScratchBufferDefaultSize)
	originalCap := cap(bb.B)

	bb.Grow(100)

	assert.Equal(t, originalCap, cap(bb.B))
}

func TestByteBuffer_Grow_SmallBuffer(t *testing.T) {
	bb := NewByteBuffer(ScratchBufferDefaultSize)
	bb.B = append(bb.B, make([]byte, ScratchBufferDefaultSize)...)

	bb.Grow(1024)

	assert.GreaterOrEqual(t, cap(bb.B), ScratchBufferDefaultSize+1024)
	assert.Equal(t, ScratchBufferDefaultSize, len(bb.B))
}

func TestByteBuffer_Grow_PreservesData(t *testing.T) {
	bb := NewByteBuffer(ScratchBufferDefaultSize)
	testData := []byte("important data that must be preserved")
	bb.B = append(bb.B, testData...)

	bb.Grow(ScratchBufferDefaultSize * 2)

	assert.Equal(t, testData, bb.B)
}

func TestNewByteBufferPool(t *testing.T) {
	p := NewByteBufferPool(8192, 65536)

	require.NotNil(t, p)

	bb := p.Get()
	require.NotNil(t, bb)
	assert.GreaterOrEqual(t, cap(bb.B), 8192)

	p.Put(bb)
}

func TestByteBufferPool_MaxThreshold_Discard(t *testing.T) {
	p := NewByteBufferPool(1024, 4096)

	bb := p.Get()
	bb.Grow(10000)

	assert.Greater(t, cap(bb.B), 4096)

	p.Put(bb)

	bb2 := p.Get()
	assert.LessOrEqual(t, cap(bb2.B), 4096*2, "should not reuse buffer larger than threshold")
}

func TestPutByteBufferPool_NilBuffer(t *testing.T) {
	p := NewByteBufferPool(1024, 4096)
	assert.NotPanics(t, func() {
		p.Put(nil)
	})
}

func TestGetScratchBuffer(t *testing.T) {
	bb := GetScratchBuffer()

	require.NotNil(t, bb)
	assert.Equal(t, 0, len(bb.B))
	assert.GreaterOrEqual(t, cap(bb.B), ScratchBufferDefaultSize)

	PutScratchBuffer(bb)
}

func TestGetArenaBuffer(t *testing.T) {
	bb := GetArenaBuffer()

	require.NotNil(t, bb)
	assert.Equal(t, 0, len(bb.B))
	assert.GreaterOrEqual(t, cap(bb.B), ArenaBufferDefaultSize)

	PutArenaBuffer(bb)
}

func TestArenaBuffer_MaxThreshold(t *testing.T) {
	bb := GetArenaBuffer()
	bb.Grow(10 * 1024 * 1024) // 10MB, beyond ArenaBufferMaxRetained (8MB)

	assert.Greater(t, cap(bb.B), ArenaBufferMaxRetained)

	PutArenaBuffer(bb)

	bb2 := GetArenaBuffer()
	assert.LessOrEqual(t, cap(bb2.B), ArenaBufferMaxRetained*2, "should not reuse overly large buffer")
}

func TestDefaultPools_Independence(t *testing.T) {
	scratchBuf := GetScratchBuffer()
	arenaBuf := GetArenaBuffer()

	assert.NotEqual(t, cap(scratchBuf.B), cap(arenaBuf.B))
	assert.GreaterOrEqual(t, cap(scratchBuf.B), ScratchBufferDefaultSize)
	assert.GreaterOrEqual(t, cap(arenaBuf.B), ArenaBufferDefaultSize)

	PutScratchBuffer(scratchBuf)
	PutArenaBuffer(arenaBuf)
}

func TestPool_ConcurrentAccess(t *testing.T) {
	const numGoroutines = 50
	const numIterations = 200

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				bb := GetScratchBuffer()
				bb.MustWrite([]byte("data"))
				assert.Equal(t, 4, bb.Len())
				PutScratchBuffer(bb)
			}
		}()
	}

	wg.Wait()
}

// errorWriter is a writer that always returns an error.
type errorWriter struct {
	err error
}

func (ew *errorWriter) Write(p []byte) (n int, err error) {
	return 0, ew.err
}

func BenchmarkGetPut_Reuse(b *testing.B) {
	for b.Loop() {
		bb := GetScratchBuffer()
		bb.MustWrite([]byte("benchmark data"))
		PutScratchBuffer(bb)
	}
}
