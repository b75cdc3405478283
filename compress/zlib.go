package compress

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/osmpbf/streamreader/errs"
)

// zlibDecompressor decompresses the required DEFLATE path (Blob.zlib_data,
// field 3). This is the only codec every conformant OSM PBF reader must
// support.
type zlibDecompressor struct{}

var zlibCodec Decompressor = zlibDecompressor{}

// zlibReaderPool reuses zlib.Resetter-capable readers across blobs so a
// multi-threaded decode doesn't allocate a new inflate window per block.
var zlibReaderPool = sync.Pool{
	New: func() any { return new(zlibReaderHolder) },
}

type zlibReaderHolder struct {
	r io.ReadCloser
}

func (zlibDecompressor) Decompress(dst, src []byte) error {
	h, _ := zlibReaderPool.Get().(*zlibReaderHolder)
	defer zlibReaderPool.Put(h)

	br := bytes.NewReader(src)
	var err error
	if h.r == nil {
		h.r, err = zlib.NewReader(br)
	} else if resetter, ok := h.r.(zlib.Resetter); ok {
		err = resetter.Reset(br, nil)
	} else {
		h.r, err = zlib.NewReader(br)
	}
	if err != nil {
		return errs.ErrDecompressFailed
	}
	defer h.r.Close()

	n, err := io.ReadFull(h.r, dst)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return errs.ErrDecompressFailed
	}
	if n != len(dst) {
		return errs.ErrDecompressFailed
	}

	// Confirm the stream doesn't carry more data than declared: a single
	// extra byte read here means raw_size under-declared the payload.
	var extra [1]byte
	if m, _ := h.r.Read(extra[:]); m > 0 {
		return errs.ErrDecompressFailed
	}
	return nil
}
