package compress

import (
	"github.com/pierrec/lz4/v4"

	"github.com/osmpbf/streamreader/errs"
)

// lz4Decompressor decompresses the optional Blob.lz4_data path (field 6).
type lz4Decompressor struct{}

var lz4Codec Decompressor = lz4Decompressor{}

func (lz4Decompressor) Decompress(dst, src []byte) error {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return errs.ErrDecompressFailed
	}
	if n != len(dst) {
		return errs.ErrDecompressFailed
	}
	return nil
}
