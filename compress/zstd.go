package compress

import (
	"github.com/valyala/gozstd"

	"github.com/osmpbf/streamreader/errs"
)

// zstdDecompressor decompresses the optional Blob.zstd_data path (field 7).
type zstdDecompressor struct{}

var zstdCodec Decompressor = zstdDecompressor{}

func (zstdDecompressor) Decompress(dst, src []byte) error {
	// dst is a sub-slice of a larger shared arena handed out per decompression
	// job; its cap() reaches past len(dst) to the end of the arena. Bound it
	// to len(dst) with a three-index slice so DecompressDst's append-growing
	// API can never write into a neighboring, concurrently-decompressing
	// job's region — if the true decompressed size exceeds len(dst), append
	// reallocates instead of overrunning, and the length check below catches
	// the mismatch.
	out, err := gozstd.DecompressDst(dst[:0:len(dst)], src)
	if err != nil {
		return errs.ErrDecompressFailed
	}
	if len(out) != len(dst) {
		return errs.ErrDecompressFailed
	}
	return nil
}
