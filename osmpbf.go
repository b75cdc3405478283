// Package osmpbf provides a streaming reader for OpenStreetMap extracts,
// in either the binary PBF format or plain OSM XML. Both formats are
// auto-detected from the first bytes of the input and decoded into the same
// primitive.Node/Way/Relation/Bounds callbacks, so callers don't need to
// know ahead of time which one they were handed.
//
// # Basic usage
//
//	r, err := osmpbf.Open(path, osmpbf.Callbacks{
//		OnNodes:    func(n []primitive.Node) { ... },
//		OnWay:      func(w primitive.Way) { ... },
//		OnRelation: func(rel primitive.Relation) { ... },
//		OnBounds:   func(b primitive.Bounds) { ... },
//	})
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//
//	for {
//		status, err := r.ProcessNextBlock()
//		if err != nil {
//			return err
//		}
//		if status == osmpbf.Eof {
//			break
//		}
//	}
package osmpbf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/options"
	"github.com/osmpbf/streamreader/osmxml"
	"github.com/osmpbf/streamreader/pbf"
	"github.com/osmpbf/streamreader/primitive"
)

// Callbacks are invoked synchronously on the goroutine that calls
// ProcessNextBlock. A nil callback is treated as a no-op; the struct never
// needs every field populated.
//
// Implementations must not retain the slices or structs they're handed past
// the callback's return: the reader guarantees their contents only for the
// duration of the callback.
type Callbacks struct {
	OnNodes    func([]primitive.Node)
	OnWay      func(primitive.Way)
	OnRelation func(primitive.Relation)
	OnBounds   func(primitive.Bounds)
}

// Status is the result of one ProcessNextBlock call.
type Status uint8

const (
	// Ok means a block was processed and zero or more callbacks fired.
	Ok Status = iota
	// Eof means the stream is exhausted; no further callbacks will fire.
	Eof
)

// driverKind selects which format a Reader was opened against.
type driverKind uint8

const (
	driverBinary driverKind = iota
	driverTextual
)

// config holds the functional-option-configurable knobs. See Option.
type config struct {
	numThreads                     int
	maxAccumulatedCompressedBytes   int64
	maxAccumulatedUncompressedBytes int64
	maxPoolJobsPerBatch             int
}

func defaultConfig() *config {
	return &config{
		numThreads:                      0, // 0 means pbf.NewPool's own GOMAXPROCS default
		maxAccumulatedCompressedBytes:   50 * 1024 * 1024,
		maxAccumulatedUncompressedBytes: 100 * 1024 * 1024,
		maxPoolJobsPerBatch:             1024,
	}
}

// Option configures a Reader at Open time.
type Option = options.Option[*config]

// WithNumThreads sets the number of decompression worker goroutines. n <= 0
// uses runtime.GOMAXPROCS(0).
func WithNumThreads(n int) Option {
	return options.NoError(func(c *config) { c.numThreads = n })
}

// WithMaxAccumulatedCompressedBytes bounds how many compressed bytes a
// single batch submitted to the decompression pool may total.
func WithMaxAccumulatedCompressedBytes(n int64) Option {
	return options.New(func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("osmpbf: max accumulated compressed bytes must be positive")
		}
		c.maxAccumulatedCompressedBytes = n
		return nil
	})
}

// WithMaxAccumulatedUncompressedBytes bounds how many decompressed bytes a
// single batch may total, independent of the zip-bomb ratio check.
func WithMaxAccumulatedUncompressedBytes(n int64) Option {
	return options.New(func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("osmpbf: max accumulated uncompressed bytes must be positive")
		}
		c.maxAccumulatedUncompressedBytes = n
		return nil
	})
}

// WithMaxPoolJobsPerBatch bounds how many blobs are coalesced into a single
// decompression-pool batch before the reader blocks waiting on it.
func WithMaxPoolJobsPerBatch(n int) Option {
	return options.New(func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("osmpbf: max pool jobs per batch must be positive")
		}
		c.maxPoolJobsPerBatch = n
		return nil
	})
}

// Reader is a single, stateful streaming decode of one OSM extract. It is
// not safe for concurrent use.
type Reader struct {
	cfg    *config
	cb     Callbacks
	kind   driverKind
	path   string

	file   *os.File
	framer *pbf.Framer
	pool   *pbf.Pool
	queue  []pbf.Blob // decompressed blobs awaiting processing, current batch

	// pendingFrame holds a frame already read off the framer that didn't fit
	// in the batch being assembled (an accumulated-size cap would have been
	// exceeded), so the next fillQueue call picks it up first instead of
	// re-reading the stream.
	pendingFrame *pbf.Frame

	xmlDec *osmxml.Decoder

	failed error
	closed bool
}

// Open probes the first 1KiB of the file at path for a binary OSMHeader
// magic or a textual "<osm" prefix and returns a Reader driving whichever
// format matched. Returns errs.ErrUnknownFormat if neither matched.
func Open(path string, cb Callbacks, opts ...Option) (*Reader, error) {
	cfg := defaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	kind, err := probeFormat(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &Reader{cfg: cfg, cb: cb, kind: kind, path: path, file: f}
	if err := r.initDriver(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// probeFormat reads up to 1KiB from the start of f (then seeks back to 0)
// looking for the binary "OSMHeader" blob-type magic or a textual "<osm"
// document start.
func probeFormat(f *os.File) (driverKind, error) {
	var buf [1024]byte
	n, err := io.ReadFull(f, buf[:])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	head := buf[:n]
	if bytes.Contains(head, []byte("OSMHeader")) {
		return driverBinary, nil
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<osm")) {
		return driverTextual, nil
	}
	return 0, errs.ErrUnknownFormat
}

func (r *Reader) initDriver() error {
	switch r.kind {
	case driverBinary:
		r.framer = pbf.NewFramer(bufio.NewReaderSize(r.file, 256*1024))
		r.pool = pbf.NewPool(r.cfg.numThreads)
	case driverTextual:
		r.xmlDec = osmxml.New(bufio.NewReaderSize(r.file, 64*1024), osmxml.Emitter{
			OnNodes:    r.cb.OnNodes,
			OnWay:      r.cb.OnWay,
			OnRelation: r.cb.OnRelation,
			OnBounds:   r.cb.OnBounds,
		})
	}
	return nil
}

// Reset rewinds the underlying file and clears all reader-internal state so
// the same Reader can decode the file again from the start.
func (r *Reader) Reset() error {
	if r.closed {
		return errs.ErrReaderClosed
	}
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r.failed = nil
	r.queue = nil
	r.pendingFrame = nil
	if r.pool != nil {
		r.pool.Close()
	}
	return r.initDriver()
}

// ProcessNextBlock advances the decode by one logical unit: one decoded
// blob for the binary driver, or the textual driver running to completion
// of the document (the textual decoder has no natural block boundary, so a
// single call drains it and every subsequent call returns Eof).
//
// Once ProcessNextBlock returns a non-nil error, the Reader is latched into
// a failed state: every subsequent call returns errs.ErrReaderFailed until
// Reset is called.
func (r *Reader) ProcessNextBlock() (Status, error) {
	if r.closed {
		return Status(0), errs.ErrReaderClosed
	}
	if r.failed != nil {
		return Status(0), errs.ErrReaderFailed
	}

	status, err := r.processNextBlockLocked()
	if err != nil {
		r.failed = err
	}
	return status, err
}

func (r *Reader) processNextBlockLocked() (Status, error) {
	switch r.kind {
	case driverBinary:
		return r.processNextBinaryBlock()
	case driverTextual:
		return r.processTextual()
	default:
		return Status(0), errs.ErrUnknownFormat
	}
}

func (r *Reader) processTextual() (Status, error) {
	if err := r.xmlDec.Run(); err != nil {
		return Status(0), err
	}
	return Eof, nil
}

func (r *Reader) processNextBinaryBlock() (Status, error) {
	if len(r.queue) == 0 {
		if err := r.fillQueue(); err != nil {
			if err == io.EOF {
				return Eof, nil
			}
			return Status(0), err
		}
		if len(r.queue) == 0 {
			return Eof, nil
		}
	}

	data := r.queue[0]
	r.queue = r.queue[1:]
	return Ok, r.decodeDataBlock(data)
}

// blobUncompressedSize estimates how many bytes a blob will occupy once
// decompressed: the declared raw_size for a compressed payload, or the
// payload length itself for an already-raw one (raw_size is optional and
// frequently absent when CodecField is 0).
func blobUncompressedSize(b pbf.Blob) int64 {
	if b.CodecField == 0 {
		return int64(len(b.Data))
	}
	return int64(b.RawSize)
}

// fillQueue reads and submits frames to the decompression pool, populating
// r.queue with their decompressed bytes wrapped back into Blob values for
// decodeDataBlock to consume. Coalescing stops at whichever of three caps is
// hit first: MaxPoolJobsPerBatch (frame count), MaxAccumulatedCompressedBytes
// (sum of on-wire payload bytes) or MaxAccumulatedUncompressedBytes (sum of
// declared/raw decompressed sizes) — matching the framer's documented
// job-count-or-accumulated-size coalescing contract.
func (r *Reader) fillQueue() error {
	var frames []pbf.Frame
	var compressedTotal, uncompressedTotal int64

	for len(frames) < r.cfg.maxPoolJobsPerBatch {
		var frame pbf.Frame
		if r.pendingFrame != nil {
			frame = *r.pendingFrame
			r.pendingFrame = nil
		} else {
			f, err := r.framer.NextFrame()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			frame = f
		}

		if frame.Header.Type == "OSMHeader" {
			// OSMHeader is always processed in isolation, not coalesced
			// into an OSMData batch, regardless of where it falls in
			// the stream.
			if err := r.decodeHeaderFrame(frame); err != nil {
				return err
			}
			continue
		}

		compressedSize := int64(len(frame.Blob.Data))
		uncompressedSize := blobUncompressedSize(frame.Blob)
		if len(frames) > 0 &&
			(compressedTotal+compressedSize > r.cfg.maxAccumulatedCompressedBytes ||
				uncompressedTotal+uncompressedSize > r.cfg.maxAccumulatedUncompressedBytes) {
			// Adding this frame would exceed an accumulated cap; flush the
			// batch assembled so far and pick this frame up next time.
			r.pendingFrame = &frame
			break
		}

		frames = append(frames, frame)
		compressedTotal += compressedSize
		uncompressedTotal += uncompressedSize
	}
	if len(frames) == 0 {
		return io.EOF
	}

	blobs := make([]pbf.Blob, len(frames))
	for i, f := range frames {
		blobs[i] = f.Blob
	}
	decoded, err := r.pool.Batch(blobs)
	if err != nil {
		return err
	}
	for i := range blobs {
		blobs[i].Data = decoded[i]
		blobs[i].CodecField = 0
	}
	r.queue = blobs
	return nil
}

func (r *Reader) decodeHeaderFrame(frame pbf.Frame) error {
	decoded, err := r.pool.Batch([]pbf.Blob{frame.Blob})
	if err != nil {
		return err
	}
	hb, err := pbf.DecodeHeaderBlock(decoded[0])
	if err != nil {
		return err
	}
	if hb.HasBounds && r.cb.OnBounds != nil {
		r.cb.OnBounds(hb.Bounds)
	}
	return nil
}

func (r *Reader) decodeDataBlock(blob pbf.Blob) error {
	block, err := pbf.DecodeBlock(blob.Data)
	if err != nil {
		return err
	}
	for i := 0; i < block.NumGroups(); i++ {
		if err := r.decodeGroup(block, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) decodeGroup(block pbf.Block, i int) error {
	buf := block.GroupBytes(i)
	kind, err := pbf.ProbeGroup(buf)
	if err != nil {
		return err
	}
	switch kind {
	case pbf.GroupDense:
		nodes, err := pbf.DecodeDense(buf, block.Strings, block.Params)
		if err != nil {
			return err
		}
		if r.cb.OnNodes != nil {
			r.cb.OnNodes(nodes)
		}
	case pbf.GroupNodes:
		nodes, err := pbf.DecodeNodes(buf, block.Strings, block.Params)
		if err != nil {
			return err
		}
		if len(nodes) > 0 && r.cb.OnNodes != nil {
			r.cb.OnNodes(nodes)
		}
	case pbf.GroupWays:
		ways, err := pbf.DecodeWays(buf, block.Strings, block.Params)
		if err != nil {
			return err
		}
		if r.cb.OnWay != nil {
			for _, w := range ways {
				r.cb.OnWay(w)
			}
		}
	case pbf.GroupRelations:
		relations, err := pbf.DecodeRelations(buf, block.Strings, block.Params)
		if err != nil {
			return err
		}
		if r.cb.OnRelation != nil {
			for _, rel := range relations {
				r.cb.OnRelation(rel)
			}
		}
	}
	return nil
}

// Close releases the reader's file handle and pooled buffers. Safe to call
// more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.framer != nil {
		r.framer.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
	return r.file.Close()
}
