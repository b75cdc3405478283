package pbf

import (
	"runtime"
	"sync"

	"github.com/osmpbf/streamreader/compress"
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/pool"
)

// decompressJob is one blob's worth of decompression work: inflate Blob.Data
// into a slice of Dest and report Err if anything went wrong.
type decompressJob struct {
	codec compress.Decompressor
	src   []byte
	dest  []byte
	err   error
}

func (j *decompressJob) run() {
	if j.codec == nil {
		j.err = errs.ErrUnknownBlobType
		return
	}
	if err := compress.CheckRatio(len(j.src), len(j.dest)); err != nil {
		j.err = err
		return
	}
	if err := j.codec.Decompress(j.dest, j.src); err != nil {
		j.err = err
	}
}

// Pool runs a batch of blob decompressions across a fixed number of worker
// goroutines, writing every blob's output into disjoint regions of one
// shared, pre-grown arena so a multi-gigabyte file decodes through a
// bounded, reused set of allocations rather than one per block.
//
// Pool is not safe for concurrent calls to Batch; callers drive one
// batch to completion before starting the next.
type Pool struct {
	numWorkers int
	arena      *pool.ByteBuffer
}

// NewPool creates a decompression pool with numWorkers goroutines consuming
// jobs. numWorkers <= 0 defaults to runtime.GOMAXPROCS(0).
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		numWorkers: numWorkers,
		arena:      pool.GetArenaBuffer(),
	}
}

// Close returns the pool's arena buffer to its pool.
func (p *Pool) Close() {
	if p.arena != nil {
		pool.PutArenaBuffer(p.arena)
		p.arena = nil
	}
}

// Batch decompresses one blob per element of blobs, each into its own region
// of the shared arena, and returns the decompressed slices in the same
// order. A blob whose CodecField is 0 (Raw) is returned as-is without
// touching the arena.
//
// If any blob fails to decompress, Batch returns the first error observed;
// the caller should treat the whole batch as failed.
func (p *Pool) Batch(blobs []Blob) ([][]byte, error) {
	results := make([][]byte, len(blobs))
	jobs := make([]*decompressJob, 0, len(blobs))

	p.arena.Reset()
	offsets := make([]int, len(blobs))
	totalNeeded := 0
	for i, b := range blobs {
		if b.CodecField == 0 {
			continue
		}
		offsets[i] = totalNeeded
		totalNeeded += int(b.RawSize)
	}
	p.arena.ExtendOrGrow(totalNeeded)

	for i, b := range blobs {
		if b.CodecField == 0 {
			results[i] = b.Data
			continue
		}
		dest := p.arena.Slice(offsets[i], offsets[i]+int(b.RawSize))
		job := &decompressJob{
			codec: compress.ForType(b.CodecField),
			src:   b.Data,
			dest:  dest,
		}
		jobs = append(jobs, job)
		results[i] = dest
	}

	workers := p.numWorkers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers == 0 {
		return results, nil
	}

	jobCh := make(chan *decompressJob, len(jobs))
	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				j.run()
			}
		}()
	}
	wg.Wait()

	for _, j := range jobs {
		if j.err != nil {
			return nil, j.err
		}
	}
	return results, nil
}
