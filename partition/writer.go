package partition

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"iter"
	"path"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hupe1980/blockpack"
	"github.com/hupe1980/blockpack/blobstore"
)

// Source is one partition's vector sequence. The sequence is consumed
// exactly once, from a single worker goroutine.
type Source[K blockpack.Key, V blockpack.Value] struct {
	// ID names the partition, e.g. "part-00042". It becomes the object
	// name blocks/<ID>.bpk and the manifest entry key.
	ID string

	// Vectors yields the partition's vectors in order.
	Vectors iter.Seq[blockpack.Vector[K, V]]
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Concurrency caps the number of partitions encoded and uploaded in
	// parallel. Defaults to runtime.GOMAXPROCS(0).
	Concurrency int

	// Compression selects the payload codec for encoded blocks.
	Compression blockpack.Compression

	// UploadBytesPerSec throttles upload bandwidth across all workers.
	// Zero means unlimited.
	UploadBytesPerSec int64

	// MemoryLimitBytes bounds the total bytes of encoded artifacts held
	// in memory at once. Zero means unbounded.
	MemoryLimitBytes int64

	// Logger receives structured progress events. Defaults to a noop
	// logger.
	Logger *blockpack.Logger
}

// Writer encodes partition vector sequences into blocks, uploads them to a
// blob store, and commits a manifest describing the run. A Writer is safe
// for sequential reuse across runs.
type Writer[K blockpack.Key, V blockpack.Value] struct {
	store     blobstore.BlobStore
	manifests *ManifestStore
	opts      WriterOptions
	limiter   *rate.Limiter
	mem       *semaphore.Weighted
}

// NewWriter creates a Writer on top of a blob store.
func NewWriter[K blockpack.Key, V blockpack.Value](store blobstore.BlobStore, opts WriterOptions) *Writer[K, V] {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = blockpack.NoopLogger()
	}

	w := &Writer[K, V]{
		store:     store,
		manifests: NewManifestStore(store),
		opts:      opts,
	}
	if opts.UploadBytesPerSec > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(opts.UploadBytesPerSec), int(opts.UploadBytesPerSec))
	}
	if opts.MemoryLimitBytes > 0 {
		w.mem = semaphore.NewWeighted(opts.MemoryLimitBytes)
	}
	return w
}

// Write encodes and uploads every source, then commits a manifest with the
// given run ID. Block uploads run concurrently up to the worker cap; the
// manifest is written only after every block upload succeeded, so a
// committed manifest never references a missing block. On error no
// manifest is committed and already uploaded blocks are left behind as
// garbage for the next run to overwrite.
func (w *Writer[K, V]) Write(ctx context.Context, id uint64, sources []Source[K, V]) (*Manifest, error) {
	infos := make([]BlockInfo, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Concurrency)

	for i, src := range sources {
		g.Go(func() error {
			info, err := w.writeBlock(gctx, src)
			if err != nil {
				return fmt.Errorf("partition %s: %w", src.ID, err)
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var zeroBlock blockpack.Block[K, V]
	m := &Manifest{
		Version:     CurrentVersion,
		ID:          id,
		Compression: w.opts.Compression.String(),
		KeyWidth:    zeroBlock.KeyWidth(),
		ValueWidth:  zeroBlock.ValueWidth(),
		Blocks:      infos,
	}

	err := w.manifests.Commit(ctx, m)
	w.opts.Logger.LogManifestCommit(ctx, id, len(infos), err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (w *Writer[K, V]) writeBlock(ctx context.Context, src Source[K, V]) (BlockInfo, error) {
	blk, err := blockpack.Pack(src.Vectors)
	if err != nil {
		w.opts.Logger.LogEncode(ctx, src.ID, 0, 0, err)
		return BlockInfo{}, fmt.Errorf("pack: %w", err)
	}

	size := int64(blk.EncodedSize())
	if w.mem != nil {
		if err := w.mem.Acquire(ctx, size); err != nil {
			return BlockInfo{}, err
		}
		defer w.mem.Release(size)
	}

	var buf bytes.Buffer
	buf.Grow(int(size))
	if _, err := blk.Encode(&buf, blockpack.EncodeOptions{Compression: w.opts.Compression}); err != nil {
		w.opts.Logger.LogEncode(ctx, src.ID, blk.Size(), 0, err)
		return BlockInfo{}, fmt.Errorf("encode: %w", err)
	}
	data := buf.Bytes()
	w.opts.Logger.LogEncode(ctx, src.ID, blk.Size(), int64(len(data)), nil)

	if err := w.waitUpload(ctx, len(data)); err != nil {
		return BlockInfo{}, err
	}

	object := path.Join("blocks", src.ID+".bpk")
	err = w.store.Put(ctx, object, data)
	w.opts.Logger.LogUpload(ctx, src.ID, object, int64(len(data)), err)
	if err != nil {
		return BlockInfo{}, fmt.Errorf("upload %s: %w", object, err)
	}

	return BlockInfo{
		Partition:  src.ID,
		Object:     object,
		Vectors:    blk.Size(),
		VectorSize: blk.VectorSize(),
		Bytes:      int64(len(data)),
		Checksum:   crc32.ChecksumIEEE(data),
	}, nil
}

// waitUpload reserves n bytes of upload budget, in burst-sized chunks so a
// single large block never exceeds the limiter's burst.
func (w *Writer[K, V]) waitUpload(ctx context.Context, n int) error {
	if w.limiter == nil {
		return nil
	}
	burst := w.limiter.Burst()
	for n > 0 {
		c := min(n, burst)
		if err := w.limiter.WaitN(ctx, c); err != nil {
			return err
		}
		n -= c
	}
	return nil
}
