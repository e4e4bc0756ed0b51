package partition

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"iter"

	"github.com/hupe1980/blockpack"
	"github.com/hupe1980/blockpack/blobstore"
)

// ErrPartitionNotFound is returned when the manifest has no entry for the
// requested partition.
var ErrPartitionNotFound = errors.New("partition not found in manifest")

// Reader resolves a committed manifest and serves per-partition blocks.
type Reader[K blockpack.Key, V blockpack.Value] struct {
	store    blobstore.BlobStore
	manifest *Manifest
}

// OpenReader loads the current manifest from the store. It fails with
// blockpack.ErrWidthMismatch when the manifest was written with different
// key or value widths than K and V.
func OpenReader[K blockpack.Key, V blockpack.Value](ctx context.Context, store blobstore.BlobStore) (*Reader[K, V], error) {
	m, err := NewManifestStore(store).Load(ctx)
	if err != nil {
		return nil, err
	}

	var zeroBlock blockpack.Block[K, V]
	if m.KeyWidth != zeroBlock.KeyWidth() || m.ValueWidth != zeroBlock.ValueWidth() {
		return nil, fmt.Errorf("%w: manifest key/value widths %d/%d, want %d/%d",
			blockpack.ErrWidthMismatch, m.KeyWidth, m.ValueWidth, zeroBlock.KeyWidth(), zeroBlock.ValueWidth())
	}

	return &Reader[K, V]{store: store, manifest: m}, nil
}

// Manifest returns the resolved manifest.
func (r *Reader[K, V]) Manifest() *Manifest {
	return r.manifest
}

// Partitions returns the partition names in manifest order.
func (r *Reader[K, V]) Partitions() []string {
	return r.manifest.Partitions()
}

// Block fetches and decodes one partition's block. The artifact is
// verified against the manifest checksum before decoding.
func (r *Reader[K, V]) Block(ctx context.Context, partition string) (*blockpack.Block[K, V], error) {
	info, ok := r.manifest.Block(partition)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, partition)
	}

	blob, err := r.store.Open(ctx, info.Object)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", info.Object, err)
	}
	data, err := blobstore.ReadAll(ctx, blob)
	_ = blob.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", info.Object, err)
	}

	if sum := crc32.ChecksumIEEE(data); sum != info.Checksum {
		return nil, fmt.Errorf("%w: %s: artifact checksum 0x%08x, manifest 0x%08x",
			blockpack.ErrChecksum, info.Object, sum, info.Checksum)
	}

	blk, err := blockpack.DecodeBlock[K, V](data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", info.Object, err)
	}
	return blk, nil
}

// Vectors fetches one partition's block and returns its lazy vector
// sequence. The block is held in memory for the lifetime of the sequence.
func (r *Reader[K, V]) Vectors(ctx context.Context, partition string) (iter.Seq[blockpack.Vector[K, V]], error) {
	blk, err := r.Block(ctx, partition)
	if err != nil {
		return nil, err
	}
	return blk.Vectors(), nil
}
