package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/blockpack/blobstore"
)

// uploadPartSize bounds the part buffer for streaming uploads of unknown
// length. Matches the part size used by the s3 store.
const uploadPartSize = 8 * 1024 * 1024

// Store implements blobstore.BlobStore on a MinIO client. It works against
// MinIO itself and any other S3-compatible endpoint the client can reach.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore creates a store that keeps all artifacts under rootPrefix in
// the given bucket.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// isNotFound matches the error codes S3-compatible servers use for a
// missing object.
func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open resolves the object size up front; the returned Blob serves reads
// with ranged GETs.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.key(name), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}

	return &objectBlob{
		client: s.client,
		bucket: s.bucket,
		key:    s.key(name),
		size:   info.Size,
	}, nil
}

// Put uploads an artifact in a single request. The object becomes visible
// atomically.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

// Create starts a streaming upload of unknown length. The object appears
// only after Close returns nil.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	up := &pipeUpload{
		pw:   pw,
		done: make(chan error, 1),
	}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(name), pr, -1, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
			PartSize:    uploadPartSize,
		})
		_ = pr.CloseWithError(err)
		up.done <- err
	}()

	return up, nil
}

// Delete removes an artifact. Deleting a missing artifact is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// List returns the sorted artifact names under prefix, relative to the
// store root.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(strings.TrimPrefix(obj.Key, s.prefix), "/")
		if name != "" {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// objectBlob serves ranged reads against a single immutable object.
type objectBlob struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (b *objectBlob) Size() int64 {
	return b.size
}

func (b *objectBlob) Close() error {
	return nil
}

// rangeEnd clamps a read of n bytes at off to the object tail and returns
// the inclusive end offset. ok is false when the read starts at or past
// the end of the object.
func (b *objectBlob) rangeEnd(off, n int64) (end int64, ok bool) {
	if off >= b.size || n <= 0 {
		return 0, false
	}
	end = off + n - 1
	if end >= b.size {
		end = b.size - 1
	}
	return end, true
}

func (b *objectBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	end, ok := b.rangeEnd(off, int64(len(p)))
	if !ok {
		return 0, io.EOF
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return 0, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, b.key, opts)
	if err != nil {
		return 0, err
	}
	defer func() { _ = obj.Close() }()

	n, err := io.ReadFull(obj, p[:end-off+1])
	if err == nil && n < len(p) {
		// The object ends inside p.
		return n, io.EOF
	}
	return n, err
}

func (b *objectBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	end, ok := b.rangeEnd(off, length)
	if !ok {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return nil, err
	}
	return b.client.GetObject(ctx, b.bucket, b.key, opts)
}

// pipeUpload feeds a background streaming upload through an io.Pipe.
type pipeUpload struct {
	pw     *io.PipeWriter
	done   chan error
	closed atomic.Bool
}

func (u *pipeUpload) Write(p []byte) (int, error) {
	return u.pw.Write(p)
}

// Sync is a no-op; the upload is only committed on Close.
func (u *pipeUpload) Sync() error {
	return nil
}

func (u *pipeUpload) Close() error {
	if !u.closed.CompareAndSwap(false, true) {
		return errors.New("blob already closed")
	}
	if err := u.pw.Close(); err != nil {
		return err
	}
	return <-u.done
}
