// Package blobstore abstracts the storage of encoded partition blocks.
//
// The distributed trainer produces one immutable block artifact per data
// partition. BlobStore implementations move those artifacts between the
// pipeline and a backing medium:
//
//   - MemoryStore: in-memory, for tests
//   - LocalStore: local filesystem with mmap-backed reads
//   - s3.Store: Amazon S3 (ranged reads, streaming multipart uploads)
//   - s3.CommitStore: S3 + DynamoDB conditional writes for atomic manifest
//     pointer updates with concurrent writers
//   - minio.Store: MinIO and other S3-compatible object stores
//
// Blobs are written once and never mutated; Open is expected to observe
// a fully written artifact or return ErrNotFound.
package blobstore
