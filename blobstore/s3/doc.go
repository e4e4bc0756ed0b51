// Package s3 implements blobstore.BlobStore for Amazon S3.
//
// Encoded partition blocks are immutable, so the store maps cleanly onto
// object storage: streaming multipart uploads on the write side, ranged
// GETs on the read side.
//
// S3 alone cannot atomically advance the manifest CURRENT pointer when
// several trainer drivers race. CommitStore layers DynamoDB conditional
// writes on top of a Store to provide that compare-and-swap.
package s3
