// Package blobstore stores the archived partial results exchanged between
// the nodes of a distributed computation.
//
// A BlobStore holds immutable, named blobs. Writers publish a blob with a
// single atomic Put; readers Open it and read ranges through the Blob
// handle. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and single-process runs
//   - LocalStore: local file system, atomic rename on write, mmap on read
//   - CachingStore: LRU of whole blobs in front of a remote store
//   - s3.Store: Amazon S3 with range reads and managed uploads
//   - minio.Store: MinIO and other S3-compatible servers
package blobstore
