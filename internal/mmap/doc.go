// Package mmap maps archive files read-only into memory.
//
// The local blob store opens partial results through a Mapping so that
// archive headers can be peeked and payloads checksummed without copying
// the file through a read buffer:
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Bytes()
//
// Unix uses mmap(2) with madvise(2) hints; Windows uses MapViewOfFile and
// treats hints as no-ops. Close is idempotent; Bytes must not be used after
// Close returns.
package mmap
