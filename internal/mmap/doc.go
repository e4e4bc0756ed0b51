// Package mmap provides read-only memory-mapped file access.
//
// Encoded partition blocks opened from a local store are mapped instead of
// read, so decoding borrows directly from the page cache without copying
// whole files onto the heap.
//
//	m, err := mmap.Open("part-00042.bpk")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes() // zero-copy view of the file
//	m.Advise(mmap.AccessSequential)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) for access hints
//   - Windows: CreateFileMapping/MapViewOfFile (advise is a no-op)
//
// # Thread Safety
//
// A Mapping is safe for concurrent read access. Close is idempotent and
// protected by atomics, but callers must ensure no goroutine touches
// Bytes() after Close returns.
package mmap
