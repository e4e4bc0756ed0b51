// Package partition fans per-partition vector sequences out to object
// storage and back.
//
// A distributed gradient-boosting run produces one vector sequence per data
// partition. Writer packs each sequence into a block, encodes it with the
// configured compression, uploads the artifacts concurrently, and commits a
// JSON manifest describing the run. Reader resolves the manifest and hands
// back each partition's lazy vector sequence.
//
//	w := partition.NewWriter[uint16, float32](store, partition.WriterOptions{
//	    Compression: blockpack.CompressionZSTD,
//	})
//	manifest, err := w.Write(ctx, runID, sources)
//
//	r, err := partition.OpenReader[uint16, float32](ctx, store)
//	vecs, err := r.Vectors(ctx, "part-00042")
//
// Concurrency and throughput are bounded per writer: a worker cap for
// parallel encodes, an optional byte-rate limit for uploads, and an
// optional memory reservation for in-flight encoded artifacts.
package partition
