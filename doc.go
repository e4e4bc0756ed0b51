// Package blockpack implements a compact block codec for collections of
// numeric vectors of uniform logical size, as used by distributed
// gradient-boosting trainers to ship per-partition feature and statistics
// vectors without per-vector object overhead.
//
// Each vector in a block may independently be dense or sparse. The Builder
// consumes a vector sequence once, in order, and packs it into three flat
// streams (keys, values, per-vector steps) plus one discriminator, picking
// the most compact of four layouts only after the whole input has been
// seen. Decoding reproduces the original sequence lazily and exactly.
//
//	b := blockpack.NewBuilder[uint16, float32]()
//	b.Add(blockpack.NewDense[uint16](featureRow))
//	sv, _ := blockpack.NewSparse[uint16, float32](128, keys, vals)
//	b.Add(sv)
//	block := b.Build()
//
//	for v := range block.Vectors() {
//	    // vectors come back in original order, dense stays dense,
//	    // sparse stays sparse
//	}
//
// Blocks carry a self-describing binary wire format (Encode /
// ReadBlockFrom) with optional LZ4 or ZSTD payload compression, so they can
// be exchanged between workers or parked in object storage. The blobstore
// and partition packages provide that plumbing.
//
// The codec is value-agnostic: keys and values are just two parallel
// numeric streams whose widths are chosen per use site through the type
// parameters. It never interprets the magnitudes it stores.
package blockpack
