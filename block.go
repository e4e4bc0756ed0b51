package blockpack

import "iter"

// Block is a compact, immutable container for many vectors sharing one
// logical size. Vectors are flattened into three streams plus a single
// discriminator:
//
//   - keys: concatenated sparse key sequences, in vector order
//   - values: concatenated value sequences (dense and sparse), in vector order
//   - steps: one signed entry per vector; positive = dense segment length,
//     negative = sparse entry count, zero = sparse vector with no entries
//   - flag: 0 for the empty block; > 0 the shared logical vector size;
//     < 0 the negated vector count when every vector has logical size zero
//
// When every vector is dense, steps is omitted entirely and the vector count
// is recovered as len(values)/flag.
//
// Blocks are produced by a Builder, never mutated afterwards, and are safe
// for concurrent decoding.
type Block[K Key, V Value] struct {
	keys   []K
	values []V
	steps  []int32
	flag   int64
}

// Size returns the number of vectors in the block.
func (b *Block[K, V]) Size() int {
	switch {
	case b.flag <= 0:
		return int(-b.flag)
	case len(b.steps) > 0:
		return len(b.steps)
	default:
		return len(b.values) / int(b.flag)
	}
}

// IsEmpty reports whether the block holds no vectors.
func (b *Block[K, V]) IsEmpty() bool {
	return b.Size() == 0
}

// VectorSize returns the logical size shared by every vector in the block.
// It is zero for the empty block and for the all-size-zero regime.
func (b *Block[K, V]) VectorSize() int {
	if b.flag <= 0 {
		return 0
	}
	return int(b.flag)
}

// NumKeys returns the total number of stored sparse keys.
func (b *Block[K, V]) NumKeys() int {
	return len(b.keys)
}

// NumValues returns the total number of stored values.
func (b *Block[K, V]) NumValues() int {
	return len(b.values)
}

// Vectors returns a lazy, single-pass sequence over the block's vectors in
// their original order. Each call starts a fresh pass; decoding never
// mutates the block, so passes may run concurrently.
func (b *Block[K, V]) Vectors() iter.Seq[Vector[K, V]] {
	return func(yield func(Vector[K, V]) bool) {
		d := NewDecoder(b)
		for {
			v, ok := d.Next()
			if !ok {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Decoder is a forward-only cursor over a block's vectors. It keeps all
// mutable state local, borrowing read-only sub-slices from the block, so any
// number of decoders may walk the same block concurrently.
//
// The decoder trusts the invariants established by the Builder and does not
// re-validate stream lengths on every advance.
type Decoder[K Key, V Value] struct {
	b      *Block[K, V]
	n      int // total vectors
	i      int // next vector index
	keyOff int
	valOff int
}

// NewDecoder returns a fresh decoder positioned before the first vector.
func NewDecoder[K Key, V Value](b *Block[K, V]) *Decoder[K, V] {
	return &Decoder[K, V]{b: b, n: b.Size()}
}

// Remaining returns the number of vectors not yet produced.
func (d *Decoder[K, V]) Remaining() int {
	return d.n - d.i
}

// Next produces the next vector in original order. It returns false once
// all vectors have been produced.
func (d *Decoder[K, V]) Next() (Vector[K, V], bool) {
	if d.i >= d.n {
		return Vector[K, V]{}, false
	}
	if d.b.flag <= 0 {
		// Every vector has logical size zero; only the count survives.
		d.i++
		return Vector[K, V]{}, true
	}

	var step int32
	if len(d.b.steps) > 0 {
		step = d.b.steps[d.i]
	} else {
		step = int32(d.b.flag) // uniform dense
	}
	d.i++

	switch {
	case step > 0:
		n := int(step)
		vals := d.b.values[d.valOff : d.valOff+n : d.valOff+n]
		d.valOff += n
		return Vector[K, V]{size: n, dense: true, values: vals}, true
	case step < 0:
		n := int(-step)
		keys := d.b.keys[d.keyOff : d.keyOff+n : d.keyOff+n]
		vals := d.b.values[d.valOff : d.valOff+n : d.valOff+n]
		d.keyOff += n
		d.valOff += n
		return Vector[K, V]{size: int(d.b.flag), keys: keys, values: vals}, true
	default:
		// Sparse vector with no active entries.
		return Vector[K, V]{size: int(d.b.flag)}, true
	}
}
