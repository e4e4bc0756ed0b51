package blockpack

import (
	"iter"
	"math"
)

// MaxVectorSize is the largest logical vector size a block can encode.
// Per-vector steps are stored as int32, so the magnitude must fit.
const MaxVectorSize = math.MaxInt32

// Builder accumulates a sequence of vectors and, once the sequence is
// exhausted, emits the most compact block encoding for it. Vectors are
// consumed one at a time in order; the layout decision (empty, count-only,
// uniform dense, or mixed) is deferred until Build.
//
// A builder is single-use: after Build the accumulated buffers belong to
// the returned block and the builder must be discarded.
type Builder[K Key, V Value] struct {
	keys     []K
	values   []V
	steps    []int32
	count    int64
	size     int // logical vector size, -1 until the first Add
	allDense bool
}

// NewBuilder creates an empty builder.
func NewBuilder[K Key, V Value]() *Builder[K, V] {
	return &Builder[K, V]{size: -1, allDense: true}
}

// Add appends one vector. The first vector fixes the block's logical size;
// any later vector of a different size fails with *ErrSizeMismatch.
func (b *Builder[K, V]) Add(v Vector[K, V]) error {
	if b.size < 0 {
		if v.Size() > MaxVectorSize {
			return ErrVectorTooLarge
		}
		b.size = v.Size()
	} else if v.Size() != b.size {
		return &ErrSizeMismatch{Expected: b.size, Actual: v.Size()}
	}
	b.count++

	if v.IsDense() {
		b.values = append(b.values, v.Values()...)
		b.steps = append(b.steps, int32(b.size))
		return nil
	}

	b.allDense = false
	b.keys = append(b.keys, v.Keys()...)
	b.values = append(b.values, v.Values()...)
	b.steps = append(b.steps, -int32(v.NNZ()))
	return nil
}

// Build finalizes the block. The encoding is chosen from what was seen:
//
//   - no vectors: the degenerate empty block (flag 0, no streams)
//   - all vectors of logical size zero: count-only (flag = -count), since
//     zero-size vectors carry no payload regardless of form
//   - all dense: steps omitted, flag = vector size (the hot path for fully
//     dense feature blocks; no per-vector overhead at all)
//   - mixed: all three streams retained, flag = vector size
func (b *Builder[K, V]) Build() *Block[K, V] {
	switch {
	case b.size < 0:
		return &Block[K, V]{}
	case b.size == 0:
		return &Block[K, V]{flag: -b.count}
	case b.allDense:
		return &Block[K, V]{values: b.values, flag: int64(b.size)}
	default:
		return &Block[K, V]{
			keys:   b.keys,
			values: b.values,
			steps:  b.steps,
			flag:   int64(b.size),
		}
	}
}

// Pack consumes a vector sequence and builds a block from it. The sequence
// is iterated exactly once.
func Pack[K Key, V Value](seq iter.Seq[Vector[K, V]]) (*Block[K, V], error) {
	b := NewBuilder[K, V]()
	for v := range seq {
		if err := b.Add(v); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// PackSlice builds a block from an in-memory vector slice.
func PackSlice[K Key, V Value](vecs []Vector[K, V]) (*Block[K, V], error) {
	b := NewBuilder[K, V]()
	for _, v := range vecs {
		if err := b.Add(v); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
