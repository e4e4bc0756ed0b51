package blockpack

import (
	"slices"
)

// Key is the constraint for positional key types. Narrow widths (uint8,
// uint16) keep sparse blocks dense in memory; wider widths support large
// logical vector sizes.
type Key interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Value is the constraint for vector element types.
type Value interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Vector is a fixed-size numeric vector in one of two backing forms:
// dense (every position materialized) or sparse (ascending key/value pairs
// for active positions, implicit zero elsewhere).
//
// The zero value is the canonical empty vector (size 0).
//
// Vectors may share backing slices with the Block they were decoded from.
// Callers must not modify the slices returned by Keys and Values.
type Vector[K Key, V Value] struct {
	size   int
	dense  bool
	keys   []K // nil for dense vectors
	values []V
}

// NewDense creates a dense vector backed by values. The logical size is
// len(values). The slice is not copied.
func NewDense[K Key, V Value](values []V) Vector[K, V] {
	return Vector[K, V]{
		size:   len(values),
		dense:  true,
		values: values,
	}
}

// NewSparse creates a sparse vector of the given logical size. keys must be
// strictly ascending and within [0, size); values must be parallel to keys.
// Neither slice is copied. Zero keys is a valid all-zero vector.
func NewSparse[K Key, V Value](size int, keys []K, values []V) (Vector[K, V], error) {
	if size < 0 {
		return Vector[K, V]{}, ErrInvalidSize
	}
	if len(keys) != len(values) {
		return Vector[K, V]{}, ErrKeyValueLength
	}
	for i, k := range keys {
		// The uint64 conversion wraps negative keys to huge values, so one
		// comparison covers both out-of-range directions.
		if uint64(k) >= uint64(size) {
			return Vector[K, V]{}, ErrKeyOutOfRange
		}
		if i > 0 && keys[i-1] >= k {
			return Vector[K, V]{}, ErrKeyOrder
		}
	}
	return Vector[K, V]{
		size:   size,
		keys:   keys,
		values: values,
	}, nil
}

// Size returns the logical length of the vector.
func (v Vector[K, V]) Size() int {
	return v.size
}

// IsEmpty reports whether the logical length is zero.
func (v Vector[K, V]) IsEmpty() bool {
	return v.size == 0
}

// IsDense reports whether the vector is backed by a dense value sequence.
func (v Vector[K, V]) IsDense() bool {
	return v.dense
}

// NNZ returns the number of materialized entries: the size for dense
// vectors, the active-key count for sparse ones.
func (v Vector[K, V]) NNZ() int {
	return len(v.values)
}

// Keys returns the ascending active keys of a sparse vector, or nil for a
// dense vector. The returned slice must not be modified.
func (v Vector[K, V]) Keys() []K {
	return v.keys
}

// Values returns the backing value sequence. For dense vectors this is the
// full vector; for sparse ones it parallels Keys. The returned slice must
// not be modified.
func (v Vector[K, V]) Values() []V {
	return v.values
}

// At returns the value at position i. Sparse positions without an active
// key read as zero. At panics if i is out of [0, Size()).
func (v Vector[K, V]) At(i int) V {
	if i < 0 || i >= v.size {
		panic("blockpack: vector index out of range")
	}
	if v.dense {
		return v.values[i]
	}
	var zero V
	// Positions beyond K's range can never be active; converting such a
	// position to K would wrap onto a live key.
	if uint64(K(i)) != uint64(i) {
		return zero
	}
	if j, ok := slices.BinarySearch(v.keys, K(i)); ok {
		return v.values[j]
	}
	return zero
}

// ToDense materializes the vector as a freshly allocated dense slice.
func (v Vector[K, V]) ToDense() []V {
	out := make([]V, v.size)
	if v.dense {
		copy(out, v.values)
		return out
	}
	for i, k := range v.keys {
		out[k] = v.values[i]
	}
	return out
}

// Equal reports whether two vectors have the same backing form and content.
// All size-0 vectors compare equal regardless of form, since the empty
// vector carries no payload either way.
func (v Vector[K, V]) Equal(o Vector[K, V]) bool {
	if v.size != o.size {
		return false
	}
	if v.size == 0 {
		return true
	}
	if v.dense != o.dense {
		return false
	}
	return slices.Equal(v.keys, o.keys) && slices.Equal(v.values, o.values)
}
