package blockpack

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// KeySet is a compressed bitmap over the feature positions that are active
// anywhere in a block. The training scheduler uses it to skip features a
// partition never touches.
type KeySet struct {
	rb *roaring.Bitmap
}

// NewKeySet creates an empty key set.
func NewKeySet() *KeySet {
	return &KeySet{rb: roaring.New()}
}

// BlockKeySet computes the union of active positions across all vectors of
// the block. A dense vector activates every position, so the set saturates
// to the full [0, VectorSize) range as soon as one is present.
func BlockKeySet[K Key, V Value](b *Block[K, V]) *KeySet {
	s := NewKeySet()
	if b.flag <= 0 {
		return s
	}
	size := uint64(b.flag)
	if len(b.steps) == 0 {
		if !b.IsEmpty() {
			s.rb.AddRange(0, size)
		}
		return s
	}
	for _, step := range b.steps {
		if step > 0 {
			s.rb.AddRange(0, size)
			return s
		}
	}
	for _, k := range b.keys {
		s.rb.Add(uint32(k))
	}
	return s
}

// Add marks a position as active.
func (s *KeySet) Add(key uint32) {
	s.rb.Add(key)
}

// Contains reports whether a position is active.
func (s *KeySet) Contains(key uint32) bool {
	return s.rb.Contains(key)
}

// Cardinality returns the number of active positions.
func (s *KeySet) Cardinality() uint64 {
	return s.rb.GetCardinality()
}

// IsEmpty reports whether no position is active.
func (s *KeySet) IsEmpty() bool {
	return s.rb.IsEmpty()
}

// Union merges another key set into this one.
func (s *KeySet) Union(other *KeySet) {
	s.rb.Or(other.rb)
}

// Intersect keeps only positions active in both sets.
func (s *KeySet) Intersect(other *KeySet) {
	s.rb.And(other.rb)
}

// Clone returns a deep copy of the key set.
func (s *KeySet) Clone() *KeySet {
	return &KeySet{rb: s.rb.Clone()}
}

// Iterator returns the active positions in ascending order.
func (s *KeySet) Iterator() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}
