package testutil

import (
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/blockpack"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), // nolint gosec
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// value returns a pseudo-random scalar in [0, 100). The narrow range keeps
// values representable in every value type, int8 included.
func value[V blockpack.Value](r *rand.Rand) V {
	return V(r.Intn(100))
}

// Dense generates a dense vector of the given size.
func Dense[K blockpack.Key, V blockpack.Value](r *RNG, size int) blockpack.Vector[K, V] {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := make([]V, size)
	for i := range values {
		values[i] = value[V](r.rand)
	}
	return blockpack.NewDense[K](values)
}

// Sparse generates a sparse vector of the given size with nnz entries at
// distinct ascending keys. size must be representable in the key type K.
func Sparse[K blockpack.Key, V blockpack.Value](r *RNG, size, nnz int) blockpack.Vector[K, V] {
	r.mu.Lock()
	defer r.mu.Unlock()

	perm := r.rand.Perm(size)[:nnz]
	slices.Sort(perm)

	keys := make([]K, nnz)
	values := make([]V, nnz)
	for i, k := range perm {
		keys[i] = K(k)
		values[i] = value[V](r.rand)
	}

	v, err := blockpack.NewSparse(size, keys, values)
	if err != nil {
		// Keys from Perm are in range and strictly ascending.
		panic(err)
	}
	return v
}

// Vectors generates num vectors of the given size. Each vector is sparse
// with probability sparseRate and dense otherwise; sparse vectors carry a
// random entry count in [0, size].
func Vectors[K blockpack.Key, V blockpack.Value](r *RNG, num, size int, sparseRate float64) []blockpack.Vector[K, V] {
	vecs := make([]blockpack.Vector[K, V], num)
	for i := range vecs {
		if r.Float64() < sparseRate {
			vecs[i] = Sparse[K, V](r, size, r.Intn(size+1))
		} else {
			vecs[i] = Dense[K, V](r, size)
		}
	}
	return vecs
}
