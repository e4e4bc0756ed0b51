package blockpack

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is returned when a sparse vector is constructed with a
	// negative logical size.
	ErrInvalidSize = errors.New("blockpack: negative vector size")

	// ErrKeyValueLength is returned when a sparse vector's key and value
	// sequences have different lengths.
	ErrKeyValueLength = errors.New("blockpack: sparse key/value length mismatch")

	// ErrKeyOrder is returned when sparse keys are not strictly ascending.
	ErrKeyOrder = errors.New("blockpack: sparse keys not strictly ascending")

	// ErrKeyOutOfRange is returned when a sparse key is outside [0, size).
	ErrKeyOutOfRange = errors.New("blockpack: sparse key out of range")

	// ErrVectorTooLarge is returned when a vector's logical size exceeds the
	// encodable per-vector maximum.
	ErrVectorTooLarge = errors.New("blockpack: vector size exceeds encodable maximum")
)

// ErrSizeMismatch indicates that a vector's logical size disagrees with the
// size established by the first vector added to a builder. All vectors in
// one block must share the same logical size.
type ErrSizeMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrSizeMismatch) Error() string {
	return fmt.Sprintf("blockpack: vector size mismatch: expected %d, got %d", e.Expected, e.Actual)
}
