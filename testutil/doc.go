// Package testutil provides testing utilities for blockpack.
//
// This package is intended for use in tests and benchmarks only. It
// provides a seeded thread-safe random number generator and helpers for
// generating random dense and sparse vectors.
package testutil
