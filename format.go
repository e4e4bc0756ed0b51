package blockpack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"math"
	"reflect"
	"unsafe"

	"github.com/hupe1980/blockpack/internal/conv"
)

const (
	// FormatMagic identifies serialized blocks; every artifact starts with
	// these four bytes.
	FormatMagic = "BPK1"

	// FormatVersion is the current wire format version.
	FormatVersion uint32 = 1

	// HeaderSize is the size of the block header in bytes.
	HeaderSize = 64

	// maxPayloadSize is the largest raw stream payload the frame's 32-bit
	// size fields can describe.
	maxPayloadSize = math.MaxUint32
)

var (
	// ErrInvalidMagic is returned when the input does not start with a
	// block header.
	ErrInvalidMagic = errors.New("blockpack: invalid magic number")

	// ErrInvalidVersion is returned for an unsupported format version.
	ErrInvalidVersion = errors.New("blockpack: unsupported format version")

	// ErrChecksum is returned when a header or payload fails CRC validation.
	ErrChecksum = errors.New("blockpack: checksum mismatch")

	// ErrWidthMismatch is returned when the stored key/value widths disagree
	// with the type parameters used to decode.
	ErrWidthMismatch = errors.New("blockpack: key/value width mismatch")

	// ErrTruncated is returned when the payload is shorter than the header
	// claims.
	ErrTruncated = errors.New("blockpack: truncated payload")

	// ErrCorrupted is returned when stream lengths are inconsistent with the
	// block discriminator.
	ErrCorrupted = errors.New("blockpack: corrupted block")

	// ErrBlockTooLarge is returned by Encode when the raw streams exceed
	// what the payload frame's 32-bit size fields can describe.
	ErrBlockTooLarge = errors.New("blockpack: block exceeds wire format size limit")
)

// scalar element kinds recorded in the header.
const (
	kindUint  uint8 = 0
	kindInt   uint8 = 1
	kindFloat uint8 = 2
)

type scalar interface {
	Key | Value
}

// scalarInfo returns the byte width and kind code of T.
func scalarInfo[T scalar]() (width, kind uint8) {
	var zero T
	t := reflect.TypeOf(zero)
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		kind = kindFloat
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		kind = kindInt
	default:
		kind = kindUint
	}
	return uint8(t.Size()), kind
}

// KeyWidth returns the byte width of the block's key type.
func (b *Block[K, V]) KeyWidth() int {
	w, _ := scalarInfo[K]()
	return int(w)
}

// ValueWidth returns the byte width of the block's value type.
func (b *Block[K, V]) ValueWidth() int {
	w, _ := scalarInfo[V]()
	return int(w)
}

// sliceBytes reinterprets a scalar slice as its raw bytes without copying.
// Multi-byte elements are stored in host order; like the rest of the file
// format this assumes little-endian hosts.
func sliceBytes[T scalar](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// sliceFromBytes copies raw bytes into a freshly allocated scalar slice.
// Copying (rather than aliasing) guarantees element alignment and gives the
// block exclusive ownership of its streams.
func sliceFromBytes[T scalar](b []byte) []T {
	var zero T
	w := int(unsafe.Sizeof(zero))
	n := len(b) / w
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), n*w), b)
	return out
}

// rawStreamSize returns the combined byte size of the steps, keys and
// values streams. Computed in int64 so oversized blocks are caught before
// the frame's uint32 size fields would truncate.
func rawStreamSize(numSteps, numKeys, numValues int, keyWidth, valWidth uint8) int64 {
	return int64(numSteps)*4 + int64(numKeys)*int64(keyWidth) + int64(numValues)*int64(valWidth)
}

// EncodeOptions controls the wire encoding of a block.
type EncodeOptions struct {
	// Compression is the payload codec. Defaults to CompressionNone.
	Compression Compression
}

// Encode writes the block in wire format: a fixed 64-byte header, the
// framed (and optionally compressed) steps/keys/values streams, and a
// CRC32 trailer over the payload. It returns the number of bytes written.
func (b *Block[K, V]) Encode(w io.Writer, opts EncodeOptions) (int64, error) {
	keyWidth, keyKind := scalarInfo[K]()
	valWidth, valKind := scalarInfo[V]()

	rawLen := rawStreamSize(len(b.steps), len(b.keys), len(b.values), keyWidth, valWidth)
	if rawLen > maxPayloadSize {
		return 0, ErrBlockTooLarge
	}

	raw := make([]byte, 0, int(rawLen))
	raw = append(raw, sliceBytes(b.steps)...)
	raw = append(raw, sliceBytes(b.keys)...)
	raw = append(raw, sliceBytes(b.values)...)

	payload, err := compressPayload(raw, opts.Compression)
	if err != nil {
		return 0, err
	}

	hdr := make([]byte, HeaderSize)
	copy(hdr[0:4], FormatMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], FormatVersion)
	hdr[8] = uint8(opts.Compression)
	hdr[9] = keyWidth
	hdr[10] = keyKind
	hdr[11] = valWidth
	hdr[12] = valKind
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(b.flag))
	binary.LittleEndian.PutUint64(hdr[24:32], uint64(len(b.steps)))
	binary.LittleEndian.PutUint64(hdr[32:40], uint64(len(b.keys)))
	binary.LittleEndian.PutUint64(hdr[40:48], uint64(len(b.values)))
	binary.LittleEndian.PutUint64(hdr[48:56], uint64(len(payload)))
	binary.LittleEndian.PutUint32(hdr[56:60], crc32.ChecksumIEEE(hdr[:56]))

	var written int64
	n, err := w.Write(hdr)
	written += int64(n)
	if err != nil {
		return written, err
	}

	n, err = w.Write(payload)
	written += int64(n)
	if err != nil {
		return written, err
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc32.ChecksumIEEE(payload))
	n, err = w.Write(trailer[:])
	written += int64(n)
	return written, err
}

// WriteTo writes the block uncompressed. It implements io.WriterTo.
func (b *Block[K, V]) WriteTo(w io.Writer) (int64, error) {
	return b.Encode(w, EncodeOptions{})
}

// EncodedSize returns an upper bound for the encoded size of the block
// before compression, useful for buffer pre-sizing.
func (b *Block[K, V]) EncodedSize() int {
	keyWidth, _ := scalarInfo[K]()
	valWidth, _ := scalarInfo[V]()
	return HeaderSize + payloadFrameSize +
		len(b.steps)*4 + len(b.keys)*int(keyWidth) + len(b.values)*int(valWidth) + 4
}

// ReadBlockFrom reads a wire-format block. The type parameters must match
// the widths and kinds recorded when the block was encoded.
func ReadBlockFrom[K Key, V Value](r io.Reader) (*Block[K, V], error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}

	if string(hdr[0:4]) != FormatMagic {
		return nil, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(hdr[4:8]) > FormatVersion {
		return nil, ErrInvalidVersion
	}
	if crc32.ChecksumIEEE(hdr[:56]) != binary.LittleEndian.Uint32(hdr[56:60]) {
		return nil, ErrChecksum
	}

	codec := Compression(hdr[8])
	keyWidth, keyKind := scalarInfo[K]()
	valWidth, valKind := scalarInfo[V]()
	if hdr[9] != keyWidth || hdr[10] != keyKind || hdr[11] != valWidth || hdr[12] != valKind {
		return nil, ErrWidthMismatch
	}

	flag := int64(binary.LittleEndian.Uint64(hdr[16:24]))
	numSteps, err := conv.Uint64ToInt(binary.LittleEndian.Uint64(hdr[24:32]))
	if err != nil {
		return nil, ErrCorrupted
	}
	numKeys, err := conv.Uint64ToInt(binary.LittleEndian.Uint64(hdr[32:40]))
	if err != nil {
		return nil, ErrCorrupted
	}
	numValues, err := conv.Uint64ToInt(binary.LittleEndian.Uint64(hdr[40:48]))
	if err != nil {
		return nil, ErrCorrupted
	}
	payloadSize, err := conv.Uint64ToInt(binary.LittleEndian.Uint64(hdr[48:56]))
	if err != nil {
		return nil, ErrCorrupted
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(trailer[:]) {
		return nil, ErrChecksum
	}

	raw, err := decompressPayload(payload, codec)
	if err != nil {
		return nil, err
	}

	stepBytes := numSteps * 4
	keyBytes := numKeys * int(keyWidth)
	valBytes := numValues * int(valWidth)
	if len(raw) != stepBytes+keyBytes+valBytes {
		return nil, ErrCorrupted
	}

	b := &Block[K, V]{
		steps:  sliceFromBytes[int32](raw[:stepBytes]),
		keys:   sliceFromBytes[K](raw[stepBytes : stepBytes+keyBytes]),
		values: sliceFromBytes[V](raw[stepBytes+keyBytes:]),
		flag:   flag,
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeBlock reads a wire-format block from an in-memory buffer.
func DecodeBlock[K Key, V Value](data []byte) (*Block[K, V], error) {
	return ReadBlockFrom[K, V](bytes.NewReader(data))
}

// validate checks the structural invariants the Builder guarantees, so that
// per-vector decoding can trust them without re-validating on every advance.
func (b *Block[K, V]) validate() error {
	if b.flag <= 0 {
		if len(b.steps) != 0 || len(b.keys) != 0 || len(b.values) != 0 {
			return ErrCorrupted
		}
		return nil
	}
	if len(b.steps) == 0 {
		// Uniform dense: the value stream must cut evenly into vectors.
		if len(b.keys) != 0 || len(b.values)%int(b.flag) != 0 {
			return ErrCorrupted
		}
		return nil
	}
	var keyTotal, valTotal int64
	for _, step := range b.steps {
		switch {
		case step > 0:
			if int64(step) != b.flag {
				return ErrCorrupted
			}
			valTotal += int64(step)
		case step < 0:
			if int64(-step) > b.flag {
				return ErrCorrupted
			}
			keyTotal += int64(-step)
			valTotal += int64(-step)
		}
	}
	if keyTotal != int64(len(b.keys)) || valTotal != int64(len(b.values)) {
		return ErrCorrupted
	}
	return nil
}
