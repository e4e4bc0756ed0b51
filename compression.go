package blockpack

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload compression codec of the wire format.
type Compression uint8

const (
	// CompressionNone stores the streams uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, good for hot shuffles).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD block compression (better ratio, good for
	// blocks parked in object storage).
	CompressionZSTD Compression = 2
)

// ErrUnknownCompression is returned when a block header names a codec this
// build does not know.
var ErrUnknownCompression = errors.New("blockpack: unknown compression codec")

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Payload framing: [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means the data is stored uncompressed.
const payloadFrameSize = 8

// compressPayload frames and compresses data with the given codec. If the
// codec does not help (ratio > 0.9) the data is framed uncompressed, so
// incompressible streams never grow by more than the frame header.
func compressPayload(data []byte, codec Compression) ([]byte, error) {
	var compressed []byte
	var err error

	switch codec {
	case CompressionNone:
		// Framed below.
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZSTD:
		compressed = compressZSTD(data)
	default:
		return nil, ErrUnknownCompression
	}
	if err != nil {
		return nil, err
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, payloadFrameSize+len(data))
		binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(result[4:], 0)
		copy(result[payloadFrameSize:], data)
		return result, nil
	}

	result := make([]byte, payloadFrameSize+len(compressed))
	binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(result[4:], uint32(len(compressed)))
	copy(result[payloadFrameSize:], compressed)
	return result, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return compressed[:n], nil
}

func compressZSTD(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)
	return enc.EncodeAll(data, nil)
}

// decompressPayload reverses compressPayload. codec must match the codec
// recorded in the block header.
func decompressPayload(framed []byte, codec Compression) ([]byte, error) {
	if len(framed) < payloadFrameSize {
		return nil, ErrTruncated
	}
	uncompressedSize := binary.LittleEndian.Uint32(framed[0:4])
	compressedSize := binary.LittleEndian.Uint32(framed[4:8])
	body := framed[payloadFrameSize:]

	if compressedSize == 0 {
		if len(body) < int(uncompressedSize) {
			return nil, ErrTruncated
		}
		return body[:uncompressedSize], nil
	}
	if len(body) < int(compressedSize) {
		return nil, ErrTruncated
	}
	body = body[:compressedSize]

	switch codec {
	case CompressionLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, err
		}
		if n != int(uncompressedSize) {
			return nil, ErrTruncated
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)
		out, err := dec.DecodeAll(body, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, err
		}
		if len(out) != int(uncompressedSize) {
			return nil, ErrTruncated
		}
		return out, nil
	default:
		return nil, ErrUnknownCompression
	}
}

// String returns the codec name used in manifests.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompression maps a manifest codec name back to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, ErrUnknownCompression
	}
}
