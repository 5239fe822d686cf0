// Package blob encodes day-blobs for persistence. Points are packed as
// little-endian (offsetMs uint32, price float64) pairs and compressed with
// zstd. Compression happens only at this boundary; in-memory stores keep
// the expanded form.
package blob

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"

	"grid-trading-lab/internal/domain"
)

// Codec errors.
var (
	ErrCorruptBlob = errors.New("corrupt day blob")
)

const pairSize = 4 + 8 // uint32 offset + float64 price

// Encode packs and compresses the points of a day blob.
func Encode(points []domain.PricePoint) ([]byte, error) {
	raw := make([]byte, len(points)*pairSize)
	for i, p := range points {
		off := i * pairSize
		binary.LittleEndian.PutUint32(raw[off:], p.OffsetMs)
		binary.LittleEndian.PutUint64(raw[off+4:], math.Float64bits(p.Price))
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	defer enc.Close()

	return enc.EncodeAll(raw, nil), nil
}

// Decode decompresses and unpacks day-blob points.
func Decode(data []byte) ([]domain.PricePoint, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress day blob: %w", err)
	}
	if len(raw)%pairSize != 0 {
		return nil, ErrCorruptBlob
	}

	points := make([]domain.PricePoint, len(raw)/pairSize)
	for i := range points {
		off := i * pairSize
		points[i] = domain.PricePoint{
			OffsetMs: binary.LittleEndian.Uint32(raw[off:]),
			Price:    math.Float64frombits(binary.LittleEndian.Uint64(raw[off+4:])),
		}
	}
	return points, nil
}
