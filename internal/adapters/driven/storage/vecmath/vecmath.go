// Package vecmath holds the vector helpers shared by the storage adapters:
// cosine similarity and the little-endian float32 BLOB encoding.
package vecmath

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/viant/vec/search"
)

// Similarity returns 1 - cosine distance between a and b.
// ok is false when the vectors differ in length, are empty, or either has
// zero magnitude; such pairs have no defined similarity.
func Similarity(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	va := search.Float32s(a)
	if va.Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 0, false
	}
	return 1 - float64(va.CosineDistance(b)), true
}

// Encode packs v as little-endian float32 values. Nil stays nil.
func Encode(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode unpacks a BLOB written by Encode. An empty BLOB decodes to nil.
func Decode(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vecmath: invalid embedding blob length %d", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
