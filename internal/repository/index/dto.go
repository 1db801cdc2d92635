package index

import (
	"encoding/binary"
	"math"
)

// vectorToBytes serializes []float32 to a binary string (4 bytes per float,
// little-endian), the layout FT.SEARCH expects for FLOAT32 vector fields.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
