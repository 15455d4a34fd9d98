package audio

import (
	"encoding/binary"
	"fmt"
)

// DecodePCM16LE decodes little-endian signed 16-bit PCM bytes into samples.
func DecodePCM16LE(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, &CodecError{Reason: fmt.Sprintf("odd PCM byte length %d", len(data))}
	}
	n := len(data) / 2
	samples := make([]int16, n)
	for i := range n {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// EncodePCM16LE encodes signed 16-bit samples as little-endian PCM bytes.
func EncodePCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
